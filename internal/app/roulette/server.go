package roulette

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/cors"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/Hackathon-Apps/go-roulette-api/internal/app/chain"
	"github.com/Hackathon-Apps/go-roulette-api/internal/app/config"
	"github.com/Hackathon-Apps/go-roulette-api/internal/app/donation"
	"github.com/Hackathon-Apps/go-roulette-api/internal/app/metrics"
	"github.com/Hackathon-Apps/go-roulette-api/internal/app/storage"
)

const maxBodyBytes = 4 << 10

type Server struct {
	configuration *config.Configuration
	logger        *logrus.Logger
	router        *mux.Router
	db            *storage.Storage
	donations     *donation.Service
	limits        donation.Limits
	hub           *WsHub
	metrics       *metrics.Metrics

	routerOnce sync.Once
}

func NewServer(configuration *config.Configuration, log *logrus.Logger, db *storage.Storage, donations *donation.Service, m *metrics.Metrics) (*Server, error) {
	limits, err := donation.NewLimits(configuration.MinDonation, configuration.MaxDonation)
	if err != nil {
		return nil, err
	}
	return &Server{
		configuration: configuration,
		logger:        log,
		router:        mux.NewRouter(),
		db:            db,
		donations:     donations,
		limits:        limits,
		hub:           NewWSHub(m),
		metrics:       m,
	}, nil
}

func (s *Server) Start() error {
	s.logger.Info("starting server on port ", s.configuration.BindAddress)
	return http.ListenAndServe(s.configuration.BindAddress, s.Handler())
}

// Handler returns the fully wired HTTP handler, CORS included.
func (s *Server) Handler() http.Handler {
	s.routerOnce.Do(s.configureRouter)

	return cors.Handler(cors.Options{
		AllowedOrigins: s.configuration.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", initDataHeader, requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
		MaxAge:         300,
	})(s.router)
}

func (s *Server) configureRouter() {
	s.router.Use(s.requestID, s.observe, s.recoverPanic)

	s.router.HandleFunc("/api/healthz", s.handleHealthz()).Methods(http.MethodGet)
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(s.authenticate)
	api.HandleFunc("/profile", s.handleProfile()).Methods(http.MethodGet)
	api.HandleFunc("/profile/wallet", s.handleSetWallet()).Methods(http.MethodPatch)
	api.HandleFunc("/donations", s.handleDonations()).Methods(http.MethodGet)
	api.HandleFunc("/donate/config", s.handleDonateConfig()).Methods(http.MethodGet)
	api.HandleFunc("/donate/ton", s.handleDonateTon()).Methods(http.MethodPost)
	api.HandleFunc("/ws", s.handleWs()).Methods(http.MethodGet)
}

func (s *Server) handleHealthz() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		renderJSON(w, "ok")
	}
}

func (s *Server) handleDonateTon() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userIDFromContext(r.Context())
		if !ok {
			renderErr(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		var req donateTonRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			renderErr(w, http.StatusBadRequest, "invalid json: "+err.Error())
			return
		}

		claim, err := donation.NewClaim(userID, req.TxHash, req.Amount, s.limits)
		if err != nil {
			code, msg := donationStatus(err)
			renderErr(w, code, msg)
			return
		}

		receipt, err := s.donations.ConfirmTonDonate(r.Context(), claim)
		if err != nil {
			code, msg := donationStatus(err)
			if code == http.StatusInternalServerError {
				s.requestLogger(r).WithError(err).Error("confirm TON donation failed")
			}
			renderErr(w, code, msg)
			return
		}

		s.hub.notifyUser(userID, donationCreditedEvent{
			Type:             "donation_credited",
			TxHash:           receipt.TxHash,
			AmountNano:       receipt.AmountNano.String(),
			TotalDonatedNano: receipt.TotalDonatedNano.String(),
		})
		renderJSON(w, okResponse{OK: true})
	}
}

func (s *Server) handleDonateConfig() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		renderJSON(w, donateConfigResponse{
			Enabled:   s.donations.Enabled(),
			Wallet:    s.donations.Wallet(),
			MinAmount: donation.FormatTON(s.limits.MinNano),
			MaxAmount: donation.FormatTON(s.limits.MaxNano),
		})
	}
}

func (s *Server) handleProfile() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := userIDFromContext(r.Context())

		ctx := r.Context()
		user, err := s.db.GetUser(ctx, userID)
		if errors.Is(err, storage.ErrUserNotFound) {
			renderErr(w, http.StatusNotFound, err.Error())
			return
		}
		if err != nil {
			s.requestLogger(r).WithError(err).Error("get user failed")
			renderErr(w, http.StatusInternalServerError, "internal error")
			return
		}
		count, err := s.db.CountDonations(ctx, userID)
		if err != nil {
			s.requestLogger(r).WithError(err).Error("count donations failed")
			renderErr(w, http.StatusInternalServerError, "internal error")
			return
		}

		total := user.TotalDonatedNano.Int()
		renderJSON(w, profileResponse{
			ID:               user.ID,
			Username:         user.Username,
			FirstName:        user.FirstName,
			PhotoURL:         user.PhotoURL,
			Coins:            user.Coins,
			TotalDonatedTon:  donation.FormatTON(total),
			TotalDonatedNano: total.String(),
			WalletAddress:    user.WalletAddress,
			DonationsCount:   count,
			CreatedAt:        user.CreatedAt,
		})
	}
}

func (s *Server) handleSetWallet() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := userIDFromContext(r.Context())

		var req setWalletRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			renderErr(w, http.StatusBadRequest, "invalid json: "+err.Error())
			return
		}
		wallet := strings.TrimSpace(req.WalletAddress)
		if _, err := chain.ParseWalletAddress(wallet); err != nil {
			renderErr(w, http.StatusBadRequest, chain.ErrInvalidAddress.Error())
			return
		}

		err := s.db.SetWallet(r.Context(), userID, wallet)
		if errors.Is(err, storage.ErrUserNotFound) {
			renderErr(w, http.StatusNotFound, err.Error())
			return
		}
		if err != nil {
			s.requestLogger(r).WithError(err).Error("set wallet failed")
			renderErr(w, http.StatusInternalServerError, "internal error")
			return
		}
		renderJSON(w, okResponse{OK: true})
	}
}

func (s *Server) handleDonations() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := userIDFromContext(r.Context())
		limit, offset := pageParams(r)

		rows, err := s.db.ListDonations(r.Context(), userID, limit, offset)
		if err != nil {
			s.requestLogger(r).WithError(err).Error("list donations failed")
			renderErr(w, http.StatusInternalServerError, "internal error")
			return
		}

		items := make([]donationItem, 0, len(rows))
		for _, row := range rows {
			amount := row.AmountNano.Int()
			items = append(items, donationItem{
				TxHash:     row.TxHash,
				AmountTon:  donation.FormatTON(amount),
				AmountNano: amount.String(),
				CreatedAt:  row.CreatedAt,
			})
		}
		renderJSON(w, items)
	}
}

func (s *Server) handleWs() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := userIDFromContext(r.Context())
		if err := s.hub.subscribe(userID, w, r); err != nil {
			s.requestLogger(r).WithError(err).Debug("websocket upgrade failed")
		}
	}
}
