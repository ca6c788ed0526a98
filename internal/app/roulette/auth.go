package roulette

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Hackathon-Apps/go-roulette-api/internal/app/storage"
)

const (
	initDataHeader = "X-Init-Data"
	initDataQuery  = "initData"
	webAppDataKey  = "WebAppData"
)

var (
	errInitDataToken   = errors.New("bot token is not configured")
	errInitDataHash    = errors.New("initData signature mismatch")
	errInitDataExpired = errors.New("initData expired")
	errInitDataUser    = errors.New("initData has no valid user")
)

type TelegramUser struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	Username  string `json:"username"`
	PhotoURL  string `json:"photo_url"`
}

var devUser = TelegramUser{ID: 1, FirstName: "Dev", Username: "dev"}

type ctxKey int

const (
	ctxKeyUserID ctxKey = iota
	ctxKeyRequestID
)

// VerifyInitData checks a Telegram Mini App initData string signed with
// botToken and returns the user it carries. maxAge <= 0 disables the
// auth_date freshness check.
func VerifyInitData(raw, botToken string, maxAge time.Duration, now time.Time) (*TelegramUser, error) {
	if strings.TrimSpace(botToken) == "" {
		return nil, errInitDataToken
	}

	values, err := url.ParseQuery(raw)
	if err != nil {
		return nil, err
	}

	hash := strings.ToLower(values.Get("hash"))
	if hash == "" {
		return nil, errInitDataHash
	}
	values.Del("hash")

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+values.Get(k))
	}

	secret := hmacSHA256([]byte(webAppDataKey), []byte(botToken))
	expected := hex.EncodeToString(hmacSHA256(secret, []byte(strings.Join(lines, "\n"))))
	if !hmac.Equal([]byte(expected), []byte(hash)) {
		return nil, errInitDataHash
	}

	if maxAge > 0 {
		authDate, err := strconv.ParseInt(values.Get("auth_date"), 10, 64)
		if err != nil || now.Sub(time.Unix(authDate, 0)) > maxAge {
			return nil, errInitDataExpired
		}
	}

	var user TelegramUser
	if err := json.Unmarshal([]byte(values.Get("user")), &user); err != nil || user.ID == 0 {
		return nil, errInitDataUser
	}
	return &user, nil
}

func hmacSHA256(key, msg []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(msg)
	return mac.Sum(nil)
}

// authenticate resolves the Telegram user, upserts it and stores its id in
// the request context. Websocket handshakes pass initData as a query param.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(initDataHeader)
		if raw == "" {
			raw = r.URL.Query().Get(initDataQuery)
		}

		var tgUser *TelegramUser
		if raw == "" && s.configuration.IsDevelopment() {
			u := devUser
			tgUser = &u
		} else {
			var err error
			tgUser, err = VerifyInitData(raw, s.configuration.BotToken, s.configuration.AuthMaxAge, time.Now())
			if err != nil {
				s.requestLogger(r).WithError(err).Debug("rejecting unauthenticated request")
				renderErr(w, http.StatusUnauthorized, "unauthorized")
				return
			}
		}

		ctx := r.Context()
		err := s.db.UpsertUser(ctx, &storage.User{
			ID:        tgUser.ID,
			Username:  tgUser.Username,
			FirstName: tgUser.FirstName,
			PhotoURL:  tgUser.PhotoURL,
		})
		if err != nil {
			s.requestLogger(r).WithError(err).WithField("user_id", tgUser.ID).Error("upsert user failed")
			renderErr(w, http.StatusInternalServerError, "internal error")
			return
		}

		ctx = context.WithValue(ctx, ctxKeyUserID, tgUser.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(ctxKeyUserID).(int64)
	return id, ok
}

func (s *Server) requestLogger(r *http.Request) logrus.FieldLogger {
	entry := s.logger.WithField("route", r.URL.Path)
	if id, ok := r.Context().Value(ctxKeyRequestID).(string); ok {
		entry = entry.WithField("request_id", id)
	}
	return entry
}
