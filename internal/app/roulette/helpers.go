package roulette

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/Hackathon-Apps/go-roulette-api/internal/app/donation"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

func renderJSON(w http.ResponseWriter, v interface{}) {
	js, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(js)
}

func renderErr(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// donationStatus maps a donation error to the HTTP status and the message
// shown to the client.
func donationStatus(err error) (int, string) {
	var (
		invalidAmount *donation.InvalidAmountError
		verification  *donation.VerificationFailedError
		mismatch      *donation.DestinationMismatchError
		insufficient  *donation.InsufficientAmountError
	)
	switch {
	case errors.Is(err, donation.ErrInvalidTxHash):
		return http.StatusBadRequest, err.Error()
	case errors.As(err, &invalidAmount):
		return http.StatusBadRequest, invalidAmount.Error()
	case errors.Is(err, donation.ErrDonationsDisabled):
		return http.StatusServiceUnavailable, err.Error()
	case errors.Is(err, donation.ErrDuplicateTransaction):
		return http.StatusConflict, err.Error()
	case errors.As(err, &verification):
		return http.StatusBadRequest, "could not verify transaction, try again later"
	case errors.As(err, &mismatch):
		return http.StatusBadRequest, mismatch.Error()
	case errors.As(err, &insufficient):
		return http.StatusBadRequest, insufficient.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func pageParams(r *http.Request) (limit, offset int) {
	q := r.URL.Query()
	limit, _ = strconv.Atoi(strings.TrimSpace(q.Get("limit")))
	offset, _ = strconv.Atoi(strings.TrimSpace(q.Get("offset")))
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
