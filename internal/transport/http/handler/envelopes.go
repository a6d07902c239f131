package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/otp-auth-api/internal/domain"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Success bool   `json:"success,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// RateLimitEnvelope carries the retry hints the limiter computed so the
// caller can tell the user when to try again.
type RateLimitEnvelope struct {
	Error        string     `json:"error"`
	ResetTime    *time.Time `json:"reset_time,omitempty"`
	BlockedUntil *time.Time `json:"blocked_until,omitempty"`
}

// AuthEnvelope wraps a finished auth flow: the created identity, its bearer
// token and the computed redirect.
type AuthEnvelope struct {
	Success  bool                     `json:"success"`
	User     *domain.User             `json:"user,omitempty"`
	Token    string                   `json:"token,omitempty"`
	Redirect *domain.NavigationTarget `json:"redirect,omitempty"`
	Error    string                   `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}

// httpError maps domain sentinel errors onto HTTP statuses. Responses stay
// flat {error} envelopes — no stack traces or internal identifiers leak out.
func httpError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrBadRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrInvalidOrExpired):
		writeError(w, http.StatusBadRequest, domain.ErrInvalidOrExpired.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "account already exists, sign in instead")
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "too many attempts, try again later")
	case errors.Is(err, domain.ErrDeliveryFailed):
		writeError(w, http.StatusBadGateway, "could not deliver the code, request a resend")
	case errors.Is(err, domain.ErrStoreUnavailable):
		writeError(w, http.StatusInternalServerError, "service unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
