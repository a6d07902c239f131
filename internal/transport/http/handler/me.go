package handler

import (
	"context"
	"net/http"

	"github.com/otp-auth-api/internal/domain"
	"github.com/otp-auth-api/internal/transport/http/middleware"
)

// UserGetter is the minimal store surface the handler needs.
type UserGetter interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
}

// MeHandler returns the authenticated caller's own identity record.
type MeHandler struct {
	users UserGetter
}

func NewMeHandler(users UserGetter) *MeHandler {
	return &MeHandler{users: users}
}

func (h *MeHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	u, err := h.users.Get(r.Context(), claims.UserID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}
