package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/otp-auth-api/internal/application/auth"
	"github.com/otp-auth-api/internal/domain"
	"github.com/otp-auth-api/internal/pkg/validate"
)

// AuthRequest is the single inbound shape for the OTP flow; Action selects
// the step.
type AuthRequest struct {
	Action    string `json:"action" validate:"required,oneof=signup resend verify"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password"`
	Otp       string `json:"otp"`
	SourceURL string `json:"sourceUrl"`
}

// GoogleRequest is the inbound shape for federated sign-in.
type GoogleRequest struct {
	IDToken   string `json:"id_token" validate:"required"`
	SourceURL string `json:"sourceUrl"`
}

// AuthHandler handles the signup → OTP → verify flow endpoints.
type AuthHandler struct {
	svc auth.Service
}

func NewAuthHandler(svc auth.Service) *AuthHandler {
	return &AuthHandler{svc: svc}
}

// Action dispatches on the request body's action field.
func (h *AuthHandler) Action(w http.ResponseWriter, r *http.Request) {
	var req AuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	switch req.Action {
	case "signup":
		result, err := h.svc.Signup(r.Context(), req.Email, req.Password, req.SourceURL)
		h.signupResponse(w, result, err)
	case "resend":
		result, err := h.svc.Resend(r.Context(), req.Email)
		h.signupResponse(w, result, err)
	case "verify":
		if req.Otp == "" {
			writeError(w, http.StatusBadRequest, "otp is required")
			return
		}
		result, err := h.svc.Verify(r.Context(), req.Email, req.Otp)
		if err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, AuthEnvelope{
			Success:  true,
			User:     result.User,
			Token:    result.Token,
			Redirect: &result.Redirect,
		})
	}
}

// Google handles federated sign-in with a Google ID token.
func (h *AuthHandler) Google(w http.ResponseWriter, r *http.Request) {
	var req GoogleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.svc.GoogleSignIn(r.Context(), req.IDToken, req.SourceURL)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AuthEnvelope{
		Success:  true,
		User:     result.User,
		Token:    result.Token,
		Redirect: &result.Redirect,
	})
}

func (h *AuthHandler) signupResponse(w http.ResponseWriter, result *auth.SignupResult, err error) {
	if err != nil {
		if errors.Is(err, domain.ErrRateLimited) && result != nil && result.RateLimit != nil {
			env := RateLimitEnvelope{Error: "too many attempts, try again later"}
			if !result.RateLimit.ResetTime.IsZero() {
				t := result.RateLimit.ResetTime
				env.ResetTime = &t
			}
			if result.RateLimit.Blocked {
				t := result.RateLimit.BlockedUntil
				env.BlockedUntil = &t
			}
			writeJSON(w, http.StatusTooManyRequests, env)
			return
		}
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Success: true, Message: "verification code sent"})
}
