package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	// ErrInvalidOrExpired deliberately conflates "wrong code", "expired" and
	// "already used" so a caller cannot probe which one happened.
	ErrInvalidOrExpired = errors.New("invalid or expired code")
	ErrRateLimited      = errors.New("too many attempts")
	ErrDeliveryFailed   = errors.New("delivery failed")
	ErrAlreadyExists    = errors.New("already exists")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrBadRequest       = errors.New("bad request")
	ErrNotFound         = errors.New("not found")
)
