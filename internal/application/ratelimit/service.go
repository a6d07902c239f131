package ratelimit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/otp-auth-api/internal/domain"
)

// Defaults for the per-identifier sliding window. The block duration is
// independent of the counting window.
const (
	DefaultMaxAttempts = 5
	DefaultWindow      = 15 * time.Minute
	BlockDuration      = 60 * time.Minute
)

// Store is the persistence surface for window rows.
type Store interface {
	Get(ctx context.Context, identifier, action string) (*domain.RateLimitWindow, error)
	Put(ctx context.Context, w *domain.RateLimitWindow) error
	Update(ctx context.Context, identifier, action string, updates map[string]interface{}) error
}

type Service interface {
	// Check records one attempt for (identifier, action) and decides whether
	// it is allowed. It never returns an error for store outages: the
	// limiter fails open so infrastructure failure cannot lock out
	// legitimate traffic.
	Check(ctx context.Context, identifier, action string, maxAttempts int, window time.Duration) *domain.RateLimitResult
}

type ServiceDeps struct {
	Store    Store
	BlockFor time.Duration    // defaults to BlockDuration
	Now      func() time.Time // defaults to time.Now
}

type service struct {
	store    Store
	blockFor time.Duration
	now      func() time.Time
}

func NewService(deps ServiceDeps) Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	blockFor := deps.BlockFor
	if blockFor <= 0 {
		blockFor = BlockDuration
	}
	return &service{store: deps.Store, blockFor: blockFor, now: now}
}

func (s *service) Check(ctx context.Context, identifier, action string, maxAttempts int, window time.Duration) *domain.RateLimitResult {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if window <= 0 {
		window = DefaultWindow
	}
	now := s.now().UTC()

	w, err := s.store.Get(ctx, identifier, action)
	switch {
	case err != nil && errors.Is(err, domain.ErrNotFound):
		return s.freshWindow(ctx, identifier, action, maxAttempts, window, now)
	case err != nil:
		return s.failOpen(identifier, action, maxAttempts, window, now, err)
	}

	if w.BlockedUntil > now.Unix() {
		until := time.Unix(w.BlockedUntil, 0).UTC()
		return &domain.RateLimitResult{
			Allowed:      false,
			Blocked:      true,
			BlockedUntil: until,
			ResetTime:    until,
		}
	}

	// Window superseded: older than the counting interval and no active block.
	if now.Unix()-w.WindowStart > int64(window.Seconds()) {
		return s.freshWindow(ctx, identifier, action, maxAttempts, window, now)
	}

	attempts := w.Attempts + 1
	if attempts > maxAttempts {
		blockedUntil := now.Add(s.blockFor)
		err := s.store.Update(ctx, identifier, action, map[string]interface{}{
			"attempts":      attempts,
			"blocked_until": blockedUntil.Unix(),
		})
		if err != nil {
			return s.failOpen(identifier, action, maxAttempts, window, now, err)
		}
		return &domain.RateLimitResult{
			Allowed:      false,
			Blocked:      true,
			BlockedUntil: blockedUntil,
			ResetTime:    blockedUntil,
		}
	}

	if err := s.store.Update(ctx, identifier, action, map[string]interface{}{"attempts": attempts}); err != nil {
		return s.failOpen(identifier, action, maxAttempts, window, now, err)
	}
	return &domain.RateLimitResult{
		Allowed:           true,
		AttemptsRemaining: maxAttempts - attempts,
		ResetTime:         time.Unix(w.WindowStart, 0).UTC().Add(window),
	}
}

func (s *service) freshWindow(ctx context.Context, identifier, action string, maxAttempts int, window time.Duration, now time.Time) *domain.RateLimitResult {
	w := &domain.RateLimitWindow{
		Identifier:  identifier,
		Action:      action,
		WindowStart: now.Unix(),
		Attempts:    1,
	}
	if err := s.store.Put(ctx, w); err != nil {
		return s.failOpen(identifier, action, maxAttempts, window, now, err)
	}
	return &domain.RateLimitResult{
		Allowed:           true,
		AttemptsRemaining: maxAttempts - 1,
		ResetTime:         now.Add(window),
	}
}

// failOpen trades strictness for availability: a store outage must not block
// legitimate traffic, so the attempt is allowed and only logged.
func (s *service) failOpen(identifier, action string, maxAttempts int, window time.Duration, now time.Time, err error) *domain.RateLimitResult {
	slog.Warn("rate limiter store unavailable, failing open",
		"identifier", identifier, "action", action, "err", err)
	return &domain.RateLimitResult{
		Allowed:           true,
		AttemptsRemaining: maxAttempts - 1,
		ResetTime:         now.Add(window),
	}
}
