package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/otp-auth-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory window store; set failAll to simulate an outage.
type fakeStore struct {
	rows    map[string]*domain.RateLimitWindow
	failAll bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[string]*domain.RateLimitWindow)}
}

func key(identifier, action string) string { return identifier + "|" + action }

func (f *fakeStore) Get(_ context.Context, identifier, action string) (*domain.RateLimitWindow, error) {
	if f.failAll {
		return nil, errors.New("store down")
	}
	w, ok := f.rows[key(identifier, action)]
	if !ok {
		return nil, fmt.Errorf("missing: %w", domain.ErrNotFound)
	}
	cp := *w
	return &cp, nil
}

func (f *fakeStore) Put(_ context.Context, w *domain.RateLimitWindow) error {
	if f.failAll {
		return errors.New("store down")
	}
	cp := *w
	f.rows[key(w.Identifier, w.Action)] = &cp
	return nil
}

func (f *fakeStore) Update(_ context.Context, identifier, action string, updates map[string]interface{}) error {
	if f.failAll {
		return errors.New("store down")
	}
	w := f.rows[key(identifier, action)]
	if v, ok := updates["attempts"]; ok {
		w.Attempts = v.(int)
	}
	if v, ok := updates["blocked_until"]; ok {
		w.BlockedUntil = v.(int64)
	}
	return nil
}

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time          { return c.now }
func (c *testClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestService(store *fakeStore, clock *testClock) Service {
	return NewService(ServiceDeps{Store: store, Now: clock.Now})
}

func TestCheck_AllowsUpToMaxThenBlocks(t *testing.T) {
	store := newFakeStore()
	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc := newTestService(store, clock)

	for i := 1; i <= 5; i++ {
		res := svc.Check(context.Background(), "a@x.com", "signup", 5, 15*time.Minute)
		assert.True(t, res.Allowed, "attempt %d should be allowed", i)
		assert.False(t, res.Blocked)
		assert.Equal(t, 5-i, res.AttemptsRemaining)
	}

	res := svc.Check(context.Background(), "a@x.com", "signup", 5, 15*time.Minute)
	assert.False(t, res.Allowed)
	assert.True(t, res.Blocked)
	assert.Equal(t, clock.now.Add(60*time.Minute).Unix(), res.BlockedUntil.Unix())
}

func TestCheck_BlockedKeyRejectsEverything(t *testing.T) {
	store := newFakeStore()
	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc := newTestService(store, clock)

	for i := 0; i < 6; i++ {
		svc.Check(context.Background(), "a@x.com", "signup", 5, 15*time.Minute)
	}

	// Even well past the counting window, the block holds until it expires.
	clock.advance(30 * time.Minute)
	res := svc.Check(context.Background(), "a@x.com", "signup", 5, 15*time.Minute)
	assert.False(t, res.Allowed)
	assert.True(t, res.Blocked)
}

func TestCheck_FreshWindowAfterBlockExpires(t *testing.T) {
	store := newFakeStore()
	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc := newTestService(store, clock)

	for i := 0; i < 6; i++ {
		svc.Check(context.Background(), "a@x.com", "signup", 5, 15*time.Minute)
	}

	clock.advance(61 * time.Minute)
	res := svc.Check(context.Background(), "a@x.com", "signup", 5, 15*time.Minute)
	assert.True(t, res.Allowed)
	assert.False(t, res.Blocked)
	assert.Equal(t, 4, res.AttemptsRemaining)
	assert.Equal(t, 1, store.rows[key("a@x.com", "signup")].Attempts)
}

func TestCheck_StaleWindowResets(t *testing.T) {
	store := newFakeStore()
	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc := newTestService(store, clock)

	svc.Check(context.Background(), "a@x.com", "signup", 5, 15*time.Minute)
	svc.Check(context.Background(), "a@x.com", "signup", 5, 15*time.Minute)

	clock.advance(16 * time.Minute)
	res := svc.Check(context.Background(), "a@x.com", "signup", 5, 15*time.Minute)
	assert.True(t, res.Allowed)
	assert.Equal(t, 4, res.AttemptsRemaining)
	assert.Equal(t, 1, store.rows[key("a@x.com", "signup")].Attempts)
}

func TestCheck_IndependentKeys(t *testing.T) {
	store := newFakeStore()
	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc := newTestService(store, clock)

	for i := 0; i < 6; i++ {
		svc.Check(context.Background(), "a@x.com", "signup", 5, 15*time.Minute)
	}

	// Same identifier, different action: separate window.
	res := svc.Check(context.Background(), "a@x.com", "resend", 5, 15*time.Minute)
	assert.True(t, res.Allowed)

	// Different identifier, same action: separate window.
	res = svc.Check(context.Background(), "b@x.com", "signup", 5, 15*time.Minute)
	assert.True(t, res.Allowed)
}

func TestCheck_StoreOutage_FailsOpen(t *testing.T) {
	store := newFakeStore()
	store.failAll = true
	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc := newTestService(store, clock)

	res := svc.Check(context.Background(), "a@x.com", "signup", 5, 15*time.Minute)
	require.NotNil(t, res)
	assert.True(t, res.Allowed)
	assert.False(t, res.Blocked)
}

func TestCheck_ZeroConfigUsesDefaults(t *testing.T) {
	store := newFakeStore()
	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc := newTestService(store, clock)

	res := svc.Check(context.Background(), "a@x.com", "signup", 0, 0)
	assert.True(t, res.Allowed)
	assert.Equal(t, DefaultMaxAttempts-1, res.AttemptsRemaining)
	assert.Equal(t, clock.now.Add(DefaultWindow).Unix(), res.ResetTime.Unix())
}

func TestCheck_ConfiguredBlockDuration(t *testing.T) {
	store := newFakeStore()
	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc := NewService(ServiceDeps{Store: store, BlockFor: 2 * time.Hour, Now: clock.Now})

	for i := 0; i < 5; i++ {
		svc.Check(context.Background(), "a@x.com", "signup", 5, 15*time.Minute)
	}

	res := svc.Check(context.Background(), "a@x.com", "signup", 5, 15*time.Minute)
	assert.False(t, res.Allowed)
	assert.True(t, res.Blocked)
	assert.Equal(t, clock.now.Add(2*time.Hour).Unix(), res.BlockedUntil.Unix())

	// The default-length block would have lapsed by now; the configured one
	// has not.
	clock.advance(90 * time.Minute)
	res = svc.Check(context.Background(), "a@x.com", "signup", 5, 15*time.Minute)
	assert.False(t, res.Allowed)
	assert.True(t, res.Blocked)
}
