package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/otp-auth-api/internal/domain"
)

// CodeLifetime is how long an issued code stays valid when no override is
// configured.
const CodeLifetime = 10 * time.Minute

// Channel selects the delivery collaborator for issued codes.
const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

// Store is the persistence surface the lifecycle manager needs.
type Store interface {
	Put(ctx context.Context, rec *domain.OtpRecord) error
	Get(ctx context.Context, identifier, code string) (*domain.OtpRecord, error)
	Consume(ctx context.Context, identifier, code string) error
	LatestLive(ctx context.Context, identifier string, now int64) (*domain.OtpRecord, error)
}

// Mailer sends the code over email.
type Mailer interface {
	SendEmail(to, subject, bodyHTML string) error
}

// SMSSender sends the code over SMS.
type SMSSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

type Service interface {
	// Issue generates and persists a fresh code for the identifier and hands
	// it to the delivery collaborator. The record survives a delivery
	// failure so a later resend can supersede it.
	Issue(ctx context.Context, identifier string, accountType domain.AccountType, aux domain.OtpAux) (*domain.OtpRecord, error)
	// Verify consumes the (identifier, code) record exactly once. Wrong,
	// expired and already-used codes are indistinguishable to the caller.
	Verify(ctx context.Context, identifier, code string) (*domain.OtpRecord, error)
	// LatestPending returns the newest live record for the identifier.
	LatestPending(ctx context.Context, identifier string) (*domain.OtpRecord, error)
}

type ServiceDeps struct {
	Store    Store
	Mailer   Mailer
	SMS      SMSSender
	Channel  string           // ChannelEmail | ChannelSMS
	Lifetime time.Duration    // defaults to CodeLifetime
	Now      func() time.Time // defaults to time.Now
}

type service struct {
	store    Store
	mailer   Mailer
	sms      SMSSender
	channel  string
	lifetime time.Duration
	now      func() time.Time
}

func NewService(deps ServiceDeps) Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	channel := deps.Channel
	if channel == "" {
		channel = ChannelEmail
	}
	lifetime := deps.Lifetime
	if lifetime <= 0 {
		lifetime = CodeLifetime
	}
	return &service{
		store:    deps.Store,
		mailer:   deps.Mailer,
		sms:      deps.SMS,
		channel:  channel,
		lifetime: lifetime,
		now:      now,
	}
}

func (s *service) Issue(ctx context.Context, identifier string, accountType domain.AccountType, aux domain.OtpAux) (*domain.OtpRecord, error) {
	identifier = Normalize(identifier)

	code, err := generateCode()
	if err != nil {
		return nil, err
	}

	issued := s.now().UTC()
	rec := &domain.OtpRecord{
		Identifier:  identifier,
		Code:        code,
		IssuedAt:    issued.Unix(),
		ExpiresAt:   issued.Add(s.lifetime).Unix(),
		Consumed:    false,
		AccountType: accountType,
		Aux:         aux,
	}
	if err := s.store.Put(ctx, rec); err != nil {
		return nil, fmt.Errorf("persist otp: %w", domain.ErrStoreUnavailable)
	}

	if err := s.deliver(ctx, rec); err != nil {
		// The record is already persisted and stays valid; the caller
		// recovers with an explicit resend.
		return rec, fmt.Errorf("send otp to %s: %w", identifier, domain.ErrDeliveryFailed)
	}
	return rec, nil
}

func (s *service) Verify(ctx context.Context, identifier, code string) (*domain.OtpRecord, error) {
	identifier = Normalize(identifier)

	rec, err := s.store.Get(ctx, identifier, code)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrInvalidOrExpired
		}
		return nil, fmt.Errorf("load otp: %w", domain.ErrStoreUnavailable)
	}
	if rec.Consumed || rec.ExpiresAt <= s.now().Unix() {
		return nil, domain.ErrInvalidOrExpired
	}
	// The conditional update is what makes verification single-use: when two
	// requests race, only one flip succeeds and the loser falls through to
	// the same opaque error.
	if err := s.store.Consume(ctx, identifier, code); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrInvalidOrExpired
		}
		return nil, fmt.Errorf("consume otp: %w", domain.ErrStoreUnavailable)
	}
	rec.Consumed = true
	return rec, nil
}

func (s *service) LatestPending(ctx context.Context, identifier string) (*domain.OtpRecord, error) {
	return s.store.LatestLive(ctx, Normalize(identifier), s.now().Unix())
}

func (s *service) deliver(ctx context.Context, rec *domain.OtpRecord) error {
	if s.channel == ChannelSMS && s.sms != nil {
		return s.sms.SendSMS(ctx, rec.Identifier, "Your verification code is "+rec.Code)
	}
	body := fmt.Sprintf(
		"<p>Your verification code is <strong>%s</strong>.</p><p>It expires in %d minutes. If you did not request it, ignore this email.</p>",
		rec.Code, int(s.lifetime.Minutes()),
	)
	return s.mailer.SendEmail(rec.Identifier, "Your verification code", body)
}

// Normalize case-folds and trims an identifier so lookups are stable.
func Normalize(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}

// generateCode draws a 6-digit decimal code uniformly from [100000, 999999].
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
