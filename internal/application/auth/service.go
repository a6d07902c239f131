package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/otp-auth-api/internal/application/account"
	"github.com/otp-auth-api/internal/application/otp"
	"github.com/otp-auth-api/internal/application/ratelimit"
	"github.com/otp-auth-api/internal/application/routing"
	"github.com/otp-auth-api/internal/domain"
	googleinfra "github.com/otp-auth-api/internal/infrastructure/google"
	"github.com/otp-auth-api/internal/pkg/id"
	"golang.org/x/crypto/bcrypt"
)

// Limiter actions. Signup and resend count against separate windows so a
// user who lost an email is not throttled by their original signup burst.
const (
	ActionSignup = "signup"
	ActionResend = "resend"
)

// UserStore is the identity-provider surface the orchestrator needs.
type UserStore interface {
	Create(ctx context.Context, u *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
}

// TokenSigner mints a bearer token for a created identity.
type TokenSigner interface {
	Sign(userID, email, accountType string) (string, error)
}

// GoogleVerifier validates a federated ID token.
type GoogleVerifier interface {
	Verify(ctx context.Context, token string) (*googleinfra.Payload, error)
}

// SignupResult reports where the signup flow ended up.
type SignupResult struct {
	State     domain.FlowState        `json:"state"`
	Account   domain.AccountContext   `json:"account"`
	RateLimit *domain.RateLimitResult `json:"-"`
}

// VerifyResult is the terminal outcome of a verified flow: the created
// identity, its bearer token and the computed redirect.
type VerifyResult struct {
	State    domain.FlowState        `json:"state"`
	User     *domain.User            `json:"user"`
	Token    string                  `json:"token,omitempty"`
	Redirect domain.NavigationTarget `json:"redirect"`
}

type Service interface {
	// Signup resolves the account type from the source URL, gates on the
	// rate limiter and issues an OTP. Ends in AwaitingOtp, or Blocked when
	// the limiter rejects.
	Signup(ctx context.Context, email, password, sourceURL string) (*SignupResult, error)
	// Resend reissues a code for a pending signup without changing the
	// account-type binding frozen at signup time.
	Resend(ctx context.Context, email string) (*SignupResult, error)
	// Verify consumes the code, creates the identity tagged with the frozen
	// account type and computes the new-user redirect.
	Verify(ctx context.Context, email, code string) (*VerifyResult, error)
	// GoogleSignIn authenticates a federated session, creating the identity
	// on first sight, and always routes to onboarding.
	GoogleSignIn(ctx context.Context, idToken, sourceURL string) (*VerifyResult, error)
}

type ServiceDeps struct {
	Otp      otp.Service
	Limiter  ratelimit.Service
	Resolver *account.Resolver
	Router   *routing.Engine
	Users    UserStore
	Signer   TokenSigner    // optional
	Google   GoogleVerifier // optional

	MaxAttempts int
	Window      time.Duration
}

type service struct {
	otp      otp.Service
	limiter  ratelimit.Service
	resolver *account.Resolver
	router   *routing.Engine
	users    UserStore
	signer   TokenSigner
	google   GoogleVerifier

	maxAttempts int
	window      time.Duration
}

func NewService(deps ServiceDeps) Service {
	return &service{
		otp:         deps.Otp,
		limiter:     deps.Limiter,
		resolver:    deps.Resolver,
		router:      deps.Router,
		users:       deps.Users,
		signer:      deps.Signer,
		google:      deps.Google,
		maxAttempts: deps.MaxAttempts,
		window:      deps.Window,
	}
}

func (s *service) Signup(ctx context.Context, email, password, sourceURL string) (*SignupResult, error) {
	email = otp.Normalize(email)
	acct := s.resolver.Resolve(sourceURL, "")
	acct.IsNewUser = true
	return s.issue(ctx, email, password, sourceURL, ActionSignup, acct)
}

func (s *service) Resend(ctx context.Context, email string) (*SignupResult, error) {
	email = otp.Normalize(email)

	// The limiter gates before any code lookup so a blocked identifier
	// costs no reads against the code table.
	rl := s.limiter.Check(ctx, email, ActionResend, s.maxAttempts, s.window)
	if !rl.Allowed {
		return &SignupResult{State: domain.StateBlocked, RateLimit: rl},
			fmt.Errorf("resend for %s: %w", email, domain.ErrRateLimited)
	}

	pending, err := s.otp.LatestPending(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// No live code to reissue: the caller has to start over. Kept
			// opaque so resend cannot be used to probe for pending signups.
			return nil, domain.ErrInvalidOrExpired
		}
		return nil, fmt.Errorf("load pending signup: %w", domain.ErrStoreUnavailable)
	}

	acct := domain.AccountContext{
		AccountType:  pending.AccountType,
		IsNewUser:    true,
		SourceSignal: domain.SignalDefault,
	}

	// Prior codes stay live until they expire; verification matches on the
	// exact (identifier, code) pair.
	rec, err := s.otp.Issue(ctx, email, pending.AccountType, pending.Aux)
	if err != nil {
		return s.issueOutcome(acct, rec, err)
	}
	return &SignupResult{State: domain.StateAwaitingOtp, Account: acct, RateLimit: rl}, nil
}

func (s *service) issue(ctx context.Context, email, password, sourceURL, action string, acct domain.AccountContext) (*SignupResult, error) {
	rl := s.limiter.Check(ctx, email, action, s.maxAttempts, s.window)
	if !rl.Allowed {
		return &SignupResult{State: domain.StateBlocked, Account: acct, RateLimit: rl},
			fmt.Errorf("%s for %s: %w", action, email, domain.ErrRateLimited)
	}

	aux := domain.OtpAux{SourceURL: sourceURL}
	if password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		aux.PasswordHash = string(hash)
	}

	rec, err := s.otp.Issue(ctx, email, acct.AccountType, aux)
	if err != nil {
		return s.issueOutcome(acct, rec, err)
	}
	return &SignupResult{State: domain.StateAwaitingOtp, Account: acct, RateLimit: rl}, nil
}

// issueOutcome distinguishes a failed delivery (record persisted, flow still
// pending, caller resends) from a failed persist (flow never started).
func (s *service) issueOutcome(acct domain.AccountContext, rec *domain.OtpRecord, err error) (*SignupResult, error) {
	if errors.Is(err, domain.ErrDeliveryFailed) && rec != nil {
		return &SignupResult{State: domain.StateAwaitingOtp, Account: acct}, err
	}
	return nil, err
}

func (s *service) Verify(ctx context.Context, email, code string) (*VerifyResult, error) {
	email = otp.Normalize(email)

	rec, err := s.otp.Verify(ctx, email, code)
	if err != nil {
		// The flow stays in AwaitingOtp; the caller may retry with a new
		// code or request a resend.
		return nil, err
	}

	u := &domain.User{
		UserID:       id.New(),
		Email:        email,
		PasswordHash: rec.Aux.PasswordHash,
		AccountType:  rec.AccountType,
		SignupSource: rec.Aux.SourceURL,
		AuthProvider: "local",
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
	if err := s.createIdentity(ctx, u); err != nil {
		return nil, err
	}

	token := s.sign(u)
	redirect := s.router.ResolveDestination(u.AccountType, true, false, "")
	return &VerifyResult{State: domain.StateRedirected, User: u, Token: token, Redirect: redirect}, nil
}

func (s *service) GoogleSignIn(ctx context.Context, idToken, sourceURL string) (*VerifyResult, error) {
	if s.google == nil {
		return nil, fmt.Errorf("google sign-in not configured: %w", domain.ErrBadRequest)
	}
	payload, err := s.google.Verify(ctx, idToken)
	if err != nil {
		return nil, err
	}
	if !payload.EmailVerified {
		return nil, fmt.Errorf("google account email not verified: %w", domain.ErrUnauthorized)
	}
	email := otp.Normalize(payload.Email)

	isNew := false
	u, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		// Stored profile metadata wins over request signals for a returning
		// identity. An identity created via local signup gets its Google
		// subject linked on first federated sign-in.
		if u.GoogleSub == "" {
			u.GoogleSub = payload.Sub
			if uerr := s.users.Update(ctx, u.UserID, map[string]interface{}{
				"google_sub": payload.Sub,
			}); uerr != nil {
				slog.Warn("could not link google subject", "user_id", u.UserID, "err", uerr)
			}
		}
	case errors.Is(err, domain.ErrNotFound):
		acct := s.resolver.Resolve(sourceURL, "")
		u = &domain.User{
			UserID:       id.New(),
			Email:        email,
			AccountType:  acct.AccountType,
			SignupSource: sourceURL,
			AuthProvider: "google",
			GoogleSub:    payload.Sub,
			CreatedAt:    time.Now().UTC(),
			UpdatedAt:    time.Now().UTC(),
		}
		if err := s.createIdentity(ctx, u); err != nil {
			return nil, err
		}
		isNew = true
	default:
		return nil, fmt.Errorf("load identity: %w", domain.ErrStoreUnavailable)
	}

	token := s.sign(u)
	redirect := s.router.ResolveDestination(u.AccountType, isNew, true, "")
	return &VerifyResult{State: domain.StateRedirected, User: u, Token: token, Redirect: redirect}, nil
}

// createIdentity guards email uniqueness. A duplicate aborts the flow
// outright — the user should sign in instead of being silently merged.
func (s *service) createIdentity(ctx context.Context, u *domain.User) error {
	if _, err := s.users.GetByEmail(ctx, u.Email); err == nil {
		return fmt.Errorf("identity for %s: %w", u.Email, domain.ErrAlreadyExists)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("check identity: %w", domain.ErrStoreUnavailable)
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return err
		}
		return fmt.Errorf("create identity: %w", domain.ErrStoreUnavailable)
	}
	return nil
}

func (s *service) sign(u *domain.User) string {
	if s.signer == nil {
		return ""
	}
	token, err := s.signer.Sign(u.UserID, u.Email, string(u.AccountType))
	if err != nil {
		slog.Warn("could not sign bearer token", "user_id", u.UserID, "err", err)
		return ""
	}
	return token
}
