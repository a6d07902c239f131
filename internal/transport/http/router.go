package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/otp-auth-api/internal/application/account"
	"github.com/otp-auth-api/internal/application/auth"
	"github.com/otp-auth-api/internal/application/otp"
	"github.com/otp-auth-api/internal/application/ratelimit"
	"github.com/otp-auth-api/internal/application/routing"
	"github.com/otp-auth-api/internal/config"
	"github.com/otp-auth-api/internal/transport/http/handler"
	appmiddleware "github.com/otp-auth-api/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	var authMw func(http.Handler) http.Handler
	if deps.JWTProvider != nil {
		authMw = appmiddleware.Auth(deps.JWTProvider)
	} else {
		authMw = func(next http.Handler) http.Handler { return next }
	}

	// 5 requests/second, burst of 10 — the transport-level outer throttle
	// on the public auth endpoints.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	otpSvc := otp.NewService(otp.ServiceDeps{
		Store:    deps.OtpRepo,
		Mailer:   deps.Mailer,
		SMS:      deps.SMSSender,
		Channel:  cfg.OTPChannel,
		Lifetime: cfg.OTPLifetime,
	})
	limiterSvc := ratelimit.NewService(ratelimit.ServiceDeps{
		Store:    deps.RateLimitRepo,
		BlockFor: cfg.BlockDuration,
	})

	var signer auth.TokenSigner
	if deps.JWTProvider != nil {
		signer = deps.JWTProvider
	}
	var googleVerifier auth.GoogleVerifier
	if deps.GoogleVerifier != nil {
		googleVerifier = deps.GoogleVerifier
	}

	authSvc := auth.NewService(auth.ServiceDeps{
		Otp:         otpSvc,
		Limiter:     limiterSvc,
		Resolver:    account.NewResolver(cfg.UserDomain, cfg.ClientDomain),
		Router:      routing.NewEngine(cfg.UserDomain, cfg.ClientDomain),
		Users:       deps.UserRepo,
		Signer:      signer,
		Google:      googleVerifier,
		MaxAttempts: cfg.RateLimitAttempts,
		Window:      cfg.RateLimitWindow,
	})

	healthH := handler.NewHealthHandler()
	authH := handler.NewAuthHandler(authSvc)
	meH := handler.NewMeHandler(deps.UserRepo)

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)
		r.With(sensitiveRL.Limit).Post("/auth", authH.Action)
		r.With(sensitiveRL.Limit).Post("/auth/google", authH.Google)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)
			r.Get("/me", meH.Get)
		})
	})

	return r
}
