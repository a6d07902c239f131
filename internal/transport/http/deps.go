package http

import (
	"github.com/otp-auth-api/internal/infrastructure/dynamo"
	googleinfra "github.com/otp-auth-api/internal/infrastructure/google"
	jwtinfra "github.com/otp-auth-api/internal/infrastructure/jwt"
	"github.com/otp-auth-api/internal/infrastructure/smtp"
	"github.com/otp-auth-api/internal/infrastructure/sns"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	OtpRepo        *dynamo.OtpRepo
	RateLimitRepo  *dynamo.RateLimitRepo
	UserRepo       *dynamo.UserRepo
	Mailer         smtp.Mailer
	SMSSender      sns.SMSSender
	JWTProvider    *jwtinfra.Provider    // optional
	GoogleVerifier *googleinfra.Verifier // optional
}
