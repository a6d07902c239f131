package routing

import (
	"strings"

	"github.com/otp-auth-api/internal/domain"
)

// Paths on each product application.
const (
	userOnboardingPath   = "/profile-completion"
	clientOnboardingPath = "/profile"
	dashboardPath        = "/dashboard"
)

// Engine computes the canonical destination for a finished auth flow. The
// two products live on separate subdomains, so any absolute destination is
// tagged cross-origin and must be realized as a full navigation; only the
// last-resort relative fallback stays same-origin.
type Engine struct {
	userDomain   string
	clientDomain string
}

func NewEngine(userDomain, clientDomain string) *Engine {
	return &Engine{userDomain: userDomain, clientDomain: clientDomain}
}

// ResolveDestination walks the decision table top-down, first match wins.
// A Google-authenticated session always routes to onboarding: a federated
// sign-in does not guarantee the profile fields are populated, so it is
// treated exactly like a new user.
func (e *Engine) ResolveDestination(accountType domain.AccountType, isNewUser, isGoogleAuth bool, currentHost string) domain.NavigationTarget {
	onboarding := isNewUser || isGoogleAuth

	switch accountType {
	case domain.AccountTypeUser:
		return e.userTarget(onboarding)
	case domain.AccountTypeClient:
		return e.clientTarget(onboarding)
	}

	// Account type not resolved: fall back to whichever product the caller
	// is already on.
	if strings.Contains(currentHost, e.userDomain) {
		return e.userTarget(onboarding)
	}
	if strings.Contains(currentHost, e.clientDomain) {
		return e.clientTarget(onboarding)
	}

	return domain.NavigationTarget{URL: dashboardPath, CrossOrigin: false}
}

func (e *Engine) userTarget(onboarding bool) domain.NavigationTarget {
	path := dashboardPath
	if onboarding {
		path = userOnboardingPath
	}
	return domain.NavigationTarget{URL: "https://" + e.userDomain + path, CrossOrigin: true}
}

func (e *Engine) clientTarget(onboarding bool) domain.NavigationTarget {
	path := dashboardPath
	if onboarding {
		path = clientOnboardingPath
	}
	return domain.NavigationTarget{URL: "https://" + e.clientDomain + path, CrossOrigin: true}
}
