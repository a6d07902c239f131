package routing

import (
	"testing"

	"github.com/otp-auth-api/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestResolveDestination_DecisionTable(t *testing.T) {
	e := NewEngine("user.example", "client.example")

	tests := []struct {
		name         string
		accountType  domain.AccountType
		isNewUser    bool
		isGoogleAuth bool
		currentHost  string
		wantURL      string
		wantCross    bool
	}{
		{
			name:        "new user on user product",
			accountType: domain.AccountTypeUser,
			isNewUser:   true,
			wantURL:     "https://user.example/profile-completion",
			wantCross:   true,
		},
		{
			name:        "returning user on user product",
			accountType: domain.AccountTypeUser,
			wantURL:     "https://user.example/dashboard",
			wantCross:   true,
		},
		{
			name:        "new client",
			accountType: domain.AccountTypeClient,
			isNewUser:   true,
			wantURL:     "https://client.example/profile",
			wantCross:   true,
		},
		{
			name:        "returning client",
			accountType: domain.AccountTypeClient,
			wantURL:     "https://client.example/dashboard",
			wantCross:   true,
		},
		{
			name:         "google auth routes to onboarding even when not new",
			accountType:  domain.AccountTypeUser,
			isGoogleAuth: true,
			wantURL:      "https://user.example/profile-completion",
			wantCross:    true,
		},
		{
			name:        "unknown type falls back to current user host",
			accountType: domain.AccountTypeUnknown,
			currentHost: "user.example",
			wantURL:     "https://user.example/dashboard",
			wantCross:   true,
		},
		{
			name:        "unknown type falls back to current client host",
			accountType: domain.AccountTypeUnknown,
			isNewUser:   true,
			currentHost: "client.example",
			wantURL:     "https://client.example/profile",
			wantCross:   true,
		},
		{
			name:        "nothing matched: relative dashboard",
			accountType: domain.AccountTypeUnknown,
			wantURL:     "/dashboard",
			wantCross:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := e.ResolveDestination(tt.accountType, tt.isNewUser, tt.isGoogleAuth, tt.currentHost)
			assert.Equal(t, tt.wantURL, target.URL)
			assert.Equal(t, tt.wantCross, target.CrossOrigin)
		})
	}
}
