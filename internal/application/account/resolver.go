package account

import (
	"net/url"
	"strings"

	"github.com/otp-auth-api/internal/domain"
)

// Resolver turns request context (URL, referrer) into a canonical account
// type. Evaluation is strict priority order, first match wins:
//
//  1. explicit query parameter (type / accountType) naming the user product
//  2. host or referrer on the user-product domain
//  3. path containing the user segment
//  4. default: client
//
// The resolver never emits AccountTypeUnknown — that value is reserved for
// callers that have not yet loaded a stored type.
type Resolver struct {
	userDomain   string
	clientDomain string
}

func NewResolver(userDomain, clientDomain string) *Resolver {
	return &Resolver{userDomain: userDomain, clientDomain: clientDomain}
}

// Resolve inspects sourceURL and referrer and produces the account context.
// A malformed sourceURL falls through the same priority ladder with the
// parseable pieces it has.
func (r *Resolver) Resolve(sourceURL, referrer string) domain.AccountContext {
	u, err := url.Parse(sourceURL)
	if err != nil {
		u = &url.URL{}
	}

	q := u.Query()
	if q.Get("type") == string(domain.AccountTypeUser) || q.Get("accountType") == string(domain.AccountTypeUser) {
		return domain.AccountContext{AccountType: domain.AccountTypeUser, SourceSignal: domain.SignalQueryParam}
	}

	if strings.Contains(u.Host, r.userDomain) || strings.Contains(referrer, r.userDomain) {
		return domain.AccountContext{AccountType: domain.AccountTypeUser, SourceSignal: domain.SignalHostMatch}
	}

	if strings.Contains(u.Path, "/user") {
		return domain.AccountContext{AccountType: domain.AccountTypeUser, SourceSignal: domain.SignalPathMatch}
	}

	return domain.AccountContext{AccountType: domain.AccountTypeClient, SourceSignal: domain.SignalDefault}
}
