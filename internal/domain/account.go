package domain

// AccountType is the product segment an identity belongs to. It decides
// which of the two applications (on separate subdomains) the user lands on.
type AccountType string

const (
	AccountTypeUser   AccountType = "user"
	AccountTypeClient AccountType = "client"
	// AccountTypeUnknown is reserved for callers that have not yet loaded
	// the type from the identity store; the resolver never emits it.
	AccountTypeUnknown AccountType = "unknown"
)

// SourceSignal records which piece of evidence produced an account-type
// resolution. Diagnostics only — behavior never branches on it.
type SourceSignal string

const (
	SignalQueryParam SourceSignal = "query_param"
	SignalHostMatch  SourceSignal = "host_match"
	SignalPathMatch  SourceSignal = "path_match"
	SignalDefault    SourceSignal = "default"
)

// AccountContext is the resolver's canonical output for one request.
type AccountContext struct {
	AccountType  AccountType  `json:"account_type"`
	IsNewUser    bool         `json:"is_new_user"`
	SourceSignal SourceSignal `json:"source_signal"`
}

// NavigationTarget is a computed redirect destination. CrossOrigin targets
// cross the subdomain boundary and must be realized as a full navigation;
// same-origin targets can be an in-place history update.
type NavigationTarget struct {
	URL         string `json:"url"`
	CrossOrigin bool   `json:"cross_origin"`
}

// FlowState is the orchestrator's position in the signup state machine.
type FlowState string

const (
	StateIdle            FlowState = "idle"
	StateAwaitingOtp     FlowState = "awaiting_otp"
	StateVerified        FlowState = "verified"
	StateIdentityCreated FlowState = "identity_created"
	StateRedirected      FlowState = "redirected"
	StateBlocked         FlowState = "blocked"
)
