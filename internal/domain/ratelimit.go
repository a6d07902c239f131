package domain

import "time"

// RateLimitWindow is one live counting interval for an (identifier, action)
// pair. PK: identifier, SK: action — at most one row per pair exists.
// A window is superseded once now - WindowStart exceeds the configured
// window and no block is in effect.
type RateLimitWindow struct {
	Identifier   string `dynamodbav:"identifier"`
	Action       string `dynamodbav:"action"`
	WindowStart  int64  `dynamodbav:"window_start"`            // Unix seconds
	Attempts     int    `dynamodbav:"attempts"`                // monotonic within the window
	BlockedUntil int64  `dynamodbav:"blocked_until,omitempty"` // 0 when no block is active
}

// RateLimitResult is the outcome of a limiter check.
type RateLimitResult struct {
	Allowed           bool
	AttemptsRemaining int
	ResetTime         time.Time
	Blocked           bool
	BlockedUntil      time.Time
}
