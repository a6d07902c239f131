package domain

import "time"

// User is the identity record created after a successful OTP verification
// or a federated Google sign-in.
type User struct {
	UserID       string      `json:"id" dynamodbav:"user_id"`
	Email        string      `json:"email" dynamodbav:"email"`
	PasswordHash string      `json:"-" dynamodbav:"password_hash"`
	AccountType  AccountType `json:"account_type" dynamodbav:"account_type"`
	SignupSource string      `json:"signup_source,omitempty" dynamodbav:"signup_source"`
	AuthProvider string      `json:"auth_provider" dynamodbav:"auth_provider"` // "local" | "google"
	GoogleSub    string      `json:"-" dynamodbav:"google_sub"`
	CreatedAt    time.Time   `json:"created" dynamodbav:"created_at"`
	UpdatedAt    time.Time   `json:"updated" dynamodbav:"updated_at"`
}
