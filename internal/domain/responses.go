package domain

import "time"

// VerifyResponse is returned by POST /verify.
type VerifyResponse struct {
	Success           bool              `json:"success"`
	Verified          bool              `json:"verified"`
	NullifierHash     string            `json:"nullifier_hash,omitempty"`
	VerificationLevel VerificationLevel `json:"verification_level,omitempty"`
	IsReturningUser   bool              `json:"isReturningUser"`
	UserData          *UserAccount      `json:"userData,omitempty"`
	SessionToken      string            `json:"session_token,omitempty"`
	SessionExpiresAt  *time.Time        `json:"session_expires_at,omitempty"`
}

// AccountResponse is returned by GET /account.
type AccountResponse struct {
	Success  bool         `json:"success"`
	Exists   bool         `json:"exists"`
	UserData *UserAccount `json:"userData"`
}

// SessionResponse is returned by GET /session.
type SessionResponse struct {
	Success           bool              `json:"success"`
	Active            bool              `json:"active"`
	NullifierHash     string            `json:"nullifier_hash"`
	VerificationLevel VerificationLevel `json:"verification_level"`
	ExpiresAt         time.Time         `json:"expires_at"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success  bool   `json:"success"`
	Verified bool   `json:"verified"`
	Code     string `json:"code"`
	Error    string `json:"error"`
}

// StatusResponse is a bare acknowledgement body.
type StatusResponse struct {
	Success bool   `json:"success"`
	Status  string `json:"status,omitempty"`
}
