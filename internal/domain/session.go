package domain

import (
	"errors"
	"time"
)

// ErrSessionNotFound is returned when a session id is unknown or its record expired.
var ErrSessionNotFound = errors.New("session not found")

// Session is a short-lived, store-backed login record issued after a
// successful verification.
type Session struct {
	ID                string            `json:"id"`
	NullifierHash     string            `json:"nullifierHash"`
	VerificationLevel VerificationLevel `json:"verificationLevel"`
	CreatedAt         time.Time         `json:"createdAt"`
	ExpiresAt         time.Time         `json:"expiresAt"`
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
