package identitysvc

import (
	"slices"
	"time"
)

// IdentityConfig contains configuration parameters for the identity service.
type IdentityConfig struct {
	// AllowedActions lists the accepted proof actions; empty accepts any action
	AllowedActions []string `env:"ALLOWED_ACTIONS" default:""`
}

// ActionAllowed reports whether proofs for action are accepted.
func (c IdentityConfig) ActionAllowed(action string) bool {
	return len(c.AllowedActions) == 0 || slices.Contains(c.AllowedActions, action)
}

// SessionConfig contains configuration parameters for session issuing.
type SessionConfig struct {
	// SigningKeyFile is the path to the RSA private key file; created when missing
	SigningKeyFile string `env:"SIGNING_KEY_FILE" default:"var/storage/identitysvc.key"`

	// TTL is the lifetime of an issued session
	TTL time.Duration `env:"TTL" default:"24h"`

	// Issuer is the iss claim of session tokens
	Issuer string `env:"ISSUER" default:"worldfan-identitysvc"`
}
