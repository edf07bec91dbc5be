package domain

import (
	"fmt"
	"strings"
)

// VerificationLevel is the trust tier of a proof-of-personhood credential.
type VerificationLevel string

const (
	// VerificationLevelOrb is a biometric orb credential.
	VerificationLevelOrb VerificationLevel = "orb"
	// VerificationLevelDevice is a device-only credential, the least trusted tier.
	VerificationLevelDevice VerificationLevel = "device"
)

// ParseVerificationLevel normalizes s into a VerificationLevel.
// An empty value resolves to the least trusted level, never to orb.
func ParseVerificationLevel(s string) (VerificationLevel, error) {
	switch VerificationLevel(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return VerificationLevelDevice, nil
	case VerificationLevelDevice:
		return VerificationLevelDevice, nil
	case VerificationLevelOrb:
		return VerificationLevelOrb, nil
	default:
		return "", fmt.Errorf("%w: unknown verification level %q", ErrInvalidPayload, s)
	}
}

// String returns the string representation of the VerificationLevel.
func (l VerificationLevel) String() string {
	return string(l)
}

// Proof is a proof-of-personhood assertion produced by the client-side widget.
// It is consumed once per verification attempt and never persisted.
type Proof struct {
	Proof             string            `json:"proof"`
	MerkleRoot        string            `json:"merkle_root"`
	NullifierHash     string            `json:"nullifier_hash"`
	VerificationLevel VerificationLevel `json:"verification_level"`
	Action            string            `json:"action"`
	Signal            string            `json:"signal"`
}

// MaxNullifierHashLength bounds the accepted nullifier hash size.
const MaxNullifierHashLength = 128

// ValidateNullifierHash reports ErrMissingKey when h is empty or contains
// characters outside [0-9A-Za-z_-].
func ValidateNullifierHash(h string) error {
	if h == "" {
		return fmt.Errorf("%w: empty nullifier hash", ErrMissingKey)
	}

	if len(h) > MaxNullifierHashLength {
		return fmt.Errorf("%w: nullifier hash longer than %d", ErrMissingKey, MaxNullifierHashLength)
	}

	for _, c := range h {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '_', c == '-':
		default:
			return fmt.Errorf("%w: invalid character %q in nullifier hash", ErrMissingKey, c)
		}
	}

	return nil
}
