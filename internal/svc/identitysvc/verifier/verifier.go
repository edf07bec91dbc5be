// Package verifier forwards proof-of-personhood assertions to an external
// verification authority.
package verifier

import (
	"context"

	"github.com/mkrupp/worldfan/internal/domain"
)

// Verifier checks a proof with the external authority.
type Verifier interface {
	// Verify performs exactly one round trip and never retries.
	// It returns ErrConfiguration, ErrInvalidPayload, ErrMissingKey,
	// ErrVerificationFailed or ErrVerifierUnavailable on failure.
	Verify(ctx context.Context, proof domain.Proof) (domain.VerificationResult, error)
}
