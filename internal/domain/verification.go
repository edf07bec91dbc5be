package domain

// VerificationResult is the normalized outcome of an external verification.
// It only gates account reconciliation and is never persisted.
type VerificationResult struct {
	Verified          bool
	NullifierHash     string
	VerificationLevel VerificationLevel
	Action            string
	Detail            string // provider supplied reason on failure
}
