package domain

import (
	"errors"
	"net/http"
)

var (
	// ErrInvalidPayload is returned when a request lacks required fields or carries
	// values that cannot be normalized. Never retried.
	ErrInvalidPayload = errors.New("invalid payload")
	// ErrPayloadTooLarge is joined with ErrInvalidPayload when a request body
	// exceeds the configured limit.
	ErrPayloadTooLarge = errors.New("payload too large")
	// ErrConfiguration is returned when the service is missing operator configuration,
	// such as the registered application id. Requires a config fix.
	ErrConfiguration = errors.New("configuration error")
	// ErrVerificationFailed is returned when the external verifier rejected a proof.
	// The user has to produce a fresh proof.
	ErrVerificationFailed = errors.New("verification failed")
	// ErrVerifierUnavailable is returned when the external verifier could not be reached
	// or did not answer in time.
	ErrVerifierUnavailable = errors.New("verifier unavailable")
	// ErrStoreUnavailable is returned when a persistence layer cannot be reached.
	// This is the only class a caller may retry with backoff.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrMissingKey is returned when a nullifier hash is empty or malformed.
	ErrMissingKey = errors.New("missing key")
	// ErrUnauthorized is returned when a session token is absent, invalid or expired.
	ErrUnauthorized = errors.New("unauthorized")
)

// ErrorKind describes how an error surfaces at the request boundary.
type ErrorKind struct {
	Code      string // stable machine readable code
	Status    int    // HTTP status
	Message   string // user facing message, never internal detail
	Retryable bool
}

//nolint:gochecknoglobals
var errorKinds = []struct {
	err  error
	kind ErrorKind
}{
	{ErrPayloadTooLarge, ErrorKind{"payload_too_large", http.StatusRequestEntityTooLarge, "request too large", false}},
	{ErrInvalidPayload, ErrorKind{"invalid_payload", http.StatusBadRequest, "invalid request", false}},
	{ErrMissingKey, ErrorKind{"missing_key", http.StatusBadRequest, "missing or malformed nullifier hash", false}},
	{ErrVerificationFailed, ErrorKind{"verification_failed", http.StatusBadRequest, "verification failed, please try again", false}},
	{ErrUnauthorized, ErrorKind{"unauthorized", http.StatusUnauthorized, "session expired, please verify again", false}},
	{ErrConfiguration, ErrorKind{"configuration_error", http.StatusInternalServerError, "service unavailable", false}},
	{ErrVerifierUnavailable, ErrorKind{"verifier_unavailable", http.StatusInternalServerError, "service unavailable", true}},
	{ErrStoreUnavailable, ErrorKind{"store_unavailable", http.StatusInternalServerError, "service unavailable", true}},
}

// KindOf classifies err into its ErrorKind. Unknown errors are internal.
// Order matters: client errors win over infrastructure errors when both are joined.
func KindOf(err error) ErrorKind {
	for _, ek := range errorKinds {
		if errors.Is(err, ek.err) {
			return ek.kind
		}
	}

	return ErrorKind{"internal", http.StatusInternalServerError, "service unavailable", false}
}
