package verifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/mkrupp/worldfan/internal/domain"
	context_ "github.com/mkrupp/worldfan/internal/infra/context"
	"github.com/mkrupp/worldfan/internal/infra/logging"
	http_ "github.com/mkrupp/worldfan/internal/infra/transport/http"
)

// HTTPVerifierConfig holds configuration for the HTTP verifier.
type HTTPVerifierConfig struct {
	// URL is the base URL of the verification authority
	URL string `env:"URL" default:"https://developer.worldcoin.org"`

	// AppID is the application id registered with the authority; required
	AppID string `env:"APP_ID" default:""`

	// APIKey is sent as a bearer token when set
	APIKey string `env:"API_KEY" default:""`

	// Timeout bounds the round trip; expiry surfaces as ErrVerifierUnavailable
	Timeout time.Duration `env:"TIMEOUT" default:"10s"`
}

type verifyRequest struct {
	NullifierHash     string `json:"nullifier_hash"`
	MerkleRoot        string `json:"merkle_root"`
	Proof             string `json:"proof"`
	VerificationLevel string `json:"verification_level"`
	Action            string `json:"action"`
	Signal            string `json:"signal"`
	SignalHash        string `json:"signal_hash"`
}

// verifyResponse covers both the success and the error body of the authority.
// Only an explicit success:true confirms a proof.
type verifyResponse struct {
	Success       *bool  `json:"success"`
	NullifierHash string `json:"nullifier_hash"`
	Action        string `json:"action"`
	Code          string `json:"code"`
	Detail        string `json:"detail"`
	Attribute     string `json:"attribute"`
}

// HTTPVerifier implements Verifier against a JSON HTTP verification endpoint.
type HTTPVerifier struct {
	client *resty.Client
	log    logging.Logger
	cfg    HTTPVerifierConfig
}

var _ Verifier = (*HTTPVerifier)(nil)

// NewHTTPVerifier creates a new HTTPVerifier with the given configuration.
// Retries are disabled: a rejected proof must never be replayed automatically.
func NewHTTPVerifier(cfg HTTPVerifierConfig) *HTTPVerifier {
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.URL, "/")).
		SetTimeout(cfg.Timeout).
		SetRetryCount(0).
		SetDisableWarn(true).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}

	return &HTTPVerifier{
		client: client,
		log:    logging.GetLogger("svc.identitysvc.verifier"),
		cfg:    cfg,
	}
}

// Verify implements Verifier.Verify.
func (v *HTTPVerifier) Verify(ctx context.Context, proof domain.Proof) (result domain.VerificationResult, err error) {
	log := v.log.With("action", proof.Action, logging.Nullifier(proof.NullifierHash))

	defer func() {
		switch {
		case errors.Is(err, domain.ErrVerificationFailed):
			log.WarnContext(ctx, "proof rejected", "detail", result.Detail)
		case err != nil:
			log.ErrorContext(ctx, "failed to verify proof", "error", err)
		default:
			log.DebugContext(ctx, "proof verified", "verification_level", result.VerificationLevel)
		}
	}()

	if v.cfg.AppID == "" {
		return result, fmt.Errorf("%w: verifier app id is not set", domain.ErrConfiguration)
	}

	if err := validate(proof); err != nil {
		return result, err
	}

	level, err := domain.ParseVerificationLevel(string(proof.VerificationLevel))
	if err != nil {
		return result, err
	}

	req := v.client.R().
		SetContext(ctx).
		SetPathParam("app_id", v.cfg.AppID).
		SetBody(verifyRequest{
			NullifierHash:     proof.NullifierHash,
			MerkleRoot:        proof.MerkleRoot,
			Proof:             proof.Proof,
			VerificationLevel: level.String(),
			Action:            proof.Action,
			Signal:            proof.Signal,
			SignalHash:        SignalHash(proof.Signal),
		})

	if traceID, ok := context_.TraceIDFromContext(ctx); ok {
		req.SetHeader(http_.TraceIDHeader, traceID)
	}

	var body verifyResponse

	resp, err := req.SetResult(&body).SetError(&body).Post("/api/v2/verify/{app_id}")
	if err != nil {
		return result, errors.Join(domain.ErrVerifierUnavailable, fmt.Errorf("post verify: %w", err))
	}

	result = domain.VerificationResult{
		NullifierHash:     proof.NullifierHash,
		VerificationLevel: level,
		Action:            proof.Action,
	}

	if resp.IsError() || (body.Success != nil && !*body.Success) {
		result.Detail = failureDetail(resp.StatusCode(), body)

		return result, fmt.Errorf("%w: %s", domain.ErrVerificationFailed, result.Detail)
	}

	if body.Success == nil {
		result.Detail = "verifier answered without a success flag"

		return result, fmt.Errorf("%w: %s (status %d)", domain.ErrVerificationFailed, result.Detail, resp.StatusCode())
	}

	if body.NullifierHash != "" && body.NullifierHash != proof.NullifierHash {
		result.Detail = "verifier answered for a different nullifier hash"

		return result, fmt.Errorf("%w: %s", domain.ErrVerificationFailed, result.Detail)
	}

	result.Verified = true

	return result, nil
}

func validate(proof domain.Proof) error {
	var missing []string

	if strings.TrimSpace(proof.Proof) == "" {
		missing = append(missing, "proof")
	}

	if strings.TrimSpace(proof.MerkleRoot) == "" {
		missing = append(missing, "merkle_root")
	}

	if strings.TrimSpace(proof.Action) == "" {
		missing = append(missing, "action")
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", domain.ErrInvalidPayload, strings.Join(missing, ", "))
	}

	if err := domain.ValidateNullifierHash(proof.NullifierHash); err != nil {
		return fmt.Errorf("validate proof: %w", err)
	}

	return nil
}

func failureDetail(status int, body verifyResponse) string {
	switch {
	case body.Detail != "":
		return body.Detail
	case body.Code != "":
		return body.Code
	case status >= http.StatusBadRequest:
		return fmt.Sprintf("verifier returned status %d", status)
	default:
		return "proof rejected by verifier"
	}
}
