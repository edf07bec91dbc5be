package identitysvc

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/mail"
	"strings"

	"github.com/mkrupp/worldfan/internal/domain"
)

// MaxUsernameLength bounds the accepted username size.
const MaxUsernameLength = 64

// ProofPayload is the proof bundle of a verify request.
type ProofPayload struct {
	NullifierHash     string `json:"nullifier_hash"`
	MerkleRoot        string `json:"merkle_root"`
	Proof             string `json:"proof"`
	VerificationLevel string `json:"verification_level"`
}

// VerifyRequest is the body of POST /verify. Pointer fields distinguish an
// absent key from an empty value.
type VerifyRequest struct {
	Proof       *ProofPayload            `json:"proof"`
	Action      string                   `json:"action"`
	Signal      *string                  `json:"signal"`
	Username    *string                  `json:"username"`
	Email       *string                  `json:"email"`
	Preferences *domain.PreferencesPatch `json:"preferences"`
}

// DecodeVerifyRequest parses a verify request body. A body cut off by
// http.MaxBytesReader is reported as domain.ErrPayloadTooLarge.
func DecodeVerifyRequest(body io.Reader) (VerifyRequest, error) {
	var req VerifyRequest

	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return req, errors.Join(domain.ErrInvalidPayload, domain.ErrPayloadTooLarge,
				fmt.Errorf("body exceeds %d bytes: %w", tooLarge.Limit, err))
		}

		return req, errors.Join(domain.ErrInvalidPayload, fmt.Errorf("decode body: %w", err))
	}

	return req, nil
}

// NormalizeVerifyRequest validates req and splits it into the proof to verify
// and the profile patch to reconcile. Missing optional fields take their
// defaults: an empty signal and the device verification level.
func NormalizeVerifyRequest(req VerifyRequest, cfg IdentityConfig) (domain.Proof, domain.ProfilePatch, error) {
	var (
		proof domain.Proof
		patch domain.ProfilePatch
	)

	if req.Proof == nil || strings.TrimSpace(req.Proof.Proof) == "" {
		return proof, patch, fmt.Errorf("%w: missing proof", domain.ErrInvalidPayload)
	}

	action := strings.TrimSpace(req.Action)
	if action == "" {
		return proof, patch, fmt.Errorf("%w: missing action", domain.ErrInvalidPayload)
	}

	if !cfg.ActionAllowed(action) {
		return proof, patch, fmt.Errorf("%w: action %q is not accepted", domain.ErrInvalidPayload, action)
	}

	if strings.TrimSpace(req.Proof.MerkleRoot) == "" {
		return proof, patch, fmt.Errorf("%w: missing merkle root", domain.ErrInvalidPayload)
	}

	nullifierHash := strings.TrimSpace(req.Proof.NullifierHash)
	if err := domain.ValidateNullifierHash(nullifierHash); err != nil {
		return proof, patch, fmt.Errorf("validate nullifier hash: %w", err)
	}

	level, err := domain.ParseVerificationLevel(req.Proof.VerificationLevel)
	if err != nil {
		return proof, patch, fmt.Errorf("parse verification level: %w", err)
	}

	proof = domain.Proof{
		Proof:             req.Proof.Proof,
		MerkleRoot:        strings.TrimSpace(req.Proof.MerkleRoot),
		NullifierHash:     nullifierHash,
		VerificationLevel: level,
		Action:            action,
	}

	if req.Signal != nil {
		proof.Signal = *req.Signal
	}

	patch, err = normalizeProfile(req)
	if err != nil {
		return domain.Proof{}, domain.ProfilePatch{}, err
	}

	return proof, patch, nil
}

func normalizeProfile(req VerifyRequest) (domain.ProfilePatch, error) {
	patch := domain.ProfilePatch{Preferences: req.Preferences}

	if req.Username != nil {
		username := strings.TrimSpace(*req.Username)
		if len(username) > MaxUsernameLength {
			return patch, fmt.Errorf("%w: username longer than %d", domain.ErrInvalidPayload, MaxUsernameLength)
		}

		patch.Username = &username
	}

	if req.Email != nil {
		email := strings.TrimSpace(*req.Email)
		if email != "" {
			addr, err := mail.ParseAddress(email)
			if err != nil || addr.Address != email {
				return patch, fmt.Errorf("%w: malformed email", domain.ErrInvalidPayload)
			}
		}

		patch.Email = &email
	}

	return patch, nil
}

// NormalizeAccountQuery validates the nullifierHash of an account lookup.
func NormalizeAccountQuery(nullifierHash string) (string, error) {
	nullifierHash = strings.TrimSpace(nullifierHash)
	if nullifierHash == "" {
		return "", fmt.Errorf("%w: missing nullifierHash", domain.ErrInvalidPayload)
	}

	if err := domain.ValidateNullifierHash(nullifierHash); err != nil {
		return "", fmt.Errorf("validate nullifier hash: %w", err)
	}

	return nullifierHash, nil
}
