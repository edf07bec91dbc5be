package identitysvc

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mkrupp/worldfan/internal/domain"
)

// SessionClaims are the claims of a session token. ID is the session id and
// Subject the nullifier hash.
type SessionClaims struct {
	jwt.RegisteredClaims

	VerificationLevel domain.VerificationLevel `json:"verification_level"`
}

// TokenSigner issues and checks RS256 session tokens.
type TokenSigner struct {
	key    *rsa.PrivateKey
	issuer string
	now    func() time.Time
}

// NewTokenSigner creates a TokenSigner. now defaults to time.Now.
func NewTokenSigner(key *rsa.PrivateKey, issuer string, now func() time.Time) *TokenSigner {
	if now == nil {
		now = time.Now
	}

	return &TokenSigner{key: key, issuer: issuer, now: now}
}

// Sign returns the token for session s.
func (ts *TokenSigner) Sign(s *domain.Session) (string, error) {
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        s.ID,
			Subject:   s.NullifierHash,
			Issuer:    ts.issuer,
			IssuedAt:  jwt.NewNumericDate(s.CreatedAt),
			ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
		},
		VerificationLevel: s.VerificationLevel,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(ts.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return token, nil
}

// Parse verifies the signature, issuer and expiry of token.
// Any failure is reported as domain.ErrUnauthorized.
func (ts *TokenSigner) Parse(token string) (*SessionClaims, error) {
	var claims SessionClaims

	_, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return &ts.key.PublicKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(ts.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(ts.now),
	)
	if err != nil {
		return nil, errors.Join(domain.ErrUnauthorized, fmt.Errorf("parse token: %w", err))
	}

	if claims.ID == "" || claims.Subject == "" {
		return nil, fmt.Errorf("%w: token without session", domain.ErrUnauthorized)
	}

	return &claims, nil
}
