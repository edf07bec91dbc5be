// Package encoding provides the compact, case-insensitive identifiers used for
// trace ids and session ids.
package encoding

import (
	"encoding/base32"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const crockfordAlphabet = "0123456789abcdefghjkmnpqrstvwxyz"

//nolint:gochecknoglobals
var crockford = base32.NewEncoding(crockfordAlphabet).WithPadding(base32.NoPadding)

// EncodeCrockfordB32LC encodes input with Crockford's base32 alphabet in lowercase,
// without padding.
func EncodeCrockfordB32LC(input []byte) string {
	return crockford.EncodeToString(input)
}

// DecodeCrockfordB32LC decodes a value produced by EncodeCrockfordB32LC after
// normalizing common transcription variants.
func DecodeCrockfordB32LC(input string) ([]byte, error) {
	b, err := crockford.DecodeString(NormalizeCrockfordB32LC(input))
	if err != nil {
		return nil, fmt.Errorf("decode crockford: %w", err)
	}

	return b, nil
}

// NormalizeCrockfordB32LC lowercases input, strips spaces and maps the
// ambiguous letters o, i and l to 0, 1 and 1.
func NormalizeCrockfordB32LC(input string) string {
	return strings.NewReplacer(" ", "", "o", "0", "i", "1", "l", "1").
		Replace(strings.ToLower(input))
}

// NewID returns a time-ordered identifier: a UUIDv7 in Crockford base32.
func NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("new uuid: %w", err)
	}

	return EncodeCrockfordB32LC(id[:]), nil
}
