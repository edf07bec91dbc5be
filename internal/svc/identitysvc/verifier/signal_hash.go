package verifier

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/sha3"
)

// SignalHash maps a signal into the proof field: keccak256 of its bytes shifted
// right by 8 bits, rendered as 0x-prefixed 32-byte hex. A 0x-prefixed hex signal
// is hashed as the bytes it encodes.
func SignalHash(signal string) string {
	input := []byte(signal)

	if rest, ok := strings.CutPrefix(signal, "0x"); ok {
		if b, err := hex.DecodeString(rest); err == nil {
			input = b
		}
	}

	h := sha3.NewLegacyKeccak256()
	h.Write(input)
	sum := h.Sum(nil)

	field := make([]byte, len(sum))
	copy(field[1:], sum[:len(sum)-1])

	return "0x" + hex.EncodeToString(field)
}
