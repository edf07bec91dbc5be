package logging

import "log/slog"

const (
	redactHead = 6
	redactTail = 4
)

// Nullifier returns a log attribute with a truncated nullifier hash, enough to
// correlate requests without writing the full identifier to logs.
func Nullifier(hash string) slog.Attr {
	return slog.String("nullifier", RedactNullifier(hash))
}

// RedactNullifier keeps the first and last characters of hash.
// Short values keep only their first two characters.
func RedactNullifier(hash string) string {
	switch {
	case hash == "":
		return ""
	case len(hash) <= redactHead+redactTail:
		return hash[:min(2, len(hash))] + "…"
	default:
		return hash[:redactHead] + "…" + hash[len(hash)-redactTail:]
	}
}
