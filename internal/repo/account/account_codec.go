package account

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mkrupp/worldfan/internal/domain"
)

// Timestamps are stored with microsecond precision, the finest both SQL backends keep.
func storedTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func encodePreferences(p domain.Preferences) (string, error) {
	if p.Cities == nil {
		p.Cities = []string{}
	}

	if p.Genres == nil {
		p.Genres = []string{}
	}

	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode preferences: %w", err)
	}

	return string(b), nil
}

func decodePreferences(raw []byte) (domain.Preferences, error) {
	p := domain.Preferences{Cities: []string{}, Genres: []string{}}

	if len(raw) == 0 {
		return p, nil
	}

	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("decode preferences: %w", err)
	}

	if p.Cities == nil {
		p.Cities = []string{}
	}

	if p.Genres == nil {
		p.Genres = []string{}
	}

	return p, nil
}

// prepareForStore normalizes next against the record it replaces.
func prepareForStore(nullifierHash string, current, next *domain.UserAccount) *domain.UserAccount {
	stored := next.Clone()
	stored.NullifierHash = nullifierHash
	stored.LastLoginAt = storedTime(stored.LastLoginAt)

	if current != nil {
		stored.CreatedAt = current.CreatedAt
	} else {
		stored.CreatedAt = storedTime(stored.CreatedAt)
	}

	return stored
}
