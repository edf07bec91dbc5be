package domain

import (
	"strings"
	"time"
)

// Preferences holds the music and ticketing preferences of a fan.
// Cities and Genres have set semantics.
type Preferences struct {
	Cities          []string `json:"cities"`
	Genres          []string `json:"genres"`
	FavoriteArtists string   `json:"favoriteArtists"`
	TicketStruggles string   `json:"ticketStruggles"`
	PriceRange      string   `json:"priceRange"`
	Notifications   bool     `json:"notifications"`
}

// UserAccount is the persisted record of a verified human.
// NullifierHash and CreatedAt never change once set.
type UserAccount struct {
	NullifierHash     string            `json:"nullifierHash"`
	Username          string            `json:"username"`
	Email             string            `json:"email"`
	Preferences       Preferences       `json:"preferences"`
	CreatedAt         time.Time         `json:"createdAt"`
	LastLoginAt       time.Time         `json:"lastLoginAt"`
	VerificationLevel VerificationLevel `json:"verificationLevel"`
}

// PreferencesPatch carries the preference fields a client supplied.
// A nil field was absent from the request and leaves the stored value untouched.
type PreferencesPatch struct {
	Cities          *[]string `json:"cities,omitempty"`
	Genres          *[]string `json:"genres,omitempty"`
	FavoriteArtists *string   `json:"favoriteArtists,omitempty"`
	TicketStruggles *string   `json:"ticketStruggles,omitempty"`
	PriceRange      *string   `json:"priceRange,omitempty"`
	Notifications   *bool     `json:"notifications,omitempty"`
}

// ProfilePatch is the optional profile bundle sent along with a proof.
type ProfilePatch struct {
	Username    *string           `json:"username,omitempty"`
	Email       *string           `json:"email,omitempty"`
	Preferences *PreferencesPatch `json:"preferences,omitempty"`
}

// NewUserAccount builds the first record for a nullifier hash.
// Unset profile fields take empty values.
func NewUserAccount(result VerificationResult, patch ProfilePatch, now time.Time) *UserAccount {
	account := &UserAccount{
		NullifierHash:     result.NullifierHash,
		Preferences:       Preferences{Cities: []string{}, Genres: []string{}},
		CreatedAt:         now,
		LastLoginAt:       now,
		VerificationLevel: result.VerificationLevel,
	}

	account.Apply(patch)

	return account
}

// Apply merges the supplied fields of patch into the account.
func (a *UserAccount) Apply(patch ProfilePatch) {
	if patch.Username != nil {
		a.Username = strings.TrimSpace(*patch.Username)
	}

	if patch.Email != nil {
		a.Email = strings.TrimSpace(*patch.Email)
	}

	if p := patch.Preferences; p != nil {
		if p.Cities != nil {
			a.Preferences.Cities = NormalizeSet(*p.Cities)
		}
		if p.Genres != nil {
			a.Preferences.Genres = NormalizeSet(*p.Genres)
		}
		if p.FavoriteArtists != nil {
			a.Preferences.FavoriteArtists = *p.FavoriteArtists
		}
		if p.TicketStruggles != nil {
			a.Preferences.TicketStruggles = *p.TicketStruggles
		}
		if p.PriceRange != nil {
			a.Preferences.PriceRange = *p.PriceRange
		}
		if p.Notifications != nil {
			a.Preferences.Notifications = *p.Notifications
		}
	}
}

// Clone returns a deep copy of the account.
func (a *UserAccount) Clone() *UserAccount {
	c := *a
	c.Preferences.Cities = append([]string{}, a.Preferences.Cities...)
	c.Preferences.Genres = append([]string{}, a.Preferences.Genres...)

	return &c
}

// NormalizeSet trims values, drops empties and duplicates, and keeps first-seen order.
func NormalizeSet(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))

	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}

		if _, ok := seen[v]; ok {
			continue
		}

		seen[v] = struct{}{}
		out = append(out, v)
	}

	return out
}
