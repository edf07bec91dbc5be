package session

import (
	"context"

	"github.com/mkrupp/worldfan/internal/domain"
)

// Repository defines the interface for session persistence.
// Records expire on their own once ExpiresAt passes.
type Repository interface {
	// CreateSession stores s until s.ExpiresAt.
	CreateSession(ctx context.Context, s *domain.Session) error

	// GetSession retrieves a live session by id.
	// Returns domain.ErrSessionNotFound for unknown, expired or revoked sessions.
	GetSession(ctx context.Context, id string) (*domain.Session, error)

	// DeleteSession revokes a session. Deleting an unknown id is not an error.
	DeleteSession(ctx context.Context, id string) error

	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the repository.
	Close() error
}

// RepositoryFactory is a function that creates a new Repository instance.
type RepositoryFactory func(ctx context.Context) (Repository, error)
