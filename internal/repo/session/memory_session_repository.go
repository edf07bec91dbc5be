package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mkrupp/worldfan/internal/domain"
)

// MemorySessionRepository keeps sessions in process memory. Expired records are
// dropped lazily on access.
type MemorySessionRepository struct {
	now func() time.Time

	mu       sync.Mutex
	sessions map[string]domain.Session
}

var _ Repository = (*MemorySessionRepository)(nil)

// MemorySessionRepositoryFactory returns a factory that always yields the same repository.
func MemorySessionRepositoryFactory() RepositoryFactory {
	repo := NewMemorySessionRepository(time.Now)

	return func(context.Context) (Repository, error) {
		return repo, nil
	}
}

// NewMemorySessionRepository creates an empty repository using now as its clock.
func NewMemorySessionRepository(now func() time.Time) *MemorySessionRepository {
	return &MemorySessionRepository{
		now:      now,
		sessions: make(map[string]domain.Session),
	}
}

// CreateSession implements Repository.CreateSession.
func (r *MemorySessionRepository) CreateSession(_ context.Context, s *domain.Session) error {
	if s.Expired(r.now()) {
		return fmt.Errorf("create session %s: %w", s.ID, errSessionExpired)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[s.ID] = *s

	return nil
}

// GetSession implements Repository.GetSession.
func (r *MemorySessionRepository) GetSession(_ context.Context, id string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}

	if s.Expired(r.now()) {
		delete(r.sessions, id)

		return nil, domain.ErrSessionNotFound
	}

	return &s, nil
}

// DeleteSession implements Repository.DeleteSession.
func (r *MemorySessionRepository) DeleteSession(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, id)

	return nil
}

// Ping implements Repository.Ping.
func (r *MemorySessionRepository) Ping(context.Context) error {
	return nil
}

// Close implements Repository.Close.
func (r *MemorySessionRepository) Close() error {
	return nil
}
