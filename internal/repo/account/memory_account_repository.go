package account

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mkrupp/worldfan/internal/domain"
	"github.com/mkrupp/worldfan/internal/util/keylock"
)

// MemoryAccountRepository keeps accounts in process memory. Used for tests and
// single-instance development setups; data is lost on restart.
type MemoryAccountRepository struct {
	locks *keylock.KeyLock

	mu       sync.RWMutex
	accounts map[string]*domain.UserAccount
}

var _ Repository = (*MemoryAccountRepository)(nil)

// MemoryAccountRepositoryFactory returns a factory that always yields the same repository.
func MemoryAccountRepositoryFactory() RepositoryFactory {
	repo := NewMemoryAccountRepository()

	return func(context.Context) (Repository, error) {
		return repo, nil
	}
}

// NewMemoryAccountRepository creates an empty in-memory repository.
func NewMemoryAccountRepository() *MemoryAccountRepository {
	return &MemoryAccountRepository{
		locks:    new(keylock.KeyLock),
		accounts: make(map[string]*domain.UserAccount),
	}
}

// GetAccount implements Repository.GetAccount.
func (r *MemoryAccountRepository) GetAccount(_ context.Context, nullifierHash string) (*domain.UserAccount, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	acc, ok := r.accounts[nullifierHash]
	if !ok {
		return nil, false, nil
	}

	return acc.Clone(), true, nil
}

// UpsertAccount implements Repository.UpsertAccount.
func (r *MemoryAccountRepository) UpsertAccount(
	ctx context.Context, nullifierHash string, mutate MutateFunc,
) (*domain.UserAccount, bool, error) {
	unlock, err := r.locks.Lock(ctx, nullifierHash)
	if err != nil {
		return nil, false, errors.Join(domain.ErrStoreUnavailable, fmt.Errorf("lock account: %w", err))
	}
	defer unlock()

	current, existed, _ := r.GetAccount(ctx, nullifierHash)

	next, err := mutate(current)
	if err != nil {
		return nil, false, err
	}

	if next == nil {
		return nil, false, errNilAccount
	}

	stored := prepareForStore(nullifierHash, current, next)

	r.mu.Lock()
	r.accounts[nullifierHash] = stored.Clone()
	r.mu.Unlock()

	return stored, existed, nil
}

// Ping implements Repository.Ping.
func (r *MemoryAccountRepository) Ping(context.Context) error {
	return nil
}

// Close implements Repository.Close.
func (r *MemoryAccountRepository) Close() error {
	return nil
}
