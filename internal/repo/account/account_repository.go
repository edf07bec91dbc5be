package account

import (
	"context"

	"github.com/mkrupp/worldfan/internal/domain"
)

// MutateFunc derives the record to store from the current one.
// current is nil when no account exists for the key yet. Returning an error
// aborts the upsert and leaves the stored record untouched.
type MutateFunc func(current *domain.UserAccount) (*domain.UserAccount, error)

// Repository defines the interface for account persistence, keyed by nullifier hash.
type Repository interface {
	// GetAccount retrieves the account for a nullifier hash.
	// Returns the account and true if found, or nil and false if not found.
	GetAccount(ctx context.Context, nullifierHash string) (*domain.UserAccount, bool, error)

	// UpsertAccount runs mutate and stores its result as one atomic step per key:
	// concurrent calls for the same nullifier hash are serialized, and each one sees
	// the result of the previous. It returns the stored account and whether a record
	// existed before the call. NullifierHash and CreatedAt of an existing record are
	// never overwritten.
	UpsertAccount(ctx context.Context, nullifierHash string, mutate MutateFunc) (*domain.UserAccount, bool, error)

	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the repository.
	// Returns an error if cleanup fails.
	Close() error
}

// RepositoryFactory is a function that creates a new Repository instance.
// Returns an error if initialization fails.
type RepositoryFactory func(ctx context.Context) (Repository, error)
