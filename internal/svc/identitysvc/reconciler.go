package identitysvc

import (
	"context"
	"fmt"
	"time"

	"github.com/mkrupp/worldfan/internal/domain"
	"github.com/mkrupp/worldfan/internal/infra/logging"
	"github.com/mkrupp/worldfan/internal/repo/account"
)

// Reconciler maps a verified human onto exactly one account. It is the only
// writer of accounts.
type Reconciler struct {
	accounts account.Repository
	now      func() time.Time
	log      logging.Logger
}

// NewReconciler creates a Reconciler. now defaults to time.Now.
func NewReconciler(accounts account.Repository, now func() time.Time) *Reconciler {
	if now == nil {
		now = time.Now
	}

	return &Reconciler{
		accounts: accounts,
		now:      now,
		log:      logging.GetLogger("svc.identitysvc.reconciler"),
	}
}

// Reconcile creates the account for a verified nullifier hash or, when one
// exists, merges the supplied profile fields into it and bumps LastLoginAt.
// The returned flag reports whether the account existed before.
func (r *Reconciler) Reconcile(
	ctx context.Context, result domain.VerificationResult, patch domain.ProfilePatch,
) (acc *domain.UserAccount, returning bool, err error) {
	log := r.log.With(logging.Nullifier(result.NullifierHash), "action", result.Action)

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "reconcile account failed", "error", err)
		} else {
			log.DebugContext(ctx, "account reconciled", "returning", returning)
		}
	}()

	if !result.Verified {
		return nil, false, fmt.Errorf("%w: proof not verified", domain.ErrVerificationFailed)
	}

	if err := domain.ValidateNullifierHash(result.NullifierHash); err != nil {
		return nil, false, fmt.Errorf("validate nullifier hash: %w", err)
	}

	acc, returning, err = r.accounts.UpsertAccount(ctx, result.NullifierHash,
		func(current *domain.UserAccount) (*domain.UserAccount, error) {
			// read the clock under the key lock so LastLoginAt follows write order
			now := r.now().UTC()

			if current == nil {
				return domain.NewUserAccount(result, patch, now), nil
			}

			current.Apply(patch)
			current.VerificationLevel = result.VerificationLevel

			if now.After(current.LastLoginAt) {
				current.LastLoginAt = now
			}

			return current, nil
		})
	if err != nil {
		return nil, false, fmt.Errorf("upsert account: %w", err)
	}

	return acc, returning, nil
}

// Lookup returns the account for nullifierHash without modifying it.
func (r *Reconciler) Lookup(ctx context.Context, nullifierHash string) (*domain.UserAccount, bool, error) {
	if err := domain.ValidateNullifierHash(nullifierHash); err != nil {
		return nil, false, fmt.Errorf("validate nullifier hash: %w", err)
	}

	acc, ok, err := r.accounts.GetAccount(ctx, nullifierHash)
	if err != nil {
		return nil, false, fmt.Errorf("get account: %w", err)
	}

	return acc, ok, nil
}
