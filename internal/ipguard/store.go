package ipguard

import (
	"context"

	"github.com/BradenHooton/ipguard/internal/models"
)

// HistoryStore persists the per-account address history and lock state.
type HistoryStore interface {
	// GetHistory returns addresses in first-seen order; empty when none recorded.
	GetHistory(ctx context.Context, accountID string) ([]string, error)
	// AppendAddress is a no-op when the exact address is already recorded.
	AppendAddress(ctx context.Context, accountID, address string) error
	ClearHistory(ctx context.Context, accountID string) error
	GetLockState(ctx context.Context, accountID string) (models.LockState, error)
	SetLockState(ctx context.Context, accountID string, state models.LockState) error
}

// AtomicHistoryStore serializes read-modify-write sequences per account.
// fn receives a store whose operations all run under the account's lock.
type AtomicHistoryStore interface {
	HistoryStore
	WithAccountLock(ctx context.Context, accountID string, fn func(HistoryStore) error) error
}
