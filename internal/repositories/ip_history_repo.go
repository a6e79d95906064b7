package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BradenHooton/ipguard/internal/database"
	"github.com/BradenHooton/ipguard/internal/ipguard"
	"github.com/BradenHooton/ipguard/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// IPHistoryRepository stores per-account login origins and lock flags
type IPHistoryRepository struct {
	historyQueries
	db *database.DB
}

// NewIPHistoryRepository creates a new IPHistoryRepository
func NewIPHistoryRepository(db *database.DB) *IPHistoryRepository {
	return &IPHistoryRepository{
		historyQueries: historyQueries{q: db.Pool},
		db:             db,
	}
}

// WithAccountLock runs fn in one transaction holding a transaction-scoped
// advisory lock keyed on the account, so concurrent logins for the same
// account evaluate one at a time.
func (r *IPHistoryRepository) WithAccountLock(ctx context.Context, accountID string, fn func(ipguard.HistoryStore) error) error {
	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, accountID); err != nil {
			return fmt.Errorf("failed to acquire account lock: %w", err)
		}
		return fn(&historyQueries{q: tx})
	})
}

// historyQueries implements ipguard.HistoryStore against any querier
type historyQueries struct {
	q querier
}

func (h *historyQueries) GetHistory(ctx context.Context, accountID string) ([]string, error) {
	query := `
		SELECT ip_address FROM account_ip_history
		WHERE user_id = $1
		ORDER BY seq
	`

	rows, err := h.q.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ip history: %w", err)
	}
	defer rows.Close()

	addresses := make([]string, 0)
	for rows.Next() {
		var address string
		if err := rows.Scan(&address); err != nil {
			return nil, fmt.Errorf("failed to scan ip history: %w", err)
		}
		addresses = append(addresses, address)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return addresses, nil
}

func (h *historyQueries) AppendAddress(ctx context.Context, accountID, address string) error {
	query := `
		INSERT INTO account_ip_history (user_id, ip_address)
		VALUES ($1, $2)
		ON CONFLICT (user_id, ip_address) DO NOTHING
	`

	_, err := h.q.Exec(ctx, query, accountID, address)
	return database.MapPostgresError(err)
}

func (h *historyQueries) ClearHistory(ctx context.Context, accountID string) error {
	_, err := h.q.Exec(ctx, `DELETE FROM account_ip_history WHERE user_id = $1`, accountID)
	return err
}

func (h *historyQueries) GetLockState(ctx context.Context, accountID string) (models.LockState, error) {
	query := `
		SELECT auto_locked, locked_at, manually_locked
		FROM account_lock_state WHERE user_id = $1
	`

	var autoLocked, manuallyLocked bool
	var lockedAt *time.Time
	err := h.q.QueryRow(ctx, query, accountID).Scan(&autoLocked, &lockedAt, &manuallyLocked)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Unlocked(), nil
	}
	if err != nil {
		return models.LockState{}, fmt.Errorf("failed to read lock state: %w", err)
	}

	return lockStateFromColumns(autoLocked, lockedAt, manuallyLocked), nil
}

func (h *historyQueries) SetLockState(ctx context.Context, accountID string, state models.LockState) error {
	query := `
		INSERT INTO account_lock_state (user_id, auto_locked, locked_at, manually_locked, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			auto_locked = EXCLUDED.auto_locked,
			locked_at = EXCLUDED.locked_at,
			manually_locked = EXCLUDED.manually_locked,
			updated_at = NOW()
	`

	var lockedAt *time.Time
	if state.IsAutomatic() {
		lockedAt = state.LockedAt
	}

	_, err := h.q.Exec(ctx, query, accountID, state.IsAutomatic(), lockedAt, state.IsManual())
	return database.MapPostgresError(err)
}

// lockStateFromColumns folds the two stored flags into one state.
// A manual lock wins if both flags are ever found set.
func lockStateFromColumns(autoLocked bool, lockedAt *time.Time, manuallyLocked bool) models.LockState {
	switch {
	case manuallyLocked:
		return models.LockedManual()
	case autoLocked && lockedAt != nil:
		return models.LockedAutomatic(*lockedAt)
	default:
		return models.Unlocked()
	}
}

// ListLockedAccounts returns every locked account, manual locks first
func (r *IPHistoryRepository) ListLockedAccounts(ctx context.Context) ([]*models.LockedAccount, error) {
	query := `
		SELECT u.id, u.email, u.name, s.auto_locked, s.locked_at, s.manually_locked
		FROM account_lock_state s
		JOIN users u ON u.id = s.user_id
		WHERE s.auto_locked OR s.manually_locked
		ORDER BY s.manually_locked DESC, s.locked_at DESC NULLS LAST, u.email
	`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query locked accounts: %w", err)
	}
	defer rows.Close()

	accounts := make([]*models.LockedAccount, 0)
	for rows.Next() {
		var account models.LockedAccount
		var autoLocked, manuallyLocked bool
		var lockedAt *time.Time
		if err := rows.Scan(&account.UserID, &account.Email, &account.Name, &autoLocked, &lockedAt, &manuallyLocked); err != nil {
			return nil, fmt.Errorf("failed to scan locked account: %w", err)
		}

		state := lockStateFromColumns(autoLocked, lockedAt, manuallyLocked)
		account.Reason = state.Reason
		account.LockedAt = state.LockedAt
		accounts = append(accounts, &account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return accounts, nil
}

// ListAutoLockedAddressLogs returns automatically locked accounts with their recorded addresses
func (r *IPHistoryRepository) ListAutoLockedAddressLogs(ctx context.Context) ([]*models.AccountAddressLog, error) {
	query := `
		SELECT u.id, u.email, u.name, s.locked_at,
			COALESCE(
				(SELECT array_agg(h.ip_address ORDER BY h.seq) FROM account_ip_history h WHERE h.user_id = u.id),
				'{}'
			)::text
		FROM account_lock_state s
		JOIN users u ON u.id = s.user_id
		WHERE s.auto_locked AND NOT s.manually_locked
		ORDER BY s.locked_at DESC
	`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query address logs: %w", err)
	}
	defer rows.Close()

	logs := make([]*models.AccountAddressLog, 0)
	for rows.Next() {
		var log models.AccountAddressLog
		var addresses []string
		if err := rows.Scan(&log.UserID, &log.Email, &log.Name, &log.LockedAt, pq.Array(&addresses)); err != nil {
			return nil, fmt.Errorf("failed to scan address log: %w", err)
		}
		if addresses == nil {
			addresses = []string{}
		}
		log.Addresses = addresses
		logs = append(logs, &log)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return logs, nil
}

// ListAutoLockedBefore returns IDs of accounts automatically locked at or before cutoff
func (r *IPHistoryRepository) ListAutoLockedBefore(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	query := `
		SELECT user_id FROM account_lock_state
		WHERE auto_locked AND NOT manually_locked AND locked_at <= $1
		ORDER BY locked_at
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query expired locks: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan account id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// CountLocked returns the number of accounts currently holding any lock
func (r *IPHistoryRepository) CountLocked(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM account_lock_state WHERE auto_locked OR manually_locked`,
	).Scan(&count)
	return count, err
}
