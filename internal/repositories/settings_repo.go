package repositories

import (
	"context"
	"fmt"

	"github.com/BradenHooton/ipguard/internal/database"
	"github.com/BradenHooton/ipguard/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SettingsRepository persists the single IP guard settings row
type SettingsRepository struct {
	pool *pgxpool.Pool
}

// NewSettingsRepository creates a new SettingsRepository
func NewSettingsRepository(db *database.DB) *SettingsRepository {
	return &SettingsRepository{pool: db.Pool}
}

// Get returns the stored settings or models.ErrNotFound
func (r *SettingsRepository) Get(ctx context.Context) (*models.IPGuardSettings, error) {
	query := `
		SELECT max_ip_addresses, warning_email_body, lock_email_body, unlock_email_body,
			logo_url, copyright_text, updated_at
		FROM ip_guard_settings WHERE id = 1
	`

	var s models.IPGuardSettings
	err := r.pool.QueryRow(ctx, query).Scan(
		&s.MaxIPAddresses, &s.WarningEmailBody, &s.LockEmailBody, &s.UnlockEmailBody,
		&s.LogoURL, &s.CopyrightText, &s.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &s, nil
}

// Upsert replaces every settings field
func (r *SettingsRepository) Upsert(ctx context.Context, s *models.IPGuardSettings) (*models.IPGuardSettings, error) {
	query := `
		INSERT INTO ip_guard_settings (id, max_ip_addresses, warning_email_body, lock_email_body,
			unlock_email_body, logo_url, copyright_text, updated_at)
		VALUES (1, $1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (id) DO UPDATE SET
			max_ip_addresses = EXCLUDED.max_ip_addresses,
			warning_email_body = EXCLUDED.warning_email_body,
			lock_email_body = EXCLUDED.lock_email_body,
			unlock_email_body = EXCLUDED.unlock_email_body,
			logo_url = EXCLUDED.logo_url,
			copyright_text = EXCLUDED.copyright_text,
			updated_at = NOW()
		RETURNING updated_at
	`

	saved := *s
	err := r.pool.QueryRow(ctx, query,
		s.MaxIPAddresses, s.WarningEmailBody, s.LockEmailBody, s.UnlockEmailBody,
		s.LogoURL, s.CopyrightText,
	).Scan(&saved.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to save settings: %w", database.MapPostgresError(err))
	}

	return &saved, nil
}

// EnsureDefaults inserts the settings row with the given threshold if it does not exist yet
func (r *SettingsRepository) EnsureDefaults(ctx context.Context, maxIPAddresses int) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO ip_guard_settings (id, max_ip_addresses) VALUES (1, $1) ON CONFLICT (id) DO NOTHING`,
		maxIPAddresses,
	)
	return err
}
