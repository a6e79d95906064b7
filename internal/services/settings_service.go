package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BradenHooton/ipguard/internal/models"
)

// SettingsRepository persists the IP guard settings row
type SettingsRepository interface {
	Get(ctx context.Context) (*models.IPGuardSettings, error)
	Upsert(ctx context.Context, s *models.IPGuardSettings) (*models.IPGuardSettings, error)
	EnsureDefaults(ctx context.Context, maxIPAddresses int) error
}

// SettingsService exposes the administrator-editable IP guard policy
type SettingsService struct {
	repo   SettingsRepository
	logger *slog.Logger
}

// NewSettingsService creates a new SettingsService
func NewSettingsService(repo SettingsRepository, logger *slog.Logger) *SettingsService {
	return &SettingsService{repo: repo, logger: logger}
}

// Get returns the stored settings, or defaults when nothing has been saved
func (s *SettingsService) Get(ctx context.Context) (*models.IPGuardSettings, error) {
	settings, err := s.repo.Get(ctx)
	if errors.Is(err, models.ErrNotFound) {
		return &models.IPGuardSettings{MaxIPAddresses: models.DefaultMaxIPAddresses}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load ip guard settings: %w", err)
	}
	return settings, nil
}

// MaxIPAddresses returns the live threshold. It is read on every call so
// administrative changes apply to the next decision.
func (s *SettingsService) MaxIPAddresses(ctx context.Context) (int, error) {
	settings, err := s.Get(ctx)
	if err != nil {
		return 0, err
	}
	if settings.MaxIPAddresses < 1 {
		return models.DefaultMaxIPAddresses, nil
	}
	return settings.MaxIPAddresses, nil
}

// Update replaces the settings. The threshold must be at least 1.
func (s *SettingsService) Update(ctx context.Context, settings *models.IPGuardSettings) (*models.IPGuardSettings, error) {
	if settings.MaxIPAddresses < 1 {
		return nil, models.ErrInvalidThreshold
	}

	settings.LogoURL = strings.TrimSpace(settings.LogoURL)
	settings.CopyrightText = strings.TrimSpace(settings.CopyrightText)

	saved, err := s.repo.Upsert(ctx, settings)
	if err != nil {
		s.logger.Error("failed to save ip guard settings", slog.Any("error", err))
		return nil, err
	}

	s.logger.Info("ip guard settings updated", slog.Int("max_ip_addresses", saved.MaxIPAddresses))
	return saved, nil
}

// EnsureDefaults seeds the settings row with the configured threshold
func (s *SettingsService) EnsureDefaults(ctx context.Context, maxIPAddresses int) error {
	if maxIPAddresses < 1 {
		return models.ErrInvalidThreshold
	}
	if err := s.repo.EnsureDefaults(ctx, maxIPAddresses); err != nil {
		return fmt.Errorf("failed to seed ip guard settings: %w", err)
	}
	return nil
}
