package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/BradenHooton/ipguard/internal/models"
	"golang.org/x/sync/errgroup"
)

// AdminUserRepository is the subset of UserRepository methods needed by AdminService.
type AdminUserRepository interface {
	CountTotal(ctx context.Context) (int64, error)
	CountByRole(ctx context.Context, role string) (int64, error)
}

// AdminLockRepository is the read side of the IP history store used by the admin views.
type AdminLockRepository interface {
	CountLocked(ctx context.Context) (int64, error)
	ListLockedAccounts(ctx context.Context) ([]*models.LockedAccount, error)
	ListAutoLockedAddressLogs(ctx context.Context) ([]*models.AccountAddressLog, error)
}

// CountryLookup maps an address to an ISO country code.
type CountryLookup interface {
	CountryCode(address string) string
}

// DashboardStatsResponse contains aggregate admin metrics.
type DashboardStatsResponse struct {
	TotalUsers     int64 `json:"total_users"`
	AdminCount     int64 `json:"admin_count"`
	LockedAccounts int64 `json:"locked_accounts"`
}

// AddressEntry is one stored origin with its resolved country.
type AddressEntry struct {
	Address string `json:"ip_address"`
	Country string `json:"country"`
}

// AddressLogResponse is a row of the IP logs view.
type AddressLogResponse struct {
	UserID    string         `json:"user_id"`
	Email     string         `json:"email"`
	Name      string         `json:"name"`
	LockedAt  string         `json:"locked_at,omitempty"`
	Addresses []AddressEntry `json:"addresses"`
}

// AdminService aggregates data for the IP guard admin endpoints.
type AdminService struct {
	userRepo  AdminUserRepository
	lockRepo  AdminLockRepository
	countries CountryLookup
	logger    *slog.Logger
}

// NewAdminService creates a new AdminService. countries may be nil.
func NewAdminService(userRepo AdminUserRepository, lockRepo AdminLockRepository, countries CountryLookup, logger *slog.Logger) *AdminService {
	return &AdminService{
		userRepo:  userRepo,
		lockRepo:  lockRepo,
		countries: countries,
		logger:    logger,
	}
}

// GetDashboardStats returns user and lock counts.
func (s *AdminService) GetDashboardStats(ctx context.Context) (*DashboardStatsResponse, error) {
	var stats DashboardStatsResponse

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stats.TotalUsers, err = s.userRepo.CountTotal(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		stats.AdminCount, err = s.userRepo.CountByRole(gctx, models.RoleAdmin)
		return err
	})
	g.Go(func() error {
		var err error
		stats.LockedAccounts, err = s.lockRepo.CountLocked(gctx)
		return err
	})

	if err := g.Wait(); err != nil {
		s.logger.Error("dashboard: failed to collect ip guard stats", slog.Any("error", err))
		return nil, err
	}
	return &stats, nil
}

// ListLockedAccounts returns every locked account, manual and automatic.
func (s *AdminService) ListLockedAccounts(ctx context.Context) ([]*models.LockedAccount, error) {
	accounts, err := s.lockRepo.ListLockedAccounts(ctx)
	if err != nil {
		s.logger.Error("failed to list locked accounts", slog.Any("error", err))
		return nil, err
	}
	if accounts == nil {
		accounts = []*models.LockedAccount{}
	}
	return accounts, nil
}

// ListAddressLogs returns auto-locked accounts with their recorded origins.
func (s *AdminService) ListAddressLogs(ctx context.Context) ([]AddressLogResponse, error) {
	logs, err := s.lockRepo.ListAutoLockedAddressLogs(ctx)
	if err != nil {
		s.logger.Error("failed to list ip address logs", slog.Any("error", err))
		return nil, err
	}

	resp := make([]AddressLogResponse, 0, len(logs))
	for _, l := range logs {
		row := AddressLogResponse{
			UserID:    l.UserID,
			Email:     l.Email,
			Name:      l.Name,
			Addresses: make([]AddressEntry, 0, len(l.Addresses)),
		}
		if l.LockedAt != nil {
			row.LockedAt = l.LockedAt.UTC().Format(time.RFC3339)
		}
		for _, addr := range l.Addresses {
			row.Addresses = append(row.Addresses, AddressEntry{Address: addr, Country: s.countryOf(addr)})
		}
		resp = append(resp, row)
	}
	return resp, nil
}

func (s *AdminService) countryOf(address string) string {
	if s.countries == nil {
		return "N/A"
	}
	return s.countries.CountryCode(address)
}
