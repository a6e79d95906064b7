package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BradenHooton/ipguard/internal/handlers"
	"github.com/BradenHooton/ipguard/internal/models"
	"github.com/BradenHooton/ipguard/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	adminID  = "9f1c7a52-5d6e-4c1b-8f4e-2b7d3a9e6c10"
	targetID = "3b241101-e2bb-4255-8caf-4136c566a962"
)

// mockAdminService implements handlers.AdminServiceInterface for testing
type mockAdminService struct {
	GetDashboardStatsFunc  func(ctx context.Context) (*services.DashboardStatsResponse, error)
	ListLockedAccountsFunc func(ctx context.Context) ([]*models.LockedAccount, error)
	ListAddressLogsFunc    func(ctx context.Context) ([]services.AddressLogResponse, error)
}

func (m *mockAdminService) GetDashboardStats(ctx context.Context) (*services.DashboardStatsResponse, error) {
	if m.GetDashboardStatsFunc == nil {
		return &services.DashboardStatsResponse{}, nil
	}
	return m.GetDashboardStatsFunc(ctx)
}

func (m *mockAdminService) ListLockedAccounts(ctx context.Context) ([]*models.LockedAccount, error) {
	if m.ListLockedAccountsFunc == nil {
		return []*models.LockedAccount{}, nil
	}
	return m.ListLockedAccountsFunc(ctx)
}

func (m *mockAdminService) ListAddressLogs(ctx context.Context) ([]services.AddressLogResponse, error) {
	if m.ListAddressLogsFunc == nil {
		return []services.AddressLogResponse{}, nil
	}
	return m.ListAddressLogsFunc(ctx)
}

type mockSettingsService struct {
	GetFunc    func(ctx context.Context) (*models.IPGuardSettings, error)
	UpdateFunc func(ctx context.Context, s *models.IPGuardSettings) (*models.IPGuardSettings, error)
}

func (m *mockSettingsService) Get(ctx context.Context) (*models.IPGuardSettings, error) {
	if m.GetFunc == nil {
		return &models.IPGuardSettings{MaxIPAddresses: models.DefaultMaxIPAddresses}, nil
	}
	return m.GetFunc(ctx)
}

func (m *mockSettingsService) Update(ctx context.Context, s *models.IPGuardSettings) (*models.IPGuardSettings, error) {
	if m.UpdateFunc == nil {
		return s, nil
	}
	return m.UpdateFunc(ctx, s)
}

type mockLockService struct {
	locked   []string
	unlocked []string
	err      error
}

func (m *mockLockService) ManualLock(_ context.Context, accountID string) error {
	m.locked = append(m.locked, accountID)
	return m.err
}

func (m *mockLockService) ManualUnlock(_ context.Context, accountID string) error {
	m.unlocked = append(m.unlocked, accountID)
	return m.err
}

func newAdminHandler(admin *mockAdminService, settings *mockSettingsService, locks *mockLockService) *handlers.AdminHandler {
	if admin == nil {
		admin = &mockAdminService{}
	}
	if settings == nil {
		settings = &mockSettingsService{}
	}
	if locks == nil {
		locks = &mockLockService{}
	}
	return handlers.NewAdminHandler(admin, settings, locks)
}

// ── dashboard and listings ────────────────────────────────────────────────────

func TestGetDashboardStats_Success_Returns200(t *testing.T) {
	admin := &mockAdminService{
		GetDashboardStatsFunc: func(context.Context) (*services.DashboardStatsResponse, error) {
			return &services.DashboardStatsResponse{TotalUsers: 100, AdminCount: 3, LockedAccounts: 7}, nil
		},
	}
	h := newAdminHandler(admin, nil, nil)

	w := httptest.NewRecorder()
	h.GetDashboardStats(w, httptest.NewRequest(http.MethodGet, "/admin/ip-guard/stats", nil))

	var resp services.DashboardStatsResponse
	handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.Equal(t, int64(100), resp.TotalUsers)
	assert.Equal(t, int64(7), resp.LockedAccounts)
}

func TestGetDashboardStats_ServiceError_Returns500(t *testing.T) {
	admin := &mockAdminService{
		GetDashboardStatsFunc: func(context.Context) (*services.DashboardStatsResponse, error) {
			return nil, errors.New("database connection lost")
		},
	}
	h := newAdminHandler(admin, nil, nil)

	w := httptest.NewRecorder()
	h.GetDashboardStats(w, httptest.NewRequest(http.MethodGet, "/admin/ip-guard/stats", nil))

	handlers.AssertErrorResponse(t, w, http.StatusInternalServerError, "internal_error")
}

func TestListLockedAccounts_Returns200(t *testing.T) {
	lockedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	admin := &mockAdminService{
		ListLockedAccountsFunc: func(context.Context) ([]*models.LockedAccount, error) {
			return []*models.LockedAccount{
				{UserID: targetID, Email: "a@example.com", Reason: models.LockReasonAutomatic, LockedAt: &lockedAt},
				{UserID: adminID, Email: "b@example.com", Reason: models.LockReasonManual},
			}, nil
		},
	}
	h := newAdminHandler(admin, nil, nil)

	w := httptest.NewRecorder()
	h.ListLockedAccounts(w, httptest.NewRequest(http.MethodGet, "/admin/ip-guard/locked", nil))

	var resp struct {
		Accounts []models.LockedAccount `json:"accounts"`
		Count    int                    `json:"count"`
	}
	handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, models.LockReasonManual, resp.Accounts[1].Reason)
}

func TestListAddressLogs_ServiceError_Returns500(t *testing.T) {
	admin := &mockAdminService{
		ListAddressLogsFunc: func(context.Context) ([]services.AddressLogResponse, error) {
			return nil, errors.New("query timeout")
		},
	}
	h := newAdminHandler(admin, nil, nil)

	w := httptest.NewRecorder()
	h.ListAddressLogs(w, httptest.NewRequest(http.MethodGet, "/admin/ip-guard/logs", nil))

	handlers.AssertErrorResponse(t, w, http.StatusInternalServerError, "internal_error")
}

// ── settings ──────────────────────────────────────────────────────────────────

func TestGetSettings_Returns200(t *testing.T) {
	h := newAdminHandler(nil, nil, nil)

	w := httptest.NewRecorder()
	h.GetSettings(w, httptest.NewRequest(http.MethodGet, "/admin/ip-guard/settings", nil))

	var resp models.IPGuardSettings
	handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.Equal(t, models.DefaultMaxIPAddresses, resp.MaxIPAddresses)
}

func TestUpdateSettings_Success(t *testing.T) {
	var saved *models.IPGuardSettings
	settings := &mockSettingsService{
		UpdateFunc: func(_ context.Context, s *models.IPGuardSettings) (*models.IPGuardSettings, error) {
			saved = s
			return s, nil
		},
	}
	h := newAdminHandler(nil, settings, nil)

	req := handlers.NewTestRequest(t, http.MethodPut, "/admin/ip-guard/settings", handlers.UpdateSettingsRequest{
		MaxIPAddresses: 3,
		LockEmailBody:  "Your account was locked.",
		LogoURL:        "https://example.com/logo.png",
	})
	w := httptest.NewRecorder()
	h.UpdateSettings(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, saved)
	assert.Equal(t, 3, saved.MaxIPAddresses)
	assert.Equal(t, "Your account was locked.", saved.LockEmailBody)
}

func TestUpdateSettings_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		body handlers.UpdateSettingsRequest
	}{
		{"zero threshold", handlers.UpdateSettingsRequest{MaxIPAddresses: 0}},
		{"negative threshold", handlers.UpdateSettingsRequest{MaxIPAddresses: -2}},
		{"bad logo url", handlers.UpdateSettingsRequest{MaxIPAddresses: 2, LogoURL: "not a url"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newAdminHandler(nil, nil, nil)

			w := httptest.NewRecorder()
			h.UpdateSettings(w, handlers.NewTestRequest(t, http.MethodPut, "/admin/ip-guard/settings", tt.body))

			handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
		})
	}
}

// ── lock actions ──────────────────────────────────────────────────────────────

func TestUnlockAccount_Success(t *testing.T) {
	locks := &mockLockService{}
	h := newAdminHandler(nil, nil, locks)

	req := httptest.NewRequest(http.MethodPost, "/admin/ip-guard/accounts/"+targetID+"/unlock", nil)
	req = handlers.WithAdminContext(handlers.WithURLParam(req, "id", targetID), adminID, "admin@example.com")
	w := httptest.NewRecorder()
	h.UnlockAccount(w, req)

	var resp handlers.AccountActionResponse
	handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.Equal(t, "unlocked", resp.Status)
	assert.Equal(t, []string{targetID}, locks.unlocked)
}

func TestLockAccount_Success(t *testing.T) {
	locks := &mockLockService{}
	h := newAdminHandler(nil, nil, locks)

	req := httptest.NewRequest(http.MethodPost, "/admin/ip-guard/accounts/"+targetID+"/lock", nil)
	req = handlers.WithAdminContext(handlers.WithURLParam(req, "id", targetID), adminID, "admin@example.com")
	w := httptest.NewRecorder()
	h.LockAccount(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{targetID}, locks.locked)
}

func TestAccountActions_Errors(t *testing.T) {
	tests := []struct {
		name       string
		id         string
		serviceErr error
		wantStatus int
		wantCode   string
	}{
		{"invalid id", "not-a-uuid", nil, http.StatusBadRequest, "bad_request"},
		{"own account", adminID, nil, http.StatusForbidden, "forbidden"},
		{"unknown account", targetID, models.ErrNotFound, http.StatusNotFound, "not_found"},
		{"store failure", targetID, errors.New("db down"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			locks := &mockLockService{err: tt.serviceErr}
			h := newAdminHandler(nil, nil, locks)

			req := httptest.NewRequest(http.MethodPost, "/admin/ip-guard/accounts/"+tt.id+"/lock", nil)
			req = handlers.WithAdminContext(handlers.WithURLParam(req, "id", tt.id), adminID, "admin@example.com")
			w := httptest.NewRecorder()
			h.LockAccount(w, req)

			handlers.AssertErrorResponse(t, w, tt.wantStatus, tt.wantCode)
		})
	}
}
