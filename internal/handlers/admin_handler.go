package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/BradenHooton/ipguard/internal/auth"
	"github.com/BradenHooton/ipguard/internal/models"
	"github.com/BradenHooton/ipguard/internal/services"
	pkghttp "github.com/BradenHooton/ipguard/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// AdminServiceInterface defines the dashboard and listing contract.
type AdminServiceInterface interface {
	GetDashboardStats(ctx context.Context) (*services.DashboardStatsResponse, error)
	ListLockedAccounts(ctx context.Context) ([]*models.LockedAccount, error)
	ListAddressLogs(ctx context.Context) ([]services.AddressLogResponse, error)
}

// SettingsServiceInterface reads and replaces the IP guard settings.
type SettingsServiceInterface interface {
	Get(ctx context.Context) (*models.IPGuardSettings, error)
	Update(ctx context.Context, settings *models.IPGuardSettings) (*models.IPGuardSettings, error)
}

// LockServiceInterface applies administrative lock changes.
type LockServiceInterface interface {
	ManualLock(ctx context.Context, accountID string) error
	ManualUnlock(ctx context.Context, accountID string) error
}

// AdminHandler handles IP guard administration requests.
type AdminHandler struct {
	service  AdminServiceInterface
	settings SettingsServiceInterface
	locks    LockServiceInterface
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(service AdminServiceInterface, settings SettingsServiceInterface, locks LockServiceInterface) *AdminHandler {
	return &AdminHandler{service: service, settings: settings, locks: locks}
}

// UpdateSettingsRequest represents the request body for PUT /admin/ip-guard/settings
type UpdateSettingsRequest struct {
	MaxIPAddresses   int    `json:"max_ip_addresses" validate:"required,gte=1"`
	WarningEmailBody string `json:"warning_email_body" validate:"max=20000"`
	LockEmailBody    string `json:"lock_email_body" validate:"max=20000"`
	UnlockEmailBody  string `json:"unlock_email_body" validate:"max=20000"`
	LogoURL          string `json:"logo_url" validate:"omitempty,url"`
	CopyrightText    string `json:"copyright_text" validate:"max=500"`
}

// AccountActionResponse acknowledges a lock or unlock request.
type AccountActionResponse struct {
	UserID string `json:"user_id"`
	Status string `json:"status"`
}

// GetDashboardStats handles GET /admin/ip-guard/stats
func (h *AdminHandler) GetDashboardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetDashboardStats(r.Context())
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to retrieve dashboard stats")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, stats)
}

// ListLockedAccounts handles GET /admin/ip-guard/locked
func (h *AdminHandler) ListLockedAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.service.ListLockedAccounts(r.Context())
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to retrieve locked accounts")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"accounts": accounts,
		"count":    len(accounts),
	})
}

// ListAddressLogs handles GET /admin/ip-guard/logs
func (h *AdminHandler) ListAddressLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := h.service.ListAddressLogs(r.Context())
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to retrieve IP logs")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"logs":  logs,
		"count": len(logs),
	})
}

// GetSettings handles GET /admin/ip-guard/settings
func (h *AdminHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settings.Get(r.Context())
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to retrieve settings")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, settings)
}

// UpdateSettings handles PUT /admin/ip-guard/settings
func (h *AdminHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req UpdateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	saved, err := h.settings.Update(r.Context(), &models.IPGuardSettings{
		MaxIPAddresses:   req.MaxIPAddresses,
		WarningEmailBody: req.WarningEmailBody,
		LockEmailBody:    req.LockEmailBody,
		UnlockEmailBody:  req.UnlockEmailBody,
		LogoURL:          req.LogoURL,
		CopyrightText:    req.CopyrightText,
	})
	if err != nil {
		if errors.Is(err, models.ErrInvalidThreshold) {
			pkghttp.WriteBadRequest(w, "max_ip_addresses must be at least 1")
			return
		}
		pkghttp.WriteInternalError(w, "Failed to save settings")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, saved)
}

// LockAccount handles POST /admin/ip-guard/accounts/{id}/lock
func (h *AdminHandler) LockAccount(w http.ResponseWriter, r *http.Request) {
	h.accountAction(w, r, h.locks.ManualLock, "locked")
}

// UnlockAccount handles POST /admin/ip-guard/accounts/{id}/unlock
func (h *AdminHandler) UnlockAccount(w http.ResponseWriter, r *http.Request) {
	h.accountAction(w, r, h.locks.ManualUnlock, "unlocked")
}

func (h *AdminHandler) accountAction(w http.ResponseWriter, r *http.Request, action func(context.Context, string) error, status string) {
	accountID := chi.URLParam(r, "id")
	if _, err := uuid.Parse(accountID); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid account ID")
		return
	}

	if claims := auth.GetUserFromContext(r); claims != nil && claims.UserID == accountID {
		pkghttp.WriteForbidden(w, "Cannot change the lock state of your own account")
		return
	}

	if err := action(r.Context(), accountID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Account not found")
			return
		}
		pkghttp.WriteInternalError(w, "Failed to update account lock state")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, AccountActionResponse{UserID: accountID, Status: status})
}
