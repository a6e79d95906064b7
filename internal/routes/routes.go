package routes

import (
	"github.com/BradenHooton/ipguard/internal/auth"
	"github.com/BradenHooton/ipguard/internal/handlers"
	"github.com/BradenHooton/ipguard/internal/middleware"
	"github.com/BradenHooton/ipguard/internal/models"
	pkghttp "github.com/BradenHooton/ipguard/pkg/http"
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	adminHandler *handlers.AdminHandler,
	tokenManager *auth.TokenManager,
	userRepo auth.UserRepository,
	ipConfig *pkghttp.IPConfig,
) {
	// Public routes - no authentication required
	router.With(middleware.RateLimitByIP(middleware.DefaultAuthRateLimit(), ipConfig)).Post("/auth/login", authHandler.Login)

	// Admin-only routes
	router.Route("/admin/ip-guard", func(r chi.Router) {
		r.Use(auth.AuthMiddleware(tokenManager))
		r.Use(auth.RequireRole(userRepo, models.RoleAdmin))

		r.Get("/stats", adminHandler.GetDashboardStats)
		r.Get("/locked", adminHandler.ListLockedAccounts)
		r.Get("/logs", adminHandler.ListAddressLogs)
		r.Get("/settings", adminHandler.GetSettings)
		r.Put("/settings", adminHandler.UpdateSettings)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimitByUserID(middleware.DefaultAdminActionRateLimit()))
			r.Post("/accounts/{id}/lock", adminHandler.LockAccount)
			r.Post("/accounts/{id}/unlock", adminHandler.UnlockAccount)
		})
	})
}
