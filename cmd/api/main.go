package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/BradenHooton/ipguard/internal/auth"
	"github.com/BradenHooton/ipguard/internal/background"
	"github.com/BradenHooton/ipguard/internal/cache"
	"github.com/BradenHooton/ipguard/internal/config"
	"github.com/BradenHooton/ipguard/internal/database"
	"github.com/BradenHooton/ipguard/internal/geo"
	"github.com/BradenHooton/ipguard/internal/handlers"
	"github.com/BradenHooton/ipguard/internal/ipguard"
	middlewareCustom "github.com/BradenHooton/ipguard/internal/middleware"
	"github.com/BradenHooton/ipguard/internal/models"
	"github.com/BradenHooton/ipguard/internal/repositories"
	"github.com/BradenHooton/ipguard/internal/routes"
	"github.com/BradenHooton/ipguard/internal/services"
	"github.com/BradenHooton/ipguard/migrations"
	pkgauth "github.com/BradenHooton/ipguard/pkg/auth"
	pkghttp "github.com/BradenHooton/ipguard/pkg/http"
	pkglogger "github.com/BradenHooton/ipguard/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(cfg.Server.LogLevel)}))
	slog.SetDefault(logger)
	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// Initialize database
	db, err := database.NewConnection(startupCtx, &cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(startupCtx, migrations.FS); err != nil {
			logger.Error("failed to run migrations", slog.Any("error", err))
			os.Exit(1)
		}
	}

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	historyRepo := repositories.NewIPHistoryRepository(db)
	settingsRepo := repositories.NewSettingsRepository(db)

	settingsService := services.NewSettingsService(settingsRepo, logger)
	if err := settingsService.EnsureDefaults(startupCtx, cfg.IPGuard.MaxIPAddresses); err != nil {
		logger.Error("failed to seed ip guard settings", slog.Any("error", err))
		os.Exit(1)
	}

	// Unlock notification debouncing is best effort; without Redis every unlock notifies.
	var debouncer services.Debouncer
	redisClient, err := cache.NewRedisClient(startupCtx, &cfg.Redis, logger)
	if err != nil {
		logger.Warn("redis unavailable, unlock notifications will not be debounced", slog.Any("error", err))
	} else {
		defer redisClient.Close()
		debouncer = cache.NewRedisDebouncer(redisClient)
	}

	countries, err := geo.NewCountryResolver(cfg.Geo.CountryDBPath, logger)
	if err != nil {
		logger.Error("failed to open country database", slog.Any("error", err))
		os.Exit(1)
	}
	defer countries.Close()

	var notifier services.Notifier
	if cfg.Email.FromAddress == "" {
		logger.Warn("EMAIL_FROM_ADDRESS not set, account notifications disabled")
	} else {
		mailer, err := services.NewSESMailer(startupCtx, cfg.Email.AWSRegion, cfg.Email.FromAddress, logger)
		if err != nil {
			logger.Error("failed to initialize email service", slog.Any("error", err))
			os.Exit(1)
		}
		notifier = services.NewNotificationService(userRepo, settingsService, mailer, logger)
	}

	// Initialize token manager
	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenExpiry)

	auditLogger := pkglogger.NewAuditLogger(logger)
	ipConfig := pkghttp.NewIPConfig(cfg.Server.TrustedProxies)

	// Initialize services
	lockoutService := services.NewLockoutService(historyRepo, ipguard.NewClassifier(), notifier, logger, auditLogger)
	unlockService := services.NewUnlockService(historyRepo, notifier, debouncer, cfg.IPGuard.UnlockNotifyDebounce, logger, auditLogger)
	authService := services.NewAuthService(userRepo, tokenManager, lockoutService, unlockService, settingsService, logger, auditLogger)
	adminService := services.NewAdminService(userRepo, historyRepo, countries, logger)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService, ipConfig)
	adminHandler := handlers.NewAdminHandler(adminService, settingsService, unlockService)

	// Bootstrap first admin user if configured
	if err := ensureAdminUser(startupCtx, userRepo, logger); err != nil {
		logger.Error("failed to ensure admin user", slog.Any("error", err))
	}
	startupCancel()

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.SecureLogger(logger, ipConfig))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// Register routes
	routes.RegisterRoutes(router, authHandler, adminHandler, tokenManager, userRepo, ipConfig)

	// Health check with database
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.HealthCheck(r.Context()); err != nil {
			pkghttp.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "database": "down"})
			return
		}
		pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy", "database": "up"})
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start unlock sweeper
	sweeper := background.NewUnlockSweeper(historyRepo, unlockService, logger, cfg.IPGuard.UnlockSweepInterval)
	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()

	go sweeper.Start(sweepCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	sweeper.Stop()
	sweepCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ensureAdminUser creates the first admin user if ADMIN_EMAIL and ADMIN_PASSWORD are set
func ensureAdminUser(ctx context.Context, userRepo *repositories.UserRepository, logger *slog.Logger) error {
	adminEmail := os.Getenv("ADMIN_EMAIL")
	adminPassword := os.Getenv("ADMIN_PASSWORD")

	if adminEmail == "" || adminPassword == "" {
		logger.Info("no ADMIN_EMAIL or ADMIN_PASSWORD set, skipping admin user creation")
		return nil
	}

	// Check if admin already exists
	_, err := userRepo.GetByEmail(ctx, adminEmail)
	if err == nil {
		logger.Info("admin user already exists")
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to check if admin exists: %w", err)
	}

	hashedPassword, err := pkgauth.HashPassword(adminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	admin := &models.User{
		Email:        adminEmail,
		PasswordHash: hashedPassword,
		Name:         "Admin",
		Role:         models.RoleAdmin,
	}

	if _, err := userRepo.Create(ctx, admin); err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	logger.Info("admin user created successfully")
	return nil
}
