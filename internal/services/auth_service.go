package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/BradenHooton/ipguard/internal/auth"
	"github.com/BradenHooton/ipguard/internal/models"
	pkgauth "github.com/BradenHooton/ipguard/pkg/auth"
	pkglogger "github.com/BradenHooton/ipguard/pkg/logger"
)

// UserRepository defines the user lookups needed to authenticate
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// LoginEvaluator decides whether a login origin is acceptable
type LoginEvaluator interface {
	Evaluate(ctx context.Context, accountID, candidate string, maxAddresses int) (models.Decision, error)
}

// AutoUnlocker expires automatic locks
type AutoUnlocker interface {
	CheckAutoUnlock(ctx context.Context, accountID string, now time.Time) (models.UnlockOutcome, error)
}

// ThresholdSource provides the live distinct-address threshold
type ThresholdSource interface {
	MaxIPAddresses(ctx context.Context) (int, error)
}

// AuthService handles authentication business logic
type AuthService struct {
	repo        UserRepository
	tm          *auth.TokenManager
	evaluator   LoginEvaluator
	unlocker    AutoUnlocker
	thresholds  ThresholdSource
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
	now         func() time.Time
}

// NewAuthService creates a new AuthService
func NewAuthService(
	repo UserRepository,
	tm *auth.TokenManager,
	evaluator LoginEvaluator,
	unlocker AutoUnlocker,
	thresholds ThresholdSource,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *AuthService {
	return &AuthService{
		repo:        repo,
		tm:          tm,
		evaluator:   evaluator,
		unlocker:    unlocker,
		thresholds:  thresholds,
		logger:      logger,
		auditLogger: auditLogger,
		now:         time.Now,
	}
}

// UserResponse represents a user in the HTTP response
type UserResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// AuthResponse represents the response from a successful login
type AuthResponse struct {
	AccessToken    string        `json:"access_token"`
	User           *UserResponse `json:"user"`
	IPGuardWarning bool          `json:"ip_guard_warning"`
}

// Login authenticates a user, runs the IP guard for unprivileged accounts
// and returns an access token.
func (s *AuthService) Login(ctx context.Context, email, password, clientIP string) (*AuthResponse, error) {
	if email = strings.ToLower(strings.TrimSpace(email)); email == "" {
		s.logger.Warn("login attempt with empty email")
		return nil, models.ErrUnauthorized
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("login failed: invalid credentials")
			s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
				EventType:     pkglogger.EventLoginFailed,
				IPAddress:     clientIP,
				FailureReason: "invalid_credentials",
			})
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to get user by email", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := pkgauth.ComparePassword(user.PasswordHash, password); err != nil {
		s.logger.Info("login failed: invalid credentials")
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     pkglogger.EventLoginFailed,
			UserID:        user.ID,
			IPAddress:     clientIP,
			FailureReason: "invalid_credentials",
		})
		return nil, models.ErrUnauthorized
	}

	warned := false
	if !user.IsPrivileged() {
		warned, err = s.guard(ctx, user, clientIP)
		if err != nil {
			return nil, err
		}
	}

	accessToken, err := s.tm.GenerateAccessToken(user.ID, user.Email, user.Role)
	if err != nil {
		s.logger.Error("failed to generate access token", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("user logged in", slog.String("user_id", user.ID))
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: pkglogger.EventLoginSuccess,
		UserID:    user.ID,
		IPAddress: clientIP,
		Success:   true,
	})

	return &AuthResponse{
		AccessToken:    accessToken,
		User:           userModelToResponse(user),
		IPGuardWarning: warned,
	}, nil
}

// guard enforces the lock state and evaluates the login origin. It fails
// closed on lock state errors and open on evaluation errors.
func (s *AuthService) guard(ctx context.Context, user *models.User, clientIP string) (bool, error) {
	outcome, err := s.unlocker.CheckAutoUnlock(ctx, user.ID, s.now())
	if err != nil {
		s.logger.Error("failed to check lock state", slog.String("user_id", user.ID), slog.Any("error", err))
		return false, models.ErrInternalServer
	}
	if outcome == models.UnlockOutcomeStillLocked {
		s.rejectLocked(user.ID, clientIP)
		return false, models.ErrAccountLocked
	}

	maxAddresses, err := s.thresholds.MaxIPAddresses(ctx)
	if err != nil {
		s.logger.Error("failed to read ip guard threshold, skipping evaluation",
			slog.String("user_id", user.ID), slog.Any("error", err))
		return false, nil
	}

	decision, err := s.evaluator.Evaluate(ctx, user.ID, clientIP, maxAddresses)
	if err != nil {
		s.logger.Error("ip guard evaluation failed, allowing login",
			slog.String("user_id", user.ID), slog.Any("error", err))
		return false, nil
	}

	switch decision {
	case models.DecisionLock:
		s.rejectLocked(user.ID, clientIP)
		return false, models.ErrAccountLocked
	case models.DecisionWarn:
		return true, nil
	}
	return false, nil
}

func (s *AuthService) rejectLocked(userID, clientIP string) {
	s.logger.Info("login blocked: account locked", slog.String("user_id", userID))
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType:     pkglogger.EventLoginFailed,
		UserID:        userID,
		IPAddress:     clientIP,
		FailureReason: "account_locked",
	})
}

func userModelToResponse(user *models.User) *UserResponse {
	return &UserResponse{
		ID:        user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Role:      user.Role,
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
		UpdatedAt: user.UpdatedAt.Format(time.RFC3339),
	}
}
