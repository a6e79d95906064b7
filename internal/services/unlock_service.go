package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/ipguard/internal/ipguard"
	"github.com/BradenHooton/ipguard/internal/models"
	pkglogger "github.com/BradenHooton/ipguard/pkg/logger"
)

// Debouncer grants at most one pass per key per window
type Debouncer interface {
	Allow(ctx context.Context, key string, window time.Duration) (bool, error)
}

// UnlockService handles automatic expiry of locks and administrative lock changes
type UnlockService struct {
	store          ipguard.AtomicHistoryStore
	notifier       Notifier
	debouncer      Debouncer
	debounceWindow time.Duration
	logger         *slog.Logger
	auditLogger    *pkglogger.AuditLogger
}

// NewUnlockService creates a new UnlockService. debounceWindow bounds how
// often a manual unlock notification can be sent for one account.
func NewUnlockService(
	store ipguard.AtomicHistoryStore,
	notifier Notifier,
	debouncer Debouncer,
	debounceWindow time.Duration,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *UnlockService {
	return &UnlockService{
		store:          store,
		notifier:       notifier,
		debouncer:      debouncer,
		debounceWindow: debounceWindow,
		logger:         logger,
		auditLogger:    auditLogger,
	}
}

// CheckAutoUnlock clears an automatic lock once models.LockDuration has
// elapsed since it was taken. Manual locks never expire.
func (s *UnlockService) CheckAutoUnlock(ctx context.Context, accountID string, now time.Time) (models.UnlockOutcome, error) {
	outcome := models.UnlockOutcomeStillLocked

	err := s.store.WithAccountLock(ctx, accountID, func(store ipguard.HistoryStore) error {
		state, err := store.GetLockState(ctx, accountID)
		if err != nil {
			return fmt.Errorf("failed to read lock state: %w", err)
		}

		if !state.IsLocked() {
			outcome = models.UnlockOutcomeNotLocked
			return nil
		}
		if !state.IsAutomatic() || now.Sub(*state.LockedAt) < models.LockDuration {
			return nil
		}

		if err := store.ClearHistory(ctx, accountID); err != nil {
			return fmt.Errorf("failed to clear ip history: %w", err)
		}
		if err := store.SetLockState(ctx, accountID, models.Unlocked()); err != nil {
			return fmt.Errorf("failed to unlock account: %w", err)
		}
		outcome = models.UnlockOutcomeAutoUnlocked
		return nil
	})
	if err != nil {
		return models.UnlockOutcomeStillLocked, err
	}

	if outcome == models.UnlockOutcomeAutoUnlocked {
		s.logger.Info("account automatically unlocked", slog.String("user_id", accountID))
		s.auditLogger.LogLockEvent(pkglogger.AuditEvent{EventType: pkglogger.EventAutoUnlock, UserID: accountID})
		dispatch(ctx, s.notifier, s.logger, models.NotificationAutoUnlock, accountID)
	}

	return outcome, nil
}

// ManualUnlock clears history and every lock flag regardless of the current
// state. Repeated calls keep clearing; the unlock notification is sent at
// most once per account per debounce window.
func (s *UnlockService) ManualUnlock(ctx context.Context, accountID string) error {
	err := s.store.WithAccountLock(ctx, accountID, func(store ipguard.HistoryStore) error {
		if err := store.ClearHistory(ctx, accountID); err != nil {
			return fmt.Errorf("failed to clear ip history: %w", err)
		}
		if err := store.SetLockState(ctx, accountID, models.Unlocked()); err != nil {
			return fmt.Errorf("failed to unlock account: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("account manually unlocked", slog.String("user_id", accountID))
	s.auditLogger.LogLockEvent(pkglogger.AuditEvent{EventType: pkglogger.EventManualUnlock, UserID: accountID})

	if s.shouldNotifyUnlock(ctx, accountID) {
		dispatch(ctx, s.notifier, s.logger, models.NotificationUnlock, accountID)
	}
	return nil
}

// ManualLock places an administrative lock. History is left as is.
// The write waits for any in-flight evaluation of the account, so a
// concurrent automatic lock cannot replace it.
func (s *UnlockService) ManualLock(ctx context.Context, accountID string) error {
	err := s.store.WithAccountLock(ctx, accountID, func(store ipguard.HistoryStore) error {
		if err := store.SetLockState(ctx, accountID, models.LockedManual()); err != nil {
			return fmt.Errorf("failed to lock account: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("account manually locked", slog.String("user_id", accountID))
	s.auditLogger.LogLockEvent(pkglogger.AuditEvent{EventType: pkglogger.EventManualLock, UserID: accountID})
	dispatch(ctx, s.notifier, s.logger, models.NotificationLock, accountID)
	return nil
}

// shouldNotifyUnlock consults the debouncer; if it is unavailable the
// notification goes out rather than being silently dropped.
func (s *UnlockService) shouldNotifyUnlock(ctx context.Context, accountID string) bool {
	if s.debouncer == nil {
		return true
	}

	allowed, err := s.debouncer.Allow(ctx, "unlock:"+accountID, s.debounceWindow)
	if err != nil {
		s.logger.Warn("unlock debounce unavailable", slog.String("user_id", accountID), slog.Any("error", err))
		return true
	}
	if !allowed {
		s.logger.Info("unlock notification suppressed by debounce window", slog.String("user_id", accountID))
	}
	return allowed
}
