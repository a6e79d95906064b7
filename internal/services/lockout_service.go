package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/BradenHooton/ipguard/internal/ipguard"
	"github.com/BradenHooton/ipguard/internal/models"
	pkglogger "github.com/BradenHooton/ipguard/pkg/logger"
)

// AddressClassifier decides whether a history looks like a single origin
type AddressClassifier interface {
	GroupsAreSimilar(addresses []string) bool
}

// Notifier delivers account notifications. Delivery is best-effort: callers
// log failures and never roll back state because of them.
type Notifier interface {
	Notify(ctx context.Context, kind models.NotificationKind, accountID string) error
}

// LockoutService is the IP-diversity lockout decision engine
type LockoutService struct {
	store       ipguard.AtomicHistoryStore
	classifier  AddressClassifier
	notifier    Notifier
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
	now         func() time.Time
}

// NewLockoutService creates a new LockoutService
func NewLockoutService(
	store ipguard.AtomicHistoryStore,
	classifier AddressClassifier,
	notifier Notifier,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *LockoutService {
	return &LockoutService{
		store:       store,
		classifier:  classifier,
		notifier:    notifier,
		logger:      logger,
		auditLogger: auditLogger,
		now:         time.Now,
	}
}

// Evaluate records candidate in the account's history and decides whether
// the login may proceed.
//
// The caller must only invoke Evaluate for unprivileged, currently unlocked
// accounts. An absent or malformed candidate leaves history untouched and
// yields DecisionAllow. maxAddresses is read by the caller on every call and
// is expected to be at least 1.
func (s *LockoutService) Evaluate(ctx context.Context, accountID, candidate string, maxAddresses int) (models.Decision, error) {
	addr, ok := ipguard.ParseAddress(candidate)
	if !ok {
		s.logger.Info("ip guard skipped: no usable client address", slog.String("user_id", accountID))
		return models.DecisionAllow, nil
	}
	address := addr.String()

	decision := models.DecisionAllow
	var pending []models.NotificationKind
	var historySize int

	err := s.store.WithAccountLock(ctx, accountID, func(store ipguard.HistoryStore) error {
		history, err := store.GetHistory(ctx, accountID)
		if err != nil {
			return fmt.Errorf("failed to load ip history: %w", err)
		}

		appended := false
		if !slices.Contains(history, address) {
			if err := store.AppendAddress(ctx, accountID, address); err != nil {
				return fmt.Errorf("failed to append ip address: %w", err)
			}
			history = append(history, address)
			appended = true
		}
		historySize = len(history)

		allSimilar := s.classifier.GroupsAreSimilar(history)

		// Only the call that grows the history to one below the threshold
		// warns; later logins from known addresses keep the same length.
		if appended && len(history) == maxAddresses-1 {
			decision = models.DecisionWarn
			pending = append(pending, models.NotificationWarn)
		}

		if !allSimilar && len(history) >= maxAddresses {
			decision = models.DecisionLock

			state, err := store.GetLockState(ctx, accountID)
			if err != nil {
				return fmt.Errorf("failed to read lock state: %w", err)
			}
			if state.IsLocked() {
				return nil
			}

			if err := store.SetLockState(ctx, accountID, models.LockedAutomatic(s.now())); err != nil {
				return fmt.Errorf("failed to lock account: %w", err)
			}
			pending = append(pending, models.NotificationLock)
		}

		return nil
	})
	if err != nil {
		s.logger.Error("ip guard evaluation failed", slog.String("user_id", accountID), slog.Any("error", err))
		return models.DecisionAllow, err
	}

	for _, kind := range pending {
		s.audit(kind, accountID, address, historySize, maxAddresses)
		dispatch(ctx, s.notifier, s.logger, kind, accountID)
	}

	return decision, nil
}

func (s *LockoutService) audit(kind models.NotificationKind, accountID, address string, historySize, maxAddresses int) {
	eventType := pkglogger.EventIPWarning
	if kind == models.NotificationLock {
		eventType = pkglogger.EventAutoLock
	}

	s.auditLogger.LogLockEvent(pkglogger.AuditEvent{
		EventType: eventType,
		UserID:    accountID,
		IPAddress: address,
		Metadata: map[string]string{
			"history_size":     strconv.Itoa(historySize),
			"max_ip_addresses": strconv.Itoa(maxAddresses),
		},
	})
}

// dispatch sends a notification and logs, rather than returns, any failure
func dispatch(ctx context.Context, notifier Notifier, logger *slog.Logger, kind models.NotificationKind, accountID string) {
	if notifier == nil {
		return
	}
	if err := notifier.Notify(ctx, kind, accountID); err != nil {
		logger.Warn("failed to send ip guard notification",
			slog.String("user_id", accountID),
			slog.String("kind", string(kind)),
			slog.Any("error", err))
	}
}
