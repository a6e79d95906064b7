package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/BradenHooton/ipguard/internal/models"
)

const sweepBatchSize = 100

// ExpiredLockLister finds automatic locks old enough to expire
type ExpiredLockLister interface {
	ListAutoLockedBefore(ctx context.Context, cutoff time.Time, limit int) ([]string, error)
}

// AutoUnlocker expires a single account's automatic lock
type AutoUnlocker interface {
	CheckAutoUnlock(ctx context.Context, accountID string, now time.Time) (models.UnlockOutcome, error)
}

// UnlockSweeper periodically releases automatic locks that have run their
// course, so accounts unlock even if their owner never tries to log in.
type UnlockSweeper struct {
	locks    ExpiredLockLister
	unlocker AutoUnlocker
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Time
	stopCh   chan struct{}
}

// NewUnlockSweeper creates a new unlock sweeper
func NewUnlockSweeper(locks ExpiredLockLister, unlocker AutoUnlocker, logger *slog.Logger, interval time.Duration) *UnlockSweeper {
	return &UnlockSweeper{
		locks:    locks,
		unlocker: unlocker,
		logger:   logger,
		interval: interval,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic sweep
func (s *UnlockSweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Run immediately on startup
	s.Sweep(ctx)

	for {
		select {
		case <-ticker.C:
			s.Sweep(ctx)
		case <-s.stopCh:
			s.logger.Info("unlock sweeper stopped")
			return
		case <-ctx.Done():
			s.logger.Info("unlock sweeper context cancelled")
			return
		}
	}
}

// Sweep runs one pass and returns how many accounts were unlocked
func (s *UnlockSweeper) Sweep(ctx context.Context) int {
	sweepCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	now := s.now()
	cutoff := now.Add(-models.LockDuration)
	unlocked := 0

	for {
		ids, err := s.locks.ListAutoLockedBefore(sweepCtx, cutoff, sweepBatchSize)
		if err != nil {
			s.logger.Error("failed to list expired locks", slog.Any("error", err))
			break
		}

		released := 0
		for _, id := range ids {
			outcome, err := s.unlocker.CheckAutoUnlock(sweepCtx, id, now)
			if err != nil {
				s.logger.Error("failed to auto-unlock account", slog.String("user_id", id), slog.Any("error", err))
				continue
			}
			if outcome == models.UnlockOutcomeAutoUnlocked {
				released++
			}
		}
		unlocked += released

		// A short batch is the last one; a batch with no progress would repeat forever.
		if len(ids) < sweepBatchSize || released == 0 {
			break
		}
	}

	if unlocked > 0 {
		s.logger.Info("unlock sweep completed", slog.Int("accounts_unlocked", unlocked))
	}
	return unlocked
}

// Stop signals the sweeper to stop
func (s *UnlockSweeper) Stop() {
	close(s.stopCh)
}
