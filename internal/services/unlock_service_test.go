package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BradenHooton/ipguard/internal/ipguard"
	"github.com/BradenHooton/ipguard/internal/models"
	"github.com/BradenHooton/ipguard/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var lockedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newUnlockService(store *memoryStore, notifier *recordingNotifier, debouncer services.Debouncer) *services.UnlockService {
	return services.NewUnlockService(store, notifier, debouncer, time.Minute, discardLogger(), discardAuditLogger())
}

func lockedStore() *memoryStore {
	store := newMemoryStore()
	store.history[accountID] = []string{"10.0.0.1", "10.1.0.2"}
	store.locks[accountID] = models.LockedAutomatic(lockedAt)
	return store
}

func TestUnlockService_CheckAutoUnlock_Boundary(t *testing.T) {
	tests := []struct {
		name    string
		now     time.Time
		want    models.UnlockOutcome
		cleared bool
	}{
		{name: "one second before expiry", now: lockedAt.Add(604799 * time.Second), want: models.UnlockOutcomeStillLocked},
		{name: "exactly at expiry", now: lockedAt.Add(604800 * time.Second), want: models.UnlockOutcomeAutoUnlocked, cleared: true},
		{name: "long after expiry", now: lockedAt.Add(30 * 24 * time.Hour), want: models.UnlockOutcomeAutoUnlocked, cleared: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := lockedStore()
			notifier := &recordingNotifier{}

			got, err := newUnlockService(store, notifier, nil).CheckAutoUnlock(context.Background(), accountID, tt.now)

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			if tt.cleared {
				assert.False(t, store.lockOf(accountID).IsLocked())
				assert.Empty(t, store.historyOf(accountID))
				assert.Equal(t, 1, notifier.count(models.NotificationAutoUnlock))
			} else {
				assert.True(t, store.lockOf(accountID).IsAutomatic())
				assert.Len(t, store.historyOf(accountID), 2)
				assert.Empty(t, notifier.sent)
			}
		})
	}
}

func TestUnlockService_CheckAutoUnlock_NotLocked(t *testing.T) {
	store := newMemoryStore()
	store.history[accountID] = []string{"10.0.0.1"}
	notifier := &recordingNotifier{}

	got, err := newUnlockService(store, notifier, nil).CheckAutoUnlock(context.Background(), accountID, lockedAt)

	require.NoError(t, err)
	assert.Equal(t, models.UnlockOutcomeNotLocked, got)
	assert.Equal(t, []string{"10.0.0.1"}, store.historyOf(accountID))
	assert.Empty(t, notifier.sent)
}

func TestUnlockService_CheckAutoUnlock_ManualLockNeverExpires(t *testing.T) {
	store := newMemoryStore()
	store.locks[accountID] = models.LockedManual()
	notifier := &recordingNotifier{}

	got, err := newUnlockService(store, notifier, nil).CheckAutoUnlock(context.Background(), accountID, lockedAt.Add(365*24*time.Hour))

	require.NoError(t, err)
	assert.Equal(t, models.UnlockOutcomeStillLocked, got)
	assert.True(t, store.lockOf(accountID).IsManual())
}

func TestUnlockService_CheckAutoUnlock_StoreError(t *testing.T) {
	store := lockedStore()
	store.setLockErr = errors.New("write failed")
	notifier := &recordingNotifier{}

	got, err := newUnlockService(store, notifier, nil).CheckAutoUnlock(context.Background(), accountID, lockedAt.Add(models.LockDuration))

	require.Error(t, err)
	assert.Equal(t, models.UnlockOutcomeStillLocked, got)
	assert.Empty(t, notifier.sent)
}

func TestUnlockService_ManualUnlock_ClearsEverything(t *testing.T) {
	for name, state := range map[string]models.LockState{
		"automatic": models.LockedAutomatic(lockedAt),
		"manual":    models.LockedManual(),
		"unlocked":  models.Unlocked(),
	} {
		t.Run(name, func(t *testing.T) {
			store := newMemoryStore()
			store.history[accountID] = []string{"10.0.0.1", "10.1.0.2"}
			store.locks[accountID] = state
			notifier := &recordingNotifier{}

			err := newUnlockService(store, notifier, newWindowDebouncer(lockedAt)).ManualUnlock(context.Background(), accountID)

			require.NoError(t, err)
			assert.False(t, store.lockOf(accountID).IsLocked())
			assert.Empty(t, store.historyOf(accountID))
			assert.Equal(t, 1, notifier.count(models.NotificationUnlock))
		})
	}
}

func TestUnlockService_ManualUnlock_DebouncesNotification(t *testing.T) {
	store := lockedStore()
	notifier := &recordingNotifier{}
	debouncer := newWindowDebouncer(lockedAt)
	svc := newUnlockService(store, notifier, debouncer)
	ctx := context.Background()

	require.NoError(t, svc.ManualUnlock(ctx, accountID))
	debouncer.advance(30 * time.Second)
	store.history[accountID] = []string{"10.0.0.9"}
	require.NoError(t, svc.ManualUnlock(ctx, accountID))

	assert.Empty(t, store.historyOf(accountID))
	assert.Equal(t, 1, notifier.count(models.NotificationUnlock))

	debouncer.advance(31 * time.Second)
	require.NoError(t, svc.ManualUnlock(ctx, accountID))
	assert.Equal(t, 2, notifier.count(models.NotificationUnlock))
}

func TestUnlockService_ManualUnlock_DebouncerFailureStillNotifies(t *testing.T) {
	store := lockedStore()
	notifier := &recordingNotifier{}
	debouncer := newWindowDebouncer(lockedAt)
	debouncer.err = errors.New("redis: connection refused")

	err := newUnlockService(store, notifier, debouncer).ManualUnlock(context.Background(), accountID)

	require.NoError(t, err)
	assert.Equal(t, 1, notifier.count(models.NotificationUnlock))
}

func TestUnlockService_ManualLock_KeepsHistory(t *testing.T) {
	store := newMemoryStore()
	store.history[accountID] = []string{"10.0.0.1"}
	notifier := &recordingNotifier{}

	err := newUnlockService(store, notifier, nil).ManualLock(context.Background(), accountID)

	require.NoError(t, err)
	assert.True(t, store.lockOf(accountID).IsManual())
	assert.Equal(t, []string{"10.0.0.1"}, store.historyOf(accountID))
	assert.Equal(t, 1, notifier.count(models.NotificationLock))
}

func TestUnlockService_ManualLock_WaitsForAccountLock(t *testing.T) {
	store := newMemoryStore()
	notifier := &recordingNotifier{}
	svc := newUnlockService(store, notifier, nil)

	holding := make(chan struct{})
	release := make(chan struct{})
	evaluated := make(chan struct{})
	go func() {
		// Stands in for an evaluation that read Unlocked and is about to lock.
		_ = store.WithAccountLock(context.Background(), accountID, func(h ipguard.HistoryStore) error {
			close(holding)
			<-release
			return h.SetLockState(context.Background(), accountID, models.LockedAutomatic(lockedAt))
		})
		close(evaluated)
	}()
	<-holding

	done := make(chan error, 1)
	go func() { done <- svc.ManualLock(context.Background(), accountID) }()

	select {
	case <-done:
		t.Fatal("ManualLock completed while the account lock was held")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	<-evaluated
	require.NoError(t, <-done)

	assert.True(t, store.lockOf(accountID).IsManual())
	assert.Equal(t, 1, notifier.count(models.NotificationLock))
}
