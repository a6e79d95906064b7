package services_test

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/BradenHooton/ipguard/internal/ipguard"
	"github.com/BradenHooton/ipguard/internal/models"
	pkglogger "github.com/BradenHooton/ipguard/pkg/logger"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func discardAuditLogger() *pkglogger.AuditLogger {
	return pkglogger.NewAuditLogger(discardLogger())
}

// memoryStore is an in-memory AtomicHistoryStore with per-account locking
type memoryStore struct {
	mu       sync.Mutex
	accounts map[string]*sync.Mutex
	history  map[string][]string
	locks    map[string]models.LockState

	getHistoryErr error
	setLockErr    error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		accounts: map[string]*sync.Mutex{},
		history:  map[string][]string{},
		locks:    map[string]models.LockState{},
	}
}

func (s *memoryStore) WithAccountLock(ctx context.Context, accountID string, fn func(ipguard.HistoryStore) error) error {
	s.mu.Lock()
	m, ok := s.accounts[accountID]
	if !ok {
		m = &sync.Mutex{}
		s.accounts[accountID] = m
	}
	s.mu.Unlock()

	m.Lock()
	defer m.Unlock()
	return fn(s)
}

func (s *memoryStore) GetHistory(_ context.Context, accountID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getHistoryErr != nil {
		return nil, s.getHistoryErr
	}
	return slices.Clone(s.history[accountID]), nil
}

func (s *memoryStore) AppendAddress(_ context.Context, accountID, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !slices.Contains(s.history[accountID], address) {
		s.history[accountID] = append(s.history[accountID], address)
	}
	return nil
}

func (s *memoryStore) ClearHistory(_ context.Context, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.history, accountID)
	return nil
}

func (s *memoryStore) GetLockState(_ context.Context, accountID string) (models.LockState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locks[accountID], nil
}

func (s *memoryStore) SetLockState(_ context.Context, accountID string, state models.LockState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setLockErr != nil {
		return s.setLockErr
	}
	s.locks[accountID] = state
	return nil
}

func (s *memoryStore) historyOf(accountID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.history[accountID])
}

func (s *memoryStore) lockOf(accountID string) models.LockState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locks[accountID]
}

type sentNotification struct {
	Kind      models.NotificationKind
	AccountID string
}

// recordingNotifier captures every notification it is asked to send
type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, kind models.NotificationKind, accountID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{Kind: kind, AccountID: accountID})
	return n.err
}

func (n *recordingNotifier) count(kind models.NotificationKind) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	total := 0
	for _, s := range n.sent {
		if s.Kind == kind {
			total++
		}
	}
	return total
}

// windowDebouncer mimics a SET NX EX debouncer against a controllable clock
type windowDebouncer struct {
	mu    sync.Mutex
	now   time.Time
	until map[string]time.Time
	err   error
}

func newWindowDebouncer(now time.Time) *windowDebouncer {
	return &windowDebouncer{now: now, until: map[string]time.Time{}}
}

func (d *windowDebouncer) Allow(_ context.Context, key string, window time.Duration) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return false, d.err
	}
	if exp, ok := d.until[key]; ok && d.now.Before(exp) {
		return false, nil
	}
	d.until[key] = d.now.Add(window)
	return true, nil
}

func (d *windowDebouncer) advance(by time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.now = d.now.Add(by)
}
