// Package lock serializes runs over one corpus with a lease file in the log
// directory.
package lock

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pubtracker/ackscan/internal/corpus"
	"github.com/pubtracker/ackscan/pkg/errclass"
	"github.com/pubtracker/ackscan/pkg/fsutil"
	"github.com/pubtracker/ackscan/pkg/logging"
	"github.com/pubtracker/ackscan/pkg/model"
	"github.com/pubtracker/ackscan/pkg/uuidutil"
)

// Manager acquires and releases the corpus run lock.
type Manager struct {
	path   string
	ttl    time.Duration
	logger *logging.Logger
	mu     sync.Mutex

	now func() time.Time
}

// NewManager creates a lock manager for c. Leases last ttl.
func NewManager(c *corpus.Corpus, ttl time.Duration, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Manager{
		path:   c.LockPath(),
		ttl:    ttl,
		logger: logger.Named("lock"),
		now:    time.Now,
	}
}

// Path returns the lock file location.
func (m *Manager) Path() string {
	return m.path
}

// Acquire takes the lock for runID. A live lease held by someone else is
// ErrLockConflict; an expired one is taken over.
func (m *Manager) Acquire(runID, purpose string) (*model.LockRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.newRecord(runID, purpose)

	// O_CREATE|O_EXCL makes acquisition atomic between processes.
	file, err := os.OpenFile(m.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if !os.IsExist(err) {
			return nil, fmt.Errorf("create lock: %w", err)
		}
		return m.takeOver(rec)
	}
	defer file.Close()

	if err := writeLock(file, rec); err != nil {
		os.Remove(m.path)
		return nil, err
	}
	m.logger.Debug("lock acquired", zap.String("run_id", runID), zap.Time("expires_at", rec.ExpiresAt))
	return rec, nil
}

func (m *Manager) takeOver(rec *model.LockRecord) (*model.LockRecord, error) {
	prev, err := readLock(m.path)
	if err != nil {
		return nil, errclass.ErrLockConflict.Wrap(err, "unreadable lock file "+m.path)
	}
	if !prev.IsExpired(m.now()) {
		return nil, errclass.ErrLockConflict.WithMessagef("corpus is locked by run %s (pid %d on %s) until %s",
			prev.RunID, prev.PID, prev.Hostname, prev.ExpiresAt.Format(time.RFC3339))
	}

	m.logger.Warn("taking over expired lock",
		zap.String("previous_run_id", prev.RunID),
		zap.Int("previous_pid", prev.PID),
		zap.Time("expired_at", prev.ExpiresAt),
	)
	if err := updateLock(m.path, rec); err != nil {
		return nil, fmt.Errorf("take over lock: %w", err)
	}
	return rec, nil
}

// Renew extends a held lease.
func (m *Manager) Renew(holderNonce string) (*model.LockRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := readLock(m.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errclass.ErrLockNotHeld.WithMessage("no lock held")
		}
		return nil, fmt.Errorf("read lock: %w", err)
	}
	if rec.HolderNonce != holderNonce {
		return nil, errclass.ErrLockNotHeld.WithMessage("nonce mismatch")
	}

	rec.ExpiresAt = m.now().UTC().Add(m.ttl)
	if err := updateLock(m.path, rec); err != nil {
		return nil, fmt.Errorf("update lock: %w", err)
	}
	return rec, nil
}

// Release frees the lock. Releasing a lock that is already gone is not an error.
func (m *Manager) Release(holderNonce string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := readLock(m.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read lock: %w", err)
	}
	if rec.HolderNonce != holderNonce {
		return errclass.ErrLockNotHeld.WithMessage("cannot release: nonce mismatch")
	}
	if err := fsutil.RemoveAndSync(m.path); err != nil {
		return fmt.Errorf("remove lock: %w", err)
	}
	return nil
}

// Status returns the current lock state and its record, if any.
func (m *Manager) Status() (model.LockState, *model.LockRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := readLock(m.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return model.LockStateFree, nil, nil
		}
		return model.LockStateFree, nil, fmt.Errorf("read lock: %w", err)
	}
	if rec.IsExpired(m.now()) {
		return model.LockStateExpired, rec, nil
	}
	return model.LockStateHeld, rec, nil
}

func (m *Manager) newRecord(runID, purpose string) *model.LockRecord {
	host, _ := os.Hostname()
	now := m.now().UTC()
	return &model.LockRecord{
		HolderNonce: uuidutil.NewV4(),
		RunID:       runID,
		Hostname:    host,
		PID:         os.Getpid(),
		AcquiredAt:  now,
		ExpiresAt:   now.Add(m.ttl),
		Purpose:     purpose,
	}
}

func readLock(path string) (*model.LockRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rec model.LockRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse lock: %w", err)
	}
	return &rec, nil
}

func writeLock(file *os.File, rec *model.LockRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal lock: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		return fmt.Errorf("write lock: %w", err)
	}
	return file.Sync()
}

func updateLock(path string, rec *model.LockRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal lock: %w", err)
	}
	return fsutil.AtomicWrite(path, data, 0644)
}
