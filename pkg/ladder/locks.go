package ladder

import (
	"errors"
	"sync"
	"time"
)

// ErrLockTimeout is returned when a rating row lock cannot be acquired
// within the configured window. Callers treat it as transient and retriable.
var ErrLockTimeout = errors.New("rating row lock timeout")

// RowLocks serializes writers per rating row id. SQLite has no SELECT FOR
// UPDATE, so row-level mutual exclusion lives here, in process, in front of
// the transaction.
type RowLocks struct {
	mu   sync.Mutex
	held map[int64]chan struct{}
}

// NewRowLocks returns an empty lock table.
func NewRowLocks() *RowLocks {
	return &RowLocks{held: make(map[int64]chan struct{})}
}

// LockPair acquires both row locks and returns a release function. This is
// the single place that orders multi-row lock acquisition: ascending id,
// always. The timeout covers the pair, not each row.
func (l *RowLocks) LockPair(a, b int64, timeout time.Duration) (func(), error) {
	first, second := a, b
	if second < first {
		first, second = second, first
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	if err := l.acquire(first, timer); err != nil {
		return nil, err
	}
	if second != first {
		if err := l.acquire(second, timer); err != nil {
			l.release(first)
			return nil, err
		}
	}
	return func() {
		if second != first {
			l.release(second)
		}
		l.release(first)
	}, nil
}

func (l *RowLocks) acquire(id int64, timer *time.Timer) error {
	for {
		l.mu.Lock()
		holder, held := l.held[id]
		if !held {
			l.held[id] = make(chan struct{})
			l.mu.Unlock()
			return nil
		}
		l.mu.Unlock()

		select {
		case <-holder:
			// Holder released; race the other waiters for it.
		case <-timer.C:
			return ErrLockTimeout
		}
	}
}

func (l *RowLocks) release(id int64) {
	l.mu.Lock()
	holder := l.held[id]
	delete(l.held, id)
	l.mu.Unlock()
	close(holder)
}
