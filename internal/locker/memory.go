package locker

import (
	"context"
	"sync"
	"time"
)

// MemoryLocker is a keyed mutex for single-process deployments. ttl is
// ignored; leases live until released.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]chan struct{}
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: map[string]chan struct{}{}}
}

func (l *MemoryLocker) Acquire(ctx context.Context, key string, _ time.Duration, wait time.Duration) (Lease, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	for {
		l.mu.Lock()
		ch, busy := l.held[key]
		if !busy {
			ch = make(chan struct{})
			l.held[key] = ch
			l.mu.Unlock()
			return &memoryLease{locker: l, key: key, ch: ch}, nil
		}
		l.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, ErrNotAcquired
		}
	}
}

type memoryLease struct {
	locker *MemoryLocker
	key    string
	ch     chan struct{}
	once   sync.Once
}

func (l *memoryLease) Release(context.Context) error {
	l.once.Do(func() {
		l.locker.mu.Lock()
		if l.locker.held[l.key] == l.ch {
			delete(l.locker.held, l.key)
		}
		l.locker.mu.Unlock()
		close(l.ch)
	})
	return nil
}
