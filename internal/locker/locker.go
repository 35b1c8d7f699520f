package locker

import (
	"context"
	"errors"
	"strings"
	"time"
)

var ErrNotAcquired = errors.New("lock_not_acquired")

// Locker serializes work on a key across workers.
type Locker interface {
	// Acquire blocks until the key is held, wait elapses or ctx ends. The lease
	// expires after ttl if it is never released.
	Acquire(ctx context.Context, key string, ttl, wait time.Duration) (Lease, error)
}

type Lease interface {
	Release(ctx context.Context) error
}

// Key joins lock key parts with colons.
func Key(parts ...string) string {
	return "paycore:lock:" + strings.Join(parts, ":")
}

const pollInterval = 25 * time.Millisecond

func waitRetry(ctx context.Context, deadline time.Time) error {
	if !time.Now().Before(deadline) {
		return ErrNotAcquired
	}
	timer := time.NewTimer(pollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
