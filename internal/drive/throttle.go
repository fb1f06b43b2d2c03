package drive

import (
	"context"
	"sync"
	"time"
)

// Throttle enforces a minimum interval between commands reaching the
// actuator. Calls arriving early are delayed, not rejected; concurrent
// callers serialize behind the lock, so at most one send proceeds per
// interval. time.Now's monotonic reading makes this immune to clock steps.
type Throttle struct {
	lock        sync.Mutex
	minInterval time.Duration
	nextAllowed time.Time
}

func NewThrottle(minInterval time.Duration) *Throttle {
	return &Throttle{
		minInterval: minInterval,
	}
}

// Wait blocks until the caller is allowed to send. The lock is held for the
// whole delay so queued callers drain one per interval.
func (t *Throttle) Wait(ctx context.Context) error {
	t.lock.Lock()
	defer t.lock.Unlock()

	now := time.Now()
	if now.Before(t.nextAllowed) {
		timer := time.NewTimer(t.nextAllowed.Sub(now))
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	t.nextAllowed = time.Now().Add(t.minInterval)
	return nil
}
