package drive

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestThrottleDelaysSecondCall(t *testing.T) {
	throttle := NewThrottle(50 * time.Millisecond)

	require.NoError(t, throttle.Wait(context.Background()))

	start := time.Now()
	require.NoError(t, throttle.Wait(context.Background()))
	require.GreaterOrEqual(t, time.Since(start), 45*time.Millisecond)
}

func TestThrottleFirstCallImmediate(t *testing.T) {
	throttle := NewThrottle(time.Second)

	start := time.Now()
	require.NoError(t, throttle.Wait(context.Background()))
	require.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestThrottleSerializesConcurrentCallers(t *testing.T) {
	const interval = 20 * time.Millisecond
	throttle := NewThrottle(interval)

	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = throttle.Wait(context.Background())
		}()
	}
	wg.Wait()

	// 4 callers at one send per interval need at least 3 full intervals.
	require.GreaterOrEqual(t, time.Since(start), 3*interval-5*time.Millisecond)
}

func TestThrottleWaitCancelled(t *testing.T) {
	throttle := NewThrottle(time.Second)
	require.NoError(t, throttle.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := throttle.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
