package stream

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAwaitFrameReturnsPublished(t *testing.T) {
	buffer := NewFrameBuffer()

	go func() {
		time.Sleep(10 * time.Millisecond)
		buffer.Publish([]byte("frame-1"))
	}()

	frame, err := buffer.AwaitFrame(context.Background(), 0, time.Second)
	require.NoError(t, err)
	require.Equal(t, uint64(1), frame.Seq)
	require.Equal(t, []byte("frame-1"), frame.Data)
}

func TestLatestWinsOverwritesUnread(t *testing.T) {
	buffer := NewFrameBuffer()

	buffer.Publish([]byte("old"))
	buffer.Publish([]byte("new"))

	// A consumer that never saw the first frame must get the second,
	// never the first.
	frame, err := buffer.AwaitFrame(context.Background(), 0, time.Second)
	require.NoError(t, err)
	require.Equal(t, []byte("new"), frame.Data)
	require.Equal(t, uint64(2), frame.Seq)

	_, ok := buffer.Latest()
	require.True(t, ok)
}

func TestAwaitFrameTimesOut(t *testing.T) {
	buffer := NewFrameBuffer()

	start := time.Now()
	_, err := buffer.AwaitFrame(context.Background(), 0, 20*time.Millisecond)
	require.ErrorIs(t, err, ErrNoFrame)
	require.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestAwaitFrameSkipsAlreadySeen(t *testing.T) {
	buffer := NewFrameBuffer()
	frame := buffer.Publish([]byte("seen"))

	// Waiting past the frame we already saw must block until a newer one.
	_, err := buffer.AwaitFrame(context.Background(), frame.Seq, 20*time.Millisecond)
	require.ErrorIs(t, err, ErrNoFrame)

	buffer.Publish([]byte("newer"))
	next, err := buffer.AwaitFrame(context.Background(), frame.Seq, time.Second)
	require.NoError(t, err)
	require.Equal(t, []byte("newer"), next.Data)
}

func TestPublishWakesAllReaders(t *testing.T) {
	buffer := NewFrameBuffer()

	const readers = 8
	var wg sync.WaitGroup
	results := make(chan uint64, readers)

	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			frame, err := buffer.AwaitFrame(context.Background(), 0, time.Second)
			if err == nil {
				results <- frame.Seq
			}
		}()
	}

	time.Sleep(10 * time.Millisecond)
	buffer.Publish([]byte("broadcast"))
	wg.Wait()
	close(results)

	count := 0
	for seq := range results {
		require.Equal(t, uint64(1), seq)
		count++
	}
	require.Equal(t, readers, count)
}

func TestAwaitFrameHonorsContext(t *testing.T) {
	buffer := NewFrameBuffer()
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := buffer.AwaitFrame(ctx, 0, time.Second)
	require.ErrorIs(t, err, context.Canceled)
}
