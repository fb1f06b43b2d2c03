package stream

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hadron-robotics/hadron_rover/internal/models"
)

var ErrNoFrame = errors.New("no frame available before timeout")

// FrameBuffer is a single-slot, latest-wins hand-off between one producer and
// many consumers. Publish overwrites any unread frame and never blocks; slow
// consumers skip intermediate frames rather than queueing them.
type FrameBuffer struct {
	lock   sync.Mutex
	frame  models.Frame
	seq    uint64
	notify chan struct{}
}

func NewFrameBuffer() *FrameBuffer {
	return &FrameBuffer{
		notify: make(chan struct{}),
	}
}

// Publish stores data as the newest frame and wakes every blocked reader.
func (b *FrameBuffer) Publish(data []byte) models.Frame {
	b.lock.Lock()
	defer b.lock.Unlock()

	b.seq++
	b.frame = models.Frame{
		Seq:       b.seq,
		Data:      data,
		Timestamp: time.Now(),
	}

	close(b.notify)
	b.notify = make(chan struct{})
	return b.frame
}

// Latest returns the current frame without waiting. ok is false before the
// first publish.
func (b *FrameBuffer) Latest() (models.Frame, bool) {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.frame, b.seq > 0
}

// AwaitFrame blocks until a frame newer than lastSeq is available or timeout
// elapses. Pass the Seq of the last frame seen (0 for none). On timeout it
// returns ErrNoFrame; callers are expected to retry.
func (b *FrameBuffer) AwaitFrame(ctx context.Context, lastSeq uint64, timeout time.Duration) (models.Frame, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		b.lock.Lock()
		if b.seq > lastSeq {
			frame := b.frame
			b.lock.Unlock()
			return frame, nil
		}
		notify := b.notify
		b.lock.Unlock()

		select {
		case <-ctx.Done():
			return models.Frame{}, ctx.Err()
		case <-deadline.C:
			return models.Frame{}, ErrNoFrame
		case <-notify:
		}
	}
}
