package batch

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/hadron-robotics/hadron_rover/internal/config"
	"github.com/hadron-robotics/hadron_rover/internal/models"
)

var ErrShutdown = errors.New("command batcher shut down")

// ApplyFunc sends one command to the drive controller.
type ApplyFunc func(context.Context, models.MotionCommand) error

type pendingCommand struct {
	cmd  models.MotionCommand
	done chan error
}

// Batcher coalesces bursts of queued commands into one actuator call per
// window. Every batchTimeout the loop drains up to batchSize commands and
// applies only the last one; earlier commands in the window are superseded,
// and every caller in the batch gets that single application's outcome.
// Real-time paths bypass the batcher and call the controller directly.
type Batcher struct {
	cfg   config.ControlConfig
	apply ApplyFunc

	lock   sync.Mutex
	queue  []pendingCommand
	closed bool
}

func NewBatcher(cfg config.ControlConfig, apply ApplyFunc) *Batcher {
	return &Batcher{
		cfg:   cfg,
		apply: apply,
	}
}

// Enqueue queues cmd and blocks until its batch is applied or the batcher
// shuts down. All commands drained in the same window resolve to the same
// result.
func (b *Batcher) Enqueue(ctx context.Context, cmd models.MotionCommand) error {
	pending := pendingCommand{
		cmd:  cmd,
		done: make(chan error, 1),
	}

	b.lock.Lock()
	if b.closed {
		b.lock.Unlock()
		return ErrShutdown
	}
	b.queue = append(b.queue, pending)
	b.lock.Unlock()

	select {
	case <-ctx.Done():
		// The loop still resolves the handle; the buffered channel keeps
		// it from blocking on an abandoned caller.
		return ctx.Err()
	case err := <-pending.done:
		return err
	}
}

// QueuedCount reports commands waiting for the next window.
func (b *Batcher) QueuedCount() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return len(b.queue)
}

// Run processes batches until ctx is cancelled, then resolves every still-
// pending handle with ErrShutdown so no caller is left waiting.
func (b *Batcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(b.cfg.BatchTimeout)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("stopping command batcher: %s\n", ctx.Err().Error())
			b.shutdown()
			return ctx.Err()
		case <-ticker.C:
			b.processBatch(ctx)
		}
	}
}

func (b *Batcher) processBatch(ctx context.Context) {
	b.lock.Lock()
	if len(b.queue) == 0 {
		b.lock.Unlock()
		return
	}
	size := b.cfg.BatchSize
	if size > len(b.queue) {
		size = len(b.queue)
	}
	batch := b.queue[:size]
	b.queue = append([]pendingCommand(nil), b.queue[size:]...)
	b.lock.Unlock()

	latest := batch[len(batch)-1]
	err := b.apply(ctx, latest.cmd)
	for _, pending := range batch {
		pending.done <- err
	}
}

func (b *Batcher) shutdown() {
	b.lock.Lock()
	b.closed = true
	pending := b.queue
	b.queue = nil
	b.lock.Unlock()

	for _, cmd := range pending {
		cmd.done <- ErrShutdown
	}
}
