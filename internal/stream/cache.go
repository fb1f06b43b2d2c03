package stream

import (
	"sync"
	"time"

	"github.com/hadron-robotics/hadron_rover/internal/models"
)

// FrameCache keeps a bounded, oldest-first history of recent frames so a
// frame can be re-served without waiting on the capture pipeline. Entries are
// evicted when the cache is over capacity; stale entries are only rejected on
// read, so memory use is bounded by maxFrames alone.
type FrameCache struct {
	lock      sync.Mutex
	frames    []models.Frame
	maxFrames int
	ttl       time.Duration
}

func NewFrameCache(maxFrames int, ttl time.Duration) *FrameCache {
	return &FrameCache{
		frames:    make([]models.Frame, 0, maxFrames),
		maxFrames: maxFrames,
		ttl:       ttl,
	}
}

// Record appends frame, evicting the oldest entry once over capacity.
func (c *FrameCache) Record(frame models.Frame) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.frames = append(c.frames, frame)
	if len(c.frames) > c.maxFrames {
		copy(c.frames, c.frames[1:])
		c.frames = c.frames[:c.maxFrames]
	}
}

// Latest returns the newest entry no older than maxAge. A maxAge of 0 uses
// the cache's configured TTL. ok is false when nothing fresh is cached.
func (c *FrameCache) Latest(maxAge time.Duration) (models.Frame, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if len(c.frames) == 0 {
		return models.Frame{}, false
	}
	if maxAge == 0 {
		maxAge = c.ttl
	}

	newest := c.frames[len(c.frames)-1]
	if time.Since(newest.Timestamp) > maxAge {
		return models.Frame{}, false
	}
	return newest, true
}

func (c *FrameCache) Len() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return len(c.frames)
}
