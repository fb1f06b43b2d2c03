package camera

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os/exec"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/hadron-robotics/hadron_rover/internal/config"
	"github.com/hadron-robotics/hadron_rover/internal/stream"
)

const readBufferSize = 4096
const maxPendingBytes = 1 << 20

const (
	CodecMJPEG = "mjpeg"
	CodecH264  = "h264"
)

var jpegStart = []byte{0xff, 0xd8}
var jpegEnd = []byte{0xff, 0xd9}
var nalSeparator = []byte{0, 0, 0, 1}

// Capture runs an external MJPEG capture process and splits its stdout into
// frames, publishing each into the frame buffer and recording it in the
// cache. Capture hiccups are retried with backoff; they are never fatal to
// the rest of the system.
type Capture struct {
	cfg    config.CameraConfig
	buffer *stream.FrameBuffer
	cache  *stream.FrameCache

	running        atomic.Bool
	framesCaptured uint64
	framesDropped  uint64
}

func NewCapture(cfg config.CameraConfig, buffer *stream.FrameBuffer, cache *stream.FrameCache) *Capture {
	return &Capture{
		cfg:    cfg,
		buffer: buffer,
		cache:  cache,
	}
}

// Start supervises the capture process until ctx is cancelled.
func (c *Capture) Start(ctx context.Context) error {
	if !c.cfg.Enabled {
		log.Println("camera disabled, no frames will be produced")
		return nil
	}

	backoff := 500 * time.Millisecond
	for {
		started := time.Now()
		err := c.streamOnce(ctx)
		if ctx.Err() != nil {
			log.Println("stopping camera capture due to context")
			return ctx.Err()
		}

		// A long healthy run resets the backoff.
		if time.Since(started) > 10*time.Second {
			backoff = 500 * time.Millisecond
		}
		log.Printf("error: camera capture failed, retrying in %s: %s\n", backoff, err.Error())

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 5*time.Second {
			backoff *= 2
		}
	}
}

func (c *Capture) streamOnce(ctx context.Context) error {
	args := []string{
		"--codec", c.cfg.Codec,
		"-t", "0", // no timeout
		"-o", "-", // stdout
		"--flush",
		"-n", // no preview window
		"--width", c.cfg.Width,
		"--height", c.cfg.Height,
		"--framerate", c.cfg.Fps,
	}
	if c.cfg.Codec == CodecMJPEG {
		args = append(args, "--quality", strconv.Itoa(c.cfg.Quality))
	} else {
		args = append(args, "--inline") // PPS/SPS header with every I frame
	}
	if c.cfg.HorizontalFlip {
		args = append(args, "--hflip")
	}
	if c.cfg.VerticalFlip {
		args = append(args, "--vflip")
	}

	cmd := exec.CommandContext(ctx, "libcamera-vid", args...)
	defer func() {
		if cmd.Process != nil {
			err := cmd.Process.Kill()
			if err != nil {
				log.Printf("error killing camera process: %s\n", err.Error())
			}
		}
		cmd.Wait()
	}()

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed getting stdout pipe: %w", err)
	}

	err = cmd.Start()
	if err != nil {
		return fmt.Errorf("failed starting camera: %w", err)
	}
	log.Println("started libcamera-vid", cmd.Args)

	c.running.Store(true)
	defer c.running.Store(false)

	chunk := make([]byte, readBufferSize)
	pending := make([]byte, 0, readBufferSize*4)
	for {
		n, err := stdout.Read(chunk)
		if err != nil {
			return fmt.Errorf("failed reading camera stdout: %w", err)
		}
		pending = append(pending, chunk[:n]...)
		pending = c.extractFrames(pending)

		// Without a frame boundary in sight, the stream is garbage;
		// resync rather than grow without bound.
		if len(pending) > maxPendingBytes {
			pending = pending[:0]
			atomic.AddUint64(&c.framesDropped, 1)
		}
	}
}

func (c *Capture) extractFrames(pending []byte) []byte {
	if c.cfg.Codec == CodecH264 {
		return c.extractNALUnits(pending)
	}
	return c.extractJPEGFrames(pending)
}

// extractNALUnits emits everything before each NAL separator as one sample,
// keeping the trailing partial unit pending.
func (c *Capture) extractNALUnits(pending []byte) []byte {
	for len(pending) > 0 {
		index := bytes.Index(pending[1:], nalSeparator)
		if index < 0 {
			return pending
		}
		index++

		if index > 0 {
			data := make([]byte, index)
			copy(data, pending[:index])
			frame := c.buffer.Publish(data)
			c.cache.Record(frame)
			atomic.AddUint64(&c.framesCaptured, 1)
		}
		pending = pending[index:]
	}
	return pending
}

// extractJPEGFrames publishes every complete JPEG in pending and returns
// the remaining tail.
func (c *Capture) extractJPEGFrames(pending []byte) []byte {
	for {
		start := bytes.Index(pending, jpegStart)
		if start < 0 {
			return pending[:0]
		}
		if start > 0 {
			// Bytes before the marker are a torn frame.
			atomic.AddUint64(&c.framesDropped, 1)
			pending = pending[start:]
		}

		end := bytes.Index(pending[len(jpegStart):], jpegEnd)
		if end < 0 {
			return pending
		}
		frameEnd := end + len(jpegStart) + len(jpegEnd)

		data := make([]byte, frameEnd)
		copy(data, pending[:frameEnd])
		frame := c.buffer.Publish(data)
		c.cache.Record(frame)
		atomic.AddUint64(&c.framesCaptured, 1)

		pending = pending[frameEnd:]
	}
}

// Running reports whether the capture process is producing frames.
func (c *Capture) Running() bool {
	return c.running.Load()
}

// FramesCaptured reports frames published since start.
func (c *Capture) FramesCaptured() uint64 {
	return atomic.LoadUint64(&c.framesCaptured)
}

// FramesDropped reports torn or garbage segments discarded while resyncing.
func (c *Capture) FramesDropped() uint64 {
	return atomic.LoadUint64(&c.framesDropped)
}
