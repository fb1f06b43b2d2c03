package camera

import (
	"context"
	"testing"
	"time"

	"github.com/hadron-robotics/hadron_rover/internal/config"
	"github.com/hadron-robotics/hadron_rover/internal/stream"
	"github.com/stretchr/testify/require"
)

func jpeg(body ...byte) []byte {
	frame := []byte{0xff, 0xd8}
	frame = append(frame, body...)
	return append(frame, 0xff, 0xd9)
}

func newTestCapture() (*Capture, *stream.FrameBuffer, *stream.FrameCache) {
	buffer := stream.NewFrameBuffer()
	cache := stream.NewFrameCache(5, 2*time.Second)
	capture := NewCapture(config.CameraConfig{Enabled: true, Codec: CodecMJPEG}, buffer, cache)
	return capture, buffer, cache
}

func TestExtractSingleFrame(t *testing.T) {
	capture, buffer, cache := newTestCapture()

	rest := capture.extractFrames(jpeg(0x01, 0x02))
	require.Empty(t, rest)
	require.Equal(t, uint64(1), capture.FramesCaptured())

	frame, ok := buffer.Latest()
	require.True(t, ok)
	require.Equal(t, jpeg(0x01, 0x02), frame.Data)
	require.Equal(t, 1, cache.Len())
}

func TestExtractSplitAcrossReads(t *testing.T) {
	capture, buffer, _ := newTestCapture()

	frame := jpeg(0x10, 0x20, 0x30)
	rest := capture.extractFrames(frame[:3])
	require.Equal(t, frame[:3], rest)
	require.Equal(t, uint64(0), capture.FramesCaptured())

	rest = capture.extractFrames(append(rest, frame[3:]...))
	require.Empty(t, rest)
	require.Equal(t, uint64(1), capture.FramesCaptured())

	latest, ok := buffer.Latest()
	require.True(t, ok)
	require.Equal(t, frame, latest.Data)
}

func TestExtractMultipleFramesKeepsLatest(t *testing.T) {
	capture, buffer, cache := newTestCapture()

	input := append(jpeg(0x01), jpeg(0x02)...)
	rest := capture.extractFrames(input)
	require.Empty(t, rest)
	require.Equal(t, uint64(2), capture.FramesCaptured())
	require.Equal(t, 2, cache.Len())

	frame, ok := buffer.Latest()
	require.True(t, ok)
	require.Equal(t, jpeg(0x02), frame.Data)
	require.Equal(t, uint64(2), frame.Seq)
}

func TestExtractResyncsAfterGarbage(t *testing.T) {
	capture, buffer, _ := newTestCapture()

	input := append([]byte{0xde, 0xad, 0xbe, 0xef}, jpeg(0x42)...)
	rest := capture.extractFrames(input)
	require.Empty(t, rest)
	require.Equal(t, uint64(1), capture.FramesCaptured())
	require.Equal(t, uint64(1), capture.FramesDropped())

	frame, ok := buffer.Latest()
	require.True(t, ok)
	require.Equal(t, jpeg(0x42), frame.Data)
}

func TestExtractNALUnits(t *testing.T) {
	buffer := stream.NewFrameBuffer()
	cache := stream.NewFrameCache(5, 2*time.Second)
	capture := NewCapture(config.CameraConfig{Enabled: true, Codec: CodecH264}, buffer, cache)

	input := append([]byte{0, 0, 0, 1, 0xaa}, 0, 0, 0, 1, 0xbb)
	rest := capture.extractFrames(input)
	require.Equal(t, []byte{0, 0, 0, 1, 0xbb}, rest)
	require.Equal(t, uint64(1), capture.FramesCaptured())

	frame, ok := buffer.Latest()
	require.True(t, ok)
	require.Equal(t, []byte{0, 0, 0, 1, 0xaa}, frame.Data)
}

func TestExtractNALUnitsEmptyInput(t *testing.T) {
	buffer := stream.NewFrameBuffer()
	cache := stream.NewFrameCache(5, 2*time.Second)
	capture := NewCapture(config.CameraConfig{Enabled: true, Codec: CodecH264}, buffer, cache)

	// A zero-byte read leaves pending empty; the splitter must not slice it.
	rest := capture.extractFrames(nil)
	require.Empty(t, rest)
	require.Zero(t, capture.FramesCaptured())
}

func TestStartDisabledReturnsImmediately(t *testing.T) {
	buffer := stream.NewFrameBuffer()
	cache := stream.NewFrameCache(5, 2*time.Second)
	capture := NewCapture(config.CameraConfig{Enabled: false}, buffer, cache)

	require.NoError(t, capture.Start(context.Background()))
	require.False(t, capture.Running())
}
