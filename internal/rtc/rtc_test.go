package rtc

import (
	"testing"
	"time"

	"github.com/hadron-robotics/hadron_rover/internal/config"
	"github.com/hadron-robotics/hadron_rover/internal/stream"
	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/require"
)

func h264Config() config.CameraConfig {
	return config.CameraConfig{Enabled: true, Codec: "h264", Fps: "30"}
}

func streamConfig() config.StreamConfig {
	return config.StreamConfig{AwaitTimeout: 100 * time.Millisecond}
}

func TestNewViewerRequiresH264(t *testing.T) {
	buffer := stream.NewFrameBuffer()

	_, err := NewViewer(config.CameraConfig{Codec: "mjpeg"}, streamConfig(), buffer)
	require.ErrorIs(t, err, ErrCodecMismatch)
}

func TestNewViewerFrameTimeFallback(t *testing.T) {
	buffer := stream.NewFrameBuffer()

	cfg := h264Config()
	cfg.Fps = "not-a-number"
	viewer, err := NewViewer(cfg, streamConfig(), buffer)
	require.NoError(t, err)
	defer viewer.Close()

	require.Equal(t, time.Duration(1000/DefaultFPS)*time.Millisecond, viewer.frameTime)
}

func TestAnswerCompletesExchange(t *testing.T) {
	buffer := stream.NewFrameBuffer()

	viewer, err := NewViewer(h264Config(), streamConfig(), buffer)
	require.NoError(t, err)
	defer viewer.Close()

	remote, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	require.NoError(t, err)
	defer remote.Close()

	_, err = remote.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo,
		webrtc.RTPTransceiverInit{Direction: webrtc.RTPTransceiverDirectionRecvonly})
	require.NoError(t, err)

	offer, err := remote.CreateOffer(nil)
	require.NoError(t, err)

	gatherComplete := webrtc.GatheringCompletePromise(remote)
	require.NoError(t, remote.SetLocalDescription(offer))
	<-gatherComplete

	answer, err := viewer.Answer(*remote.LocalDescription())
	require.NoError(t, err)
	require.NotNil(t, answer)
	require.Equal(t, webrtc.SDPTypeAnswer, answer.Type)
}
