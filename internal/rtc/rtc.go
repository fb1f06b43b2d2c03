package rtc

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/hadron-robotics/hadron_rover/internal/camera"
	"github.com/hadron-robotics/hadron_rover/internal/config"
	"github.com/hadron-robotics/hadron_rover/internal/stream"
	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media"
)

const DefaultFPS = 30

var ErrCodecMismatch = errors.New("webrtc viewing requires the h264 camera codec")

// Viewer is a single WebRTC peer watching the camera. Each viewer gets its
// own peer connection and video track fed from the shared frame buffer.
type Viewer struct {
	PeerConnection *webrtc.PeerConnection
	videoTrack     *webrtc.TrackLocalStaticSample

	buffer       *stream.FrameBuffer
	awaitTimeout time.Duration
	frameTime    time.Duration
}

func NewViewer(camCfg config.CameraConfig, streamCfg config.StreamConfig, buffer *stream.FrameBuffer) (*Viewer, error) {
	if camCfg.Codec != camera.CodecH264 {
		return nil, ErrCodecMismatch
	}

	videoTrack, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeH264}, "video", "rover")
	if err != nil {
		return nil, fmt.Errorf("error creating video track: %w", err)
	}

	peerConnection, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return nil, fmt.Errorf("error creating peer connection: %w", err)
	}

	_, err = peerConnection.AddTrack(videoTrack)
	if err != nil {
		peerConnection.Close()
		return nil, fmt.Errorf("error adding video track: %w", err)
	}

	peerConnection.OnICEConnectionStateChange(func(connectionState webrtc.ICEConnectionState) {
		log.Printf("viewer connection state has changed: %s\n", connectionState.String())
	})

	fps, err := strconv.ParseInt(camCfg.Fps, 10, 32)
	if err != nil || fps <= 0 {
		fps = DefaultFPS
	}

	return &Viewer{
		PeerConnection: peerConnection,
		videoTrack:     videoTrack,
		buffer:         buffer,
		awaitTimeout:   streamCfg.AwaitTimeout,
		frameTime:      time.Duration(1000/fps) * time.Millisecond,
	}, nil
}

// Answer completes the non-trickle offer/answer exchange. Gathering is
// waited out so a single signaling message carries all candidates.
func (v *Viewer) Answer(offer webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	err := v.PeerConnection.SetRemoteDescription(offer)
	if err != nil {
		return nil, fmt.Errorf("failed to set remote description: %w", err)
	}

	answer, err := v.PeerConnection.CreateAnswer(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create answer: %w", err)
	}

	gatherComplete := webrtc.GatheringCompletePromise(v.PeerConnection)

	err = v.PeerConnection.SetLocalDescription(answer)
	if err != nil {
		return nil, fmt.Errorf("failed to set local description: %w", err)
	}

	<-gatherComplete
	return v.PeerConnection.LocalDescription(), nil
}

// Stream pushes frames into the video track until ctx is cancelled or the
// track write fails.
func (v *Viewer) Stream(ctx context.Context) {
	lastSeq := uint64(0)
	for {
		frame, err := v.buffer.AwaitFrame(ctx, lastSeq, v.awaitTimeout)
		if err != nil {
			if ctx.Err() != nil {
				log.Println("viewer stream done due to ctx")
				return
			}
			continue // camera stall, keep waiting
		}
		lastSeq = frame.Seq

		err = v.videoTrack.WriteSample(media.Sample{Data: frame.Data, Duration: v.frameTime})
		if err != nil {
			log.Printf("error writing sample to track: %s\n", err.Error())
			return
		}
	}
}

func (v *Viewer) Close() {
	err := v.PeerConnection.Close()
	if err != nil {
		log.Printf("error closing viewer peer connection: %s\n", err.Error())
	}
}
