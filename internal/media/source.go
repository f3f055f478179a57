package media

import (
	"context"
	"fmt"

	"github.com/pion/webrtc/v4"

	"roomclient/internal/config"
	"roomclient/internal/roomerr"
)

// AcquiredTrack pairs a local track with the means to release whatever
// captured it (camera, microphone, screen-share session).
type AcquiredTrack struct {
	Track webrtc.TrackLocal
	Close func() error
}

// TrackSource is the capture layer the Producer Registry is built against.
// Like the signaling Channel and the device Transport, spec.md §1 treats
// getUserMedia/getDisplayMedia as an assumed external collaborator; this
// interface is its Go-side seam so the registry never depends on a
// concrete capture backend.
type TrackSource interface {
	AcquireMic(ctx context.Context, constraints config.AudioConstraints, deviceID string) (AcquiredTrack, error)
	AcquireWebcam(ctx context.Context, deviceID string, width, height, frameRate int) (AcquiredTrack, error)
	AcquireScreen(ctx context.Context, width, height, frameRate int) (video AcquiredTrack, audio *AcquiredTrack, err error)
}

// NullSource is the default TrackSource: every acquisition fails with a
// MediaAcquisitionError. It lets a RoomClient be constructed and joined
// (signaling, store hydration, remote consumption) on a host with no
// capture backend wired in yet, mirroring devices.NullLister's role for
// device enumeration.
type NullSource struct{}

func (NullSource) AcquireMic(context.Context, config.AudioConstraints, string) (AcquiredTrack, error) {
	return AcquiredTrack{}, roomerr.NewMediaAcquisitionError("acquireMic", "mic", errNoCaptureBackend)
}

func (NullSource) AcquireWebcam(context.Context, string, int, int, int) (AcquiredTrack, error) {
	return AcquiredTrack{}, roomerr.NewMediaAcquisitionError("acquireWebcam", "webcam", errNoCaptureBackend)
}

func (NullSource) AcquireScreen(context.Context, int, int, int) (AcquiredTrack, *AcquiredTrack, error) {
	return AcquiredTrack{}, nil, roomerr.NewMediaAcquisitionError("acquireScreen", "screen", errNoCaptureBackend)
}

var errNoCaptureBackend = fmt.Errorf("no capture backend configured")
