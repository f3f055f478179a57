package media

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pion/logging"
	"github.com/pion/webrtc/v4"

	"roomclient/internal/config"
	"roomclient/internal/constants"
	"roomclient/internal/device"
	"roomclient/internal/roomerr"
	"roomclient/internal/signaling"
)

// fakeChannel is a minimal in-memory signaling.Channel, mirroring the one in
// the signaling package's own tests.
type fakeChannel struct {
	notifications chan signaling.Notification
	done          chan struct{}
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		notifications: make(chan signaling.Notification, 4),
		done:          make(chan struct{}),
	}
}

func (f *fakeChannel) Request(ctx context.Context, method string, data any) (json.RawMessage, error) {
	return json.RawMessage(`{"id":"prod-1"}`), nil
}
func (f *fakeChannel) Notifications() <-chan signaling.Notification { return f.notifications }
func (f *fakeChannel) Done() <-chan struct{}                        { return f.done }
func (f *fakeChannel) Close() error                                 { return nil }

func newTestSession(t *testing.T) *signaling.Session {
	t.Helper()
	ch := newFakeChannel()
	dial := func(ctx context.Context) (signaling.Channel, error) { return ch, nil }
	s := signaling.New(dial, signaling.Options{RequestTimeout: 200 * time.Millisecond}, logging.NewDefaultLoggerFactory().NewLogger("test"))
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestDevice(t *testing.T, codecs ...device.RTPCodec) *device.Device {
	t.Helper()
	d := device.New()
	if err := d.Load(device.RouterRTPCapabilities{Codecs: codecs}); err != nil {
		t.Fatalf("load device: %v", err)
	}
	return d
}

func newTestDeviceBothKinds(t *testing.T) *device.Device {
	t.Helper()
	return newTestDevice(t,
		device.RTPCodec{Kind: "audio", MimeType: "audio/opus", ClockRate: 48000, Channels: 2, PayloadType: 111},
		device.RTPCodec{Kind: "video", MimeType: "video/VP8", ClockRate: 90000, PayloadType: 96},
	)
}

func newTestTransportFor(t *testing.T, d *device.Device) *device.Transport {
	t.Helper()
	tr, err := device.NewTransport(d, device.DirectionSend, nil, device.Callbacks{}, nil)
	if err != nil {
		t.Fatalf("new transport: %v", err)
	}
	t.Cleanup(func() { tr.Close() })
	return tr
}

func newTestTransport(t *testing.T) *device.Transport {
	t.Helper()
	return newTestTransportFor(t, newTestDeviceBothKinds(t))
}

// stubSource is a TrackSource that hands back a real local track without
// touching any actual capture device.
type stubSource struct {
	closed int
}

func (s *stubSource) newTrack(kind webrtc.RTPCodecType, mime string) AcquiredTrack {
	track, _ := webrtc.NewTrackLocalStaticRTP(webrtc.RTPCodecCapability{MimeType: mime}, "track", "stream")
	return AcquiredTrack{
		Track: track,
		Close: func() error { s.closed++; return nil },
	}
}

func (s *stubSource) AcquireMic(ctx context.Context, constraints config.AudioConstraints, deviceID string) (AcquiredTrack, error) {
	return s.newTrack(webrtc.RTPCodecTypeAudio, webrtc.MimeTypeOpus), nil
}

func (s *stubSource) AcquireWebcam(ctx context.Context, deviceID string, width, height, frameRate int) (AcquiredTrack, error) {
	return s.newTrack(webrtc.RTPCodecTypeVideo, webrtc.MimeTypeVP8), nil
}

func (s *stubSource) AcquireScreen(ctx context.Context, width, height, frameRate int) (AcquiredTrack, *AcquiredTrack, error) {
	video := s.newTrack(webrtc.RTPCodecTypeVideo, webrtc.MimeTypeVP8)
	audio := s.newTrack(webrtc.RTPCodecTypeAudio, webrtc.MimeTypeOpus)
	return video, &audio, nil
}

func testAudioConstraints() config.AudioConstraints {
	return config.AudioConstraints{SampleRate: 48000, ChannelCount: 1, SampleSize: 16}
}

func TestUpdateMicCreatesProducer(t *testing.T) {
	session := newTestSession(t)
	dev := newTestDeviceBothKinds(t)
	transport := newTestTransportFor(t, dev)
	src := &stubSource{}
	reg := New(session, dev, transport, src, &config.Room{}, "transport-1", nil, nil)

	err := reg.UpdateMic(context.Background(), UpdateMicOptions{Start: true}, testAudioConstraints(), config.OpusCodecOptions{})
	if err != nil {
		t.Fatalf("update mic: %v", err)
	}

	p := reg.Get(constants.SourceMic)
	if p == nil {
		t.Fatal("expected mic producer to be registered")
	}
	if p.ID != "prod-1" {
		t.Fatalf("expected producer id prod-1, got %q", p.ID)
	}
	if p.Paused() {
		t.Fatal("new producer should not be paused")
	}
}

func TestMuteUnmuteMicTogglesPause(t *testing.T) {
	session := newTestSession(t)
	dev := newTestDeviceBothKinds(t)
	transport := newTestTransportFor(t, dev)
	src := &stubSource{}
	reg := New(session, dev, transport, src, &config.Room{}, "transport-1", nil, nil)

	if err := reg.UpdateMic(context.Background(), UpdateMicOptions{Start: true}, testAudioConstraints(), config.OpusCodecOptions{}); err != nil {
		t.Fatalf("update mic: %v", err)
	}

	if err := reg.MuteMic(context.Background()); err != nil {
		t.Fatalf("mute: %v", err)
	}
	if !reg.Get(constants.SourceMic).Paused() {
		t.Fatal("expected mic to be paused after mute")
	}

	if err := reg.UnmuteMic(context.Background(), testAudioConstraints(), config.OpusCodecOptions{}); err != nil {
		t.Fatalf("unmute: %v", err)
	}
	if reg.Get(constants.SourceMic).Paused() {
		t.Fatal("expected mic to be unpaused after unmute")
	}
}

func TestDisableMicReleasesCapture(t *testing.T) {
	session := newTestSession(t)
	dev := newTestDeviceBothKinds(t)
	transport := newTestTransportFor(t, dev)
	src := &stubSource{}
	reg := New(session, dev, transport, src, &config.Room{}, "transport-1", nil, nil)

	if err := reg.UpdateMic(context.Background(), UpdateMicOptions{Start: true}, testAudioConstraints(), config.OpusCodecOptions{}); err != nil {
		t.Fatalf("update mic: %v", err)
	}
	if err := reg.DisableMic(context.Background()); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if reg.Get(constants.SourceMic) != nil {
		t.Fatal("expected mic producer to be removed")
	}
	if src.closed != 1 {
		t.Fatalf("expected capture to be released once, got %d", src.closed)
	}
}

func TestAddExtraVideoRejectsDuplicateLabel(t *testing.T) {
	session := newTestSession(t)
	dev := newTestDeviceBothKinds(t)
	transport := newTestTransportFor(t, dev)
	src := &stubSource{}
	reg := New(session, dev, transport, src, &config.Room{}, "transport-1", nil, nil)

	if _, err := reg.AddExtraVideo(context.Background(), "dev-1", 640, 360, 30, "cam-1"); err != nil {
		t.Fatalf("add extra video: %v", err)
	}

	// Duplicate detection compares against each existing producer's track
	// label (the stub track's stream id, "stream"), not the label passed in.
	if _, err := reg.AddExtraVideo(context.Background(), "dev-2", 640, 360, 30, "stream"); err == nil {
		t.Fatal("expected a second extra video with the same track label to be rejected")
	}
}

func TestUpdateMicRejectsDeviceChangeWithoutRestart(t *testing.T) {
	session := newTestSession(t)
	dev := newTestDeviceBothKinds(t)
	transport := newTestTransportFor(t, dev)
	reg := New(session, dev, transport, &stubSource{}, &config.Room{}, "transport-1", nil, nil)

	err := reg.UpdateMic(context.Background(), UpdateMicOptions{Start: true, NewDeviceID: "mic-2"}, testAudioConstraints(), config.OpusCodecOptions{})
	if !roomerr.IsInvalidArgument(err) {
		t.Fatalf("expected invalid argument error, got %v", err)
	}
}

func TestUpdateMicFailsWhenDeviceCannotProduceAudio(t *testing.T) {
	session := newTestSession(t)
	dev := newTestDevice(t, device.RTPCodec{Kind: "video", MimeType: "video/VP8", ClockRate: 90000, PayloadType: 96})
	transport := newTestTransportFor(t, dev)
	reg := New(session, dev, transport, &stubSource{}, &config.Room{}, "transport-1", nil, nil)

	err := reg.UpdateMic(context.Background(), UpdateMicOptions{Start: true}, testAudioConstraints(), config.OpusCodecOptions{})
	if !roomerr.IsDeviceCapability(err) {
		t.Fatalf("expected device capability error, got %v", err)
	}
	if reg.Get(constants.SourceMic) != nil {
		t.Fatal("expected no mic producer to be registered")
	}
}

func TestVoiceActivatedUnmuteAutoResumesAndAutoPauses(t *testing.T) {
	session := newTestSession(t)
	dev := newTestDeviceBothKinds(t)
	transport := newTestTransportFor(t, dev)
	src := &stubSource{}

	speakingEvents := make(chan bool, 4)
	autoMuteEvents := make(chan bool, 4)
	onSpeaking := func(speaking bool) { speakingEvents <- speaking }
	onAutoMute := func(autoMuted bool) { autoMuteEvents <- autoMuted }

	reg := New(session, dev, transport, src, &config.Room{VoiceActivatedUnmute: true}, "transport-1", onSpeaking, onAutoMute)

	if err := reg.UpdateMic(context.Background(), UpdateMicOptions{Start: true}, testAudioConstraints(), config.OpusCodecOptions{}); err != nil {
		t.Fatalf("update mic: %v", err)
	}
	if err := reg.MuteMic(context.Background()); err != nil {
		t.Fatalf("mute: %v", err)
	}

	p := reg.Get(constants.SourceMic)
	p.detector.Sample(-10) // above threshold (-50): speaking-start

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && p.Paused() {
		time.Sleep(5 * time.Millisecond)
	}
	if p.Paused() {
		t.Fatal("expected speaking-start to auto-resume a paused mic")
	}

	p.detector.Sample(-90) // below threshold: speaking-stop
	deadline = time.Now().Add(time.Second)
	for time.Now().Before(deadline) && !p.Paused() {
		time.Sleep(5 * time.Millisecond)
	}
	if !p.Paused() {
		t.Fatal("expected speaking-stop to auto-pause the mic")
	}
	if p.detector.State() != SpeakingPausedAuto {
		t.Fatalf("expected detector state SpeakingPausedAuto, got %v", p.detector.State())
	}

	select {
	case speaking := <-speakingEvents:
		if !speaking {
			t.Fatalf("expected first speaking event true, got %v", speaking)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a speaking-start event")
	}
	select {
	case speaking := <-speakingEvents:
		if speaking {
			t.Fatalf("expected second speaking event false, got %v", speaking)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a speaking-stop event")
	}

	select {
	case autoMuted := <-autoMuteEvents:
		if autoMuted {
			t.Fatalf("expected first auto-mute event false (resumed), got %v", autoMuted)
		}
	case <-time.After(time.Second):
		t.Fatal("expected an auto-resume event")
	}
	select {
	case autoMuted := <-autoMuteEvents:
		if !autoMuted {
			t.Fatalf("expected second auto-mute event true (paused), got %v", autoMuted)
		}
	case <-time.After(time.Second):
		t.Fatal("expected an auto-pause event")
	}
}

func TestUpdateWebcamFailsWhenDeviceCannotProduceVideo(t *testing.T) {
	session := newTestSession(t)
	dev := newTestDevice(t, device.RTPCodec{Kind: "audio", MimeType: "audio/opus", ClockRate: 48000, Channels: 2, PayloadType: 111})
	transport := newTestTransportFor(t, dev)
	reg := New(session, dev, transport, &stubSource{}, &config.Room{}, "transport-1", nil, nil)

	err := reg.UpdateWebcam(context.Background(), UpdateWebcamOptions{Start: true})
	if !roomerr.IsDeviceCapability(err) {
		t.Fatalf("expected device capability error, got %v", err)
	}
}

func TestBuildEncodingsNoSimulcastSingleFullScale(t *testing.T) {
	encs := buildEncodings(false, 1280, nil, constants.PriorityHigh)
	if len(encs) != 1 {
		t.Fatalf("expected 1 encoding, got %d", len(encs))
	}
	if *encs[0].ScaleResolutionDownBy != 1.0 {
		t.Fatalf("expected scale 1.0, got %v", *encs[0].ScaleResolutionDownBy)
	}
}

func TestBuildEncodingsSimulcastPicksProfileForWidth(t *testing.T) {
	table := []SimulcastProfile{
		{Width: 320, ScaleLayers: []float64{4, 1}},
		{Width: 1280, ScaleLayers: []float64{4, 2, 1}},
	}
	encs := buildEncodings(true, 1280, table, constants.PriorityHigh)
	if len(encs) != 3 {
		t.Fatalf("expected profile for width 1280 with 3 layers, got %d", len(encs))
	}
}
