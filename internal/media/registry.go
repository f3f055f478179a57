// Package media implements the Producer Registry: lifecycle of local
// mic/webcam/extra-video/screen-share tracks, simulcast encoding
// selection, and the mute/unmute/speaking-detection feedback loop.
package media

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"

	"roomclient/internal/config"
	"roomclient/internal/constants"
	"roomclient/internal/device"
	"roomclient/internal/metrics"
	"roomclient/internal/roomerr"
	"roomclient/internal/signaling"
)

// Producer is a local outbound media flow registered with the SFU,
// exclusively owned by the Registry that created it.
type Producer struct {
	ID                 string
	Source             constants.ProducerSource
	Kind               constants.MediaKind
	Encodings          []EncodingParams
	ResolutionScalings []float64
	Score              int

	mu       sync.Mutex
	paused   bool
	track    webrtc.TrackLocal
	sender   *webrtc.RTPSender
	release  func() error
	detector *SpeakingDetector
}

// Paused reports the producer's local pause state.
func (p *Producer) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

// Detector returns the producer's speaking detector, or nil for non-audio
// producers.
func (p *Producer) Detector() *SpeakingDetector { return p.detector }

// Registry manages the lifecycle of every local producer: mic, webcam,
// screen, screen-audio, and an open-ended set of extra video producers.
// Every operation is single-flight per source: concurrent calls for the
// same source are rejected rather than interleaved, per spec.md §4.3.
type Registry struct {
	mu         sync.Mutex
	named      map[constants.ProducerSource]*Producer
	extraVideo map[string]*Producer
	inProgress map[string]bool

	session   *signaling.Session
	device    *device.Device
	transport *device.Transport
	source    TrackSource
	cfg       *config.Room

	transportID string

	autoMuteOnUnmute bool
	onSpeakingChange func(speaking bool)
	onAutoMuteChange func(autoMuted bool)
}

// New builds a Registry bound to a send transport, signaling session, and
// capture backend. transportID is the id returned from the
// createWebRtcTransport response for the send transport. dev is consulted
// via CanProduce before any acquisition so an unsupported kind fails fast
// with a DeviceCapabilityError instead of wasting a track acquisition.
// onSpeakingChange/onAutoMuteChange mirror the mic producer's own
// speaking-detection edges and voiceActivatedUnmute transitions back to
// the caller (nil is fine if nobody needs them); both may be called from
// goroutines other than the one that constructed the Registry.
func New(session *signaling.Session, dev *device.Device, transport *device.Transport, source TrackSource, cfg *config.Room, transportID string, onSpeakingChange func(bool), onAutoMuteChange func(bool)) *Registry {
	r := &Registry{
		named:       make(map[constants.ProducerSource]*Producer),
		extraVideo:  make(map[string]*Producer),
		inProgress:  make(map[string]bool),
		session:     session,
		device:      dev,
		transport:   transport,
		source:      source,
		cfg:         cfg,
		transportID: transportID,

		onSpeakingChange: onSpeakingChange,
		onAutoMuteChange: onAutoMuteChange,
	}
	if cfg != nil {
		r.autoMuteOnUnmute = cfg.VoiceActivatedUnmute
	}
	return r
}

// acquire claims the single-flight slot for key, returning false if another
// operation on that resource is already in flight.
func (r *Registry) acquire(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inProgress[key] {
		return false
	}
	r.inProgress[key] = true
	return true
}

func (r *Registry) release(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inProgress, key)
}

// Get returns the named producer (mic/webcam/screen/screen-audio), or nil.
func (r *Registry) Get(source constants.ProducerSource) *Producer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.named[source]
}

// ExtraVideo returns the extra-video producer registered under id, or nil.
func (r *Registry) ExtraVideo(id string) *Producer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.extraVideo[id]
}

func (r *Registry) produceRequest(ctx context.Context, kind constants.MediaKind, appData map[string]any) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	err := r.session.SendRequest(ctx, "produce", map[string]any{
		"transportId": r.transportID,
		"kind":        string(kind),
		"appData":     appData,
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

// UpdateMicOptions mirrors updateMic's argument bag.
type UpdateMicOptions struct {
	Start       bool
	Restart     bool
	NewDeviceID string
}

// UpdateMic acquires/replaces the mic producer per spec.md §4.3.
func (r *Registry) UpdateMic(ctx context.Context, opts UpdateMicOptions, audioCfg config.AudioConstraints, opus config.OpusCodecOptions) error {
	if opts.NewDeviceID != "" && !opts.Restart {
		return roomerr.NewInvalidArgumentError("updateMic", "changing device requires restart")
	}
	if r.device != nil && !r.device.CanProduce(constants.KindAudio) {
		return roomerr.NewDeviceCapabilityError("updateMic", "mic")
	}
	if !r.acquire(string(constants.SourceMic)) {
		return fmt.Errorf("mic operation already in progress")
	}
	defer r.release(string(constants.SourceMic))

	existing := r.Get(constants.SourceMic)
	if existing != nil && !opts.Restart && !opts.Start {
		return nil
	}

	acquired, err := r.source.AcquireMic(ctx, audioCfg, opts.NewDeviceID)
	if err != nil {
		return roomerr.NewMediaAcquisitionError("updateMic", "mic", err)
	}

	if existing != nil {
		r.closeProducerLocal(existing)
	}

	appData := map[string]any{
		"source":              string(constants.SourceMic),
		"opusStereo":          opus.Stereo,
		"opusFec":             opus.Fec,
		"opusDtx":             opus.Dtx,
		"opusMaxPlaybackRate": opus.MaxPlaybackRate,
		"opusPtime":           opus.Ptime,
	}

	producer, err := r.produce(ctx, constants.SourceMic, constants.KindAudio, acquired, nil, appData)
	if err != nil {
		acquired.Close()
		return err
	}

	producer.detector = NewSpeakingDetector(-50)
	r.wireMicDetector(producer)
	r.setNamed(constants.SourceMic, producer)
	return nil
}

// wireMicDetector hooks the mic producer's speaking detector to the
// reactive-store publishers and, when voiceActivatedUnmute is on, to
// auto-resuming/auto-pausing the producer itself.
func (r *Registry) wireMicDetector(p *Producer) {
	p.detector.OnSpeaking(func() {
		if r.onSpeakingChange != nil {
			r.onSpeakingChange(true)
		}
		if !r.autoMuteOnUnmute || !p.Paused() {
			return
		}
		go func() {
			if err := r.resumeMicProducer(context.Background(), p); err == nil && r.onAutoMuteChange != nil {
				r.onAutoMuteChange(false)
			}
		}()
	})
	p.detector.OnStoppedSpeaking(func() {
		if r.onSpeakingChange != nil {
			r.onSpeakingChange(false)
		}
		if !r.autoMuteOnUnmute || p.Paused() {
			return
		}
		go func() {
			if err := r.pauseMicProducer(context.Background(), p); err != nil {
				return
			}
			p.detector.MarkPausedAuto()
			if r.onAutoMuteChange != nil {
				r.onAutoMuteChange(true)
			}
		}()
	})
}

// UpdateWebcamOptions mirrors updateWebcam's argument bag.
type UpdateWebcamOptions struct {
	Start          bool
	Restart        bool
	NewDeviceID    string
	NewResolution  constants.VideoResolutionTier
	NewFrameRate   int
	UseSimulcast   bool
	SimulcastTable []SimulcastProfile
	NetworkPriority constants.NetworkPriority
}

// SimulcastProfile mirrors config.SimulcastProfile without importing the
// config package's YAML tags into the media domain.
type SimulcastProfile struct {
	Width       int
	ScaleLayers []float64
}

// UpdateWebcam acquires/replaces the webcam producer per spec.md §4.3.
func (r *Registry) UpdateWebcam(ctx context.Context, opts UpdateWebcamOptions) error {
	if r.device != nil && !r.device.CanProduce(constants.KindVideo) {
		return roomerr.NewDeviceCapabilityError("updateWebcam", "webcam")
	}
	if !r.acquire(string(constants.SourceWebcam)) {
		return fmt.Errorf("webcam operation already in progress")
	}
	defer r.release(string(constants.SourceWebcam))

	existing := r.Get(constants.SourceWebcam)
	if existing != nil && !opts.Restart && !opts.Start {
		return nil
	}

	width := constants.VideoConstraintWidths[opts.NewResolution]
	if width == 0 {
		width = constants.VideoConstraintWidths[constants.ResolutionMedium]
	}
	height := width * 9 / 16

	acquired, err := r.source.AcquireWebcam(ctx, opts.NewDeviceID, width, height, opts.NewFrameRate)
	if err != nil {
		return roomerr.NewMediaAcquisitionError("updateWebcam", "webcam", err)
	}

	if existing != nil {
		r.closeProducerLocal(existing)
	}

	encodings := buildEncodings(opts.UseSimulcast, width, opts.SimulcastTable, opts.NetworkPriority)
	appData := map[string]any{
		"source":                 string(constants.SourceWebcam),
		"videoGoogleStartBitrate": 1000,
	}

	producer, err := r.produce(ctx, constants.SourceWebcam, constants.KindVideo, acquired, encodings, appData)
	if err != nil {
		acquired.Close()
		return err
	}

	r.setNamed(constants.SourceWebcam, producer)
	return nil
}

// AddExtraVideo acquires an additional camera and registers it under a
// fresh producer id, rejecting duplicate device labels.
func (r *Registry) AddExtraVideo(ctx context.Context, deviceID string, width, height, frameRate int, label string) (*Producer, error) {
	if r.device != nil && !r.device.CanProduce(constants.KindVideo) {
		return nil, roomerr.NewDeviceCapabilityError("addExtraVideo", "webcam")
	}
	key := "extravideo:" + deviceID
	if !r.acquire(key) {
		return nil, fmt.Errorf("extra video operation already in progress for %s", deviceID)
	}
	defer r.release(key)

	r.mu.Lock()
	for _, existing := range r.extraVideo {
		if existing.trackLabel() == label {
			r.mu.Unlock()
			return nil, fmt.Errorf("extra video producer for %q already exists", label)
		}
	}
	r.mu.Unlock()

	acquired, err := r.source.AcquireWebcam(ctx, deviceID, width, height, frameRate)
	if err != nil {
		return nil, roomerr.NewMediaAcquisitionError("addExtraVideo", "webcam", err)
	}

	appData := map[string]any{"source": string(constants.SourceExtraVideo)}
	producer, err := r.produce(ctx, constants.SourceExtraVideo, constants.KindVideo, acquired, nil, appData)
	if err != nil {
		acquired.Close()
		return nil, err
	}

	r.mu.Lock()
	r.extraVideo[producer.ID] = producer
	r.mu.Unlock()
	return producer, nil
}

// UpdateScreenSharingOptions mirrors updateScreenSharing's argument bag.
type UpdateScreenSharingOptions struct {
	Start           bool
	NewResolution   constants.VideoResolutionTier
	NewFrameRate    int
	UseSharingSimulcast bool
	FirstVideoCodecIsVP9 bool
}

// UpdateScreenSharing acquires a screen-capture video track (and optional
// paired audio track) per spec.md §4.3. The audio side is intentionally
// tagged appData.source="mic" so the SFU mixes it into audio spotlighting
// (spec.md §9 note 4); it is still tracked internally under
// constants.SourceScreenAudio with its volume initialized to 0.
func (r *Registry) UpdateScreenSharing(ctx context.Context, opts UpdateScreenSharingOptions) error {
	if r.device != nil && !r.device.CanProduce(constants.KindVideo) {
		return roomerr.NewDeviceCapabilityError("updateScreenSharing", "screen")
	}
	if !r.acquire(string(constants.SourceScreen)) {
		return fmt.Errorf("screen share operation already in progress")
	}
	defer r.release(string(constants.SourceScreen))

	width := constants.VideoConstraintWidths[opts.NewResolution]
	if width == 0 {
		width = constants.VideoConstraintWidths[constants.ResolutionHigh]
	}
	height := width * 9 / 16

	video, audio, err := r.source.AcquireScreen(ctx, width, height, opts.NewFrameRate)
	if err != nil {
		return roomerr.NewMediaAcquisitionError("updateScreenSharing", "screen", err)
	}

	if existing := r.Get(constants.SourceScreen); existing != nil {
		r.closeProducerLocal(existing)
	}

	encodings := buildEncodings(opts.UseSharingSimulcast, width, nil, constants.PriorityMedium)

	videoAppData := map[string]any{"source": string(constants.SourceScreen)}
	videoProducer, err := r.produce(ctx, constants.SourceScreen, constants.KindVideo, video, encodings, videoAppData)
	if err != nil {
		video.Close()
		if audio != nil {
			audio.Close()
		}
		return err
	}
	r.setNamed(constants.SourceScreen, videoProducer)

	if audio != nil {
		if existing := r.Get(constants.SourceScreenAudio); existing != nil {
			r.closeProducerLocal(existing)
		}
		audioAppData := map[string]any{"source": string(constants.SourceMic)}
		audioProducer, err := r.produce(ctx, constants.SourceScreenAudio, constants.KindAudio, *audio, nil, audioAppData)
		if err != nil {
			audio.Close()
		} else {
			r.setNamed(constants.SourceScreenAudio, audioProducer)
		}
	}

	return nil
}

func (r *Registry) produce(ctx context.Context, source constants.ProducerSource, kind constants.MediaKind, acquired AcquiredTrack, encodings []EncodingParams, appData map[string]any) (*Producer, error) {
	sender, err := r.transport.Produce(acquired.Track)
	if err != nil {
		return nil, err
	}

	id, err := r.produceRequest(ctx, kind, appData)
	if err != nil {
		r.transport.RemoveTrack(sender)
		return nil, err
	}

	p := &Producer{
		ID:                 id,
		Source:             source,
		Kind:               kind,
		Encodings:          encodings,
		ResolutionScalings: ResolutionScalings(encodings),
		track:              acquired.Track,
		sender:             sender,
		release:            acquired.Close,
	}
	metrics.RecordProducerCreated()
	return p, nil
}

func (r *Registry) setNamed(source constants.ProducerSource, p *Producer) {
	r.mu.Lock()
	r.named[source] = p
	r.mu.Unlock()
}

// MuteMic pauses the mic producer locally and tells the SFU.
func (r *Registry) MuteMic(ctx context.Context) error {
	p := r.Get(constants.SourceMic)
	if p == nil {
		return nil
	}
	return r.pauseMicProducer(ctx, p)
}

// UnmuteMic resumes the mic producer, or acquires one if none exists yet
// (delegating to UpdateMic({start:true})).
func (r *Registry) UnmuteMic(ctx context.Context, audioCfg config.AudioConstraints, opus config.OpusCodecOptions) error {
	p := r.Get(constants.SourceMic)
	if p == nil {
		return r.UpdateMic(ctx, UpdateMicOptions{Start: true}, audioCfg, opus)
	}
	return r.resumeMicProducer(ctx, p)
}

// pauseMicProducer and resumeMicProducer carry MuteMic/UnmuteMic's actual
// pause/resume transition, factored out so the speaking detector's
// voiceActivatedUnmute hook (wireMicDetector) can drive the same path
// without an audioCfg/opus pair in hand.
func (r *Registry) pauseMicProducer(ctx context.Context, p *Producer) error {
	p.mu.Lock()
	alreadyPaused := p.paused
	p.paused = true
	p.mu.Unlock()
	if alreadyPaused {
		return nil
	}
	return r.session.SendRequest(ctx, "pauseProducer", map[string]string{"producerId": p.ID}, nil)
}

func (r *Registry) resumeMicProducer(ctx context.Context, p *Producer) error {
	p.mu.Lock()
	alreadyActive := !p.paused
	p.paused = false
	p.mu.Unlock()
	if alreadyActive {
		return nil
	}
	return r.session.SendRequest(ctx, "resumeProducer", map[string]string{"producerId": p.ID}, nil)
}

// DisableMic closes and removes the mic producer, per spec.md §4.3's
// disable family.
func (r *Registry) DisableMic(ctx context.Context) error { return r.disableNamed(ctx, constants.SourceMic) }

// DisableWebcam closes and removes the webcam producer.
func (r *Registry) DisableWebcam(ctx context.Context) error {
	return r.disableNamed(ctx, constants.SourceWebcam)
}

// DisableScreenSharing closes and removes both screen producers.
func (r *Registry) DisableScreenSharing(ctx context.Context) error {
	if err := r.disableNamed(ctx, constants.SourceScreenAudio); err != nil {
		return err
	}
	return r.disableNamed(ctx, constants.SourceScreen)
}

// DisableExtraVideo closes and removes the extra-video producer with id.
func (r *Registry) DisableExtraVideo(ctx context.Context, id string) error {
	r.mu.Lock()
	p := r.extraVideo[id]
	delete(r.extraVideo, id)
	r.mu.Unlock()
	if p == nil {
		return nil
	}
	r.closeProducerLocal(p)
	return r.session.SendRequest(ctx, "closeProducer", map[string]string{"producerId": p.ID}, nil)
}

func (r *Registry) disableNamed(ctx context.Context, source constants.ProducerSource) error {
	r.mu.Lock()
	p := r.named[source]
	delete(r.named, source)
	r.mu.Unlock()
	if p == nil {
		return nil
	}
	r.closeProducerLocal(p)
	return r.session.SendRequest(ctx, "closeProducer", map[string]string{"producerId": p.ID}, nil)
}

func (r *Registry) closeProducerLocal(p *Producer) {
	r.transport.RemoveTrack(p.sender)
	if p.release != nil {
		p.release()
	}
	metrics.RecordProducerClosed()
}

// UpdateProducerScore applies a producerScore notification to whichever
// local producer (named or extra-video) matches producerID; a no-op if
// none does.
func (r *Registry) UpdateProducerScore(producerID string, score int) {
	r.mu.Lock()
	var target *Producer
	for _, p := range r.named {
		if p.ID == producerID {
			target = p
			break
		}
	}
	if target == nil {
		for _, p := range r.extraVideo {
			if p.ID == producerID {
				target = p
				break
			}
		}
	}
	r.mu.Unlock()

	if target == nil {
		return
	}
	target.mu.Lock()
	target.Score = score
	target.mu.Unlock()
}

func buildEncodings(simulcast bool, width int, table []SimulcastProfile, priority constants.NetworkPriority) []EncodingParams {
	if !simulcast || len(table) == 0 {
		scale := 1.0
		return []EncodingParams{{ScaleResolutionDownBy: &scale}}
	}

	var profile SimulcastProfile
	for _, p := range table {
		if p.Width <= width {
			profile = p
		}
	}
	if len(profile.ScaleLayers) == 0 {
		profile = table[len(table)-1]
	}

	encodings := make([]EncodingParams, len(profile.ScaleLayers))
	for i, scale := range profile.ScaleLayers {
		s := scale
		encodings[i] = EncodingParams{ScaleResolutionDownBy: &s}
	}
	return encodings
}

func (p *Producer) trackLabel() string {
	if p.track == nil {
		return ""
	}
	if t, ok := p.track.(interface{ StreamID() string }); ok {
		return t.StreamID()
	}
	return uuid.Nil.String()
}
