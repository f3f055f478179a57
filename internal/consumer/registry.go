package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/pion/webrtc/v4"

	"roomclient/internal/constants"
	"roomclient/internal/device"
	"roomclient/internal/media"
	"roomclient/internal/metrics"
	"roomclient/internal/signaling"
)

// newConsumerPayload mirrors the newConsumer notification's data shape.
type newConsumerPayload struct {
	ID             string          `json:"id"`
	PeerID         string          `json:"peerId"`
	ProducerID     string          `json:"producerId"`
	Kind           string          `json:"kind"`
	Type           string          `json:"type"`
	RTPParameters  json.RawMessage `json:"rtpParameters"`
	ProducerPaused bool            `json:"producerPaused"`
	Score          int32           `json:"score"`
	AppData        struct {
		PeerID string `json:"peerId"`
		Source string `json:"source"`
	} `json:"appData"`
	Width              int       `json:"width"`
	Height             int       `json:"height"`
	ResolutionScalings []float64 `json:"resolutionScalings"`
	SpatialLayers      int       `json:"spatialLayers"`
	TemporalLayers     int       `json:"temporalLayers"`
}

// VolumePublisher receives coalesced per-peer volume updates for the
// reactive store bridge; volumeDB is rounded to the nearest integer before
// publication, per spec.md §4.4's coalescing rule.
type VolumePublisher func(peerID string, volumeDB int)

// Registry owns every remote consumer created against one recv transport.
type Registry struct {
	mu      sync.RWMutex
	byID    map[string]*Consumer
	pending map[string]*Consumer // keyed by consumer id, awaiting a matching OnTrack

	transport *device.Transport
	session   *signaling.Session

	onVolumeChange VolumePublisher
}

// New builds a Registry bound to transport (the recv transport) and
// session, registering the newConsumer/consumerClosed/consumerPaused/
// consumerResumed/consumerLayersChanged/consumerScore notification
// handlers.
func New(transport *device.Transport, session *signaling.Session, onVolumeChange VolumePublisher) *Registry {
	r := &Registry{
		byID:           make(map[string]*Consumer),
		pending:        make(map[string]*Consumer),
		transport:      transport,
		session:        session,
		onVolumeChange: onVolumeChange,
	}

	session.On("newConsumer", r.handleNewConsumer)
	session.On("consumerClosed", r.handleConsumerClosed)
	session.On("consumerPaused", r.handleConsumerPaused)
	session.On("consumerResumed", r.handleConsumerResumed)
	session.On("consumerLayersChanged", r.handleLayersChanged)
	session.On("consumerScore", r.handleConsumerScore)

	return r
}

// Get returns the consumer registered under id, or nil.
func (r *Registry) Get(id string) *Consumer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byID[id]
}

// ByPeer returns every consumer currently owned by peerID.
func (r *Registry) ByPeer(peerID string) []*Consumer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Consumer
	for _, c := range r.byID {
		if c.PeerID == peerID {
			out = append(out, c)
		}
	}
	return out
}

func (r *Registry) handleNewConsumer(data json.RawMessage) {
	var p newConsumerPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}

	peerID := p.PeerID
	if peerID == "" {
		peerID = p.AppData.PeerID
	}

	c := &Consumer{
		ID:                 p.ID,
		PeerID:             peerID,
		ProducerID:         p.ProducerID,
		Kind:               constants.MediaKind(p.Kind),
		Type:               constants.ConsumerType(p.Type),
		Source:             p.AppData.Source,
		Width:              p.Width,
		Height:             p.Height,
		ResolutionScalings: p.ResolutionScalings,
		SpatialLayers:      p.SpatialLayers,
		TemporalLayers:     p.TemporalLayers,
	}
	c.remotelyPaused = p.ProducerPaused
	c.score.Store(p.Score)

	r.mu.Lock()
	r.byID[c.ID] = c
	r.pending[c.ID] = c
	r.mu.Unlock()
	metrics.RecordConsumerCreated()

	// recvTransport.consume(...)'s mediasoup-client equivalent negotiates an
	// m-line and resolves with the live track in one step; here the recv
	// transport's renegotiation independently fires OnTrack once the SFU's
	// offer lands, so newConsumer only registers the consumer's metadata —
	// HandleTrack below completes it when the RTP track arrives.
	go r.startConsumer(context.Background(), c.ID, true)
}

// HandleTrack correlates an inbound RTP track with its pending consumer
// metadata. The recv transport's remote SDP sets each track's msid to the
// consumer id, mirroring mediasoup's client/server id agreement.
func (r *Registry) HandleTrack(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
	id := track.ID()

	r.mu.Lock()
	c, ok := r.pending[id]
	if ok {
		delete(r.pending, id)
	}
	r.mu.Unlock()
	if !ok {
		return
	}

	c.mu.Lock()
	c.track = track
	c.receiver = receiver
	c.mu.Unlock()

	if c.Kind == constants.KindAudio {
		detector := media.NewSpeakingDetector(-50)
		lastRounded := int32(0)
		detector.OnVolumeChange(func(db float64) {
			rounded := int32(db + 0.5)
			if rounded == atomic.LoadInt32(&lastRounded) {
				return
			}
			atomic.StoreInt32(&lastRounded, rounded)
			c.volume.Store(int64(rounded))
			if r.onVolumeChange != nil {
				r.onVolumeChange(c.PeerID, int(rounded))
			}
		})
		c.mu.Lock()
		c.detector = detector
		c.mu.Unlock()
	}
}

func (r *Registry) handleConsumerClosed(data json.RawMessage) {
	var p struct {
		ConsumerID string `json:"consumerId"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	r.closeLocal(p.ConsumerID)
}

func (r *Registry) handleConsumerPaused(data json.RawMessage) {
	var p struct {
		ConsumerID string `json:"consumerId"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	if c := r.Get(p.ConsumerID); c != nil {
		c.mu.Lock()
		c.remotelyPaused = true
		c.mu.Unlock()
	}
}

func (r *Registry) handleConsumerResumed(data json.RawMessage) {
	var p struct {
		ConsumerID string `json:"consumerId"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	if c := r.Get(p.ConsumerID); c != nil {
		c.mu.Lock()
		c.remotelyPaused = false
		c.mu.Unlock()
	}
}

func (r *Registry) handleLayersChanged(data json.RawMessage) {
	var p struct {
		ConsumerID    string `json:"consumerId"`
		SpatialLayer  int32  `json:"spatialLayer"`
		TemporalLayer int32  `json:"temporalLayer"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	if c := r.Get(p.ConsumerID); c != nil {
		c.currentSpatialLayer.Store(p.SpatialLayer)
		c.currentTemporalLayer.Store(p.TemporalLayer)
	}
}

func (r *Registry) handleConsumerScore(data json.RawMessage) {
	var p struct {
		ConsumerID string `json:"consumerId"`
		Score      int32  `json:"score"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	if c := r.Get(p.ConsumerID); c != nil {
		c.score.Store(p.Score)
	}
}

func (r *Registry) closeLocal(id string) {
	r.mu.Lock()
	c, ok := r.byID[id]
	if ok {
		delete(r.byID, id)
		delete(r.pending, id)
	}
	r.mu.Unlock()
	if !ok {
		return
	}
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	metrics.RecordConsumerClosed()
}

// startConsumer is _startConsumer ≡ _resumeConsumer(initial=true).
func (r *Registry) startConsumer(ctx context.Context, id string, initial bool) error {
	return r.resumeConsumer(ctx, id, initial)
}

// ResumeConsumer sends resumeConsumer to the SFU, a no-op unless the
// consumer is currently paused.
func (r *Registry) ResumeConsumer(ctx context.Context, id string) error {
	return r.resumeConsumer(ctx, id, false)
}

func (r *Registry) resumeConsumer(ctx context.Context, id string, initial bool) error {
	c := r.Get(id)
	if c == nil {
		return fmt.Errorf("unknown consumer %s", id)
	}

	c.mu.Lock()
	shouldSend := (initial || c.locallyPaused) && !c.closed
	c.locallyPaused = false
	c.mu.Unlock()

	if !shouldSend {
		return nil
	}

	err := r.session.SendRequest(ctx, "resumeConsumer", map[string]string{"consumerId": id}, nil)
	if err != nil && signaling.IsNotFound(err) {
		r.closeLocal(id)
		return nil
	}
	return err
}

// PauseConsumer sends pauseConsumer to the SFU, a no-op if already paused
// or closed.
func (r *Registry) PauseConsumer(ctx context.Context, id string) error {
	c := r.Get(id)
	if c == nil {
		return fmt.Errorf("unknown consumer %s", id)
	}

	c.mu.Lock()
	shouldSend := !c.locallyPaused && !c.closed
	c.locallyPaused = true
	c.mu.Unlock()

	if !shouldSend {
		return nil
	}

	err := r.session.SendRequest(ctx, "pauseConsumer", map[string]string{"consumerId": id}, nil)
	if err != nil && signaling.IsNotFound(err) {
		r.closeLocal(id)
		return nil
	}
	return err
}

// AdaptPreferredLayers recomputes and, if changed, pushes the preferred
// spatial/temporal layer for consumer id to the SFU.
func (r *Registry) AdaptPreferredLayers(ctx context.Context, id string, viewportWidth, viewportHeight int, adaptiveScalingFactor float64) error {
	c := r.Get(id)
	if c == nil {
		return fmt.Errorf("unknown consumer %s", id)
	}

	spatial, temporal, changed := AdaptPreferredLayers(c, viewportWidth, viewportHeight, adaptiveScalingFactor)
	if !changed {
		return nil
	}

	return r.session.SendRequest(ctx, "setConsumerPreferedLayers", map[string]any{
		"consumerId":    id,
		"spatialLayer":  spatial,
		"temporalLayer": temporal,
	}, nil)
}

// UpdateSpotlights iterates every video consumer: if its owning peer is in
// newList, it is resumed (and removed from the locally-paused set);
// otherwise it is paused, per spec.md §4.4.
func (r *Registry) UpdateSpotlights(ctx context.Context, newList []string) {
	selected := make(map[string]bool, len(newList))
	for _, peerID := range newList {
		selected[peerID] = true
	}

	r.mu.RLock()
	videoConsumers := make([]*Consumer, 0, len(r.byID))
	for _, c := range r.byID {
		if c.Kind == constants.KindVideo {
			videoConsumers = append(videoConsumers, c)
		}
	}
	r.mu.RUnlock()

	for _, c := range videoConsumers {
		if selected[c.PeerID] {
			_ = r.ResumeConsumer(ctx, c.ID)
		} else {
			_ = r.PauseConsumer(ctx, c.ID)
		}
	}
}
