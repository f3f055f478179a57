// Package consumer implements the Consumer Registry: lifecycle of remote
// producer tracks arriving over the recv transport, pause/resume against
// the SFU, preferred-layer adaptation, and per-peer audio volume/speaking
// detection.
package consumer

import (
	"sync"
	"sync/atomic"

	"github.com/pion/webrtc/v4"

	"roomclient/internal/constants"
	"roomclient/internal/media"
)

// Consumer is one remote producer's track as seen locally, per spec.md
// §4.4's field list.
type Consumer struct {
	ID         string
	PeerID     string
	ProducerID string
	Kind       constants.MediaKind
	Type       constants.ConsumerType
	Source     string

	Width              int
	Height             int
	ResolutionScalings []float64

	SpatialLayers  int
	TemporalLayers int

	mu                     sync.Mutex
	locallyPaused          bool
	remotelyPaused         bool
	closed                 bool
	preferredSpatialLayer  int32
	preferredTemporalLayer int32
	currentSpatialLayer    atomic.Int32
	currentTemporalLayer   atomic.Int32

	priority atomic.Int32
	score    atomic.Int32
	volume   atomic.Int64 // volume in integer dB, for coalesced store publication

	audioGain float64

	track    *webrtc.TrackRemote
	receiver *webrtc.RTPReceiver
	detector *media.SpeakingDetector
}

// LocallyPaused reports whether the local side has paused this consumer.
func (c *Consumer) LocallyPaused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.locallyPaused
}

// RemotelyPaused reports whether the producer side is paused (e.g. the
// remote peer muted).
func (c *Consumer) RemotelyPaused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remotelyPaused
}

// Closed reports whether the consumer has been torn down.
func (c *Consumer) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Score returns the SFU-reported quality score (0 until first update).
func (c *Consumer) Score() int32 { return c.score.Load() }

// Priority returns the consumer's bandwidth-allocation priority, as set by
// SetPriority (spotlight/selected-peer weighting).
func (c *Consumer) Priority() int32 { return c.priority.Load() }

// SetPriority updates the consumer's bandwidth-allocation priority.
func (c *Consumer) SetPriority(p int32) { c.priority.Store(p) }

// Volume returns the last integer-rounded volume (dB) reported by the
// speaking detector, for audio consumers.
func (c *Consumer) Volume() int32 { return int32(c.volume.Load()) }

// AudioGain returns the locally-applied audio gain multiplier.
func (c *Consumer) AudioGain() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.audioGain
}

// SetAudioGain sets the locally-applied audio gain multiplier.
func (c *Consumer) SetAudioGain(gain float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.audioGain = gain
}

// Detector returns the consumer's speaking detector, or nil for non-audio
// consumers or before a track has arrived.
func (c *Consumer) Detector() *media.SpeakingDetector { return c.detector }

// Track returns the underlying remote track, or nil before it has arrived.
func (c *Consumer) Track() *webrtc.TrackRemote {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.track
}

// CurrentLayers returns the SFU's last-reported active spatial/temporal
// layer (as opposed to the locally-requested preferred layer).
func (c *Consumer) CurrentLayers() (spatial, temporal int32) {
	return c.currentSpatialLayer.Load(), c.currentTemporalLayer.Load()
}

// PreferredLayers returns the locally-requested preferred spatial/temporal
// layer.
func (c *Consumer) PreferredLayers() (spatial, temporal int32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.preferredSpatialLayer, c.preferredTemporalLayer
}
