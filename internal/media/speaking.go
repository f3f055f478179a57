package media

import (
	"math"
	"sync"
	"time"
)

// SpeakingState is the explicit small state machine spec.md §9 calls for in
// place of an ad hoc volume_change/speaking/stopped_speaking callback soup.
type SpeakingState int

const (
	SpeakingIdle SpeakingState = iota
	SpeakingActive
	SpeakingPausedAuto
)

// VolumeChangeThresholdDB is the minimum magnitude of a volume change, up
// or down, that is reported, to reduce flicker (spec.md §4.3).
const VolumeChangeThresholdDB = 0.5

// SpeakingDetector tracks one track's volume samples and derives
// speaking/stopped_speaking edges plus an exponential decay on downward
// transitions. It is transport-agnostic: the caller feeds it dB samples
// from whatever VAD/hark-equivalent library observes the track.
type SpeakingDetector struct {
	mu           sync.Mutex
	state        SpeakingState
	lastVolume   float64
	threshold    float64
	decayPerTick float64

	onVolumeChange func(volumeDB float64)
	onSpeaking     func()
	onStoppedSpeaking func()
}

// NewSpeakingDetector builds a detector; threshold is the dB level above
// which the source is considered "speaking" (hark's default is -ve dB, a
// conventional value is -50).
func NewSpeakingDetector(threshold float64) *SpeakingDetector {
	return &SpeakingDetector{
		threshold:    threshold,
		lastVolume:   -math.MaxFloat64,
		decayPerTick: 6.0,
	}
}

func (d *SpeakingDetector) OnVolumeChange(fn func(float64)) { d.onVolumeChange = fn }
func (d *SpeakingDetector) OnSpeaking(fn func())            { d.onSpeaking = fn }
func (d *SpeakingDetector) OnStoppedSpeaking(fn func())     { d.onStoppedSpeaking = fn }

// Sample feeds one instantaneous volume reading in dBFS.
func (d *SpeakingDetector) Sample(volumeDB float64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	reported := volumeDB
	if volumeDB < d.lastVolume {
		// Exponential decay toward the new, lower reading rather than an
		// instant jump, smoothing out brief dips.
		reported = d.lastVolume - d.decayPerTick
		if reported < volumeDB {
			reported = volumeDB
		}
	}

	if math.Abs(reported-d.lastVolume) >= VolumeChangeThresholdDB {
		d.lastVolume = reported
		if d.onVolumeChange != nil {
			d.onVolumeChange(reported)
		}
	}

	wasSpeaking := d.state == SpeakingActive || d.state == SpeakingPausedAuto
	isSpeaking := volumeDB >= d.threshold

	if isSpeaking && !wasSpeaking {
		d.state = SpeakingActive
		if d.onSpeaking != nil {
			d.onSpeaking()
		}
	} else if !isSpeaking && wasSpeaking {
		d.state = SpeakingIdle
		if d.onStoppedSpeaking != nil {
			d.onStoppedSpeaking()
		}
	}
}

// State returns the detector's current state.
func (d *SpeakingDetector) State() SpeakingState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// MarkPausedAuto records that speaking stopped and the caller auto-paused
// the mic in response (voiceActivatedUnmute), distinguishing an
// auto-pause from an ordinary idle state.
func (d *SpeakingDetector) MarkPausedAuto() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = SpeakingPausedAuto
}

// pollInterval is how often a polling-based volume source (rather than a
// push-based VAD) should sample; unused by Sample directly but documents
// the expected cadence for callers wiring a ticker.
const pollInterval = 250 * time.Millisecond
