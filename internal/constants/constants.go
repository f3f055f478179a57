// Package constants holds wire-level and tuning constants shared across
// the room client: error codes, video resolution tiers, network priority
// tiers and buffer sizes.
package constants

import "time"

// Transport-agnostic and signaling-domain error codes, surfaced on the
// ErrorPayload of a notification or on a failed sendRequest.
const (
	ErrCodeAuthFailed     = "AUTH_FAILED"
	ErrCodeRateLimited    = "RATE_LIMITED"
	ErrCodeInvalidRequest = "INVALID_REQUEST"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeInternal       = "INTERNAL_ERROR"

	ErrCodeSignalingTimeout     = "SIGNALING_TIMEOUT"
	ErrCodeSignalingDisconnect  = "SIGNALING_DISCONNECTED"
	ErrCodeMediaAcquisition     = "MEDIA_ACQUISITION_FAILED"
	ErrCodeDeviceCapability     = "DEVICE_CAPABILITY_UNSUPPORTED"
	ErrCodeInvalidArgument      = "INVALID_ARGUMENT"
	ErrCodeSFUProducerNotFound  = "SFU_PRODUCER_NOT_FOUND"
	ErrCodeSFUConsumerNotFound  = "SFU_CONSUMER_NOT_FOUND"
)

// VideoResolutionTier names the coarse buckets used to pick a target
// capture width; mirrors spec.md §6's constants table.
type VideoResolutionTier string

const (
	ResolutionLow      VideoResolutionTier = "low"
	ResolutionMedium   VideoResolutionTier = "medium"
	ResolutionHigh     VideoResolutionTier = "high"
	ResolutionVeryHigh VideoResolutionTier = "veryhigh"
	ResolutionUltra    VideoResolutionTier = "ultra"
)

// VideoConstraintWidths maps a resolution tier to its target capture width.
var VideoConstraintWidths = map[VideoResolutionTier]int{
	ResolutionLow:      320,
	ResolutionMedium:    640,
	ResolutionHigh:      1280,
	ResolutionVeryHigh:  1920,
	ResolutionUltra:     3840,
}

// NetworkPriority mirrors the WebRTC RTCPriorityType tiers. The media
// registry passes one to buildEncodings, but no encoding carries it: the
// encodings sent to the SFU have no networkPriority set.
type NetworkPriority string

const (
	PriorityHigh     NetworkPriority = "high"
	PriorityMedium   NetworkPriority = "medium"
	PriorityLow      NetworkPriority = "low"
	PriorityVeryLow  NetworkPriority = "very-low"
)

// Producer sources, per spec.md §3.
type ProducerSource string

const (
	SourceMic         ProducerSource = "mic"
	SourceWebcam      ProducerSource = "webcam"
	SourceExtraVideo  ProducerSource = "extravideo"
	SourceScreen      ProducerSource = "screen"
	SourceScreenAudio ProducerSource = "screen-audio"
)

// MediaKind is the RTP media kind.
type MediaKind string

const (
	KindAudio MediaKind = "audio"
	KindVideo MediaKind = "video"
)

// ConsumerType mirrors the mediasoup-style consumer encoding shape.
type ConsumerType string

const (
	ConsumerSimple    ConsumerType = "simple"
	ConsumerSimulcast ConsumerType = "simulcast"
	ConsumerSVC       ConsumerType = "svc"
)

// Buffer sizes and default timings, grounded on the teacher's
// internal/constants and internal/ws default buffer/interval sizes.
const (
	WSClientSendBufferSize = 256
	RTPPacketBufferBytes   = 1500

	DefaultRequestTimeout  = 10 * time.Second
	DefaultRequestRetries  = 3
	DefaultICERestartDelay = 2 * time.Second
	MaxICERestartDelay     = 30 * time.Second

	DefaultAdaptiveScalingFactor = 0.75
	MinAdaptiveScalingFactor     = 0.5
	MaxAdaptiveScalingFactor     = 1.0
)

// VideoOrientationExtensionURI is the RTP header extension stripped from
// router RTP capabilities as a Firefox/Safari compatibility workaround
// (spec.md §4.2).
const VideoOrientationExtensionURI = "urn:3gpp:video-orientation"
