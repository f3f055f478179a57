// Package device wraps pion/webrtc/v4 behind the load/canProduce/
// createSendTransport/createRecvTransport/produce/consume/restartIce surface
// the signaling layer assumes for its WebRTC endpoint.
package device

import (
	"fmt"
	"sync"

	"github.com/pion/interceptor"
	"github.com/pion/logging"
	"github.com/pion/webrtc/v4"

	"roomclient/internal/constants"
)

// Device owns the webrtc.API built from the server's advertised RTP
// capabilities, and is shared by every Transport the Room State
// Coordinator creates.
type Device struct {
	mu     sync.RWMutex
	loaded bool
	api    *webrtc.API

	canProduceAudio bool
	canProduceVideo bool
}

// New constructs an unloaded Device. Load must be called once with the
// server's router capabilities before it can build transports.
func New() *Device {
	return &Device{}
}

// Load registers codecs from the router's RTP capabilities (as decoded from
// the getRouterRtpCapabilities response) onto a MediaEngine, attaches the default interceptor
// registry (NACK generation/response, TWCC), strips the video-orientation
// header extension as a Firefox/Safari compatibility workaround, and builds
// the webrtc.API used for every subsequent transport.
func (d *Device) Load(caps RouterRTPCapabilities) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.loaded {
		return fmt.Errorf("device already loaded")
	}

	mediaEngine := &webrtc.MediaEngine{}

	for _, codec := range caps.AudioCodecs() {
		if err := mediaEngine.RegisterCodec(codec, webrtc.RTPCodecTypeAudio); err != nil {
			return fmt.Errorf("registering audio codec %s: %w", codec.MimeType, err)
		}
		d.canProduceAudio = true
	}

	for _, codec := range caps.VideoCodecs() {
		if err := mediaEngine.RegisterCodec(codec, webrtc.RTPCodecTypeVideo); err != nil {
			return fmt.Errorf("registering video codec %s: %w", codec.MimeType, err)
		}
		d.canProduceVideo = true
	}

	for _, ext := range caps.HeaderExtensions {
		if ext.URI == constants.VideoOrientationExtensionURI {
			continue
		}
		for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeAudio, webrtc.RTPCodecTypeVideo} {
			if err := mediaEngine.RegisterHeaderExtension(webrtc.RTPHeaderExtensionCapability{URI: ext.URI}, kind); err != nil {
				continue
			}
		}
	}

	registry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, registry); err != nil {
		return fmt.Errorf("registering default interceptors: %w", err)
	}

	settingEngine := webrtc.SettingEngine{}
	settingEngine.LoggerFactory = logging.NewDefaultLoggerFactory()

	d.api = webrtc.NewAPI(
		webrtc.WithMediaEngine(mediaEngine),
		webrtc.WithInterceptorRegistry(registry),
		webrtc.WithSettingEngine(settingEngine),
	)
	d.loaded = true
	return nil
}

// Loaded reports whether Load has completed successfully.
func (d *Device) Loaded() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.loaded
}

// CanProduce reports whether the device's loaded capabilities include at
// least one codec for kind.
func (d *Device) CanProduce(kind constants.MediaKind) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.loaded {
		return false
	}
	switch kind {
	case constants.KindAudio:
		return d.canProduceAudio
	case constants.KindVideo:
		return d.canProduceVideo
	default:
		return false
	}
}

func (d *Device) webrtcAPI() *webrtc.API {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.api
}

// RouterRTPCapabilities is the decoded shape of the router's RTP
// capabilities, as returned by the getRouterRtpCapabilities request.
type RouterRTPCapabilities struct {
	Codecs           []RTPCodec          `json:"codecs"`
	HeaderExtensions []RTPHeaderExtension `json:"headerExtensions"`
}

type RTPCodec struct {
	Kind        string  `json:"kind"`
	MimeType    string  `json:"mimeType"`
	ClockRate   uint32  `json:"clockRate"`
	Channels    uint16  `json:"channels,omitempty"`
	PayloadType uint8   `json:"preferredPayloadType"`
	SDPFmtp     string  `json:"sdpFmtpLine,omitempty"`
}

type RTPHeaderExtension struct {
	URI string `json:"uri"`
}

// AudioCodecs returns the capability set's audio codecs as webrtc
// RTPCodecParameters, ready for MediaEngine.RegisterCodec.
func (c RouterRTPCapabilities) AudioCodecs() []webrtc.RTPCodecParameters {
	return c.codecsOfKind("audio")
}

// VideoCodecs returns the capability set's video codecs as webrtc
// RTPCodecParameters, ready for MediaEngine.RegisterCodec.
func (c RouterRTPCapabilities) VideoCodecs() []webrtc.RTPCodecParameters {
	return c.codecsOfKind("video")
}

func (c RouterRTPCapabilities) codecsOfKind(kind string) []webrtc.RTPCodecParameters {
	var out []webrtc.RTPCodecParameters
	for _, codec := range c.Codecs {
		if codec.Kind != kind {
			continue
		}
		out = append(out, webrtc.RTPCodecParameters{
			RTPCodecCapability: webrtc.RTPCodecCapability{
				MimeType:    codec.MimeType,
				ClockRate:   codec.ClockRate,
				Channels:    codec.Channels,
				SDPFmtpLine: codec.SDPFmtp,
			},
			PayloadType: webrtc.PayloadType(codec.PayloadType),
		})
	}
	return out
}
