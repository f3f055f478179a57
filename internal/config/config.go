// Package config loads the Room Client's tunables from a YAML file with
// environment-variable overrides, fills in defaults, and validates them.
// The shape follows the teacher's own config package: Load reads the
// file (if present), applies env overrides, fills defaults, then validates.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// NetworkPriorities mirrors spec.md §6's networkPriorities.* options.
type NetworkPriorities struct {
	Audio            string `yaml:"audio" validate:"required,oneof=high medium low very-low"`
	MainVideo        string `yaml:"mainVideo" validate:"required,oneof=high medium low very-low"`
	AdditionalVideos string `yaml:"additionalVideos" validate:"required,oneof=high medium low very-low"`
	ExtraVideo       string `yaml:"extraVideo" validate:"required,oneof=high medium low very-low"`
	ScreenShare      string `yaml:"screenShare" validate:"required,oneof=high medium low very-low"`
}

// SimulcastProfile describes the encodings table entry for a capture width.
type SimulcastProfile struct {
	Width       int       `yaml:"width" validate:"required,gt=0"`
	ScaleLayers []float64 `yaml:"scaleLayers" validate:"required,min=1"`
}

// Room holds the Room Client's own tunables (spec.md §6 "Configuration").
type Room struct {
	HideTimeout              time.Duration      `yaml:"hideTimeout"`
	RequestTimeout           time.Duration      `yaml:"requestTimeout" validate:"required,gt=0"`
	RequestRetries           int                `yaml:"requestRetries" validate:"gte=0"`
	Simulcast                bool               `yaml:"simulcast"`
	SimulcastSharing         bool               `yaml:"simulcastSharing"`
	SimulcastProfiles        []SimulcastProfile `yaml:"simulcastProfiles"`
	LastN                    int                `yaml:"lastN" validate:"gt=0"`
	MobileLastN              int                `yaml:"mobileLastN" validate:"gt=0"`
	AdaptiveScalingFactor    float64            `yaml:"adaptiveScalingFactor"`
	AutoMuteThreshold        int                `yaml:"autoMuteThreshold" validate:"gte=0"`
	NetworkPriorities        NetworkPriorities  `yaml:"networkPriorities"`
	NotificationSounds       bool               `yaml:"notificationSounds"`
	SupportedBrowsers        []string           `yaml:"supportedBrowsers"`
	Background               string             `yaml:"background"`
	Theme                    string             `yaml:"theme"`
	LoginEnabled             bool               `yaml:"loginEnabled"`
	VoiceActivatedUnmute     bool               `yaml:"voiceActivatedUnmute"`
	VirtualBackgroundEnabled bool               `yaml:"virtualBackgroundEnabled"`
	EnableOpusDetails        bool               `yaml:"enableOpusDetails"`
}

// AudioConstraints mirrors the getUserMedia audio constraint set used by
// updateMic (spec.md §4.3).
type AudioConstraints struct {
	SampleRate       int  `yaml:"sampleRate" validate:"required,gt=0"`
	ChannelCount     int  `yaml:"channelCount" validate:"required,gt=0"`
	SampleSize       int  `yaml:"sampleSize" validate:"required,gt=0"`
	AutoGainControl  bool `yaml:"autoGainControl"`
	EchoCancellation bool `yaml:"echoCancellation"`
	NoiseSuppression bool `yaml:"noiseSuppression"`
}

// OpusCodecOptions mirrors the codec options passed on produce for mic
// (spec.md §4.3).
type OpusCodecOptions struct {
	Stereo          bool `yaml:"opusStereo"`
	Fec             bool `yaml:"opusFec"`
	Dtx             bool `yaml:"opusDtx"`
	MaxPlaybackRate int  `yaml:"opusMaxPlaybackRate"`
	Ptime           int  `yaml:"opusPtime"`
}

// ServerConfig is the demo host binary's HTTP/admin surface configuration.
type ServerConfig struct {
	Host               string        `yaml:"host"`
	Port               int           `yaml:"port"`
	TrustedProxyCIDRs  []string      `yaml:"trustedProxyCidrs"`
	RateLimitRequests  int           `yaml:"rateLimitRequests"`
	RateLimitWindow    time.Duration `yaml:"rateLimitWindow"`
}

// SFUConfig describes how to reach the signaling/SFU endpoint and its
// TURN relay, mirrored from the teacher's internal/sfu TURN handling.
type SFUConfig struct {
	SignalingURL string     `yaml:"signalingUrl" validate:"required"`
	TURN         TURNConfig `yaml:"turn"`
}

type TURNConfig struct {
	Host   string        `yaml:"host"`
	Port   int           `yaml:"port"`
	Secret string        `yaml:"secret"`
	TTL    time.Duration `yaml:"ttl"`
}

// AuthConfig configures join-token verification (internal/joinauth).
type AuthConfig struct {
	JoinTokenSecret string `yaml:"joinTokenSecret"`
}

// HistoryConfig configures the room history persistence layer.
type HistoryConfig struct {
	Path string `yaml:"path"`
}

type Config struct {
	Server  ServerConfig     `yaml:"server"`
	SFU     SFUConfig        `yaml:"sfu"`
	Auth    AuthConfig       `yaml:"auth"`
	History HistoryConfig    `yaml:"history"`
	Room    Room             `yaml:"room"`
	Audio   AudioConstraints `yaml:"audio"`
	Opus    OpusCodecOptions `yaml:"opus"`
}

var validate = validator.New()

// Load reads path (if present), applies env overrides, fills in defaults,
// and validates the result. A missing file is not an error — env vars and
// defaults still apply.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	cfg.setDefaults()

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			*dst = i
		}
	}
}

func envBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func envDuration(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func envFloat(key string, dst *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func (c *Config) applyEnvOverrides() {
	envString("ROOMCLIENT_SERVER_HOST", &c.Server.Host)
	envInt("ROOMCLIENT_SERVER_PORT", &c.Server.Port)
	envInt("ROOMCLIENT_RATE_LIMIT_REQUESTS", &c.Server.RateLimitRequests)
	envDuration("ROOMCLIENT_RATE_LIMIT_WINDOW", &c.Server.RateLimitWindow)

	if proxies := os.Getenv("ROOMCLIENT_TRUSTED_PROXY_CIDRS"); proxies != "" {
		parts := strings.Split(proxies, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if t := strings.TrimSpace(p); t != "" {
				out = append(out, t)
			}
		}
		c.Server.TrustedProxyCIDRs = out
	}

	envString("ROOMCLIENT_SFU_SIGNALING_URL", &c.SFU.SignalingURL)
	envString("ROOMCLIENT_TURN_HOST", &c.SFU.TURN.Host)
	envInt("ROOMCLIENT_TURN_PORT", &c.SFU.TURN.Port)
	envString("ROOMCLIENT_TURN_SECRET", &c.SFU.TURN.Secret)
	envDuration("ROOMCLIENT_TURN_TTL", &c.SFU.TURN.TTL)

	envString("ROOMCLIENT_JOIN_TOKEN_SECRET", &c.Auth.JoinTokenSecret)
	envString("ROOMCLIENT_HISTORY_PATH", &c.History.Path)

	envDuration("ROOMCLIENT_REQUEST_TIMEOUT", &c.Room.RequestTimeout)
	envInt("ROOMCLIENT_REQUEST_RETRIES", &c.Room.RequestRetries)
	envBool("ROOMCLIENT_SIMULCAST", &c.Room.Simulcast)
	envInt("ROOMCLIENT_LAST_N", &c.Room.LastN)
	envInt("ROOMCLIENT_MOBILE_LAST_N", &c.Room.MobileLastN)
	envFloat("ROOMCLIENT_ADAPTIVE_SCALING_FACTOR", &c.Room.AdaptiveScalingFactor)
	envInt("ROOMCLIENT_AUTO_MUTE_THRESHOLD", &c.Room.AutoMuteThreshold)
	envBool("ROOMCLIENT_VOICE_ACTIVATED_UNMUTE", &c.Room.VoiceActivatedUnmute)
	envBool("ROOMCLIENT_VIRTUAL_BACKGROUND", &c.Room.VirtualBackgroundEnabled)
	envBool("ROOMCLIENT_ENABLE_OPUS_DETAILS", &c.Room.EnableOpusDetails)

	if origins := os.Getenv("ROOMCLIENT_SUPPORTED_BROWSERS"); origins != "" {
		parts := strings.Split(origins, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if t := strings.TrimSpace(p); t != "" {
				out = append(out, t)
			}
		}
		c.Room.SupportedBrowsers = out
	}
}

func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.RateLimitRequests == 0 {
		c.Server.RateLimitRequests = 60
	}
	if c.Server.RateLimitWindow == 0 {
		c.Server.RateLimitWindow = time.Minute
	}
	if c.Room.RequestTimeout == 0 {
		c.Room.RequestTimeout = 10 * time.Second
	}
	if c.Room.RequestRetries == 0 {
		c.Room.RequestRetries = 3
	}
	if c.Room.LastN == 0 {
		c.Room.LastN = 4
	}
	if c.Room.MobileLastN == 0 {
		c.Room.MobileLastN = 1
	}
	if c.Room.AdaptiveScalingFactor == 0 {
		c.Room.AdaptiveScalingFactor = 0.75
	}
	c.Room.AdaptiveScalingFactor = clamp(c.Room.AdaptiveScalingFactor, 0.5, 1.0)

	if c.Room.NetworkPriorities.Audio == "" {
		c.Room.NetworkPriorities = NetworkPriorities{
			Audio:            "high",
			MainVideo:        "high",
			AdditionalVideos: "medium",
			ExtraVideo:       "medium",
			ScreenShare:      "medium",
		}
	}
	if c.Audio.SampleRate == 0 {
		c.Audio = AudioConstraints{
			SampleRate:       48000,
			ChannelCount:     1,
			SampleSize:       16,
			AutoGainControl:  true,
			EchoCancellation: true,
			NoiseSuppression: true,
		}
	}
	if c.Opus.MaxPlaybackRate == 0 {
		c.Opus = OpusCodecOptions{
			Stereo:          false,
			Fec:             true,
			Dtx:             false,
			MaxPlaybackRate: 48000,
			Ptime:           20,
		}
	}
	if c.History.Path == "" {
		c.History.Path = "./data/roomclient-history.db"
	}
	if c.SFU.TURN.Port == 0 {
		c.SFU.TURN.Port = 3478
	}
	if c.SFU.TURN.TTL == 0 {
		c.SFU.TURN.TTL = 24 * time.Hour
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
