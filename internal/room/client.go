// Package room implements the Room State Coordinator: the lobby/joined/
// closed state machine, `_joinRoom` orchestration, permission/role/chat/
// recording aggregation, and the notification dispatch table that wires
// every inbound signaling method to a store mutation and/or a
// notification-surface event.
package room

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/microcosm-cc/bluemonday"
	"github.com/pion/logging"
	"github.com/pion/webrtc/v4"

	"roomclient/internal/config"
	"roomclient/internal/consumer"
	"roomclient/internal/device"
	"roomclient/internal/history"
	"roomclient/internal/media"
	"roomclient/internal/notify"
	"roomclient/internal/signaling"
	"roomclient/internal/spotlight"
	"roomclient/internal/store"
)

// State is the coordinator's lifecycle state, per spec.md §4.6's
// new→connecting→connected→closed machine.
type State int32

const (
	StateNew State = iota
	StateConnecting
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// JoinOptions mirrors the UI-level join(...) command's argument bag.
type JoinOptions struct {
	DisplayName string
	Picture     string
	From        string
	RoomID      string
	Returning   bool
	JoinAudio   bool
	JoinVideo   bool
}

// joinResponse mirrors the `join` signaling request's response shape.
type joinResponse struct {
	Authenticated        bool                `json:"authenticated"`
	Roles                []string            `json:"roles"`
	Peers                []store.Peer        `json:"peers"`
	Tracker              map[string]any      `json:"tracker"`
	RoomPermissions      map[string][]string `json:"roomPermissions"`
	UserRoles            map[string][]string `json:"userRoles"`
	AllowWhenRoleMissing []string            `json:"allowWhenRoleMissing"`
	ChatHistory          []store.ChatMessage `json:"chatHistory"`
	FileHistory          []store.FileEntry   `json:"fileHistory"`
	Locked               bool                `json:"locked"`
	LobbyPeers           []store.Peer        `json:"lobbyPeers"`
	AccessCode           string              `json:"accessCode"`
}

// RoomClient is the process-wide controller wiring the signaling session,
// the two WebRTC transports, the producer/consumer registries, the
// spotlight selector, the reactive store, and the notification surface
// into one coherent lifecycle, per spec.md §9's "created exactly once at
// application bootstrap" note.
type RoomClient struct {
	cfg *config.Config
	log logging.LeveledLogger

	session *signaling.Session

	Store    *store.Store
	Notifier *notify.Notifier

	sanitizer *bluemonday.Policy

	trackSource media.TrackSource

	state atomic.Int32

	mu              sync.Mutex
	joinOpts        JoinOptions
	history         *history.Store
	everJoined      bool
	inLobby         bool
	device          *device.Device
	routerCaps      device.RouterRTPCapabilities
	sendTransport   *device.Transport
	recvTransport   *device.Transport
	sendTransportID string
	recvTransportID string

	producers  *media.Registry
	consumers  *consumer.Registry
	spotlights *spotlight.Selector

	signInRequired atomic.Bool
	overRoomLimit  atomic.Bool

	closeOnce sync.Once
}

// New builds a RoomClient around dial (the signaling transport factory)
// and trackSource (the getUserMedia/getDisplayMedia seam). It registers
// the lifecycle and notification handlers, but performs no I/O until
// Join is called.
func New(cfg *config.Config, dial signaling.Dialer, trackSource media.TrackSource, log logging.LeveledLogger) *RoomClient {
	if log == nil {
		log = logging.NewDefaultLoggerFactory().NewLogger("room")
	}

	session := signaling.New(dial, signaling.Options{
		RequestTimeout: cfg.Room.RequestTimeout,
		RequestRetries: cfg.Room.RequestRetries,
	}, log)

	c := &RoomClient{
		cfg:         cfg,
		log:         log,
		session:     session,
		Store:       store.New(),
		Notifier:    notify.New(cfg.Room.NotificationSounds),
		sanitizer:   bluemonday.StrictPolicy(),
		trackSource: trackSource,
	}
	c.state.Store(int32(StateNew))

	session.OnConnect(c.handleSessionConnect)
	session.OnDisconnect(c.handleSessionDisconnect)
	session.OnReconnect(c.handleSessionReconnect)
	session.OnReconnectFailed(c.handleSessionReconnectFailed)
	c.registerNotificationHandlers()

	return c
}

// State returns the coordinator's current lifecycle state.
func (c *RoomClient) State() State { return State(c.state.Load()) }

// Session exposes the underlying signaling session for the command
// wrappers in requests.go.
func (c *RoomClient) Session() *signaling.Session { return c.session }

// SetHistoryStore attaches a local persistence layer for chat, shared
// files, and recording consent so this process's cached copies survive a
// restart. Must be called before Join; a nil store (the default) disables
// persistence entirely and every write becomes a no-op.
func (c *RoomClient) SetHistoryStore(s *history.Store) {
	c.mu.Lock()
	c.history = s
	c.mu.Unlock()
}

// Join starts the connect→(lobby)→roomReady→_joinRoom flow: it connects
// the signaling session, loads the device's RTP capabilities, and brings
// up both WebRTC transports. The transition to connected happens later,
// asynchronously, once a roomReady notification drives _joinRoom.
func (c *RoomClient) Join(ctx context.Context, opts JoinOptions) error {
	if !c.state.CompareAndSwap(int32(StateNew), int32(StateConnecting)) {
		return fmt.Errorf("join called outside the new state")
	}

	c.mu.Lock()
	c.joinOpts = opts
	c.mu.Unlock()

	if err := c.session.Connect(ctx); err != nil {
		c.state.Store(int32(StateNew))
		return fmt.Errorf("connecting signaling session: %w", err)
	}

	if err := c.setupMedia(ctx); err != nil {
		c.state.Store(int32(StateNew))
		return err
	}

	return nil
}

// setupMedia performs the getRouterRtpCapabilities/device-load/transport
// pair that both the initial Join and a post-reconnect resumption need.
// Per spec.md §4.6 scenario 3, a reconnect resumes media without resending
// the outer `join` request, so this is factored out from _joinRoom.
func (c *RoomClient) setupMedia(ctx context.Context) error {
	var caps device.RouterRTPCapabilities
	if err := c.session.SendRequest(ctx, "getRouterRtpCapabilities", nil, &caps); err != nil {
		return fmt.Errorf("fetching router rtp capabilities: %w", err)
	}

	dev := device.New()
	if err := dev.Load(caps); err != nil {
		return fmt.Errorf("loading device capabilities: %w", err)
	}

	c.mu.Lock()
	from := c.joinOpts.From
	c.mu.Unlock()
	iceServers := device.BuildICEServers(c.cfg.SFU.TURN, from)

	sendTransport, sendID, err := c.createTransport(ctx, dev, device.DirectionSend, iceServers, nil)
	if err != nil {
		return fmt.Errorf("creating send transport: %w", err)
	}

	// consumers is filled in just below; the recv transport's OnTrack
	// callback closes over this pointer because the registry can't exist
	// until the transport it wraps does.
	var consumers *consumer.Registry
	onTrack := func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		if consumers != nil {
			consumers.HandleTrack(track, receiver)
		}
	}
	recvTransport, recvID, err := c.createTransport(ctx, dev, device.DirectionRecv, iceServers, onTrack)
	if err != nil {
		sendTransport.Close()
		return fmt.Errorf("creating recv transport: %w", err)
	}

	producers := media.New(c.session, dev, sendTransport, c.trackSource, &c.cfg.Room, sendID, c.handleMicSpeakingChange, c.handleMicAutoMuteChange)
	consumers = consumer.New(recvTransport, c.session, c.handleVolumeChange)

	maxSpotlights := c.cfg.Room.LastN
	selector := spotlight.New(maxSpotlights, true)
	selector.OnChange(func(list []string) {
		c.Store.SetSpotlights(list)
		consumers.UpdateSpotlights(context.Background(), list)
	})

	c.mu.Lock()
	c.device = dev
	c.routerCaps = caps
	c.sendTransport = sendTransport
	c.recvTransport = recvTransport
	c.sendTransportID = sendID
	c.recvTransportID = recvID
	c.producers = producers
	c.consumers = consumers
	c.spotlights = selector
	c.mu.Unlock()

	return nil
}

// createTransport builds one direction of a Transport and wires its
// negotiationneeded handler to a connectWebRtcTransport round trip.
// pion has no equivalent of mediasoup-client's separate ICE/DTLS
// parameter exchange, so the offer/answer SDP is carried end to end
// inside the dtlsParameters-shaped field of connectWebRtcTransport: an
// explicit adaptation, not a literal reading of spec.md §6's shape.
func (c *RoomClient) createTransport(ctx context.Context, dev *device.Device, direction device.Direction, iceServers []device.ICEServerInfo, onTrack func(*webrtc.TrackRemote, *webrtc.RTPReceiver)) (*device.Transport, string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	if err := c.session.SendRequest(ctx, "createWebRtcTransport", map[string]any{
		"forceTcp":  false,
		"producing": direction == device.DirectionSend,
		"consuming": direction == device.DirectionRecv,
	}, &resp); err != nil {
		return nil, "", err
	}
	transportID := resp.ID

	var transport *device.Transport
	transport, err := device.NewTransport(dev, direction, iceServers, device.Callbacks{
		OnNegotiationNeeded: func(offer webrtc.SessionDescription) {
			c.negotiate(ctx, transportID, transport, offer)
		},
		OnTrack: onTrack,
		OnConnectionChange: func(state device.ConnectionState) {
			c.handleTransportStateChange(direction, transportID, state)
		},
	}, c.log)
	if err != nil {
		return nil, "", err
	}
	return transport, transportID, nil
}

func (c *RoomClient) negotiate(ctx context.Context, transportID string, transport *device.Transport, offer webrtc.SessionDescription) {
	var answer struct {
		SDP string `json:"sdp"`
	}
	err := c.session.SendRequest(ctx, "connectWebRtcTransport", map[string]any{
		"transportId":    transportID,
		"dtlsParameters": map[string]string{"sdp": offer.SDP},
	}, &answer)
	if err != nil {
		c.Notifier.Error("failed to negotiate media connection")
		return
	}
	if answer.SDP == "" {
		return
	}
	if err := transport.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: answer.SDP}); err != nil {
		c.Notifier.Error("failed to apply media connection answer")
	}
}

func (c *RoomClient) handleTransportStateChange(direction device.Direction, transportID string, state device.ConnectionState) {
	if state != device.ConnectionFailed && state != device.ConnectionDisconnected {
		return
	}
	go func() {
		c.mu.Lock()
		t := c.sendTransport
		if direction == device.DirectionRecv {
			t = c.recvTransport
		}
		c.mu.Unlock()
		if t == nil {
			return
		}
		if err := t.RestartICE(context.Background()); err != nil {
			c.log.Warnf("%s transport ice restart: %v", direction, err)
			return
		}
		if err := c.session.SendRequest(context.Background(), "restartIce", map[string]string{"transportId": transportID}, nil); err != nil {
			c.log.Warnf("restartIce request for %s transport: %v", direction, err)
		}
	}()
}

// handleVolumeChange publishes a consumer's coalesced volume reading to
// the store; the SFU, not local volume, drives active-speaker selection
// (see onActiveSpeaker), so this does not touch the spotlight selector.
func (c *RoomClient) handleVolumeChange(peerID string, volumeDB int) {
	c.Store.SetPeerVolume(peerID, volumeDB)
}

// handleMicSpeakingChange publishes the local mic producer's own
// speaking/stopped_speaking edges to the store's Me fields.
func (c *RoomClient) handleMicSpeakingChange(speaking bool) {
	c.Store.SetMeSpeaking(speaking)
}

// handleMicAutoMuteChange publishes voiceActivatedUnmute auto-pausing or
// auto-resuming the local mic.
func (c *RoomClient) handleMicAutoMuteChange(autoMuted bool) {
	c.Store.SetAutoMuted(autoMuted)
}

// teardownMedia closes both transports and drops the producer/consumer/
// spotlight registries, per spec.md §8 scenario 3 ("all producers,
// transports, consumers, spotlights are cleared").
func (c *RoomClient) teardownMedia() {
	c.mu.Lock()
	send := c.sendTransport
	recv := c.recvTransport
	c.sendTransport = nil
	c.recvTransport = nil
	c.producers = nil
	c.consumers = nil
	c.spotlights = nil
	c.mu.Unlock()

	if send != nil {
		send.Close()
	}
	if recv != nil {
		recv.Close()
	}
	c.Store.SetSpotlights(nil)
}

// Close tears the coordinator down permanently: both transports and the
// signaling session are closed and any subsequent SFU responses are
// discarded, per spec.md §5's cancellation note.
func (c *RoomClient) Close() error {
	c.closeOnce.Do(func() {
		c.state.Store(int32(StateClosed))
		c.teardownMedia()
		c.session.Close()
	})
	return nil
}
