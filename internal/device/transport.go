package device

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/logging"
	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v4"

	"roomclient/internal/constants"
)

// Direction distinguishes a Transport's send (produce) side from its recv
// (consume) side; spec.md §2 models these as two separate transports per
// peer, each with its own ICE/DTLS state.
type Direction int

const (
	DirectionSend Direction = iota
	DirectionRecv
)

func (d Direction) String() string {
	if d == DirectionSend {
		return "send"
	}
	return "recv"
}

// ConnectionState mirrors webrtc.PeerConnectionState but is owned by
// Transport so callers don't need to import pion/webrtc directly.
type ConnectionState int32

const (
	ConnectionNew ConnectionState = iota
	ConnectionConnecting
	ConnectionConnected
	ConnectionDisconnected
	ConnectionFailed
	ConnectionClosed
)

// Transport wraps one webrtc.PeerConnection, exposing the produce/consume/
// restartIce surface the Room State Coordinator drives. One Device builds
// exactly two Transports per joined room: a send transport and a recv
// transport.
type Transport struct {
	direction Direction
	pc        *webrtc.PeerConnection
	log       logging.LeveledLogger

	state atomic.Int32

	onNegotiationNeeded func(offer webrtc.SessionDescription)
	onICECandidate      func(webrtc.ICECandidateInit)
	onTrack             func(*webrtc.TrackRemote, *webrtc.RTPReceiver)
	onKeyFrameRequest   func(ssrc webrtc.SSRC)
	onConnectionChange  func(ConnectionState)

	restarting    atomic.Bool
	restartDelay  time.Duration
	closed        chan struct{}
	closeOnce     sync.Once
}

// Callbacks bundles the handlers a Transport invokes as the underlying
// PeerConnection reports events. All fields are optional.
type Callbacks struct {
	OnNegotiationNeeded func(offer webrtc.SessionDescription)
	OnICECandidate      func(webrtc.ICECandidateInit)
	OnTrack             func(*webrtc.TrackRemote, *webrtc.RTPReceiver)
	OnKeyFrameRequest   func(ssrc webrtc.SSRC)
	OnConnectionChange  func(ConnectionState)
}

// NewTransport builds a Transport of the given direction using dev's API
// and iceServers, and wires cb's handlers to the underlying connection's
// negotiationneeded/icecandidate/track/connectionstatechange events.
func NewTransport(dev *Device, direction Direction, iceServers []ICEServerInfo, cb Callbacks, log logging.LeveledLogger) (*Transport, error) {
	if !dev.Loaded() {
		return nil, fmt.Errorf("device not loaded")
	}

	servers := make([]webrtc.ICEServer, 0, len(iceServers))
	for _, s := range iceServers {
		servers = append(servers, webrtc.ICEServer{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}

	pc, err := dev.webrtcAPI().NewPeerConnection(webrtc.Configuration{ICEServers: servers})
	if err != nil {
		return nil, fmt.Errorf("creating %s peer connection: %w", direction, err)
	}

	if log == nil {
		log = logging.NewDefaultLoggerFactory().NewLogger("device")
	}

	t := &Transport{
		direction:           direction,
		pc:                  pc,
		log:                 log,
		onNegotiationNeeded: cb.OnNegotiationNeeded,
		onICECandidate:      cb.OnICECandidate,
		onTrack:             cb.OnTrack,
		onKeyFrameRequest:   cb.OnKeyFrameRequest,
		onConnectionChange:  cb.OnConnectionChange,
		restartDelay:        constants.DefaultICERestartDelay,
		closed:              make(chan struct{}),
	}
	t.state.Store(int32(ConnectionNew))

	pc.OnNegotiationNeeded(t.handleNegotiationNeeded)
	pc.OnICECandidate(t.handleICECandidate)
	pc.OnTrack(t.handleTrack)
	pc.OnConnectionStateChange(t.handleConnectionStateChange)

	return t, nil
}

func (t *Transport) handleNegotiationNeeded() {
	if t.onNegotiationNeeded == nil {
		return
	}
	offer, err := t.pc.CreateOffer(nil)
	if err != nil {
		t.log.Warnf("%s transport: creating offer on negotiationneeded: %v", t.direction, err)
		return
	}
	if err := t.pc.SetLocalDescription(offer); err != nil {
		t.log.Warnf("%s transport: setting local description on negotiationneeded: %v", t.direction, err)
		return
	}
	t.onNegotiationNeeded(offer)
}

func (t *Transport) handleICECandidate(c *webrtc.ICECandidate) {
	if c == nil || t.onICECandidate == nil {
		return
	}
	t.onICECandidate(c.ToJSON())
}

func (t *Transport) handleTrack(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
	go t.superviseReceiverRTCP(receiver)
	if t.onTrack != nil {
		t.onTrack(track, receiver)
	}
}

func (t *Transport) handleConnectionStateChange(s webrtc.PeerConnectionState) {
	var mapped ConnectionState
	switch s {
	case webrtc.PeerConnectionStateNew:
		mapped = ConnectionNew
	case webrtc.PeerConnectionStateConnecting:
		mapped = ConnectionConnecting
	case webrtc.PeerConnectionStateConnected:
		mapped = ConnectionConnected
		t.restarting.Store(false)
		t.restartDelay = constants.DefaultICERestartDelay
	case webrtc.PeerConnectionStateDisconnected:
		mapped = ConnectionDisconnected
	case webrtc.PeerConnectionStateFailed:
		mapped = ConnectionFailed
	case webrtc.PeerConnectionStateClosed:
		mapped = ConnectionClosed
	}
	t.state.Store(int32(mapped))
	if t.onConnectionChange != nil {
		t.onConnectionChange(mapped)
	}
}

// superviseReceiverRTCP reads RTCP feedback off receiver and surfaces
// PictureLossIndication/FullIntraRequest as a keyframe callback — the
// inbound-side counterpart of requestConsumerKeyFrame.
func (t *Transport) superviseReceiverRTCP(receiver *webrtc.RTPReceiver) {
	for {
		packets, _, err := receiver.ReadRTCP()
		if err != nil {
			return
		}
		for _, pkt := range packets {
			switch p := pkt.(type) {
			case *rtcp.PictureLossIndication:
				if t.onKeyFrameRequest != nil {
					t.onKeyFrameRequest(webrtc.SSRC(p.MediaSSRC))
				}
			case *rtcp.FullIntraRequest:
				if t.onKeyFrameRequest != nil && len(p.FIR) > 0 {
					t.onKeyFrameRequest(webrtc.SSRC(p.FIR[0].SSRC))
				}
			}
		}
	}
}

// State returns the transport's current connection state.
func (t *Transport) State() ConnectionState { return ConnectionState(t.state.Load()) }

// Produce adds a local track to a send transport, returning the resulting
// RTPSender whose RTCP (receiver reports, NACK) is read in the background.
func (t *Transport) Produce(track webrtc.TrackLocal) (*webrtc.RTPSender, error) {
	if t.direction != DirectionSend {
		return nil, fmt.Errorf("produce called on %s transport", t.direction)
	}
	sender, err := t.pc.AddTrack(track)
	if err != nil {
		return nil, fmt.Errorf("adding track: %w", err)
	}
	go t.drainSenderRTCP(sender)
	return sender, nil
}

// drainSenderRTCP discards RTCP on a sent track's sender so pion's internal
// buffers don't fill; keyframe requests arriving on a sender are dropped
// along with everything else.
func (t *Transport) drainSenderRTCP(sender *webrtc.RTPSender) {
	for {
		if _, _, err := sender.ReadRTCP(); err != nil {
			return
		}
	}
}

// RemoveTrack detaches a previously produced sender (used when a producer
// is closed/disabled).
func (t *Transport) RemoveTrack(sender *webrtc.RTPSender) error {
	return t.pc.RemoveTrack(sender)
}

// SetLocalDescription is used by the recv side to answer a server-initiated
// offer for a new consumer.
func (t *Transport) SetLocalDescription(desc webrtc.SessionDescription) error {
	return t.pc.SetLocalDescription(desc)
}

// SetRemoteDescription applies an SDP answer/offer received over signaling.
func (t *Transport) SetRemoteDescription(desc webrtc.SessionDescription) error {
	return t.pc.SetRemoteDescription(desc)
}

// CreateAnswer answers a remote offer already set via SetRemoteDescription.
func (t *Transport) CreateAnswer() (webrtc.SessionDescription, error) {
	return t.pc.CreateAnswer(nil)
}

// AddICECandidate applies a trickled remote candidate.
func (t *Transport) AddICECandidate(c webrtc.ICECandidateInit) error {
	return t.pc.AddICECandidate(c)
}

// RestartICE regenerates ICE parameters and renegotiates, guarded so only
// one restart runs at a time (single-flight) and backed off exponentially
// between consecutive failed attempts, per spec.md §4.2's reconnection
// invariant.
func (t *Transport) RestartICE(ctx context.Context) error {
	if !t.restarting.CompareAndSwap(false, true) {
		return fmt.Errorf("ice restart already in progress for %s transport", t.direction)
	}
	defer t.restarting.Store(false)

	select {
	case <-time.After(t.restartDelay):
	case <-ctx.Done():
		return ctx.Err()
	case <-t.closed:
		return fmt.Errorf("transport closed")
	}

	offer, err := t.pc.CreateOffer(&webrtc.OfferOptions{ICERestart: true})
	if err != nil {
		t.bumpRestartDelay()
		return fmt.Errorf("creating ice-restart offer: %w", err)
	}
	if err := t.pc.SetLocalDescription(offer); err != nil {
		t.bumpRestartDelay()
		return fmt.Errorf("setting local description for ice restart: %w", err)
	}
	if t.onNegotiationNeeded != nil {
		t.onNegotiationNeeded(offer)
	}
	return nil
}

func (t *Transport) bumpRestartDelay() {
	t.restartDelay *= 2
	if t.restartDelay > constants.MaxICERestartDelay {
		t.restartDelay = constants.MaxICERestartDelay
	}
}

// Stats returns the transport's raw getStats report, left as map[string]any
// per the open question on getTransportStats's shape.
func (t *Transport) Stats(ctx context.Context) map[string]any {
	report := t.pc.GetStats()
	out := make(map[string]any, len(report))
	for id, stat := range report {
		out[id] = stat
	}
	return out
}

// Close tears down the underlying peer connection.
func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.closed)
		err = t.pc.Close()
	})
	return err
}
