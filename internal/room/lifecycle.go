package room

import (
	"context"

	"roomclient/internal/metrics"
	"roomclient/internal/store"
)

func (c *RoomClient) handleSessionConnect() {
	// The signaling channel is up; media setup already ran inline in Join
	// for the first connect. Nothing further to do here until roomReady
	// or enteredLobby arrives.
	metrics.RecordSignalingConnect()
}

// handleSessionDisconnect implements spec.md §7's disconnect-reason split.
// The underlying Channel doesn't currently surface a distinguishable
// "io server disconnect" reason string (gorilla/websocket's close codes
// aren't threaded through signaling.Channel), so every disconnect is
// treated as transient; only an explicit Close() call is permanent. This
// is a documented adaptation, not a literal reading of §7.
func (c *RoomClient) handleSessionDisconnect(err error) {
	if c.State() == StateClosed {
		return
	}
	c.state.Store(int32(StateConnecting))
	c.teardownMedia()
	c.Notifier.Warning("connection lost, reconnecting")
}

// handleSessionReconnect resumes media (fresh transports, no outer `join`
// resend) and, if the room had already been joined before, returns
// straight to connected without re-running _joinRoom — spec.md §8
// scenario 3's "on reconnect event state becomes connected without
// rejoining".
func (c *RoomClient) handleSessionReconnect() {
	if c.State() == StateClosed {
		return
	}
	metrics.RecordSignalingReconnect()

	ctx := context.Background()
	if err := c.setupMedia(ctx); err != nil {
		c.Notifier.Error("failed to resume media after reconnect")
		return
	}

	c.mu.Lock()
	joined := c.everJoined
	c.mu.Unlock()

	if joined {
		c.state.Store(int32(StateConnected))
		c.Notifier.Info("reconnected")
	}
}

func (c *RoomClient) handleSessionReconnectFailed() {
	c.Notifier.Warning("reconnect attempt failed, retrying")
}

// joinRoom is `_joinRoom`: it issues the `join` signaling request,
// hydrates the store with the response, and conditionally starts local
// media, per spec.md §4.6.
func (c *RoomClient) joinRoom(ctx context.Context) {
	c.mu.Lock()
	opts := c.joinOpts
	caps := c.routerCaps
	c.mu.Unlock()

	req := map[string]any{
		"displayName":     opts.DisplayName,
		"picture":         opts.Picture,
		"from":            opts.From,
		"rtpCapabilities": caps,
		"returning":       opts.Returning,
	}

	var resp joinResponse
	if err := c.session.SendRequest(ctx, "join", req, &resp); err != nil {
		c.Notifier.Error("failed to join the room")
		return
	}

	c.Store.HydrateJoin(store.JoinHydration{
		MePeerID:             opts.From,
		Peers:                resp.Peers,
		Roles:                resp.Roles,
		UserRoles:            resp.UserRoles,
		RoomPermissions:      resp.RoomPermissions,
		AllowWhenRoleMissing: resp.AllowWhenRoleMissing,
		ChatHistory:          resp.ChatHistory,
		FileHistory:          resp.FileHistory,
		Locked:               resp.Locked,
		LobbyPeers:           resp.LobbyPeers,
		AccessCode:           resp.AccessCode,
		Tracker:              resp.Tracker,
	})

	c.mu.Lock()
	c.everJoined = true
	c.inLobby = false
	c.mu.Unlock()
	c.state.Store(int32(StateConnected))

	canSendMic := hasPermission(resp.RoomPermissions, resp.UserRoles, resp.AllowWhenRoleMissing, opts.From, "SHARE_AUDIO")
	canSendWebcam := hasPermission(resp.RoomPermissions, resp.UserRoles, resp.AllowWhenRoleMissing, opts.From, "SHARE_VIDEO")

	c.Store.SetMediaCapabilities(store.MediaCapabilities{
		CanSendMic:    canSendMic,
		CanSendWebcam: canSendWebcam,
	})

	if opts.JoinVideo && canSendWebcam {
		go c.startWebcam(context.Background())
	}
	if opts.JoinAudio && canSendMic {
		autoMute := c.cfg.Room.AutoMuteThreshold > 0 && len(resp.Peers) >= c.cfg.Room.AutoMuteThreshold
		go c.startMic(context.Background(), autoMute)
	}
}

func (c *RoomClient) startWebcam(ctx context.Context) {
	c.mu.Lock()
	producers := c.producers
	c.mu.Unlock()
	if producers == nil {
		return
	}
	err := producers.UpdateWebcam(ctx, mediaWebcamDefaults(c.cfg))
	if err != nil {
		c.Notifier.Error("could not start your camera")
	}
}

func (c *RoomClient) startMic(ctx context.Context, startMuted bool) {
	c.mu.Lock()
	producers := c.producers
	c.mu.Unlock()
	if producers == nil {
		return
	}
	if err := producers.UpdateMic(ctx, mediaMicOptions(true), c.cfg.Audio, c.cfg.Opus); err != nil {
		c.Notifier.Error("could not start your microphone")
		return
	}
	if startMuted {
		_ = producers.MuteMic(ctx)
	}
}

// hasPermission mirrors the RoomPermissions/UserRoles/AllowWhenRoleMissing
// evaluation: a peer has `permission` if any role it holds is listed
// under roomPermissions[permission], or if permission is in
// allowWhenRoleMissing and the peer holds no roles at all.
func hasPermission(roomPermissions map[string][]string, userRoles map[string][]string, allowWhenRoleMissing []string, peerID, permission string) bool {
	roles := userRoles[peerID]
	if len(roles) == 0 {
		for _, p := range allowWhenRoleMissing {
			if p == permission {
				return true
			}
		}
		return false
	}
	allowed := roomPermissions[permission]
	for _, role := range roles {
		for _, a := range allowed {
			if role == a {
				return true
			}
		}
	}
	return false
}
