package room

import (
	"context"
	"encoding/json"

	"roomclient/internal/metrics"
	"roomclient/internal/store"
)

// registerNotificationHandlers wires every inbound method listed in
// spec.md §6 to a store mutation and/or notification-surface event. An
// unknown method is simply never registered: signaling.Session logs an
// error for a notification with no handler and drops it, so nothing
// further is needed here.
func (c *RoomClient) registerNotificationHandlers() {
	s := c.Session()

	s.On("enteredLobby", c.onEnteredLobby)
	s.On("signInRequired", c.onSignInRequired)
	s.On("overRoomLimit", c.onOverRoomLimit)
	s.On("roomReady", c.onRoomReady)
	s.On("roomBack", c.onRoomBack)
	s.On("lockRoom", c.onLockRoom)
	s.On("unlockRoom", c.onUnlockRoom)

	s.On("parkedPeer", c.onParkedPeer)
	s.On("parkedPeers", c.onParkedPeers)
	s.On("lobby:peerClosed", c.onLobbyPeerClosed)
	s.On("lobby:promotedPeer", c.onLobbyPeerClosed)
	s.On("lobby:changeDisplayName", c.onLobbyChangeDisplayName)
	s.On("lobby:changePicture", c.onLobbyChangePicture)

	s.On("setAccessCode", c.onSetAccessCode)
	s.On("setJoinByAccessCode", c.onSetJoinByAccessCode)

	s.On("activeSpeaker", c.onActiveSpeaker)
	s.On("changeDisplayName", c.onChangeDisplayName)
	s.On("changePicture", c.onChangePicture)
	s.On("raisedHand", c.onRaisedHand)
	s.On("chatMessage", c.onChatMessage)
	s.On("moderator:clearChat", c.onClearChat)
	s.On("sendFile", c.onSendFile)
	s.On("producerScore", c.onProducerScore)

	s.On("newPeer", c.onNewPeer)
	s.On("peerClosed", c.onPeerClosed)

	s.On("newConsumer", c.onNewConsumerSpotlightTrack)
	s.On("consumerClosed", c.onConsumerClosedSpotlightTrack)

	s.On("moderator:mute", c.onModeratorMute)
	s.On("moderator:stopVideo", c.onModeratorStopVideo)
	s.On("moderator:stopScreenSharing", c.onModeratorStopScreenSharing)
	s.On("moderator:kick", c.onModeratorKick)
	s.On("moderator:lowerHand", c.onModeratorLowerHand)

	s.On("gotRole", c.onGotRole)
	s.On("lostRole", c.onLostRole)
	s.On("addConsentForRecording", c.onConsentForRecording)
	s.On("setLocalRecording", c.onSetLocalRecording)
}

func (c *RoomClient) onEnteredLobby(json.RawMessage) {
	c.mu.Lock()
	c.inLobby = true
	c.mu.Unlock()
	c.Store.SetInLobby(true)
}

func (c *RoomClient) onSignInRequired(json.RawMessage) {
	c.signInRequired.Store(true)
	c.Notifier.Warning("sign-in is required to join this room")
}

func (c *RoomClient) onOverRoomLimit(json.RawMessage) {
	c.overRoomLimit.Store(true)
	c.Notifier.Error("this room is full")
}

func (c *RoomClient) onRoomReady(json.RawMessage) {
	go c.joinRoom(context.Background())
}

// onRoomBack mirrors a reconnect that happened fast enough the SFU kept
// the same room session alive: if the room was already joined, go
// straight back to connected without re-running _joinRoom.
func (c *RoomClient) onRoomBack(json.RawMessage) {
	c.mu.Lock()
	joined := c.everJoined
	c.mu.Unlock()
	if joined {
		c.state.Store(int32(StateConnected))
	}
}

func (c *RoomClient) onLockRoom(json.RawMessage)   { c.Store.SetLocked(true) }
func (c *RoomClient) onUnlockRoom(json.RawMessage) { c.Store.SetLocked(false) }

func (c *RoomClient) onParkedPeer(data json.RawMessage) {
	var p struct {
		PeerID string `json:"peerId"`
	}
	if json.Unmarshal(data, &p) == nil {
		c.Store.AddLobbyPeer(store.Peer{ID: p.PeerID})
	}
}

func (c *RoomClient) onParkedPeers(data json.RawMessage) {
	var p struct {
		LobbyPeers []store.Peer `json:"lobbyPeers"`
	}
	if json.Unmarshal(data, &p) == nil {
		c.Store.SetLobbyPeers(p.LobbyPeers)
	}
}

func (c *RoomClient) onLobbyPeerClosed(data json.RawMessage) {
	var p struct {
		PeerID string `json:"peerId"`
	}
	if json.Unmarshal(data, &p) == nil {
		c.Store.RemoveLobbyPeer(p.PeerID)
	}
}

func (c *RoomClient) onLobbyChangeDisplayName(data json.RawMessage) {
	var p struct {
		PeerID      string `json:"peerId"`
		DisplayName string `json:"displayName"`
	}
	if json.Unmarshal(data, &p) == nil {
		c.Store.SetDisplayName(p.PeerID, p.DisplayName, true)
	}
}

func (c *RoomClient) onLobbyChangePicture(data json.RawMessage) {
	var p struct {
		PeerID  string `json:"peerId"`
		Picture string `json:"picture"`
	}
	if json.Unmarshal(data, &p) == nil {
		c.Store.SetPicture(p.PeerID, p.Picture, true)
	}
}

func (c *RoomClient) onSetAccessCode(data json.RawMessage) {
	var p struct {
		AccessCode string `json:"accessCode"`
	}
	if json.Unmarshal(data, &p) == nil {
		c.Store.SetAccessCode(p.AccessCode)
	}
}

func (c *RoomClient) onSetJoinByAccessCode(data json.RawMessage) {
	var p struct {
		JoinByAccessCode bool `json:"joinByAccessCode"`
	}
	if json.Unmarshal(data, &p) == nil {
		c.Store.SetJoinByAccessCode(p.JoinByAccessCode)
	}
}

func (c *RoomClient) onActiveSpeaker(data json.RawMessage) {
	var p struct {
		PeerID string `json:"peerId"`
	}
	if json.Unmarshal(data, &p) != nil {
		return
	}
	c.mu.Lock()
	selector := c.spotlights
	c.mu.Unlock()
	if selector == nil {
		return
	}
	isSelf := p.PeerID == c.Store.Snapshot().MePeerID
	selector.OnActiveSpeaker(p.PeerID, isSelf)
}

func (c *RoomClient) onChangeDisplayName(data json.RawMessage) {
	var p struct {
		PeerID      string `json:"peerId"`
		DisplayName string `json:"displayName"`
	}
	if json.Unmarshal(data, &p) == nil {
		c.Store.SetDisplayName(p.PeerID, p.DisplayName, false)
	}
}

func (c *RoomClient) onChangePicture(data json.RawMessage) {
	var p struct {
		PeerID  string `json:"peerId"`
		Picture string `json:"picture"`
	}
	if json.Unmarshal(data, &p) == nil {
		c.Store.SetPicture(p.PeerID, p.Picture, false)
	}
}

func (c *RoomClient) onRaisedHand(data json.RawMessage) {
	var p struct {
		PeerID             string `json:"peerId"`
		RaisedHand         bool   `json:"raisedHand"`
		RaisedHandTimestamp int64  `json:"raisedHandTimestamp"`
	}
	if json.Unmarshal(data, &p) == nil {
		c.Store.SetRaisedHand(p.PeerID, p.RaisedHand, p.RaisedHandTimestamp)
	}
}

func (c *RoomClient) onChatMessage(data json.RawMessage) {
	var p struct {
		PeerID      string `json:"peerId"`
		ChatMessage string `json:"chatMessage"`
	}
	if json.Unmarshal(data, &p) != nil {
		return
	}
	msg := store.ChatMessage{
		PeerID: p.PeerID,
		Text:   c.sanitizer.Sanitize(p.ChatMessage),
	}
	c.Store.AppendChatMessage(msg)
	metrics.RecordChatMessage()
	c.persistChatMessage(msg)
}

// persistChatMessage writes msg to the local history store, if one is
// attached. Persistence runs off the notification-dispatch goroutine so a
// slow disk write never delays delivering the message to the store/UI.
func (c *RoomClient) persistChatMessage(msg store.ChatMessage) {
	c.mu.Lock()
	h := c.history
	roomID := c.joinOpts.RoomID
	c.mu.Unlock()
	if h == nil {
		return
	}
	go func() {
		if err := h.AppendChatMessage(context.Background(), roomID, msg); err != nil {
			c.log.Warnf("persisting chat message: %v", err)
		}
	}()
}

func (c *RoomClient) onClearChat(json.RawMessage) { c.Store.ClearChat() }

func (c *RoomClient) onSendFile(data json.RawMessage) {
	var p struct {
		PeerID    string `json:"peerId"`
		Name      string `json:"name"`
		URL       string `json:"url"`
		Timestamp int64  `json:"timestamp"`
	}
	if json.Unmarshal(data, &p) != nil {
		return
	}
	entry := store.FileEntry{PeerID: p.PeerID, Name: p.Name, URL: p.URL, Timestamp: p.Timestamp}
	c.Store.AppendFile(entry)

	c.mu.Lock()
	h := c.history
	roomID := c.joinOpts.RoomID
	c.mu.Unlock()
	if h != nil {
		go func() {
			if err := h.AppendFile(context.Background(), roomID, entry); err != nil {
				c.log.Warnf("persisting shared file: %v", err)
			}
		}()
	}
}

func (c *RoomClient) onProducerScore(data json.RawMessage) {
	var p struct {
		ProducerID string `json:"producerId"`
		Score      int    `json:"score"`
	}
	if json.Unmarshal(data, &p) != nil {
		return
	}
	c.mu.Lock()
	producers := c.producers
	c.mu.Unlock()
	if producers != nil {
		producers.UpdateProducerScore(p.ProducerID, p.Score)
	}
}

func (c *RoomClient) onNewPeer(data json.RawMessage) {
	var p struct {
		ID          string   `json:"id"`
		DisplayName string   `json:"displayName"`
		Picture     string   `json:"picture"`
		Roles       []string `json:"roles"`
		Returning   bool     `json:"returning"`
	}
	if json.Unmarshal(data, &p) != nil {
		return
	}
	c.Store.AddPeer(store.Peer{ID: p.ID, DisplayName: p.DisplayName, Picture: p.Picture, Roles: p.Roles, Returning: p.Returning})
	metrics.RecordPeerJoined()
	c.mu.Lock()
	selector := c.spotlights
	c.mu.Unlock()
	if selector != nil {
		selector.OnNewPeer(p.ID)
	}
}

func (c *RoomClient) onPeerClosed(data json.RawMessage) {
	var p struct {
		PeerID string `json:"peerId"`
	}
	if json.Unmarshal(data, &p) != nil {
		return
	}
	c.Store.RemovePeer(p.PeerID)
	metrics.RecordPeerLeft()
	c.mu.Lock()
	selector := c.spotlights
	c.mu.Unlock()
	if selector != nil {
		selector.OnPeerClosed(p.PeerID)
	}
}

// onNewConsumerSpotlightTrack keeps the spotlight selector's hasVideo map
// in sync with video consumer existence. It parses the payload directly
// rather than reading back from *consumer.Registry, because this handler
// is registered (at RoomClient construction time) before the registry
// itself exists, and runs ahead of the registry's own newConsumer handler.
func (c *RoomClient) onNewConsumerSpotlightTrack(data json.RawMessage) {
	var p struct {
		Kind    string `json:"kind"`
		PeerID  string `json:"peerId"`
		AppData struct {
			PeerID string `json:"peerId"`
		} `json:"appData"`
	}
	if json.Unmarshal(data, &p) != nil || p.Kind != "video" {
		return
	}
	peerID := p.PeerID
	if peerID == "" {
		peerID = p.AppData.PeerID
	}
	c.mu.Lock()
	selector := c.spotlights
	c.mu.Unlock()
	if selector != nil {
		selector.SetHasVideo(peerID, true)
	}
}

// onConsumerClosedSpotlightTrack looks up the closing consumer's
// peerId/kind before the registry's own (later-registered) handler
// removes it, then recomputes whether that peer still owns another video
// consumer.
func (c *RoomClient) onConsumerClosedSpotlightTrack(data json.RawMessage) {
	var p struct {
		ConsumerID string `json:"consumerId"`
	}
	if json.Unmarshal(data, &p) != nil {
		return
	}
	c.mu.Lock()
	consumers := c.consumers
	selector := c.spotlights
	c.mu.Unlock()
	if consumers == nil || selector == nil {
		return
	}
	closing := consumers.Get(p.ConsumerID)
	if closing == nil || closing.Kind != "video" {
		return
	}
	stillHasVideo := false
	for _, other := range consumers.ByPeer(closing.PeerID) {
		if other.ID != p.ConsumerID && other.Kind == "video" {
			stillHasVideo = true
			break
		}
	}
	selector.SetHasVideo(closing.PeerID, stillHasVideo)
}

func (c *RoomClient) onModeratorMute(json.RawMessage) {
	c.mu.Lock()
	producers := c.producers
	c.mu.Unlock()
	if producers == nil {
		return
	}
	if err := producers.MuteMic(context.Background()); err == nil {
		c.Notifier.Moderation("a moderator muted your audio")
	}
}

func (c *RoomClient) onModeratorStopVideo(json.RawMessage) {
	c.mu.Lock()
	producers := c.producers
	c.mu.Unlock()
	if producers == nil {
		return
	}
	if err := producers.DisableWebcam(context.Background()); err == nil {
		c.Notifier.Moderation("a moderator stopped your video")
	}
}

func (c *RoomClient) onModeratorStopScreenSharing(json.RawMessage) {
	c.mu.Lock()
	producers := c.producers
	c.mu.Unlock()
	if producers == nil {
		return
	}
	if err := producers.DisableScreenSharing(context.Background()); err == nil {
		c.Notifier.Moderation("a moderator stopped your screen share")
	}
}

func (c *RoomClient) onModeratorKick(json.RawMessage) {
	c.Notifier.Moderation("you have been removed from the meeting")
	go c.Close()
}

func (c *RoomClient) onModeratorLowerHand(json.RawMessage) {
	c.Notifier.Info("your raised hand was lowered by a moderator")
}

func (c *RoomClient) onGotRole(data json.RawMessage) {
	var p struct {
		PeerID string `json:"peerId"`
		RoleID string `json:"roleId"`
	}
	if json.Unmarshal(data, &p) == nil {
		c.Store.GiveRole(p.PeerID, p.RoleID)
	}
}

func (c *RoomClient) onLostRole(data json.RawMessage) {
	var p struct {
		PeerID string `json:"peerId"`
		RoleID string `json:"roleId"`
	}
	if json.Unmarshal(data, &p) == nil {
		c.Store.RemoveRole(p.PeerID, p.RoleID)
	}
}

func (c *RoomClient) onConsentForRecording(data json.RawMessage) {
	var p struct {
		PeerID  string `json:"peerId"`
		Consent bool   `json:"consent"`
	}
	if json.Unmarshal(data, &p) != nil {
		return
	}
	c.Store.SetRecordingConsent(p.PeerID, p.Consent)

	c.mu.Lock()
	h := c.history
	roomID := c.joinOpts.RoomID
	c.mu.Unlock()
	if h != nil {
		go func() {
			if err := h.SetRecordingConsent(context.Background(), roomID, p.PeerID, p.Consent); err != nil {
				c.log.Warnf("persisting recording consent: %v", err)
			}
		}()
	}
}

func (c *RoomClient) onSetLocalRecording(data json.RawMessage) {
	var p struct {
		PeerID              string `json:"peerId"`
		LocalRecordingState string `json:"localRecordingState"`
	}
	if json.Unmarshal(data, &p) != nil {
		return
	}
	if p.PeerID == c.Store.Snapshot().MePeerID {
		c.Store.SetLocalRecordingState(p.LocalRecordingState)
	}
}
