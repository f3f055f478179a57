package room

import (
	"context"

	"roomclient/internal/consumer"
	"roomclient/internal/media"
	"roomclient/internal/spotlight"
)

// sendSimple is the shared shape for the many outbound methods that carry
// a small data bag and discard the response.
func (c *RoomClient) sendSimple(ctx context.Context, method string, data any) error {
	return c.session.SendRequest(ctx, method, data, nil)
}

// ChangeDisplayName issues changeDisplayName{displayName}.
func (c *RoomClient) ChangeDisplayName(ctx context.Context, displayName string) error {
	return c.sendSimple(ctx, "changeDisplayName", map[string]string{"displayName": displayName})
}

// ChangePicture issues changePicture{picture}.
func (c *RoomClient) ChangePicture(ctx context.Context, picture string) error {
	return c.sendSimple(ctx, "changePicture", map[string]string{"picture": picture})
}

// SendChatMessage issues chatMessage{chatMessage}.
func (c *RoomClient) SendChatMessage(ctx context.Context, text string) error {
	return c.sendSimple(ctx, "chatMessage", map[string]string{"chatMessage": text})
}

// RaiseHand issues raisedHand{raisedHand}.
func (c *RoomClient) RaiseHand(ctx context.Context, raised bool) error {
	return c.sendSimple(ctx, "raisedHand", map[string]bool{"raisedHand": raised})
}

// LockRoom issues lockRoom.
func (c *RoomClient) LockRoom(ctx context.Context) error { return c.sendSimple(ctx, "lockRoom", nil) }

// UnlockRoom issues unlockRoom.
func (c *RoomClient) UnlockRoom(ctx context.Context) error {
	return c.sendSimple(ctx, "unlockRoom", nil)
}

// SetAccessCode issues setAccessCode{accessCode}.
func (c *RoomClient) SetAccessCode(ctx context.Context, code string) error {
	return c.sendSimple(ctx, "setAccessCode", map[string]string{"accessCode": code})
}

// SetJoinByAccessCode issues setJoinByAccessCode{joinByAccessCode}.
func (c *RoomClient) SetJoinByAccessCode(ctx context.Context, enabled bool) error {
	return c.sendSimple(ctx, "setJoinByAccessCode", map[string]bool{"joinByAccessCode": enabled})
}

// AddConsentForRecording issues addConsentForRecording{consent}.
func (c *RoomClient) AddConsentForRecording(ctx context.Context, consent bool) error {
	return c.sendSimple(ctx, "addConsentForRecording", map[string]bool{"consent": consent})
}

// PromotePeer issues promotePeer{peerId}, admitting a lobby peer.
func (c *RoomClient) PromotePeer(ctx context.Context, peerID string) error {
	return c.sendSimple(ctx, "promotePeer", map[string]string{"peerId": peerID})
}

// PromoteAllPeers issues promoteAllPeers.
func (c *RoomClient) PromoteAllPeers(ctx context.Context) error {
	return c.sendSimple(ctx, "promoteAllPeers", nil)
}

// RequestConsumerKeyFrame issues requestConsumerKeyFrame{consumerId}.
func (c *RoomClient) RequestConsumerKeyFrame(ctx context.Context, consumerID string) error {
	return c.sendSimple(ctx, "requestConsumerKeyFrame", map[string]string{"consumerId": consumerID})
}

// SetConsumerPriority issues setConsumerPriority{consumerId, priority} and
// mirrors the new priority onto the local Consumer.
func (c *RoomClient) SetConsumerPriority(ctx context.Context, consumerID string, priority int32) error {
	if err := c.sendSimple(ctx, "setConsumerPriority", map[string]any{"consumerId": consumerID, "priority": priority}); err != nil {
		return err
	}
	c.mu.Lock()
	consumers := c.consumers
	c.mu.Unlock()
	if consumers != nil {
		if cons := consumers.Get(consumerID); cons != nil {
			cons.SetPriority(priority)
		}
	}
	return nil
}

// GetTransportStats issues getTransportStats{transportId}. The response
// shape is server-defined (spec.md §9 open question 1) so it is decoded
// verbatim into a map.
func (c *RoomClient) GetTransportStats(ctx context.Context, transportID string) (map[string]any, error) {
	var stats map[string]any
	err := c.session.SendRequest(ctx, "getTransportStats", map[string]string{"transportId": transportID}, &stats)
	return stats, err
}

// Moderator commands — all peer-scoped or room-wide actions available to
// a peer holding the moderator role; the server is the authority on
// whether the caller is allowed, so these are thin request wrappers.

func (c *RoomClient) ModeratorClearChat(ctx context.Context) error {
	return c.sendSimple(ctx, "moderator:clearChat", nil)
}

func (c *RoomClient) ModeratorGiveRole(ctx context.Context, peerID, roleID string) error {
	return c.sendSimple(ctx, "moderator:giveRole", map[string]string{"peerId": peerID, "roleId": roleID})
}

func (c *RoomClient) ModeratorRemoveRole(ctx context.Context, peerID, roleID string) error {
	return c.sendSimple(ctx, "moderator:removeRole", map[string]string{"peerId": peerID, "roleId": roleID})
}

func (c *RoomClient) ModeratorKickPeer(ctx context.Context, peerID string) error {
	return c.sendSimple(ctx, "moderator:kickPeer", map[string]string{"peerId": peerID})
}

func (c *RoomClient) ModeratorMute(ctx context.Context, peerID string) error {
	return c.sendSimple(ctx, "moderator:mute", map[string]string{"peerId": peerID})
}

func (c *RoomClient) ModeratorMuteAll(ctx context.Context) error {
	return c.sendSimple(ctx, "moderator:muteAll", nil)
}

func (c *RoomClient) ModeratorStopVideo(ctx context.Context, peerID string) error {
	return c.sendSimple(ctx, "moderator:stopVideo", map[string]string{"peerId": peerID})
}

func (c *RoomClient) ModeratorStopAllVideo(ctx context.Context) error {
	return c.sendSimple(ctx, "moderator:stopAllVideo", nil)
}

func (c *RoomClient) ModeratorStopScreenSharing(ctx context.Context, peerID string) error {
	return c.sendSimple(ctx, "moderator:stopScreenSharing", map[string]string{"peerId": peerID})
}

func (c *RoomClient) ModeratorStopAllScreenSharing(ctx context.Context) error {
	return c.sendSimple(ctx, "moderator:stopAllScreenSharing", nil)
}

func (c *RoomClient) ModeratorCloseMeeting(ctx context.Context) error {
	return c.sendSimple(ctx, "moderator:closeMeeting", nil)
}

func (c *RoomClient) ModeratorLowerHand(ctx context.Context, peerID string) error {
	return c.sendSimple(ctx, "moderator:lowerHand", map[string]string{"peerId": peerID})
}

// Producers exposes the producer registry for media command wrappers
// (UpdateMic/UpdateWebcam/AddExtraVideo/UpdateScreenSharing/disable
// family) once Join has completed. Returns nil before media is set up.
func (c *RoomClient) Producers() *media.Registry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.producers
}

// Consumers exposes the consumer registry for UI-driven pause/resume and
// layer-adaptation calls. Returns nil before media is set up.
func (c *RoomClient) Consumers() *consumer.Registry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.consumers
}

// Spotlights exposes the spotlight selector for manual peer
// selection (AddSelectedPeer/SetSelectedPeer/RemoveSelectedPeer).
// Returns nil before media is set up.
func (c *RoomClient) Spotlights() *spotlight.Selector {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.spotlights
}
