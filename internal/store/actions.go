package store

// JoinHydration is the subset of a successful `join` response's fields
// that get written into the store in one shot, per spec.md §4.6.
type JoinHydration struct {
	MePeerID             string
	Peers                []Peer
	Roles                []string
	UserRoles            map[string][]string
	RoomPermissions      map[string][]string
	AllowWhenRoleMissing []string
	ChatHistory          []ChatMessage
	FileHistory          []FileEntry
	Locked               bool
	LobbyPeers           []Peer
	AccessCode           string
	Tracker              map[string]any
}

// HydrateJoin writes every field returned by a successful `join` request.
func (s *Store) HydrateJoin(h JoinHydration) {
	s.dispatch(func(st *State) {
		st.MePeerID = h.MePeerID
		st.Peers = peerMap(h.Peers)
		st.Roles = h.Roles
		st.UserRoles = h.UserRoles
		st.RoomPermissions = h.RoomPermissions
		st.AllowWhenRoleMissing = h.AllowWhenRoleMissing
		st.ChatHistory = h.ChatHistory
		st.FileHistory = h.FileHistory
		st.Locked = h.Locked
		st.LobbyPeers = peerMap(h.LobbyPeers)
		st.AccessCode = h.AccessCode
		st.Tracker = h.Tracker
		st.Joined = true
		st.InLobby = false
	})
}

func peerMap(peers []Peer) map[string]Peer {
	out := make(map[string]Peer, len(peers))
	for _, p := range peers {
		out[p.ID] = p
	}
	return out
}

// SetInLobby reflects `enteredLobby`/admission transitions.
func (s *Store) SetInLobby(inLobby bool) {
	s.dispatch(func(st *State) { st.InLobby = inLobby })
}

// AddPeer reflects `newPeer`. me.peerId is never added, per spec.md §8's
// invariant that `me.peerId` never appears in the peers set.
func (s *Store) AddPeer(p Peer) {
	s.dispatch(func(st *State) {
		if p.ID == st.MePeerID {
			return
		}
		st.Peers[p.ID] = p
	})
}

// RemovePeer reflects `peerClosed`.
func (s *Store) RemovePeer(peerID string) {
	s.dispatch(func(st *State) { delete(st.Peers, peerID) })
}

// AddLobbyPeer reflects `parkedPeer`.
func (s *Store) AddLobbyPeer(p Peer) {
	s.dispatch(func(st *State) { st.LobbyPeers[p.ID] = p })
}

// SetLobbyPeers reflects `parkedPeers`, a full replacement.
func (s *Store) SetLobbyPeers(peers []Peer) {
	s.dispatch(func(st *State) { st.LobbyPeers = peerMap(peers) })
}

// RemoveLobbyPeer reflects `lobby:peerClosed`/`lobby:promotedPeer`.
func (s *Store) RemoveLobbyPeer(peerID string) {
	s.dispatch(func(st *State) { delete(st.LobbyPeers, peerID) })
}

// SetDisplayName reflects `changeDisplayName`/`lobby:changeDisplayName`.
func (s *Store) SetDisplayName(peerID, displayName string, inLobby bool) {
	s.dispatch(func(st *State) {
		set := st.Peers
		if inLobby {
			set = st.LobbyPeers
		}
		if p, ok := set[peerID]; ok {
			p.DisplayName = displayName
			set[peerID] = p
		}
	})
}

// SetPicture reflects `changePicture`/`lobby:changePicture`.
func (s *Store) SetPicture(peerID, picture string, inLobby bool) {
	s.dispatch(func(st *State) {
		set := st.Peers
		if inLobby {
			set = st.LobbyPeers
		}
		if p, ok := set[peerID]; ok {
			p.Picture = picture
			set[peerID] = p
		}
	})
}

// SetRaisedHand reflects `raisedHand`.
func (s *Store) SetRaisedHand(peerID string, raised bool, timestamp int64) {
	s.dispatch(func(st *State) {
		if p, ok := st.Peers[peerID]; ok {
			p.RaisedHand = raised
			p.RaisedHandAt = timestamp
			st.Peers[peerID] = p
		}
	})
}

// AppendChatMessage reflects `chatMessage`.
func (s *Store) AppendChatMessage(m ChatMessage) {
	s.dispatch(func(st *State) { st.ChatHistory = append(st.ChatHistory, m) })
}

// ClearChat reflects `moderator:clearChat`.
func (s *Store) ClearChat() {
	s.dispatch(func(st *State) { st.ChatHistory = nil })
}

// AppendFile reflects `sendFile`.
func (s *Store) AppendFile(f FileEntry) {
	s.dispatch(func(st *State) { st.FileHistory = append(st.FileHistory, f) })
}

// SetLocked reflects `lockRoom`/`unlockRoom`.
func (s *Store) SetLocked(locked bool) {
	s.dispatch(func(st *State) { st.Locked = locked })
}

// SetAccessCode reflects `setAccessCode`.
func (s *Store) SetAccessCode(code string) {
	s.dispatch(func(st *State) { st.AccessCode = code })
}

// SetJoinByAccessCode reflects `setJoinByAccessCode`.
func (s *Store) SetJoinByAccessCode(enabled bool) {
	s.dispatch(func(st *State) { st.JoinByAccessCode = enabled })
}

// SetSpotlights reflects the Spotlight Selector pushing a new ordered list.
func (s *Store) SetSpotlights(spotlights []string) {
	s.dispatch(func(st *State) { st.Spotlights = spotlights })
}

// SetMediaCapabilities reflects the post-`_joinRoom` capability dispatch.
func (s *Store) SetMediaCapabilities(caps MediaCapabilities) {
	s.dispatch(func(st *State) { st.MediaCapabilities = caps })
}

// GiveRole reflects `gotRole`.
func (s *Store) GiveRole(peerID, roleID string) {
	s.dispatch(func(st *State) {
		roles := st.UserRoles[peerID]
		for _, r := range roles {
			if r == roleID {
				return
			}
		}
		st.UserRoles[peerID] = append(roles, roleID)
	})
}

// RemoveRole reflects `lostRole`.
func (s *Store) RemoveRole(peerID, roleID string) {
	s.dispatch(func(st *State) {
		roles := st.UserRoles[peerID]
		out := make([]string, 0, len(roles))
		for _, r := range roles {
			if r != roleID {
				out = append(out, r)
			}
		}
		st.UserRoles[peerID] = out
	})
}

// SetRecordingConsent reflects `addConsentForRecording`.
func (s *Store) SetRecordingConsent(peerID string, consent bool) {
	s.dispatch(func(st *State) { st.RecordingConsents[peerID] = consent })
}

// SetLocalRecordingState reflects `setLocalRecording`.
func (s *Store) SetLocalRecordingState(state string) {
	s.dispatch(func(st *State) { st.LocalRecordingState = state })
}

// SetPeerVolume reflects a consumer-side speaking-detection volume_change,
// coalesced by the caller per spec.md §4.4's "threshold 0.5 dB" rule.
func (s *Store) SetPeerVolume(peerID string, volumeDB int) {
	s.dispatch(func(st *State) { st.PeerVolumes[peerID] = volumeDB })
}

// SetMeSpeaking reflects the local mic producer's own speaking/
// stopped_speaking edges.
func (s *Store) SetMeSpeaking(speaking bool) {
	s.dispatch(func(st *State) { st.Speaking = speaking })
}

// SetAutoMuted reflects voiceActivatedUnmute auto-pausing (true) or
// auto-resuming (false) the local mic.
func (s *Store) SetAutoMuted(autoMuted bool) {
	s.dispatch(func(st *State) { st.AutoMuted = autoMuted })
}
