// Package spotlight implements the Spotlight Selector: the active-speaker
// and manually-selected peer list that decides which video consumers stay
// resumed, per spec.md §4.5.
package spotlight

import "sync"

// Selector tracks the recency-ordered speaker list, the manually-selected
// "always include" set, and which peers currently have a video consumer,
// recomputing the effective spotlight list on every mutation.
type Selector struct {
	mu sync.Mutex

	maxSpotlights           int
	hideNoVideoParticipants bool

	speakers []string // ordered by recency, most recent first
	selected []string // ordered by selection time, manually chosen

	hasVideo map[string]bool

	onChange func(spotlights []string)
}

// New builds a Selector with the given cap and no-video filter.
func New(maxSpotlights int, hideNoVideoParticipants bool) *Selector {
	return &Selector{
		maxSpotlights:           maxSpotlights,
		hideNoVideoParticipants: hideNoVideoParticipants,
		hasVideo:                make(map[string]bool),
	}
}

// OnChange registers fn to run with the new spotlight list after every
// mutation. Only one callback is kept; re-registering replaces it.
func (s *Selector) OnChange(fn func(spotlights []string)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// SetHasVideo records whether peerID currently has a video consumer
// registered, used by the hideNoVideoParticipants filter.
func (s *Selector) SetHasVideo(peerID string, hasVideo bool) {
	s.mu.Lock()
	s.hasVideo[peerID] = hasVideo
	s.mu.Unlock()
	s.recomputeAndFire()
}

// OnActiveSpeaker moves peerID to the front of the speaker list. isSelf
// peers are never tracked as speakers, per spec.md §4.5.
func (s *Selector) OnActiveSpeaker(peerID string, isSelf bool) {
	if isSelf {
		return
	}
	s.mu.Lock()
	s.speakers = moveToFront(s.speakers, peerID)
	s.mu.Unlock()
	s.recomputeAndFire()
}

// OnNewPeer appends peerID to the tail of the speaker list.
func (s *Selector) OnNewPeer(peerID string) {
	s.mu.Lock()
	if !contains(s.speakers, peerID) {
		s.speakers = append(s.speakers, peerID)
	}
	s.mu.Unlock()
	s.recomputeAndFire()
}

// OnPeerClosed drops peerID from both the speaker and selected lists.
func (s *Selector) OnPeerClosed(peerID string) {
	s.mu.Lock()
	s.speakers = remove(s.speakers, peerID)
	s.selected = remove(s.selected, peerID)
	delete(s.hasVideo, peerID)
	s.mu.Unlock()
	s.recomputeAndFire()
}

// AddSelectedPeer appends peerID to the manually-selected set if not
// already present.
func (s *Selector) AddSelectedPeer(peerID string) {
	s.mu.Lock()
	if !contains(s.selected, peerID) {
		s.selected = append(s.selected, peerID)
	}
	s.mu.Unlock()
	s.recomputeAndFire()
}

// SetSelectedPeer clears the selected set and selects only peerID.
func (s *Selector) SetSelectedPeer(peerID string) {
	s.mu.Lock()
	s.selected = []string{peerID}
	s.mu.Unlock()
	s.recomputeAndFire()
}

// RemoveSelectedPeer drops peerID from the manually-selected set.
func (s *Selector) RemoveSelectedPeer(peerID string) {
	s.mu.Lock()
	s.selected = remove(s.selected, peerID)
	s.mu.Unlock()
	s.recomputeAndFire()
}

// ClearSelectedPeers empties the manually-selected set.
func (s *Selector) ClearSelectedPeers() {
	s.mu.Lock()
	s.selected = nil
	s.mu.Unlock()
	s.recomputeAndFire()
}

// Spotlights returns the current spotlight list without mutating anything.
func (s *Selector) Spotlights() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.compute()
}

func (s *Selector) recomputeAndFire() {
	s.mu.Lock()
	list := s.compute()
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn(list)
	}
}

// compute must be called with s.mu held.
func (s *Selector) compute() []string {
	out := make([]string, 0, s.maxSpotlights)
	seen := make(map[string]bool, s.maxSpotlights)

	for _, peerID := range s.selected {
		if s.hideNoVideoParticipants && !s.hasVideo[peerID] {
			continue
		}
		if seen[peerID] {
			continue
		}
		out = append(out, peerID)
		seen[peerID] = true
	}

	k := s.maxSpotlights - len(out)
	for _, peerID := range s.speakers {
		if k <= 0 {
			break
		}
		if seen[peerID] {
			continue
		}
		if s.hideNoVideoParticipants && !s.hasVideo[peerID] {
			continue
		}
		out = append(out, peerID)
		seen[peerID] = true
		k--
	}

	return out
}

func moveToFront(list []string, v string) []string {
	filtered := remove(list, v)
	return append([]string{v}, filtered...)
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func remove(list []string, v string) []string {
	out := make([]string, 0, len(list))
	for _, item := range list {
		if item != v {
			out = append(out, item)
		}
	}
	return out
}
