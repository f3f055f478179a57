package spotlight

import (
	"reflect"
	"testing"
)

func TestActiveSpeakerMovesToFront(t *testing.T) {
	s := New(4, false)
	s.OnNewPeer("a")
	s.OnNewPeer("b")
	s.OnNewPeer("c")

	s.OnActiveSpeaker("c", false)
	got := s.Spotlights()
	if got[0] != "c" {
		t.Fatalf("expected c to move to front, got %v", got)
	}
}

func TestSelfSpeakerIgnored(t *testing.T) {
	s := New(4, false)
	s.OnNewPeer("a")
	s.OnActiveSpeaker("me", true)

	got := s.Spotlights()
	if contains(got, "me") {
		t.Fatalf("expected self not to appear as a speaker: %v", got)
	}
}

func TestSelectedPeersTakePriorityOverSpeakers(t *testing.T) {
	s := New(2, false)
	s.OnNewPeer("a")
	s.OnNewPeer("b")
	s.OnNewPeer("c")
	s.AddSelectedPeer("c")

	got := s.Spotlights()
	want := []string{"c", "a"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestSetSelectedPeerClearsPrevious(t *testing.T) {
	s := New(4, false)
	s.AddSelectedPeer("a")
	s.SetSelectedPeer("b")

	got := s.Spotlights()
	if len(got) != 1 || got[0] != "b" {
		t.Fatalf("expected only b selected, got %v", got)
	}
}

func TestPeerClosedRemovesFromBothLists(t *testing.T) {
	s := New(4, false)
	s.OnNewPeer("a")
	s.AddSelectedPeer("a")
	s.OnPeerClosed("a")

	got := s.Spotlights()
	if len(got) != 0 {
		t.Fatalf("expected empty spotlight list, got %v", got)
	}
}

func TestHideNoVideoParticipantsFiltersSpeakers(t *testing.T) {
	s := New(4, true)
	s.OnNewPeer("a")
	s.SetHasVideo("a", false)

	got := s.Spotlights()
	if contains(got, "a") {
		t.Fatalf("expected peer without video to be filtered out: %v", got)
	}

	s.SetHasVideo("a", true)
	got = s.Spotlights()
	if !contains(got, "a") {
		t.Fatalf("expected peer with video to appear: %v", got)
	}
}

func TestOnChangeFiresWithUpdatedList(t *testing.T) {
	s := New(4, false)
	var last []string
	s.OnChange(func(list []string) { last = list })

	s.OnNewPeer("a")
	if len(last) != 1 || last[0] != "a" {
		t.Fatalf("expected onChange to fire with [a], got %v", last)
	}
}
