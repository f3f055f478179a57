package devices

import (
	"context"
	"sync"
	"testing"
	"time"
)

type stepLister struct {
	mu    sync.Mutex
	steps [][]Device
	idx   int
}

func (s *stepLister) List(context.Context) ([]Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	step := s.steps[s.idx]
	if s.idx < len(s.steps)-1 {
		s.idx++
	}
	return step, nil
}

func TestWatcherEmitsOnChangeOnly(t *testing.T) {
	lister := &stepLister{steps: [][]Device{
		{{ID: "mic-1", Label: "Mic", Kind: KindAudioInput}},
		{{ID: "mic-1", Label: "Mic", Kind: KindAudioInput}}, // unchanged
		{{ID: "mic-1", Label: "Mic", Kind: KindAudioInput}, {ID: "cam-1", Label: "Cam", Kind: KindVideoInput}},
	}}

	w := NewWatcher(lister, 10*time.Millisecond, nil)

	var mu sync.Mutex
	var events [][]Device
	w.OnChange(func(d []Device) {
		mu.Lock()
		events = append(events, d)
		mu.Unlock()
	})

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer w.Stop()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(events)
		mu.Unlock()
		if n >= 2 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 2 {
		t.Fatalf("expected exactly 2 change events (initial + the 2-device step), got %d", len(events))
	}
	if len(events[0]) != 1 {
		t.Fatalf("expected first event to report 1 device, got %d", len(events[0]))
	}
	if len(events[1]) != 2 {
		t.Fatalf("expected second event to report 2 devices, got %d", len(events[1]))
	}
}

func TestWatcherSnapshot(t *testing.T) {
	lister := &stepLister{steps: [][]Device{
		{{ID: "mic-1", Label: "Mic", Kind: KindAudioInput}},
	}}
	w := NewWatcher(lister, time.Hour, nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer w.Stop()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && len(w.Snapshot()) == 0 {
		time.Sleep(5 * time.Millisecond)
	}

	snap := w.Snapshot()
	if len(snap) != 1 || snap[0].ID != "mic-1" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestNullListerReportsNoDevices(t *testing.T) {
	list, err := NullLister{}.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected no devices, got %d", len(list))
	}
}
