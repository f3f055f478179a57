package consumer

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pion/logging"

	"roomclient/internal/signaling"
)

type fakeChannel struct {
	requests      chan requestRecord
	response      json.RawMessage
	responseErr   error
	notifications chan signaling.Notification
	done          chan struct{}
}

type requestRecord struct {
	method string
	data   any
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		requests:      make(chan requestRecord, 8),
		notifications: make(chan signaling.Notification, 8),
		done:          make(chan struct{}),
	}
}

func (f *fakeChannel) Request(ctx context.Context, method string, data any) (json.RawMessage, error) {
	f.requests <- requestRecord{method: method, data: data}
	if f.responseErr != nil {
		return nil, f.responseErr
	}
	return f.response, nil
}

func (f *fakeChannel) Notifications() <-chan signaling.Notification { return f.notifications }
func (f *fakeChannel) Done() <-chan struct{}                        { return f.done }
func (f *fakeChannel) Close() error                                 { return nil }

func newTestSession(t *testing.T, ch *fakeChannel) *signaling.Session {
	t.Helper()
	dial := func(ctx context.Context) (signaling.Channel, error) { return ch, nil }
	s := signaling.New(dial, signaling.Options{RequestTimeout: 200 * time.Millisecond}, logging.NewDefaultLoggerFactory().NewLogger("test"))
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewConsumerRegistersAndStarts(t *testing.T) {
	ch := newFakeChannel()
	session := newTestSession(t, ch)
	reg := New(nil, session, nil)

	payload := `{"id":"c1","peerId":"p1","producerId":"prod1","kind":"audio","type":"simple","producerPaused":false,"score":10}`
	ch.notifications <- signaling.Notification{Method: "newConsumer", Data: json.RawMessage(payload)}

	deadline := time.After(time.Second)
	for {
		if c := reg.Get("c1"); c != nil {
			if c.PeerID != "p1" {
				t.Fatalf("expected peer id p1, got %q", c.PeerID)
			}
			break
		}
		select {
		case <-deadline:
			t.Fatal("consumer was not registered in time")
		case <-time.After(5 * time.Millisecond):
		}
	}

	select {
	case rec := <-ch.requests:
		if rec.method != "resumeConsumer" {
			t.Fatalf("expected resumeConsumer request, got %q", rec.method)
		}
	case <-time.After(time.Second):
		t.Fatal("expected startConsumer to send resumeConsumer")
	}
}

func TestPauseConsumerIsIdempotent(t *testing.T) {
	ch := newFakeChannel()
	session := newTestSession(t, ch)
	reg := New(nil, session, nil)

	c := &Consumer{ID: "c1", PeerID: "p1"}
	reg.mu.Lock()
	reg.byID["c1"] = c
	reg.mu.Unlock()

	if err := reg.PauseConsumer(context.Background(), "c1"); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if !c.LocallyPaused() {
		t.Fatal("expected consumer to be paused")
	}
	<-ch.requests

	if err := reg.PauseConsumer(context.Background(), "c1"); err != nil {
		t.Fatalf("second pause: %v", err)
	}
	select {
	case <-ch.requests:
		t.Fatal("expected no second pauseConsumer request")
	default:
	}
}

func TestConsumerClosedNotificationRemovesConsumer(t *testing.T) {
	ch := newFakeChannel()
	session := newTestSession(t, ch)
	reg := New(nil, session, nil)

	c := &Consumer{ID: "c1", PeerID: "p1"}
	reg.mu.Lock()
	reg.byID["c1"] = c
	reg.mu.Unlock()

	ch.notifications <- signaling.Notification{Method: "consumerClosed", Data: json.RawMessage(`{"consumerId":"c1"}`)}

	deadline := time.After(time.Second)
	for reg.Get("c1") != nil {
		select {
		case <-deadline:
			t.Fatal("consumer was not removed in time")
		case <-time.After(5 * time.Millisecond):
		}
	}
	if !c.Closed() {
		t.Fatal("expected consumer to be marked closed")
	}
}

func TestNotFoundInMediasoupErrorClosesLocally(t *testing.T) {
	ch := newFakeChannel()
	ch.responseErr = signaling.NewNotFoundError("resumeConsumer")
	session := newTestSession(t, ch)
	reg := New(nil, session, nil)

	c := &Consumer{ID: "c1", PeerID: "p1", locallyPaused: true}
	reg.mu.Lock()
	reg.byID["c1"] = c
	reg.mu.Unlock()

	if err := reg.ResumeConsumer(context.Background(), "c1"); err != nil {
		t.Fatalf("expected notFoundInMediasoupError to be swallowed, got %v", err)
	}
	if reg.Get("c1") != nil {
		t.Fatal("expected consumer to be removed locally")
	}
}
