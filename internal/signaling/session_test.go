package signaling

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/pion/logging"
)

// fakeChannel is an in-memory Channel for exercising Session without a
// real network dial.
type fakeChannel struct {
	requests      chan string
	response      json.RawMessage
	responseErr   error
	notifications chan Notification
	done          chan struct{}
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		requests:      make(chan string, 8),
		notifications: make(chan Notification, 8),
		done:          make(chan struct{}),
	}
}

func (f *fakeChannel) Request(ctx context.Context, method string, data any) (json.RawMessage, error) {
	f.requests <- method
	if f.responseErr != nil {
		return nil, f.responseErr
	}
	return f.response, nil
}

func (f *fakeChannel) Notifications() <-chan Notification { return f.notifications }
func (f *fakeChannel) Done() <-chan struct{}               { return f.done }
func (f *fakeChannel) Close() error {
	select {
	case <-f.done:
	default:
		close(f.done)
	}
	return nil
}

func newTestSession(ch *fakeChannel) *Session {
	dial := func(ctx context.Context) (Channel, error) { return ch, nil }
	return New(dial, Options{RequestTimeout: 200 * time.Millisecond, RequestRetries: 1}, logging.NewDefaultLoggerFactory().NewLogger("test"))
}

func TestSendRequestDecodesResponse(t *testing.T) {
	ch := newFakeChannel()
	ch.response = json.RawMessage(`{"id":"abc"}`)

	s := newTestSession(ch)
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer s.Close()

	var result struct {
		ID string `json:"id"`
	}
	if err := s.SendRequest(context.Background(), "join", map[string]string{"x": "y"}, &result); err != nil {
		t.Fatalf("sendRequest: %v", err)
	}
	if result.ID != "abc" {
		t.Fatalf("expected decoded id abc, got %q", result.ID)
	}

	select {
	case method := <-ch.requests:
		if method != "join" {
			t.Fatalf("expected method join, got %q", method)
		}
	default:
		t.Fatal("expected request to reach channel")
	}
}

func TestSendRequestPropagatesNonTimeoutErrorImmediately(t *testing.T) {
	ch := newFakeChannel()
	ch.responseErr = errors.New("boom")

	s := newTestSession(ch)
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer s.Close()

	err := s.SendRequest(context.Background(), "produce", nil, nil)
	if err == nil {
		t.Fatal("expected error to propagate")
	}
	if !errors.Is(err, ch.responseErr) {
		t.Fatalf("expected the original error to propagate unwrapped, got %v", err)
	}

	count := 0
	for {
		select {
		case <-ch.requests:
			count++
		default:
			if count != 1 {
				t.Fatalf("expected a single attempt (no retry on non-timeout error), got %d", count)
			}
			return
		}
	}
}

func TestSendRequestRetriesOnTimeout(t *testing.T) {
	ch := newFakeChannel()
	ch.responseErr = context.DeadlineExceeded

	s := newTestSession(ch)
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer s.Close()

	err := s.SendRequest(context.Background(), "produce", nil, nil)
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}

	count := 0
	for {
		select {
		case <-ch.requests:
			count++
		default:
			if count != 2 {
				t.Fatalf("expected 2 attempts (1 retry) on a timeout error, got %d", count)
			}
			return
		}
	}
}

func TestDispatchRoutesByMethod(t *testing.T) {
	ch := newFakeChannel()
	s := newTestSession(ch)
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer s.Close()

	got := make(chan json.RawMessage, 1)
	s.On("newConsumer", func(data json.RawMessage) { got <- data })

	ch.notifications <- Notification{Method: "newConsumer", Data: json.RawMessage(`{"id":"c1"}`)}

	select {
	case data := <-got:
		if string(data) != `{"id":"c1"}` {
			t.Fatalf("unexpected payload: %s", data)
		}
	case <-time.After(time.Second):
		t.Fatal("handler was not invoked")
	}
}

func TestDispatchIgnoresUnknownMethod(t *testing.T) {
	ch := newFakeChannel()
	s := newTestSession(ch)
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer s.Close()

	// No handler registered for "somethingUnknown" — dispatch must not panic
	// or block.
	ch.notifications <- Notification{Method: "somethingUnknown", Data: json.RawMessage(`{}`)}
	time.Sleep(20 * time.Millisecond)
}
