// Package signaling implements the request/response + notification session
// that carries the room's join/produce/consume/etc. traffic, and a default
// gorilla/websocket Channel so the session is exercisable end to end.
package signaling

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/logging"
	"github.com/tidwall/gjson"
)

// State is the connection lifecycle state of a Session.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Handler receives an inbound notification's raw data payload.
type Handler func(data json.RawMessage)

// Dialer opens a fresh Channel; swappable so tests can inject a fake
// transport without a real network dial.
type Dialer func(ctx context.Context) (Channel, error)

// Options configures a Session's retry/backoff behavior.
type Options struct {
	RequestTimeout  time.Duration
	RequestRetries  int
	ReconnectBase   time.Duration
	ReconnectMax    time.Duration
}

func (o Options) withDefaults() Options {
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 10 * time.Second
	}
	if o.RequestRetries <= 0 {
		o.RequestRetries = 3
	}
	if o.ReconnectBase <= 0 {
		o.ReconnectBase = 2 * time.Second
	}
	if o.ReconnectMax <= 0 {
		o.ReconnectMax = 30 * time.Second
	}
	return o
}

// Session is the signaling transport the Room State Coordinator drives: a
// sendRequest with timeout+retry, an open/unknown-method-tolerant
// notification dispatch table, and connect/disconnect/reconnect/
// reconnect_failed lifecycle events.
type Session struct {
	dial Dialer
	opts Options
	log  logging.LeveledLogger

	state atomic.Int32

	mu      sync.RWMutex
	channel Channel

	handlersMu sync.RWMutex
	handlers   map[string][]Handler

	lifecycleMu       sync.RWMutex
	onConnect         []func()
	onDisconnect      []func(error)
	onReconnect       []func()
	onReconnectFailed []func()

	closed chan struct{}
	closeOnce sync.Once
}

// New constructs a Session around dial, which must return a fresh Channel
// on each call (used both for the initial connect and every reconnect
// attempt).
func New(dial Dialer, opts Options, log logging.LeveledLogger) *Session {
	if log == nil {
		log = logging.NewDefaultLoggerFactory().NewLogger("signaling")
	}
	return &Session{
		dial:     dial,
		opts:     opts.withDefaults(),
		log:      log,
		handlers: make(map[string][]Handler),
		closed:   make(chan struct{}),
	}
}

// DialWebsocket builds a Dialer for a concrete websocket URL, for callers
// that don't need to inject a fake Channel.
func DialWebsocket(url string, header http.Header, log logging.LeveledLogger) Dialer {
	return func(ctx context.Context) (Channel, error) {
		return DialChannel(ctx, url, header, log)
	}
}

// State returns the session's current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

// On registers handler to run for every notification whose method equals
// name. Multiple handlers may be registered per method; a notification for
// an unregistered method is logged as an error and dropped, per spec.md
// §4.6's open dispatch table.
func (s *Session) On(method string, handler Handler) {
	s.handlersMu.Lock()
	defer s.handlersMu.Unlock()
	s.handlers[method] = append(s.handlers[method], handler)
}

func (s *Session) OnConnect(fn func())            { s.addLifecycle(&s.onConnect, fn) }
func (s *Session) OnDisconnect(fn func(error))     { s.addDisconnect(fn) }
func (s *Session) OnReconnect(fn func())           { s.addLifecycle(&s.onReconnect, fn) }
func (s *Session) OnReconnectFailed(fn func())     { s.addLifecycle(&s.onReconnectFailed, fn) }

func (s *Session) addLifecycle(slot *[]func(), fn func()) {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()
	*slot = append(*slot, fn)
}

func (s *Session) addDisconnect(fn func(error)) {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()
	s.onDisconnect = append(s.onDisconnect, fn)
}

func (s *Session) fire(slot []func()) {
	for _, fn := range slot {
		fn()
	}
}

func (s *Session) fireDisconnect(err error) {
	s.lifecycleMu.RLock()
	fns := append([]func(error){}, s.onDisconnect...)
	s.lifecycleMu.RUnlock()
	for _, fn := range fns {
		fn(err)
	}
}

// Connect dials the first channel and starts the reconnect-supervising
// goroutine. It blocks until the first connection attempt resolves.
func (s *Session) Connect(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(StateDisconnected), int32(StateConnecting)) {
		return nil
	}

	ch, err := s.dial(ctx)
	if err != nil {
		s.state.Store(int32(StateDisconnected))
		return err
	}

	s.mu.Lock()
	s.channel = ch
	s.mu.Unlock()
	s.state.Store(int32(StateConnected))

	go s.pumpNotifications(ch)
	go s.superviseReconnect(ch)

	s.lifecycleMu.RLock()
	onConnect := append([]func(){}, s.onConnect...)
	s.lifecycleMu.RUnlock()
	s.fire(onConnect)

	return nil
}

// pumpNotifications dispatches every notification off ch to registered
// handlers until ch's connection drops.
func (s *Session) pumpNotifications(ch Channel) {
	for {
		select {
		case n, ok := <-ch.Notifications():
			if !ok {
				return
			}
			s.dispatch(n)
		case <-ch.Done():
			return
		}
	}
}

func (s *Session) dispatch(n Notification) {
	method := n.Method
	if method == "" {
		method = gjson.GetBytes(n.Data, "method").String()
	}

	s.handlersMu.RLock()
	handlers := append([]Handler{}, s.handlers[method]...)
	s.handlersMu.RUnlock()

	if len(handlers) == 0 {
		s.log.Errorf("no handler for notification method %q", method)
		return
	}
	for _, h := range handlers {
		h(n.Data)
	}
}

// superviseReconnect waits for ch to drop, then redials with exponential
// backoff until it reconnects or the session is closed.
func (s *Session) superviseReconnect(ch Channel) {
	<-ch.Done()

	if s.State() == StateClosed {
		return
	}

	s.state.Store(int32(StateDisconnected))
	s.fireDisconnect(nil)

	backoff := s.opts.ReconnectBase
	for {
		select {
		case <-s.closed:
			return
		case <-time.After(backoff):
		}

		if s.State() == StateClosed {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), s.opts.RequestTimeout)
		next, err := s.dial(ctx)
		cancel()
		if err != nil {
			s.log.Warnf("signaling reconnect attempt failed: %v", err)
			s.lifecycleMu.RLock()
			fns := append([]func(){}, s.onReconnectFailed...)
			s.lifecycleMu.RUnlock()
			s.fire(fns)

			backoff *= 2
			if backoff > s.opts.ReconnectMax {
				backoff = s.opts.ReconnectMax
			}
			continue
		}

		s.mu.Lock()
		s.channel = next
		s.mu.Unlock()
		s.state.Store(int32(StateConnected))

		s.lifecycleMu.RLock()
		fns := append([]func(){}, s.onReconnect...)
		s.lifecycleMu.RUnlock()
		s.fire(fns)

		go s.pumpNotifications(next)
		go s.superviseReconnect(next)
		return
	}
}

// SendRequest issues method/data and decodes the response into result (a
// pointer, or nil to discard the payload), retrying up to RequestRetries
// times within RequestTimeout each attempt.
func (s *Session) SendRequest(ctx context.Context, method string, data any, result any) error {
	if s.State() == StateClosed {
		return &SessionError{Kind: ErrKindClosed, Method: method, Err: ErrSessionClosed}
	}

	var lastErr error

	for attempt := 0; attempt <= s.opts.RequestRetries; attempt++ {
		s.mu.RLock()
		ch := s.channel
		s.mu.RUnlock()

		if ch == nil {
			lastErr = NewDisconnectedError(method)
			select {
			case <-time.After(s.opts.ReconnectBase):
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		reqCtx, cancel := context.WithTimeout(ctx, s.opts.RequestTimeout)
		raw, err := ch.Request(reqCtx, method, data)
		cancel()

		if err == nil {
			if result != nil && len(raw) > 0 {
				if decErr := json.Unmarshal(raw, result); decErr != nil {
					return decErr
				}
			}
			return nil
		}

		lastErr = err
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !isTimeoutErr(err) {
			return err
		}
	}

	if lastErr != nil && !isTimeoutErr(lastErr) {
		return lastErr
	}
	return NewTimeoutError(method)
}

// isTimeoutErr reports whether err is (or wraps) a request timeout, the
// only condition SendRequest retries on; every other error propagates to
// the caller on first attempt.
func isTimeoutErr(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrSignalingTimeout)
}

// Close tears the session down; the reconnect supervisor observes
// StateClosed and stops retrying.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateClosed))
		close(s.closed)
		s.mu.RLock()
		ch := s.channel
		s.mu.RUnlock()
		if ch != nil {
			ch.Close()
		}
	})
	return nil
}
