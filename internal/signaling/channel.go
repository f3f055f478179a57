package signaling

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pion/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 20 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 1 << 20 // 1MiB, generous enough for SDP-bearing payloads

	// notFoundMarker is the distinguished rejection marker the SFU uses
	// for operations referencing an id it no longer knows about (a
	// producer/consumer/transport that's already been closed server-side).
	notFoundMarker = "notFoundInMediasoupError"
)

// frame is the wire envelope for both requests/responses and notifications,
// mirroring the emit(event, payload, ack) framing spec.md §2 assumes.
type frame struct {
	ID       string          `json:"id,omitempty"`
	Method   string          `json:"method,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
	Response bool            `json:"response,omitempty"`
	Ok       bool            `json:"ok,omitempty"`
	Error    *frameError     `json:"error,omitempty"`
}

type frameError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Notification is an inbound server push with no reply expected.
type Notification struct {
	Method string
	Data   json.RawMessage
}

// Channel is the transport-agnostic surface Session drives. A concrete
// implementation owns one physical connection's lifetime; Session owns
// reconnects by constructing a fresh Channel per attempt.
type Channel interface {
	// Request sends method/data and blocks for the matching response.
	Request(ctx context.Context, method string, data any) (json.RawMessage, error)
	// Notifications returns the channel notifications are delivered on.
	// Closed when the connection drops.
	Notifications() <-chan Notification
	// Done is closed when the channel's connection has dropped, for any
	// reason (including a clean Close).
	Done() <-chan struct{}
	Close() error
}

// wsChannel is the gorilla/websocket client-dialer implementation of
// Channel, in the read/write-pump style of a server-side hub's per-client
// loop, adapted for an outbound dial instead of an inbound accept.
type wsChannel struct {
	conn *websocket.Conn
	log  logging.LeveledLogger

	send chan *frame
	done chan struct{}
	once sync.Once

	notifications chan Notification

	pendingMu sync.Mutex
	pending   map[string]chan *frame
}

// DialChannel opens a websocket connection to url and starts its pumps.
func DialChannel(ctx context.Context, url string, header http.Header, log logging.LeveledLogger) (Channel, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("dialing signaling channel: %w", err)
	}

	c := &wsChannel{
		conn:          conn,
		log:           log,
		send:          make(chan *frame, 64),
		done:          make(chan struct{}),
		notifications: make(chan Notification, 64),
		pending:       make(map[string]chan *frame),
	}

	go c.readPump()
	go c.writePump()

	return c, nil
}

func (c *wsChannel) Notifications() <-chan Notification { return c.notifications }

func (c *wsChannel) Done() <-chan struct{} { return c.done }

func (c *wsChannel) Close() error {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
	return nil
}

func (c *wsChannel) Request(ctx context.Context, method string, data any) (json.RawMessage, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encoding %s payload: %w", method, err)
	}

	id := uuid.New().String()
	reply := make(chan *frame, 1)

	c.pendingMu.Lock()
	c.pending[id] = reply
	c.pendingMu.Unlock()

	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	select {
	case c.send <- &frame{ID: id, Method: method, Data: raw}:
	case <-c.done:
		return nil, ErrSignalingDisconnected
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case resp := <-reply:
		if !resp.Ok {
			if resp.Error != nil {
				if strings.Contains(resp.Error.Code, notFoundMarker) || strings.Contains(resp.Error.Message, notFoundMarker) {
					return nil, NewNotFoundError(method)
				}
				return nil, fmt.Errorf("%s: %s", resp.Error.Code, resp.Error.Message)
			}
			return nil, fmt.Errorf("%s rejected", method)
		}
		return resp.Data, nil
	case <-c.done:
		return nil, ErrSignalingDisconnected
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *wsChannel) readPump() {
	defer c.Close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warnf("signaling channel read error: %v", err)
			}
			return
		}

		var f frame
		if err := json.Unmarshal(raw, &f); err != nil {
			c.log.Warnf("signaling channel malformed frame: %v", err)
			continue
		}

		if f.Response {
			c.pendingMu.Lock()
			reply, ok := c.pending[f.ID]
			c.pendingMu.Unlock()
			if ok {
				reply <- &f
			}
			continue
		}

		select {
		case c.notifications <- Notification{Method: f.Method, Data: f.Data}:
		default:
			c.log.Warnf("notification buffer full, dropping %s", f.Method)
		}
	}
}

func (c *wsChannel) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case f, ok := <-c.send:
			if !ok {
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(f); err != nil {
				c.log.Warnf("signaling channel write error: %v", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
