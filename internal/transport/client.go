package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"nord/internal/models"

	"github.com/gorilla/websocket"
)

var (
	ErrConnectInFlight  = errors.New("connect already in flight")
	ErrAlreadyConnected = errors.New("already connected")
)

// ConnectionError wraps any handshake failure; the store reacts to it by
// falling back to polling.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection failed: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

type socketConn interface {
	Close() error
	WriteJSON(v interface{}) error
	ReadJSON(v interface{}) error
}

// envelope frames every event on the socket in both directions.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type joinUserPayload struct {
	User models.User `json:"user"`
}

type channelPayload struct {
	ChannelID string `json:"channel_id"`
}

type sendMessagePayload struct {
	ChannelID string              `json:"channel_id"`
	Message   models.MessageDraft `json:"message"`
	User      models.User         `json:"user"`
}

// Client is the bidirectional socket transport. It is constructed per
// session and owned by the synchronization store; there is no package
// level singleton.
type Client struct {
	events *Events
	dial   func(ctx context.Context) (socketConn, error)

	mu         sync.Mutex
	conn       socketConn
	connecting bool
	connected  bool

	// Serializes writes; the websocket allows one concurrent writer.
	writeMu sync.Mutex
}

func NewClient(url string) *Client {
	return &Client{
		events: &Events{},
		dial: func(ctx context.Context) (socketConn, error) {
			conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
			return conn, err
		},
	}
}

// Events returns the typed listener registry for inbound events.
func (c *Client) Events() *Events {
	return c.events
}

// Connect dials the server, announces the identity and waits for the
// acknowledgement event. Exactly one attempt may be in flight; re-entrant
// calls are rejected. No internal timeout is imposed: cancel ctx to bound
// a hung handshake.
func (c *Client) Connect(ctx context.Context, user models.User) error {
	c.mu.Lock()
	if c.connecting {
		c.mu.Unlock()
		return ErrConnectInFlight
	}
	if c.connected {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.connecting = true
	c.mu.Unlock()

	err := c.connect(ctx, user)

	c.mu.Lock()
	c.connecting = false
	c.connected = err == nil
	c.mu.Unlock()

	return err
}

func (c *Client) connect(ctx context.Context, user models.User) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return &ConnectionError{Err: err}
	}

	ack := make(chan struct{})
	go c.pumpEvents(conn, ack)

	if err := c.write(conn, "join_user", joinUserPayload{User: user}); err != nil {
		_ = conn.Close()
		return &ConnectionError{Err: err}
	}

	select {
	case <-ack:
	case <-ctx.Done():
		_ = conn.Close()
		return &ConnectionError{Err: ctx.Err()}
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	return nil
}

// pumpEvents reads frames until the connection dies and dispatches them
// to registered listeners in receipt order.
func (c *Client) pumpEvents(conn socketConn, ack chan struct{}) {
	acked := false
	for {
		var env envelope
		if err := conn.ReadJSON(&env); err != nil {
			c.mu.Lock()
			if c.conn == conn {
				c.conn = nil
				c.connected = false
			}
			c.mu.Unlock()
			return
		}
		if env.Event == "connected" && !acked {
			acked = true
			close(ack)
			continue
		}
		c.dispatch(env)
	}
}

func (c *Client) dispatch(env envelope) {
	switch env.Event {
	case "new_message":
		var ev NewMessage
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			slog.Warn("malformed new_message event", "error", err)
			return
		}
		c.events.EmitNewMessage(ev)
	case "channel_messages":
		var ev ChannelMessages
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			slog.Warn("malformed channel_messages event", "error", err)
			return
		}
		c.events.EmitChannelMessages(ev)
	case "online_users":
		var ev OnlineUsers
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			slog.Warn("malformed online_users event", "error", err)
			return
		}
		c.events.EmitOnlineUsers(ev)
	case "user_typing":
		var ev UserTyping
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			slog.Warn("malformed user_typing event", "error", err)
			return
		}
		c.events.EmitUserTyping(ev)
	case "error":
		var ev ServerError
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			slog.Warn("malformed error event", "error", err)
			return
		}
		c.events.EmitServerError(ev)
	}
}

// Disconnect tears down the socket. Idempotent.
func (c *Client) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.connected = false
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
}

// Connected reports whether the handshake completed and the socket is
// still alive.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// current returns the live connection, or nil when disconnected.
// Fire-and-forget operations use it and silently no-op on nil.
func (c *Client) current() socketConn {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return nil
	}
	return c.conn
}

func (c *Client) write(conn socketConn, event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(envelope{Event: event, Data: data})
}

// fireAndForget sends an event without delivery confirmation. Send
// failures are not retried; a dropped frame surfaces only as a missing
// echo, which the caller resolves by re-invoking.
func (c *Client) fireAndForget(event string, payload interface{}) {
	conn := c.current()
	if conn == nil {
		return
	}
	if err := c.write(conn, event, payload); err != nil {
		slog.Warn("socket send failed", "event", event, "error", err)
	}
}

func (c *Client) JoinChannel(channelID string) {
	c.fireAndForget("join_channel", channelPayload{ChannelID: channelID})
}

func (c *Client) LeaveChannel(channelID string) {
	c.fireAndForget("leave_channel", channelPayload{ChannelID: channelID})
}

// SendMessage transmits a message body. Delivery is unacknowledged at
// this layer; the persisted message (with server-assigned id and
// timestamp) arrives later as a new_message event.
func (c *Client) SendMessage(channelID string, payload models.MessageDraft, user models.User) {
	c.fireAndForget("send_message", sendMessagePayload{
		ChannelID: channelID,
		Message:   payload,
		User:      user,
	})
}

func (c *Client) StartTyping(channelID string) {
	c.fireAndForget("typing_start", channelPayload{ChannelID: channelID})
}

func (c *Client) StopTyping(channelID string) {
	c.fireAndForget("typing_stop", channelPayload{ChannelID: channelID})
}
