package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/hongminglow/chat-be/internal/chat"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 256
	opTimeout      = 5 * time.Second
)

// Client is one live WebSocket connection. It satisfies chat.Conn.
type Client struct {
	id     string
	conn   *websocket.Conn
	hub    *Hub
	addr   string
	send   chan []byte
	mu     sync.Mutex
	closed bool
}

var _ chat.Conn = (*Client)(nil)

func newClient(conn *websocket.Conn, hub *Hub, addr string) *Client {
	conn.SetReadLimit(hub.maxMessageSize)
	return &Client{
		id:   uuid.NewString(),
		conn: conn,
		hub:  hub,
		addr: addr,
		send: make(chan []byte, sendBufferSize),
	}
}

// ID identifies the connection for the presence registry.
func (c *Client) ID() string { return c.id }

// Push enqueues an event without blocking. It reports false when the
// connection is closed or its buffer is full.
func (c *Client) Push(e chat.Event) bool {
	payload, err := encode(e.Name, e.Data)
	if err != nil {
		slog.Error("encode event failed", "event", e.Name, "conn_id", c.id, "err", err)
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// close stops the write pump. Safe to call more than once.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *Client) readPump() {
	defer func() {
		c.hub.remove(c)
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			slog.Warn("close connection in readPump failed", "conn_id", c.id, "err", err)
		}
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}
		c.dispatch(raw)
	}
}

func (c *Client) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		slog.Warn("frame exceeded maximum size", "conn_id", c.id, "limit", c.hub.maxMessageSize)
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway),
		errors.Is(err, io.EOF), isExpectedCloseError(err):
		slog.Debug("client disconnected", "conn_id", c.id, "addr", c.addr)
	default:
		slog.Warn("websocket read error", "conn_id", c.id, "addr", c.addr, "err", err)
	}
}

func (c *Client) dispatch(raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.Push(chat.ErrorEvent(fmt.Errorf("%w: invalid JSON frame", chat.ErrValidation)))
		return
	}

	ctx, cancel := context.WithTimeout(c.hub.ctx, opTimeout)
	defer cancel()

	var err error
	switch env.Event {
	case EventJoin:
		err = c.handleJoin(ctx, env.Data)
	case EventSendMessage:
		err = c.handleSendMessage(ctx, env.Data)
	case EventTyping:
		err = c.handleTyping(ctx, env.Data)
	default:
		err = fmt.Errorf("%w: unsupported event %q", chat.ErrValidation, env.Event)
	}
	if err != nil {
		slog.Debug("event rejected", "event", env.Event, "conn_id", c.id, "err", err)
		c.Push(chat.ErrorEvent(err))
	}
}

func (c *Client) handleJoin(ctx context.Context, data json.RawMessage) error {
	var in joinData
	if err := decodeData(data, &in); err != nil {
		return err
	}
	return c.hub.sessions.Join(ctx, c, in.UserID)
}

func (c *Client) handleSendMessage(ctx context.Context, data json.RawMessage) error {
	var in sendMessageData
	if err := decodeData(data, &in); err != nil {
		return err
	}
	if _, err := c.authorize(ctx, in.SenderID); err != nil {
		return err
	}
	_, err := c.hub.router.Route(ctx, c, in.SenderID, in.ReceiverID, in.Content)
	return err
}

func (c *Client) handleTyping(ctx context.Context, data json.RawMessage) error {
	var in typingData
	if err := decodeData(data, &in); err != nil {
		return err
	}
	senderID, err := c.authorize(ctx, in.SenderID)
	if err != nil {
		return err
	}
	if in.ReceiverID == 0 {
		return fmt.Errorf("%w: receiver_id is required", chat.ErrValidation)
	}
	// The indicator always carries the joined identity, even when sender_id is omitted.
	c.hub.typing.Relay(senderID, in.ReceiverID, in.IsTyping)
	return nil
}

// authorize requires the connection to have joined as senderID and to be
// within its send quota. It returns the joined user id.
func (c *Client) authorize(ctx context.Context, senderID int64) (int64, error) {
	bound, ok := c.hub.sessions.Identity(c)
	if !ok {
		return 0, fmt.Errorf("%w: join before sending", chat.ErrUnauthenticated)
	}
	if senderID != 0 && senderID != bound {
		return 0, fmt.Errorf("%w: sender_id does not match joined user", chat.ErrForbidden)
	}
	if c.hub.limiter != nil && !c.hub.limiter.Allow(ctx, fmt.Sprintf("user:%d", bound)) {
		return 0, chat.ErrRateLimited
	}
	return bound, nil
}

func decodeData(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: missing data", chat.ErrValidation)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: malformed data", chat.ErrValidation)
	}
	return nil
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			slog.Warn("close connection in writePump failed", "conn_id", c.id, "err", err)
		}
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				if !isExpectedCloseError(err) {
					slog.Warn("websocket write failed", "conn_id", c.id, "err", err)
				}
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
