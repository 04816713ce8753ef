package realtime

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hongminglow/chat-be/internal/chat"
	"github.com/hongminglow/chat-be/internal/ratelimit"
)

const sweepInterval = 30 * time.Second

// Options configures a Hub.
type Options struct {
	Sessions       *chat.Sessions
	Router         *chat.Router
	Typing         *chat.Typing
	Limiter        ratelimit.Limiter
	CheckOrigin    func(r *http.Request) bool
	MaxMessageSize int64
}

// Hub owns every open WebSocket client. It upgrades requests, feeds inbound
// events to the chat core and tears clients down on shutdown.
type Hub struct {
	sessions       *chat.Sessions
	router         *chat.Router
	typing         *chat.Typing
	limiter        ratelimit.Limiter
	maxMessageSize int64
	upgrader       websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	clients map[*Client]struct{}
	closing bool
	wg      sync.WaitGroup
}

// NewHub creates a hub ready to serve upgrades.
func NewHub(opts Options) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	maxSize := opts.MaxMessageSize
	if maxSize <= 0 {
		maxSize = 4096
	}
	h := &Hub{
		sessions:       opts.Sessions,
		router:         opts.Router,
		typing:         opts.Typing,
		limiter:        opts.Limiter,
		maxMessageSize: maxSize,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     opts.CheckOrigin,
		},
		ctx:     ctx,
		cancel:  cancel,
		clients: make(map[*Client]struct{}),
	}
	go h.sweepLoop()
	return h
}

// sweepLoop retries offline writes that failed when a client went away.
func (h *Hub) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-h.ctx.Done():
			return
		case <-ticker.C:
			h.sessions.Sweep(h.ctx)
		}
	}
}

// ServeHTTP upgrades the request and starts the client pumps.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	closing := h.closing
	h.mu.Unlock()
	if closing {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "addr", r.RemoteAddr, "err", err)
		return
	}

	client := newClient(conn, h, r.RemoteAddr)
	if !h.add(client) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// Len reports the number of open connections, joined or not.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) add(c *Client) bool {
	h.mu.Lock()
	if h.closing {
		h.mu.Unlock()
		return false
	}
	h.clients[c] = struct{}{}
	h.wg.Add(1)
	h.mu.Unlock()

	h.sessions.Connect(c)
	return true
}

// remove runs once per client when its read pump exits.
func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if !ok {
		return
	}
	defer h.wg.Done()

	// The hub context may already be cancelled during shutdown; the offline
	// write must still go through.
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	h.sessions.Disconnect(ctx, c)
	c.close()
}

// Shutdown closes every client and waits until their sessions have been
// released or the context expires.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closing = true
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	h.cancel()
	slog.Info("closing websocket clients", "count", len(clients))

	deadline := time.Now().Add(writeWait)
	for _, c := range clients {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			deadline)
		// Unblocks ReadMessage so readPump exits and releases the session.
		_ = c.conn.Close()
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		sweepCtx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		h.sessions.Sweep(sweepCtx)
		return nil
	case <-ctx.Done():
		slog.Warn("timed out waiting for websocket clients", "err", ctx.Err())
		return ctx.Err()
	}
}
