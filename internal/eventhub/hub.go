package eventhub

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeDeadline      = 5 * time.Second
	readDeadline       = 90 * time.Second // ~3 missed pings
	pingInterval       = 30 * time.Second
	maxReadMessageSize = 32 * 1024
	// sendQueueSize bounds frames waiting for one slow client. Frames beyond
	// it are dropped for that client only.
	sendQueueSize = 64
)

// The control API binds to loopback only, so any origin is accepted.
var wsUpgrader = websocket.Upgrader{
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 4 * 1024,
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once

	mu    sync.Mutex
	kinds map[string]bool // nil: every kind
}

func (c *client) wants(kind string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.kinds == nil || c.kinds[kind]
}

func (c *client) shutdown() {
	c.once.Do(func() { close(c.done) })
}

// Hub fans published events out to every connected websocket client. It is
// an http.Handler; mount it on the route that upgrades clients.
//
// Publish never blocks on a client: each client has its own queue drained by
// a writer goroutine that also sends pings. A client whose write fails is
// disconnected and must reconnect.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  atomic.Bool
	wg      sync.WaitGroup

	now func() time.Time
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		now:     time.Now,
	}
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish queues kind with data for every client subscribed to kind. Encode
// failures are logged and dropped.
func (h *Hub) Publish(kind string, data any) {
	if h.closed.Load() {
		return
	}
	frame, err := EncodeEvent(kind, h.now(), data)
	if err != nil {
		slog.Warn("[WARN-EVENTS] failed to encode event", "kind", kind, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.wants(kind) {
			continue
		}
		select {
		case c.send <- frame:
		default:
			slog.Debug("[DEBUG-EVENTS] client queue full, event dropped", "kind", kind, "remoteAddr", c.conn.RemoteAddr())
		}
	}
}

// Close disconnects every client and rejects new ones. Idempotent.
func (h *Hub) Close() error {
	if h.closed.Swap(true) {
		return nil
	}
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.shutdown()
	}
	h.wg.Wait()
	slog.Info("[events] hub closed", "clients", len(clients))
	return nil
}

// ServeHTTP upgrades the request and runs the client until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.closed.Load() {
		http.Error(w, "event hub closed", http.StatusServiceUnavailable)
		return
	}
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("[WARN-EVENTS] upgrade failed", "error", err)
		return
	}
	conn.SetReadLimit(maxReadMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(readDeadline)); err != nil {
		slog.Warn("[WARN-EVENTS] SetReadDeadline failed on new connection", "error", err)
		closeConn(conn, "initial SetReadDeadline failure")
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readDeadline))
	})

	c := &client{conn: conn, send: make(chan []byte, sendQueueSize), done: make(chan struct{})}
	h.mu.Lock()
	if h.closed.Load() {
		h.mu.Unlock()
		closeConn(conn, "hub closed during upgrade")
		return
	}
	h.clients[c] = struct{}{}
	h.wg.Add(1)
	h.mu.Unlock()
	slog.Info("[events] client connected", "remoteAddr", conn.RemoteAddr())

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.writePump(c)
	}()

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("[ERROR-EVENTS] read pump recovered from panic", "panic", rec, "stack", string(debug.Stack()))
		}
		h.remove(c)
		c.shutdown()
		closeConn(conn, "read pump exit")
		<-writerDone
		h.wg.Done()
		slog.Info("[events] client disconnected", "remoteAddr", conn.RemoteAddr())
	}()
	h.readPump(c)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

func (h *Hub) readPump(c *client) {
	for {
		msgType, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("[DEBUG-EVENTS] read error", "error", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		var fm filterMsg
		if err := json.Unmarshal(msg, &fm); err != nil {
			h.queueError(c, fmt.Sprintf("invalid JSON: %s", err))
			continue
		}
		if err := applyFilter(c, fm); err != nil {
			h.queueError(c, err.Error())
		}
	}
}

func applyFilter(c *client, fm filterMsg) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch fm.Action {
	case subscribeAction:
		if c.kinds == nil {
			c.kinds = make(map[string]bool)
		}
		for _, k := range fm.Kinds {
			if k != "" {
				c.kinds[k] = true
			}
		}
	case unsubscribeAction:
		if c.kinds == nil {
			// Unsubscribing from "everything" leaves nothing selected.
			c.kinds = make(map[string]bool)
		}
		for _, k := range fm.Kinds {
			delete(c.kinds, k)
		}
	default:
		return fmt.Errorf("unknown action %q", fm.Action)
	}
	return nil
}

func (h *Hub) queueError(c *client, message string) {
	payload, err := json.Marshal(errorMsg{Type: "error", Message: message})
	if err != nil {
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}

// writePump is the only writer for c.conn.
func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	write := func(msgType int, payload []byte) bool {
		if err := c.conn.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
			slog.Warn("[WARN-EVENTS] SetWriteDeadline failed, closing connection", "error", err)
			return false
		}
		if err := c.conn.WriteMessage(msgType, payload); err != nil {
			slog.Debug("[DEBUG-EVENTS] write failed, closing connection", "error", err)
			return false
		}
		return true
	}

	for {
		select {
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(time.Second))
			closeConn(c.conn, "hub shutdown")
			return
		case frame := <-c.send:
			if !write(websocket.TextMessage, frame) {
				closeConn(c.conn, "write error")
				return
			}
		case <-ticker.C:
			if !write(websocket.PingMessage, nil) {
				closeConn(c.conn, "ping failure")
				return
			}
		}
	}
}

func closeConn(conn *websocket.Conn, reason string) {
	if err := conn.Close(); err != nil {
		slog.Debug("[DEBUG-EVENTS] connection close", "reason", reason, "error", err)
	}
}
