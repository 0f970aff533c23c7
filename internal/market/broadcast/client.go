package broadcast

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"papertrade/config"
	"papertrade/internal/metrics"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Client is a websocket subscriber. Outbound messages go through a bounded
// queue; when it is full the oldest message is discarded.
type Client struct {
	id     string
	conn   *websocket.Conn
	hub    *Hub
	cfg    config.BroadcastConfig
	logger *zap.Logger

	mu     sync.Mutex
	send   chan []byte
	closed bool
	resync bool // a queued snapshot was evicted
}

var snapshotPrefix = []byte(`{"type":"` + EventSnapshot + `"`)

func NewClient(conn *websocket.Conn, hub *Hub, cfg config.BroadcastConfig, logger *zap.Logger) *Client {
	size := cfg.QueueSize
	if size <= 0 {
		size = 64
	}
	id := uuid.NewString()
	return &Client{
		id:     id,
		conn:   conn,
		hub:    hub,
		cfg:    cfg,
		logger: logger.With(zap.String("client", id)),
		send:   make(chan []byte, size),
	}
}

func (c *Client) ID() string { return c.id }

// Enqueue never blocks. It reports false once the client is closed.
func (c *Client) Enqueue(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
	}

	// queue full: drop the oldest and retry once
	select {
	case dropped := <-c.send:
		metrics.BroadcastDropped.Inc()
		if bytes.HasPrefix(dropped, snapshotPrefix) {
			c.resync = true
		}
	default:
	}
	select {
	case c.send <- msg:
	default:
		metrics.BroadcastDropped.Inc()
	}
	return true
}

// takeResync reports and clears a pending snapshot replacement.
func (c *Client) takeResync() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	pending := c.resync
	c.resync = false
	return pending
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Start registers the client and runs both pumps. It returns immediately.
func (c *Client) Start() {
	c.hub.Register(c)
	go c.writePump()
	go c.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	if c.cfg.MaxMessageSize > 0 {
		c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	}
	c.extendReadDeadline()
	c.conn.SetPongHandler(func(string) error {
		c.extendReadDeadline()
		return nil
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read error", zap.Error(err))
			}
			return
		}
		c.handle(msg)
	}
}

func (c *Client) handle(msg []byte) {
	var req Request
	if err := json.Unmarshal(msg, &req); err != nil {
		c.reply(Event{Type: EventError, Message: "malformed request"})
		return
	}

	switch req.Action {
	case ActionResync:
		c.hub.Resync(c)
	case ActionPing:
		c.reply(Event{Type: EventPong})
	default:
		c.reply(Event{Type: EventError, Message: "unknown action: " + req.Action})
	}
}

func (c *Client) reply(ev Event) {
	ev.Timestamp = time.Now().UTC()
	msg, err := json.Marshal(ev)
	if err != nil {
		return
	}
	c.Enqueue(msg)
}

func (c *Client) writePump() {
	period := c.cfg.PingPeriod
	if period <= 0 {
		period = 50 * time.Second
	}
	ticker := time.NewTicker(period)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.setWriteDeadline()
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logger.Debug("websocket write failed", zap.Error(err))
				c.hub.Unregister(c)
				return
			}
			// replace an evicted snapshot; the hub lock is not held here
			if c.takeResync() {
				c.hub.Resync(c)
			}
		case <-ticker.C:
			c.setWriteDeadline()
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.hub.Unregister(c)
				return
			}
		}
	}
}

func (c *Client) extendReadDeadline() {
	if c.cfg.PongWait > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	}
}

func (c *Client) setWriteDeadline() {
	if c.cfg.WriteWait > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
	}
}

// ServeWS upgrades the request and attaches a Client to the hub.
func ServeWS(hub *Hub, upgrader websocket.Upgrader, cfg config.BroadcastConfig, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			var hsErr websocket.HandshakeError
			if !errors.As(err, &hsErr) {
				logger.Warn("websocket upgrade failed", zap.Error(err))
			}
			return
		}
		NewClient(conn, hub, cfg, logger).Start()
	})
}

// NewUpgrader accepts any origin; CORS for the REST surface is handled by the gateway.
func NewUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
}
