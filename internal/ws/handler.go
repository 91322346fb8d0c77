// Package ws serves the ranking feed over WebSocket.
package ws

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/picsapp/picsapp-server/internal/hub"
	"github.com/picsapp/picsapp-server/internal/id"
)

const (
	defaultWriteTimeout = 10 * time.Second
	defaultPongWait     = 60 * time.Second
	maxInboundMessage   = 512
)

// SnapshotSource renders the current ranking as a JSON payload.
type SnapshotSource interface {
	Snapshot(ctx context.Context) ([]byte, error)
}

// Options tunes the handler. Zero values fall back to defaults.
type Options struct {
	WriteTimeout   time.Duration
	PongWait       time.Duration
	AllowedOrigins []string
}

// conn adapts a websocket connection to hub.Conn. Writes are serialized and
// bounded by the write deadline.
type conn struct {
	id      string
	ws      *websocket.Conn
	timeout time.Duration

	writeMu sync.Mutex
	once    sync.Once
}

func (c *conn) ID() string { return c.id }

func (c *conn) Send(payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.ws.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

func (c *conn) ping() error {
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.timeout))
}

func (c *conn) Close() error {
	var err error
	c.once.Do(func() {
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
			time.Now().Add(time.Second))
		err = c.ws.Close()
	})
	return err
}

// Handler upgrades GET /ws and keeps the viewer registered with the hub
// until the peer goes away.
type Handler struct {
	hub       *hub.Hub
	snapshots SnapshotSource
	upgrader  websocket.Upgrader
	logger    *slog.Logger
	opts      Options
}

// NewHandler creates a WebSocket handler.
func NewHandler(h *hub.Hub, snapshots SnapshotSource, opts Options, logger *slog.Logger) *Handler {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	if opts.PongWait <= 0 {
		opts.PongWait = defaultPongWait
	}

	handler := &Handler{
		hub:       h,
		snapshots: snapshots,
		logger:    logger,
		opts:      opts,
	}
	handler.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     handler.checkOrigin,
	}
	return handler
}

// checkOrigin accepts same-origin requests, requests without an Origin header
// and any origin in AllowedOrigins ("*" allows all).
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.opts.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return origin == "http://"+r.Host || origin == "https://"+r.Host
}

// ServeHTTP handles the WebSocket connection.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	socket, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	connID, err := id.Generate("ws")
	if err != nil {
		h.logger.Error("failed to generate connection id", slog.String("error", err.Error()))
		_ = socket.Close()
		return
	}

	c := &conn{id: connID, ws: socket, timeout: h.opts.WriteTimeout}
	if err := h.hub.Register(c); err != nil {
		h.logger.Warn("hub rejected websocket viewer", slog.String("error", err.Error()))
		return
	}
	defer h.hub.Unregister(c)

	connLogger := h.logger.With(slog.String("conn_id", connID))

	snapshot, err := h.snapshots.Snapshot(r.Context())
	if err != nil {
		connLogger.Error("failed to build initial snapshot", slog.String("error", err.Error()))
		return
	}
	if err := c.Send(snapshot); err != nil {
		connLogger.Info("client disconnected during initial snapshot")
		return
	}

	done := make(chan struct{})
	defer close(done)
	go h.keepAlive(c, done, connLogger)

	h.readLoop(c, connLogger)
}

// readLoop drains inbound frames so control messages are processed. Viewers
// never send data we act on; any read error ends the connection.
func (h *Handler) readLoop(c *conn, logger *slog.Logger) {
	c.ws.SetReadLimit(maxInboundMessage)
	_ = c.ws.SetReadDeadline(time.Now().Add(h.opts.PongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(h.opts.PongWait))
	})

	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("websocket read ended", slog.String("error", err.Error()))
			}
			return
		}
	}
}

func (h *Handler) keepAlive(c *conn, done <-chan struct{}, logger *slog.Logger) {
	ticker := time.NewTicker(h.opts.PongWait * 9 / 10)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.ping(); err != nil {
				logger.Debug("websocket ping failed", slog.String("error", err.Error()))
				return
			}
		case <-done:
			return
		}
	}
}
