// Package sse streams ranking snapshots to browsers over Server-Sent Events.
package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/picsapp/picsapp-server/internal/hub"
	"github.com/picsapp/picsapp-server/internal/id"
)

const (
	// EventSnapshot carries the full ranked item list.
	EventSnapshot = "snapshot"
	// EventConnected is sent once, before the first snapshot.
	EventConnected = "connected"

	defaultHeartbeat    = 30 * time.Second
	defaultWriteTimeout = 60 * time.Second
)

// SnapshotSource renders the current ranking as a JSON payload.
type SnapshotSource interface {
	Snapshot(ctx context.Context) ([]byte, error)
}

// Options tunes the handler. Zero values fall back to defaults.
type Options struct {
	SendBuffer        int
	HeartbeatInterval time.Duration
	WriteTimeout      time.Duration
}

// Handler handles SSE connections at GET /api/stream.
type Handler struct {
	hub       *hub.Hub
	snapshots SnapshotSource
	logger    *slog.Logger
	opts      Options
}

// NewHandler creates a new SSE Handler.
func NewHandler(h *hub.Hub, snapshots SnapshotSource, opts Options, logger *slog.Logger) *Handler {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 16
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = defaultHeartbeat
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	return &Handler{
		hub:       h,
		snapshots: snapshots,
		logger:    logger,
		opts:      opts,
	}
}

// ServeHTTP handles the SSE connection.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Check if request context is already canceled (early client disconnect).
	if r.Context().Err() != nil {
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	rc := http.NewResponseController(w)

	if err := rc.Flush(); err != nil {
		h.logger.Error("failed to flush headers", slog.String("error", err.Error()))
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	connID, err := id.Generate("sse")
	if err != nil {
		h.logger.Error("failed to generate connection id", slog.String("error", err.Error()))
		http.Error(w, "Failed to establish connection", http.StatusInternalServerError)
		return
	}

	c := newConn(connID, h.opts.SendBuffer)
	if err := h.hub.Register(c); err != nil {
		h.logger.Warn("hub rejected SSE viewer", slog.String("error", err.Error()))
		return
	}
	defer h.hub.Unregister(c)

	connLogger := h.logger.With(slog.String("conn_id", connID))

	hello, err := json.Marshal(map[string]string{"conn_id": connID})
	if err != nil {
		connLogger.Error("failed to marshal connected event", slog.String("error", err.Error()))
		return
	}
	if err := h.writeEvent(w, rc, EventConnected, hello); err != nil {
		connLogger.Info("client disconnected before handshake")
		return
	}

	ctx := r.Context()

	// Initial snapshot goes straight to this viewer, not through the hub.
	snapshot, err := h.snapshots.Snapshot(ctx)
	if err != nil {
		connLogger.Error("failed to build initial snapshot", slog.String("error", err.Error()))
		return
	}
	if err := h.writeEvent(w, rc, EventSnapshot, snapshot); err != nil {
		connLogger.Info("client disconnected during initial snapshot")
		return
	}

	heartbeat := time.NewTicker(h.opts.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case payload := <-c.messages:
			if err := h.writeEvent(w, rc, EventSnapshot, payload); err != nil {
				connLogger.Info("client disconnected during send")
				return
			}

		case <-heartbeat.C:
			if err := h.writeComment(w, rc, "heartbeat"); err != nil {
				connLogger.Info("client disconnected during heartbeat")
				return
			}

		case <-c.done:
			connLogger.Info("stream closed by hub")
			return

		case <-ctx.Done():
			connLogger.Debug("client context canceled")
			return
		}
	}
}

// writeEvent writes one SSE frame:
//
//	event: <type>
//	data: <json>
func (h *Handler) writeEvent(w http.ResponseWriter, rc *http.ResponseController, eventType string, data []byte) error {
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, data); err != nil {
		return err
	}
	return h.flush(rc)
}

func (h *Handler) writeComment(w http.ResponseWriter, rc *http.ResponseController, text string) error {
	if _, err := fmt.Fprintf(w, ": %s\n\n", text); err != nil {
		return err
	}
	return h.flush(rc)
}

func (h *Handler) flush(rc *http.ResponseController) error {
	if err := rc.Flush(); err != nil {
		return err
	}

	// Reset after each successful write so hung connections are cut off.
	if err := rc.SetWriteDeadline(time.Now().Add(h.opts.WriteTimeout)); err != nil {
		h.logger.Debug("failed to set write deadline", slog.String("error", err.Error()))
	}
	return nil
}
