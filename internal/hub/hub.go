// Package hub fans ranking snapshots out to every connected viewer.
//
// A single goroutine (Run) owns the connection set. Register, Unregister,
// Broadcast and Count are messages to that goroutine.
package hub

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// ErrClosed is returned by Register once Run has exited.
var ErrClosed = errors.New("hub closed")

// Conn is a viewer connection. Send must not block indefinitely: transports
// either buffer with a non-blocking hand-off or apply a write deadline.
type Conn interface {
	ID() string
	Send(payload []byte) error
	Close() error
}

// Publisher is the narrow view of the hub used by producers of snapshots.
type Publisher interface {
	Broadcast(payload []byte)
}

// Hub is the broadcast hub. The zero value is not usable; call New.
type Hub struct {
	register   chan Conn
	unregister chan Conn
	broadcast  chan []byte
	count      chan chan int
	done       chan struct{}
	logger     *slog.Logger
}

var _ Publisher = (*Hub)(nil)

// New creates a hub. Nothing is delivered until Run is started.
func New(logger *slog.Logger) *Hub {
	return &Hub{
		register:   make(chan Conn),
		unregister: make(chan Conn),
		broadcast:  make(chan []byte),
		count:      make(chan chan int),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run processes membership changes and broadcasts until ctx is cancelled.
// On exit every remaining connection is closed and later calls are dropped.
func (h *Hub) Run(ctx context.Context) {
	conns := make(map[Conn]time.Time)

	defer func() {
		close(h.done)
		for conn := range conns {
			_ = conn.Close()
		}
		h.logger.Info("broadcast hub stopped", slog.Int("closed_connections", len(conns)))
	}()

	h.logger.Info("broadcast hub starting")

	for {
		select {
		case conn := <-h.register:
			conns[conn] = time.Now()
			h.logger.Info("viewer connected",
				slog.String("conn_id", conn.ID()),
				slog.Int("total_viewers", len(conns)))

		case conn := <-h.unregister:
			connectedAt, ok := conns[conn]
			if !ok {
				continue
			}
			delete(conns, conn)
			_ = conn.Close()
			h.logger.Info("viewer disconnected",
				slog.String("conn_id", conn.ID()),
				slog.Duration("duration", time.Since(connectedAt)),
				slog.Int("total_viewers", len(conns)))

		case payload := <-h.broadcast:
			h.deliver(conns, payload)

		case reply := <-h.count:
			reply <- len(conns)

		case <-ctx.Done():
			return
		}
	}
}

// deliver sends payload to every connection, dropping the ones that fail.
func (h *Hub) deliver(conns map[Conn]time.Time, payload []byte) {
	var delivered, pruned int

	for conn := range conns {
		if err := conn.Send(payload); err != nil {
			delete(conns, conn)
			_ = conn.Close()
			pruned++
			h.logger.Warn("dropping viewer after failed send",
				slog.String("conn_id", conn.ID()),
				slog.String("error", err.Error()))
			continue
		}
		delivered++
	}

	h.logger.Debug("snapshot broadcast",
		slog.Int("bytes", len(payload)),
		slog.Group("stats",
			slog.Int("delivered", delivered),
			slog.Int("pruned", pruned)))
}

// Register adds conn to the broadcast set. After Run has exited the
// connection is closed and ErrClosed returned.
func (h *Hub) Register(conn Conn) error {
	select {
	case h.register <- conn:
		return nil
	case <-h.done:
		_ = conn.Close()
		return ErrClosed
	}
}

// Unregister removes and closes conn. Unknown connections are ignored.
func (h *Hub) Unregister(conn Conn) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

// Broadcast delivers payload to all current connections.
func (h *Hub) Broadcast(payload []byte) {
	select {
	case h.broadcast <- payload:
	case <-h.done:
	}
}

// Count returns the number of registered connections, or 0 once stopped.
func (h *Hub) Count() int {
	reply := make(chan int, 1)
	select {
	case h.count <- reply:
		return <-reply
	case <-h.done:
		return 0
	}
}

// Done is closed when Run has exited.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}
