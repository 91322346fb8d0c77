package sse

import (
	"errors"
	"sync"
)

var (
	errBufferFull = errors.New("sse send buffer full")
	errConnClosed = errors.New("sse connection closed")
)

// conn is the hub-facing side of one event stream. Send hands the payload to the
// streaming goroutine without blocking; a full buffer means the viewer is too slow.
type conn struct {
	id       string
	messages chan []byte
	done     chan struct{}
	once     sync.Once
}

func newConn(id string, buffer int) *conn {
	if buffer <= 0 {
		buffer = 1
	}
	return &conn{
		id:       id,
		messages: make(chan []byte, buffer),
		done:     make(chan struct{}),
	}
}

func (c *conn) ID() string { return c.id }

func (c *conn) Send(payload []byte) error {
	select {
	case <-c.done:
		return errConnClosed
	default:
	}

	select {
	case c.messages <- payload:
		return nil
	default:
		return errBufferFull
	}
}

// Close signals the streaming goroutine to finish. The messages channel is
// never closed so a concurrent Send cannot panic.
func (c *conn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}
