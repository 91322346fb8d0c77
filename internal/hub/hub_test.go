package hub

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	id string

	mu       sync.Mutex
	received [][]byte
	failSend bool
	closed   int
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSend {
		return errors.New("broken pipe")
	}
	c.received = append(c.received, payload)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	return nil
}

func (c *fakeConn) messages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.received))
	for i, p := range c.received {
		out[i] = string(p)
	}
	return out
}

func (c *fakeConn) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	h := New(slog.New(slog.DiscardHandler))
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-h.Done()
	})
	return h, cancel
}

func TestHub_BroadcastReachesEveryViewer(t *testing.T) {
	h, _ := startHub(t)

	a, b := newFakeConn("a"), newFakeConn("b")
	require.NoError(t, h.Register(a))
	require.NoError(t, h.Register(b))
	assert.Equal(t, 2, h.Count())

	h.Broadcast([]byte(`[1]`))
	h.Broadcast([]byte(`[2]`))

	// Count is served by the loop after both broadcasts were delivered.
	assert.Equal(t, 2, h.Count())
	assert.Equal(t, []string{`[1]`, `[2]`}, a.messages())
	assert.Equal(t, []string{`[1]`, `[2]`}, b.messages())
}

func TestHub_FailedSendPrunesConnection(t *testing.T) {
	h, _ := startHub(t)

	healthy, broken := newFakeConn("ok"), newFakeConn("broken")
	broken.failSend = true
	require.NoError(t, h.Register(healthy))
	require.NoError(t, h.Register(broken))

	h.Broadcast([]byte(`[]`))

	assert.Equal(t, 1, h.Count())
	assert.Equal(t, 1, broken.closeCount())
	assert.Equal(t, []string{`[]`}, healthy.messages())

	// The pruned viewer is not retried on the next broadcast.
	h.Broadcast([]byte(`[x]`))
	assert.Equal(t, 1, h.Count())
	assert.Equal(t, 1, broken.closeCount())
}

func TestHub_UnregisterIsIdempotent(t *testing.T) {
	h, _ := startHub(t)

	conn := newFakeConn("c")
	require.NoError(t, h.Register(conn))

	h.Unregister(conn)
	h.Unregister(conn)
	h.Unregister(newFakeConn("never-registered"))

	assert.Equal(t, 0, h.Count())
	assert.Equal(t, 1, conn.closeCount())

	h.Broadcast([]byte(`[]`))
	assert.Empty(t, conn.messages())
}

func TestHub_StopClosesConnections(t *testing.T) {
	h, cancel := startHub(t)

	a, b := newFakeConn("a"), newFakeConn("b")
	require.NoError(t, h.Register(a))
	require.NoError(t, h.Register(b))

	cancel()
	select {
	case <-h.Done():
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}

	assert.Equal(t, 1, a.closeCount())
	assert.Equal(t, 1, b.closeCount())

	late := newFakeConn("late")
	assert.ErrorIs(t, h.Register(late), ErrClosed)
	assert.Equal(t, 1, late.closeCount())

	// Calls after stop return instead of blocking.
	h.Broadcast([]byte(`[]`))
	h.Unregister(a)
	assert.Equal(t, 0, h.Count())
}

func TestHub_ConcurrentMembership(t *testing.T) {
	h, _ := startHub(t)

	const viewers = 50
	conns := make([]*fakeConn, viewers)
	var wg sync.WaitGroup
	for i := range viewers {
		conns[i] = newFakeConn(string(rune('A' + i)))
		wg.Add(1)
		go func(c *fakeConn) {
			defer wg.Done()
			_ = h.Register(c)
			h.Broadcast([]byte(c.id))
		}(conns[i])
	}
	wg.Wait()

	assert.Equal(t, viewers, h.Count())

	for i := range viewers {
		wg.Add(1)
		go func(c *fakeConn) {
			defer wg.Done()
			h.Unregister(c)
		}(conns[i])
	}
	wg.Wait()

	assert.Equal(t, 0, h.Count())
	for _, c := range conns {
		assert.Equal(t, 1, c.closeCount())
	}
}
