package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/picsapp/picsapp-server/internal/config"
	"github.com/picsapp/picsapp-server/internal/domain"
	"github.com/picsapp/picsapp-server/internal/hub"
	"github.com/picsapp/picsapp-server/internal/media/images"
	"github.com/picsapp/picsapp-server/internal/queue"
	"github.com/picsapp/picsapp-server/internal/store"
	"github.com/picsapp/picsapp-server/internal/store/sqlite"
)

// recordingConn is a hub viewer that keeps every payload it receives.
type recordingConn struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (c *recordingConn) ID() string { return "test-viewer" }

func (c *recordingConn) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.payloads = append(c.payloads, payload)
	return nil
}

func (c *recordingConn) Close() error { return nil }

func (c *recordingConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.payloads)
}

func (c *recordingConn) last() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.payloads) == 0 {
		return nil
	}
	return c.payloads[len(c.payloads)-1]
}

type testEnv struct {
	store      *sqlite.Store
	queue      *queue.Queue
	uploads    *images.Storage
	raw        *images.RawStorage
	hub        *hub.Hub
	viewer     *recordingConn
	publisher  *RankingPublisher
	conversion *ConversionService
	gallery    *GalleryService
	reconciler *Reconciler
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func testConversionConfig() config.ConversionConfig {
	return config.ConversionConfig{
		Workers:      2,
		MaxDimension: 1600,
		Quality:      82,
		IdleInterval: 20 * time.Millisecond,
		ErrorBackoff: 20 * time.Millisecond,
	}
}

// newTestEnv wires the services against a temp-dir database and directories.
// items, when non-nil, replaces the store as the item store seen by the services.
func newTestEnv(t *testing.T, items store.ItemStore) *testEnv {
	t.Helper()
	logger := testLogger()
	dir := t.TempDir()

	s, err := sqlite.Open(filepath.Join(dir, "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	if items == nil {
		items = s
	}

	uploads, err := images.NewStorage(filepath.Join(dir, "uploads"))
	require.NoError(t, err)
	raw, err := images.NewRawStorage(filepath.Join(dir, "original"))
	require.NoError(t, err)

	h := hub.New(logger)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-h.Done()
	})

	viewer := &recordingConn{}
	require.NoError(t, h.Register(viewer))

	q := queue.New(s, logger)
	publisher := NewRankingPublisher(items, h, logger)

	return &testEnv{
		store:      s,
		queue:      q,
		uploads:    uploads,
		raw:        raw,
		hub:        h,
		viewer:     viewer,
		publisher:  publisher,
		conversion: NewConversionService(q, items, uploads, raw, publisher, testConversionConfig(), logger),
		gallery:    NewGalleryService(items, q, raw, publisher, logger),
		reconciler: NewReconciler(items, q, uploads, raw, logger),
	}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// enqueueRaw writes data as a raw upload and queues it.
func (e *testEnv) enqueueRaw(t *testing.T, name string, data []byte, target domain.Optional[string]) string {
	t.Helper()
	path, err := e.raw.Create(name, bytes.NewReader(data))
	require.NoError(t, err)
	result, err := e.queue.CreateTask(context.Background(), path, name, target)
	require.NoError(t, err)
	require.Equal(t, store.Created, result)
	return path
}

// runOne claims the next task and processes it on the calling goroutine.
func (e *testEnv) runOne(t *testing.T) *domain.ConversionTask {
	t.Helper()
	ctx := context.Background()

	claimed, err := e.queue.ClaimNextTask(ctx)
	require.NoError(t, err)
	task, ok := claimed.Get()
	require.True(t, ok, "expected a pending task")

	e.conversion.process(ctx, 0, &task)

	stored, err := e.queue.Get(ctx, task.ID)
	require.NoError(t, err)
	return stored
}
