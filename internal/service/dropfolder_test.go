package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picsapp/picsapp-server/internal/store"
	"github.com/picsapp/picsapp-server/internal/watcher"
)

func TestDropFolder_QueuesSettledFiles(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w, err := watcher.New(testLogger(), watcher.Options{SettleDelay: 50 * time.Millisecond})
	require.NoError(t, err)
	t.Cleanup(func() { w.Stop() }) //nolint:errcheck // Test cleanup
	require.NoError(t, w.Watch(env.raw.Dir()))

	go w.Start(ctx) //nolint:errcheck // Test goroutine
	go NewDropFolder(w, env.queue, testLogger()).Run(ctx)

	dropped := filepath.Join(env.raw.Dir(), "scanner-001.jpg")
	require.NoError(t, os.WriteFile(dropped, []byte("jpeg"), 0o644))

	require.Eventually(t, func() bool {
		list, err := env.queue.List(ctx, store.TaskFilter{})
		return err == nil && len(list) == 1 && list[0].SourcePath == dropped
	}, 3*time.Second, 20*time.Millisecond)

	list, err := env.queue.List(ctx, store.TaskFilter{})
	require.NoError(t, err)
	assert.Equal(t, "scanner-001.jpg", list[0].SourceName)
}
