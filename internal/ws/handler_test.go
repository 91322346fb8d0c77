package ws

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picsapp/picsapp-server/internal/hub"
)

type staticSnapshot string

func (s staticSnapshot) Snapshot(context.Context) ([]byte, error) {
	return []byte(s), nil
}

func startServer(t *testing.T, opts Options) (*hub.Hub, *httptest.Server, context.CancelFunc) {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)

	h := hub.New(logger)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	srv := httptest.NewServer(NewHandler(h, staticSnapshot(`[]`), opts, logger))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return h, srv, cancel
}

func dial(t *testing.T, srv *httptest.Server, header http.Header) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	return websocket.DefaultDialer.Dial(url, header)
}

func readText(t *testing.T, c *websocket.Conn) string {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	kind, data, err := c.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.TextMessage, kind)
	return string(data)
}

func TestHandler_SnapshotThenBroadcasts(t *testing.T) {
	h, srv, _ := startServer(t, Options{})

	client, _, err := dial(t, srv, nil)
	require.NoError(t, err)
	defer client.Close()

	assert.JSONEq(t, `[]`, readText(t, client))
	require.Equal(t, 1, h.Count())

	h.Broadcast([]byte(`[{"id":"1.webp","like_count":3}]`))
	assert.JSONEq(t, `[{"id":"1.webp","like_count":3}]`, readText(t, client))

	require.NoError(t, client.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	require.NoError(t, client.Close())

	require.Eventually(t, func() bool { return h.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHandler_HubStopClosesSocket(t *testing.T) {
	_, srv, stopHub := startServer(t, Options{})

	client, _, err := dial(t, srv, nil)
	require.NoError(t, err)
	defer client.Close()

	readText(t, client)
	stopHub()

	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = client.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}

func TestHandler_CheckOrigin(t *testing.T) {
	_, srv, _ := startServer(t, Options{AllowedOrigins: []string{"http://gallery.example"}})

	_, resp, err := dial(t, srv, http.Header{"Origin": {"http://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	client, _, err := dial(t, srv, http.Header{"Origin": {"http://gallery.example"}})
	require.NoError(t, err)
	client.Close()
}
