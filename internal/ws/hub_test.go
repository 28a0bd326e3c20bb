package ws_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"parkgate/internal/ws"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestBroadcastReachesSubscribers(t *testing.T) {
	hub := ws.NewHub(zap.NewNop())
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleUpgrade))
	defer srv.Close()

	first := dial(t, srv)
	second := dial(t, srv)

	require.Eventually(t, func() bool {
		return hub.ClientCount() == 2
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Broadcast(map[string]string{"kind": "entry", "message": "Vehicle KA-01 entered"}))

	for _, conn := range []*websocket.Conn{first, second} {
		conn.SetReadDeadline(time.Now().Add(time.Second))
		var frame map[string]string
		require.NoError(t, conn.ReadJSON(&frame))
		require.Equal(t, "entry", frame["kind"])
		require.Contains(t, frame["message"], "KA-01")
	}
}

func TestClosedClientIsDropped(t *testing.T) {
	hub := ws.NewHub(zap.NewNop())
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleUpgrade))
	defer srv.Close()

	conn := dial(t, srv)
	require.Eventually(t, func() bool {
		return hub.ClientCount() == 1
	}, time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool {
		return hub.ClientCount() == 0
	}, time.Second, 10*time.Millisecond)
}

func TestBroadcastWithNoClients(t *testing.T) {
	hub := ws.NewHub(zap.NewNop())
	require.NoError(t, hub.Broadcast(map[string]string{"kind": "exit"}))
}

func TestStalledClientCannotWedgeBroadcast(t *testing.T) {
	hub := ws.NewHub(zap.NewNop()).WithWriteWait(200 * time.Millisecond)
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleUpgrade))
	defer srv.Close()

	// This client never reads. Once the kernel buffers fill, writes to it
	// can only finish by hitting the deadline.
	dial(t, srv)
	require.Eventually(t, func() bool {
		return hub.ClientCount() == 1
	}, time.Second, 10*time.Millisecond)

	payload := map[string]string{"message": strings.Repeat("x", 256<<10)}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 64 && hub.ClientCount() > 0; i++ {
			hub.Broadcast(payload)
		}
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("broadcast wedged on a client that stopped reading")
	}
	require.Zero(t, hub.ClientCount())
}
