package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/decisions/internal/analysis"
	"github.com/ashureev/decisions/internal/connectivity"
	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T, ctx context.Context, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.CloseNow() })
	return conn
}

func readEvent(t *testing.T, ctx context.Context, conn *websocket.Conn) Event {
	t.Helper()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var ev Event
	require.NoError(t, json.Unmarshal(data, &ev))
	return ev
}

func TestHub_SnapshotThenBroadcast(t *testing.T) {
	hub := NewHub([]string{"*"}, false, nil)
	hub.Snapshot = func() []Event {
		return []Event{ConnectivityEvent(connectivity.Status{Online: true, Healthy: true, Available: true})}
	}
	srv := httptest.NewServer(hub)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn := dial(t, ctx, srv)

	ev := readEvent(t, ctx, conn)
	assert.Equal(t, EventConnectivity, ev.Type)
	require.NotNil(t, ev.Connectivity)
	assert.True(t, ev.Connectivity.Available)

	require.Eventually(t, func() bool { return hub.Count() == 1 }, 5*time.Second, time.Millisecond)

	hub.Broadcast(AnalysisEvent(analysis.State{RunID: "r1", Phase: analysis.PhasePolling, Polls: 4}))
	ev = readEvent(t, ctx, conn)
	assert.Equal(t, EventAnalysis, ev.Type)
	require.NotNil(t, ev.Analysis)
	assert.Equal(t, "r1", ev.Analysis.RunID)
	assert.Equal(t, 4, ev.Analysis.Polls)
}

func TestHub_PingPong(t *testing.T) {
	hub := NewHub([]string{"*"}, false, nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn := dial(t, ctx, srv)

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(`{"type":"ping"}`)))
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"pong"}`, string(data))
}

func TestHub_UnregistersOnClose(t *testing.T) {
	hub := NewHub([]string{"*"}, false, nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn := dial(t, ctx, srv)
	require.Eventually(t, func() bool { return hub.Count() == 1 }, 5*time.Second, time.Millisecond)

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, "bye"))
	require.Eventually(t, func() bool { return hub.Count() == 0 }, 5*time.Second, time.Millisecond)
}

func TestHub_RejectsForeignOrigin(t *testing.T) {
	hub := NewHub([]string{"http://localhost:5174"}, false, nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://evil.example")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestHub_BroadcastWithoutClients(t *testing.T) {
	hub := NewHub(nil, true, nil)
	hub.Broadcast(ConnectivityEvent(connectivity.Status{}))
	hub.CloseAll()
	assert.Zero(t, hub.Count())
}

// An edge published while the snapshot is being taken reaches the view
// after the snapshot, never before it and never not at all.
func TestHub_EdgeDuringSnapshotIsDelivered(t *testing.T) {
	hub := NewHub([]string{"*"}, false, nil)
	var once sync.Once
	hub.Snapshot = func() []Event {
		once.Do(func() {
			go hub.Broadcast(ConnectivityEvent(connectivity.Status{Online: false}))
		})
		return []Event{ConnectivityEvent(connectivity.Status{Online: true, Healthy: true, Available: true})}
	}
	srv := httptest.NewServer(hub)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn := dial(t, ctx, srv)

	first := readEvent(t, ctx, conn)
	require.NotNil(t, first.Connectivity)
	assert.True(t, first.Connectivity.Online, "snapshot comes first")

	second := readEvent(t, ctx, conn)
	require.NotNil(t, second.Connectivity)
	assert.False(t, second.Connectivity.Online, "edge follows the snapshot")
}
