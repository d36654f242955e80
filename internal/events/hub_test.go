package events

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spotlaunch/launcherd/internal/logging"
)

func newTestServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/stream", hub.HandleConnection)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestBroadcastReachesClient(t *testing.T) {
	hub := NewHub(logging.NewNop())
	defer hub.Close()
	srv := newTestServer(t, hub)

	conn := dial(t, srv)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 },
		time.Second, 5*time.Millisecond)

	hub.Broadcast("view.closed", map[string]any{"pluginId": "notes"})

	conn.SetReadDeadline(time.Now().Add(time.Second))
	var ev Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "view.closed", ev.Type)
}

func TestBroadcastWithNoClients(t *testing.T) {
	hub := NewHub(logging.NewNop())
	defer hub.Close()

	// Must not block or panic.
	hub.Broadcast("view.opened", nil)
	assert.Zero(t, hub.ClientCount())
}

func TestClientDisconnectIsObserved(t *testing.T) {
	hub := NewHub(logging.NewNop())
	defer hub.Close()
	srv := newTestServer(t, hub)

	conn := dial(t, srv)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 },
		time.Second, 5*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 },
		time.Second, 5*time.Millisecond)
}

func TestConnectionGaugeTracksClients(t *testing.T) {
	hub := NewHub(logging.NewNop())
	defer hub.Close()
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_ws_connections"})
	hub.TrackConnections(gauge)
	srv := newTestServer(t, hub)

	conn := dial(t, srv)
	require.Eventually(t, func() bool { return testutil.ToFloat64(gauge) == 1 },
		time.Second, 5*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return testutil.ToFloat64(gauge) == 0 },
		time.Second, 5*time.Millisecond)
}

func TestCloseDisconnectsClients(t *testing.T) {
	hub := NewHub(logging.NewNop())
	srv := newTestServer(t, hub)
	dial(t, srv)

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 },
		time.Second, 5*time.Millisecond)

	hub.Close()
	assert.Zero(t, hub.ClientCount())
}
