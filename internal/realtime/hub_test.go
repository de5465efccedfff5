package realtime

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func startHub(t *testing.T) (*Hub, string) {
	t.Helper()
	hub := NewHub([]string{"*"}, zap.NewNop())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, "admin-1")
	}))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var env map[string]any
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

func TestHub_BroadcastReachesConnectedClient(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, url)
	require.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, hub.Broadcast("admin.notifications", map[string]string{"id": "01HX"}))

	env := readEnvelope(t, conn)
	assert.Equal(t, "admin.notifications", env["topic"])
	assert.Equal(t, map[string]any{"id": "01HX"}, env["data"])
}

func TestHub_TopicFilter(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, url+"?topics=admin.notifications")
	require.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, hub.Broadcast("other.topic", "skip"))
	require.NoError(t, hub.Broadcast("admin.notifications", "keep"))

	env := readEnvelope(t, conn)
	assert.Equal(t, "keep", env["data"])
}

func TestHub_NoClientsIsNotAnError(t *testing.T) {
	hub := NewHub(nil, zap.NewNop())
	assert.NoError(t, hub.Broadcast("admin.notifications", "nobody"))
}

func TestHub_SlowClientDoesNotBlock(t *testing.T) {
	hub := NewHub(nil, zap.NewNop())
	c := &client{principal: "slow", topics: map[string]struct{}{}, send: make(chan []byte, 1)}
	require.True(t, hub.register(c))

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			_ = hub.Broadcast("admin.notifications", i)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a slow client")
	}
	assert.Len(t, c.send, 1)
}

func TestHub_DisconnectUnregisters(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, url)
	require.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, 5*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_ClosedRejectsBroadcast(t *testing.T) {
	hub := NewHub(nil, zap.NewNop())
	hub.Close()
	assert.ErrorIs(t, hub.Broadcast("admin.notifications", "x"), ErrHubClosed)
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://dash.agency.test"})
	ok := httptest.NewRequest(http.MethodGet, "/ws", nil)
	ok.Header.Set("Origin", "https://dash.agency.test")
	bad := httptest.NewRequest(http.MethodGet, "/ws", nil)
	bad.Header.Set("Origin", "https://evil.test")

	assert.True(t, check(ok))
	assert.False(t, check(bad))
}
