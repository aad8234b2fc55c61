package presence

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dialWatcher connects a real websocket pair through an httptest server
// and registers the server side with the hub.
func dialWatcher(t *testing.T, hub *Hub, watcherID int64) *websocket.Conn {
	t.Helper()

	up := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		require.NoError(t, err)
		hub.Register(watcherID, conn)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return client
}

func TestHub_BroadcastsToAllWatchers(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	first := dialWatcher(t, hub, 1)
	second := dialWatcher(t, hub, 2)
	require.Equal(t, 2, hub.WatcherCount())

	hub.SessionEvent(42, "force_login")

	for _, client := range []*websocket.Conn{first, second} {
		_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
		var ev Event
		require.NoError(t, client.ReadJSON(&ev))
		assert.Equal(t, "force_login", ev.Type)
		assert.Equal(t, int64(42), ev.AccountID)
		assert.WithinDuration(t, time.Now(), ev.At, 5*time.Second)
	}
}

func TestHub_ReconnectReplacesConnection(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	dialWatcher(t, hub, 1)
	require.Equal(t, 1, hub.WatcherCount())

	replacement := dialWatcher(t, hub, 1)
	assert.Equal(t, 1, hub.WatcherCount())

	hub.SessionEvent(7, "logout")

	_ = replacement.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev Event
	require.NoError(t, replacement.ReadJSON(&ev))
	assert.Equal(t, "logout", ev.Type)
}

func TestHub_ConcurrentBroadcastsSerializeWrites(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	client := dialWatcher(t, hub, 1)

	// Parallel logins all broadcast to the same connection while the
	// keep-alive ping writes to it too. Every frame must arrive intact.
	const events = 32
	var wg sync.WaitGroup
	for i := 0; i < events; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hub.SessionEvent(42, "login")
			_ = hub.Ping(1)
		}()
	}
	wg.Wait()

	for i := 0; i < events; i++ {
		_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
		var ev Event
		require.NoError(t, client.ReadJSON(&ev))
		assert.Equal(t, "login", ev.Type)
		assert.Equal(t, int64(42), ev.AccountID)
	}

	require.Equal(t, 1, hub.WatcherCount())
}

func TestHub_PingUnknownWatcher(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	assert.Error(t, hub.Ping(99))
}

func TestHub_UnregisterIsIdempotent(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	dialWatcher(t, hub, 1)
	hub.Unregister(1)
	hub.Unregister(1)

	assert.Equal(t, 0, hub.WatcherCount())

	// Broadcasting with nobody listening is a no-op.
	hub.SessionEvent(42, "login")
}
