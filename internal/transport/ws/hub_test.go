package ws

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

func dialTestClient(t *testing.T, h *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(h.HandleLive))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	// registration happens on the server side of the upgrade
	require.Eventually(t, func() bool {
		return clientCount(h) == 1
	}, 2*time.Second, 10*time.Millisecond)
	return conn
}

func clientCount(h *Hub) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func TestBroadcastDeliversToClient(t *testing.T) {
	h := NewHub()
	conn := dialTestClient(t, h)

	h.Broadcast([]byte(`{"vehicle_id":"v1"}`))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, `{"vehicle_id":"v1"}`, string(msg))
}

// Vehicles broadcast concurrently from the engine's worker pool; every frame
// must arrive intact with no interleaved writes on the shared connection.
func TestBroadcastSafeUnderConcurrentWriters(t *testing.T) {
	h := NewHub()
	conn := dialTestClient(t, h)

	const writers = 8
	const perWriter = 50
	payload := `{"vehicle_id":"v1","speed_kmh":42}`

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWriter; j++ {
				h.Broadcast([]byte(payload))
			}
		}()
	}
	wg.Wait()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for i := 0; i < writers*perWriter; i++ {
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err, "frame %d", i)
		require.Equal(t, payload, string(msg), "frame %d", i)
	}
}

func TestBroadcastDropsClosedClient(t *testing.T) {
	h := NewHub()
	conn := dialTestClient(t, h)
	conn.Close()

	// the write eventually fails against the closed peer and the hub
	// forgets the connection
	assert.Eventually(t, func() bool {
		h.Broadcast([]byte(`{}`))
		return clientCount(h) == 0
	}, 5*time.Second, 50*time.Millisecond)
}
