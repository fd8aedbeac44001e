package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serveClients upgrades every request into a Client for userID. Clients are
// handed to the test through the returned channel; they are not started.
func serveClients(t *testing.T, hub *Hub, userID uuid.UUID) (string, <-chan *Client) {
	t.Helper()
	clients := make(chan *Client, 1)
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		clients <- NewClient(conn, userID, hub)
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http"), clients
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestClient_DeliversOnlyOwnUsersEvents(t *testing.T) {
	hub := NewHub()
	userID := uuid.New()
	url, clients := serveClients(t, hub, userID)

	browser := dial(t, url)
	client := <-clients
	hub.Register(client)
	go client.Run()

	hub.Broadcast(uuid.New(), CategoryCreated(map[string]string{"name": "someone else"}))
	hub.Broadcast(userID, SeriesModified(map[string]string{"mode": "future"}))

	browser.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := browser.ReadMessage()
	require.NoError(t, err)

	var event Event
	require.NoError(t, json.Unmarshal(data, &event))
	assert.Equal(t, "series.modified", event.Type)
	assert.Equal(t, EntityTypeSeries, event.Entity)
}

func TestClient_UnregistersWhenBrowserLeaves(t *testing.T) {
	hub := NewHub()
	userID := uuid.New()
	url, clients := serveClients(t, hub, userID)

	browser := dial(t, url)
	client := <-clients
	hub.Register(client)
	go client.Run()
	require.Equal(t, 1, hub.ClientCount(userID))

	browser.Close()

	assert.Eventually(t, func() bool { return hub.ClientCount(userID) == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.ErrorIs(t, client.Send([]byte("{}")), ErrClientClosed)
}

func TestClient_LaggingClientIsDisconnected(t *testing.T) {
	hub := NewHub()
	url, clients := serveClients(t, hub, uuid.New())

	dial(t, url)
	client := <-clients

	// nothing drains the queue
	for i := 0; i < sendBufferSize; i++ {
		require.NoError(t, client.Send([]byte("{}")))
	}
	assert.ErrorIs(t, client.Send([]byte("{}")), ErrClientLagging)

	assert.Eventually(t, func() bool {
		return client.Send([]byte("{}")) == ErrClientClosed
	}, 2*time.Second, 10*time.Millisecond)
}

func TestClient_CloseIsIdempotent(t *testing.T) {
	url, clients := serveClients(t, NewHub(), uuid.New())
	dial(t, url)
	client := <-clients

	require.NoError(t, client.Close())
	assert.NoError(t, client.Close())
}
