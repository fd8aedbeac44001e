package websocket

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockClient is a test double for Client that captures sent messages
type mockClient struct {
	id       string
	userID   uuid.UUID
	messages [][]byte
	mu       sync.Mutex
	closed   bool
}

func newMockClient(id string, userID uuid.UUID) *mockClient {
	return &mockClient{id: id, userID: userID}
}

func (m *mockClient) ID() string {
	return m.id
}

func (m *mockClient) UserID() uuid.UUID {
	return m.userID
}

func (m *mockClient) Send(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClientClosed
	}
	m.messages = append(m.messages, data)
	return nil
}

func (m *mockClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockClient) GetMessages() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := make([][]byte, len(m.messages))
	copy(copied, m.messages)
	return copied
}

func waitForMessages(t *testing.T, c *mockClient, n int) {
	t.Helper()
	assert.Eventually(t, func() bool { return len(c.GetMessages()) == n }, time.Second, 5*time.Millisecond)
}

func TestHub_RegisterUnregister(t *testing.T) {
	hub := NewHub()
	alice, bob := uuid.New(), uuid.New()

	client1 := newMockClient("client-1", alice)
	client2 := newMockClient("client-2", alice)
	client3 := newMockClient("client-3", bob)

	hub.Register(client1)
	hub.Register(client2)
	hub.Register(client3)

	assert.Equal(t, 2, hub.ClientCount(alice))
	assert.Equal(t, 1, hub.ClientCount(bob))
	assert.Equal(t, 0, hub.ClientCount(uuid.New()))
	assert.Equal(t, 3, hub.TotalClientCount())

	hub.Unregister(client1)
	assert.Equal(t, 1, hub.ClientCount(alice))

	hub.Unregister(client2)
	hub.Unregister(client3)
	assert.Equal(t, 0, hub.TotalClientCount())
}

func TestHub_Broadcast_UserIsolation(t *testing.T) {
	hub := NewHub()
	alice, bob := uuid.New(), uuid.New()

	aliceLaptop := newMockClient("alice-laptop", alice)
	alicePhone := newMockClient("alice-phone", alice)
	bobClient := newMockClient("bob", bob)
	hub.Register(aliceLaptop)
	hub.Register(alicePhone)
	hub.Register(bobClient)

	hub.Broadcast(alice, TransactionCreated(map[string]interface{}{"id": "42"}))

	waitForMessages(t, aliceLaptop, 1)
	waitForMessages(t, alicePhone, 1)
	assert.Empty(t, bobClient.GetMessages(), "other users must not receive the event")
}

func TestHub_ConcurrentAccess(t *testing.T) {
	hub := NewHub()
	users := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}

	var wg sync.WaitGroup
	clients := make([]*mockClient, 30)
	for i := range clients {
		clients[i] = newMockClient(fmt.Sprintf("client-%d", i), users[i%len(users)])
	}

	for _, c := range clients {
		wg.Add(1)
		go func(c *mockClient) {
			defer wg.Done()
			hub.Register(c)
		}(c)
	}
	wg.Wait()
	assert.Equal(t, len(clients), hub.TotalClientCount())

	for i, c := range clients {
		wg.Add(2)
		go func(idx int) {
			defer wg.Done()
			hub.Broadcast(users[idx%len(users)], TransactionUpdated(map[string]interface{}{"n": idx}))
		}(i)
		go func(c *mockClient) {
			defer wg.Done()
			hub.Unregister(c)
		}(c)
	}
	wg.Wait()

	assert.Equal(t, 0, hub.TotalClientCount())
}

func TestHub_UnregisterNonexistent(t *testing.T) {
	hub := NewHub()
	require.NotPanics(t, func() {
		hub.Unregister(newMockClient("client-1", uuid.New()))
	})
}

func TestHub_BroadcastWithoutClients(t *testing.T) {
	hub := NewHub()
	require.NotPanics(t, func() {
		hub.Broadcast(uuid.New(), TransactionCreated(nil))
	})
}
