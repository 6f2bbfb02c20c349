package app

import (
	"fmt"
	"sync"
	"time"

	"github.com/fourquadrant/focusbridge/internal/platform/id"
)

// connClient is one registered live connection.
type connClient struct {
	id        string
	peer      *wsPeer
	createdAt time.Time
	lastSeen  time.Time
	inFlight  bool
	closer    func() error
}

// connManager owns the live-connection registry. All mutations go through
// its mutex; the sweeper and the per-connection loops share it.
type connManager struct {
	mu         sync.Mutex
	clients    map[string]*connClient
	maxClients int
	now        func() time.Time
}

func newConnManager(maxClients int) *connManager {
	return &connManager{
		clients:    make(map[string]*connClient),
		maxClients: maxClients,
		now:        time.Now,
	}
}

// register admits a new connection, enforcing the connection cap.
func (m *connManager) register(peer *wsPeer, closer func() error) (*connClient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.maxClients > 0 && len(m.clients) >= m.maxClients {
		return nil, fmt.Errorf("connection limit reached (%d)", m.maxClients)
	}
	clientID, err := id.NewID()
	if err != nil {
		return nil, fmt.Errorf("generate client id: %w", err)
	}

	now := m.now()
	client := &connClient{
		id:        clientID,
		peer:      peer,
		createdAt: now,
		lastSeen:  now,
		closer:    closer,
	}
	m.clients[clientID] = client
	return client, nil
}

// remove drops a connection from the registry.
func (m *connManager) remove(clientID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.clients, clientID)
}

// touch records inbound activity on a connection.
func (m *connManager) touch(clientID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if client, ok := m.clients[clientID]; ok {
		client.lastSeen = m.now()
	}
}

// count returns the number of registered connections.
func (m *connManager) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.clients)
}

// beginProcessing marks a connection busy. It reports false when a chat
// message is already in flight for the connection.
func (m *connManager) beginProcessing(clientID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	client, ok := m.clients[clientID]
	if !ok || client.inFlight {
		return false
	}
	client.inFlight = true
	return true
}

// endProcessing clears the busy mark.
func (m *connManager) endProcessing(clientID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if client, ok := m.clients[clientID]; ok {
		client.inFlight = false
	}
}

// sweep removes and closes connections idle past the timeout. It returns
// the ids it dropped.
func (m *connManager) sweep(timeout time.Duration) []string {
	m.mu.Lock()
	cutoff := m.now().Add(-timeout)
	var stale []*connClient
	for clientID, client := range m.clients {
		if client.lastSeen.Before(cutoff) {
			stale = append(stale, client)
			delete(m.clients, clientID)
		}
	}
	m.mu.Unlock()

	dropped := make([]string, 0, len(stale))
	for _, client := range stale {
		if client.closer != nil {
			_ = client.closer()
		}
		dropped = append(dropped, client.id)
	}
	return dropped
}
