package session

import "sync"

// Identity maps a connection ID to the display name supplied on join.
// Names are never checked for uniqueness; collisions are the client's problem.
type Identity struct {
	mu    sync.RWMutex
	names map[string]string
}

func NewIdentity() *Identity { return &Identity{names: map[string]string{}} }

// Set records the display name for a connection
func (m *Identity) Set(connID, username string) {
	m.mu.Lock()
	m.names[connID] = username
	m.mu.Unlock()
}

// Get returns the display name, if one was recorded
func (m *Identity) Get(connID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	name, ok := m.names[connID]
	return name, ok
}

// Remove forgets the connection; safe to call twice
func (m *Identity) Remove(connID string) {
	m.mu.Lock()
	delete(m.names, connID)
	m.mu.Unlock()
}
