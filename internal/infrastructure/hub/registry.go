package hub

import "sync"

// Registry is the set of currently registered connections, keyed by ID.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]Connection
}

func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]Connection),
	}
}

// Add registers conn and reports whether it was not present before
func (r *Registry) Add(conn Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.conns[conn.ID()]; exists {
		return false
	}
	r.conns[conn.ID()] = conn
	return true
}

// Remove deletes the connection with the given ID. Removing an absent ID is a no-op.
func (r *Registry) Remove(connID string) (Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, exists := r.conns[connID]
	if exists {
		delete(r.conns, connID)
	}
	return conn, exists
}

func (r *Registry) Get(connID string) (Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, exists := r.conns[connID]
	return conn, exists
}

// Snapshot returns the registered connections at the time of the call
func (r *Registry) Snapshot() []Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	connections := make([]Connection, 0, len(r.conns))
	for _, conn := range r.conns {
		connections = append(connections, conn)
	}
	return connections
}

func (r *Registry) SnapshotByType(connType string) []Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var connections []Connection
	for _, conn := range r.conns {
		if conn.Type() == connType {
			connections = append(connections, conn)
		}
	}
	return connections
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Drain empties the registry and returns what it held
func (r *Registry) Drain() []Connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	connections := make([]Connection, 0, len(r.conns))
	for _, conn := range r.conns {
		connections = append(connections, conn)
	}
	r.conns = make(map[string]Connection)
	return connections
}
