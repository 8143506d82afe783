package registry

import "sync"

// Registry maps logical user identities to their live transport connections.
// A user may own several connections at once (multiple tabs or devices). The
// primary index is keyed by connection id so that unregistering on disconnect
// is O(1); the per-user set is kept in sync under the same lock.
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]map[string]struct{}
	byConn map[string]string
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		byUser: make(map[string]map[string]struct{}),
		byConn: make(map[string]string),
	}
}

// Register binds a connection to a user. Idempotent under duplicate
// registration. If the connection was previously bound to another user it is
// rebound, keeping both indexes consistent.
func (r *Registry) Register(userID, connID string) {
	if userID == "" || connID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.byConn[connID]; ok && prev != userID {
		r.dropLocked(prev, connID)
	}
	r.byConn[connID] = userID
	if _, ok := r.byUser[userID]; !ok {
		r.byUser[userID] = make(map[string]struct{})
	}
	r.byUser[userID][connID] = struct{}{}
}

// Unregister removes a connection from whichever user owns it. Unknown ids
// are a no-op; disconnect events may race or arrive twice.
func (r *Registry) Unregister(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.byConn[connID]
	if !ok {
		return
	}
	delete(r.byConn, connID)
	r.dropLocked(userID, connID)
}

func (r *Registry) dropLocked(userID, connID string) {
	if conns, ok := r.byUser[userID]; ok {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(r.byUser, userID)
		}
	}
}

// ConnectionsFor returns the live connection ids for a user, empty when the
// user has none. Never an error: an offline user simply has no connections.
func (r *Registry) ConnectionsFor(userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := r.byUser[userID]
	out := make([]string, 0, len(conns))
	for connID := range conns {
		out = append(out, connID)
	}
	return out
}

// UserFor resolves the owner of a connection.
func (r *Registry) UserFor(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	userID, ok := r.byConn[connID]
	return userID, ok
}

// OnlineCount reports how many distinct users have at least one connection.
func (r *Registry) OnlineCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}
