// Package presence tracks which users have a live socket connection.
// The registry is the single owner of the user-to-connection mapping and is
// safe for concurrent use; it lives in one process by design, so multi
// instance deployments need an external fan-out.
package presence

import (
	"sort"
	"sync"
)

// Registry maps each online user to its single live connection. A second
// device connecting for the same user silently overwrites the mapping; the
// prior connection is not force-closed.
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]string // userID -> connID
	byConn map[string]string // connID -> userID, captured at connect time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byUser: make(map[string]string),
		byConn: make(map[string]string),
	}
}

// Connect records connID as the live connection for userID, overwriting any
// previous one, and returns the new online snapshot.
func (r *Registry) Connect(userID, connID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.byUser[userID]; ok {
		delete(r.byConn, old)
	}
	r.byUser[userID] = connID
	r.byConn[connID] = userID
	return r.onlineLocked()
}

// Disconnect removes the mapping owned by connID. The forward entry is
// deleted only if it still points at connID: a late disconnect from an
// already-overwritten connection must never evict the newer one. Returns
// whether the online set changed, plus the current snapshot.
func (r *Registry) Disconnect(connID string) (bool, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.byConn[connID]
	if !ok {
		return false, r.onlineLocked()
	}
	delete(r.byConn, connID)

	if r.byUser[userID] != connID {
		return false, r.onlineLocked()
	}
	delete(r.byUser, userID)
	return true, r.onlineLocked()
}

// Resolve returns the live connection for userID, if any. Every push through
// the channel targets connections via Resolve, read fresh at push time.
func (r *Registry) Resolve(userID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	connID, ok := r.byUser[userID]
	return connID, ok
}

// Online returns the sorted set of online user ids.
func (r *Registry) Online() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.onlineLocked()
}

func (r *Registry) onlineLocked() []string {
	users := make([]string, 0, len(r.byUser))
	for u := range r.byUser {
		users = append(users, u)
	}
	sort.Strings(users)
	return users
}
