// Package presence tracks which usernames currently hold a live connection.
package presence

import (
	"errors"
	"sync"
)

// ErrUsernameTaken is returned by Join when another live connection already
// holds the requested username.
var ErrUsernameTaken = errors.New("username taken")

// Registry is the source of truth for who is online. It keeps a bidirectional
// mapping between connection IDs and usernames. At most one connection maps
// to a given username at any instant. State is volatile; connections are
// transient, so presence does not survive a restart.
type Registry struct {
	mu     sync.RWMutex
	byConn map[string]string
	byName map[string]string
	// order preserves join order for user-list rendering.
	order []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byConn: make(map[string]string),
		byName: make(map[string]string),
	}
}

// Join registers a username for a connection. It fails with ErrUsernameTaken
// if any live connection already holds the name.
func (r *Registry) Join(connID, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byName[username]; taken {
		return ErrUsernameTaken
	}

	// A connection that joins twice gives up its previous name first, so the
	// invariant of one name per connection holds.
	if prev, ok := r.byConn[connID]; ok {
		delete(r.byName, prev)
		r.dropFromOrder(prev)
	}

	r.byConn[connID] = username
	r.byName[username] = connID
	r.order = append(r.order, username)
	return nil
}

// Leave removes the mapping for a connection and returns the freed username.
// Leaving an unregistered connection is a no-op and reports false.
func (r *Registry) Leave(connID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	username, ok := r.byConn[connID]
	if !ok {
		return "", false
	}
	delete(r.byConn, connID)
	delete(r.byName, username)
	r.dropFromOrder(username)
	return username, true
}

// ConnByUsername resolves a username to its live connection, if any.
func (r *Registry) ConnByUsername(username string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	connID, ok := r.byName[username]
	return connID, ok
}

// UsernameByConn resolves a connection to its registered username, if any.
func (r *Registry) UsernameByConn(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	username, ok := r.byConn[connID]
	return username, ok
}

// IsOnline reports whether the username currently holds a live connection.
func (r *Registry) IsOnline(username string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byName[username]
	return ok
}

// Usernames returns a snapshot of registered usernames in join order.
func (r *Registry) Usernames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Count returns the number of registered users.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}

func (r *Registry) dropFromOrder(username string) {
	for i, u := range r.order {
		if u == username {
			r.order = append(r.order[:i], r.order[i+1:]...)
			return
		}
	}
}
