package core

import (
	"fmt"
	"sync"
)

// Registry maps client keys to their bundles. It never holds more than its
// capacity; order of entries is not meaningful.
type Registry struct {
	mu      sync.RWMutex
	clients []*ClientBundle
	index   map[Key]int
}

// NewRegistry creates an empty registry that accepts at most capacity clients.
func NewRegistry(capacity int) *Registry {
	r := &Registry{}
	r.init(capacity)
	return r
}

func (r *Registry) init(capacity int) {
	r.clients = make([]*ClientBundle, 0, capacity)
	r.index = make(map[Key]int, capacity)
}

// Reset drops every entry.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.init(cap(r.clients))
}

// Lookup returns the bundle registered under key.
func (r *Registry) Lookup(key Key) (*ClientBundle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.index[key]
	if !ok {
		return nil, false
	}
	return r.clients[i], true
}

// Insert adds a bundle. It fails with ErrAlreadyRegistered when the key is
// taken and with ErrRegistryFull when the registry is at capacity; in both
// cases the registry is left untouched. A key held under a different name
// also matches ErrKeyCollision.
func (r *Registry) Insert(b *ClientBundle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if i, exists := r.index[b.Key]; exists {
		if holder := r.clients[i].Name; holder != b.Name {
			return fmt.Errorf("insert %q: key %s is held by %q: %w: %w", b.Name, b.Key, holder, ErrKeyCollision, ErrAlreadyRegistered)
		}
		return fmt.Errorf("insert %q (key %s): %w", b.Name, b.Key, ErrAlreadyRegistered)
	}
	if len(r.clients) == cap(r.clients) {
		return fmt.Errorf("insert %q: %w", b.Name, ErrRegistryFull)
	}

	r.index[b.Key] = len(r.clients)
	r.clients = append(r.clients, b)
	return nil
}

// Remove deletes and returns the bundle registered under key. The last entry
// takes the freed slot.
func (r *Registry) Remove(key Key) (*ClientBundle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.index[key]
	if !ok {
		return nil, fmt.Errorf("remove key %s: %w", key, ErrNotFound)
	}
	removed := r.clients[i]

	last := len(r.clients) - 1
	if i != last {
		r.clients[i] = r.clients[last]
		r.index[r.clients[i].Key] = i
	}
	r.clients[last] = nil
	r.clients = r.clients[:last]
	delete(r.index, key)

	return removed, nil
}

// Len reports the number of registered clients.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Cap reports the maximum number of clients.
func (r *Registry) Cap() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cap(r.clients)
}

// Snapshot returns a copy of the registered bundles.
func (r *Registry) Snapshot() []ClientBundle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ClientBundle, 0, len(r.clients))
	for _, b := range r.clients {
		out = append(out, *b)
	}
	return out
}
