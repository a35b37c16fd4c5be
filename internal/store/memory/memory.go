package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vovakirdan/babble-server/internal/store"
)

// MemoryStore implements store.Store with maps guarded by a RWMutex.
type MemoryStore struct {
	mu        sync.RWMutex
	users     map[uint64]*store.User
	messages  []*store.Message
	following map[uint64]map[uint64]struct{}
	followers map[uint64]map[uint64]struct{}
	lastID    int64
}

// New creates an empty in-memory store.
func New() *MemoryStore {
	return &MemoryStore{
		users:     make(map[uint64]*store.User),
		following: make(map[uint64]map[uint64]struct{}),
		followers: make(map[uint64]map[uint64]struct{}),
	}
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}

// SaveUser records a user.
func (s *MemoryStore) SaveUser(_ context.Context, key uint64, name string) (*store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[key]
	if !ok {
		u = &store.User{Key: key, CreatedAt: time.Now()}
		s.users[key] = u
	}
	u.Name = name

	out := *u
	return &out, nil
}

// GetUser retrieves a user by key.
func (s *MemoryStore) GetUser(_ context.Context, key uint64) (*store.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[key]
	if !ok {
		return nil, fmt.Errorf("get user %d: %w", key, store.ErrUserNotFound)
	}
	out := *u
	return &out, nil
}

// SaveMessage stores msg and sets its ID.
func (s *MemoryStore) SaveMessage(_ context.Context, msg *store.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastID++
	msg.ID = s.lastID
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	stored := *msg
	s.messages = append(s.messages, &stored)
	return nil
}

// ListTimeline returns the newest limit messages of the given authors, oldest first.
func (s *MemoryStore) ListTimeline(_ context.Context, authors []uint64, limit int) ([]*store.Message, error) {
	if limit <= 0 || len(authors) == 0 {
		return nil, nil
	}
	wanted := make(map[uint64]struct{}, len(authors))
	for _, a := range authors {
		wanted[a] = struct{}{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*store.Message
	for i := len(s.messages) - 1; i >= 0 && len(out) < limit; i-- {
		m := s.messages[i]
		if _, ok := wanted[m.AuthorKey]; !ok {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}

	// Reverse to get chronological order
	for i := range len(out) / 2 {
		out[i], out[len(out)-1-i] = out[len(out)-1-i], out[i]
	}
	return out, nil
}

// Follow records a follower edge.
func (s *MemoryStore) Follow(_ context.Context, follower, followee uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.following[follower][followee]; ok {
		return false, nil
	}
	if s.following[follower] == nil {
		s.following[follower] = make(map[uint64]struct{})
	}
	if s.followers[followee] == nil {
		s.followers[followee] = make(map[uint64]struct{})
	}
	s.following[follower][followee] = struct{}{}
	s.followers[followee][follower] = struct{}{}
	return true, nil
}

// ListFollowing returns the keys followed by key.
func (s *MemoryStore) ListFollowing(_ context.Context, key uint64) ([]uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]uint64, 0, len(s.following[key]))
	for k := range s.following[key] {
		out = append(out, k)
	}
	return out, nil
}

// CountFollowers returns how many users follow key.
func (s *MemoryStore) CountFollowers(_ context.Context, key uint64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.followers[key]), nil
}
