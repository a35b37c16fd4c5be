package store

import (
	"context"
	"errors"
	"time"
)

// ErrUserNotFound is returned when no user is recorded under a key.
var ErrUserNotFound = errors.New("user not found")

// User is a client that logged in at least once.
type User struct {
	Key       uint64
	Name      string
	CreatedAt time.Time
}

// Message represents a published message.
type Message struct {
	ID        int64
	AuthorKey uint64
	Author    string
	Body      string
	CreatedAt time.Time
}

// UserStore handles user records.
type UserStore interface {
	// SaveUser records a user, keeping the original creation time if it exists.
	SaveUser(ctx context.Context, key uint64, name string) (*User, error)

	// GetUser retrieves a user by key.
	GetUser(ctx context.Context, key uint64) (*User, error)
}

// MessageStore handles published messages.
type MessageStore interface {
	// SaveMessage stores msg and sets its ID.
	SaveMessage(ctx context.Context, msg *Message) error

	// ListTimeline returns the newest limit messages written by any of the
	// authors, oldest first.
	ListTimeline(ctx context.Context, authors []uint64, limit int) ([]*Message, error)
}

// FollowStore handles the follower graph.
type FollowStore interface {
	// Follow records that follower follows followee. It reports false if the
	// edge already existed.
	Follow(ctx context.Context, follower, followee uint64) (bool, error)

	// ListFollowing returns the keys followed by key.
	ListFollowing(ctx context.Context, key uint64) ([]uint64, error)

	// CountFollowers returns how many users follow key.
	CountFollowers(ctx context.Context, key uint64) (int, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	MessageStore
	FollowStore

	// Close releases the underlying resources.
	Close() error
}
