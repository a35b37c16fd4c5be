package core

import (
	"hash/fnv"
	"strconv"
)

// Key is the numeric identifier of a logged-in client.
type Key uint64

func (k Key) String() string {
	return strconv.FormatUint(uint64(k), 10)
}

// KeyFor derives the key of a client from its display name with 64-bit
// FNV-1a. Distinct names may collide; the registry then refuses the second
// one with ErrKeyCollision.
func KeyFor(name string) Key {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return Key(h.Sum64())
}

// Conn is one client socket as seen by the core: one read or write moves one
// logical message.
type Conn interface {
	// ReadMessage blocks until a full message arrives. It returns io.EOF once
	// the peer closed the stream.
	ReadMessage() ([]byte, error)
	WriteMessage(msg []byte) error
	Close() error
	RemoteAddr() string
}

// ClientBundle is the registry record of a logged-in client.
type ClientBundle struct {
	Key  Key
	Name string
	Conn Conn
}
