package core

import "time"

// Message is the domain model for a published message.
type Message struct {
	ID        int64
	Author    string
	Text      string
	CreatedAt time.Time
}
