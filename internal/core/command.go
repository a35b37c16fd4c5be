package core

import "strings"

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandLogin registers the client under a display name.
	CommandLogin CommandKind = iota
	// CommandPublish stores a message authored by the client.
	CommandPublish
	// CommandFollow subscribes the client to another client's messages.
	CommandFollow
	// CommandTimeline returns recent messages of the client and the clients it follows.
	CommandTimeline
	// CommandFollowCount returns the number of followers of the client.
	CommandFollowCount
	// CommandRDV is a rendezvous: answered once every earlier command of the client ran.
	CommandRDV
	// CommandUnregister removes the client from the registry. Never sent by clients.
	CommandUnregister
)

var commandNames = [...]string{
	CommandLogin:       "LOGIN",
	CommandPublish:     "PUBLISH",
	CommandFollow:      "FOLLOW",
	CommandTimeline:    "TIMELINE",
	CommandFollowCount: "FOLLOW_COUNT",
	CommandRDV:         "RDV",
	CommandUnregister:  "UNREGISTER",
}

func (k CommandKind) String() string {
	if k < 0 || int(k) >= len(commandNames) {
		return "UNKNOWN"
	}
	return commandNames[k]
}

// ParseCommandKind resolves a kind by its name, case-insensitively.
func ParseCommandKind(name string) (CommandKind, bool) {
	upper := strings.ToUpper(name)
	for i, n := range commandNames {
		if n == upper {
			return CommandKind(i), true
		}
	}
	return 0, false
}

// Command represents an action requested by a client.
//
// A command is created by the session that read it and is owned by exactly
// one executor once popped from the command queue.
type Command struct {
	Key            Key
	Kind           CommandKind
	Payload        string
	AnswerExpected bool

	// Conn is the socket the command arrived on. LOGIN binds it to the key.
	Conn Conn

	// Seq and Order keep one client's commands in submission order when
	// several executors drain the queue.
	Seq   uint64
	Order *Order
}
