package core

// Status is the outcome reported by an answer.
type Status int

const (
	StatusOK Status = iota
	StatusError
)

// Answer is produced by an executor and delivered to the client that issued
// the command. It is owned by exactly one answer sender once popped.
type Answer struct {
	Key    Key
	Conn   Conn
	Kind   CommandKind
	Status Status

	// Detail is the single-line result, e.g. the follower count.
	Detail   string
	Messages []Message // TIMELINE only
	Error    *CoreError

	Seq   uint64
	Order *Order
}

// OK builds a successful answer for cmd.
func OK(cmd *Command, detail string) *Answer {
	return &Answer{Key: cmd.Key, Conn: cmd.Conn, Kind: cmd.Kind, Status: StatusOK, Detail: detail}
}

// Fail builds a negative-status answer for cmd.
func Fail(cmd *Command, err error) *Answer {
	return &Answer{Key: cmd.Key, Conn: cmd.Conn, Kind: cmd.Kind, Status: StatusError, Error: AsCoreError(err)}
}
