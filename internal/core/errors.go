package core

import "errors"

// Error codes reported to clients.
const (
	ErrCodeBadRequest        = "bad_request"
	ErrCodeUnknownCommand    = "unknown_command"
	ErrCodeUnknownUser       = "unknown_user"
	ErrCodeAlreadyRegistered = "already_registered"
	ErrCodeRegistryFull      = "registry_full"
	ErrCodeNotLoggedIn       = "not_logged_in"
	ErrCodeInternal          = "internal"
)

var (
	ErrAlreadyRegistered = errors.New("client already registered")
	// ErrKeyCollision marks two different names hashing to the same key.
	ErrKeyCollision = errors.New("client key collision")
	ErrRegistryFull      = errors.New("max number of clients reached")
	ErrNotFound          = errors.New("client not found")
	ErrQueueClosed       = errors.New("queue closed")
	// ErrMessageTooLong is reported by a Conn for a message above its size
	// limit. The connection remains usable.
	ErrMessageTooLong = errors.New("message too long")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

// NewError builds a client-visible error.
func NewError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}

// AsCoreError maps any error to the client-visible form. Registry sentinels
// keep their own codes, anything unrecognised becomes an internal error.
func AsCoreError(err error) *CoreError {
	var ce *CoreError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &ce):
		return ce
	case errors.Is(err, ErrAlreadyRegistered):
		return NewError(ErrCodeAlreadyRegistered, err.Error())
	case errors.Is(err, ErrRegistryFull):
		return NewError(ErrCodeRegistryFull, err.Error())
	case errors.Is(err, ErrNotFound):
		return NewError(ErrCodeNotLoggedIn, err.Error())
	default:
		return NewError(ErrCodeInternal, err.Error())
	}
}
