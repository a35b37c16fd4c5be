package proto

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/vovakirdan/babble-server/internal/core"
)

const (
	// IDSize is the longest accepted client name, in bytes.
	IDSize = 16
	// MessageSize is the longest accepted PUBLISH body, in bytes.
	MessageSize = 64

	// silentSuffix after a numeric kind marks a command that expects no answer.
	silentSuffix = "S"
)

var (
	ErrEmpty          = errors.New("empty message")
	ErrUnknownCommand = errors.New("unknown command")
	ErrBadPayload     = errors.New("invalid payload")
)

// ParseError describes a message that could not be turned into a command.
type ParseError struct {
	Raw  string
	Kind string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("parse %q: %v", e.Raw, e.Err)
	}
	return fmt.Sprintf("parse %s %q: %v", e.Kind, e.Raw, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// CoreError converts the parse failure into a client-visible error.
func (e *ParseError) CoreError() *core.CoreError {
	code := core.ErrCodeBadRequest
	if errors.Is(e.Err, ErrUnknownCommand) {
		code = core.ErrCodeUnknownCommand
	}
	return core.NewError(code, e.Error())
}

// Parse turns one client message into a command issued by key.
//
// The first token names the command, either by name (PUBLISH) or by numeric
// id (1). A numeric id may carry an S suffix (1S) to mark the command silent.
func Parse(raw []byte, key core.Key) (*core.Command, error) {
	line := strings.TrimRightFunc(string(raw), unicode.IsSpace)
	line = strings.TrimLeftFunc(line, unicode.IsSpace)
	if line == "" {
		return nil, &ParseError{Raw: line, Err: ErrEmpty}
	}

	token, payload, _ := strings.Cut(line, " ")
	payload = strings.TrimSpace(payload)

	kind, answerExpected, ok := parseKind(token)
	if !ok {
		return nil, &ParseError{Raw: line, Err: ErrUnknownCommand}
	}

	cmd := &core.Command{
		Key:            key,
		Kind:           kind,
		AnswerExpected: answerExpected,
	}

	switch kind {
	case core.CommandLogin, core.CommandFollow:
		if err := validateID(payload); err != nil {
			return nil, &ParseError{Raw: line, Kind: kind.String(), Err: err}
		}
		cmd.Payload = payload
	case core.CommandPublish:
		if strings.ContainsAny(payload, "\r\n") {
			return nil, &ParseError{Raw: line, Kind: kind.String(),
				Err: fmt.Errorf("%w: message must be a single line", ErrBadPayload)}
		}
		if payload == "" || len(payload) > MessageSize {
			return nil, &ParseError{Raw: line, Kind: kind.String(),
				Err: fmt.Errorf("%w: message must be 1..%d bytes", ErrBadPayload, MessageSize)}
		}
		cmd.Payload = payload
	case core.CommandTimeline, core.CommandFollowCount, core.CommandRDV:
		// no payload
	default:
		return nil, &ParseError{Raw: line, Err: ErrUnknownCommand}
	}

	return cmd, nil
}

func parseKind(token string) (core.CommandKind, bool, bool) {
	if token == "" {
		return 0, false, false
	}

	if token[0] >= '0' && token[0] <= '9' {
		answer := true
		if strings.HasSuffix(strings.ToUpper(token), silentSuffix) {
			answer = false
			token = token[:len(token)-len(silentSuffix)]
		}
		id, err := strconv.Atoi(token)
		if err != nil || id < int(core.CommandLogin) || id >= int(core.CommandUnregister) {
			return 0, false, false
		}
		kind := core.CommandKind(id)
		// LOGIN is always acknowledged.
		if kind == core.CommandLogin {
			answer = true
		}
		return kind, answer, true
	}

	if strings.EqualFold(token, "FCOUNT") {
		return core.CommandFollowCount, true, true
	}
	kind, ok := core.ParseCommandKind(token)
	if !ok || kind == core.CommandUnregister {
		return 0, false, false
	}
	return kind, true, true
}

func validateID(id string) error {
	if id == "" || len(id) > IDSize {
		return fmt.Errorf("%w: name must be 1..%d bytes", ErrBadPayload, IDSize)
	}
	if strings.IndexFunc(id, unicode.IsSpace) >= 0 {
		return fmt.Errorf("%w: name must not contain spaces", ErrBadPayload)
	}
	return nil
}
