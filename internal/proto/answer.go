package proto

import (
	"strconv"
	"strings"

	"github.com/vovakirdan/babble-server/internal/core"
)

const (
	StatusOK    = "OK"
	StatusError = "ERR"

	// unknownKind labels errors that are not tied to a parsed command.
	unknownKind = "-"
)

// EncodeAnswer renders an answer as the bytes written to the client.
//
//	OK <KIND> [detail]
//	ERR <KIND> <code> <message>
//
// TIMELINE answers are followed by one "<author> <unix-ms> <text>" line per message.
func EncodeAnswer(a *core.Answer) []byte {
	var b strings.Builder

	if a.Status != core.StatusOK {
		writeError(&b, a.Kind.String(), a.Error)
		return []byte(b.String())
	}

	b.WriteString(StatusOK)
	b.WriteByte(' ')
	b.WriteString(a.Kind.String())

	if a.Kind == core.CommandTimeline {
		b.WriteByte(' ')
		b.WriteString(strconv.Itoa(len(a.Messages)))
		b.WriteByte('\n')
		for _, m := range a.Messages {
			b.WriteString(m.Author)
			b.WriteByte(' ')
			b.WriteString(strconv.FormatInt(m.CreatedAt.UnixMilli(), 10))
			b.WriteByte(' ')
			b.WriteString(m.Text)
			b.WriteByte('\n')
		}
		return []byte(b.String())
	}

	if a.Detail != "" {
		b.WriteByte(' ')
		b.WriteString(a.Detail)
	}
	b.WriteByte('\n')
	return []byte(b.String())
}

// EncodeParseError renders the error answer for a message that failed to parse.
func EncodeParseError(err error) []byte {
	var b strings.Builder
	if pe, ok := err.(*ParseError); ok {
		kind := unknownKind
		if pe.Kind != "" {
			kind = pe.Kind
		}
		writeError(&b, kind, pe.CoreError())
	} else {
		writeError(&b, unknownKind, core.NewError(core.ErrCodeBadRequest, err.Error()))
	}
	return []byte(b.String())
}

func writeError(b *strings.Builder, kind string, ce *core.CoreError) {
	if ce == nil {
		ce = core.NewError(core.ErrCodeInternal, "unknown error")
	}
	b.WriteString(StatusError)
	b.WriteByte(' ')
	b.WriteString(kind)
	b.WriteByte(' ')
	b.WriteString(ce.Code)
	b.WriteByte(' ')
	// answers are line oriented
	b.WriteString(strings.ReplaceAll(ce.Message, "\n", " "))
	b.WriteByte('\n')
}
