package tcp

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/vovakirdan/babble-server/internal/core"
)

// Conn frames a stream socket as newline-terminated messages.
type Conn struct {
	conn         net.Conn
	reader       *bufio.Reader
	maxMessage   int
	writeTimeout time.Duration

	writeMu sync.Mutex
}

// NewConn wraps c. Lines longer than maxMessage bytes are rejected and
// writes give up after writeTimeout (zero disables the deadline).
func NewConn(c net.Conn, maxMessage int, writeTimeout time.Duration) *Conn {
	if maxMessage <= 0 {
		maxMessage = 1024
	}
	return &Conn{
		conn:         c,
		reader:       bufio.NewReaderSize(c, maxMessage+2),
		maxMessage:   maxMessage,
		writeTimeout: writeTimeout,
	}
}

// ReadMessage returns the next line without its terminator. A final line
// without a newline is still delivered before io.EOF.
func (c *Conn) ReadMessage() ([]byte, error) {
	line, err := c.reader.ReadSlice('\n')
	switch {
	case err == nil:
	case errors.Is(err, bufio.ErrBufferFull):
		// drop the rest of the oversized line so the stream stays framed
		for errors.Is(err, bufio.ErrBufferFull) {
			_, err = c.reader.ReadSlice('\n')
		}
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("read: %w (limit %d bytes)", core.ErrMessageTooLong, c.maxMessage)
	case errors.Is(err, io.EOF) && len(line) > 0:
		// deliver the trailing line; the next call reports io.EOF
	default:
		return nil, err
	}

	line = bytes.TrimRight(line, "\r\n")
	if len(line) > c.maxMessage {
		return nil, fmt.Errorf("read: %w (limit %d bytes)", core.ErrMessageTooLong, c.maxMessage)
	}

	out := make([]byte, len(line))
	copy(out, line)
	return out, nil
}

// WriteMessage writes msg in one call, appending a newline if missing. It is
// safe to call from several goroutines.
func (c *Conn) WriteMessage(msg []byte) error {
	if len(msg) == 0 || msg[len(msg)-1] != '\n' {
		msg = append(msg, '\n')
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return fmt.Errorf("set write deadline: %w", err)
		}
	}
	if _, err := c.conn.Write(msg); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// Close closes the underlying socket.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// RemoteAddr reports the peer address.
func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
