package http

import (
	"bytes"
	"context"
	"errors"
	"io"
	stdhttp "net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"
)

// WSOptions tune accepted websocket connections.
type WSOptions struct {
	MaxMessage   int64
	WriteTimeout time.Duration
}

// WSHandler upgrades HTTP connections and runs a babble session on each.
type WSHandler struct {
	sessions Sessions
	opts     WSOptions
	log      *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(sessions Sessions, opts WSOptions, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{sessions: sessions, opts: opts, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	if h.opts.MaxMessage > 0 {
		conn.SetReadLimit(h.opts.MaxMessage)
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	h.sessions.ServeConn(ctx, &wsConn{
		conn:         conn,
		ctx:          ctx,
		remote:       r.RemoteAddr,
		writeTimeout: h.opts.WriteTimeout,
	})
}

// wsConn carries one babble message per text frame.
type wsConn struct {
	conn         *websocket.Conn
	ctx          context.Context
	remote       string
	writeTimeout time.Duration

	closeOnce sync.Once
	closeErr  error
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.Read(c.ctx)
	if err != nil {
		switch websocket.CloseStatus(err) {
		case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			return nil, io.EOF
		}
		if errors.Is(err, context.Canceled) {
			return nil, io.EOF
		}
		return nil, err
	}
	return bytes.TrimRight(data, "\r\n"), nil
}

func (c *wsConn) WriteMessage(msg []byte) error {
	ctx := c.ctx
	if c.writeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.writeTimeout)
		defer cancel()
	}
	return c.conn.Write(ctx, websocket.MessageText, bytes.TrimSuffix(msg, []byte("\n")))
}

func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close(websocket.StatusNormalClosure, "closing")
	})
	return c.closeErr
}

func (c *wsConn) RemoteAddr() string {
	return c.remote
}
