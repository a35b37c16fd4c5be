package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/babble-server/internal/core"
)

// Handler serves one accepted connection and returns when the session ends.
type Handler func(ctx context.Context, conn core.Conn)

// Options tune accepted connections.
type Options struct {
	MaxMessage   int
	WriteTimeout time.Duration
}

// Listen binds addr.
func Listen(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	return ln, nil
}

// Serve accepts connections on ln until ctx is cancelled, running handle in
// its own goroutine for each one. It closes ln before returning.
func Serve(ctx context.Context, ln net.Listener, opts Options, handle Handler, logger *zerolog.Logger) error {
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()
	defer ln.Close()

	logger.Info().Str("addr", ln.Addr().String()).Msg("tcp listener started")

	var tempDelay time.Duration
	for {
		c, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				if tempDelay == 0 {
					tempDelay = 5 * time.Millisecond
				} else if tempDelay *= 2; tempDelay > time.Second {
					tempDelay = time.Second
				}
				logger.Warn().Err(err).Dur("retry_in", tempDelay).Msg("accept error")
				time.Sleep(tempDelay)
				continue
			}
			return fmt.Errorf("accept: %w", err)
		}
		tempDelay = 0

		go handle(ctx, NewConn(c, opts.MaxMessage, opts.WriteTimeout))
	}
}
