package server

import (
	"context"
	"errors"
	"io"
	"net"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/babble-server/internal/core"
	"github.com/vovakirdan/babble-server/internal/proto"
)

// ErrAlreadyLoggedIn answers a LOGIN sent by a session that already owns a
// registration.
var ErrAlreadyLoggedIn = core.NewError(core.ErrCodeBadRequest, "already logged in")

// ServeConn runs the session of one client connection: login, then commands
// until the peer disconnects. It closes conn before returning.
func (s *Server) ServeConn(ctx context.Context, conn core.Conn) {
	if !s.track(conn) {
		_ = conn.Close()
		return
	}
	defer s.untrack(conn)
	defer conn.Close()

	logger := s.log.With().
		Str("session", uuid.NewString()).
		Str("remote", conn.RemoteAddr()).
		Logger()
	logger.Debug().Msg("connection accepted")

	key, name, ok := s.login(ctx, conn, &logger)
	if !ok {
		return
	}
	logger = logger.With().Str("client", name).Stringer("client_key", key).Logger()

	order := core.NewOrder()
	for {
		raw, err := conn.ReadMessage()
		if err != nil {
			if errors.Is(err, core.ErrMessageTooLong) {
				logger.Warn().Err(err).Msg("oversized message")
				s.reply(conn, proto.EncodeParseError(err), &logger)
				continue
			}
			if !isClosed(err) {
				logger.Warn().Err(err).Msg("read failed")
			}
			break
		}

		cmd, err := proto.Parse(raw, key)
		if err != nil {
			logger.Warn().Err(err).Msg("unable to parse message")
			s.reply(conn, proto.EncodeParseError(err), &logger)
			continue
		}
		if cmd.Kind == core.CommandLogin {
			logger.Warn().Str("login", cmd.Payload).Msg("login while logged in")
			s.reply(conn, proto.EncodeAnswer(core.Fail(cmd, ErrAlreadyLoggedIn)), &logger)
			continue
		}
		cmd.Conn = conn
		cmd.Seq = order.NextCommand()
		cmd.Order = order

		if err := s.commands.Push(cmd); err != nil {
			logger.Warn().Err(err).Str("kind", cmd.Kind.String()).Msg("command dropped")
			break
		}
	}

	s.unregister(key, &logger)
}

// login reads the first message, which must be a LOGIN, and executes it
// before any other command is accepted.
func (s *Server) login(ctx context.Context, conn core.Conn, logger *zerolog.Logger) (core.Key, string, bool) {
	raw, err := conn.ReadMessage()
	if err != nil {
		if !isClosed(err) {
			logger.Warn().Err(err).Msg("read login")
		}
		return 0, "", false
	}

	cmd, err := proto.Parse(raw, 0)
	if err != nil {
		logger.Warn().Err(err).Msg("invalid login message")
		s.reply(conn, proto.EncodeParseError(err), logger)
		return 0, "", false
	}
	if cmd.Kind != core.CommandLogin {
		logger.Warn().Str("kind", cmd.Kind.String()).Msg("first command is not LOGIN")
		s.reply(conn, proto.EncodeAnswer(core.Fail(cmd, core.NewError(core.ErrCodeNotLoggedIn, "LOGIN expected"))), logger)
		return 0, "", false
	}
	cmd.Conn = conn

	ans, err := s.run(ctx, cmd)
	if err != nil {
		logger.Warn().Err(err).Str("client", cmd.Payload).Msg("login rejected")
		s.reply(conn, proto.EncodeAnswer(core.Fail(cmd, err)), logger)
		return 0, "", false
	}

	if err := conn.WriteMessage(proto.EncodeAnswer(ans)); err != nil {
		logger.Warn().Err(err).Msg("login ack failed")
		s.unregister(cmd.Key, logger)
		return 0, "", false
	}

	return cmd.Key, cmd.Payload, true
}

// unregister removes the client synchronously so that a reconnect under the
// same name is accepted as soon as this session is gone.
func (s *Server) unregister(key core.Key, logger *zerolog.Logger) {
	cmd := &core.Command{Key: key, Kind: core.CommandUnregister}
	if _, err := s.run(s.ctx, cmd); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			logger.Debug().Msg("client already unregistered")
			return
		}
		logger.Warn().Err(err).Msg("failed to unregister client")
	}
}

// reply writes directly to the client, bypassing the answer queue.
func (s *Server) reply(conn core.Conn, msg []byte, logger *zerolog.Logger) {
	if err := conn.WriteMessage(msg); err != nil {
		logger.Warn().Err(err).Msg("direct reply failed")
	}
}

func isClosed(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, context.Canceled)
}
