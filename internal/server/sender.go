package server

import (
	"github.com/rs/zerolog"

	"github.com/vovakirdan/babble-server/internal/core"
	"github.com/vovakirdan/babble-server/internal/proto"
)

func (s *Server) runSender(id int) {
	defer s.senders.Done()

	logger := s.log.With().Str("pool", "answer_sender").Int("worker", id).Logger()
	for {
		ans, ok := s.answers.Pop()
		if !ok {
			logger.Debug().Msg("answer queue closed")
			return
		}
		s.deliver(ans, &logger)
	}
}

// deliver writes ans to its client. Failed deliveries are logged and dropped.
func (s *Server) deliver(ans *core.Answer, logger *zerolog.Logger) {
	if ans.Order != nil {
		ans.Order.WaitDelivery(ans.Seq)
		defer ans.Order.DoneDelivery()
	}

	conn := ans.Conn
	if conn == nil {
		if b, ok := s.registry.Lookup(ans.Key); ok {
			conn = b.Conn
		}
	}
	if conn == nil {
		logger.Warn().Stringer("client_key", ans.Key).Str("kind", ans.Kind.String()).Msg("no connection for answer")
		return
	}

	if err := conn.WriteMessage(proto.EncodeAnswer(ans)); err != nil {
		logger.Warn().Err(err).
			Stringer("client_key", ans.Key).
			Str("kind", ans.Kind.String()).
			Msg("failed to deliver answer")
	}
}
