package server

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/babble-server/internal/core"
)

func (s *Server) runExecutor(id int) {
	defer s.executors.Done()

	logger := s.log.With().Str("pool", "executor").Int("worker", id).Logger()
	for {
		cmd, ok := s.commands.Pop()
		if !ok {
			logger.Debug().Msg("command queue closed")
			return
		}
		s.execute(cmd, &logger)
	}
}

// execute runs cmd in its client's turn and enqueues the answer, if any.
// A failing or panicking handler never stops the worker.
func (s *Server) execute(cmd *core.Command, logger *zerolog.Logger) {
	if cmd.Order != nil {
		cmd.Order.WaitExec(cmd.Seq)
		defer cmd.Order.DoneExec()
	}

	ans, err := s.run(s.ctx, cmd)
	if err != nil {
		ev := logger.Warn()
		if core.AsCoreError(err).Code == core.ErrCodeInternal {
			ev = logger.Error()
		}
		ev.Err(err).
			Str("kind", cmd.Kind.String()).
			Stringer("client_key", cmd.Key).
			Msg("command failed")
		ans = core.Fail(cmd, err)
	}
	if ans == nil || !cmd.AnswerExpected {
		return
	}

	if ans.Conn == nil {
		ans.Conn = cmd.Conn
	}
	if cmd.Order != nil {
		ans.Order = cmd.Order
		ans.Seq = cmd.Order.NextAnswer()
	}
	if err := s.answers.Push(ans); err != nil {
		logger.Warn().Err(err).Str("kind", cmd.Kind.String()).Msg("answer dropped")
	}
}

// run executes cmd, turning a handler panic into an error.
func (s *Server) run(ctx context.Context, cmd *core.Command) (ans *core.Answer, err error) {
	defer func() {
		if r := recover(); r != nil {
			ans, err = nil, fmt.Errorf("%s handler panicked: %v", cmd.Kind, r)
		}
	}()
	return s.exec.Execute(ctx, cmd)
}
