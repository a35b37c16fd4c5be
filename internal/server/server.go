package server

import (
	"context"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/babble-server/internal/core"
)

// Executor runs one command against application state.
type Executor interface {
	Execute(ctx context.Context, cmd *core.Command) (*core.Answer, error)
}

// Config sizes the pipeline.
type Config struct {
	Executors     int
	AnswerSenders int
	QueueCapacity int
}

// QueueStats describes the occupancy of one queue.
type QueueStats struct {
	Len int `json:"len"`
	Cap int `json:"cap"`
}

// Stats is a point-in-time view of the server.
type Stats struct {
	Clients       int        `json:"clients"`
	MaxClients    int        `json:"max_clients"`
	Connections   int        `json:"connections"`
	Executors     int        `json:"executors"`
	AnswerSenders int        `json:"answer_senders"`
	Commands      QueueStats `json:"command_queue"`
	Answers       QueueStats `json:"answer_queue"`
}

// Server owns the client registry, both queues and the worker pools. Each
// accepted connection is handed to ServeConn.
type Server struct {
	cfg      Config
	registry *core.Registry
	exec     Executor
	commands *core.Queue[*core.Command]
	answers  *core.Queue[*core.Answer]
	log      *zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	startOnce sync.Once
	stopOnce  sync.Once
	executors sync.WaitGroup
	senders   sync.WaitGroup

	connsMu  sync.Mutex
	conns    map[core.Conn]struct{}
	closing  bool
	sessions sync.WaitGroup
}

// New builds a server around reg and exec. Call Start to launch the pools.
func New(cfg Config, reg *core.Registry, exec Executor, logger *zerolog.Logger) *Server {
	if cfg.Executors <= 0 {
		cfg.Executors = 1
	}
	if cfg.AnswerSenders <= 0 {
		cfg.AnswerSenders = 1
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = 1
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:      cfg,
		registry: reg,
		exec:     exec,
		commands: core.NewQueue[*core.Command](cfg.QueueCapacity),
		answers:  core.NewQueue[*core.Answer](cfg.QueueCapacity),
		log:      logger,
		ctx:      ctx,
		cancel:   cancel,
		conns:    make(map[core.Conn]struct{}),
	}
}

// Registry exposes the client registry.
func (s *Server) Registry() *core.Registry {
	return s.registry
}

// Start empties the registry and launches the executor and answer sender
// pools. Calling it again is a no-op.
func (s *Server) Start() {
	s.startOnce.Do(func() {
		s.registry.Reset()
		for i := range s.cfg.Executors {
			s.executors.Add(1)
			go s.runExecutor(i)
		}
		for i := range s.cfg.AnswerSenders {
			s.senders.Add(1)
			go s.runSender(i)
		}
		s.log.Info().
			Int("executors", s.cfg.Executors).
			Int("answer_senders", s.cfg.AnswerSenders).
			Int("queue_capacity", s.cfg.QueueCapacity).
			Int("max_clients", s.registry.Cap()).
			Msg("pipeline started")
	})
}

// Shutdown closes every live connection, lets the sessions finish, then
// drains the command queue before the answer queue. ctx bounds how long the
// caller waits; once it expires both queues are closed anyway, so the pools
// exit after their current item and whatever is still queued.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.stopOnce.Do(func() {
		s.connsMu.Lock()
		s.closing = true
		live := make([]core.Conn, 0, len(s.conns))
		for c := range s.conns {
			live = append(live, c)
		}
		s.connsMu.Unlock()

		for _, c := range live {
			_ = c.Close()
		}

		err = wait(ctx, &s.sessions)
		s.commands.Close()
		if err == nil {
			err = wait(ctx, &s.executors)
		}
		s.answers.Close()
		if err == nil {
			err = wait(ctx, &s.senders)
		}
		s.cancel()

		if err != nil {
			s.log.Warn().Err(err).Msg("pipeline stop timed out")
			return
		}
		s.log.Info().Msg("pipeline stopped")
	})
	return err
}

// Stats reports registry and queue occupancy.
func (s *Server) Stats() Stats {
	s.connsMu.Lock()
	conns := len(s.conns)
	s.connsMu.Unlock()

	return Stats{
		Clients:       s.registry.Len(),
		MaxClients:    s.registry.Cap(),
		Connections:   conns,
		Executors:     s.cfg.Executors,
		AnswerSenders: s.cfg.AnswerSenders,
		Commands:      QueueStats{Len: s.commands.Len(), Cap: s.commands.Cap()},
		Answers:       QueueStats{Len: s.answers.Len(), Cap: s.answers.Cap()},
	}
}

// Clients lists the names of the logged-in clients, sorted.
func (s *Server) Clients() []string {
	bundles := s.registry.Snapshot()
	names := make([]string, 0, len(bundles))
	for _, b := range bundles {
		names = append(names, b.Name)
	}
	slices.Sort(names)
	return names
}

// track records a live connection. It refuses new ones once shutdown began.
func (s *Server) track(c core.Conn) bool {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	if s.closing {
		return false
	}
	s.conns[c] = struct{}{}
	s.sessions.Add(1)
	return true
}

func (s *Server) untrack(c core.Conn) {
	s.connsMu.Lock()
	delete(s.conns, c)
	s.connsMu.Unlock()
	s.sessions.Done()
}

func wait(ctx context.Context, wg *sync.WaitGroup) error {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
