package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vovakirdan/babble-server/internal/config"
	"github.com/vovakirdan/babble-server/internal/core"
	"github.com/vovakirdan/babble-server/internal/server"
	"github.com/vovakirdan/babble-server/internal/service/babble"
	"github.com/vovakirdan/babble-server/internal/store"
	"github.com/vovakirdan/babble-server/internal/store/memory"
	"github.com/vovakirdan/babble-server/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/babble-server/internal/transport/http"
	"github.com/vovakirdan/babble-server/internal/transport/tcp"
)

// App wires together core and transport layers.
type App struct {
	cfg             config.Config
	server          *server.Server
	listener        net.Listener
	http            *stdhttp.Server
	shutdownTimeout time.Duration
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with provided configuration. The TCP
// listener is bound here so that address errors surface before Run.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	st, err := openStore(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("driver", cfg.Store.Driver).Str("path", cfg.Store.Path).Msg("store initialized")

	reg := core.NewRegistry(cfg.MaxClients)
	svc := babble.New(reg, st, cfg.TimelineMax, logger)
	srv := server.New(server.Config{
		Executors:     cfg.Executors,
		AnswerSenders: cfg.AnswerSenders,
		QueueCapacity: cfg.QueueCapacity,
	}, reg, svc, logger)

	ln, err := tcp.Listen(cfg.Addr)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	a := &App{
		cfg:             *cfg,
		server:          srv,
		listener:        ln,
		shutdownTimeout: cfg.ShutdownTimeout,
		store:           st,
		log:             logger,
	}
	if cfg.HTTPAddr != "" {
		a.http = transporthttp.NewServer(srv, cfg, logger)
	}
	return a, nil
}

func openStore(cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Driver {
	case config.StoreMemory:
		return memory.New(), nil
	case config.StoreSQLite:
		return sqlite.New(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// Addr reports the bound TCP address.
func (a *App) Addr() net.Addr {
	return a.listener.Addr()
}

// Run serves clients and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	a.server.Start()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return tcp.Serve(gctx, a.listener, tcp.Options{
			MaxMessage:   a.cfg.MaxMessageBytes,
			WriteTimeout: a.cfg.WriteTimeout,
		}, a.server.ServeConn, a.log)
	})

	if a.http != nil {
		g.Go(func() error {
			a.log.Info().Str("addr", a.http.Addr).Msg("http listener started")
			if err := a.http.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		return a.shutdown()
	})

	err := g.Wait()
	a.cleanup()
	return err
}

// shutdown stops the front ends, then drains the pipeline.
func (a *App) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	var errs []error
	if a.http != nil {
		a.log.Info().Msg("shutting down http server")
		if err := a.http.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}

	a.log.Info().Msg("draining command and answer queues")
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("pipeline shutdown: %w", err))
	}
	return errors.Join(errs...)
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
