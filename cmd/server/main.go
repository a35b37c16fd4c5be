package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/babble-server/internal/app"
	"github.com/vovakirdan/babble-server/internal/config"
	babblelog "github.com/vovakirdan/babble-server/internal/log"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		overrides  config.Config
	)

	cmd := &cobra.Command{
		Use:           "babble-server",
		Short:         "Message board server with bounded command and answer queues",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			bootLogger := babblelog.New(overrides.LogLevel)

			cfg, resolvedPath, err := config.Load(bootLogger, configPath)
			if err != nil {
				return err
			}
			cfg.UpdateFrom(overrides)
			if cmd.Flags().Changed("http-addr") {
				cfg.HTTPAddr = overrides.HTTPAddr
			}

			logger := babblelog.New(cfg.LogLevel)
			logger.Info().Str("config", resolvedPath).Msg("configuration loaded")

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := app.New(&cfg, logger)
			if err != nil {
				return err
			}

			logger.Info().
				Str("addr", application.Addr().String()).
				Str("http_addr", cfg.HTTPAddr).
				Msg("starting babble server")
			if err := application.Run(ctx); err != nil {
				return fmt.Errorf("server exited with error: %w", err)
			}
			logger.Info().Msg("server stopped")
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configPath, "config", "", "path to config.yaml")
	flags.StringVar(&overrides.Addr, "addr", "", "TCP listen address")
	flags.StringVar(&overrides.HTTPAddr, "http-addr", "", "admin and websocket listen address, empty disables")
	flags.IntVar(&overrides.Executors, "executors", 0, "number of executor workers")
	flags.IntVar(&overrides.AnswerSenders, "answer-senders", 0, "number of answer sender workers")
	flags.IntVar(&overrides.QueueCapacity, "queue-capacity", 0, "capacity of the command and answer queues")
	flags.IntVar(&overrides.MaxClients, "max-clients", 0, "maximum number of logged-in clients")
	flags.StringVar(&overrides.LogLevel, "log-level", "", "log level (debug, info, warn, error)")

	return cmd
}
