package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/docveil/docveil/internal/config"
	"github.com/docveil/docveil/internal/engine"
	"github.com/docveil/docveil/internal/server"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local detection API server",
		Long: `Serve starts an HTTP API bound to localhost for interactive use,
e.g. from an editor plugin or a review UI.

Endpoints:
  POST /v1/detect       detect entities in a document
  POST /v1/anonymize    detect and anonymize in one call
  GET  /v1/recognizers  list active recognizers
  GET  /health          liveness probe

The configuration file is watched; recognizer and pass settings reload
without a restart.`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}

	cmd.Flags().IntP("port", "p", 0, "Override the configured listen port")

	return cmd
}

func runServeCmd(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfigAndLogger(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()

	if port, _ := cmd.Flags().GetInt("port"); port != 0 {
		cfg.Server.Port = port
	}

	eng, err := engine.New(cfg, log)
	if err != nil {
		return err
	}
	defer eng.Close()

	srv, err := server.New(cfg, eng, log)
	if err != nil {
		return err
	}

	if err := config.Watch(cfg, func(updated *config.Config) {
		log.Info("Configuration reloaded")
	}); err != nil {
		log.Warn("Configuration watch unavailable", zap.Error(err))
	}

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return err
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Stop(ctx)
	}
}
