package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nexobotics/nova/api"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start the HTTP API server.

Exposes:
  POST /chat           answer a message
  POST /clear-session  drop a conversation's history
  GET  /health         liveness and knowledge base status

The server shuts down gracefully on SIGINT/SIGTERM.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (host:port), overrides NOVA_ADDR")
	rootCmd.AddCommand(serveCmd)
}

func runServe() error {
	logger := initLogger(true)

	if err := checkRequiredEnv(); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := setup(ctx, logger)
	if err != nil {
		return err
	}
	if err := a.cfg.ValidateServe(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	if err := a.seedIfEmpty(ctx); err != nil {
		// Serving without retrieval beats not serving; /health reports it.
		logger.Warn("seeding failed, continuing without seed corpus", "error", err)
	}

	addr := serveAddr
	if addr == "" {
		addr = a.cfg.Addr
	}

	server := api.NewServer(a.pipe, api.Config{
		RateRPS:     a.cfg.RateRPS,
		RateBurst:   a.cfg.RateBurst,
		TrustProxy:  a.cfg.TrustProxy,
		CORSOrigins: a.cfg.CORSOrigins,
	}, logger.With("component", "api"))

	logger.Info("HTTP server ready",
		"addr", addr,
		"endpoints", "/chat, /clear-session, /health",
		"version", AppVersion,
	)
	return server.Run(ctx, addr)
}
