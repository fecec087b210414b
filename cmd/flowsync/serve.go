package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/flowsync/flowsync/internal/auth"
	"github.com/flowsync/flowsync/internal/config"
	"github.com/flowsync/flowsync/internal/httpapi"
	"github.com/flowsync/flowsync/internal/keygen"
	"github.com/flowsync/flowsync/internal/storage/sqlite"
	"github.com/flowsync/flowsync/internal/telemetry"
	"github.com/flowsync/flowsync/internal/workflow"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the FlowSync HTTP server",
}

func init() {
	serveCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	}
	serveCmd.Flags().String("listen", "", "listen address (overrides config)")
	serveCmd.Flags().String("db", "", "sqlite database path (overrides config)")
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load(viper.New(), cfgFile)
	if err != nil {
		return err
	}
	if addr, _ := serveCmd.Flags().GetString("listen"); addr != "" {
		cfg.ListenAddr = addr
	}
	if db, _ := serveCmd.Flags().GetString("db"); db != "" {
		cfg.DBPath = db
	}
	if cfg.TokenSecret == "" {
		return fmt.Errorf("token_secret must be configured (FLOWSYNC_TOKEN_SECRET or flowsync.yaml)")
	}

	log := newLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := telemetry.Init(ctx, cfg.TelemetryEnabled, "flowsync", Version); err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("telemetry shutdown failed")
		}
	}()

	metrics, err := telemetry.NewMetrics()
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	store, err := sqlite.Open(cfg.DBPath, sqlite.WithTxObserver(metrics.TxLeaseObserver()))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()
	log.Info().Str("db", cfg.DBPath).Msg("database open")

	dispatcher := workflow.New(store, keygen.New(store), log, metrics)
	server := httpapi.NewServer(httpapi.ServerConfig{
		Store:      store,
		Dispatcher: dispatcher,
		Issuer:     auth.NewIssuer([]byte(cfg.TokenSecret), cfg.TokenTTL),
		Logger:     log,
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(ctx, cfg.ListenAddr)
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	log.Info().Msg("shutdown complete")
	return nil
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
}
