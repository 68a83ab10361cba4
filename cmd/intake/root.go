package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/intake/internal/config"
	"github.com/MikeSquared-Agency/intake/internal/store"
)

var version = "dev"

type rootOptions struct {
	verbose   bool
	backend   string
	storePath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "intake",
		Short: "Health-intake chat client state engine",
		Long: `intake keeps the client-side state of the health-intake chat widget:
conversation threads, scheduling offers, slot bookings and the appointment
ledger. "intake serve" exposes it over HTTP for a UI; the other commands read
the durable store without contacting the backend.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&opts.backend, "store", "", "Store backend (file, sqlite, postgres, redis, memory); overrides STORE_BACKEND")
	cmd.PersistentFlags().StringVar(&opts.storePath, "store-path", "", "Path for the file and sqlite backends; overrides STORE_PATH")

	cmd.AddCommand(
		newServeCmd(opts),
		newConversationsCmd(opts),
		newAppointmentsCmd(opts),
		newExportCmd(opts),
	)
	return cmd
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the environment and applies the persistent flags on top.
func (o *rootOptions) loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if o.verbose {
		cfg.LogLevel = "debug"
	}
	if o.backend != "" {
		cfg.StoreBackend = o.backend
	}
	if o.storePath != "" {
		cfg.StorePath = o.storePath
	}
	return cfg, nil
}

func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	kv, err := store.Open(ctx, store.Options{
		Backend:     cfg.StoreBackend,
		Path:        cfg.StorePath,
		DatabaseURL: cfg.DatabaseURL,
		RedisURL:    cfg.RedisURL,
		KeyPrefix:   cfg.RedisKeyPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.StoreBackend, err)
	}
	return kv, nil
}

func setupLogging(level string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
