package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/MikeSquared-Agency/intake/internal/api"
	"github.com/MikeSquared-Agency/intake/internal/config"
	"github.com/MikeSquared-Agency/intake/internal/engine"
	"github.com/MikeSquared-Agency/intake/internal/gateway"
	"github.com/MikeSquared-Agency/intake/internal/hermes"
	"github.com/MikeSquared-Agency/intake/internal/metrics"
)

const healthInterval = time.Minute

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the engine behind the local HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}
}

func runServe(ctx context.Context, cfg config.Config) error {
	logger := setupLogging(cfg.LogLevel, os.Stdout)
	logger.Info("intake starting", "port", cfg.Port, "store", cfg.StoreBackend, "backend", cfg.BackendURL)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	kv, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer kv.Close()
	logger.Info("store ready", "backend", cfg.StoreBackend)

	backend := gateway.NewClient(cfg.BackendURL, cfg.BackendTimeout)
	backendUp := checkBackend(ctx, backend, logger)

	eng := engine.New(ctx, kv, backend, engine.Options{
		Logger:    logger,
		KeyPrefix: cfg.StoreKeyPrefix,
		Patient:   cfg.PatientName,
	})

	m := metrics.New()
	defer m.Attach(eng.Bus)()

	// NATS (optional, the engine works without event forwarding)
	if cfg.NatsURL != "" {
		hc, err := hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, logger)
		if err != nil {
			logger.Warn("failed to connect to NATS, events will not be forwarded", "error", err)
		} else {
			defer hc.Close()
			defer hermes.NewForwarder(hc, logger).Attach(eng.Bus)()
			logger.Info("NATS connected", "url", cfg.NatsURL)

			if err := hc.Publish(hermes.SubjectPrefix+"service.started", map[string]any{
				"timestamp": time.Now().UTC().Format(time.RFC3339),
				"port":      cfg.Port,
				"store":     cfg.StoreBackend,
			}); err != nil {
				logger.Warn("failed to publish start event", "error", err)
			}
		}
	} else {
		logger.Warn("NATS not configured, running without event forwarding")
	}

	srv := api.NewServer(cfg.Port, eng, m.Handler(), logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(gctx)
	})
	g.Go(func() error {
		watchBackend(gctx, backend, backendUp, logger)
		return nil
	})

	logger.Info("intake ready", "port", cfg.Port)

	err = g.Wait()
	logger.Info("intake stopped")
	return err
}

func checkBackend(ctx context.Context, backend *gateway.Client, logger *slog.Logger) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	h, err := backend.Health(ctx)
	if err != nil {
		logger.Warn("backend not reachable", "error", err)
		return false
	}
	logger.Info("backend reachable", "version", h.Version, "ok", h.OK)
	return true
}

// watchBackend logs transitions of backend reachability until ctx is done.
func watchBackend(ctx context.Context, backend *gateway.Client, up bool, logger *slog.Logger) {
	ticker := time.NewTicker(healthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ok := checkBackendQuiet(ctx, backend)
			if ok != up {
				if ok {
					logger.Info("backend reachable again")
				} else {
					logger.Warn("backend became unreachable")
				}
				up = ok
			}
		}
	}
}

func checkBackendQuiet(ctx context.Context, backend *gateway.Client) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := backend.Health(ctx)
	return err == nil
}
