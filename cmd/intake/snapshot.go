package main

import (
	"context"
	"os"
	"time"

	"github.com/MikeSquared-Agency/intake/internal/engine"
)

// loadSnapshot reads the durable state without writing anything back.
func loadSnapshot(ctx context.Context, opts *rootOptions) (engine.Snapshot, error) {
	cfg, err := opts.loadConfig()
	if err != nil {
		return engine.Snapshot{}, err
	}
	// Logs go to stderr so command output stays clean.
	logger := setupLogging(cfg.LogLevel, os.Stderr)

	kv, err := openStore(ctx, cfg)
	if err != nil {
		return engine.Snapshot{}, err
	}
	defer kv.Close()

	p := engine.NewPersistence(kv, cfg.StoreKeyPrefix, logger)
	return p.Load(ctx, engine.NewConversationID, time.Now), nil
}
