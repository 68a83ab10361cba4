// Package store provides the durable key-value backends the intake engine
// persists its state into.
package store

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when a key has never been written.
var ErrNotFound = errors.New("key not found")

// Entry is a single key/value pair written by PutAll.
type Entry struct {
	Key   string
	Value string
}

// Store is a string key-value store. PutAll writes every entry or none of
// them where the backend can guarantee it.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	PutAll(ctx context.Context, entries []Entry) error
	Close() error
}

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Options selects and configures a backend.
type Options struct {
	Backend     string
	Path        string // file and sqlite
	DatabaseURL string // postgres
	RedisURL    string // redis
	KeyPrefix   string // redis
}

// Open returns the backend named by opts.Backend.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case BackendMemory:
		return NewMemory(), nil
	case BackendFile, "":
		return NewFile(opts.Path), nil
	case BackendSQLite:
		return NewSQLite(ctx, opts.Path)
	case BackendPostgres:
		if opts.DatabaseURL == "" {
			return nil, errors.New("postgres backend requires DATABASE_URL")
		}
		return NewPostgres(ctx, opts.DatabaseURL)
	case BackendRedis:
		return NewRedis(ctx, opts.RedisURL, opts.KeyPrefix)
	default:
		return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}
}
