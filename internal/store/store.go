// Package store provides the document stores that persist freshpost state
// between runs. Every backend satisfies model.StateStore.
package store

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"cloud.google.com/go/storage"

	"github.com/amishk599/freshpost/internal/config"
	"github.com/amishk599/freshpost/internal/model"
)

// Store is a state store that may hold resources.
type Store interface {
	model.StateStore
	io.Closer
}

type nopCloser struct{ model.StateStore }

func (nopCloser) Close() error { return nil }

// Open builds the configured backend. A backend whose credentials are missing,
// or that cannot be reached, degrades to an in-memory store with a warning, so
// the run still completes but nothing survives it. Only an unknown backend is
// an error.
func Open(ctx context.Context, cfg config.StateConfig, logger *slog.Logger) (Store, error) {
	degrade := func(reason string) (Store, error) {
		logger.Warn("state will not persist across runs",
			"backend", cfg.Backend,
			"reason", reason,
		)
		return nopCloser{NewMemoryStore()}, nil
	}

	switch cfg.Backend {
	case "memory":
		return nopCloser{NewMemoryStore()}, nil

	case "sqlite":
		s, err := NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return degrade(fmt.Errorf("%w: %w", model.ErrPersistenceUnavailable, err).Error())
		}
		return s, nil

	case "gist":
		if cfg.GistToken == "" {
			return degrade("gist_token is not set")
		}
		s, err := NewGistStore(cfg.GistToken, cfg.GistID, cfg.GistAPIURL, &http.Client{Timeout: 30 * time.Second})
		if err != nil {
			return degrade(err.Error())
		}
		return nopCloser{s}, nil

	case "gcs":
		if cfg.Bucket == "" {
			return degrade("bucket is not set")
		}
		client, err := storage.NewClient(ctx)
		if err != nil {
			return degrade(fmt.Sprintf("storage client: %v", err))
		}
		s, err := NewGCSStore(client, cfg.Bucket, cfg.Prefix)
		if err != nil {
			client.Close()
			return degrade(err.Error())
		}
		return s, nil

	case "redis":
		if cfg.RedisAddr == "" {
			return degrade("redis_addr is not set")
		}
		s, err := NewRedisStore(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB, cfg.Prefix)
		if err != nil {
			return degrade(fmt.Errorf("%w: %w", model.ErrPersistenceUnavailable, err).Error())
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown state backend %q", cfg.Backend)
}

// Nop returns a store that never persists. Used by dry runs.
func Nop() Store {
	return nopCloser{NewNopStore()}
}
