// Package cmd provides shared construction helpers for the binaries.
package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/reservly/flowengine/pkg/persistence"
	"github.com/reservly/flowengine/pkg/persistence/memory"
	"github.com/reservly/flowengine/pkg/persistence/postgresql"
	"github.com/reservly/flowengine/pkg/persistence/redis"
	"github.com/reservly/flowengine/pkg/resilient"
)

// NewPersistence selects the storage backend from the URL scheme.
// postgres:// and postgresql:// select PostgreSQL, redis:// and
// rediss:// select Redis, anything else (including an empty URL) falls
// back to the in-memory store.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch parseProvider(databaseURL) {
	case "postgresql":
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	case "redis":
		return redis.NewPersistence(ctx, logger, databaseURL)
	default:
		return memory.NewPersistence(), nil
	}
}

// NewResilientPersistence wraps the configured backend in the degrading
// store, with an in-memory fallback serving when the backend is down. A
// backend that cannot even be constructed starts the process on the
// in-memory store rather than dead.
func NewResilientPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) *resilient.Store {
	primary, err := NewPersistence(ctx, logger, databaseURL)
	if err != nil {
		logger.ErrorContext(ctx, "failed to initialize storage backend, serving from memory",
			"error", err)

		return resilient.NewDegradedStore(memory.NewPersistence(), logger)
	}

	return resilient.NewStore(primary, memory.NewPersistence(), logger)
}

func parseProvider(databaseURL string) string {
	scheme, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "memory"
	}

	switch scheme {
	case "postgres", "postgresql":
		return "postgresql"
	case "redis", "rediss":
		return "redis"
	default:
		return "memory"
	}
}
