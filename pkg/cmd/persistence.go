package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/docuflow/docuflow/pkg/persistence"
	"github.com/docuflow/docuflow/pkg/persistence/memory"
	"github.com/docuflow/docuflow/pkg/persistence/redis"
)

// NewPersistence creates a persistence backend from a URL. redis:// selects
// the Redis store; anything else falls back to the in-memory store, which is
// suitable for tests and single-process deployments only.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	switch parsePersistenceProvider(databaseURL) {
	case "redis":
		store, err := redis.NewPersistence(databaseURL)
		if err != nil {
			panic("failed to connect to redis: " + err.Error())
		}

		logger.InfoContext(ctx, "Using redis persistence")

		return store
	default:
		logger.InfoContext(ctx, "Using in-memory persistence")

		return memory.NewPersistence()
	}
}

func parsePersistenceProvider(databaseURL string) string {
	provider, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "memory"
	}

	return provider
}
