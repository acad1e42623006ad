package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukex/tripwire/pkg/persistence"
	"github.com/dukex/tripwire/pkg/persistence/file"
	"github.com/dukex/tripwire/pkg/persistence/memory"
	"github.com/dukex/tripwire/pkg/persistence/postgresql"
	"github.com/dukex/tripwire/pkg/persistence/redisstore"
)

var supportedPersistenceProviders = []string{"file", "memory", "postgres", "postgresql"}

// NewPersistence selects a store by URL scheme. A URL without a known scheme
// is treated as a directory for the file store.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	provider := parsePersistenceProvider(databaseURL)

	switch provider {
	case "memory":
		return memory.NewPersistence(), nil
	case "postgres", "postgresql":
		p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres persistence: %w", err)
		}

		return p, nil
	default:
		return file.NewPersistence(strings.TrimPrefix(databaseURL, "file://")), nil
	}
}

// WithRedisDedup moves dedup records to Redis so several engine processes
// share them. An empty redisURL returns p unchanged.
func WithRedisDedup(p persistence.Persistence, redisURL string, retention time.Duration, logger *slog.Logger) (persistence.Persistence, error) {
	if redisURL == "" {
		return p, nil
	}

	client, err := redisstore.NewClient(redisURL)
	if err != nil {
		return nil, err
	}

	return persistence.WithDedup(p, redisstore.NewDedupRepository(client, retention, logger.With("module", "redis_dedup"))), nil
}

func parsePersistenceProvider(databaseURL string) string {
	provider, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	for _, supported := range supportedPersistenceProviders {
		if provider == supported {
			return provider
		}
	}

	return "file"
}
