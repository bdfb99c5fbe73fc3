package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/stageflow/stageflow/pkg/persistence"
	"github.com/stageflow/stageflow/pkg/persistence/file"
	"github.com/stageflow/stageflow/pkg/persistence/memory"
	"github.com/stageflow/stageflow/pkg/persistence/postgresql"
	"github.com/stageflow/stageflow/pkg/persistence/redis"
)

var supportedPersistenceProviders = []string{"memory", "file", "postgres", "postgresql", "redis", "rediss"}

// NewPersistence selects a storage backend from the database URL scheme:
// memory://, file://<dir>, postgres://..., redis://... Unknown schemes fall
// back to the file backend, which treats the URL as a directory path.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch parsePersistenceProvider(databaseURL) {
	case "memory":
		return memory.NewPersistence(), nil
	case "postgres", "postgresql":
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	case "redis", "rediss":
		return redis.NewPersistence(ctx, logger, databaseURL)
	default:
		return file.NewPersistence(databaseURL), nil
	}
}

func parsePersistenceProvider(databaseURL string) string {
	parts := strings.Split(databaseURL, "://")

	provider := parts[0]
	for _, supported := range supportedPersistenceProviders {
		if provider == supported {
			return provider
		}
	}

	return "file"
}
