// Package redis provides Redis-based persistence for workflow instances and
// audit history. Instances live under per-content keys with a membership set
// for listings; writes go through transactional pipelines so the key and the
// set never drift apart.
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/stageflow/stageflow/pkg/persistence"
)

const connectTimeout = 5 * time.Second

// Persistence implements persistence.Persistence backed by a single Redis
// database.
type Persistence struct {
	client redis.UniversalClient
	logger *slog.Logger

	instanceRepo *InstanceRepository
	auditRepo    *AuditRepository
}

// NewPersistence connects to the Redis database named by redisURL
// (redis://[user:password@]host:port/db) and verifies the connection.
func NewPersistence(ctx context.Context, logger *slog.Logger, redisURL string) (*Persistence, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	err = client.Ping(pingCtx).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.InfoContext(ctx, "Connected to Redis", "addr", opts.Addr, "db", opts.DB)

	return &Persistence{
		client:       client,
		logger:       logger,
		instanceRepo: NewInstanceRepository(client),
		auditRepo:    NewAuditRepository(client),
	}, nil
}

// InstanceRepository returns the workflow instance repository.
func (p *Persistence) InstanceRepository() persistence.InstanceRepository {
	return p.instanceRepo
}

// AuditRepository returns the audit trail repository.
func (p *Persistence) AuditRepository() persistence.AuditRepository {
	return p.auditRepo
}

// HealthCheck verifies the Redis connection is alive.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.client.Ping(ctx).Err()
	if err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}

	return nil
}

// Close releases the Redis client.
func (p *Persistence) Close(_ context.Context) error {
	return p.client.Close()
}
