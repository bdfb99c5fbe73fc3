package redis

import (
	"context"
	"encoding/json"
	"fmt"

	redis "github.com/redis/go-redis/v9"

	"github.com/stageflow/stageflow/pkg/models"
)

// AuditRepository keeps audit entries in append-only lists, indexed once by
// content UID and once by acting user.
type AuditRepository struct {
	client redis.UniversalClient
}

// NewAuditRepository creates a Redis-backed audit repository.
func NewAuditRepository(client redis.UniversalClient) *AuditRepository {
	return &AuditRepository{client: client}
}

// AppendEntry records an audit entry under both indexes.
func (r *AuditRepository) AppendEntry(ctx context.Context, entry *models.AuditEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.RPush(ctx, auditByContentKey(entry.ContentUID), payload)
		p.RPush(ctx, auditByUserKey(entry.UserID), payload)

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}

	return nil
}

// EntriesByContentUID returns the audit trail for one content entity in
// append order.
func (r *AuditRepository) EntriesByContentUID(ctx context.Context, contentUID string) ([]*models.AuditEntry, error) {
	return r.readTrail(ctx, auditByContentKey(contentUID))
}

// EntriesByUser returns every entry recorded for operations by the given
// user in append order.
func (r *AuditRepository) EntriesByUser(ctx context.Context, userID string) ([]*models.AuditEntry, error) {
	return r.readTrail(ctx, auditByUserKey(userID))
}

func (r *AuditRepository) readTrail(ctx context.Context, key string) ([]*models.AuditEntry, error) {
	values, err := r.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read audit trail: %w", err)
	}

	entries := make([]*models.AuditEntry, 0, len(values))

	for _, value := range values {
		var entry models.AuditEntry

		err = json.Unmarshal([]byte(value), &entry)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal audit entry: %w", err)
		}

		entries = append(entries, &entry)
	}

	return entries, nil
}
