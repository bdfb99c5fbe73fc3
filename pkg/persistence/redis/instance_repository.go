package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	redis "github.com/redis/go-redis/v9"

	"github.com/stageflow/stageflow/pkg/models"
	"github.com/stageflow/stageflow/pkg/persistence"
)

// InstanceRepository stores workflow instances as JSON values keyed by
// content UID. Version checks run inside WATCH transactions so concurrent
// writers surface as version conflicts.
type InstanceRepository struct {
	client redis.UniversalClient
}

// NewInstanceRepository creates a Redis-backed instance repository.
func NewInstanceRepository(client redis.UniversalClient) *InstanceRepository {
	return &InstanceRepository{client: client}
}

// GetByContentUID retrieves the workflow instance for the given content UID.
func (r *InstanceRepository) GetByContentUID(ctx context.Context, contentUID string) (*models.WorkflowInstance, error) {
	return r.read(ctx, r.client, "get", contentUID)
}

// Save stores a new workflow instance. It fails when the content UID is
// already tracked.
func (r *InstanceRepository) Save(ctx context.Context, instance *models.WorkflowInstance) error {
	if instance.Version == 0 {
		instance.Version = 1
	}

	payload, err := json.Marshal(instance)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow instance: %w", err)
	}

	var created *redis.BoolCmd

	// SAdd of an already tracked UID is a no-op, so the pipeline is safe even
	// when SetNX loses.
	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		created = p.SetNX(ctx, instanceKey(instance.ContentUID), payload, 0)
		p.SAdd(ctx, instancesKey(), instance.ContentUID)

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store workflow instance: %w", err)
	}

	if !created.Val() {
		return persistence.NewInstanceError("save", instance.ContentUID, persistence.ErrInstanceExists)
	}

	return nil
}

// Update writes back a modified instance. The stored version must match the
// incoming instance's Version; on success the version is bumped.
func (r *InstanceRepository) Update(ctx context.Context, instance *models.WorkflowInstance) error {
	key := instanceKey(instance.ContentUID)
	updated := instance.Clone()
	updated.Version++

	payload, err := json.Marshal(updated)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow instance: %w", err)
	}

	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		stored, err := r.read(ctx, tx, "update", instance.ContentUID)
		if err != nil {
			return err
		}

		if stored.Version != instance.Version {
			return &persistence.InstanceError{
				Op:         "update",
				ContentUID: instance.ContentUID,
				Err:        persistence.ErrVersionConflict,
				Message:    "instance was modified concurrently",
			}
		}

		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, payload, 0)

			return nil
		})

		return err
	}, key)
	if err != nil {
		// A failed WATCH means another writer committed between our read and
		// write, which makes the caller's version stale either way.
		if errors.Is(err, redis.TxFailedErr) {
			return &persistence.InstanceError{
				Op:         "update",
				ContentUID: instance.ContentUID,
				Err:        persistence.ErrVersionConflict,
				Message:    "instance was modified concurrently",
			}
		}

		return err
	}

	instance.Version = updated.Version

	return nil
}

// Delete removes the instance for the given content UID.
func (r *InstanceRepository) Delete(ctx context.Context, contentUID string) error {
	var deleted *redis.IntCmd

	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		deleted = p.Del(ctx, instanceKey(contentUID))
		p.SRem(ctx, instancesKey(), contentUID)

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete workflow instance: %w", err)
	}

	if deleted.Val() == 0 {
		return persistence.NewInstanceError("delete", contentUID, persistence.ErrInstanceNotFound)
	}

	return nil
}

// ListInstances returns one page of instances matching the options.
func (r *InstanceRepository) ListInstances(ctx context.Context, opts persistence.ListInstancesOptions) (*persistence.InstanceListResult, error) {
	uids, err := r.client.SMembers(ctx, instancesKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow instances: %w", err)
	}

	instances := make([]*models.WorkflowInstance, 0, len(uids))

	if len(uids) > 0 {
		keys := make([]string, len(uids))
		for i, uid := range uids {
			keys[i] = instanceKey(uid)
		}

		values, err := r.client.MGet(ctx, keys...).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read workflow instances: %w", err)
		}

		for _, value := range values {
			raw, ok := value.(string)
			if !ok {
				// Deleted between SMembers and MGet.
				continue
			}

			var instance models.WorkflowInstance

			err = json.Unmarshal([]byte(raw), &instance)
			if err != nil {
				return nil, fmt.Errorf("failed to unmarshal workflow instance: %w", err)
			}

			instances = append(instances, &instance)
		}
	}

	return persistence.ApplyListOptions(instances, opts)
}

func (r *InstanceRepository) read(ctx context.Context, c redis.Cmdable, op, contentUID string) (*models.WorkflowInstance, error) {
	val, err := c.Get(ctx, instanceKey(contentUID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, persistence.NewInstanceError(op, contentUID, persistence.ErrInstanceNotFound)
		}

		return nil, fmt.Errorf("failed to read workflow instance: %w", err)
	}

	var instance models.WorkflowInstance

	err = json.Unmarshal([]byte(val), &instance)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow instance: %w", err)
	}

	return &instance, nil
}
