package memory

import (
	"context"
	"sync"

	"github.com/stageflow/stageflow/pkg/models"
	"github.com/stageflow/stageflow/pkg/persistence"
)

// InstanceRepository stores workflow instances in a map guarded by a RWMutex.
// Every instance crossing the repository boundary is deep copied, so callers
// never alias stored state.
type InstanceRepository struct {
	mu        sync.RWMutex
	instances map[string]*models.WorkflowInstance
}

// NewInstanceRepository creates a new in-memory instance repository.
func NewInstanceRepository() *InstanceRepository {
	return &InstanceRepository{
		instances: make(map[string]*models.WorkflowInstance),
	}
}

// GetByContentUID returns a copy of the instance tracked for the content UID.
func (r *InstanceRepository) GetByContentUID(_ context.Context, contentUID string) (*models.WorkflowInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	instance, ok := r.instances[contentUID]
	if !ok {
		return nil, persistence.NewInstanceError("GetByContentUID", contentUID, persistence.ErrInstanceNotFound)
	}

	return instance.Clone(), nil
}

// Save stores a new instance. The content UID must not already be tracked.
func (r *InstanceRepository) Save(_ context.Context, instance *models.WorkflowInstance) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.instances[instance.ContentUID]; exists {
		return persistence.NewInstanceError("Save", instance.ContentUID, persistence.ErrInstanceExists)
	}

	if instance.Version == 0 {
		instance.Version = 1
	}

	r.instances[instance.ContentUID] = instance.Clone()

	return nil
}

// Update replaces a tracked instance when the stored version matches the
// incoming one, then bumps the version on both copies.
func (r *InstanceRepository) Update(_ context.Context, instance *models.WorkflowInstance) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.instances[instance.ContentUID]
	if !ok {
		return persistence.NewInstanceError("Update", instance.ContentUID, persistence.ErrInstanceNotFound)
	}

	if stored.Version != instance.Version {
		return &persistence.InstanceError{
			Op:         "Update",
			ContentUID: instance.ContentUID,
			Err:        persistence.ErrVersionConflict,
			Message:    "instance was modified concurrently",
		}
	}

	instance.Version++
	r.instances[instance.ContentUID] = instance.Clone()

	return nil
}

// Delete stops tracking the content UID.
func (r *InstanceRepository) Delete(_ context.Context, contentUID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.instances[contentUID]; !ok {
		return persistence.NewInstanceError("Delete", contentUID, persistence.ErrInstanceNotFound)
	}

	delete(r.instances, contentUID)

	return nil
}

// ListInstances returns paginated and filtered instances.
func (r *InstanceRepository) ListInstances(_ context.Context, opts persistence.ListInstancesOptions) (*persistence.InstanceListResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*models.WorkflowInstance, 0, len(r.instances))
	for _, instance := range r.instances {
		all = append(all, instance)
	}

	result, err := persistence.ApplyListOptions(all, opts)
	if err != nil {
		return nil, err
	}

	// Copy only the page being returned.
	for i, instance := range result.Instances {
		result.Instances[i] = instance.Clone()
	}

	return result, nil
}
