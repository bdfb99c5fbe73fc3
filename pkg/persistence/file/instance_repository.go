package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sync"

	"github.com/stageflow/stageflow/pkg/models"
	"github.com/stageflow/stageflow/pkg/persistence"
)

// InstanceRepository handles instance-related file operations. A process-wide
// mutex serializes writes; the version check guards against a second process
// sharing the same directory.
type InstanceRepository struct {
	root string // File system root for storing instances
	mu   sync.Mutex
}

// NewInstanceRepository creates a new instance repository.
func NewInstanceRepository(root string) *InstanceRepository {
	return &InstanceRepository{root: root}
}

// GetByContentUID retrieves an instance by its content UID from the file system.
func (ir *InstanceRepository) GetByContentUID(_ context.Context, contentUID string) (*models.WorkflowInstance, error) {
	return ir.read(contentUID, "GetByContentUID")
}

// Save stores a new instance. The content UID must not already be tracked.
func (ir *InstanceRepository) Save(_ context.Context, instance *models.WorkflowInstance) error {
	ir.mu.Lock()
	defer ir.mu.Unlock()

	if _, err := os.Stat(ir.instancePath(instance.ContentUID)); err == nil {
		return persistence.NewInstanceError("Save", instance.ContentUID, persistence.ErrInstanceExists)
	}

	if instance.Version == 0 {
		instance.Version = 1
	}

	return ir.write(instance)
}

// Update replaces a stored instance when the stored version matches the
// incoming one, then bumps the version.
func (ir *InstanceRepository) Update(_ context.Context, instance *models.WorkflowInstance) error {
	ir.mu.Lock()
	defer ir.mu.Unlock()

	stored, err := ir.read(instance.ContentUID, "Update")
	if err != nil {
		return err
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

	return ir.write(instance)
}

// Delete removes an instance by its content UID.
func (ir *InstanceRepository) Delete(_ context.Context, contentUID string) error {
	ir.mu.Lock()
	defer ir.mu.Unlock()

	err := os.Remove(ir.instancePath(contentUID))
	if err != nil {
		if os.IsNotExist(err) {
			return persistence.NewInstanceError("Delete", contentUID, persistence.ErrInstanceNotFound)
		}

		return fmt.Errorf("failed to delete instance %s: %w", contentUID, err)
	}

	return nil
}

// ListInstances returns paginated and filtered instances with in-memory operations.
func (ir *InstanceRepository) ListInstances(_ context.Context, opts persistence.ListInstancesOptions) (*persistence.InstanceListResult, error) {
	root := os.DirFS(path.Join(ir.root, "instances"))

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list instance files: %w", err)
	}

	all := make([]*models.WorkflowInstance, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		contentUID := file[:len(file)-5] // Remove .json extension

		instance, err := ir.read(contentUID, "ListInstances")
		if err != nil {
			if persistence.IsInstanceNotFound(err) {
				continue
			}

			return nil, err
		}

		all = append(all, instance)
	}

	return persistence.ApplyListOptions(all, opts)
}

func (ir *InstanceRepository) instancePath(contentUID string) string {
	return filepath.Clean(path.Join(ir.root, "instances", contentUID+".json"))
}

func (ir *InstanceRepository) read(contentUID, op string) (*models.WorkflowInstance, error) {
	body, err := os.ReadFile(ir.instancePath(contentUID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewInstanceError(op, contentUID, persistence.ErrInstanceNotFound)
		}

		return nil, fmt.Errorf("failed to fetch instance %s: %w", contentUID, err)
	}

	var instance models.WorkflowInstance

	err = json.Unmarshal(body, &instance)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal instance %s: %w", contentUID, err)
	}

	return &instance, nil
}

func (ir *InstanceRepository) write(instance *models.WorkflowInstance) error {
	err := os.MkdirAll(path.Join(ir.root, "instances"), 0750)
	if err != nil {
		return fmt.Errorf("failed to create instances directory: %w", err)
	}

	data, err := json.MarshalIndent(instance, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal instance %s: %w", instance.ContentUID, err)
	}

	return os.WriteFile(ir.instancePath(instance.ContentUID), data, 0600)
}
