package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/stageflow/stageflow/pkg/models"
	"github.com/stageflow/stageflow/pkg/persistence"
)

// InstanceRepository handles instance-related database operations.
type InstanceRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewInstanceRepository creates a new instance repository.
func NewInstanceRepository(db *sql.DB, logger *slog.Logger) *InstanceRepository {
	return &InstanceRepository{db: db, logger: logger}
}

const instanceColumns = `
	content_uid
  , template_id
  , current_state
  , role_assignments
  , history
  , backup
  , applied_at
  , updated_at
  , version
`

// GetByContentUID retrieves an instance by its content UID.
func (r *InstanceRepository) GetByContentUID(ctx context.Context, contentUID string) (*models.WorkflowInstance, error) {
	query := `SELECT ` + instanceColumns + ` FROM workflow_instances WHERE content_uid = $1`

	row := r.db.QueryRowContext(ctx, query, contentUID)

	instance, err := scanInstance(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewInstanceError("GetByContentUID", contentUID, persistence.ErrInstanceNotFound)
		}

		return nil, fmt.Errorf("failed to scan instance: %w", err)
	}

	return instance, nil
}

// Save stores a new instance. The content UID must not already be tracked.
func (r *InstanceRepository) Save(ctx context.Context, instance *models.WorkflowInstance) error {
	if instance.Version == 0 {
		instance.Version = 1
	}

	assignmentsJSON, historyJSON, backupJSON, err := marshalInstanceFields(instance)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO workflow_instances (content_uid, template_id, current_state,
role_assignments, history, backup, applied_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (content_uid) DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, query,
		instance.ContentUID,
		instance.TemplateID,
		instance.CurrentState,
		assignmentsJSON,
		historyJSON,
		backupJSON,
		instance.AppliedAt,
		instance.UpdatedAt,
		instance.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to save instance: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return persistence.NewInstanceError("Save", instance.ContentUID, persistence.ErrInstanceExists)
	}

	return nil
}

// Update replaces a stored instance when the stored version matches the
// incoming one, bumping the version atomically in the database.
func (r *InstanceRepository) Update(ctx context.Context, instance *models.WorkflowInstance) error {
	assignmentsJSON, historyJSON, backupJSON, err := marshalInstanceFields(instance)
	if err != nil {
		return err
	}

	query := `
		UPDATE workflow_instances SET
			template_id = $2,
			current_state = $3,
			role_assignments = $4,
			history = $5,
			backup = $6,
			applied_at = $7,
			updated_at = $8,
			version = version + 1
		WHERE content_uid = $1 AND version = $9
	`

	result, err := r.db.ExecContext(ctx, query,
		instance.ContentUID,
		instance.TemplateID,
		instance.CurrentState,
		assignmentsJSON,
		historyJSON,
		backupJSON,
		instance.AppliedAt,
		instance.UpdatedAt,
		instance.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update instance: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		// Distinguish a missing instance from a concurrent modification.
		var exists bool

		err := r.db.QueryRowContext(ctx,
			"SELECT EXISTS (SELECT 1 FROM workflow_instances WHERE content_uid = $1)",
			instance.ContentUID,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check instance existence: %w", err)
		}

		if !exists {
			return persistence.NewInstanceError("Update", instance.ContentUID, persistence.ErrInstanceNotFound)
		}

		return &persistence.InstanceError{
			Op:         "Update",
			ContentUID: instance.ContentUID,
			Err:        persistence.ErrVersionConflict,
			Message:    "instance was modified concurrently",
		}
	}

	instance.Version++

	return nil
}

// Delete removes an instance by its content UID.
func (r *InstanceRepository) Delete(ctx context.Context, contentUID string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM workflow_instances WHERE content_uid = $1", contentUID)
	if err != nil {
		return fmt.Errorf("failed to delete instance: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return persistence.NewInstanceError("Delete", contentUID, persistence.ErrInstanceNotFound)
	}

	return nil
}

// ListInstances returns paginated and filtered instances.
func (r *InstanceRepository) ListInstances(ctx context.Context, opts persistence.ListInstancesOptions) (*persistence.InstanceListResult, error) {
	// Set defaults
	if opts.Limit <= 0 || opts.Limit > 100 {
		opts.Limit = 20
	}

	if opts.SortBy == "" {
		opts.SortBy = "updated_at"
	}

	if opts.SortOrder == "" {
		opts.SortOrder = "desc"
	}

	// Validate sort parameters against allowlist (security)
	allowedSorts := map[string]string{
		"applied_at":  "applied_at",
		"updated_at":  "updated_at",
		"content_uid": "content_uid",
	}

	sortColumn, ok := allowedSorts[opts.SortBy]
	if !ok {
		return nil, fmt.Errorf("invalid sort field: %s", opts.SortBy)
	}

	sortDirection := "DESC"
	if strings.EqualFold(opts.SortOrder, "asc") {
		sortDirection = "ASC"
	}

	conditions := make([]string, 0, 3)
	args := make([]any, 0, 5)

	if opts.TemplateID != "" {
		args = append(args, opts.TemplateID)
		conditions = append(conditions, "template_id = $"+strconv.Itoa(len(args)))
	}

	if opts.CurrentState != "" {
		args = append(args, opts.CurrentState)
		conditions = append(conditions, "current_state = $"+strconv.Itoa(len(args)))
	}

	if opts.UpdatedBefore != nil {
		args = append(args, *opts.UpdatedBefore)
		conditions = append(conditions, "updated_at < $"+strconv.Itoa(len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var totalCount int64

	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM workflow_instances"+where, args...).Scan(&totalCount)
	if err != nil {
		return nil, fmt.Errorf("failed to count instances: %w", err)
	}

	args = append(args, opts.Limit, opts.Offset)
	query := `SELECT ` + instanceColumns + ` FROM workflow_instances` + where +
		fmt.Sprintf(" ORDER BY %s %s LIMIT $%d OFFSET $%d", sortColumn, sortDirection, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query instances: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	instances := make([]*models.WorkflowInstance, 0)

	for rows.Next() {
		instance, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan instance: %w", err)
		}

		instances = append(instances, instance)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating instances: %w", err)
	}

	return &persistence.InstanceListResult{
		Instances:   instances,
		TotalCount:  totalCount,
		HasNextPage: int64(opts.Offset+len(instances)) < totalCount,
	}, nil
}

// scanner abstracts sql.Row and sql.Rows for shared scan logic.
type scanner interface {
	Scan(dest ...any) error
}

func scanInstance(row scanner) (*models.WorkflowInstance, error) {
	var (
		instance        models.WorkflowInstance
		assignmentsJSON []byte
		historyJSON     []byte
		backupJSON      []byte
	)

	err := row.Scan(
		&instance.ContentUID,
		&instance.TemplateID,
		&instance.CurrentState,
		&assignmentsJSON,
		&historyJSON,
		&backupJSON,
		&instance.AppliedAt,
		&instance.UpdatedAt,
		&instance.Version,
	)
	if err != nil {
		return nil, err
	}

	if assignmentsJSON != nil {
		if err := json.Unmarshal(assignmentsJSON, &instance.RoleAssignments); err != nil {
			return nil, fmt.Errorf("failed to unmarshal role assignments: %w", err)
		}
	}

	if historyJSON != nil {
		if err := json.Unmarshal(historyJSON, &instance.History); err != nil {
			return nil, fmt.Errorf("failed to unmarshal history: %w", err)
		}
	}

	if backupJSON != nil {
		if err := json.Unmarshal(backupJSON, &instance.Backup); err != nil {
			return nil, fmt.Errorf("failed to unmarshal backup: %w", err)
		}
	}

	return &instance, nil
}

func marshalInstanceFields(instance *models.WorkflowInstance) (assignments, history, backup []byte, err error) {
	assignments, err = json.Marshal(instance.RoleAssignments)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal role assignments: %w", err)
	}

	history, err = json.Marshal(instance.History)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal history: %w", err)
	}

	if instance.Backup != nil {
		backup, err = json.Marshal(instance.Backup)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to marshal backup: %w", err)
		}
	}

	return assignments, history, backup, nil
}
