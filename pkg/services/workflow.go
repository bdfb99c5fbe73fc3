package services

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/stageflow/stageflow/pkg/engine"
	"github.com/stageflow/stageflow/pkg/models"
	"github.com/stageflow/stageflow/pkg/persistence"
)

// Workflow handles workflow-related business operations: applying templates,
// moving content through transitions, and querying live instances and their
// audit trails. It validates request shape before handing off to the engine,
// which owns the domain rules.
type Workflow struct {
	engine      *engine.Engine
	persistence persistence.Persistence
}

// NewWorkflow creates a new workflow service.
func NewWorkflow(eng *engine.Engine, store persistence.Persistence) *Workflow {
	return &Workflow{
		engine:      eng,
		persistence: store,
	}
}

// HealthCheck checks the health of the persistence layer.
func (w *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	if w.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := w.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// Apply validates the request shape and applies a template to content.
func (w *Workflow) Apply(ctx context.Context, req engine.ApplyRequest) (*engine.ApplyResult, error) {
	if strings.TrimSpace(req.TemplateID) == "" {
		return nil, ErrEmptyTemplateID
	}

	if strings.TrimSpace(req.ContentUID) == "" {
		return nil, ErrEmptyContentUID
	}

	if strings.TrimSpace(req.ActorID) == "" {
		return nil, ErrEmptyActorID
	}

	return w.engine.ApplyTemplate(ctx, req)
}

// Transition validates the request shape and executes a transition.
func (w *Workflow) Transition(ctx context.Context, req engine.TransitionRequest) (*engine.TransitionResult, error) {
	if strings.TrimSpace(req.ContentUID) == "" {
		return nil, ErrEmptyContentUID
	}

	if strings.TrimSpace(req.TransitionID) == "" {
		return nil, ErrEmptyTransition
	}

	if strings.TrimSpace(req.ActorID) == "" {
		return nil, ErrEmptyActorID
	}

	if !req.ActingRole.Valid() {
		return nil, NewValidationError(
			"Transition",
			"INVALID_ROLE",
			fmt.Sprintf("unknown role '%s'", req.ActingRole),
			ErrInvalidRole,
		)
	}

	return w.engine.ExecuteTransition(ctx, req)
}

// Remove validates the request shape and detaches a workflow from content.
func (w *Workflow) Remove(ctx context.Context, req engine.RemoveRequest) (*engine.RemoveResult, error) {
	if strings.TrimSpace(req.ContentUID) == "" {
		return nil, ErrEmptyContentUID
	}

	if strings.TrimSpace(req.ActorID) == "" {
		return nil, ErrEmptyActorID
	}

	return w.engine.RemoveTemplate(ctx, req)
}

// State reports the workflow position of a piece of content for a role.
func (w *Workflow) State(ctx context.Context, contentUID string, role models.Role) (*engine.StateView, error) {
	if strings.TrimSpace(contentUID) == "" {
		return nil, ErrEmptyContentUID
	}

	if !role.Valid() {
		return nil, NewValidationError(
			"State",
			"INVALID_ROLE",
			fmt.Sprintf("unknown role '%s'", role),
			ErrInvalidRole,
		)
	}

	return w.engine.GetState(ctx, contentUID, role)
}

// ListInstancesRequest contains options for listing workflow instances.
type ListInstancesRequest struct {
	// Pagination
	Limit  int
	Offset int

	// Filtering
	TemplateID    string
	CurrentState  string
	UpdatedBefore *time.Time

	// Sorting
	SortBy    string
	SortOrder string
}

// ListInstancesResponse contains the result of listing workflow instances.
type ListInstancesResponse struct {
	Instances   []*models.WorkflowInstance `json:"instances"`
	TotalCount  int64                      `json:"total_count"`
	HasNextPage bool                       `json:"has_next_page"`
}

// ListInstances retrieves workflow instances with filtering, sorting, and pagination.
func (w *Workflow) ListInstances(ctx context.Context, req ListInstancesRequest) (*ListInstancesResponse, error) {
	if err := w.validateListInstancesRequest(&req); err != nil {
		return nil, err
	}

	opts := persistence.ListInstancesOptions{
		Limit:         req.Limit,
		Offset:        req.Offset,
		TemplateID:    req.TemplateID,
		CurrentState:  req.CurrentState,
		UpdatedBefore: req.UpdatedBefore,
		SortBy:        req.SortBy,
		SortOrder:     req.SortOrder,
	}

	result, err := w.persistence.InstanceRepository().ListInstances(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}

	return &ListInstancesResponse{
		Instances:   result.Instances,
		TotalCount:  result.TotalCount,
		HasNextPage: result.HasNextPage,
	}, nil
}

// validateListInstancesRequest validates and sets defaults for the request.
func (w *Workflow) validateListInstancesRequest(req *ListInstancesRequest) error {
	// Set defaults
	if req.Limit <= 0 {
		req.Limit = 20
	}

	if req.Limit > 100 {
		req.Limit = 100
	}

	if req.Offset < 0 {
		req.Offset = 0
	}

	if req.SortBy == "" {
		req.SortBy = "updated_at"
	}

	if req.SortOrder == "" {
		req.SortOrder = "desc"
	}

	// Validate sort parameters against allowlist
	allowedSorts := []string{"applied_at", "updated_at", "content_uid"}

	if !slices.Contains(allowedSorts, req.SortBy) {
		return NewValidationError(
			"validateListInstancesRequest",
			"INVALID_SORT_FIELD",
			fmt.Sprintf("invalid sort field '%s', allowed: %s", req.SortBy, strings.Join(allowedSorts, ", ")),
			ErrInvalidSortField,
		)
	}

	if req.SortOrder != "asc" && req.SortOrder != "desc" {
		return NewValidationError(
			"validateListInstancesRequest",
			"INVALID_SORT_ORDER",
			fmt.Sprintf("invalid sort order '%s', allowed: asc, desc", req.SortOrder),
			ErrInvalidSortOrder,
		)
	}

	return nil
}

// AuditTrailRequest selects an audit trail by content UID or by user ID.
// Exactly one filter must be set.
type AuditTrailRequest struct {
	ContentUID string
	UserID     string
}

// AuditTrail retrieves the audit entries matching the request, oldest first.
func (w *Workflow) AuditTrail(ctx context.Context, req AuditTrailRequest) ([]*models.AuditEntry, error) {
	byContent := strings.TrimSpace(req.ContentUID) != ""
	byUser := strings.TrimSpace(req.UserID) != ""

	switch {
	case byContent && byUser:
		return nil, ErrAmbiguousAuditQuery
	case byContent:
		entries, err := w.persistence.AuditRepository().EntriesByContentUID(ctx, req.ContentUID)
		if err != nil {
			return nil, fmt.Errorf("failed to query audit trail: %w", err)
		}

		return entries, nil
	case byUser:
		entries, err := w.persistence.AuditRepository().EntriesByUser(ctx, req.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to query audit trail: %w", err)
		}

		return entries, nil
	default:
		return nil, ErrEmptyAuditQuery
	}
}
