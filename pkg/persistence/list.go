package persistence

import (
	"fmt"
	"sort"

	"github.com/stageflow/stageflow/pkg/models"
)

// ApplyListOptions filters, sorts, and paginates an in-memory instance set.
// Backends without a query engine (memory, file) share it; SQL backends push
// the same semantics into their queries.
func ApplyListOptions(instances []*models.WorkflowInstance, opts ListInstancesOptions) (*InstanceListResult, error) {
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
	allowedSorts := map[string]bool{
		"applied_at":  true,
		"updated_at":  true,
		"content_uid": true,
	}
	if !allowedSorts[opts.SortBy] {
		return nil, fmt.Errorf("invalid sort field: %s", opts.SortBy)
	}

	filtered := make([]*models.WorkflowInstance, 0, len(instances))

	for _, instance := range instances {
		if opts.TemplateID != "" && instance.TemplateID != opts.TemplateID {
			continue
		}

		if opts.CurrentState != "" && instance.CurrentState != opts.CurrentState {
			continue
		}

		if opts.UpdatedBefore != nil && !instance.UpdatedAt.Before(*opts.UpdatedBefore) {
			continue
		}

		filtered = append(filtered, instance)
	}

	sortInstances(filtered, opts.SortBy, opts.SortOrder)

	totalCount := int64(len(filtered))
	startIdx := opts.Offset
	endIdx := opts.Offset + opts.Limit

	if startIdx >= len(filtered) {
		return &InstanceListResult{
			Instances:   make([]*models.WorkflowInstance, 0),
			TotalCount:  totalCount,
			HasNextPage: false,
		}, nil
	}

	if endIdx > len(filtered) {
		endIdx = len(filtered)
	}

	return &InstanceListResult{
		Instances:   filtered[startIdx:endIdx],
		TotalCount:  totalCount,
		HasNextPage: endIdx < len(filtered),
	}, nil
}

// sortInstances sorts instances in-place based on the specified field and order.
func sortInstances(instances []*models.WorkflowInstance, sortBy, sortOrder string) {
	sort.Slice(instances, func(i, j int) bool {
		var less bool

		switch sortBy {
		case "applied_at":
			less = instances[i].AppliedAt.Before(instances[j].AppliedAt)
		case "content_uid":
			less = instances[i].ContentUID < instances[j].ContentUID
		default:
			less = instances[i].UpdatedAt.Before(instances[j].UpdatedAt)
		}

		if sortOrder == "desc" {
			return !less
		}

		return less
	})
}
