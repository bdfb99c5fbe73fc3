package services

import (
	"context"
	"strings"

	"github.com/stageflow/stageflow/pkg/models"
	"github.com/stageflow/stageflow/pkg/registry"
)

// Template serves read access to the registered workflow templates. The
// registry is loaded and frozen at startup, so every method here is a pure
// read.
type Template struct {
	registry *registry.Registry
}

// NewTemplate creates a new template service.
func NewTemplate(reg *registry.Registry) *Template {
	return &Template{registry: reg}
}

// ListTemplatesRequest filters the template listing. Zero values match
// everything.
type ListTemplatesRequest struct {
	Category string
	Name     string
}

// ListTemplates returns summaries of the registered templates matching the
// request, ordered by ID.
func (t *Template) ListTemplates(_ context.Context, req ListTemplatesRequest) ([]models.TemplateSummary, error) {
	category := models.TemplateCategory(strings.TrimSpace(req.Category))
	if category != "" && !category.Valid() {
		return nil, NewValidationError(
			"ListTemplates",
			"INVALID_CATEGORY",
			"unknown category '"+string(category)+"'",
			ErrInvalidRequest,
		)
	}

	return t.registry.Summaries(registry.Filter{
		Category: category,
		Name:     strings.TrimSpace(req.Name),
	}), nil
}

// GetTemplate returns the full template definition.
func (t *Template) GetTemplate(_ context.Context, id string) (*models.WorkflowTemplate, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrEmptyTemplateID
	}

	return t.registry.Get(id)
}

// GetTemplateWarnings returns the non-fatal validation issues recorded when
// the template was registered.
func (t *Template) GetTemplateWarnings(_ context.Context, id string) ([]models.ValidationIssue, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrEmptyTemplateID
	}

	return t.registry.Warnings(id)
}
