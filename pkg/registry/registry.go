// Package registry loads workflow templates, validates them, and serves them
// to the rest of the system. A template that fails any validation stage is
// rejected and never registered. The registry is populated during startup and
// frozen before serving traffic, after which every read is lock free.
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/go-playground/validator/v10"
	"github.com/stageflow/stageflow/pkg/models"
	"github.com/stageflow/stageflow/pkg/validation"
)

// Validation rule identifiers for issues raised before structural validation.
const (
	RuleDocument       = "document"
	RuleDocumentSchema = "document_schema"
	RuleStructField    = "struct_field"
)

// Filter narrows List and Summaries results. Zero values match everything.
type Filter struct {
	Category models.TemplateCategory
	Name     string // case-insensitive substring match
}

func (f Filter) matches(template *models.WorkflowTemplate) bool {
	if f.Category != "" && template.Category != f.Category {
		return false
	}

	if f.Name != "" && !strings.Contains(strings.ToLower(template.Name), strings.ToLower(f.Name)) {
		return false
	}

	return true
}

type Registry struct {
	logger   *slog.Logger
	validate *validator.Validate

	mu        sync.RWMutex
	frozen    atomic.Bool
	templates map[string]*models.WorkflowTemplate
	warnings  map[string][]models.ValidationIssue
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:    logger.With("module", "registry"),
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		templates: make(map[string]*models.WorkflowTemplate),
		warnings:  make(map[string][]models.ValidationIssue),
	}
}

// Register validates a template and stores it. The template passes struct
// validation and structural validation; warnings are retained but do not
// reject. Registering an already known ID fails, templates are immutable.
func (r *Registry) Register(template *models.WorkflowTemplate) error {
	if r.frozen.Load() {
		return NewTemplateError("Register", template.ID, ErrRegistryFrozen)
	}

	if err := r.validate.Struct(template); err != nil {
		return &TemplateError{
			Op:         "Register",
			TemplateID: template.ID,
			Err:        ErrTemplateInvalid,
			Issues:     structIssues(err),
		}
	}

	result := validation.Validate(template)
	if !result.Valid {
		return &TemplateError{
			Op:         "Register",
			TemplateID: template.ID,
			Err:        ErrTemplateInvalid,
			Issues:     result.Errors,
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.templates[template.ID]; exists {
		return NewTemplateError("Register", template.ID, ErrTemplateExists)
	}

	r.templates[template.ID] = template
	r.warnings[template.ID] = result.Warnings

	r.logger.Info("Registered workflow template",
		"template_id", template.ID,
		"name", template.Name,
		"category", template.Category,
		"states", len(template.States),
		"transitions", len(template.Transitions),
		"warnings", len(result.Warnings))

	return nil
}

// Freeze marks the end of the load phase. Registration attempts after Freeze
// fail and reads stop taking the lock.
func (r *Registry) Freeze() {
	r.mu.Lock()
	count := len(r.templates)
	r.mu.Unlock()

	r.frozen.Store(true)
	r.logger.Info("Template registry frozen", "templates", count)
}

// Get returns the template registered under the given ID. The returned
// template is shared and must not be mutated.
func (r *Registry) Get(id string) (*models.WorkflowTemplate, error) {
	if !r.frozen.Load() {
		r.mu.RLock()
		defer r.mu.RUnlock()
	}

	template, ok := r.templates[id]
	if !ok {
		return nil, NewTemplateError("Get", id, ErrTemplateNotFound)
	}

	return template, nil
}

// List returns registered templates matching the filter, ordered by ID.
func (r *Registry) List(filter Filter) []*models.WorkflowTemplate {
	if !r.frozen.Load() {
		r.mu.RLock()
		defer r.mu.RUnlock()
	}

	matched := make([]*models.WorkflowTemplate, 0, len(r.templates))
	for _, template := range r.templates {
		if filter.matches(template) {
			matched = append(matched, template)
		}
	}

	slices.SortFunc(matched, func(a, b *models.WorkflowTemplate) int {
		return strings.Compare(a.ID, b.ID)
	})

	return matched
}

// Summaries returns lightweight descriptions of templates matching the
// filter, ordered by ID.
func (r *Registry) Summaries(filter Filter) []models.TemplateSummary {
	templates := r.List(filter)

	summaries := make([]models.TemplateSummary, 0, len(templates))
	for _, template := range templates {
		summaries = append(summaries, template.Summary())
	}

	return summaries
}

// Warnings returns the non-fatal validation issues recorded when the template
// was registered.
func (r *Registry) Warnings(id string) ([]models.ValidationIssue, error) {
	if !r.frozen.Load() {
		r.mu.RLock()
		defer r.mu.RUnlock()
	}

	warnings, ok := r.warnings[id]
	if !ok {
		return nil, NewTemplateError("Warnings", id, ErrTemplateNotFound)
	}

	return warnings, nil
}

// HealthCheck reports whether the registry is ready to serve templates.
func (r *Registry) HealthCheck() (string, bool) {
	if !r.frozen.Load() {
		return "Template registry is still loading", false
	}

	if len(r.templates) == 0 {
		return "Template registry is frozen but holds no templates", false
	}

	return fmt.Sprintf("Template registry is healthy with %d templates", len(r.templates)), true
}

func structIssues(err error) []models.ValidationIssue {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return []models.ValidationIssue{{Rule: RuleStructField, Detail: err.Error()}}
	}

	issues := make([]models.ValidationIssue, 0, len(validationErrors))
	for _, fieldErr := range validationErrors {
		issues = append(issues, models.ValidationIssue{
			Rule:   RuleStructField,
			Detail: fmt.Sprintf("field %s failed on the '%s' rule", fieldErr.Namespace(), fieldErr.Tag()),
		})
	}

	return issues
}
