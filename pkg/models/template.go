// Package models defines the core domain model for role-based content
// lifecycle workflows: immutable templates, per-content instances, and the
// audit records produced when instances change.
package models

// StateType classifies a workflow state within the content lifecycle.
type StateType string

const (
	StateTypeDraft     StateType = "draft"
	StateTypeReview    StateType = "review"
	StateTypeRevision  StateType = "revision"
	StateTypeApproved  StateType = "approved"
	StateTypePublished StateType = "published"
	StateTypeArchived  StateType = "archived"
	StateTypeRejected  StateType = "rejected"
)

// Valid reports whether the state type belongs to the closed enum.
func (s StateType) Valid() bool {
	switch s {
	case StateTypeDraft, StateTypeReview, StateTypeRevision, StateTypeApproved,
		StateTypePublished, StateTypeArchived, StateTypeRejected:
		return true
	}

	return false
}

// TemplateCategory groups templates by the editorial context they serve.
type TemplateCategory string

const (
	CategoryEducational TemplateCategory = "educational"
	CategoryCorporate   TemplateCategory = "corporate"
	CategoryResearch    TemplateCategory = "research"
)

// Valid reports whether the category belongs to the closed enum.
func (c TemplateCategory) Valid() bool {
	switch c {
	case CategoryEducational, CategoryCorporate, CategoryResearch:
		return true
	}

	return false
}

// WorkflowTemplate is an immutable definition of a content workflow: a state
// graph plus the role permissions that gate movement through it. Templates are
// structurally validated once at load time and never mutated afterwards, so
// they may be read concurrently without locking.
type WorkflowTemplate struct {
	ID                 string                `json:"id"                  validate:"required,min=2"`
	Name               string                `json:"name"                validate:"required,min=3"`
	Description        string                `json:"description"`
	Category           TemplateCategory      `json:"category"            validate:"required"`
	Version            string                `json:"version"             validate:"required"`
	States             []*WorkflowState      `json:"states"              validate:"required,min=2,dive,required"`
	Transitions        []*WorkflowTransition `json:"transitions"         validate:"required,min=1,dive,required"`
	DefaultPermissions map[Role][]Action     `json:"default_permissions,omitempty"`
	Metadata           map[string]any        `json:"metadata,omitempty"`
}

// WorkflowState is a node in a template's state graph.
type WorkflowState struct {
	ID          string            `json:"id"          validate:"required,min=2"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Type        StateType         `json:"state_type"  validate:"required"`
	Permissions []StatePermission `json:"permissions,omitempty"`
	Initial     bool              `json:"is_initial"`
	Final       bool              `json:"is_final"`
	UIMetadata  map[string]any    `json:"ui_metadata,omitempty"`
}

// StatePermission grants a role a set of actions while content sits in the
// owning state. It overrides the template's default permissions for that role.
type StatePermission struct {
	Role    Role     `json:"role"    validate:"required"`
	Actions []Action `json:"actions" validate:"required"`
}

// WorkflowTransition is a directed, role-gated edge between two states.
type WorkflowTransition struct {
	ID           string                `json:"id"            validate:"required"`
	Title        string                `json:"title"`
	FromState    string                `json:"from_state"    validate:"required"`
	ToState      string                `json:"to_state"      validate:"required"`
	RequiredRole Role                  `json:"required_role" validate:"required"`
	Conditions   *TransitionConditions `json:"conditions,omitempty"`
}

// TransitionConditions are runtime preconditions checked when a transition is
// executed. They are deliberately typed rather than free-form maps so unknown
// condition keys fail at template load, not silently at runtime.
type TransitionConditions struct {
	// RequireComments rejects the transition unless the caller supplies a
	// non-empty comment.
	RequireComments bool `json:"require_comments,omitempty"`

	// MinContentLength rejects the transition while the content body is
	// shorter than this many characters. Zero disables the check.
	MinContentLength int `json:"min_content_length,omitempty"`
}

// Empty reports whether no condition is configured.
func (c *TransitionConditions) Empty() bool {
	return c == nil || (!c.RequireComments && c.MinContentLength <= 0)
}

// State returns the state with the given id, or nil.
func (t *WorkflowTemplate) State(id string) *WorkflowState {
	for _, state := range t.States {
		if state.ID == id {
			return state
		}
	}

	return nil
}

// Transition returns the transition with the given id, or nil.
func (t *WorkflowTemplate) Transition(id string) *WorkflowTransition {
	for _, transition := range t.Transitions {
		if transition.ID == id {
			return transition
		}
	}

	return nil
}

// InitialState returns the state marked initial, or nil for malformed
// templates. Validated templates have exactly one.
func (t *WorkflowTemplate) InitialState() *WorkflowState {
	for _, state := range t.States {
		if state.Initial {
			return state
		}
	}

	return nil
}

// FinalStates returns every state marked final.
func (t *WorkflowTemplate) FinalStates() []*WorkflowState {
	finals := make([]*WorkflowState, 0, 1)

	for _, state := range t.States {
		if state.Final {
			finals = append(finals, state)
		}
	}

	return finals
}

// ReferencedRoles returns every role the template mentions: in state
// permissions, in default permissions, or as a transition's required role.
// Applying the template requires an assignment for each of them.
func (t *WorkflowTemplate) ReferencedRoles() []Role {
	seen := make(map[Role]bool)

	for _, state := range t.States {
		for _, perm := range state.Permissions {
			seen[perm.Role] = true
		}
	}

	for role := range t.DefaultPermissions {
		seen[role] = true
	}

	for _, transition := range t.Transitions {
		seen[transition.RequiredRole] = true
	}

	roles := make([]Role, 0, len(seen))

	for _, role := range Roles() {
		if seen[role] {
			roles = append(roles, role)
		}
	}

	return roles
}

// TemplateSummary is the list-view projection of a template.
type TemplateSummary struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Category    TemplateCategory `json:"category"`
	Version     string           `json:"version"`
	States      int              `json:"states"`
	Transitions int              `json:"transitions"`
}

// Summary builds the list-view projection of the template.
func (t *WorkflowTemplate) Summary() TemplateSummary {
	return TemplateSummary{
		ID:          t.ID,
		Name:        t.Name,
		Description: t.Description,
		Category:    t.Category,
		Version:     t.Version,
		States:      len(t.States),
		Transitions: len(t.Transitions),
	}
}
