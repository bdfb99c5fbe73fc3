package registry

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stageflow/stageflow/pkg/models"
	"github.com/stageflow/stageflow/pkg/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func editorialTemplate() *models.WorkflowTemplate {
	return &models.WorkflowTemplate{
		ID:       "editorial_review",
		Name:     "Editorial Review",
		Category: models.CategoryEducational,
		Version:  "1.0.0",
		States: []*models.WorkflowState{
			{ID: "draft", Title: "Draft", Type: models.StateTypeDraft, Initial: true},
			{ID: "review", Title: "In Review", Type: models.StateTypeReview},
			{ID: "published", Title: "Published", Type: models.StateTypePublished, Final: true},
		},
		Transitions: []*models.WorkflowTransition{
			{ID: "submit_for_review", Title: "Submit", FromState: "draft", ToState: "review", RequiredRole: models.RoleAuthor},
			{ID: "approve_content", Title: "Approve", FromState: "review", ToState: "published", RequiredRole: models.RoleEditor},
		},
	}
}

const editorialDocument = `{
	"id": "editorial_review",
	"name": "Editorial Review",
	"category": "educational",
	"version": "1.0.0",
	"states": [
		{"id": "draft", "title": "Draft", "state_type": "draft", "is_initial": true},
		{"id": "review", "title": "In Review", "state_type": "review"},
		{"id": "published", "title": "Published", "state_type": "published", "is_final": true}
	],
	"transitions": [
		{"id": "submit_for_review", "title": "Submit", "from_state": "draft", "to_state": "review", "required_role": "author"},
		{"id": "approve_content", "title": "Approve", "from_state": "review", "to_state": "published", "required_role": "editor",
		 "conditions": {"require_comments": true}}
	]
}`

func TestRegistry_RegisterAndGet(t *testing.T) {
	reg := NewRegistry(slog.Default())

	err := reg.Register(editorialTemplate())
	require.NoError(t, err)

	template, err := reg.Get("editorial_review")
	require.NoError(t, err)
	assert.Equal(t, "Editorial Review", template.Name)

	_, err = reg.Get("missing")
	require.Error(t, err)
	assert.True(t, IsTemplateNotFound(err))
}

func TestRegistry_DuplicateRegistration(t *testing.T) {
	reg := NewRegistry(slog.Default())

	require.NoError(t, reg.Register(editorialTemplate()))

	err := reg.Register(editorialTemplate())
	require.Error(t, err)
	assert.True(t, IsTemplateExists(err))
}

func TestRegistry_RejectsStructurallyInvalidTemplate(t *testing.T) {
	reg := NewRegistry(slog.Default())

	template := editorialTemplate()
	template.States[0].Initial = false

	err := reg.Register(template)
	require.Error(t, err)
	assert.True(t, IsTemplateInvalid(err))

	issues := IssuesOf(err)
	require.NotEmpty(t, issues)
	assert.Equal(t, validation.RuleInitialState, issues[0].Rule)

	_, err = reg.Get("editorial_review")
	assert.True(t, IsTemplateNotFound(err))
}

func TestRegistry_RejectsMissingFields(t *testing.T) {
	reg := NewRegistry(slog.Default())

	template := editorialTemplate()
	template.Name = ""

	err := reg.Register(template)
	require.Error(t, err)
	assert.True(t, IsTemplateInvalid(err))
	assert.NotEmpty(t, IssuesOf(err))
}

func TestRegistry_RegisterDocument(t *testing.T) {
	reg := NewRegistry(slog.Default())

	template, err := reg.RegisterDocument([]byte(editorialDocument))
	require.NoError(t, err)
	assert.Equal(t, "editorial_review", template.ID)

	approve := template.Transition("approve_content")
	require.NotNil(t, approve)
	require.NotNil(t, approve.Conditions)
	assert.True(t, approve.Conditions.RequireComments)
}

func TestRegistry_RegisterDocumentRejectsUnknownFields(t *testing.T) {
	reg := NewRegistry(slog.Default())

	document := `{
		"id": "mystery",
		"name": "Mystery",
		"category": "educational",
		"version": "1.0.0",
		"self_destruct": true,
		"states": [
			{"id": "draft", "state_type": "draft", "is_initial": true},
			{"id": "done", "state_type": "published", "is_final": true}
		],
		"transitions": [
			{"id": "finish", "from_state": "draft", "to_state": "done", "required_role": "author"}
		]
	}`

	_, err := reg.RegisterDocument([]byte(document))
	require.Error(t, err)
	assert.True(t, IsTemplateInvalid(err))
}

func TestRegistry_RegisterDocumentRejectsBadShape(t *testing.T) {
	reg := NewRegistry(slog.Default())

	// No states, no transitions, bad version: the document schema rejects it
	// before the model is ever decoded.
	document := `{"id": "broken", "name": "Broken", "category": "educational", "version": "one"}`

	_, err := reg.RegisterDocument([]byte(document))
	require.Error(t, err)
	assert.True(t, IsTemplateInvalid(err))

	issues := IssuesOf(err)
	require.NotEmpty(t, issues)
	assert.Equal(t, RuleDocumentSchema, issues[0].Rule)
}

func TestRegistry_RegisterDocumentRejectsMalformedJSON(t *testing.T) {
	reg := NewRegistry(slog.Default())

	_, err := reg.RegisterDocument([]byte(`{"id": "oops"`))
	require.Error(t, err)
	assert.True(t, IsTemplateInvalid(err))
}

func TestRegistry_LoadDirectory(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "editorial.json"), []byte(editorialDocument), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not a template"), 0o600))

	reg := NewRegistry(slog.Default())

	loaded, err := reg.LoadDirectory(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded)

	_, err = reg.Get("editorial_review")
	assert.NoError(t, err)
}

func TestRegistry_LoadDirectoryStopsOnInvalidDocument(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte(`{"id": "bad"}`), 0o600))

	reg := NewRegistry(slog.Default())

	_, err := reg.LoadDirectory(dir)
	require.Error(t, err)
	assert.True(t, IsTemplateInvalid(err))
}

func TestRegistry_FreezeBlocksRegistration(t *testing.T) {
	reg := NewRegistry(slog.Default())

	require.NoError(t, reg.Register(editorialTemplate()))
	reg.Freeze()

	err := reg.Register(&models.WorkflowTemplate{ID: "late"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRegistryFrozen)

	// Reads keep working after the freeze.
	template, err := reg.Get("editorial_review")
	require.NoError(t, err)
	assert.Equal(t, "editorial_review", template.ID)
}

func TestRegistry_ListAndSummaries(t *testing.T) {
	reg := NewRegistry(slog.Default())

	require.NoError(t, reg.Register(editorialTemplate()))

	second := editorialTemplate()
	second.ID = "corporate_signoff"
	second.Name = "Corporate Signoff"
	second.Category = models.CategoryCorporate
	require.NoError(t, reg.Register(second))

	all := reg.List(Filter{})
	require.Len(t, all, 2)
	assert.Equal(t, "corporate_signoff", all[0].ID)
	assert.Equal(t, "editorial_review", all[1].ID)

	corporate := reg.List(Filter{Category: models.CategoryCorporate})
	require.Len(t, corporate, 1)
	assert.Equal(t, "corporate_signoff", corporate[0].ID)

	named := reg.Summaries(Filter{Name: "editorial"})
	require.Len(t, named, 1)
	assert.Equal(t, "editorial_review", named[0].ID)
	assert.Equal(t, 3, named[0].States)
}

func TestRegistry_WarningsRetained(t *testing.T) {
	reg := NewRegistry(slog.Default())

	template := editorialTemplate()
	template.States[1].Permissions = []models.StatePermission{
		{Role: models.RoleEditor, Actions: []models.Action{models.ActionManageWorkflow}},
	}

	require.NoError(t, reg.Register(template))

	warnings, err := reg.Warnings(template.ID)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, validation.RulePrivilegedGrant, warnings[0].Rule)

	_, err = reg.Warnings("missing")
	assert.True(t, IsTemplateNotFound(err))
}
