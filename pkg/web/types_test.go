package web_test

import (
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stageflow/stageflow/pkg/models"
	"github.com/stageflow/stageflow/pkg/web"
)

func TestApplyTemplateRequest_Validation(t *testing.T) {
	t.Parallel()

	v := validator.New()

	tests := []struct {
		name      string
		request   web.ApplyTemplateRequest
		wantErr   bool
		errFields []string
	}{
		{
			name: "valid request",
			request: web.ApplyTemplateRequest{
				TemplateID: "simple_review",
				RoleAssignments: map[string][]string{
					"author": {"u-author"},
					"editor": {"u-editor"},
				},
				Force:          true,
				BackupExisting: true,
			},
			wantErr: false,
		},
		{
			name: "missing template id",
			request: web.ApplyTemplateRequest{
				RoleAssignments: map[string][]string{"author": {"u-author"}},
			},
			wantErr:   true,
			errFields: []string{"TemplateID"},
		},
		{
			name: "missing role assignments",
			request: web.ApplyTemplateRequest{
				TemplateID: "simple_review",
			},
			wantErr:   true,
			errFields: []string{"RoleAssignments"},
		},
		{
			name:      "multiple validation errors",
			request:   web.ApplyTemplateRequest{},
			wantErr:   true,
			errFields: []string{"TemplateID", "RoleAssignments"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := v.Struct(tt.request)

			if tt.wantErr {
				require.Error(t, err)

				var validationErrors validator.ValidationErrors
				if errors.As(err, &validationErrors) {
					errorFields := make(map[string]bool)
					for _, fieldErr := range validationErrors {
						errorFields[fieldErr.Field()] = true
					}

					for _, expectedField := range tt.errFields {
						assert.True(t, errorFields[expectedField], "Expected validation error for field %s", expectedField)
					}
				} else {
					t.Fatalf("Expected validator.ValidationErrors, got %T", err)
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestExecuteTransitionRequest_Validation(t *testing.T) {
	t.Parallel()

	v := validator.New()

	tests := []struct {
		name    string
		request web.ExecuteTransitionRequest
		wantErr bool
	}{
		{
			name:    "valid request",
			request: web.ExecuteTransitionRequest{TransitionID: "submit_for_review", Comments: "done"},
			wantErr: false,
		},
		{
			name:    "comments are optional",
			request: web.ExecuteTransitionRequest{TransitionID: "submit_for_review"},
			wantErr: false,
		},
		{
			name:    "missing transition id",
			request: web.ExecuteTransitionRequest{Comments: "done"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := v.Struct(tt.request)

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestApplyTemplateRequest_Assignments(t *testing.T) {
	t.Parallel()

	request := web.ApplyTemplateRequest{
		TemplateID: "simple_review",
		RoleAssignments: map[string][]string{
			"author":   {"u1", "u2"},
			"editor":   {"u3"},
			"sidekick": {"u4"},
		},
	}

	assignments := request.Assignments()

	assert.Equal(t, []string{"u1", "u2"}, assignments[models.RoleAuthor])
	assert.Equal(t, []string{"u3"}, assignments[models.RoleEditor])

	// Unknown role names survive the conversion; rejecting them with a
	// detailed error is the engine's job.
	assert.Equal(t, []string{"u4"}, assignments[models.Role("sidekick")])
	assert.Len(t, assignments, 3)
}
