package file

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stageflow/stageflow/pkg/models"
	"github.com/stageflow/stageflow/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testInstance(contentUID string) *models.WorkflowInstance {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	return &models.WorkflowInstance{
		ContentUID:   contentUID,
		TemplateID:   "simple_review",
		CurrentState: "draft",
		RoleAssignments: map[models.Role][]string{
			models.RoleAuthor: {"user-1"},
		},
		History: []models.HistoryEntry{
			{Timestamp: now, ToState: "draft", UserID: "user-1"},
		},
		AppliedAt: now,
		UpdatedAt: now,
	}
}

func TestNewPersistence(t *testing.T) {
	// Test with regular path
	p := NewPersistence("/tmp/test")
	assert.Equal(t, "/tmp/test", p.root)

	// Test with file:// prefix
	p = NewPersistence("file:///tmp/test")
	assert.Equal(t, "/tmp/test", p.root)
}

func TestPersistence_Close(t *testing.T) {
	p := NewPersistence(t.TempDir())
	assert.NoError(t, p.Close(t.Context()))
}

func TestInstanceRepository_SaveAndGet(t *testing.T) {
	testDir := t.TempDir()
	repo := NewInstanceRepository(testDir)

	instance := testInstance("content-1")
	require.NoError(t, repo.Save(t.Context(), instance))
	assert.Equal(t, int64(1), instance.Version)

	// Verify file was created
	assert.FileExists(t, filepath.Join(testDir, "instances", "content-1.json"))

	fetched, err := repo.GetByContentUID(t.Context(), "content-1")
	require.NoError(t, err)
	assert.Equal(t, "simple_review", fetched.TemplateID)
	assert.Equal(t, []string{"user-1"}, fetched.RoleAssignments[models.RoleAuthor])

	_, err = repo.GetByContentUID(t.Context(), "missing")
	require.Error(t, err)
	assert.True(t, persistence.IsInstanceNotFound(err))
}

func TestInstanceRepository_SaveRejectsDuplicates(t *testing.T) {
	repo := NewInstanceRepository(t.TempDir())

	require.NoError(t, repo.Save(t.Context(), testInstance("content-1")))

	err := repo.Save(t.Context(), testInstance("content-1"))
	require.Error(t, err)
	assert.True(t, persistence.IsInstanceExists(err))
}

func TestInstanceRepository_UpdateVersioning(t *testing.T) {
	repo := NewInstanceRepository(t.TempDir())

	require.NoError(t, repo.Save(t.Context(), testInstance("content-1")))

	first, err := repo.GetByContentUID(t.Context(), "content-1")
	require.NoError(t, err)

	stale, err := repo.GetByContentUID(t.Context(), "content-1")
	require.NoError(t, err)

	first.CurrentState = "review"
	require.NoError(t, repo.Update(t.Context(), first))
	assert.Equal(t, int64(2), first.Version)

	stale.CurrentState = "archived"
	err = repo.Update(t.Context(), stale)
	require.Error(t, err)
	assert.True(t, persistence.IsVersionConflict(err))
}

func TestInstanceRepository_Delete(t *testing.T) {
	repo := NewInstanceRepository(t.TempDir())

	require.NoError(t, repo.Save(t.Context(), testInstance("content-1")))
	require.NoError(t, repo.Delete(t.Context(), "content-1"))

	err := repo.Delete(t.Context(), "content-1")
	require.Error(t, err)
	assert.True(t, persistence.IsInstanceNotFound(err))
}

func TestInstanceRepository_ListInstances(t *testing.T) {
	repo := NewInstanceRepository(t.TempDir())

	first := testInstance("content-1")
	require.NoError(t, repo.Save(t.Context(), first))

	second := testInstance("content-2")
	second.CurrentState = "review"
	second.UpdatedAt = second.UpdatedAt.Add(time.Hour)
	require.NoError(t, repo.Save(t.Context(), second))

	all, err := repo.ListInstances(t.Context(), persistence.ListInstancesOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), all.TotalCount)
	assert.Equal(t, "content-2", all.Instances[0].ContentUID)

	inReview, err := repo.ListInstances(t.Context(), persistence.ListInstancesOptions{CurrentState: "review"})
	require.NoError(t, err)
	require.Len(t, inReview.Instances, 1)
	assert.Equal(t, "content-2", inReview.Instances[0].ContentUID)
}

func TestInstanceRepository_ListEmptyDirectory(t *testing.T) {
	repo := NewInstanceRepository(t.TempDir())

	result, err := repo.ListInstances(t.Context(), persistence.ListInstancesOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), result.TotalCount)
	assert.Empty(t, result.Instances)
}

func TestAuditRepository_AppendAndQuery(t *testing.T) {
	testDir := t.TempDir()
	repo := NewAuditRepository(testDir)

	entries := []*models.AuditEntry{
		{ID: "1", Operation: models.AuditApplyTemplate, UserID: "admin", ContentUID: "content-1", Success: true},
		{ID: "2", Operation: models.AuditExecuteTransition, UserID: "author", ContentUID: "content-1", Success: true,
			Changes: []models.ChangeDescriptor{models.Change("current_state", "draft", "review")}},
		{ID: "3", Operation: models.AuditRemoveTemplate, UserID: "admin", ContentUID: "content-2", Success: false, Error: "not tracked"},
	}
	for _, entry := range entries {
		require.NoError(t, repo.AppendEntry(t.Context(), entry))
	}

	assert.FileExists(t, filepath.Join(testDir, "audit.jsonl"))

	byContent, err := repo.EntriesByContentUID(t.Context(), "content-1")
	require.NoError(t, err)
	require.Len(t, byContent, 2)
	assert.Equal(t, "draft", byContent[1].Changes[0].From)

	byUser, err := repo.EntriesByUser(t.Context(), "admin")
	require.NoError(t, err)
	require.Len(t, byUser, 2)
	assert.Equal(t, "not tracked", byUser[1].Error)
}

func TestAuditRepository_EmptyTrail(t *testing.T) {
	repo := NewAuditRepository(t.TempDir())

	entries, err := repo.EntriesByContentUID(t.Context(), "content-1")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPersistence_HealthCheck(t *testing.T) {
	p := NewPersistence(t.TempDir())
	assert.NoError(t, p.HealthCheck(t.Context()))

	missing := NewPersistence("/nonexistent/stageflow-data")
	assert.Error(t, missing.HealthCheck(t.Context()))
}
