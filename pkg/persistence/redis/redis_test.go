package redis_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stageflow/stageflow/pkg/models"
	"github.com/stageflow/stageflow/pkg/persistence"
	"github.com/stageflow/stageflow/pkg/persistence/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

var redisContainer *tcredis.RedisContainer

func flushDb(ctx context.Context, t *testing.T, redisURL string) {
	t.Helper()

	opts, err := goredis.ParseURL(redisURL)
	require.NoError(t, err)

	client := goredis.NewClient(opts)

	err = client.FlushDB(ctx).Err()
	require.NoError(t, err)

	err = client.Close()
	require.NoError(t, err)
}

func setupTestRedis(t *testing.T) (*redis.Persistence, context.Context) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if redisContainer == nil || !redisContainer.IsRunning() {
		var err error

		redisContainer, err = tcredis.Run(ctx, "redis:7-alpine")
		require.NoError(t, err)
	}

	redisURL, err := redisContainer.ConnectionString(ctx)
	require.NoError(t, err)

	flushDb(ctx, t, redisURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	p, err := redis.NewPersistence(ctx, logger, redisURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		flushDb(ctx, t, redisURL)

		err = p.Close(ctx)
		require.NoError(t, err)

		cancel()
	})

	return p, ctx
}

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

func TestNewPersistence_HealthCheck(t *testing.T) {
	p, ctx := setupTestRedis(t)

	err := p.HealthCheck(ctx)
	assert.NoError(t, err)
}

func TestInstanceRepository_SaveAndRetrieve(t *testing.T) {
	p, ctx := setupTestRedis(t)

	instance := testInstance("content-1")
	err := p.InstanceRepository().Save(ctx, instance)
	require.NoError(t, err)
	assert.Equal(t, int64(1), instance.Version)

	retrieved, err := p.InstanceRepository().GetByContentUID(ctx, "content-1")
	require.NoError(t, err)
	assert.Equal(t, "simple_review", retrieved.TemplateID)
	assert.Equal(t, "draft", retrieved.CurrentState)
	assert.Equal(t, []string{"user-1"}, retrieved.RoleAssignments[models.RoleAuthor])
	require.Len(t, retrieved.History, 1)

	_, err = p.InstanceRepository().GetByContentUID(ctx, "missing")
	require.Error(t, err)
	assert.True(t, persistence.IsInstanceNotFound(err))
}

func TestInstanceRepository_SaveDuplicate(t *testing.T) {
	p, ctx := setupTestRedis(t)

	require.NoError(t, p.InstanceRepository().Save(ctx, testInstance("content-1")))

	err := p.InstanceRepository().Save(ctx, testInstance("content-1"))
	require.Error(t, err)
	assert.True(t, persistence.IsInstanceExists(err))
}

func TestInstanceRepository_UpdateVersioning(t *testing.T) {
	p, ctx := setupTestRedis(t)

	require.NoError(t, p.InstanceRepository().Save(ctx, testInstance("content-1")))

	instance, err := p.InstanceRepository().GetByContentUID(ctx, "content-1")
	require.NoError(t, err)

	stale, err := p.InstanceRepository().GetByContentUID(ctx, "content-1")
	require.NoError(t, err)

	instance.CurrentState = "review"
	require.NoError(t, p.InstanceRepository().Update(ctx, instance))
	assert.Equal(t, int64(2), instance.Version)

	retrieved, err := p.InstanceRepository().GetByContentUID(ctx, "content-1")
	require.NoError(t, err)
	assert.Equal(t, "review", retrieved.CurrentState)
	assert.Equal(t, int64(2), retrieved.Version)

	stale.CurrentState = "archived"
	err = p.InstanceRepository().Update(ctx, stale)
	require.Error(t, err)
	assert.True(t, persistence.IsVersionConflict(err))

	ghost := testInstance("ghost")
	ghost.Version = 1
	err = p.InstanceRepository().Update(ctx, ghost)
	require.Error(t, err)
	assert.True(t, persistence.IsInstanceNotFound(err))
}

func TestInstanceRepository_Delete(t *testing.T) {
	p, ctx := setupTestRedis(t)

	require.NoError(t, p.InstanceRepository().Save(ctx, testInstance("content-1")))
	require.NoError(t, p.InstanceRepository().Delete(ctx, "content-1"))

	_, err := p.InstanceRepository().GetByContentUID(ctx, "content-1")
	assert.True(t, persistence.IsInstanceNotFound(err))

	err = p.InstanceRepository().Delete(ctx, "content-1")
	require.Error(t, err)
	assert.True(t, persistence.IsInstanceNotFound(err))
}

func TestInstanceRepository_ListInstances(t *testing.T) {
	p, ctx := setupTestRedis(t)

	first := testInstance("content-1")
	require.NoError(t, p.InstanceRepository().Save(ctx, first))

	second := testInstance("content-2")
	second.TemplateID = "corporate_signoff"
	second.CurrentState = "review"
	second.UpdatedAt = second.UpdatedAt.Add(time.Hour)
	require.NoError(t, p.InstanceRepository().Save(ctx, second))

	all, err := p.InstanceRepository().ListInstances(ctx, persistence.ListInstancesOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), all.TotalCount)
	require.Len(t, all.Instances, 2)
	assert.Equal(t, "content-2", all.Instances[0].ContentUID)

	byState, err := p.InstanceRepository().ListInstances(ctx, persistence.ListInstancesOptions{
		CurrentState: "review",
	})
	require.NoError(t, err)
	require.Len(t, byState.Instances, 1)
	assert.Equal(t, "content-2", byState.Instances[0].ContentUID)

	paged, err := p.InstanceRepository().ListInstances(ctx, persistence.ListInstancesOptions{
		Limit:     1,
		SortBy:    "content_uid",
		SortOrder: "asc",
	})
	require.NoError(t, err)
	assert.True(t, paged.HasNextPage)
	require.Len(t, paged.Instances, 1)
	assert.Equal(t, "content-1", paged.Instances[0].ContentUID)
}

func TestAuditRepository_AppendAndQuery(t *testing.T) {
	p, ctx := setupTestRedis(t)

	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	entries := []*models.AuditEntry{
		{
			ID:         uuid.NewString(),
			Timestamp:  base,
			Operation:  models.AuditApplyTemplate,
			UserID:     "admin",
			ContentUID: "content-1",
			TemplateID: "simple_review",
			Success:    true,
			Changes:    []models.ChangeDescriptor{models.Change("current_state", "", "draft")},
		},
		{
			ID:         uuid.NewString(),
			Timestamp:  base.Add(time.Minute),
			Operation:  models.AuditExecuteTransition,
			UserID:     "author",
			ContentUID: "content-1",
			Success:    false,
			Error:      "permission denied",
		},
	}
	for _, entry := range entries {
		require.NoError(t, p.AuditRepository().AppendEntry(ctx, entry))
	}

	byContent, err := p.AuditRepository().EntriesByContentUID(ctx, "content-1")
	require.NoError(t, err)
	require.Len(t, byContent, 2)
	assert.Equal(t, models.AuditApplyTemplate, byContent[0].Operation)
	assert.Equal(t, "draft", byContent[0].Changes[0].To)
	assert.False(t, byContent[1].Success)
	assert.Equal(t, "permission denied", byContent[1].Error)

	byUser, err := p.AuditRepository().EntriesByUser(ctx, "author")
	require.NoError(t, err)
	require.Len(t, byUser, 1)
	assert.Equal(t, models.AuditExecuteTransition, byUser[0].Operation)

	empty, err := p.AuditRepository().EntriesByContentUID(ctx, "content-9")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
