package contentstore_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stageflow/stageflow/pkg/contentstore"
	"github.com/stageflow/stageflow/pkg/models"
)

func TestMemoryStore_ContentLength(t *testing.T) {
	ctx := t.Context()
	store := contentstore.NewMemoryStore()

	store.SetContent("content-1", "hello world")

	length, err := store.ContentLength(ctx, "content-1")
	require.NoError(t, err)
	assert.Equal(t, 11, length)

	// Characters, not bytes.
	store.SetContent("content-2", "héllo wörld")

	length, err = store.ContentLength(ctx, "content-2")
	require.NoError(t, err)
	assert.Equal(t, 11, length)

	_, err = store.ContentLength(ctx, "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, contentstore.ErrContentNotFound)
}

func TestMemoryStore_NativeWorkflowState(t *testing.T) {
	ctx := t.Context()
	store := contentstore.NewMemoryStore()

	store.SetContent("content-1", "body")

	state, err := store.NativeWorkflowState(ctx, "content-1")
	require.NoError(t, err)
	assert.Empty(t, state.ReviewState)

	updated := &models.NativeWorkflowState{
		ReviewState: "pending_review",
		UpdatedAt:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Extra:       map[string]any{"reviewer": "u2"},
	}
	require.NoError(t, store.SetNativeWorkflowState(ctx, "content-1", updated))

	// The store keeps its own copy.
	updated.ReviewState = "mutated"
	updated.Extra["reviewer"] = "someone else"

	state, err = store.NativeWorkflowState(ctx, "content-1")
	require.NoError(t, err)
	assert.Equal(t, "pending_review", state.ReviewState)
	assert.Equal(t, "u2", state.Extra["reviewer"])

	err = store.SetNativeWorkflowState(ctx, "missing", updated)
	require.Error(t, err)
	assert.ErrorIs(t, err, contentstore.ErrContentNotFound)

	store.Remove("content-1")

	_, err = store.NativeWorkflowState(ctx, "content-1")
	require.Error(t, err)
}

type countingStore struct {
	mu          sync.Mutex
	lengths     map[string]int
	lengthCalls int
	err         error
}

func (s *countingStore) ContentLength(_ context.Context, contentUID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lengthCalls++

	if s.err != nil {
		return 0, s.err
	}

	return s.lengths[contentUID], nil
}

func (s *countingStore) NativeWorkflowState(_ context.Context, _ string) (*models.NativeWorkflowState, error) {
	return &models.NativeWorkflowState{ReviewState: "native"}, nil
}

func (s *countingStore) SetNativeWorkflowState(_ context.Context, _ string, _ *models.NativeWorkflowState) error {
	return nil
}

func TestCachedStore_CachesLengths(t *testing.T) {
	ctx := t.Context()
	inner := &countingStore{lengths: map[string]int{"content-1": 120}}
	cached := contentstore.NewCachedStore(inner, 128, time.Minute)

	for range 5 {
		length, err := cached.ContentLength(ctx, "content-1")
		require.NoError(t, err)
		assert.Equal(t, 120, length)
	}

	assert.Equal(t, 1, inner.lengthCalls)

	// Invalidation forces the next read through to the inner store.
	inner.lengths["content-1"] = 300
	cached.Invalidate("content-1")

	length, err := cached.ContentLength(ctx, "content-1")
	require.NoError(t, err)
	assert.Equal(t, 300, length)
	assert.Equal(t, 2, inner.lengthCalls)
}

func TestCachedStore_DoesNotCacheErrors(t *testing.T) {
	ctx := t.Context()
	inner := &countingStore{lengths: map[string]int{}, err: errors.New("store offline")}
	cached := contentstore.NewCachedStore(inner, 128, time.Minute)

	_, err := cached.ContentLength(ctx, "content-1")
	require.Error(t, err)

	_, err = cached.ContentLength(ctx, "content-1")
	require.Error(t, err)

	assert.Equal(t, 2, inner.lengthCalls)

	// Once the store recovers, the next read succeeds and is cached.
	inner.err = nil
	inner.lengths["content-1"] = 50

	length, err := cached.ContentLength(ctx, "content-1")
	require.NoError(t, err)
	assert.Equal(t, 50, length)

	_, _ = cached.ContentLength(ctx, "content-1")
	assert.Equal(t, 3, inner.lengthCalls)
}

func TestCachedStore_NativeStatePassesThrough(t *testing.T) {
	ctx := t.Context()
	inner := &countingStore{lengths: map[string]int{}}
	cached := contentstore.NewCachedStore(inner, 128, time.Minute)

	state, err := cached.NativeWorkflowState(ctx, "content-1")
	require.NoError(t, err)
	assert.Equal(t, "native", state.ReviewState)

	require.NoError(t, cached.SetNativeWorkflowState(ctx, "content-1", state))
}
