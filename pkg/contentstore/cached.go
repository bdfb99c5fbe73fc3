package contentstore

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/stageflow/stageflow/pkg/models"
	"github.com/stageflow/stageflow/pkg/protocol"
)

// CachedStore wraps a content store and caches content length lookups, which
// are hit on every transition carrying a min_content_length condition. Native
// workflow state reads and writes pass through uncached.
type CachedStore struct {
	inner protocol.ContentStore
	cache *ttlcache.Cache[string, int]
}

func NewCachedStore(inner protocol.ContentStore, capacity int, ttl time.Duration) *CachedStore {
	cache := ttlcache.New(
		ttlcache.WithCapacity[string, int](uint64(capacity)),
		ttlcache.WithTTL[string, int](ttl),
	)

	return &CachedStore{inner: inner, cache: cache}
}

func (s *CachedStore) ContentLength(ctx context.Context, contentUID string) (int, error) {
	if item := s.cache.Get(contentUID); item != nil {
		return item.Value(), nil
	}

	length, err := s.inner.ContentLength(ctx, contentUID)
	if err != nil {
		return 0, err
	}

	s.cache.Set(contentUID, length, ttlcache.DefaultTTL)

	return length, nil
}

func (s *CachedStore) NativeWorkflowState(ctx context.Context, contentUID string) (*models.NativeWorkflowState, error) {
	return s.inner.NativeWorkflowState(ctx, contentUID)
}

func (s *CachedStore) SetNativeWorkflowState(ctx context.Context, contentUID string, state *models.NativeWorkflowState) error {
	return s.inner.SetNativeWorkflowState(ctx, contentUID, state)
}

// Invalidate drops the cached length for a content entity. Callers that know
// the body changed use it to avoid serving stale lengths for a full TTL.
func (s *CachedStore) Invalidate(contentUID string) {
	s.cache.Delete(contentUID)
}
