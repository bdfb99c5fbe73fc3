// Package contentstore provides content store collaborator implementations:
// an in-process store for development and tests, and a ttl-cached decorator
// for deployments where content length lookups are expensive.
package contentstore

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"unicode/utf8"

	"github.com/stageflow/stageflow/pkg/models"
)

// ErrContentNotFound is returned when the store has no record of the content
// UID.
var ErrContentNotFound = errors.New("content not found")

type entry struct {
	body   string
	native *models.NativeWorkflowState
}

// MemoryStore keeps content bodies and native workflow state in process
// memory. Safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*entry)}
}

// SetContent creates or replaces the body stored under the content UID.
func (s *MemoryStore) SetContent(contentUID, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.entries[contentUID]
	if !ok {
		s.entries[contentUID] = &entry{body: body, native: &models.NativeWorkflowState{}}

		return
	}

	existing.body = body
}

// Remove forgets the content entirely.
func (s *MemoryStore) Remove(contentUID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, contentUID)
}

// ContentLength reports the body length in characters, not bytes.
func (s *MemoryStore) ContentLength(_ context.Context, contentUID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	existing, ok := s.entries[contentUID]
	if !ok {
		return 0, fmt.Errorf("content %s: %w", contentUID, ErrContentNotFound)
	}

	return utf8.RuneCountInString(existing.body), nil
}

func (s *MemoryStore) NativeWorkflowState(_ context.Context, contentUID string) (*models.NativeWorkflowState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	existing, ok := s.entries[contentUID]
	if !ok {
		return nil, fmt.Errorf("content %s: %w", contentUID, ErrContentNotFound)
	}

	return cloneNative(existing.native), nil
}

func (s *MemoryStore) SetNativeWorkflowState(_ context.Context, contentUID string, state *models.NativeWorkflowState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.entries[contentUID]
	if !ok {
		return fmt.Errorf("content %s: %w", contentUID, ErrContentNotFound)
	}

	existing.native = cloneNative(state)

	return nil
}

func cloneNative(state *models.NativeWorkflowState) *models.NativeWorkflowState {
	if state == nil {
		return nil
	}

	cloned := *state
	cloned.Extra = maps.Clone(state.Extra)

	return &cloned
}
