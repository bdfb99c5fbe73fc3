package protocol

import (
	"context"

	"github.com/stageflow/stageflow/pkg/models"
)

// ContentStore is the engine's window into the system that owns the content
// being routed through workflows. The engine never stores content itself; it
// reads length for transition conditions and mirrors workflow state into the
// store's native fields so non-workflow tooling stays consistent.
type ContentStore interface {
	// ContentLength returns the length of the content body in characters.
	ContentLength(ctx context.Context, contentUID string) (int, error)

	// NativeWorkflowState reads the store's own record of where the content
	// sits in its lifecycle.
	NativeWorkflowState(ctx context.Context, contentUID string) (*models.NativeWorkflowState, error)

	// SetNativeWorkflowState overwrites the store's record after the engine
	// commits a change.
	SetNativeWorkflowState(ctx context.Context, contentUID string, state *models.NativeWorkflowState) error
}
