package protocol

import (
	"context"

	"github.com/stageflow/stageflow/pkg/models"
)

// Principal is an authenticated caller: who they are and which workflow role
// they act under for the current request.
type Principal struct {
	UserID string      `json:"user_id"`
	Role   models.Role `json:"role"`
}

// IdentitySource resolves a transport-level credential (header value, bearer
// token) into a Principal. The engine itself never authenticates; callers
// resolve identity at the edge and pass the result in.
type IdentitySource interface {
	Resolve(ctx context.Context, credential string) (*Principal, error)
}
