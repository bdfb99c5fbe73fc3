// Package identity resolves transport credentials into workflow principals.
// The engine never authenticates anyone; adapters at the edge pick a source
// from this package (or implement their own) and pass the resolved principal
// down.
package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/stageflow/stageflow/pkg/protocol"
)

// ErrUnknownCredential is returned when a credential resolves to nobody.
var ErrUnknownCredential = errors.New("unknown credential")

// StaticSource resolves credentials against a fixed table. It backs
// development setups and tests, where API keys map directly to principals.
type StaticSource struct {
	principals map[string]protocol.Principal
}

func NewStaticSource(principals map[string]protocol.Principal) *StaticSource {
	table := make(map[string]protocol.Principal, len(principals))
	for credential, principal := range principals {
		table[credential] = principal
	}

	return &StaticSource{principals: table}
}

func (s *StaticSource) Resolve(_ context.Context, credential string) (*protocol.Principal, error) {
	principal, ok := s.principals[credential]
	if !ok {
		return nil, ErrUnknownCredential
	}

	if !principal.Role.Valid() {
		return nil, fmt.Errorf("credential maps to unknown role %q", principal.Role)
	}

	return &principal, nil
}
