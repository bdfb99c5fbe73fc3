package web

import (
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/stageflow/stageflow/pkg/protocol"
)

// principalKey is the fiber locals key under which RequirePrincipal stores
// the authenticated caller.
const principalKey = "stageflow_principal"

// RequirePrincipal resolves the Authorization header into a Principal before
// any workflow handler runs. The header carries either a bearer token or a
// raw credential; what either means is up to the configured identity source.
func RequirePrincipal(source protocol.IdentitySource) fiber.Handler {
	return func(c fiber.Ctx) error {
		credential := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
		if strings.HasPrefix(credential, "Bearer ") {
			credential = strings.TrimPrefix(credential, "Bearer ")
		}

		if credential == "" {
			return unauthorized(c, "missing Authorization header")
		}

		principal, err := source.Resolve(c.Context(), credential)
		if err != nil {
			return unauthorized(c, "credential rejected")
		}

		c.Locals(principalKey, principal)

		return c.Next()
	}
}

// principalFrom returns the Principal stored by RequirePrincipal, or nil when
// the middleware did not run for this route.
func principalFrom(c fiber.Ctx) *protocol.Principal {
	principal, _ := c.Locals(principalKey).(*protocol.Principal)

	return principal
}
