package identity_test

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stageflow/stageflow/pkg/identity"
	"github.com/stageflow/stageflow/pkg/models"
	"github.com/stageflow/stageflow/pkg/protocol"
)

func TestStaticSource(t *testing.T) {
	source := identity.NewStaticSource(map[string]protocol.Principal{
		"author-key": {UserID: "u1", Role: models.RoleAuthor},
		"broken-key": {UserID: "u9", Role: models.Role("wizard")},
	})

	principal, err := source.Resolve(t.Context(), "author-key")
	require.NoError(t, err)
	assert.Equal(t, "u1", principal.UserID)
	assert.Equal(t, models.RoleAuthor, principal.Role)

	_, err = source.Resolve(t.Context(), "nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, identity.ErrUnknownCredential)

	_, err = source.Resolve(t.Context(), "broken-key")
	require.Error(t, err)
	assert.ErrorContains(t, err, "wizard")
}

func TestJWTSource_RoundTrip(t *testing.T) {
	mock := clock.NewMock()
	mock.Set(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	source := identity.NewJWTSource([]byte("test-secret"), "stageflow", mock)

	token, err := source.IssueToken("u2", models.RoleEditor, time.Hour)
	require.NoError(t, err)

	principal, err := source.Resolve(t.Context(), token)
	require.NoError(t, err)
	assert.Equal(t, "u2", principal.UserID)
	assert.Equal(t, models.RoleEditor, principal.Role)
}

func TestJWTSource_RejectsExpiredToken(t *testing.T) {
	mock := clock.NewMock()
	mock.Set(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	source := identity.NewJWTSource([]byte("test-secret"), "stageflow", mock)

	token, err := source.IssueToken("u2", models.RoleEditor, time.Minute)
	require.NoError(t, err)

	mock.Add(2 * time.Minute)

	_, err = source.Resolve(t.Context(), token)
	require.Error(t, err)
	assert.ErrorContains(t, err, "invalid token")
}

func TestJWTSource_RejectsWrongSecret(t *testing.T) {
	mock := clock.NewMock()
	mock.Set(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	issuer := identity.NewJWTSource([]byte("their-secret"), "stageflow", mock)
	verifier := identity.NewJWTSource([]byte("our-secret"), "stageflow", mock)

	token, err := issuer.IssueToken("u2", models.RoleEditor, time.Hour)
	require.NoError(t, err)

	_, err = verifier.Resolve(t.Context(), token)
	require.Error(t, err)
}

func TestJWTSource_RejectsWrongIssuer(t *testing.T) {
	mock := clock.NewMock()
	mock.Set(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	issuer := identity.NewJWTSource([]byte("test-secret"), "someone-else", mock)
	verifier := identity.NewJWTSource([]byte("test-secret"), "stageflow", mock)

	token, err := issuer.IssueToken("u2", models.RoleEditor, time.Hour)
	require.NoError(t, err)

	_, err = verifier.Resolve(t.Context(), token)
	require.Error(t, err)
}

func TestJWTSource_RejectsUnknownRole(t *testing.T) {
	mock := clock.NewMock()
	mock.Set(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	source := identity.NewJWTSource([]byte("test-secret"), "stageflow", mock)

	token, err := source.IssueToken("u2", models.Role("wizard"), time.Hour)
	require.NoError(t, err)

	_, err = source.Resolve(t.Context(), token)
	require.Error(t, err)
	assert.ErrorContains(t, err, "wizard")
}

func TestJWTSource_RejectsUnsignedToken(t *testing.T) {
	mock := clock.NewMock()
	mock.Set(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	source := identity.NewJWTSource([]byte("test-secret"), "stageflow", mock)

	// alg=none tokens must never resolve.
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, identity.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u2",
			Issuer:    "stageflow",
			ExpiresAt: jwt.NewNumericDate(mock.Now().Add(time.Hour)),
		},
		Role: string(models.RoleEditor),
	})

	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = source.Resolve(t.Context(), token)
	require.Error(t, err)
}
