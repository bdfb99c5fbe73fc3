package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang-jwt/jwt/v5"

	"github.com/stageflow/stageflow/pkg/models"
	"github.com/stageflow/stageflow/pkg/protocol"
)

// Claims is the token payload: standard registered claims plus the workflow
// role the caller acts under.
type Claims struct {
	jwt.RegisteredClaims

	Role string `json:"role"`
}

// JWTSource resolves HMAC-signed bearer tokens. The subject claim carries the
// user ID and a custom role claim carries the workflow role.
type JWTSource struct {
	secret []byte
	issuer string
	clock  clock.Clock
}

func NewJWTSource(secret []byte, issuer string, clk clock.Clock) *JWTSource {
	if clk == nil {
		clk = clock.New()
	}

	return &JWTSource{secret: secret, issuer: issuer, clock: clk}
}

func (s *JWTSource) Resolve(_ context.Context, credential string) (*protocol.Principal, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.clock.Now),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		options = append(options, jwt.WithIssuer(s.issuer))
	}

	claims := &Claims{}

	token, err := jwt.ParseWithClaims(credential, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}

		return s.secret, nil
	}, options...)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("token carries no subject")
	}

	role := models.Role(claims.Role)
	if !role.Valid() {
		return nil, fmt.Errorf("token carries unknown role %q", claims.Role)
	}

	return &protocol.Principal{UserID: claims.Subject, Role: role}, nil
}

// IssueToken signs a token for the given principal, valid for ttl. Intended
// for development tooling and tests; production deployments usually have an
// external issuer.
func (s *JWTSource) IssueToken(userID string, role models.Role, ttl time.Duration) (string, error) {
	now := s.clock.Now()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role: string(role),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}
