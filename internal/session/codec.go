package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/praxis-lms/praxis/internal/platform/httpx"
)

// AuthState is the stored per-user state consulted by VerifyFull.
type AuthState struct {
	TokenVersion int
	TenantID     string
}

// ErrUserNotFound is returned by directories when the referenced user no
// longer exists.
var ErrUserNotFound = errors.New("session: user not found")

// Directory looks up the stored authentication state for a user. The auth
// repository implements this against PostgreSQL.
type Directory interface {
	AuthState(ctx context.Context, userID string) (AuthState, error)
}

// Codec signs and verifies session tokens.
type Codec struct {
	key      []byte
	issuer   string
	audience string
	ttl      time.Duration
}

// NewCodec constructs a Codec. Secret validation happens at config load,
// before any codec exists.
func NewCodec(secret, issuer, audience string, ttl time.Duration) *Codec {
	return &Codec{key: []byte(secret), issuer: issuer, audience: audience, ttl: ttl}
}

// TTL exposes the configured token lifetime.
func (c *Codec) TTL() time.Duration {
	return c.ttl
}

// Sign produces a signed, time-bounded token carrying the claims plus a
// fresh token id. Registered fields are always overwritten.
func (c *Codec) Sign(claims Claims) (string, error) {
	now := time.Now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    c.issuer,
		Audience:  jwt.ClaimStrings{c.audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		ID:        uuid.NewString(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("session: sign token: %w", err)
	}
	return signed, nil
}

// VerifyLight checks signature, issuer, audience and expiry only. No
// external lookups; use on low-risk paths.
func (c *Codec) VerifyLight(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (any, error) {
		return c.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithAudience(c.audience),
	)
	if err != nil {
		return nil, httpx.Unauthorized("Invalid or expired token")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.UserID == "" {
		return nil, httpx.Unauthorized("Invalid or expired token")
	}
	return claims, nil
}

// VerifyFull performs VerifyLight then compares the token's version with
// the stored value, making server-side revocation immediate even though
// tokens are otherwise stateless.
func (c *Codec) VerifyFull(ctx context.Context, token string, dir Directory) (*Claims, error) {
	claims, err := c.VerifyLight(token)
	if err != nil {
		return nil, err
	}
	state, err := dir.AuthState(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, httpx.Unauthorized("User not found")
		}
		return nil, fmt.Errorf("session: load auth state: %w", err)
	}
	if claims.TokenVersion != state.TokenVersion {
		return nil, httpx.Unauthorized("Token has been revoked")
	}
	if claims.TenantID == "" {
		claims.TenantID = state.TenantID
	}
	return claims, nil
}
