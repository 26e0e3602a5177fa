package session

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/praxis-lms/praxis/internal/platform/httpx"
)

type stubDirectory struct {
	state AuthState
	err   error
}

func (d stubDirectory) AuthState(context.Context, string) (AuthState, error) {
	return d.state, d.err
}

func newTestCodec(ttl time.Duration) *Codec {
	return NewCodec("0123456789abcdef0123456789abcdef", "lms-auth", "lms-api", ttl)
}

func TestSignAndVerifyLight(t *testing.T) {
	codec := newTestCodec(15 * time.Minute)

	token, err := codec.Sign(Claims{
		UserID:       "u1",
		Email:        "u1@example.com",
		ActiveRole:   RoleInstructor,
		TenantID:     "t1",
		TokenVersion: 3,
	})
	require.NoError(t, err)

	claims, err := codec.VerifyLight(token)
	require.NoError(t, err)
	require.Equal(t, "u1", claims.UserID)
	require.Equal(t, RoleInstructor, claims.ActiveRole)
	require.Equal(t, "t1", claims.TenantID)
	require.Equal(t, 3, claims.TokenVersion)
	require.NotEmpty(t, claims.ID, "token id must be set")
}

func TestVerifyLightRejectsExpiredToken(t *testing.T) {
	codec := newTestCodec(-time.Minute)

	token, err := codec.Sign(Claims{UserID: "u1"})
	require.NoError(t, err)

	_, err = codec.VerifyLight(token)
	requireStatus(t, err, http.StatusUnauthorized, "Invalid or expired token")
}

func TestVerifyLightRejectsForeignSignature(t *testing.T) {
	codec := newTestCodec(time.Minute)
	other := NewCodec("ffffffffffffffffffffffffffffffff", "lms-auth", "lms-api", time.Minute)

	token, err := other.Sign(Claims{UserID: "u1"})
	require.NoError(t, err)

	_, err = codec.VerifyLight(token)
	requireStatus(t, err, http.StatusUnauthorized, "Invalid or expired token")
}

func TestVerifyLightRejectsWrongIssuer(t *testing.T) {
	codec := newTestCodec(time.Minute)
	other := NewCodec("0123456789abcdef0123456789abcdef", "someone-else", "lms-api", time.Minute)

	token, err := other.Sign(Claims{UserID: "u1"})
	require.NoError(t, err)

	_, err = codec.VerifyLight(token)
	requireStatus(t, err, http.StatusUnauthorized, "Invalid or expired token")
}

func TestVerifyFullAcceptsMatchingVersion(t *testing.T) {
	codec := newTestCodec(time.Minute)
	token, err := codec.Sign(Claims{UserID: "u1", TokenVersion: 2, TenantID: "t1"})
	require.NoError(t, err)

	claims, err := codec.VerifyFull(context.Background(), token, stubDirectory{
		state: AuthState{TokenVersion: 2, TenantID: "t1"},
	})
	require.NoError(t, err)
	require.Equal(t, "u1", claims.UserID)
}

func TestVerifyFullRejectsRevokedToken(t *testing.T) {
	codec := newTestCodec(time.Minute)
	token, err := codec.Sign(Claims{UserID: "u1", TokenVersion: 1})
	require.NoError(t, err)

	_, err = codec.VerifyFull(context.Background(), token, stubDirectory{
		state: AuthState{TokenVersion: 2},
	})
	requireStatus(t, err, http.StatusUnauthorized, "Token has been revoked")
}

func TestVerifyFullRejectsVanishedUser(t *testing.T) {
	codec := newTestCodec(time.Minute)
	token, err := codec.Sign(Claims{UserID: "u1"})
	require.NoError(t, err)

	_, err = codec.VerifyFull(context.Background(), token, stubDirectory{err: ErrUserNotFound})
	requireStatus(t, err, http.StatusUnauthorized, "User not found")
}

func TestVerifyFullBackfillsTenant(t *testing.T) {
	codec := newTestCodec(time.Minute)
	token, err := codec.Sign(Claims{UserID: "u1", TokenVersion: 1})
	require.NoError(t, err)

	claims, err := codec.VerifyFull(context.Background(), token, stubDirectory{
		state: AuthState{TokenVersion: 1, TenantID: "t1"},
	})
	require.NoError(t, err)
	require.Equal(t, "t1", claims.TenantID)
}

func requireStatus(t *testing.T, err error, status int, message string) {
	t.Helper()
	var apiErr *httpx.Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, status, apiErr.Status)
	require.Equal(t, message, apiErr.Message)
}
