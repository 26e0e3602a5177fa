package guard_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/praxis-lms/praxis/internal/audit"
	"github.com/praxis-lms/praxis/internal/guard"
	"github.com/praxis-lms/praxis/internal/rbac"
	"github.com/praxis-lms/praxis/internal/session"
	"github.com/praxis-lms/praxis/internal/store"
	"github.com/praxis-lms/praxis/internal/store/storetest"
	"github.com/praxis-lms/praxis/internal/tenant"
)

type stubDirectory struct {
	state session.AuthState
	err   error
}

func (d stubDirectory) AuthState(context.Context, string) (session.AuthState, error) {
	return d.state, d.err
}

type stubRoleSource struct {
	roles rbac.UserRoles
	err   error
}

func (s stubRoleSource) UserRoles(context.Context, string) (rbac.UserRoles, error) {
	return s.roles, s.err
}

type stubCatalog struct {
	permissions []string
}

func (c stubCatalog) PermissionsForRoles(context.Context, []string) ([]string, error) {
	return c.permissions, nil
}

// nopStore satisfies store.Store for the audit sink; guarded-path tests
// never assert on audit writes because they happen asynchronously.
type nopStore struct{}

func (nopStore) FindByID(context.Context, string, string) (store.Record, error) {
	return nil, store.ErrNotFound
}
func (nopStore) FindFirst(context.Context, string, store.Filter) (store.Record, error) {
	return nil, store.ErrNotFound
}
func (nopStore) List(context.Context, string, store.Filter) ([]store.Record, error) {
	return nil, nil
}
func (nopStore) Count(context.Context, string, store.Filter) (int64, error) { return 0, nil }
func (nopStore) Create(_ context.Context, _ string, data store.Record) (store.Record, error) {
	return data, nil
}
func (nopStore) CreateMany(context.Context, string, []store.Record) (int64, error) { return 0, nil }
func (nopStore) Update(context.Context, string, store.Filter, store.Record) (int64, error) {
	return 0, nil
}
func (nopStore) Delete(context.Context, string, store.Filter) (int64, error) { return 0, nil }
func (nopStore) Upsert(_ context.Context, _ string, _ store.Filter, create, _ store.Record) (store.Record, error) {
	return create, nil
}
func (nopStore) Exec(context.Context, string, ...any) error { return nil }
func (nopStore) WithTx(ctx context.Context, fn func(context.Context, store.Store) error) error {
	return fn(ctx, nopStore{})
}

type guardEnv struct {
	guard *guard.Guard
	codec *session.Codec
}

func newGuardEnv(t *testing.T, roles stubRoleSource, catalog stubCatalog, dir stubDirectory) guardEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	codec := session.NewCodec("0123456789abcdef0123456789abcdef", "lms-auth", "lms-api", 15*time.Minute)
	resolver := rbac.NewResolver(roles, catalog, rbac.NewPermissionCache(time.Minute), logger, true)
	sink := audit.NewSink(nopStore{}, logger, true)
	return guardEnv{
		guard: guard.New(logger, codec, resolver, sink, dir, false),
		codec: codec,
	}
}

func (e guardEnv) request(t *testing.T, method, path string, claims *session.Claims) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if claims != nil {
		token, err := e.codec.Sign(*claims)
		require.NoError(t, err)
		req.AddCookie(&http.Cookie{Name: session.CookieName, Value: token})
	}
	return req
}

func okHandler(w http.ResponseWriter, _ *http.Request, _ *session.Claims) error {
	w.WriteHeader(http.StatusOK)
	return nil
}

func decodeEnvelope(t *testing.T, body string) map[string]any {
	t.Helper()
	var env map[string]any
	require.NoError(t, json.NewDecoder(strings.NewReader(body)).Decode(&env))
	return env
}

func TestGuardRejectsMissingSession(t *testing.T) {
	env := newGuardEnv(t, stubRoleSource{}, stubCatalog{}, stubDirectory{})
	handler := env.guard.Handle(guard.Options{}, okHandler)

	res := httptest.NewRecorder()
	handler(res, httptest.NewRequest(http.MethodGet, "/api/courses", nil))

	require.Equal(t, http.StatusUnauthorized, res.Code)
	env2 := decodeEnvelope(t, res.Body.String())
	require.Equal(t, "UNAUTHORIZED", env2["error"])
	require.Equal(t, "Authentication required", env2["message"])
}

func TestGuardRejectsGarbageToken(t *testing.T) {
	env := newGuardEnv(t, stubRoleSource{}, stubCatalog{}, stubDirectory{})
	handler := env.guard.Handle(guard.Options{}, okHandler)

	req := httptest.NewRequest(http.MethodGet, "/api/courses", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: "not-a-token"})
	res := httptest.NewRecorder()
	handler(res, req)

	require.Equal(t, http.StatusUnauthorized, res.Code)
	require.Equal(t, "Invalid or expired token", decodeEnvelope(t, res.Body.String())["message"])
}

func TestGuardPublicRouteRunsWithoutSession(t *testing.T) {
	env := newGuardEnv(t, stubRoleSource{}, stubCatalog{}, stubDirectory{})
	var sawClaims *session.Claims
	handler := env.guard.Handle(guard.Options{Public: true}, func(w http.ResponseWriter, _ *http.Request, sess *session.Claims) error {
		sawClaims = sess
		w.WriteHeader(http.StatusOK)
		return nil
	})

	res := httptest.NewRecorder()
	handler(res, httptest.NewRequest(http.MethodGet, "/api/ping", nil))

	require.Equal(t, http.StatusOK, res.Code)
	require.Nil(t, sawClaims)
}

func TestGuardRoleMismatch(t *testing.T) {
	env := newGuardEnv(t, stubRoleSource{}, stubCatalog{}, stubDirectory{})
	handler := env.guard.Handle(guard.Options{Roles: []string{session.RoleAdmin}}, okHandler)

	req := env.request(t, http.MethodGet, "/api/roles", &session.Claims{
		UserID: "u1", ActiveRole: session.RoleLearner, TenantID: "t1",
	})
	res := httptest.NewRecorder()
	handler(res, req)

	require.Equal(t, http.StatusForbidden, res.Code)
	require.Equal(t, "Forbidden: Insufficient role", decodeEnvelope(t, res.Body.String())["message"])
}

func TestGuardMissingPermission(t *testing.T) {
	env := newGuardEnv(t,
		stubRoleSource{roles: rbac.UserRoles{Roles: []string{session.RoleLearner}}},
		stubCatalog{permissions: []string{"course:read"}},
		stubDirectory{},
	)
	handler := env.guard.Handle(guard.Options{Permission: "course:delete"}, okHandler)

	req := env.request(t, http.MethodGet, "/api/courses/c1", &session.Claims{
		UserID: "u1", ActiveRole: session.RoleLearner, TenantID: "t1",
	})
	res := httptest.NewRecorder()
	handler(res, req)

	require.Equal(t, http.StatusForbidden, res.Code)
	env2 := decodeEnvelope(t, res.Body.String())
	require.Equal(t, "Forbidden: Missing permission", env2["message"])
	details, ok := env2["details"].(map[string]any)
	require.True(t, ok)
	require.Contains(t, details, "requiredPermissions")
}

func TestGuardPermissionSatisfied(t *testing.T) {
	env := newGuardEnv(t,
		stubRoleSource{roles: rbac.UserRoles{Roles: []string{session.RoleLearner}}},
		stubCatalog{permissions: []string{"course:read"}},
		stubDirectory{},
	)
	handler := env.guard.Handle(guard.Options{Permission: "course:read"}, okHandler)

	req := env.request(t, http.MethodGet, "/api/courses", &session.Claims{
		UserID: "u1", ActiveRole: session.RoleLearner, TenantID: "t1",
	})
	res := httptest.NewRecorder()
	handler(res, req)

	require.Equal(t, http.StatusOK, res.Code)
}

func TestGuardAdminBypassesPermissionCheck(t *testing.T) {
	// The role source would fail any resolver lookup; the admin bypass must
	// return before resolution happens.
	env := newGuardEnv(t, stubRoleSource{err: rbac.ErrUserNotFound}, stubCatalog{}, stubDirectory{})
	handler := env.guard.Handle(guard.Options{Permission: "course:delete_any"}, okHandler)

	req := env.request(t, http.MethodDelete, "/api/auth/cleanup", &session.Claims{
		UserID: "admin", ActiveRole: session.RoleAdmin, TenantID: "t1",
	})
	res := httptest.NewRecorder()
	handler(res, req)

	require.Equal(t, http.StatusOK, res.Code)
}

func TestGuardCSRFMismatch(t *testing.T) {
	env := newGuardEnv(t, stubRoleSource{}, stubCatalog{}, stubDirectory{})
	handler := env.guard.Handle(guard.Options{}, okHandler)

	req := env.request(t, http.MethodPost, "/api/courses", &session.Claims{
		UserID: "u1", ActiveRole: session.RoleInstructor, TenantID: "t1",
	})
	req.AddCookie(&http.Cookie{Name: session.CSRFCookieName, Value: "expected"})
	req.Header.Set(session.CSRFHeader, "different")
	res := httptest.NewRecorder()
	handler(res, req)

	require.Equal(t, http.StatusForbidden, res.Code)
	require.Equal(t, "Forbidden: CSRF token mismatch", decodeEnvelope(t, res.Body.String())["message"])
}

func TestGuardCSRFMissingHeader(t *testing.T) {
	env := newGuardEnv(t, stubRoleSource{}, stubCatalog{}, stubDirectory{})
	handler := env.guard.Handle(guard.Options{}, okHandler)

	req := env.request(t, http.MethodPost, "/api/courses", &session.Claims{
		UserID: "u1", ActiveRole: session.RoleInstructor, TenantID: "t1",
	})
	req.AddCookie(&http.Cookie{Name: session.CSRFCookieName, Value: "expected"})
	res := httptest.NewRecorder()
	handler(res, req)

	require.Equal(t, http.StatusForbidden, res.Code)
}

func TestGuardCSRFToleratesAbsentCookie(t *testing.T) {
	env := newGuardEnv(t, stubRoleSource{}, stubCatalog{}, stubDirectory{})
	handler := env.guard.Handle(guard.Options{}, okHandler)

	req := env.request(t, http.MethodPost, "/api/courses", &session.Claims{
		UserID: "u1", ActiveRole: session.RoleInstructor, TenantID: "t1",
	})
	res := httptest.NewRecorder()
	handler(res, req)

	require.Equal(t, http.StatusOK, res.Code)
}

func TestGuardCSRFSkipsReadsAndAuthRoutes(t *testing.T) {
	env := newGuardEnv(t, stubRoleSource{}, stubCatalog{}, stubDirectory{})
	handler := env.guard.Handle(guard.Options{}, okHandler)

	for _, tc := range []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/courses"},
		{http.MethodPost, "/api/auth/logout"},
	} {
		req := env.request(t, tc.method, tc.path, &session.Claims{
			UserID: "u1", ActiveRole: session.RoleInstructor, TenantID: "t1",
		})
		req.AddCookie(&http.Cookie{Name: session.CSRFCookieName, Value: "expected"})
		req.Header.Set(session.CSRFHeader, "different")
		res := httptest.NewRecorder()
		handler(res, req)
		require.Equal(t, http.StatusOK, res.Code, "%s %s", tc.method, tc.path)
	}
}

func TestGuardBindsTenantContext(t *testing.T) {
	env := newGuardEnv(t, stubRoleSource{}, stubCatalog{}, stubDirectory{})
	var got tenant.Context
	handler := env.guard.Handle(guard.Options{}, func(w http.ResponseWriter, r *http.Request, _ *session.Claims) error {
		got, _ = tenant.FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
		return nil
	})

	req := env.request(t, http.MethodGet, "/api/courses", &session.Claims{
		UserID: "u1", ActiveRole: session.RoleInstructor, TenantID: "t1",
	})
	res := httptest.NewRecorder()
	handler(res, req)

	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, "t1", got.TenantID)
	require.Equal(t, "u1", got.UserID)
}

func TestGuardInfersTenantAndReissuesCookie(t *testing.T) {
	env := newGuardEnv(t, stubRoleSource{}, stubCatalog{}, stubDirectory{
		state: session.AuthState{TenantID: "t1"},
	})
	var got tenant.Context
	handler := env.guard.Handle(guard.Options{}, func(w http.ResponseWriter, r *http.Request, _ *session.Claims) error {
		got, _ = tenant.FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
		return nil
	})

	req := env.request(t, http.MethodGet, "/api/courses", &session.Claims{
		UserID: "u1", ActiveRole: session.RoleInstructor,
	})
	res := httptest.NewRecorder()
	handler(res, req)

	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, "t1", got.TenantID)

	var refreshed bool
	for _, c := range res.Result().Cookies() {
		if c.Name == session.CookieName && c.Value != "" {
			refreshed = true
		}
	}
	require.True(t, refreshed, "session cookie must be reissued with the inferred tenant")
}

func TestGuardRejectsUnresolvableTenant(t *testing.T) {
	env := newGuardEnv(t, stubRoleSource{}, stubCatalog{}, stubDirectory{
		err: session.ErrUserNotFound,
	})
	handler := env.guard.Handle(guard.Options{}, okHandler)

	req := env.request(t, http.MethodGet, "/api/courses", &session.Claims{
		UserID: "u1", ActiveRole: session.RoleInstructor,
	})
	res := httptest.NewRecorder()
	handler(res, req)

	require.Equal(t, http.StatusUnauthorized, res.Code)
	require.Equal(t, "Missing tenant context", decodeEnvelope(t, res.Body.String())["message"])
}

func TestGuardVerifyFullRejectsRevokedToken(t *testing.T) {
	env := newGuardEnv(t, stubRoleSource{}, stubCatalog{}, stubDirectory{
		state: session.AuthState{TokenVersion: 2, TenantID: "t1"},
	})
	handler := env.guard.Handle(guard.Options{VerifyFull: true}, okHandler)

	// Token signed against version 1; the stored version moved on after a
	// logout-all, so the session must die immediately, not at expiry.
	req := env.request(t, http.MethodGet, "/api/auth/me", &session.Claims{
		UserID: "u1", ActiveRole: session.RoleInstructor, TenantID: "t1", TokenVersion: 1,
	})
	res := httptest.NewRecorder()
	handler(res, req)

	require.Equal(t, http.StatusUnauthorized, res.Code)
	require.Equal(t, "Token has been revoked", decodeEnvelope(t, res.Body.String())["message"])
}

func TestGuardVerifyFullAcceptsCurrentToken(t *testing.T) {
	env := newGuardEnv(t, stubRoleSource{}, stubCatalog{}, stubDirectory{
		state: session.AuthState{TokenVersion: 1, TenantID: "t1"},
	})
	handler := env.guard.Handle(guard.Options{VerifyFull: true}, okHandler)

	req := env.request(t, http.MethodGet, "/api/auth/me", &session.Claims{
		UserID: "u1", ActiveRole: session.RoleInstructor, TenantID: "t1", TokenVersion: 1,
	})
	res := httptest.NewRecorder()
	handler(res, req)

	require.Equal(t, http.StatusOK, res.Code)
}

func TestGuardVerifyFullRejectsVanishedUser(t *testing.T) {
	env := newGuardEnv(t, stubRoleSource{}, stubCatalog{}, stubDirectory{
		err: session.ErrUserNotFound,
	})
	handler := env.guard.Handle(guard.Options{VerifyFull: true}, okHandler)

	req := env.request(t, http.MethodGet, "/api/auth/me", &session.Claims{
		UserID: "gone", ActiveRole: session.RoleInstructor, TenantID: "t1", TokenVersion: 1,
	})
	res := httptest.NewRecorder()
	handler(res, req)

	require.Equal(t, http.StatusUnauthorized, res.Code)
	require.Equal(t, "User not found", decodeEnvelope(t, res.Body.String())["message"])
}

func TestGuardDenialEmitsUnauthorizedAccessEvent(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	codec := session.NewCodec("0123456789abcdef0123456789abcdef", "lms-auth", "lms-api", 15*time.Minute)
	resolver := rbac.NewResolver(stubRoleSource{}, stubCatalog{}, rbac.NewPermissionCache(time.Minute), logger, true)
	mem := storetest.NewMemStore()
	sink := audit.NewSink(mem, logger, true)
	g := guard.New(logger, codec, resolver, sink, stubDirectory{}, false)
	handler := g.Handle(guard.Options{Roles: []string{session.RoleAdmin}}, okHandler)

	token, err := codec.Sign(session.Claims{
		UserID: "u1", ActiveRole: session.RoleLearner, TenantID: "t1",
	})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/roles", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: token})
	res := httptest.NewRecorder()
	handler(res, req)

	require.Equal(t, http.StatusForbidden, res.Code)
	require.Eventually(t, func() bool {
		for _, rec := range mem.All(store.ModelAuditLog) {
			if rec["event_type"] == "UNAUTHORIZED_ACCESS" && rec["user_id"] == "u1" {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond, "denial must be written to the audit log")
}

func TestGuardMapsHandlerErrors(t *testing.T) {
	env := newGuardEnv(t, stubRoleSource{}, stubCatalog{}, stubDirectory{})
	handler := env.guard.Handle(guard.Options{}, func(http.ResponseWriter, *http.Request, *session.Claims) error {
		return store.ErrNotFound
	})

	req := env.request(t, http.MethodGet, "/api/courses/x", &session.Claims{
		UserID: "u1", ActiveRole: session.RoleInstructor, TenantID: "t1",
	})
	res := httptest.NewRecorder()
	handler(res, req)

	// Unwrapped errors never leak details; they surface as a generic 500.
	require.Equal(t, http.StatusInternalServerError, res.Code)
	require.Equal(t, "INTERNAL_ERROR", decodeEnvelope(t, res.Body.String())["error"])
}
