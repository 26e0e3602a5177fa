package rbac

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/praxis-lms/praxis/internal/session"
)

type stubDirectory struct {
	assigned UserRoles
	err      error
}

func (d stubDirectory) UserRoles(context.Context, string) (UserRoles, error) {
	return d.assigned, d.err
}

type stubCatalog struct {
	permissions []string
	err         error
	calls       int
}

func (c *stubCatalog) PermissionsForRoles(context.Context, []string) ([]string, error) {
	c.calls++
	return c.permissions, c.err
}

func newResolver(dir Directory, cat Catalog, production bool) *Resolver {
	return NewResolver(dir, cat, NewPermissionCache(time.Minute), slog.New(slog.NewTextHandler(io.Discard, nil)), production)
}

func TestResolveFromCatalog(t *testing.T) {
	resolver := newResolver(
		stubDirectory{assigned: UserRoles{Roles: []string{session.RoleInstructor}}},
		&stubCatalog{permissions: []string{"course:read", "course:create"}},
		true,
	)

	permissions, err := resolver.Resolve(context.Background(), "u1")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"course:read", "course:create"}, permissions)
}

func TestResolveCachesWithinTTL(t *testing.T) {
	catalog := &stubCatalog{permissions: []string{"course:read"}}
	resolver := newResolver(
		stubDirectory{assigned: UserRoles{Roles: []string{session.RoleLearner}}},
		catalog,
		true,
	)

	_, err := resolver.Resolve(context.Background(), "u1")
	require.NoError(t, err)
	_, err = resolver.Resolve(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, 1, catalog.calls)
}

func TestResolveInvalidateForcesReload(t *testing.T) {
	catalog := &stubCatalog{permissions: []string{"course:read"}}
	resolver := newResolver(
		stubDirectory{assigned: UserRoles{Roles: []string{session.RoleLearner}}},
		catalog,
		true,
	)

	_, err := resolver.Resolve(context.Background(), "u1")
	require.NoError(t, err)
	resolver.Invalidate("u1")
	_, err = resolver.Resolve(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, 2, catalog.calls)
}

func TestResolveCatalogFailureFailsClosedInProduction(t *testing.T) {
	resolver := newResolver(
		stubDirectory{assigned: UserRoles{Roles: []string{session.RoleInstructor}}},
		&stubCatalog{err: errors.New("connection refused")},
		true,
	)

	permissions, err := resolver.Resolve(context.Background(), "u1")
	require.NoError(t, err)
	require.Empty(t, permissions)
}

func TestResolveCatalogFailureFallsBackInDevelopment(t *testing.T) {
	resolver := newResolver(
		stubDirectory{assigned: UserRoles{Roles: []string{session.RoleLearner}}},
		&stubCatalog{err: errors.New("connection refused")},
		false,
	)

	permissions, err := resolver.Resolve(context.Background(), "u1")
	require.NoError(t, err)
	require.ElementsMatch(t, DefaultRolePermissions[session.RoleLearner], permissions)
}

func TestResolveEmptyCatalogFallsBackInDevelopment(t *testing.T) {
	resolver := newResolver(
		stubDirectory{assigned: UserRoles{Roles: []string{session.RoleLearner}}},
		&stubCatalog{},
		false,
	)

	permissions, err := resolver.Resolve(context.Background(), "u1")
	require.NoError(t, err)
	require.ElementsMatch(t, DefaultRolePermissions[session.RoleLearner], permissions)
}

func TestResolveEmptyCatalogStaysEmptyInProduction(t *testing.T) {
	resolver := newResolver(
		stubDirectory{assigned: UserRoles{Roles: []string{session.RoleLearner}}},
		&stubCatalog{},
		true,
	)

	permissions, err := resolver.Resolve(context.Background(), "u1")
	require.NoError(t, err)
	require.Empty(t, permissions)
}

func TestResolveAppliesOverrides(t *testing.T) {
	resolver := newResolver(
		stubDirectory{assigned: UserRoles{
			Roles: []string{session.RoleLearner},
			Overrides: Overrides{
				Grants: []string{"reports:read"},
				Denies: []string{"course:read", "reports:read"},
			},
		}},
		&stubCatalog{permissions: []string{"course:read", "unit:read"}},
		true,
	)

	permissions, err := resolver.Resolve(context.Background(), "u1")
	require.NoError(t, err)
	// Deny beats both the role-derived permission and the grant.
	require.ElementsMatch(t, []string{"unit:read"}, permissions)
}

func TestResolveDirectoryErrorPropagates(t *testing.T) {
	resolver := newResolver(stubDirectory{err: ErrUserNotFound}, &stubCatalog{}, true)

	_, err := resolver.Resolve(context.Background(), "u1")
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestCanAndRequirePermission(t *testing.T) {
	resolver := newResolver(
		stubDirectory{assigned: UserRoles{Roles: []string{session.RoleLearner}}},
		&stubCatalog{permissions: []string{"course:read"}},
		true,
	)

	ok, err := resolver.Can(context.Background(), "u1", "course:read")
	require.NoError(t, err)
	require.True(t, ok)

	err = resolver.RequirePermission(context.Background(), "u1", "course:delete")
	require.Error(t, err)
}
