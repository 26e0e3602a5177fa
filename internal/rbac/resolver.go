package rbac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/praxis-lms/praxis/internal/platform/httpx"
)

// ErrUserNotFound indicates the resolved user no longer exists.
var ErrUserNotFound = errors.New("rbac: user not found")

// Overrides is the per-user grant/deny layer on top of role-derived
// permissions. Denies are applied last and always win.
type Overrides struct {
	Grants []string `json:"grants"`
	Denies []string `json:"denies"`
}

// UserRoles is a user's role assignments: the active role plus any
// secondary roles, and the override layer.
type UserRoles struct {
	Roles     []string
	Overrides Overrides
}

// Directory is the user/role store queried by user id.
type Directory interface {
	UserRoles(ctx context.Context, userID string) (UserRoles, error)
}

// Catalog is the role→permission catalog queried by role name set.
type Catalog interface {
	PermissionsForRoles(ctx context.Context, roles []string) ([]string, error)
}

// Resolver computes effective permission sets. It fails closed on catalog
// failure in production: authorization must never silently widen on
// infrastructure failure.
type Resolver struct {
	directory  Directory
	catalog    Catalog
	cache      *PermissionCache
	logger     *slog.Logger
	production bool
}

// NewResolver constructs a Resolver.
func NewResolver(directory Directory, catalog Catalog, cache *PermissionCache, logger *slog.Logger, production bool) *Resolver {
	return &Resolver{directory: directory, catalog: catalog, cache: cache, logger: logger, production: production}
}

// Resolve returns the user's effective permission set, cached per TTL.
func (r *Resolver) Resolve(ctx context.Context, userID string) ([]string, error) {
	if cached, ok := r.cache.Get(userID); ok {
		return cached, nil
	}

	assigned, err := r.directory.UserRoles(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("rbac: load roles for %s: %w", userID, err)
	}

	permissions, err := r.catalog.PermissionsForRoles(ctx, assigned.Roles)
	switch {
	case err != nil && r.production:
		// Fail closed: an unreachable catalog grants nothing.
		r.logger.Error("permission catalog query failed, denying all", slog.Any("error", err))
		permissions = nil
	case err != nil:
		r.logger.Error("permission catalog query failed, using development fallback", slog.Any("error", err))
		permissions = defaultsForRoles(assigned.Roles)
	case len(permissions) == 0 && !r.production:
		// Unseeded catalogs are common in development. Note this also fires
		// for a role deliberately granted zero permissions; production has
		// no such ambiguity because it never falls back.
		r.logger.Warn("permission catalog empty, using development fallback",
			slog.Any("roles", assigned.Roles))
		permissions = defaultsForRoles(assigned.Roles)
	}

	permissions = applyOverrides(permissions, assigned.Overrides)

	r.cache.Set(userID, permissions)
	return permissions, nil
}

// Can reports whether the user holds the permission.
func (r *Resolver) Can(ctx context.Context, userID, permission string) (bool, error) {
	permissions, err := r.Resolve(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, p := range permissions {
		if p == permission {
			return true, nil
		}
	}
	return false, nil
}

// RequirePermission fails with a 403 when the permission is absent.
func (r *Resolver) RequirePermission(ctx context.Context, userID, permission string) error {
	ok, err := r.Can(ctx, userID, permission)
	if err != nil {
		return err
	}
	if !ok {
		return httpx.Forbidden("Missing permission: " + permission)
	}
	return nil
}

// Invalidate drops the user's cached permission set.
func (r *Resolver) Invalidate(userID string) {
	r.cache.Invalidate(userID)
}

func defaultsForRoles(roles []string) []string {
	var permissions []string
	seen := make(map[string]struct{})
	for _, role := range roles {
		for _, p := range DefaultRolePermissions[role] {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			permissions = append(permissions, p)
		}
	}
	return permissions
}

// applyOverrides layers grants then denies on top of the role-derived set.
// Deny beats grant beats role.
func applyOverrides(permissions []string, overrides Overrides) []string {
	present := make(map[string]struct{}, len(permissions))
	for _, p := range permissions {
		present[p] = struct{}{}
	}
	for _, p := range overrides.Grants {
		if _, ok := present[p]; !ok {
			present[p] = struct{}{}
			permissions = append(permissions, p)
		}
	}
	if len(overrides.Denies) == 0 {
		return permissions
	}
	denied := make(map[string]struct{}, len(overrides.Denies))
	for _, p := range overrides.Denies {
		denied[p] = struct{}{}
	}
	filtered := permissions[:0]
	for _, p := range permissions {
		if _, ok := denied[p]; !ok {
			filtered = append(filtered, p)
		}
	}
	return filtered
}
