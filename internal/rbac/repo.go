package rbac

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGDirectory implements Directory against the users and user_roles tables.
type PGDirectory struct {
	pool *pgxpool.Pool
}

// NewDirectory constructs a PostgreSQL-backed Directory.
func NewDirectory(pool *pgxpool.Pool) *PGDirectory {
	return &PGDirectory{pool: pool}
}

var _ Directory = (*PGDirectory)(nil)

// UserRoles loads the active role, secondary roles and the override layer.
func (d *PGDirectory) UserRoles(ctx context.Context, userID string) (UserRoles, error) {
	var (
		activeRole   pgtype.Text
		overridesRaw []byte
	)
	err := d.pool.QueryRow(ctx,
		`SELECT active_role, rbac_overrides FROM users WHERE id = $1 AND deleted_at IS NULL`,
		userID,
	).Scan(&activeRole, &overridesRaw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserRoles{}, ErrUserNotFound
		}
		return UserRoles{}, fmt.Errorf("rbac: query user: %w", err)
	}

	assigned := UserRoles{}
	seen := make(map[string]struct{})
	if activeRole.Valid && activeRole.String != "" {
		assigned.Roles = append(assigned.Roles, activeRole.String)
		seen[activeRole.String] = struct{}{}
	}

	rows, err := d.pool.Query(ctx, `SELECT role_key FROM user_roles WHERE user_id = $1`, userID)
	if err != nil {
		return UserRoles{}, fmt.Errorf("rbac: query user roles: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var roleKey string
		if err := rows.Scan(&roleKey); err != nil {
			return UserRoles{}, fmt.Errorf("rbac: scan role: %w", err)
		}
		if _, ok := seen[roleKey]; ok {
			continue
		}
		seen[roleKey] = struct{}{}
		assigned.Roles = append(assigned.Roles, roleKey)
	}
	if err := rows.Err(); err != nil {
		return UserRoles{}, fmt.Errorf("rbac: iterate roles: %w", err)
	}

	if len(overridesRaw) > 0 {
		if err := json.Unmarshal(overridesRaw, &assigned.Overrides); err != nil {
			// Malformed overrides must not widen access; treat as none.
			return UserRoles{Roles: assigned.Roles}, nil
		}
	}
	return assigned, nil
}

// PGCatalog implements Catalog against the auth_role_permissions join.
type PGCatalog struct {
	pool *pgxpool.Pool
}

// NewCatalog constructs a PostgreSQL-backed Catalog.
func NewCatalog(pool *pgxpool.Pool) *PGCatalog {
	return &PGCatalog{pool: pool}
}

var _ Catalog = (*PGCatalog)(nil)

// PermissionsForRoles returns the union of permissions across the role set.
func (c *PGCatalog) PermissionsForRoles(ctx context.Context, roles []string) ([]string, error) {
	if len(roles) == 0 {
		return nil, nil
	}
	rows, err := c.pool.Query(ctx, `
		SELECT DISTINCT p.full_permission
		FROM auth_role_permissions rp
		JOIN auth_roles r ON r.id = rp.role_id
		JOIN auth_permissions p ON p.id = rp.permission_id
		WHERE r.name = ANY($1)`,
		roles,
	)
	if err != nil {
		return nil, fmt.Errorf("rbac: query catalog: %w", err)
	}
	defer rows.Close()
	var permissions []string
	for rows.Next() {
		var permission string
		if err := rows.Scan(&permission); err != nil {
			return nil, fmt.Errorf("rbac: scan permission: %w", err)
		}
		permissions = append(permissions, permission)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rbac: iterate catalog: %w", err)
	}
	return permissions, nil
}
