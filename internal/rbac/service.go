package rbac

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/praxis-lms/praxis/internal/platform/db"
)

// Assignment replaces one user's role set.
type Assignment struct {
	UserID string
	Roles  []string
}

// Service owns permission-affecting mutations. Every mutation invalidates
// the affected users' cached permission sets.
type Service struct {
	pool   *pgxpool.Pool
	cache  *PermissionCache
	logger *slog.Logger
}

// NewService constructs a Service.
func NewService(pool *pgxpool.Pool, cache *PermissionCache, logger *slog.Logger) *Service {
	return &Service{pool: pool, cache: cache, logger: logger}
}

// AssignRoles replaces role assignments for every user in one transaction,
// so a partial assignment is never observable.
func (s *Service) AssignRoles(ctx context.Context, assignments []Assignment) error {
	if len(assignments) == 0 {
		return nil
	}
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		for _, a := range assignments {
			if a.UserID == "" || len(a.Roles) == 0 {
				return fmt.Errorf("rbac: assignment requires user and at least one role")
			}
			if _, err := tx.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1`, a.UserID); err != nil {
				return fmt.Errorf("rbac: clear roles: %w", err)
			}
			for _, role := range a.Roles {
				if _, err := tx.Exec(ctx,
					`INSERT INTO user_roles (user_id, role_key) VALUES ($1, $2)`,
					a.UserID, role,
				); err != nil {
					return fmt.Errorf("rbac: assign role: %w", err)
				}
			}
			tag, err := tx.Exec(ctx,
				`UPDATE users SET active_role = $2 WHERE id = $1 AND deleted_at IS NULL`,
				a.UserID, a.Roles[0],
			)
			if err != nil {
				return fmt.Errorf("rbac: set active role: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return fmt.Errorf("rbac: assign roles: %w", ErrUserNotFound)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, a := range assignments {
		s.cache.Invalidate(a.UserID)
	}
	return nil
}

// SetOverrides replaces a user's grant/deny override layer.
func (s *Service) SetOverrides(ctx context.Context, userID string, overrides Overrides) error {
	raw, err := json.Marshal(overrides)
	if err != nil {
		return fmt.Errorf("rbac: marshal overrides: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET rbac_overrides = $2 WHERE id = $1 AND deleted_at IS NULL`,
		userID, raw,
	)
	if err != nil {
		return fmt.Errorf("rbac: set overrides: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	s.cache.Invalidate(userID)
	return nil
}

// SyncCatalog upserts every registry permission into the catalog. Run by
// the rbac:sync background task after deploys.
func (s *Service) SyncCatalog(ctx context.Context) (int, error) {
	var inserted int
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		for _, permission := range AllPermissions {
			resource, action, ok := strings.Cut(permission, ":")
			if !ok {
				return fmt.Errorf("rbac: malformed permission %q in registry", permission)
			}
			tag, err := tx.Exec(ctx, `
				INSERT INTO auth_permissions (resource, action, full_permission)
				VALUES ($1, $2, $3)
				ON CONFLICT (full_permission) DO NOTHING`,
				resource, action, permission,
			)
			if err != nil {
				return fmt.Errorf("rbac: upsert permission: %w", err)
			}
			inserted += int(tag.RowsAffected())
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if inserted > 0 {
		s.logger.Info("permission catalog synced", slog.Int("inserted", inserted))
		s.cache.InvalidateAll()
	}
	return inserted, nil
}
