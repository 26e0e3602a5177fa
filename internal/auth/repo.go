package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/praxis-lms/praxis/internal/session"
)

// Repository loads and mutates authentication state.
type Repository interface {
	session.Directory
	FindByEmail(ctx context.Context, email string) (*User, error)
	IncrementTokenVersion(ctx context.Context, userID string) (int, error)
}

// PGRepository implements Repository on PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL-backed Repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

var _ Repository = (*PGRepository)(nil)

// FindByEmail loads a live user by email. Soft-deleted users are invisible
// to authentication.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	var (
		u        User
		tenantID pgtype.Text
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, tenant_id, email, name, password_hash, active_role, token_version
		FROM users
		WHERE email = $1 AND deleted_at IS NULL`,
		email,
	).Scan(&u.ID, &tenantID, &u.Email, &u.Name, &u.PasswordHash, &u.ActiveRole, &u.TokenVersion)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, session.ErrUserNotFound
		}
		return nil, fmt.Errorf("auth: find user by email: %w", err)
	}
	u.TenantID = tenantID.String
	return &u, nil
}

// AuthState loads the revocation counter and tenant for token verification.
func (r *PGRepository) AuthState(ctx context.Context, userID string) (session.AuthState, error) {
	var (
		state    session.AuthState
		tenantID pgtype.Text
	)
	err := r.pool.QueryRow(ctx,
		`SELECT token_version, tenant_id FROM users WHERE id = $1 AND deleted_at IS NULL`,
		userID,
	).Scan(&state.TokenVersion, &tenantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return session.AuthState{}, session.ErrUserNotFound
		}
		return session.AuthState{}, fmt.Errorf("auth: load auth state: %w", err)
	}
	state.TenantID = tenantID.String
	return state, nil
}

// IncrementTokenVersion bumps the revocation counter, invalidating every
// outstanding token for the user. Returns the new version.
func (r *PGRepository) IncrementTokenVersion(ctx context.Context, userID string) (int, error) {
	var version int
	err := r.pool.QueryRow(ctx, `
		UPDATE users SET token_version = token_version + 1
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING token_version`,
		userID,
	).Scan(&version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, session.ErrUserNotFound
		}
		return 0, fmt.Errorf("auth: increment token version: %w", err)
	}
	return version, nil
}
