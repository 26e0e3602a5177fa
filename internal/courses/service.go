package courses

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/praxis-lms/praxis/internal/platform/httpx"
	"github.com/praxis-lms/praxis/internal/rbac"
	"github.com/praxis-lms/praxis/internal/session"
	"github.com/praxis-lms/praxis/internal/store"
)

// Service implements course operations on the scoped store. Tenant
// filtering and soft-delete translation happen below this layer; the
// service only adds ownership rules.
type Service struct {
	store    store.Store
	resolver *rbac.Resolver
}

// NewService constructs a Service.
func NewService(st store.Store, resolver *rbac.Resolver) *Service {
	return &Service{store: st, resolver: resolver}
}

// CreateInput is the validated payload for a new course.
type CreateInput struct {
	Title       string `json:"title" validate:"required,min=3,max=200"`
	Description string `json:"description" validate:"max=2000"`
}

// UpdateInput carries the mutable course fields. Nil means unchanged.
type UpdateInput struct {
	Title       *string `json:"title" validate:"omitempty,min=3,max=200"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	Published   *bool   `json:"published"`
}

// List returns the tenant's live courses.
func (s *Service) List(ctx context.Context) ([]Course, error) {
	recs, err := s.store.List(ctx, store.ModelCourse, nil)
	if err != nil {
		return nil, err
	}
	out := make([]Course, 0, len(recs))
	for _, rec := range recs {
		out = append(out, fromRecord(rec))
	}
	return out, nil
}

// Get returns one course. A miss — including a course that exists in
// another tenant — is a plain 404.
func (s *Service) Get(ctx context.Context, id string) (Course, error) {
	rec, err := s.store.FindByID(ctx, store.ModelCourse, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Course{}, httpx.NotFound("Course not found")
		}
		return Course{}, err
	}
	return fromRecord(rec), nil
}

// Create inserts a course owned by the caller. The store injects the
// tenant; the service never handles tenant ids on writes.
func (s *Service) Create(ctx context.Context, sess *session.Claims, in CreateInput) (Course, error) {
	now := time.Now().UTC()
	rec, err := s.store.Create(ctx, store.ModelCourse, store.Record{
		"id":          uuid.NewString(),
		"owner_id":    sess.UserID,
		"title":       in.Title,
		"description": in.Description,
		"published":   false,
		"created_at":  now,
		"updated_at":  now,
	})
	if err != nil {
		return Course{}, err
	}
	return fromRecord(rec), nil
}

// Update mutates a course the caller owns, or any course in the tenant
// when the caller holds course:update_any.
func (s *Service) Update(ctx context.Context, sess *session.Claims, id string, in UpdateInput) (Course, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return Course{}, err
	}
	if err := s.requireOwnershipOr(ctx, sess, existing, "course:update_any"); err != nil {
		return Course{}, err
	}

	data := store.Record{"updated_at": time.Now().UTC()}
	if in.Title != nil {
		data["title"] = *in.Title
	}
	if in.Description != nil {
		data["description"] = *in.Description
	}
	if in.Published != nil {
		data["published"] = *in.Published
	}
	if _, err := s.store.Update(ctx, store.ModelCourse, store.Filter{store.IDColumn: id}, data); err != nil {
		return Course{}, err
	}
	return s.Get(ctx, id)
}

// Delete soft-deletes a course under the same ownership rule as Update.
func (s *Service) Delete(ctx context.Context, sess *session.Claims, id string) error {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.requireOwnershipOr(ctx, sess, existing, "course:delete_any"); err != nil {
		return err
	}
	affected, err := s.store.Delete(ctx, store.ModelCourse, store.Filter{store.IDColumn: id})
	if err != nil {
		return err
	}
	if affected == 0 {
		return httpx.NotFound("Course not found")
	}
	return nil
}

func (s *Service) requireOwnershipOr(ctx context.Context, sess *session.Claims, course Course, permission string) error {
	if course.OwnerID == sess.UserID || sess.IsAdmin() {
		return nil
	}
	ok, err := s.resolver.Can(ctx, sess.UserID, permission)
	if err != nil {
		return err
	}
	if !ok {
		return httpx.ForbiddenWithDetails("Forbidden: Missing permission", map[string]any{
			"requiredPermissions": []string{permission},
		})
	}
	return nil
}
