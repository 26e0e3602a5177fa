// Package roles exposes the role and permission administration endpoints.
package roles

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/praxis-lms/praxis/internal/audit"
	"github.com/praxis-lms/praxis/internal/guard"
	"github.com/praxis-lms/praxis/internal/platform/httpx"
	"github.com/praxis-lms/praxis/internal/rbac"
	"github.com/praxis-lms/praxis/internal/session"
)

// Handler mounts the role administration surface on top of the rbac
// service.
type Handler struct {
	service  *rbac.Service
	sink     *audit.Sink
	logger   *slog.Logger
	validate *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(service *rbac.Service, sink *audit.Sink, logger *slog.Logger) *Handler {
	return &Handler{
		service:  service,
		sink:     sink,
		logger:   logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Routes mounts the endpoints. Role and override mutations are restricted
// to administrators on top of the permission checks, and every route
// verifies the stored token version so a revoked admin session cannot keep
// using this surface.
func (h *Handler) Routes(r chi.Router, g *guard.Guard) {
	r.Method(http.MethodGet, "/", g.Handle(guard.Options{VerifyFull: true, Permission: "roles:read"}, h.list))
	r.Method(http.MethodGet, "/permissions", g.Handle(guard.Options{VerifyFull: true, Permission: "permissions:read"}, h.permissions))
	r.Method(http.MethodPost, "/assign", g.Handle(guard.Options{
		VerifyFull: true,
		Roles:      []string{session.RoleAdmin},
		Permission: "user:assign_role",
		AuditEvent: audit.EventRoleAssign,
	}, h.assign))
	r.Method(http.MethodPut, "/overrides/{userID}", g.Handle(guard.Options{
		VerifyFull: true,
		Roles:      []string{session.RoleAdmin},
		Permission: "user:assign_permission",
		AuditEvent: audit.EventPermissionGrant,
	}, h.setOverrides))
}

func (h *Handler) list(w http.ResponseWriter, _ *http.Request, _ *session.Claims) error {
	roles := make([]string, 0, len(rbac.DefaultRolePermissions))
	for role := range rbac.DefaultRolePermissions {
		roles = append(roles, role)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": roles})
	return nil
}

func (h *Handler) permissions(w http.ResponseWriter, _ *http.Request, _ *session.Claims) error {
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": rbac.AllPermissions})
	return nil
}

type assignRequest struct {
	UserID string   `json:"userId" validate:"required"`
	Roles  []string `json:"roles" validate:"required,min=1,dive,required"`
}

func (h *Handler) assign(w http.ResponseWriter, r *http.Request, _ *session.Claims) error {
	var req assignRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		return httpx.Validation("Invalid request body", nil)
	}
	if err := h.validate.Struct(req); err != nil {
		return httpx.Validation("User and at least one role are required", err.Error())
	}
	err := h.service.AssignRoles(r.Context(), []rbac.Assignment{{UserID: req.UserID, Roles: req.Roles}})
	if err != nil {
		if errors.Is(err, rbac.ErrUserNotFound) {
			return httpx.NotFound("User not found")
		}
		return err
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "roles_assigned"})
	return nil
}

func (h *Handler) setOverrides(w http.ResponseWriter, r *http.Request, _ *session.Claims) error {
	var overrides rbac.Overrides
	if err := httpx.DecodeJSON(r, &overrides); err != nil {
		return httpx.Validation("Invalid request body", nil)
	}
	userID := chi.URLParam(r, "userID")
	if err := h.service.SetOverrides(r.Context(), userID, overrides); err != nil {
		if errors.Is(err, rbac.ErrUserNotFound) {
			return httpx.NotFound("User not found")
		}
		return err
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "overrides_updated"})
	return nil
}
