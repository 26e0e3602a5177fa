package courses

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/praxis-lms/praxis/internal/audit"
	"github.com/praxis-lms/praxis/internal/guard"
	"github.com/praxis-lms/praxis/internal/platform/httpx"
	"github.com/praxis-lms/praxis/internal/session"
)

// Handler exposes the course endpoints behind the guard.
type Handler struct {
	service  *Service
	logger   *slog.Logger
	validate *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{
		service:  service,
		logger:   logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Routes mounts the course endpoints.
func (h *Handler) Routes(r chi.Router, g *guard.Guard) {
	r.Method(http.MethodGet, "/", g.Handle(guard.Options{Permission: "course:read"}, h.list))
	r.Method(http.MethodGet, "/{id}", g.Handle(guard.Options{Permission: "course:read"}, h.get))
	r.Method(http.MethodPost, "/", g.Handle(guard.Options{
		Permission: "course:create",
		AuditEvent: audit.EventCourseCreate,
	}, h.create))
	r.Method(http.MethodPut, "/{id}", g.Handle(guard.Options{
		Permission: "course:update",
		AuditEvent: audit.EventCourseUpdate,
	}, h.update))
	r.Method(http.MethodDelete, "/{id}", g.Handle(guard.Options{
		Permission: "course:delete",
		AuditEvent: audit.EventCourseDelete,
	}, h.remove))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, _ *session.Claims) error {
	courses, err := h.service.List(r.Context())
	if err != nil {
		return err
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"courses": courses})
	return nil
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request, _ *session.Claims) error {
	course, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return err
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"course": course})
	return nil
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request, sess *session.Claims) error {
	var in CreateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		return httpx.Validation("Invalid request body", nil)
	}
	if err := h.validate.Struct(in); err != nil {
		return httpx.Validation("Invalid course payload", err.Error())
	}
	course, err := h.service.Create(r.Context(), sess, in)
	if err != nil {
		return err
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"course": course})
	return nil
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request, sess *session.Claims) error {
	var in UpdateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		return httpx.Validation("Invalid request body", nil)
	}
	if err := h.validate.Struct(in); err != nil {
		return httpx.Validation("Invalid course payload", err.Error())
	}
	course, err := h.service.Update(r.Context(), sess, chi.URLParam(r, "id"), in)
	if err != nil {
		return err
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"course": course})
	return nil
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request, sess *session.Claims) error {
	if err := h.service.Delete(r.Context(), sess, chi.URLParam(r, "id")); err != nil {
		return err
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	return nil
}
