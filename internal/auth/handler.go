package auth

import (
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

// Handler exposes the authentication endpoints.
type Handler struct {
	service       *Service
	codec         *session.Codec
	limiter       *LoginLimiter
	sink          *audit.Sink
	permCache     *rbac.PermissionCache
	logger        *slog.Logger
	validate      *validator.Validate
	secureCookies bool
}

// NewHandler constructs a Handler.
func NewHandler(service *Service, codec *session.Codec, limiter *LoginLimiter, sink *audit.Sink, permCache *rbac.PermissionCache, logger *slog.Logger, secureCookies bool) *Handler {
	return &Handler{
		service:       service,
		codec:         codec,
		limiter:       limiter,
		sink:          sink,
		permCache:     permCache,
		logger:        logger,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
		secureCookies: secureCookies,
	}
}

// Routes mounts the authentication endpoints. Login and CSRF issuance are
// public; logout tolerates stale sessions so a user with an expired token
// can still clear cookies.
func (h *Handler) Routes(r chi.Router, g *guard.Guard) {
	r.Post("/login", h.login)
	r.Get("/csrf", h.csrf)
	r.Method(http.MethodPost, "/logout", g.Handle(guard.Options{Public: true}, h.logout))
	r.Method(http.MethodPost, "/logout-all", g.Handle(guard.Options{VerifyFull: true}, h.logoutAll))
	r.Method(http.MethodGet, "/me", g.Handle(guard.Options{VerifyFull: true}, h.me))
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type sessionUser struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	ActiveRole string `json:"activeRole"`
	TenantID   string `json:"tenantId,omitempty"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, h.logger, httpx.Validation("Invalid request body", nil))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, h.logger, httpx.Validation("Email and password are required", err.Error()))
		return
	}

	ip := audit.ClientIP(r)
	ok, _ := h.limiter.Allow(r.Context(), req.Email, ip)
	if !ok {
		h.sink.Emit(audit.Event{
			Type:      audit.EventRateLimitExceeded,
			IP:        ip,
			UserAgent: audit.ClientUserAgent(r),
			Metadata:  map[string]any{"email": req.Email},
		})
		httpx.RespondError(w, h.logger, ErrTooManyAttempts())
		return
	}

	user, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		h.sink.Emit(audit.Event{
			Type:      audit.EventLoginFail,
			IP:        ip,
			UserAgent: audit.ClientUserAgent(r),
			Metadata:  map[string]any{"email": req.Email},
		})
		httpx.RespondError(w, h.logger, err)
		return
	}
	h.limiter.Reset(r.Context(), req.Email, ip)

	token, err := h.codec.Sign(session.Claims{
		UserID:       user.ID,
		Email:        user.Email,
		ActiveRole:   user.ActiveRole,
		TenantID:     user.TenantID,
		TokenVersion: user.TokenVersion,
	})
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	csrfToken := session.NewCSRFToken()
	session.SetSessionCookie(w, token, h.codec.TTL(), h.secureCookies)
	session.SetCSRFCookie(w, csrfToken, h.codec.TTL(), h.secureCookies)

	h.sink.Emit(audit.Event{
		Type:      audit.EventLoginSuccess,
		TenantID:  user.TenantID,
		UserID:    user.ID,
		IP:        ip,
		UserAgent: audit.ClientUserAgent(r),
	})

	httpx.JSON(w, http.StatusOK, map[string]any{
		"user": sessionUser{
			ID:         user.ID,
			Email:      user.Email,
			Name:       user.Name,
			ActiveRole: user.ActiveRole,
			TenantID:   user.TenantID,
		},
		"csrfToken": csrfToken,
	})
}

// csrf issues a fresh double-submit token without touching the session.
func (h *Handler) csrf(w http.ResponseWriter, r *http.Request) {
	token := session.NewCSRFToken()
	session.SetCSRFCookie(w, token, h.codec.TTL(), h.secureCookies)
	httpx.JSON(w, http.StatusOK, map[string]string{"csrfToken": token})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request, sess *session.Claims) error {
	session.ClearAuthCookies(w, h.secureCookies)
	if sess != nil {
		h.permCache.Invalidate(sess.UserID)
		h.sink.Emit(audit.Event{
			Type:      audit.EventLogout,
			TenantID:  sess.TenantID,
			UserID:    sess.UserID,
			IP:        audit.ClientIP(r),
			UserAgent: audit.ClientUserAgent(r),
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
	return nil
}

// logoutAll revokes every session for the user, not just this one.
func (h *Handler) logoutAll(w http.ResponseWriter, r *http.Request, sess *session.Claims) error {
	if err := h.service.LogoutAll(r.Context(), sess.UserID); err != nil {
		return err
	}
	h.permCache.Invalidate(sess.UserID)
	session.ClearAuthCookies(w, h.secureCookies)
	h.sink.Emit(audit.Event{
		Type:      audit.EventLogoutAll,
		TenantID:  sess.TenantID,
		UserID:    sess.UserID,
		IP:        audit.ClientIP(r),
		UserAgent: audit.ClientUserAgent(r),
	})
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "sessions_revoked"})
	return nil
}

func (h *Handler) me(w http.ResponseWriter, _ *http.Request, sess *session.Claims) error {
	httpx.JSON(w, http.StatusOK, map[string]any{
		"user": sessionUser{
			ID:         sess.UserID,
			Email:      sess.Email,
			ActiveRole: sess.ActiveRole,
			TenantID:   sess.TenantID,
		},
	})
	return nil
}
