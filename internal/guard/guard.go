// Package guard composes authentication, tenant inference, authorization,
// CSRF validation, tenant-context binding and audit emission around a
// single request handler.
package guard

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/praxis-lms/praxis/internal/audit"
	"github.com/praxis-lms/praxis/internal/platform/httpx"
	"github.com/praxis-lms/praxis/internal/rbac"
	"github.com/praxis-lms/praxis/internal/session"
	"github.com/praxis-lms/praxis/internal/tenant"
)

// authRoutePrefix marks the authentication endpoints, which are exempt
// from CSRF validation (the login request cannot yet hold a token).
const authRoutePrefix = "/api/auth/"

// HandlerFunc is a guarded business handler. A returned error is mapped
// centrally to the response envelope.
type HandlerFunc func(w http.ResponseWriter, r *http.Request, sess *session.Claims) error

// Options declares a route's security requirements.
type Options struct {
	// Public skips authentication entirely.
	Public bool
	// VerifyFull additionally checks the token version against the stored
	// value, making server-side revocation immediate. Set on routes that
	// expose or change account state.
	VerifyFull bool
	// Roles restricts the route to sessions whose active role is a member.
	Roles []string
	// Permission requires a single permission.
	Permission string
	// AnyPermission requires at least one of the listed permissions.
	AnyPermission []string
	// AuditEvent, when set, emits an audit event after the handler runs.
	AuditEvent audit.EventType
}

// Guard wires the security kernel around business handlers.
type Guard struct {
	logger        *slog.Logger
	codec         *session.Codec
	resolver      *rbac.Resolver
	sink          *audit.Sink
	directory     session.Directory
	secureCookies bool
}

// New constructs a Guard.
func New(logger *slog.Logger, codec *session.Codec, resolver *rbac.Resolver, sink *audit.Sink, directory session.Directory, secureCookies bool) *Guard {
	return &Guard{
		logger:        logger,
		codec:         codec,
		resolver:      resolver,
		sink:          sink,
		directory:     directory,
		secureCookies: secureCookies,
	}
}

// Handle wraps h with the full orchestration: authenticate, infer tenant,
// authorize, verify CSRF, bind tenant context, run, refresh the session
// cookie if needed, audit, and map errors to the envelope.
func (g *Guard) Handle(opts Options, h HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		claims, lackedTenant, err := g.authenticate(r, opts)
		if err != nil {
			httpx.RespondError(w, g.logger, err)
			return
		}

		if claims != nil {
			if err := g.authorize(r, opts, claims); err != nil {
				httpx.RespondError(w, g.logger, err)
				return
			}
			if err := g.verifyCSRF(r); err != nil {
				g.sink.Emit(audit.Event{
					Type:      audit.EventCSRFViolation,
					TenantID:  claims.TenantID,
					UserID:    claims.UserID,
					IP:        audit.ClientIP(r),
					UserAgent: audit.ClientUserAgent(r),
					Metadata:  map[string]any{"path": r.URL.Path, "method": r.Method},
				})
				httpx.RespondError(w, g.logger, err)
				return
			}
		}

		ctx := r.Context()
		if claims != nil {
			ctx = session.ContextWithClaims(ctx, claims)
			ctx = tenant.WithContext(ctx, tenant.Context{TenantID: claims.TenantID, UserID: claims.UserID})
			if lackedTenant {
				// First request after login carries a token without a
				// tenant; opportunistically reissue the cookie. Non-fatal.
				g.refreshSessionCookie(w, claims)
			}
		}

		if err := h(w, r.WithContext(ctx), claims); err != nil {
			httpx.RespondError(w, g.logger, err)
			return
		}

		if opts.AuditEvent != "" && claims != nil {
			g.sink.Emit(audit.Event{
				Type:      opts.AuditEvent,
				TenantID:  claims.TenantID,
				UserID:    claims.UserID,
				IP:        audit.ClientIP(r),
				UserAgent: audit.ClientUserAgent(r),
				Metadata: map[string]any{
					"path":     r.URL.Path,
					"method":   r.Method,
					"duration": time.Since(start).Milliseconds(),
				},
			})
		}
	}
}

// authenticate extracts and verifies the session, then makes sure a tenant
// is known. lackedTenant reports that the original token was issued before
// the tenant was known.
func (g *Guard) authenticate(r *http.Request, opts Options) (claims *session.Claims, lackedTenant bool, err error) {
	cookie, cookieErr := r.Cookie(session.CookieName)
	if cookieErr != nil || cookie.Value == "" {
		if opts.Public {
			return nil, false, nil
		}
		return nil, false, httpx.Unauthorized("Authentication required")
	}

	if opts.VerifyFull {
		claims, err = g.codec.VerifyFull(r.Context(), cookie.Value, g.directory)
	} else {
		claims, err = g.codec.VerifyLight(cookie.Value)
	}
	if err != nil {
		if opts.Public {
			return nil, false, nil
		}
		return nil, false, err
	}

	if claims.TenantID == "" {
		lackedTenant = true
		state, stateErr := g.directory.AuthState(r.Context(), claims.UserID)
		if stateErr == nil && state.TenantID != "" {
			claims.TenantID = state.TenantID
		}
	}
	if claims.TenantID == "" && !opts.Public {
		return nil, false, httpx.Unauthorized("Missing tenant context")
	}
	return claims, lackedTenant, nil
}

func (g *Guard) authorize(r *http.Request, opts Options, claims *session.Claims) error {
	if len(opts.Roles) > 0 && !contains(opts.Roles, claims.ActiveRole) {
		g.logDenial(r, claims, "role_mismatch", opts)
		return httpx.Forbidden("Forbidden: Insufficient role")
	}

	required := opts.AnyPermission
	if opts.Permission != "" {
		required = []string{opts.Permission}
	}
	if len(required) == 0 {
		return nil
	}

	// The top administrative role bypasses permission checks entirely.
	if claims.IsAdmin() {
		return nil
	}

	granted, err := g.resolver.Resolve(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, rbac.ErrUserNotFound) {
			return httpx.NotFound("User not found")
		}
		return err
	}
	for _, need := range required {
		if contains(granted, need) {
			return nil
		}
	}
	g.logDenial(r, claims, "permission_denied", opts)
	return httpx.ForbiddenWithDetails("Forbidden: Missing permission", map[string]any{
		"requiredPermissions": required,
	})
}

// verifyCSRF enforces the double-submit pair on mutating methods outside
// the authentication endpoints. A missing cookie is tolerated (CSRF not
// yet established for the session); a present cookie with a missing or
// differing header is always rejected.
func (g *Guard) verifyCSRF(r *http.Request) error {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return nil
	}
	if strings.HasPrefix(r.URL.Path, authRoutePrefix) {
		return nil
	}
	cookie, err := r.Cookie(session.CSRFCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	if r.Header.Get(session.CSRFHeader) != cookie.Value {
		g.logger.Warn("csrf validation failed",
			slog.String("path", r.URL.Path),
			slog.Bool("headerPresent", r.Header.Get(session.CSRFHeader) != ""))
		return httpx.Forbidden("Forbidden: CSRF token mismatch")
	}
	return nil
}

func (g *Guard) refreshSessionCookie(w http.ResponseWriter, claims *session.Claims) {
	token, err := g.codec.Sign(*claims)
	if err != nil {
		g.logger.Warn("refresh session cookie", slog.Any("error", err))
		return
	}
	session.SetSessionCookie(w, token, g.codec.TTL(), g.secureCookies)
}

func (g *Guard) logDenial(r *http.Request, claims *session.Claims, reason string, opts Options) {
	g.logger.Warn("access denied",
		slog.String("reason", reason),
		slog.String("user", claims.UserID),
		slog.String("role", claims.ActiveRole),
		slog.String("path", r.URL.Path),
		slog.Any("requiredRoles", opts.Roles),
		slog.String("requiredPermission", opts.Permission))
	g.sink.Emit(audit.Event{
		Type:      audit.EventUnauthorizedAccess,
		TenantID:  claims.TenantID,
		UserID:    claims.UserID,
		IP:        audit.ClientIP(r),
		UserAgent: audit.ClientUserAgent(r),
		Metadata:  map[string]any{"reason": reason, "path": r.URL.Path, "method": r.Method},
	})
}

func contains(values []string, needle string) bool {
	for _, v := range values {
		if v == needle {
			return true
		}
	}
	return false
}
