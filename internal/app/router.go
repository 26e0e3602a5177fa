package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/praxis-lms/praxis/internal/auth"
	"github.com/praxis-lms/praxis/internal/courses"
	"github.com/praxis-lms/praxis/internal/guard"
	"github.com/praxis-lms/praxis/internal/roles"
	"github.com/praxis-lms/praxis/internal/session"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	Codec          *session.Codec
	Guard          *guard.Guard
	AuthHandler    *auth.Handler
	CoursesHandler *courses.Handler
	RolesHandler   *roles.Handler
}

// NewRouter constructs the chi.Router with platform defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
		Codec:  params.Codec,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/auth", func(r chi.Router) {
		params.AuthHandler.Routes(r, params.Guard)
	})
	r.Route("/api/courses", func(r chi.Router) {
		params.CoursesHandler.Routes(r, params.Guard)
	})
	r.Route("/api/roles", func(r chi.Router) {
		params.RolesHandler.Routes(r, params.Guard)
	})

	return r
}
