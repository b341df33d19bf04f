// Package api implements the authentication REST backend for the media
// server admin console.
package api

import (
	_ "embed"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-openapi/runtime/middleware"

	"plexman/storage"
)

//go:embed openapi.yaml
var openapiSpec []byte

// API holds the dependencies needed by the REST handlers.
type API struct {
	users   *userStore
	tokens  *tokenIssuer
	limiter *loginRateLimiter
	audit   *auditLogger
	// devMode enables development-only behavior: reset tokens are returned
	// in the request-reset response instead of being delivered out of band.
	devMode bool
}

// Option configures the API instance.
type Option func(*API)

// WithLogger sets the structured logger for audit events.
// If not set, a default JSON logger writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) {
		a.audit = newAuditLogger(logger)
	}
}

// WithDevMode toggles development-only responses. Defaults to false.
func WithDevMode(enabled bool) Option {
	return func(a *API) {
		a.devMode = enabled
	}
}

// New creates a new API instance. jwtSecret signs session tokens and must be
// kept stable across restarts or all sessions are invalidated.
func New(repo storage.Repository, jwtSecret string, opts ...Option) *API {
	a := &API{
		users:   newUserStore(repo),
		tokens:  newTokenIssuer(jwtSecret),
		limiter: newLoginRateLimiter(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.audit == nil {
		a.audit = newAuditLogger(slog.New(slog.NewJSONHandler(os.Stderr, nil)))
	}
	return a
}

// Router returns a chi.Router with all auth routes mounted.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openapiSpec)
	})

	r.Handle("/docs*", middleware.SwaggerUI(middleware.SwaggerUIOpts{
		SpecURL: "/api/openapi.yaml",
		Path:    "api/docs",
	}, nil))

	r.Handle("/redoc*", middleware.Redoc(middleware.RedocOpts{
		SpecURL: "/api/openapi.yaml",
		Path:    "api/redoc",
	}, nil))

	r.Post("/auth/login", a.Login)
	r.Post("/auth/register", a.Register)
	r.Post("/auth/verify-totp", a.VerifyTOTP)
	r.Get("/auth/verify", a.Verify)
	r.Post("/auth/request-reset", a.RequestReset)
	r.Post("/auth/reset-password", a.ResetPassword)
	r.With(a.RequireAuth).Get("/auth/me", a.Me)

	return r
}
