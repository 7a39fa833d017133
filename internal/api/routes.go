package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"dataforge/internal/domain"
	"dataforge/internal/middleware"
)

// RouterConfig carries the cross-cutting pieces the router needs.
type RouterConfig struct {
	Validator          middleware.TokenValidator
	Users              domain.UserRepository
	Keys               middleware.KeyAuthenticator
	RateLimit          middleware.RateLimitConfig
	CORSAllowedOrigins []string
}

// Router builds the chi mux. /auth/login and /healthz are public; everything
// else requires a bearer token or API key, and /admin additionally requires
// the admin plan.
func (a *API) Router(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Request-ID", modeHeader},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/auth/login", a.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.Validator, cfg.Users, cfg.Keys))
		r.Use(middleware.RateLimiter(cfg.RateLimit))

		r.Get("/auth/me", a.handleMe)

		r.Route("/execute", func(r chi.Router) {
			r.Post("/query", a.handleExecute)
			r.Get("/history", a.handleHistory)
			r.Get("/mode", a.handleGetMode)
			r.Put("/mode", a.handleSetMode)
		})

		r.Route("/storage", func(r chi.Router) {
			r.Post("/upload", a.handleUpload)
			r.Post("/upload-url", a.handleUploadURL)
			r.Post("/load", a.handleCommitLoad)
			r.Get("/tables", a.handleListTables)
			r.Get("/tables/{table}", a.handleDescribeTable)
			r.Get("/tables/{table}/export", a.handleExportTable)
			r.Delete("/tables/{table}", a.handleDropTable)
		})

		r.Route("/workflows", func(r chi.Router) {
			r.Post("/", a.handleCreateWorkflow)
			r.Get("/", a.handleListWorkflows)
			r.Route("/{name}", func(r chi.Router) {
				r.Get("/", a.handleGetWorkflow)
				r.Patch("/", a.handleUpdateWorkflow)
				r.Delete("/", a.handleDeleteWorkflow)
				r.Put("/paused", a.handleSetWorkflowPaused)
				r.Post("/steps", a.handleCreateStep)
				r.Get("/steps", a.handleListSteps)
				r.Delete("/steps/{stepID}", a.handleDeleteStep)
				r.Post("/trigger", a.handleTriggerWorkflow)
				r.Get("/runs", a.handleListRuns)
			})
			r.Route("/runs/{runID}", func(r chi.Router) {
				r.Get("/", a.handleGetRun)
				r.Get("/steps", a.handleListStepRuns)
				r.Post("/cancel", a.handleCancelRun)
			})
		})

		r.Route("/integrations", func(r chi.Router) {
			r.Post("/", a.handleCreateIntegration)
			r.Get("/", a.handleListIntegrations)
			r.Get("/{id}", a.handleGetIntegration)
			r.Put("/{id}/credentials", a.handleUpdateIntegrationCredentials)
			r.Post("/{id}/test", a.handleTestIntegration)
			r.Delete("/{id}", a.handleDeleteIntegration)
		})

		r.Route("/templates", func(r chi.Router) {
			r.Post("/", a.handleCreateTemplate)
			r.Get("/", a.handleListTemplates)
			r.Get("/{id}", a.handleGetTemplate)
			r.Put("/{id}", a.handleUpdateTemplate)
			r.Delete("/{id}", a.handleDeleteTemplate)
		})

		// API keys belong to the caller, not to admin scope.
		r.Route("/keys", func(r chi.Router) {
			r.Post("/", a.handleCreateAPIKey)
			r.Get("/", a.handleListAPIKeys)
			r.Delete("/{id}", a.handleDeleteAPIKey)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdmin)
			r.Post("/users", a.handleCreateUser)
			r.Get("/users", a.handleListUsers)
			r.Get("/users/{id}", a.handleGetUser)
			r.Put("/users/{id}/plan", a.handleSetUserPlan)
			r.Put("/users/{id}/disabled", a.handleSetUserDisabled)
			r.Delete("/users/{id}", a.handleDeleteUser)
			r.Get("/audit", a.handleListAudit)
		})
	})

	return r
}
