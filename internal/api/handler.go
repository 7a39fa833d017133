// Package api implements the HTTP surface of the workbench.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"dataforge/internal/domain"
	"dataforge/internal/middleware"
	"dataforge/internal/service/admin"
	"dataforge/internal/service/ingestion"
	"dataforge/internal/service/integration"
	"dataforge/internal/service/query"
	"dataforge/internal/service/template"
	"dataforge/internal/service/workflow"
)

// API holds the services behind the HTTP handlers.
type API struct {
	auth         *admin.AuthService
	users        *admin.UserService
	keys         *admin.APIKeyService
	auditLog     *admin.AuditService
	query        *query.Service
	ingest       *ingestion.Service
	workflows    *workflow.Service
	integrations *integration.Service
	templates    *template.Service
	logger       *slog.Logger
}

// New creates the API handler set.
func New(
	auth *admin.AuthService,
	users *admin.UserService,
	keys *admin.APIKeyService,
	auditLog *admin.AuditService,
	querySvc *query.Service,
	ingest *ingestion.Service,
	workflows *workflow.Service,
	integrations *integration.Service,
	templates *template.Service,
	logger *slog.Logger,
) *API {
	return &API{
		auth:         auth,
		users:        users,
		keys:         keys,
		auditLog:     auditLog,
		query:        querySvc,
		ingest:       ingest,
		workflows:    workflows,
		integrations: integrations,
		templates:    templates,
		logger:       logger,
	}
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return domain.ErrValidation("invalid request body: %v", err)
	}
	return nil
}

// pageFromQuery reads max_results and page query parameters.
func pageFromQuery(r *http.Request) domain.PageRequest {
	var page domain.PageRequest
	if v := r.URL.Query().Get("max_results"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			page.MaxResults = n
		}
	}
	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			page.Page = n
		}
	}
	return page
}

// currentUser pulls the authenticated user set by the auth middleware.
func currentUser(r *http.Request) (*domain.User, bool) {
	return middleware.UserFromContext(r.Context())
}

// listEnvelope is the standard shape for paginated collections.
type listEnvelope struct {
	Items interface{} `json:"items"`
	Total int64       `json:"total"`
}
