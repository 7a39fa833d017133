package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"dataforge/internal/domain"
)

type createTemplateRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	SQL         string  `json:"sql"`
}

type updateTemplateRequest struct {
	Description *string `json:"description,omitempty"`
	SQL         string  `json:"sql"`
}

type templateResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	SQL         string    `json:"sql"`
	CreatedBy   int64     `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toTemplateResponse(t *domain.QueryTemplate) templateResponse {
	return templateResponse{
		ID:          t.ID,
		Name:        t.Name,
		Description: t.Description,
		SQL:         t.SQL,
		CreatedBy:   t.CreatedBy,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func (a *API) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r)

	var req createTemplateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.respondError(w, r, err)
		return
	}

	created, err := a.templates.Create(r.Context(), user, domain.CreateTemplateRequest{
		Name:        req.Name,
		Description: req.Description,
		SQL:         req.SQL,
	})
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toTemplateResponse(created))
}

func (a *API) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, total, err := a.templates.List(r.Context(), pageFromQuery(r))
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	items := make([]templateResponse, 0, len(templates))
	for i := range templates {
		items = append(items, toTemplateResponse(&templates[i]))
	}
	respondJSON(w, http.StatusOK, listEnvelope{Items: items, Total: total})
}

func (a *API) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := a.templates.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toTemplateResponse(t))
}

func (a *API) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r)

	var req updateTemplateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.respondError(w, r, err)
		return
	}

	updated, err := a.templates.Update(r.Context(), user, chi.URLParam(r, "id"), req.SQL, req.Description)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toTemplateResponse(updated))
}

func (a *API) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r)

	if err := a.templates.Delete(r.Context(), user, chi.URLParam(r, "id")); err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}
