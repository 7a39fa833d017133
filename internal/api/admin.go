package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"dataforge/internal/domain"
)

type createUserRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
	Password    string `json:"password"`
	Plan        string `json:"plan,omitempty"`
}

type setPlanRequest struct {
	Plan string `json:"plan"`
}

type setDisabledRequest struct {
	Disabled bool `json:"disabled"`
}

type createAPIKeyRequest struct {
	Name      string     `json:"name"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type apiKeyResponse struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	KeyPrefix string     `json:"key_prefix"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

type createdAPIKeyResponse struct {
	Key string `json:"key"` // shown once, never again
	apiKeyResponse
}

type auditEntryResponse struct {
	ID        int64     `json:"id"`
	UserEmail string    `json:"user_email"`
	Action    string    `json:"action"`
	Status    string    `json:"status"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func toAPIKeyResponse(k *domain.APIKey) apiKeyResponse {
	return apiKeyResponse{
		ID:        k.ID,
		Name:      k.Name,
		KeyPrefix: k.KeyPrefix,
		ExpiresAt: k.ExpiresAt,
		CreatedAt: k.CreatedAt,
	}
}

func userIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, domain.ErrValidation("invalid user id")
	}
	return id, nil
}

func (a *API) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	actor, _ := currentUser(r)

	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		a.respondError(w, r, err)
		return
	}

	created, err := a.users.Create(r.Context(), actor, domain.CreateUserRequest{
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Password:    req.Password,
		Plan:        req.Plan,
	})
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toUserResponse(created))
}

func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, total, err := a.users.List(r.Context(), pageFromQuery(r))
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	items := make([]userResponse, 0, len(users))
	for i := range users {
		items = append(items, toUserResponse(&users[i]))
	}
	respondJSON(w, http.StatusOK, listEnvelope{Items: items, Total: total})
}

func (a *API) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := userIDParam(r)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	user, err := a.users.Get(r.Context(), id)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toUserResponse(user))
}

func (a *API) handleSetUserPlan(w http.ResponseWriter, r *http.Request) {
	actor, _ := currentUser(r)

	id, err := userIDParam(r)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	var req setPlanRequest
	if err := decodeJSON(r, &req); err != nil {
		a.respondError(w, r, err)
		return
	}
	if err := a.users.SetPlan(r.Context(), actor, id, req.Plan); err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (a *API) handleSetUserDisabled(w http.ResponseWriter, r *http.Request) {
	actor, _ := currentUser(r)

	id, err := userIDParam(r)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	var req setDisabledRequest
	if err := decodeJSON(r, &req); err != nil {
		a.respondError(w, r, err)
		return
	}
	if err := a.users.SetDisabled(r.Context(), actor, id, req.Disabled); err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (a *API) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	actor, _ := currentUser(r)

	id, err := userIDParam(r)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	if err := a.users.Delete(r.Context(), actor, id); err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (a *API) handleCreateAPIKey(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r)

	var req createAPIKeyRequest
	if err := decodeJSON(r, &req); err != nil {
		a.respondError(w, r, err)
		return
	}

	created, err := a.keys.Create(r.Context(), user, req.Name, req.ExpiresAt)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, createdAPIKeyResponse{
		Key:            created.Key,
		apiKeyResponse: toAPIKeyResponse(created.Record),
	})
}

func (a *API) handleListAPIKeys(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r)

	keys, total, err := a.keys.List(r.Context(), user, pageFromQuery(r))
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	items := make([]apiKeyResponse, 0, len(keys))
	for i := range keys {
		items = append(items, toAPIKeyResponse(&keys[i]))
	}
	respondJSON(w, http.StatusOK, listEnvelope{Items: items, Total: total})
}

func (a *API) handleDeleteAPIKey(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r)

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		a.respondError(w, r, domain.ErrValidation("invalid key id"))
		return
	}
	if err := a.keys.Delete(r.Context(), user, id); err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (a *API) handleListAudit(w http.ResponseWriter, r *http.Request) {
	actor, _ := currentUser(r)

	filter := domain.AuditFilter{Page: pageFromQuery(r)}
	q := r.URL.Query()
	if v := q.Get("user"); v != "" {
		filter.UserEmail = &v
	}
	if v := q.Get("action"); v != "" {
		filter.Action = &v
	}
	if v := q.Get("status"); v != "" {
		filter.Status = &v
	}
	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			a.respondError(w, r, domain.ErrValidation("since must be RFC3339"))
			return
		}
		filter.Since = &since
	}

	entries, total, err := a.auditLog.List(r.Context(), actor, filter)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	items := make([]auditEntryResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, auditEntryResponse{
			ID:        e.ID,
			UserEmail: e.UserEmail,
			Action:    e.Action,
			Status:    e.Status,
			Detail:    e.Detail,
			CreatedAt: e.CreatedAt,
		})
	}
	respondJSON(w, http.StatusOK, listEnvelope{Items: items, Total: total})
}
