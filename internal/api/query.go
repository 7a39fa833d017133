package api

import (
	"net/http"
	"time"

	"dataforge/internal/domain"
)

// modeHeader optionally overrides the persisted execution mode per request.
const modeHeader = "X-Execution-Mode"

type executeRequest struct {
	SQL string `json:"sql"`
}

type historyEntryResponse struct {
	ID         int64     `json:"id"`
	SQL        string    `json:"sql"`
	Mode       string    `json:"mode"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	DurationMs int64     `json:"duration_ms"`
	RowCount   int64     `json:"row_count"`
	CreatedAt  time.Time `json:"created_at"`
}

type modeResponse struct {
	Mode string `json:"mode"`
}

func parseModeOverride(r *http.Request) (*domain.ExecutionMode, error) {
	v := r.Header.Get(modeHeader)
	if v == "" {
		return nil, nil
	}
	mode, err := domain.ParseExecutionMode(v)
	if err != nil {
		return nil, err
	}
	return &mode, nil
}

// handleExecute runs SQL in the caller's execution mode.
func (a *API) handleExecute(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r)

	var req executeRequest
	if err := decodeJSON(r, &req); err != nil {
		a.respondError(w, r, err)
		return
	}

	override, err := parseModeOverride(r)
	if err != nil {
		a.respondError(w, r, err)
		return
	}

	result, err := a.query.Execute(r.Context(), user, req.SQL, override)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// handleHistory lists the caller's executed statements.
func (a *API) handleHistory(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r)

	entries, total, err := a.query.History(r.Context(), user, pageFromQuery(r))
	if err != nil {
		a.respondError(w, r, err)
		return
	}

	items := make([]historyEntryResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, historyEntryResponse{
			ID:         e.ID,
			SQL:        e.SQL,
			Mode:       e.Mode,
			Status:     e.Status,
			Error:      e.Error,
			DurationMs: e.DurationMs,
			RowCount:   e.RowCount,
			CreatedAt:  e.CreatedAt,
		})
	}
	respondJSON(w, http.StatusOK, listEnvelope{Items: items, Total: total})
}

// handleGetMode returns the caller's persisted execution mode.
func (a *API) handleGetMode(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r)

	mode, err := a.query.Mode(r.Context(), user)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, modeResponse{Mode: string(mode)})
}

// handleSetMode persists the caller's execution mode. Tables loaded in the
// previous mode are not migrated.
func (a *API) handleSetMode(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r)

	var req modeResponse
	if err := decodeJSON(r, &req); err != nil {
		a.respondError(w, r, err)
		return
	}
	mode, err := domain.ParseExecutionMode(req.Mode)
	if err != nil {
		a.respondError(w, r, err)
		return
	}

	if err := a.query.SetMode(r.Context(), user, mode); err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, modeResponse{Mode: string(mode)})
}
