package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"dataforge/internal/domain"
)

// maxUploadBytes caps direct uploads; larger files should go through the
// presigned URL flow.
const maxUploadBytes = 512 << 20

type uploadURLRequest struct {
	Filename string `json:"filename"`
	Table    string `json:"table,omitempty"`
}

type commitLoadRequest struct {
	Table  string `json:"table"`
	Key    string `json:"key"`
	Format string `json:"format"`
}

type tablesResponse struct {
	Tables []domain.TableHandle `json:"tables"`
}

// handleUpload ingests a file from a multipart form into the engine. The
// caller's execution mode is resolved first so remote-mode sessions get
// steered to the presigned flow instead of silently writing to the
// embedded engine.
func (a *API) handleUpload(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r)

	override, err := parseModeOverride(r)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	mode, err := a.query.ResolveMode(r.Context(), user, override)
	if err != nil {
		a.respondError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		a.respondError(w, r, domain.ErrValidation("invalid multipart form: %v", err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		a.respondError(w, r, domain.ErrValidation("form field %q is required", "file"))
		return
	}
	defer file.Close() //nolint:errcheck

	handle, err := a.ingest.Upload(r.Context(), user, mode, header.Filename, r.FormValue("table"), file)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, handle)
}

// handleUploadURL issues a presigned URL for remote-mode uploads.
func (a *API) handleUploadURL(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r)

	var req uploadURLRequest
	if err := decodeJSON(r, &req); err != nil {
		a.respondError(w, r, err)
		return
	}

	result, err := a.ingest.RequestUploadURL(r.Context(), user, req.Filename, req.Table)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// handleCommitLoad tells the remote backend to load an uploaded object.
func (a *API) handleCommitLoad(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r)

	var req commitLoadRequest
	if err := decodeJSON(r, &req); err != nil {
		a.respondError(w, r, err)
		return
	}

	handle, err := a.ingest.CommitRemoteLoad(r.Context(), user, req.Table, req.Key, req.Format)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, handle)
}

// handleListTables lists tables visible in the caller's execution mode.
func (a *API) handleListTables(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r)

	override, err := parseModeOverride(r)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	mode, err := a.query.ResolveMode(r.Context(), user, override)
	if err != nil {
		a.respondError(w, r, err)
		return
	}

	tables, err := a.ingest.ListTables(r.Context(), mode)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, tablesResponse{Tables: tables})
}

// handleDescribeTable returns schema and row count for one table.
func (a *API) handleDescribeTable(w http.ResponseWriter, r *http.Request) {
	handle, err := a.ingest.DescribeTable(r.Context(), chi.URLParam(r, "table"))
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, handle)
}

// handleExportTable streams a table as a CSV download.
func (a *API) handleExportTable(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")

	// Resolve the table before any bytes go out so a missing table still
	// gets a proper error response.
	if _, err := a.ingest.DescribeTable(r.Context(), table); err != nil {
		a.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", table+".csv"))
	if err := a.ingest.ExportCSV(r.Context(), table, w); err != nil {
		// Headers may already be out; log instead of rewriting the status.
		a.logger.Error("csv export failed", "table", table, "error", err)
	}
}

// handleDropTable removes a table from the embedded engine.
func (a *API) handleDropTable(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r)

	if err := a.ingest.DropTable(r.Context(), user, chi.URLParam(r, "table")); err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}
