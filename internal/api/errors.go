package api

import (
	"errors"
	"net/http"

	"dataforge/internal/domain"
)

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// respondError maps domain errors to HTTP statuses and writes the standard
// error envelope. Unknown errors become 500 with a generic message.
func (a *API) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	message := "internal server error"

	var (
		notFound     *domain.NotFoundError
		accessDenied *domain.AccessDeniedError
		validation   *domain.ValidationError
		conflict     *domain.ConflictError
		unavailable  *domain.UnavailableError
	)
	switch {
	case errors.As(err, &notFound):
		status, message = http.StatusNotFound, notFound.Error()
	case errors.As(err, &accessDenied):
		status, message = http.StatusForbidden, accessDenied.Error()
	case errors.As(err, &validation):
		status, message = http.StatusBadRequest, validation.Error()
	case errors.As(err, &conflict):
		status, message = http.StatusConflict, conflict.Error()
	case errors.As(err, &unavailable):
		status, message = http.StatusServiceUnavailable, unavailable.Error()
	default:
		a.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	}

	respondJSON(w, status, errorResponse{Code: status, Message: message})
}
