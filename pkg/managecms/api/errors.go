package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/tendant/simple-manage/pkg/managecms"
)

// Error ids carried in ErrorResponse.Sys.ID
const (
	ErrorNotFound        = "NotFound"
	ErrorValidation      = "ValidationFailed"
	ErrorAccessDenied    = "AccessDenied"
	ErrorUnauthorized    = "Unauthorized"
	ErrorVersionMismatch = "VersionMismatch"
	ErrorConflict        = "Conflict"
	ErrorBadRequest      = "BadRequest"
	ErrorInternal        = "InternalServerError"
)

// classify maps err onto an HTTP status and error id.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, managecms.ErrNotFound):
		return http.StatusNotFound, ErrorNotFound
	case errors.Is(err, managecms.ErrVersionConflict):
		return http.StatusConflict, ErrorVersionMismatch
	case errors.Is(err, managecms.ErrAlreadyExists):
		return http.StatusConflict, ErrorConflict
	case errors.Is(err, managecms.ErrValidation):
		return http.StatusUnprocessableEntity, ErrorValidation
	case errors.Is(err, managecms.ErrPermission):
		return http.StatusForbidden, ErrorAccessDenied
	case errors.Is(err, managecms.ErrStorageBackendNotFound):
		return http.StatusBadRequest, ErrorBadRequest
	default:
		return http.StatusInternalServerError, ErrorInternal
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, id := classify(err)
	if status == http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		h.logger.DebugContext(r.Context(), "Request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	writeErrorResponse(w, r, status, id, err.Error())
}

func writeErrorResponse(w http.ResponseWriter, r *http.Request, status int, id, message string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{
		Sys:       Sys{Type: "Error", ID: id},
		Message:   message,
		RequestID: middleware.GetReqID(r.Context()),
	})
}

func badRequest(w http.ResponseWriter, r *http.Request, message string) {
	writeErrorResponse(w, r, http.StatusBadRequest, ErrorBadRequest, message)
}
