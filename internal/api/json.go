package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/meridianhq/meridian/internal/apperr"
)

// Wire error codes.
const (
	CodeValidationError    = "VALIDATION_ERROR"
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeNotFound           = "NOT_FOUND"
	CodeConflict           = "CONFLICT"
	CodeUnprocessable      = "UNPROCESSABLE_ENTITY"
	CodeRateLimited        = "RATE_LIMITED"
	CodeInternalError      = "INTERNAL_ERROR"
	CodeBadGateway         = "BAD_GATEWAY"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

// ErrorBody is the envelope for every non-2xx response.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the wire code, message, per-field details, and the
// request id assigned by the RequestID middleware.
type ErrorDetail struct {
	Code      string              `json:"code"`
	Message   string              `json:"message"`
	Details   []apperr.FieldError `json:"details"`
	RequestID string              `json:"request_id,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, details []apperr.FieldError) {
	if details == nil {
		details = []apperr.FieldError{}
	}
	writeJSON(w, status, ErrorBody{Error: ErrorDetail{
		Code:      code,
		Message:   message,
		Details:   details,
		RequestID: middleware.GetReqID(r.Context()),
	}})
}

// writeServiceError maps domain errors to wire errors.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *apperr.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, r, http.StatusBadRequest, CodeValidationError, "payload validation failed", verr.Fields)
	case errors.Is(err, apperr.ErrValidation):
		writeError(w, r, http.StatusBadRequest, CodeValidationError, err.Error(), nil)
	case errors.Is(err, apperr.ErrNotFound):
		writeError(w, r, http.StatusNotFound, CodeNotFound, "resource not found", nil)
	case errors.Is(err, apperr.ErrConflict):
		writeError(w, r, http.StatusConflict, CodeConflict, "resource already exists", nil)
	default:
		slog.Error("request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
		writeError(w, r, http.StatusInternalServerError, CodeInternalError, "internal error", nil)
	}
}
