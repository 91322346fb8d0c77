// Package response writes JSON bodies for the handlers that sit outside huma
// (multipart upload, static fallbacks). Error bodies use the same
// {code, message, details} shape as the huma operations.
package response

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	domainerrors "github.com/picsapp/picsapp-server/internal/errors"
	"github.com/picsapp/picsapp-server/internal/store"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// JSON writes data as a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil && logger != nil {
		logger.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// Success writes a 200 OK response.
func Success(w http.ResponseWriter, data any, logger *slog.Logger) {
	JSON(w, http.StatusOK, data, logger)
}

// Accepted writes a 202 Accepted response.
func Accepted(w http.ResponseWriter, data any, logger *slog.Logger) {
	JSON(w, http.StatusAccepted, data, logger)
}

// NoContent writes a 204 No Content response.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Error writes an error response with the given status and code.
func Error(w http.ResponseWriter, status int, body ErrorBody, logger *slog.Logger) {
	JSON(w, status, body, logger)
}

// BadRequest writes a 400 Bad Request response.
func BadRequest(w http.ResponseWriter, message string, logger *slog.Logger) {
	Error(w, http.StatusBadRequest, ErrorBody{Code: string(domainerrors.CodeValidation), Message: message}, logger)
}

// NotFound writes a 404 Not Found response.
func NotFound(w http.ResponseWriter, message string, logger *slog.Logger) {
	Error(w, http.StatusNotFound, ErrorBody{Code: string(domainerrors.CodeNotFound), Message: message}, logger)
}

// InternalError writes a 500 Internal Server Error response.
func InternalError(w http.ResponseWriter, message string, logger *slog.Logger) {
	Error(w, http.StatusInternalServerError, ErrorBody{Code: string(domainerrors.CodeInternal), Message: message}, logger)
}

// HandleError writes an appropriate HTTP response based on the error type.
// Domain and store errors keep their status; anything else becomes 500
// without leaking the underlying message.
func HandleError(w http.ResponseWriter, err error, logger *slog.Logger) {
	var domainErr *domainerrors.Error
	if errors.As(err, &domainErr) {
		Error(w, domainErr.HTTPStatus(), ErrorBody{
			Code:    string(domainErr.Code),
			Message: domainErr.Message,
			Details: domainErr.Details,
		}, logger)
		return
	}

	var storeErr *store.Error
	if errors.As(err, &storeErr) {
		status := storeErr.HTTPCode()
		Error(w, status, ErrorBody{
			Code:    string(domainerrors.CodeForStatus(status)),
			Message: storeErr.Message,
		}, logger)
		return
	}

	if logger != nil {
		logger.Error("unhandled error", slog.String("error", err.Error()))
	}
	InternalError(w, "internal server error", logger)
}
