package api

import (
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	domainerrors "github.com/picsapp/picsapp-server/internal/errors"
	"github.com/picsapp/picsapp-server/internal/store"
)

// APIError is a custom error type that implements huma.StatusError.
// It maps domain and store errors to HTTP responses with consistent structure.
type APIError struct { //nolint:revive // API prefix is intentional for clarity
	status  int
	Code    string `json:"code" doc:"Machine-readable error code"`
	Message string `json:"message" doc:"Human-readable error message"`
	Details any    `json:"details,omitempty" doc:"Additional error details"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}

// GetStatus implements huma.StatusError.
func (e *APIError) GetStatus() int {
	return e.status
}

// ContentType returns the content type for the error response.
func (e *APIError) ContentType(_ string) string {
	return "application/json"
}

// RegisterErrorHandler configures huma to use domain errors.
// Call this after creating the huma.API but before registering routes.
func RegisterErrorHandler() {
	huma.NewError = func(status int, message string, errs ...error) huma.StatusError {
		for _, err := range errs {
			var domainErr *domainerrors.Error
			if errors.As(err, &domainErr) {
				return &APIError{
					status:  domainErr.HTTPStatus(),
					Code:    string(domainErr.Code),
					Message: domainErr.Message,
					Details: domainErr.Details,
				}
			}

			var storeErr *store.Error
			if errors.As(err, &storeErr) {
				return &APIError{
					status:  storeErr.HTTPCode(),
					Code:    string(domainerrors.CodeForStatus(storeErr.HTTPCode())),
					Message: storeErr.Message,
				}
			}
		}

		apiErr := &APIError{
			status:  status,
			Code:    string(domainerrors.CodeForStatus(status)),
			Message: message,
		}

		// huma reports request validation problems as *huma.ErrorDetail.
		var details []string
		for _, err := range errs {
			var detail *huma.ErrorDetail
			if errors.As(err, &detail) {
				details = append(details, detail.Error())
			}
		}
		if len(details) > 0 {
			apiErr.Details = details
		}

		return apiErr
	}
}

// apiError converts a service error into a huma response error.
// Unknown errors become a 500 without exposing their text.
func apiError(err error) error {
	var statusErr huma.StatusError
	if errors.As(err, &statusErr) {
		return statusErr
	}
	return huma.NewError(http.StatusInternalServerError, "internal server error", err)
}
