package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rhuss/dojo/pkg/api"
)

// StatusClientClosedRequest reports a call the client cancelled.
const StatusClientClosedRequest = 499

// HTTPStatusFromError maps an APIError type to an HTTP status code.
func HTTPStatusFromError(err *api.APIError) int {
	switch err.Type {
	case api.ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case api.ErrorTypeUnauthorized:
		return http.StatusUnauthorized
	case api.ErrorTypeForbidden:
		return http.StatusForbidden
	case api.ErrorTypeNotFound:
		return http.StatusNotFound
	case api.ErrorTypeTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// HTTPStatusFromAIError maps an AI service failure to an HTTP status code.
// An upstream auth failure is a gateway error, not the caller's.
func HTTPStatusFromAIError(err *api.AIServiceError) int {
	switch err.Type {
	case api.AIErrorRateLimit:
		return http.StatusTooManyRequests
	case api.AIErrorTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

// Describe converts any handler error into a status code and the value to
// send under "error".
func Describe(err error) (int, any) {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		return HTTPStatusFromError(apiErr), apiErr
	}
	var aiErr *api.AIServiceError
	if errors.As(err, &aiErr) {
		return HTTPStatusFromAIError(aiErr), aiErr
	}
	switch {
	case errors.Is(err, context.Canceled):
		return StatusClientClosedRequest, api.NewServerError("request cancelled")
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, api.NewServerError("request deadline exceeded")
	}
	return http.StatusInternalServerError, api.NewServerError(err.Error())
}

// WriteError writes err as a JSON error response.
func WriteError(w http.ResponseWriter, err error) {
	status, body := Describe(err)
	WriteJSON(w, status, api.ErrorResponse{Error: body})
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
