package api

import (
	"errors"
	"fmt"
)

// ErrorType represents the category of an API error.
type ErrorType string

const (
	ErrorTypeServerError     ErrorType = "server_error"
	ErrorTypeInvalidRequest  ErrorType = "invalid_request"
	ErrorTypeNotFound        ErrorType = "not_found"
	ErrorTypeTooManyRequests ErrorType = "too_many_requests"
	ErrorTypeUnauthorized    ErrorType = "unauthorized"
	ErrorTypeForbidden       ErrorType = "forbidden"
)

// APIError represents a structured API error with type, code, param, and message.
type APIError struct {
	Type    ErrorType `json:"type"`
	Code    string    `json:"code,omitempty"`
	Param   string    `json:"param,omitempty"`
	Message string    `json:"message"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("%s: %s (param: %s)", e.Type, e.Message, e.Param)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ErrorResponse wraps an error for JSON serialization as the top-level error response.
type ErrorResponse struct {
	Error any `json:"error"`
}

// NewInvalidRequestError creates an APIError for invalid request parameters.
func NewInvalidRequestError(param, message string) *APIError {
	return &APIError{
		Type:    ErrorTypeInvalidRequest,
		Param:   param,
		Message: message,
	}
}

// NewNotFoundError creates an APIError for resources that cannot be found.
func NewNotFoundError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeNotFound,
		Message: message,
	}
}

// NewServerError creates an APIError for internal server errors.
func NewServerError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeServerError,
		Message: message,
	}
}

// NewTooManyRequestsError creates an APIError for saturation and rate limiting.
func NewTooManyRequestsError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeTooManyRequests,
		Message: message,
	}
}

// NewUnauthorizedError creates an APIError for missing or invalid credentials.
func NewUnauthorizedError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeUnauthorized,
		Message: message,
	}
}

// NewForbiddenError creates an APIError for operations outside the caller's scopes.
func NewForbiddenError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeForbidden,
		Message: message,
	}
}

// ErrMalformedResponse marks a completion API response that could not be
// parsed into the expected structure. Wrap it with %w.
var ErrMalformedResponse = errors.New("malformed response")

// AIErrorType is the fixed taxonomy of completion API failures.
type AIErrorType string

const (
	AIErrorAuth       AIErrorType = "auth"
	AIErrorRateLimit  AIErrorType = "rate_limit"
	AIErrorNetwork    AIErrorType = "network"
	AIErrorServer     AIErrorType = "server"
	AIErrorValidation AIErrorType = "validation"
	AIErrorTimeout    AIErrorType = "timeout"
	AIErrorUnknown    AIErrorType = "unknown"
)

// Retryable reports whether failures of this type are transient.
func (t AIErrorType) Retryable() bool {
	switch t {
	case AIErrorRateLimit, AIErrorNetwork, AIErrorServer, AIErrorTimeout:
		return true
	default:
		return false
	}
}

// Suggestion returns a user-facing recovery hint for the error type.
func (t AIErrorType) Suggestion() string {
	switch t {
	case AIErrorAuth:
		return "Check the API key in settings."
	case AIErrorRateLimit:
		return "The AI service is rate limiting requests. Wait a minute and try again, or check your plan's quota."
	case AIErrorNetwork:
		return "Check your internet connection and the configured API base URL."
	case AIErrorServer:
		return "The AI service is having problems. Try again in a few minutes."
	case AIErrorValidation:
		return "The AI service returned an unexpected answer. Try again; if it persists, try a different model."
	case AIErrorTimeout:
		return "The AI service took too long to answer. Try again or raise ai.request_timeout."
	default:
		return "Try again. If the problem persists, check the logs for details."
	}
}

// AIServiceError is a classified completion API failure.
type AIServiceError struct {
	Type       AIErrorType `json:"error_type"`
	Message    string      `json:"message"`
	StatusCode int         `json:"status_code,omitempty"`
	Retryable  bool        `json:"retryable"`
	Suggestion string      `json:"suggestion,omitempty"`

	// Attempts is the number of calls made before giving up.
	Attempts int `json:"attempts,omitempty"`

	Err error `json:"-"`
}

// NewAIServiceError creates an AIServiceError, deriving Retryable and
// Suggestion from the error type.
func NewAIServiceError(t AIErrorType, message string, statusCode int, cause error) *AIServiceError {
	return &AIServiceError{
		Type:       t,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  t.Retryable(),
		Suggestion: t.Suggestion(),
		Err:        cause,
	}
}

// Error implements the error interface.
func (e *AIServiceError) Error() string {
	msg := fmt.Sprintf("ai %s: %s", e.Type, e.Message)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Attempts > 1 {
		msg += fmt.Sprintf(" after %d attempts", e.Attempts)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *AIServiceError) Unwrap() error {
	return e.Err
}
