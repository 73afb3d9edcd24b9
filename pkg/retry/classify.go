// Package retry classifies completion API failures and retries the
// transient ones with capped exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"

	"github.com/rhuss/dojo/pkg/api"
)

// StatusCoder is implemented by errors that carry an HTTP status code.
type StatusCoder interface {
	HTTPStatus() int
}

// Classify maps an error onto the fixed AI error taxonomy. An error that
// already is an *api.AIServiceError is returned unchanged.
func Classify(err error) *api.AIServiceError {
	if err == nil {
		return nil
	}

	var aiErr *api.AIServiceError
	if errors.As(err, &aiErr) {
		return aiErr
	}

	if errors.Is(err, api.ErrMalformedResponse) {
		return api.NewAIServiceError(api.AIErrorValidation,
			"the AI service returned a response that could not be understood", 0, err)
	}

	var sc StatusCoder
	if errors.As(err, &sc) {
		return classifyStatus(sc.HTTPStatus(), err)
	}

	if isTimeout(err) {
		return api.NewAIServiceError(api.AIErrorTimeout, "the AI service did not answer in time", 0, err)
	}
	if isNetwork(err) {
		return api.NewAIServiceError(api.AIErrorNetwork,
			fmt.Sprintf("could not reach the AI service: %v", err), 0, err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "quota"), strings.Contains(msg, "rate limit"):
		return api.NewAIServiceError(api.AIErrorRateLimit, "the AI service quota or rate limit was exceeded", 0, err)
	case strings.Contains(msg, "api key"), strings.Contains(msg, "unauthorized"), strings.Contains(msg, "invalid credential"):
		return api.NewAIServiceError(api.AIErrorAuth, "the AI service rejected the credentials", 0, err)
	}

	return api.NewAIServiceError(api.AIErrorUnknown, err.Error(), 0, err)
}

func classifyStatus(code int, err error) *api.AIServiceError {
	detail := err.Error()
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return api.NewAIServiceError(api.AIErrorAuth, "the AI service rejected the API key", code, err)
	case code == http.StatusTooManyRequests:
		return api.NewAIServiceError(api.AIErrorRateLimit, "the AI service is rate limiting requests", code, err)
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return api.NewAIServiceError(api.AIErrorTimeout, "the AI service did not answer in time", code, err)
	case code >= 500:
		return api.NewAIServiceError(api.AIErrorServer, "the AI service failed: "+detail, code, err)
	case strings.Contains(strings.ToLower(detail), "quota"):
		return api.NewAIServiceError(api.AIErrorRateLimit, "the AI service quota was exceeded", code, err)
	default:
		return api.NewAIServiceError(api.AIErrorUnknown, detail, code, err)
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, syscall.ETIMEDOUT) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func isNetwork(err error) bool {
	switch {
	case errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNABORTED),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.EOF):
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "no such host")
}
