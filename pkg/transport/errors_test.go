package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rhuss/dojo/pkg/api"
)

func TestDescribe(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"invalid request", api.NewInvalidRequestError("code", "too long"), http.StatusBadRequest},
		{"unauthorized", api.NewUnauthorizedError("no"), http.StatusUnauthorized},
		{"forbidden", api.NewForbiddenError("no"), http.StatusForbidden},
		{"not found", api.NewNotFoundError("gone"), http.StatusNotFound},
		{"saturated", api.NewTooManyRequestsError("queue full"), http.StatusTooManyRequests},
		{"server", api.NewServerError("bad"), http.StatusInternalServerError},
		{"wrapped api error", fmt.Errorf("execute: %w", api.NewInvalidRequestError("language", "x")), http.StatusBadRequest},
		{"ai rate limit", api.NewAIServiceError(api.AIErrorRateLimit, "slow down", 429, nil), http.StatusTooManyRequests},
		{"ai timeout", api.NewAIServiceError(api.AIErrorTimeout, "slow", 0, nil), http.StatusGatewayTimeout},
		{"ai auth", api.NewAIServiceError(api.AIErrorAuth, "bad key", 401, nil), http.StatusBadGateway},
		{"ai validation", api.NewAIServiceError(api.AIErrorValidation, "garbled", 0, nil), http.StatusBadGateway},
		{"cancelled", context.Canceled, StatusClientClosedRequest},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"plain", errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := Describe(tt.err)
			if status != tt.wantStatus {
				t.Errorf("status = %d, want %d", status, tt.wantStatus)
			}
			if body == nil {
				t.Error("nil error body")
			}
		})
	}
}

func TestWriteErrorAIServiceBody(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, api.NewAIServiceError(api.AIErrorAuth, "invalid key", 401, nil))

	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var body struct {
		Error struct {
			Type       string `json:"error_type"`
			Retryable  bool   `json:"retryable"`
			Suggestion string `json:"suggestion"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if body.Error.Type != "auth" || body.Error.Retryable || body.Error.Suggestion == "" {
		t.Errorf("body = %+v", body.Error)
	}
}
