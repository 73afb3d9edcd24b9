// Package http serves the dojo operations over HTTP with JSON bodies.
package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/rhuss/dojo/pkg/api"
	"github.com/rhuss/dojo/pkg/auth"
	"github.com/rhuss/dojo/pkg/transport"
)

// Adapter routes HTTP requests to a transport.Handler.
type Adapter struct {
	handler  transport.Handler
	inflight *transport.InFlightRegistry
	mux      *http.ServeMux
	config   Config
}

// Config holds adapter settings.
type Config struct {
	MaxBodySize int64
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{MaxBodySize: 2 << 20}
}

// NewAdapter creates an Adapter. Middleware wraps h in the given order.
func NewAdapter(h transport.Handler, cfg Config, middlewares ...transport.Middleware) *Adapter {
	if len(middlewares) > 0 {
		h = transport.Chain(middlewares...)(h)
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = DefaultConfig().MaxBodySize
	}
	a := &Adapter{
		handler:  h,
		inflight: transport.NewInFlightRegistry(),
		mux:      http.NewServeMux(),
		config:   cfg,
	}

	a.mux.HandleFunc("POST /v1/execute", a.operation(transport.OpExecute))
	a.mux.HandleFunc("GET /v1/dependencies", a.handleDependencies)
	a.mux.HandleFunc("POST /v1/dependencies/refresh", a.handleRefresh)
	a.mux.HandleFunc("POST /v1/judge/{kind}", a.handleJudge)
	a.mux.HandleFunc("POST /v1/generate", a.operation(transport.OpGenerate))
	a.mux.HandleFunc("DELETE /v1/requests/{id}", a.handleCancel)
	return a
}

// Handler returns the routed handler with X-Request-ID propagation.
func (a *Adapter) Handler() http.Handler {
	return requestIDMiddleware(a.mux)
}

// InFlight returns the registry of running requests.
func (a *Adapter) InFlight() *transport.InFlightRegistry {
	return a.inflight
}

// requestIDMiddleware takes X-Request-ID from the client, or assigns one
// when it is missing or malformed, and echoes it on the response.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if !api.ValidateRequestID(id) {
			id = api.NewRequestID()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(transport.ContextWithRequestID(r.Context(), id)))
	})
}

func (a *Adapter) operation(op transport.Operation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, apiErr := a.readBody(w, r)
		if apiErr != nil {
			writeBodyError(w, apiErr)
			return
		}
		a.dispatch(w, r, &transport.Request{Op: op, Body: body})
	}
}

func (a *Adapter) handleJudge(w http.ResponseWriter, r *http.Request) {
	kind, err := api.ParseJudgeKind(r.PathValue("kind"))
	if err != nil {
		transport.WriteError(w, api.NewNotFoundError(err.Error()))
		return
	}
	a.operation(transport.Operation("judge_" + string(kind)))(w, r)
}

// handleDependencies serves GET /v1/dependencies[?refresh=true].
func (a *Adapter) handleDependencies(w http.ResponseWriter, r *http.Request) {
	refresh := false
	if v := r.URL.Query().Get("refresh"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			transport.WriteError(w, api.NewInvalidRequestError("refresh", "refresh must be a boolean"))
			return
		}
		refresh = b
	}
	a.dispatchDependencies(w, r, refresh)
}

func (a *Adapter) handleRefresh(w http.ResponseWriter, r *http.Request) {
	a.dispatchDependencies(w, r, true)
}

func (a *Adapter) dispatchDependencies(w http.ResponseWriter, r *http.Request, refresh bool) {
	body, _ := json.Marshal(api.CheckDependenciesRequest{Refresh: refresh})
	a.dispatch(w, r, &transport.Request{Op: transport.OpCheckDependencies, Body: body})
}

// handleCancel aborts a running request by its X-Request-ID.
func (a *Adapter) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !a.inflight.Cancel(id) {
		transport.WriteError(w, api.NewNotFoundError(fmt.Sprintf("no running request with id %q", id)))
		return
	}
	transport.WriteJSON(w, http.StatusOK, map[string]any{"id": id, "cancelled": true})
}

func (a *Adapter) dispatch(w http.ResponseWriter, r *http.Request, req *transport.Request) {
	if id := auth.IdentityFromContext(r.Context()); id != nil && !id.Allows(string(req.Op)) {
		transport.WriteError(w, api.NewForbiddenError(fmt.Sprintf("operation %s is not granted", req.Op)))
		return
	}

	ctx, release := a.inflight.Track(r.Context(), transport.RequestIDFromContext(r.Context()))
	defer release()

	out, err := a.handler.Handle(ctx, req)
	if err != nil {
		transport.WriteError(w, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, out)
}

func (a *Adapter) readBody(w http.ResponseWriter, r *http.Request) (json.RawMessage, *api.APIError) {
	if ct := r.Header.Get("Content-Type"); ct != "" && ct != "application/json" {
		return nil, &api.APIError{
			Type:    api.ErrorTypeInvalidRequest,
			Code:    "unsupported_media_type",
			Param:   "content_type",
			Message: "Content-Type must be application/json",
		}
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, a.config.MaxBodySize))
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return nil, &api.APIError{
				Type:    api.ErrorTypeInvalidRequest,
				Code:    "body_too_large",
				Param:   "body",
				Message: fmt.Sprintf("request body too large (max %d bytes)", a.config.MaxBodySize),
			}
		}
		return nil, api.NewInvalidRequestError("body", "reading body: "+err.Error())
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, api.NewInvalidRequestError("body", "request body is required")
	}
	if !json.Valid(data) {
		return nil, api.NewInvalidRequestError("body", "request body is not valid JSON")
	}
	return data, nil
}

func writeBodyError(w http.ResponseWriter, apiErr *api.APIError) {
	status := http.StatusBadRequest
	switch apiErr.Code {
	case "unsupported_media_type":
		status = http.StatusUnsupportedMediaType
	case "body_too_large":
		status = http.StatusRequestEntityTooLarge
	}
	transport.WriteJSON(w, status, api.ErrorResponse{Error: apiErr})
}
