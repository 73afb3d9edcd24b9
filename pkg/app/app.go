// Package app binds the engine, the dependency prober and the AI judge to
// the transport operations.
package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/rhuss/dojo/pkg/api"
	"github.com/rhuss/dojo/pkg/transport"
)

// Executor runs code katas. *engine.Engine satisfies it.
type Executor interface {
	Execute(ctx context.Context, req *api.ExecutionRequest) (*api.ExecutionResult, error)
}

// Dependencies reports toolchain status. *probe.Prober satisfies it.
type Dependencies interface {
	Probe(ctx context.Context) (*api.SystemDependencies, error)
	Refresh(ctx context.Context) (*api.SystemDependencies, error)
}

// Judge scores submissions and generates content. *judge.Client satisfies it.
type Judge interface {
	Judge(ctx context.Context, req *api.JudgeRequest) (*api.JudgeResult, error)
	Generate(ctx context.Context, prompt string, schema json.RawMessage) (json.RawMessage, error)
}

// App implements transport.Handler.
type App struct {
	exec   Executor
	deps   Dependencies
	judge  Judge
	logger *slog.Logger
}

var _ transport.Handler = (*App)(nil)

// New creates an App.
func New(exec Executor, deps Dependencies, judge Judge, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	return &App{exec: exec, deps: deps, judge: judge, logger: logger}
}

// Handle decodes req.Body for req.Op and runs the operation.
func (a *App) Handle(ctx context.Context, req *transport.Request) (any, error) {
	switch req.Op {
	case transport.OpExecute:
		var in api.ExecutionRequest
		if err := decode(req.Body, &in); err != nil {
			return nil, err
		}
		return a.exec.Execute(ctx, &in)

	case transport.OpCheckDependencies:
		var in api.CheckDependenciesRequest
		if err := decode(req.Body, &in); err != nil {
			return nil, err
		}
		return a.dependencies(ctx, in.Refresh)

	case transport.OpJudgeExplanation, transport.OpJudgeTemplate, transport.OpJudgeCodebase:
		var in api.JudgeRequest
		if err := decode(req.Body, &in); err != nil {
			return nil, err
		}
		kind := judgeKind(req.Op)
		if in.Kind != "" && in.Kind != kind {
			return nil, api.NewInvalidRequestError("kind",
				fmt.Sprintf("kind %q does not match operation %s", in.Kind, req.Op))
		}
		in.Kind = kind
		return a.judge.Judge(ctx, &in)

	case transport.OpGenerate:
		var in api.GenerateRequest
		if err := decode(req.Body, &in); err != nil {
			return nil, err
		}
		out, err := a.judge.Generate(ctx, in.Prompt, in.Schema)
		if err != nil {
			return nil, err
		}
		return &api.GenerateResult{Content: out}, nil

	default:
		return nil, api.NewNotFoundError(fmt.Sprintf("unknown operation %q", req.Op))
	}
}

func (a *App) dependencies(ctx context.Context, refresh bool) (*api.SystemDependencies, error) {
	var (
		deps *api.SystemDependencies
		err  error
	)
	if refresh {
		deps, err = a.deps.Refresh(ctx)
	} else {
		deps, err = a.deps.Probe(ctx)
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		a.logger.Error("dependency probe failed", "error", err)
		return nil, api.NewServerError("dependency probe failed: " + err.Error())
	}
	return deps, nil
}

func judgeKind(op transport.Operation) api.JudgeKind {
	switch op {
	case transport.OpJudgeTemplate:
		return api.JudgeTemplate
	case transport.OpJudgeCodebase:
		return api.JudgeCodebase
	default:
		return api.JudgeExplanation
	}
}

// decode reads one JSON object and rejects unknown fields. An empty body
// decodes as the zero value.
func decode(body json.RawMessage, v any) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return api.NewInvalidRequestError("body", "invalid request body: "+err.Error())
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return api.NewInvalidRequestError("body", "request body must hold a single JSON object")
	}
	return nil
}
