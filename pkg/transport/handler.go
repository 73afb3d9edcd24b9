package transport

import (
	"context"
	"encoding/json"
	"fmt"
)

// Operation names one engine operation.
type Operation string

const (
	OpExecute           Operation = "execute"
	OpCheckDependencies Operation = "check_dependencies"
	OpJudgeExplanation  Operation = "judge_explanation"
	OpJudgeTemplate     Operation = "judge_template"
	OpJudgeCodebase     Operation = "judge_codebase"
	OpGenerate          Operation = "generate"
)

// Operations lists every operation in a stable order.
var Operations = []Operation{
	OpExecute,
	OpCheckDependencies,
	OpJudgeExplanation,
	OpJudgeTemplate,
	OpJudgeCodebase,
	OpGenerate,
}

// ParseOperation returns the operation named s.
func ParseOperation(s string) (Operation, error) {
	for _, op := range Operations {
		if string(op) == s {
			return op, nil
		}
	}
	return "", fmt.Errorf("unknown operation %q", s)
}

// Request is one operation call. Body holds the operation's JSON arguments.
type Request struct {
	Op   Operation
	Body json.RawMessage
}

// Handler executes operations. The returned value is serialized as JSON.
type Handler interface {
	Handle(ctx context.Context, req *Request) (any, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, req *Request) (any, error)

// Handle calls f(ctx, req).
func (f HandlerFunc) Handle(ctx context.Context, req *Request) (any, error) {
	return f(ctx, req)
}
