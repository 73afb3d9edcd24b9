package transport

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/rhuss/dojo/pkg/api"
)

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next Handler) Handler {
			return HandlerFunc(func(ctx context.Context, req *Request) (any, error) {
				order = append(order, name+">")
				out, err := next.Handle(ctx, req)
				order = append(order, "<"+name)
				return out, err
			})
		}
	}
	h := Chain(mw("a"), mw("b"))(HandlerFunc(func(context.Context, *Request) (any, error) {
		order = append(order, "handler")
		return "ok", nil
	}))

	out, err := h.Handle(context.Background(), &Request{Op: OpExecute})
	if err != nil || out != "ok" {
		t.Fatalf("Handle = %v, %v", out, err)
	}
	if got := strings.Join(order, " "); got != "a> b> handler <b <a" {
		t.Errorf("order = %s", got)
	}
}

func TestRecovery(t *testing.T) {
	h := Recovery()(HandlerFunc(func(context.Context, *Request) (any, error) {
		panic("boom")
	}))
	out, err := h.Handle(context.Background(), &Request{Op: OpGenerate})
	var apiErr *api.APIError
	if out != nil || !errors.As(err, &apiErr) || apiErr.Type != api.ErrorTypeServerError {
		t.Fatalf("Handle = %v, %v", out, err)
	}
	if !strings.Contains(apiErr.Message, "boom") {
		t.Errorf("Message = %q", apiErr.Message)
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID()(HandlerFunc(func(ctx context.Context, _ *Request) (any, error) {
		seen = RequestIDFromContext(ctx)
		return nil, nil
	}))

	_, _ = h.Handle(context.Background(), &Request{})
	if !api.ValidateRequestID(seen) {
		t.Errorf("generated id %q is not a request id", seen)
	}

	_, _ = h.Handle(ContextWithRequestID(context.Background(), "from-client"), &Request{})
	if seen != "from-client" {
		t.Errorf("id = %q, want the caller's", seen)
	}
}

func TestLogging(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantLevel string
		wantMsg   string
	}{
		{"success", nil, "level=INFO", "operation completed"},
		{"failure", errors.New("kaboom"), "level=ERROR", "operation failed"},
		{"cancelled", context.Canceled, "level=INFO", "operation cancelled"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, nil))
			h := Chain(RequestID(), Logging(logger))(HandlerFunc(func(context.Context, *Request) (any, error) {
				return nil, tt.err
			}))
			_, _ = h.Handle(context.Background(), &Request{Op: OpJudgeTemplate})

			line := buf.String()
			for _, want := range []string{tt.wantLevel, tt.wantMsg, "op=judge_template", "request_id=req_"} {
				if !strings.Contains(line, want) {
					t.Errorf("log line lacks %q: %s", want, line)
				}
			}
		})
	}
}

func TestParseOperation(t *testing.T) {
	for _, op := range Operations {
		got, err := ParseOperation(string(op))
		if err != nil || got != op {
			t.Errorf("ParseOperation(%q) = %q, %v", op, got, err)
		}
	}
	if _, err := ParseOperation("compile"); err == nil {
		t.Error("unknown operation accepted")
	}
}
