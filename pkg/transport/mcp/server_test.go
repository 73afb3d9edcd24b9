package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sort"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rhuss/dojo/pkg/api"
	"github.com/rhuss/dojo/pkg/transport"
)

type fakeHandler struct {
	got []*transport.Request
}

func (f *fakeHandler) Handle(_ context.Context, req *transport.Request) (any, error) {
	f.got = append(f.got, req)
	switch req.Op {
	case transport.OpExecute:
		return &api.ExecutionResult{Success: true, Score: 100, TestResults: []api.TestResult{{Name: "test_add", Passed: true}}}, nil
	case transport.OpGenerate:
		return nil, api.NewAIServiceError(api.AIErrorAuth, "missing API key", 0, nil)
	default:
		return map[string]string{"op": string(req.Op)}, nil
	}
}

func connect(t *testing.T, h transport.Handler) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	s := NewServer(h, "test", slog.New(slog.NewTextHandler(io.Discard, nil)))

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	ss, err := s.MCPServer().Connect(ctx, serverTransport, nil)
	if err != nil {
		t.Fatalf("server connect: %v", err)
	}
	t.Cleanup(func() { _ = ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { _ = cs.Close() })
	return cs
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) != 1 {
		t.Fatalf("content has %d parts", len(res.Content))
	}
	tc, ok := res.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T", res.Content[0])
	}
	return tc.Text
}

func TestListTools(t *testing.T) {
	cs := connect(t, &fakeHandler{})
	res, err := cs.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
		if tool.InputSchema == nil {
			t.Errorf("tool %s has no input schema", tool.Name)
		}
	}
	sort.Strings(names)
	want := "check_dependencies execute_code generate judge_codebase judge_explanation judge_template"
	if got := strings.Join(names, " "); got != want {
		t.Errorf("tools = %s", got)
	}
}

func TestExecuteTool(t *testing.T) {
	h := &fakeHandler{}
	cs := connect(t, h)

	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name: "execute_code",
		Arguments: map[string]any{
			"language":  "python",
			"code":      "def add(a, b): return a + b",
			"kata_path": "/katas/add",
		},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if res.IsError {
		t.Fatalf("tool error: %s", text(t, res))
	}

	var got api.ExecutionResult
	if err := json.Unmarshal([]byte(text(t, res)), &got); err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if !got.Success || len(got.TestResults) != 1 {
		t.Errorf("result = %+v", got)
	}

	var req api.ExecutionRequest
	if err := json.Unmarshal(h.got[0].Body, &req); err != nil {
		t.Fatalf("decoding forwarded body: %v", err)
	}
	if h.got[0].Op != transport.OpExecute || req.Language != api.LanguagePython || req.KataPath != "/katas/add" {
		t.Errorf("forwarded %s %+v", h.got[0].Op, req)
	}
}

func TestJudgeToolsSelectKind(t *testing.T) {
	h := &fakeHandler{}
	cs := connect(t, h)

	for _, name := range []string{"judge_explanation", "judge_template", "judge_codebase"} {
		res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
			Name:      name,
			Arguments: map[string]any{"content": "my answer", "kata_path": "/katas/explain"},
		})
		if err != nil || res.IsError {
			t.Fatalf("%s: err=%v result=%+v", name, err, res)
		}
		last := h.got[len(h.got)-1]
		if string(last.Op) != name {
			t.Errorf("%s dispatched %s", name, last.Op)
		}
	}
}

func TestToolErrorCarriesErrorBody(t *testing.T) {
	cs := connect(t, &fakeHandler{})
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "generate",
		Arguments: map[string]any{"prompt": "a kata about maps"},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected a tool error")
	}
	var body struct {
		Error api.AIServiceError `json:"error"`
	}
	if err := json.Unmarshal([]byte(text(t, res)), &body); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	if body.Error.Type != api.AIErrorAuth || body.Error.Suggestion == "" {
		t.Errorf("error = %+v", body.Error)
	}
}
