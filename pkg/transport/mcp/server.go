// Package mcp exposes the dojo operations as Model Context Protocol tools
// so that editor agents can run katas and request judgements over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rhuss/dojo/pkg/api"
	"github.com/rhuss/dojo/pkg/transport"
)

// ExecuteInput mirrors api.ExecutionRequest.
type ExecuteInput struct {
	Language      string `json:"language" jsonschema:"kata language: py, js, ts or cpp"`
	Code          string `json:"code" jsonschema:"the learner's source code"`
	KataPath      string `json:"kata_path" jsonschema:"absolute path of the kata directory"`
	IncludeHidden bool   `json:"include_hidden,omitempty" jsonschema:"also run the kata's hidden tests"`
	TimeoutMs     int    `json:"timeout_ms,omitempty" jsonschema:"run timeout in milliseconds, defaults to the kata's"`
}

// DependenciesInput mirrors api.CheckDependenciesRequest.
type DependenciesInput struct {
	Refresh bool `json:"refresh,omitempty" jsonschema:"probe the toolchains again instead of using the cached snapshot"`
}

// JudgeInput mirrors api.JudgeRequest without the kind, which the tool names.
type JudgeInput struct {
	Content             string      `json:"content" jsonschema:"the learner's submission"`
	Rubric              *api.Rubric `json:"rubric,omitempty" jsonschema:"scoring rubric, required unless kata_path is set"`
	KataPath            string      `json:"kata_path,omitempty" jsonschema:"kata directory whose meta.yaml supplies the rubric"`
	Topic               string      `json:"topic,omitempty"`
	Context             string      `json:"context,omitempty"`
	ExpectedStructure   string      `json:"expected_structure,omitempty"`
	TemplateType        string      `json:"template_type,omitempty"`
	CodebaseDescription string      `json:"codebase_description,omitempty"`
}

// GenerateInput mirrors api.GenerateRequest.
type GenerateInput struct {
	Prompt string         `json:"prompt" jsonschema:"what to generate"`
	Schema map[string]any `json:"schema,omitempty" jsonschema:"JSON Schema the generated object must satisfy"`
}

// Server serves the operations over MCP.
type Server struct {
	server  *mcp.Server
	handler transport.Handler
	logger  *slog.Logger
}

// NewServer registers one tool per operation. h is wrapped in the default
// middleware chain.
func NewServer(h transport.Handler, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		server:  mcp.NewServer(&mcp.Implementation{Name: "dojo", Version: version}, nil),
		handler: transport.Defaults(logger)(h),
		logger:  logger,
	}

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "execute_code",
		Description: "Run learner code against a kata's tests and return per-test results, output and score",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in ExecuteInput) (*mcp.CallToolResult, any, error) {
		return s.call(ctx, transport.OpExecute, in)
	})

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "check_dependencies",
		Description: "Report which language toolchains are installed, with versions and installation guides",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in DependenciesInput) (*mcp.CallToolResult, any, error) {
		return s.call(ctx, transport.OpCheckDependencies, in)
	})

	judges := []struct {
		op   transport.Operation
		name string
		desc string
	}{
		{transport.OpJudgeExplanation, "judge_explanation", "Score a written explanation of a concept against a rubric"},
		{transport.OpJudgeTemplate, "judge_template", "Score a filled-in learning template against a rubric"},
		{transport.OpJudgeCodebase, "judge_codebase", "Score an analysis of an existing codebase against a rubric"},
	}
	for _, j := range judges {
		mcp.AddTool(s.server, &mcp.Tool{Name: j.name, Description: j.desc},
			func(ctx context.Context, _ *mcp.CallToolRequest, in JudgeInput) (*mcp.CallToolResult, any, error) {
				return s.call(ctx, j.op, in)
			})
	}

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "generate",
		Description: "Ask the AI model for a JSON object, optionally constrained by a JSON Schema",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in GenerateInput) (*mcp.CallToolResult, any, error) {
		return s.call(ctx, transport.OpGenerate, in)
	})

	return s
}

// MCPServer returns the underlying SDK server.
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}

// Run serves over stdin and stdout until ctx is done or the client leaves.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("mcp server starting", "transport", "stdio")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// call dispatches one tool call. Operation failures are tool errors whose
// text is the same JSON error body the HTTP transport sends.
func (s *Server) call(ctx context.Context, op transport.Operation, in any) (*mcp.CallToolResult, any, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, nil, err
	}

	out, err := s.handler.Handle(ctx, &transport.Request{Op: op, Body: body})
	if err != nil {
		_, errBody := transport.Describe(err)
		text, _ := json.Marshal(api.ErrorResponse{Error: errBody})
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{&mcp.TextContent{Text: string(text)}},
		}, nil, nil
	}

	text, err := json.Marshal(out)
	if err != nil {
		return nil, nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(text)}},
	}, out, nil
}
