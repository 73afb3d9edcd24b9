package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/rhuss/dojo/pkg/api"
	"github.com/rhuss/dojo/pkg/debug"
	"github.com/rhuss/dojo/pkg/kata"
	"github.com/rhuss/dojo/pkg/observability"
	"github.com/rhuss/dojo/pkg/report"
	"github.com/rhuss/dojo/pkg/runner"
	"github.com/rhuss/dojo/pkg/sandbox"
)

// Sandbox runs one child process. *sandbox.Runner satisfies it.
type Sandbox interface {
	Run(ctx context.Context, c sandbox.Command) (*sandbox.Result, error)
}

// Prober reports cached toolchain availability. *probe.Prober satisfies it.
type Prober interface {
	Probe(ctx context.Context) (*api.SystemDependencies, error)
}

// Engine dispatches execution requests to language adapters.
type Engine struct {
	sandbox Sandbox
	prober  Prober
	pool    *Pool
	cfg     Config
	logger  *slog.Logger
}

// New creates an Engine and starts its worker pool. Call Close to stop it.
func New(sb Sandbox, prober Prober, cfg Config) (*Engine, error) {
	if sb == nil {
		return nil, errors.New("engine: sandbox must not be nil")
	}
	if prober == nil {
		return nil, errors.New("engine: prober must not be nil")
	}
	cfg = cfg.withDefaults()
	return &Engine{
		sandbox: sb,
		prober:  prober,
		pool:    NewPool(cfg.MaxConcurrent, cfg.QueueSize, cfg.Logger),
		cfg:     cfg,
		logger:  cfg.Logger,
	}, nil
}

// Close waits for running executions and stops the workers.
func (e *Engine) Close() {
	e.pool.Close()
}

// Execute runs the learner's code against the kata's tests.
func (e *Engine) Execute(ctx context.Context, req *api.ExecutionRequest) (*api.ExecutionResult, error) {
	if apiErr := api.ValidateExecutionRequest(req, e.cfg.Validation); apiErr != nil {
		return nil, apiErr
	}

	k, err := kata.Load(req.KataPath)
	if err != nil {
		return nil, api.NewInvalidRequestError("kata_path", err.Error())
	}
	if k.Meta.Type != api.KataTypeCode && k.Meta.Type != api.KataTypeTemplate {
		return nil, api.NewInvalidRequestError("kata_path",
			fmt.Sprintf("%s katas are judged, not executed", k.Meta.Type))
	}
	timeout := e.resolveTimeout(req, k)

	deps, err := e.prober.Probe(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, api.NewServerError(fmt.Sprintf("probing toolchains: %v", err))
	}
	status, ok := deps.Lookup(req.Language)
	if !ok || !status.Available {
		res := toolchainMissing(req.Language, status)
		e.record(req.Language, res, 0)
		return res, nil
	}
	tcs := e.toolchains(deps)

	var res *api.ExecutionResult
	err = e.pool.Submit(ctx, func(ctx context.Context) {
		res = e.run(ctx, req, k, tcs, timeout)
	})
	switch {
	case errors.Is(err, ErrPoolFull):
		return nil, api.NewTooManyRequestsError("too many executions in progress, try again shortly")
	case errors.Is(err, ErrPoolClosed):
		return nil, api.NewServerError("engine is shutting down")
	case err != nil:
		return nil, err
	case res == nil:
		return nil, api.NewServerError("execution failed unexpectedly")
	}
	return res, nil
}

func (e *Engine) resolveTimeout(req *api.ExecutionRequest, k *kata.Kata) time.Duration {
	if req.TimeoutMs > 0 {
		return time.Duration(req.TimeoutMs) * time.Millisecond
	}
	if t := k.Timeout(); t > 0 {
		return t
	}
	return e.cfg.DefaultTimeout
}

// toolchains assembles resolved commands from the probe snapshot.
func (e *Engine) toolchains(deps *api.SystemDependencies) runner.Toolchains {
	get := func(lang api.Language) runner.Toolchain {
		s, _ := deps.Lookup(lang)
		return runner.Toolchain{Command: s.Command, Flags: e.cfg.Flags[lang]}
	}
	return runner.Toolchains{
		Python:     get(api.LanguagePython),
		Node:       get(api.LanguageJavaScript),
		TypeScript: get(api.LanguageTypeScript),
		CPP:        get(api.LanguageCPP),
	}
}

// run executes one submission on a pool worker.
func (e *Engine) run(ctx context.Context, req *api.ExecutionRequest, k *kata.Kata, tcs runner.Toolchains, timeout time.Duration) *api.ExecutionResult {
	start := time.Now()
	res := e.runInWorkspace(ctx, req, k, tcs, timeout)
	res.DurationMs = time.Since(start).Milliseconds()
	e.record(req.Language, res, time.Since(start))

	e.logger.Debug("execution finished",
		"language", req.Language,
		"kata", k.Dir,
		"success", res.Success,
		"score", res.Score,
		"tests", len(res.TestResults),
		"duration_ms", res.DurationMs,
	)
	return res
}

func (e *Engine) runInWorkspace(ctx context.Context, req *api.ExecutionRequest, k *kata.Kata, tcs runner.Toolchains, timeout time.Duration) *api.ExecutionResult {
	dir, err := os.MkdirTemp(e.cfg.WorkDir, "dojo-run-")
	if err != nil {
		return runFailure(fmt.Sprintf("creating workspace: %v", err))
	}
	if e.cfg.KeepWorkspaces {
		e.logger.Info("keeping workspace", "dir", dir)
	} else {
		defer func() {
			if err := os.RemoveAll(dir); err != nil {
				e.logger.Warn("removing workspace", "dir", dir, "error", err)
			}
		}()
	}

	adapter, err := runner.New(req.Language, tcs)
	if err != nil {
		return runFailure(err.Error())
	}
	plan, err := adapter.Prepare(dir, runner.Submission{
		Kata:          k,
		SourceCode:    req.SourceCode,
		IncludeHidden: req.IncludeHidden,
	})
	if err != nil {
		return runFailure(fmt.Sprintf("preparing workspace: %v", err))
	}

	if plan.Compile != nil {
		step := *plan.Compile
		step.Timeout = e.cfg.CompileTimeout
		out, err := e.sandbox.Run(ctx, step)
		if err != nil {
			return runFailure(fmt.Sprintf("starting compiler: %v", err))
		}
		if res, failed := compileOutcome(out, e.cfg.CompileTimeout); failed {
			return res
		}
	}

	step := plan.Run
	step.Timeout = timeout
	out, err := e.sandbox.Run(ctx, step)
	if err != nil {
		return runFailure(fmt.Sprintf("starting test run: %v", err))
	}

	rep := readReport(plan.ReportPath)
	debug.Log("engine", "harness report", "dir", dir, "tests", len(rep.Tests), "malformed", len(rep.Malformed), "read_error", rep.ReadErr)
	return assemble(out, rep, timeout)
}

// compileOutcome turns a finished compile step into a result when it failed.
func compileOutcome(out *sandbox.Result, limit time.Duration) (*api.ExecutionResult, bool) {
	switch {
	case out.TimedOut:
		res := fromSandbox(out)
		res.TimedOut = true
		res.TestResults = []api.TestResult{{
			Name:    "compilation",
			Message: fmt.Sprintf("compilation timed out after %v", limit),
		}}
		res.Diagnostic = &api.Diagnostic{Kind: api.FailureTimeout, Message: res.TestResults[0].Message}
		return res, true
	case out.Cancelled:
		res := fromSandbox(out)
		res.TestResults = []api.TestResult{{Name: "compilation", Message: "execution cancelled"}}
		res.Diagnostic = &api.Diagnostic{Kind: api.FailureRuntimeError, Message: "execution cancelled"}
		return res, true
	case out.ExitCode != 0:
		res := fromSandbox(out)
		res.TestResults = []api.TestResult{}
		res.Diagnostic = &api.Diagnostic{
			Kind:    api.FailureCompileError,
			Message: firstLines(out.Stderr+out.Stdout, 20),
		}
		return res, true
	}
	return nil, false
}

func readReport(path string) report.Report {
	f, err := os.Open(path)
	if err != nil {
		return report.Report{ReadErr: err}
	}
	defer f.Close()
	return report.Parse(f)
}

// assemble builds the result of a completed run step. Diagnostic entries
// keep TestResults non-empty whenever something went wrong.
func assemble(out *sandbox.Result, rep report.Report, timeout time.Duration) *api.ExecutionResult {
	res := fromSandbox(out)

	tests := make([]api.TestResult, 0, len(rep.Tests)+1)
	tests = append(tests, rep.Tests...)
	total, passed := len(tests), rep.Passed()
	res.Score = api.ComputeScore(passed, total)

	switch {
	case out.TimedOut:
		msg := fmt.Sprintf("execution timed out after %v", timeout)
		res.TimedOut = true
		res.Diagnostic = &api.Diagnostic{Kind: api.FailureTimeout, Message: msg}
		tests = append(tests, api.TestResult{Name: "timeout", Message: msg})
	case out.Cancelled:
		res.Diagnostic = &api.Diagnostic{Kind: api.FailureRuntimeError, Message: "execution cancelled"}
		tests = append(tests, api.TestResult{Name: "cancelled", Message: "execution cancelled"})
	case !rep.OK():
		msg := rep.Problem()
		res.Diagnostic = &api.Diagnostic{Kind: api.FailureHarnessParseError, Message: msg}
		tests = append(tests, api.TestResult{Name: "harness", Message: msg})
	case out.ExitCode == runner.ExitHarnessError || (out.ExitCode != 0 && total == 0):
		msg := runtimeMessage(out)
		res.Diagnostic = &api.Diagnostic{Kind: api.FailureRuntimeError, Message: msg}
		tests = append(tests, api.TestResult{Name: "runtime", Message: msg})
	case total == 0:
		msg := "no tests were reported"
		res.Diagnostic = &api.Diagnostic{Kind: api.FailureHarnessParseError, Message: msg}
		tests = append(tests, api.TestResult{Name: "harness", Message: msg})
	}
	res.TestResults = tests

	res.Success = res.Diagnostic == nil && out.ExitCode == runner.ExitAllPassed && passed == total
	return res
}

func fromSandbox(out *sandbox.Result) *api.ExecutionResult {
	code := out.ExitCode
	return &api.ExecutionResult{
		Stdout:          out.Stdout,
		Stderr:          out.Stderr,
		StdoutTruncated: out.StdoutTruncated,
		StderrTruncated: out.StderrTruncated,
		ExitCode:        &code,
	}
}

func toolchainMissing(lang api.Language, status api.DependencyStatus) *api.ExecutionResult {
	msg := fmt.Sprintf("%s toolchain is not available", lang.DisplayName())
	if status.Error != "" {
		msg += ": " + status.Error
	}
	if status.InstallationGuide != "" {
		msg += ". " + status.InstallationGuide
	}
	return &api.ExecutionResult{
		TestResults: []api.TestResult{},
		Diagnostic:  &api.Diagnostic{Kind: api.FailureToolchainMissing, Message: msg},
	}
}

func runFailure(msg string) *api.ExecutionResult {
	return &api.ExecutionResult{
		TestResults: []api.TestResult{{Name: "runtime", Message: msg}},
		Diagnostic:  &api.Diagnostic{Kind: api.FailureRuntimeError, Message: msg},
	}
}

func runtimeMessage(out *sandbox.Result) string {
	detail := firstLines(out.Stderr, 20)
	if detail == "" {
		detail = firstLines(out.Stdout, 20)
	}
	msg := fmt.Sprintf("test run exited with code %d", out.ExitCode)
	if detail != "" {
		msg += ": " + detail
	}
	return msg
}

func firstLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = append(lines[:n], "...")
	}
	return strings.Join(lines, "\n")
}

// outcome labels a result for metrics.
func outcome(res *api.ExecutionResult) string {
	switch {
	case res.Success:
		return "passed"
	case res.Diagnostic != nil:
		return string(res.Diagnostic.Kind)
	default:
		return "failed"
	}
}

func (e *Engine) record(lang api.Language, res *api.ExecutionResult, d time.Duration) {
	observability.ExecutionsTotal.WithLabelValues(string(lang), outcome(res)).Inc()
	if d > 0 {
		observability.ExecutionDuration.WithLabelValues(string(lang)).Observe(d.Seconds())
	}
}
