package sandbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"time"

	"github.com/rhuss/dojo/pkg/debug"
)

const (
	// DefaultGracePeriod is the wait between SIGTERM and SIGKILL.
	DefaultGracePeriod = 200 * time.Millisecond

	// DefaultMaxOutputBytes caps each captured stream.
	DefaultMaxOutputBytes = 1 << 20
)

// Command describes one child process.
type Command struct {
	// Path is the executable, resolved through PATH when it has no separator.
	Path string
	Args []string
	Dir  string

	// Env is the complete environment. Nil inherits the parent's.
	Env []string

	Stdin io.Reader

	// Timeout is the wall-clock budget. Zero means no deadline beyond ctx.
	Timeout time.Duration
}

// String renders the command line for logs.
func (c Command) String() string {
	s := c.Path
	for _, a := range c.Args {
		s += " " + a
	}
	return s
}

// Result is the outcome of a completed or terminated child.
type Result struct {
	// ExitCode is the child's exit status, or -1 when it died from a signal.
	ExitCode int

	Stdout          string
	Stderr          string
	StdoutTruncated bool
	StderrTruncated bool

	TimedOut  bool
	Cancelled bool

	Duration time.Duration

	// PID of the group leader; the process group ID equals it.
	PID int
}

// Config holds sandbox settings.
type Config struct {
	GracePeriod    time.Duration
	MaxOutputBytes int
	Logger         *slog.Logger
}

// Runner starts children and enforces their deadlines. It holds no
// per-run state and is safe for concurrent use.
type Runner struct {
	grace     time.Duration
	maxOutput int
	logger    *slog.Logger
}

// New creates a Runner, filling zero fields with defaults.
func New(cfg Config) *Runner {
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = DefaultGracePeriod
	}
	if cfg.MaxOutputBytes <= 0 {
		cfg.MaxOutputBytes = DefaultMaxOutputBytes
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Runner{
		grace:     cfg.GracePeriod,
		maxOutput: cfg.MaxOutputBytes,
		logger:    cfg.Logger,
	}
}

// Run starts the command and waits for it to finish, time out, or be
// cancelled through ctx. Only a failure to start the process is returned
// as an error; every other outcome is described by the Result.
func (r *Runner) Run(ctx context.Context, c Command) (*Result, error) {
	if c.Path == "" {
		return nil, errors.New("sandbox: command path is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("sandbox: %w", err)
	}

	stdout := newCappedBuffer(r.maxOutput)
	stderr := newCappedBuffer(r.maxOutput)

	cmd := exec.Command(c.Path, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = c.Env
	cmd.Stdin = c.Stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	// Grandchildren holding the pipes open must not stall Wait forever.
	cmd.WaitDelay = r.grace
	configureProcessGroup(cmd)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", c.Path, err)
	}
	pid := cmd.Process.Pid
	debug.Log("sandbox", "spawned", "cmd", c.String(), "dir", c.Dir, "pid", pid, "timeout", c.Timeout)

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var deadline <-chan time.Time
	if c.Timeout > 0 {
		timer := time.NewTimer(c.Timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	res := &Result{PID: pid}
	var waitErr error
	select {
	case waitErr = <-done:
	case <-deadline:
		res.TimedOut = true
		waitErr = r.terminate(pid, done)
	case <-ctx.Done():
		res.Cancelled = true
		waitErr = r.terminate(pid, done)
	}

	// Sweep whatever the leader left behind in its group.
	if err := killGroup(pid); err != nil {
		r.logger.Debug("process group sweep", "pid", pid, "error", err)
	}

	res.Duration = time.Since(start)
	res.Stdout, res.StdoutTruncated = stdout.snapshot()
	res.Stderr, res.StderrTruncated = stderr.snapshot()
	res.ExitCode = exitCode(cmd, waitErr)

	r.logger.Debug("sandbox run finished",
		"command", c.Path,
		"pid", pid,
		"exit_code", res.ExitCode,
		"timed_out", res.TimedOut,
		"cancelled", res.Cancelled,
		"duration", res.Duration,
	)

	return res, nil
}

// terminate sends SIGTERM to the group, waits out the grace period and
// escalates to SIGKILL.
func (r *Runner) terminate(pid int, done <-chan error) error {
	if err := signalGroup(pid, sigTerm); err != nil {
		r.logger.Debug("SIGTERM to process group failed", "pid", pid, "error", err)
	}

	grace := time.NewTimer(r.grace)
	defer grace.Stop()

	select {
	case err := <-done:
		return err
	case <-grace.C:
	}

	if err := killGroup(pid); err != nil {
		r.logger.Debug("SIGKILL to process group failed", "pid", pid, "error", err)
	}
	return <-done
}

func exitCode(cmd *exec.Cmd, waitErr error) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
