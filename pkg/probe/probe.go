// Package probe detects which language toolchains are installed.
//
// A Prober runs each toolchain's version command through the sandbox, with
// a short timeout, and publishes the results as one immutable
// api.SystemDependencies snapshot. The snapshot is computed on first use and
// replaced only by an explicit Refresh.
package probe

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rhuss/dojo/pkg/api"
	"github.com/rhuss/dojo/pkg/debug"
	"github.com/rhuss/dojo/pkg/observability"
	"github.com/rhuss/dojo/pkg/sandbox"
)

// DefaultTimeout bounds each version command.
const DefaultTimeout = 3 * time.Second

var versionPattern = regexp.MustCompile(`\d+\.\d+(?:\.\d+)?`)

// Candidate is one way of invoking a toolchain.
type Candidate struct {
	Command string
	Args    []string
}

// Toolchain describes how to detect one language's tools.
type Toolchain struct {
	Language   api.Language
	Name       string
	Candidates []Candidate

	// Requires lists languages whose toolchain must also be available.
	Requires []api.Language

	InstallationGuide string
}

// CommandRunner runs a version command. *sandbox.Runner satisfies it.
type CommandRunner interface {
	Run(ctx context.Context, c sandbox.Command) (*sandbox.Result, error)
}

// Config holds prober settings.
type Config struct {
	Toolchains []Toolchain
	Timeout    time.Duration
	Runner     CommandRunner
	Logger     *slog.Logger

	// LookPath resolves commands; exec.LookPath when nil.
	LookPath func(string) (string, error)
	Now      func() time.Time
}

// Prober probes toolchains and caches the result.
type Prober struct {
	cfg     Config
	current atomic.Pointer[api.SystemDependencies]

	// mu serializes probes; readers never take it.
	mu sync.Mutex
}

// New creates a Prober. A nil Runner uses a default sandbox.
func New(cfg Config) *Prober {
	if cfg.Toolchains == nil {
		cfg.Toolchains = DefaultToolchains(nil)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Runner == nil {
		cfg.Runner = sandbox.New(sandbox.Config{Logger: cfg.Logger, MaxOutputBytes: 64 << 10})
	}
	if cfg.LookPath == nil {
		cfg.LookPath = exec.LookPath
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Prober{cfg: cfg}
}

// Cached returns the current snapshot without probing, or nil.
func (p *Prober) Cached() *api.SystemDependencies {
	return p.current.Load()
}

// Probe returns the cached snapshot, probing once if there is none.
func (p *Prober) Probe(ctx context.Context) (*api.SystemDependencies, error) {
	if snap := p.current.Load(); snap != nil {
		return snap, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if snap := p.current.Load(); snap != nil {
		return snap, nil
	}
	return p.probeLocked(ctx)
}

// Refresh probes every toolchain and atomically replaces the snapshot.
func (p *Prober) Refresh(ctx context.Context) (*api.SystemDependencies, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.probeLocked(ctx)
}

// Status returns the cached status for one language.
func (p *Prober) Status(ctx context.Context, lang api.Language) (api.DependencyStatus, error) {
	snap, err := p.Probe(ctx)
	if err != nil {
		return api.DependencyStatus{}, err
	}
	s, ok := snap.Lookup(lang)
	if !ok {
		return api.DependencyStatus{}, fmt.Errorf("no toolchain registered for %s", lang)
	}
	return s, nil
}

func (p *Prober) probeLocked(ctx context.Context) (*api.SystemDependencies, error) {
	start := p.cfg.Now()
	statuses := make([]api.DependencyStatus, len(p.cfg.Toolchains))

	g, gctx := errgroup.WithContext(ctx)
	for i, tc := range p.cfg.Toolchains {
		g.Go(func() error {
			statuses[i] = p.check(gctx, tc)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("probing toolchains: %w", err)
	}

	applyRequirements(p.cfg.Toolchains, statuses)

	snap := api.NewSystemDependencies(statuses, start)
	p.current.Store(snap)

	for _, s := range statuses {
		v := 0.0
		if s.Available {
			v = 1
		}
		observability.ToolchainAvailable.WithLabelValues(string(s.Language)).Set(v)
	}
	p.cfg.Logger.Info("toolchains probed",
		"all_available", snap.AllAvailable,
		"duration", p.cfg.Now().Sub(start),
	)
	return snap, nil
}

// check tries each candidate in order and reports the first that answers.
func (p *Prober) check(ctx context.Context, tc Toolchain) api.DependencyStatus {
	status := api.DependencyStatus{
		Language:          tc.Language,
		Name:              tc.Name,
		InstallationGuide: tc.InstallationGuide,
	}

	var errs []string
	for _, c := range tc.Candidates {
		path, version, err := p.try(ctx, c)
		if err != nil {
			errs = append(errs, err.Error())
			continue
		}
		status.Available = true
		status.Version = version
		status.Command = path
		status.InstallationGuide = ""
		p.cfg.Logger.Debug("toolchain found", "language", tc.Language, "command", path, "version", version)
		return status
	}

	status.Error = strings.Join(errs, "; ")
	if status.Error == "" {
		status.Error = "no candidate commands configured"
	}
	p.cfg.Logger.Debug("toolchain missing", "language", tc.Language, "error", status.Error)
	return status
}

func (p *Prober) try(ctx context.Context, c Candidate) (string, string, error) {
	path, err := p.cfg.LookPath(c.Command)
	if err != nil {
		return "", "", fmt.Errorf("%s: not found", c.Command)
	}

	res, err := p.cfg.Runner.Run(ctx, sandbox.Command{
		Path:    path,
		Args:    c.Args,
		Timeout: p.cfg.Timeout,
	})
	if err != nil {
		return "", "", fmt.Errorf("%s: %w", c.Command, err)
	}
	line := strings.TrimSpace(strings.Join(c.Args, " "))
	switch {
	case res.TimedOut:
		return "", "", fmt.Errorf("%s %s timed out after %v", c.Command, line, p.cfg.Timeout)
	case res.Cancelled:
		return "", "", fmt.Errorf("%s %s: %w", c.Command, line, context.Canceled)
	case res.ExitCode != 0:
		return "", "", fmt.Errorf("%s %s exited with %d: %s", c.Command, line, res.ExitCode, firstLine(res.Stderr))
	}

	version := ParseVersion(res.Stdout + "\n" + res.Stderr)
	debug.Log("probe", "version query", "cmd", path, "stdout", firstLine(res.Stdout), "stderr", firstLine(res.Stderr))
	if version == "" {
		return "", "", fmt.Errorf("%s %s: no version in output %q", c.Command, line, firstLine(res.Stdout))
	}
	return path, version, nil
}

// applyRequirements marks toolchains unavailable when a toolchain they
// depend on is missing.
func applyRequirements(tcs []Toolchain, statuses []api.DependencyStatus) {
	byLang := make(map[api.Language]api.DependencyStatus, len(statuses))
	for _, s := range statuses {
		byLang[s.Language] = s
	}
	for i, tc := range tcs {
		if !statuses[i].Available {
			continue
		}
		for _, req := range tc.Requires {
			dep, ok := byLang[req]
			if ok && dep.Available {
				continue
			}
			name := req.DisplayName()
			if ok && dep.Name != "" {
				name = dep.Name
			}
			statuses[i].Available = false
			statuses[i].Error = fmt.Sprintf("requires %s, which is not available", name)
			statuses[i].InstallationGuide = tc.InstallationGuide
			if ok && dep.InstallationGuide != "" {
				statuses[i].InstallationGuide = dep.InstallationGuide
			}
		}
	}
}

// ParseVersion extracts the first dotted version number from output.
func ParseVersion(output string) string {
	return versionPattern.FindString(output)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return s
}
