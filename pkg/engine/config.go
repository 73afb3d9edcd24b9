package engine

import (
	"log/slog"
	"os"
	"time"

	"github.com/rhuss/dojo/pkg/api"
)

// Config holds configuration for the execution engine.
type Config struct {
	// MaxConcurrent is the number of pool workers. Zero or negative means 2.
	MaxConcurrent int

	// QueueSize bounds executions waiting for a worker. Zero or negative means 16.
	QueueSize int

	// DefaultTimeout applies when neither the request nor the kata sets one.
	DefaultTimeout time.Duration

	// CompileTimeout bounds the compile step of C++ and TypeScript.
	CompileTimeout time.Duration

	// WorkDir is the parent of per-run workspaces. Empty means os.TempDir().
	WorkDir string

	// KeepWorkspaces leaves workspaces on disk for debugging.
	KeepWorkspaces bool

	// Flags holds extra toolchain arguments per language.
	Flags map[api.Language][]string

	Validation api.ValidationConfig
	Logger     *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 2
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 16
	}
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = 10 * time.Second
	}
	if c.CompileTimeout <= 0 {
		c.CompileTimeout = 30 * time.Second
	}
	if c.WorkDir == "" {
		c.WorkDir = os.TempDir()
	}
	if c.Validation == (api.ValidationConfig{}) {
		c.Validation = api.DefaultValidationConfig()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}
