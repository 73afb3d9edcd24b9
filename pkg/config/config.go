// Package config provides unified configuration for the dojo engine.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (DOJO_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import (
	"fmt"
	"time"

	"github.com/google/shlex"

	"github.com/rhuss/dojo/pkg/api"
	"github.com/rhuss/dojo/pkg/retry"
)

// Config holds all configuration for the dojo engine.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Auth          AuthConfig          `yaml:"auth"`
	Execution     ExecutionConfig     `yaml:"execution"`
	Toolchains    ToolchainsConfig    `yaml:"toolchains"`
	AI            AIConfig            `yaml:"ai"`
	Logging       LoggingConfig       `yaml:"logging"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string        `yaml:"host"`           // default: "127.0.0.1"
	Port         int           `yaml:"port"`           // default: 8737
	ReadTimeout  time.Duration `yaml:"read_timeout"`   // default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`  // default: derived, see MinWriteTimeout
	MaxBodyBytes int64         `yaml:"max_body_bytes"` // default: 2MiB
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	Type      string          `yaml:"type"`     // "none", "apikey", "token", default: "none"
	APIKeys   []APIKeyConfig  `yaml:"api_keys"` // API key entries for type=apikey
	Token     TokenConfig     `yaml:"token"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// APIKeyConfig describes a single API key entry.
type APIKeyConfig struct {
	Key         string `yaml:"key" json:"key"`
	KeyFile     string `yaml:"key_file" json:"key_file"` // _file variant for key
	Subject     string `yaml:"subject" json:"subject"`
	ServiceTier string `yaml:"service_tier" json:"service_tier"`
}

// TokenConfig configures HMAC-signed bearer tokens issued by the desktop shell.
type TokenConfig struct {
	Secret     string `yaml:"secret"`
	SecretFile string `yaml:"secret_file"` // _file variant for secret
	Issuer     string `yaml:"issuer"`
	Audience   string `yaml:"audience"`
}

// RateLimitConfig limits requests per authenticated subject.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"` // 0 disables
}

// ExecutionConfig controls the code runner and its worker pool.
type ExecutionConfig struct {
	MaxConcurrent  int           `yaml:"max_concurrent"`   // default: 2
	QueueSize      int           `yaml:"queue_size"`       // default: 16
	DefaultTimeout time.Duration `yaml:"default_timeout"`  // default: 10s
	CompileTimeout time.Duration `yaml:"compile_timeout"`  // default: 30s
	GracePeriod    time.Duration `yaml:"grace_period"`     // default: 200ms
	MaxOutputBytes int           `yaml:"max_output_bytes"` // default: 1MiB
	WorkDir        string        `yaml:"work_dir"`         // default: os.TempDir()
	KeepWorkspaces bool          `yaml:"keep_workspaces"`
}

// ToolchainsConfig overrides toolchain commands and compiler flags.
type ToolchainsConfig struct {
	ProbeTimeout time.Duration   `yaml:"probe_timeout"` // default: 3s
	Python       ToolchainConfig `yaml:"python"`
	Node         ToolchainConfig `yaml:"node"`
	TypeScript   ToolchainConfig `yaml:"typescript"`
	CPP          ToolchainConfig `yaml:"cpp"`
}

// ToolchainConfig names an explicit command and extra flags.
// Flags is a shell-quoted string such as `-std=c++17 -O2 -Wall`.
type ToolchainConfig struct {
	Command string `yaml:"command"`
	Flags   string `yaml:"flags"`
}

// AIConfig configures the completion API used by the judge.
type AIConfig struct {
	BaseURL           string        `yaml:"base_url"`
	APIKey            string        `yaml:"api_key"`
	APIKeyFile        string        `yaml:"api_key_file"` // _file variant for api_key
	Model             string        `yaml:"model"`
	Temperature       float64       `yaml:"temperature"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`     // default: 60s
	MaxAttempts       int           `yaml:"max_attempts"`        // retries, default: 3
	BaseDelay         time.Duration `yaml:"base_delay"`          // default: 1s
	MaxDelay          time.Duration `yaml:"max_delay"`           // default: 30s
	RequestsPerMinute int           `yaml:"requests_per_minute"` // 0 disables pacing
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // trace, debug, info, warn, error; default: info
	Format string `yaml:"format"` // text or json; default: text

	// Debug lists debug categories such as "sandbox,judge", or "all".
	// DOJO_DEBUG takes precedence.
	Debug string `yaml:"debug"`
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Host:         "127.0.0.1",
			Port:         8737,
			ReadTimeout:  30 * time.Second,
			MaxBodyBytes: 2 << 20,
		},
		Auth: AuthConfig{
			Type: "none",
		},
		Execution: ExecutionConfig{
			MaxConcurrent:  2,
			QueueSize:      16,
			DefaultTimeout: 10 * time.Second,
			CompileTimeout: 30 * time.Second,
			GracePeriod:    200 * time.Millisecond,
			MaxOutputBytes: 1 << 20,
		},
		Toolchains: ToolchainsConfig{
			ProbeTimeout: 3 * time.Second,
			CPP: ToolchainConfig{
				Flags: "-std=c++17 -O2",
			},
		},
		AI: AIConfig{
			BaseURL:        "https://api.openai.com",
			Model:          "gpt-4o-mini",
			Temperature:    0.2,
			RequestTimeout: 60 * time.Second,
			MaxAttempts:    3,
			BaseDelay:      1 * time.Second,
			MaxDelay:       30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}

// writeTimeoutSlack covers encoding and queueing on top of the slowest
// handler.
const writeTimeoutSlack = 15 * time.Second

// Policy returns the retry schedule for judge calls.
func (a AIConfig) Policy() retry.Policy {
	return retry.Policy{
		MaxAttempts: a.MaxAttempts,
		BaseDelay:   a.BaseDelay,
		MaxDelay:    a.MaxDelay,
		Jitter:      retry.DefaultPolicy().Jitter,
	}
}

// MaxCallDuration is the longest a judge or generate call can take: every
// attempt hitting request_timeout plus the largest jittered backoff between
// them.
func (a AIConfig) MaxCallDuration() time.Duration {
	p := a.Policy()
	total := time.Duration(p.MaxAttempts+1) * a.RequestTimeout
	for i := range p.MaxAttempts {
		total += p.Delay(i, 1)
	}
	return total
}

// MaxRunDuration is the longest a single execution can hold a request:
// a full compile step plus the largest accepted run timeout, each followed
// by the kill grace period.
func (e ExecutionConfig) MaxRunDuration() time.Duration {
	maxRun := time.Duration(api.DefaultValidationConfig().MaxTimeoutMs) * time.Millisecond
	return e.CompileTimeout + maxRun + 2*e.GracePeriod
}

// MinWriteTimeout is the smallest server.write_timeout that lets the
// slowest execution or judge call finish writing its response.
func (c *Config) MinWriteTimeout() time.Duration {
	return max(c.AI.MaxCallDuration(), c.Execution.MaxRunDuration()) + writeTimeoutSlack
}

// FlagList splits Flags with shell quoting rules.
func (t ToolchainConfig) FlagList() ([]string, error) {
	return shlex.Split(t.Flags)
}

// Commands returns the explicit command overrides keyed by language.
// TypeScript's Node runtime is the node command.
func (t ToolchainsConfig) Commands() map[api.Language]string {
	return map[api.Language]string{
		api.LanguagePython:     t.Python.Command,
		api.LanguageJavaScript: t.Node.Command,
		api.LanguageTypeScript: t.TypeScript.Command,
		api.LanguageCPP:        t.CPP.Command,
	}
}

// Flags returns the parsed extra flags keyed by language.
func (t ToolchainsConfig) Flags() (map[api.Language][]string, error) {
	out := make(map[api.Language][]string, 4)
	for lang, tc := range map[api.Language]ToolchainConfig{
		api.LanguagePython:     t.Python,
		api.LanguageJavaScript: t.Node,
		api.LanguageTypeScript: t.TypeScript,
		api.LanguageCPP:        t.CPP,
	} {
		flags, err := tc.FlagList()
		if err != nil {
			return nil, fmt.Errorf("toolchains.%s.flags: %w", lang, err)
		}
		out[lang] = flags
	}
	return out, nil
}
