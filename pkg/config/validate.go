package config

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/google/shlex"
)

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.WriteTimeout < 0 {
		errs = append(errs, fmt.Errorf("server.write_timeout must be >= 0, got %v", c.Server.WriteTimeout))
	} else if floor := c.MinWriteTimeout(); c.Server.WriteTimeout > 0 && c.Server.WriteTimeout < floor {
		errs = append(errs, fmt.Errorf("server.write_timeout must be at least %v to cover the slowest execution or judge call, got %v", floor, c.Server.WriteTimeout))
	}
	if c.Server.MaxBodyBytes <= 0 {
		errs = append(errs, fmt.Errorf("server.max_body_bytes must be > 0, got %d", c.Server.MaxBodyBytes))
	}

	switch c.Auth.Type {
	case "none":
	case "apikey":
		if len(c.Auth.APIKeys) == 0 {
			errs = append(errs, fmt.Errorf("auth.api_keys must not be empty when auth.type is \"apikey\""))
		}
		for i, k := range c.Auth.APIKeys {
			if k.Key == "" {
				errs = append(errs, fmt.Errorf("auth.api_keys[%d].key is required", i))
			}
		}
	case "token":
		if len(c.Auth.Token.Secret) < 32 {
			errs = append(errs, fmt.Errorf("auth.token.secret must be at least 32 bytes when auth.type is \"token\""))
		}
	default:
		errs = append(errs, fmt.Errorf("auth.type must be \"none\", \"apikey\", or \"token\", got %q", c.Auth.Type))
	}

	if c.Execution.MaxConcurrent <= 0 {
		errs = append(errs, fmt.Errorf("execution.max_concurrent must be > 0, got %d", c.Execution.MaxConcurrent))
	}
	if c.Execution.QueueSize <= 0 {
		errs = append(errs, fmt.Errorf("execution.queue_size must be > 0, got %d", c.Execution.QueueSize))
	}
	if c.Execution.DefaultTimeout <= 0 {
		errs = append(errs, fmt.Errorf("execution.default_timeout must be > 0, got %v", c.Execution.DefaultTimeout))
	}
	if c.Execution.CompileTimeout <= 0 {
		errs = append(errs, fmt.Errorf("execution.compile_timeout must be > 0, got %v", c.Execution.CompileTimeout))
	}
	if c.Execution.GracePeriod < 0 {
		errs = append(errs, fmt.Errorf("execution.grace_period must be >= 0, got %v", c.Execution.GracePeriod))
	}
	if c.Execution.MaxOutputBytes <= 0 {
		errs = append(errs, fmt.Errorf("execution.max_output_bytes must be > 0, got %d", c.Execution.MaxOutputBytes))
	}

	if c.Toolchains.ProbeTimeout <= 0 {
		errs = append(errs, fmt.Errorf("toolchains.probe_timeout must be > 0, got %v", c.Toolchains.ProbeTimeout))
	}
	for name, tc := range map[string]ToolchainConfig{
		"python":     c.Toolchains.Python,
		"node":       c.Toolchains.Node,
		"typescript": c.Toolchains.TypeScript,
		"cpp":        c.Toolchains.CPP,
	} {
		if _, err := shlex.Split(tc.Flags); err != nil {
			errs = append(errs, fmt.Errorf("toolchains.%s.flags: %w", name, err))
		}
	}

	if c.AI.BaseURL == "" {
		errs = append(errs, fmt.Errorf("ai.base_url is required"))
	} else if u, err := url.Parse(c.AI.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("ai.base_url must be an absolute URL, got %q", c.AI.BaseURL))
	}
	if c.AI.Model == "" {
		errs = append(errs, fmt.Errorf("ai.model is required"))
	}
	if c.AI.Temperature < 0 || c.AI.Temperature > 2 {
		errs = append(errs, fmt.Errorf("ai.temperature must be between 0 and 2, got %v", c.AI.Temperature))
	}
	if c.AI.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("ai.request_timeout must be > 0, got %v", c.AI.RequestTimeout))
	}
	if c.AI.MaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("ai.max_attempts must be >= 0, got %d", c.AI.MaxAttempts))
	}
	if c.AI.BaseDelay <= 0 {
		errs = append(errs, fmt.Errorf("ai.base_delay must be > 0, got %v", c.AI.BaseDelay))
	}
	if c.AI.MaxDelay < c.AI.BaseDelay {
		errs = append(errs, fmt.Errorf("ai.max_delay must be >= ai.base_delay, got %v", c.AI.MaxDelay))
	}
	if c.AI.RequestsPerMinute < 0 {
		errs = append(errs, fmt.Errorf("ai.requests_per_minute must be >= 0, got %d", c.AI.RequestsPerMinute))
	}

	switch c.Logging.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level must be one of trace, debug, info, warn, error, got %q", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}
