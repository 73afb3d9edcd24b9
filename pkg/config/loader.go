package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, DOJO_CONFIG env, ./config.yaml, /etc/dojo/config.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = cfg.MinWriteTimeout()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. DOJO_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/dojo/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}

	if envPath := os.Getenv("DOJO_CONFIG"); envPath != "" {
		return envPath
	}

	candidates := []string{
		"config.yaml",
		"/etc/dojo/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
// Unknown keys are rejected so typos do not silently fall back to defaults.
func loadYAMLFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// envOverrides maps DOJO_* variables onto config fields.
var envOverrides = []struct {
	name  string
	apply func(cfg *Config, v string) error
}{
	{"DOJO_HOST", func(c *Config, v string) error { c.Server.Host = v; return nil }},
	{"DOJO_PORT", func(c *Config, v string) error { return setInt(&c.Server.Port, v) }},
	{"DOJO_AUTH_TYPE", func(c *Config, v string) error { c.Auth.Type = v; return nil }},
	{"DOJO_TOKEN_SECRET", func(c *Config, v string) error { c.Auth.Token.Secret = v; return nil }},
	{"DOJO_MAX_CONCURRENT", func(c *Config, v string) error { return setInt(&c.Execution.MaxConcurrent, v) }},
	{"DOJO_QUEUE_SIZE", func(c *Config, v string) error { return setInt(&c.Execution.QueueSize, v) }},
	{"DOJO_DEFAULT_TIMEOUT", func(c *Config, v string) error { return setDuration(&c.Execution.DefaultTimeout, v) }},
	{"DOJO_WORK_DIR", func(c *Config, v string) error { c.Execution.WorkDir = v; return nil }},
	{"DOJO_KEEP_WORKSPACES", func(c *Config, v string) error { return setBool(&c.Execution.KeepWorkspaces, v) }},
	{"DOJO_AI_BASE_URL", func(c *Config, v string) error { c.AI.BaseURL = v; return nil }},
	{"DOJO_AI_API_KEY", func(c *Config, v string) error { c.AI.APIKey = v; return nil }},
	{"DOJO_AI_MODEL", func(c *Config, v string) error { c.AI.Model = v; return nil }},
	{"DOJO_AI_MAX_ATTEMPTS", func(c *Config, v string) error { return setInt(&c.AI.MaxAttempts, v) }},
	{"DOJO_AI_REQUEST_TIMEOUT", func(c *Config, v string) error { return setDuration(&c.AI.RequestTimeout, v) }},
	{"DOJO_LOG_LEVEL", func(c *Config, v string) error { c.Logging.Level = v; return nil }},
	{"DOJO_LOG_FORMAT", func(c *Config, v string) error { c.Logging.Format = v; return nil }},
	{"DOJO_API_KEYS", func(c *Config, v string) error {
		keys, err := parseAPIKeysJSON(v)
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			c.Auth.APIKeys = keys
		}
		return nil
	}},
}

// applyEnvOverrides applies every set DOJO_* variable. Unset and empty
// variables leave the field untouched.
func applyEnvOverrides(cfg *Config) error {
	for _, o := range envOverrides {
		v := os.Getenv(o.name)
		if v == "" {
			continue
		}
		if err := o.apply(cfg, v); err != nil {
			return fmt.Errorf("%s: %w", o.name, err)
		}
	}
	return nil
}

func setInt(dst *int, v string) error {
	n, err := strconv.Atoi(v)
	if err != nil {
		return err
	}
	*dst = n
	return nil
}

func setBool(dst *bool, v string) error {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return err
	}
	*dst = b
	return nil
}

func setDuration(dst *time.Duration, v string) error {
	d, err := time.ParseDuration(v)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}

// parseAPIKeysJSON parses a JSON array of API key configurations.
func parseAPIKeysJSON(jsonStr string) ([]APIKeyConfig, error) {
	var keys []APIKeyConfig
	if err := json.Unmarshal([]byte(jsonStr), &keys); err != nil {
		return nil, fmt.Errorf("parsing API keys JSON: %w", err)
	}
	return keys, nil
}

// resolveFileReferences reads _file fields and populates the corresponding value fields.
// For each field ending in _file, if the value field is empty and the file field is set,
// the file is read, whitespace is trimmed, and the value field is populated.
func resolveFileReferences(cfg *Config) error {
	// ai.api_key_file -> ai.api_key
	if cfg.AI.APIKeyFile != "" && cfg.AI.APIKey == "" {
		val, err := readSecretFile(cfg.AI.APIKeyFile)
		if err != nil {
			return fmt.Errorf("ai.api_key_file: %w", err)
		}
		cfg.AI.APIKey = val
	}

	// auth.token.secret_file -> auth.token.secret
	if cfg.Auth.Token.SecretFile != "" && cfg.Auth.Token.Secret == "" {
		val, err := readSecretFile(cfg.Auth.Token.SecretFile)
		if err != nil {
			return fmt.Errorf("auth.token.secret_file: %w", err)
		}
		cfg.Auth.Token.Secret = val
	}

	// auth.api_keys[*].key_file -> auth.api_keys[*].key
	for i := range cfg.Auth.APIKeys {
		if cfg.Auth.APIKeys[i].KeyFile != "" && cfg.Auth.APIKeys[i].Key == "" {
			val, err := readSecretFile(cfg.Auth.APIKeys[i].KeyFile)
			if err != nil {
				return fmt.Errorf("auth.api_keys[%d].key_file: %w", i, err)
			}
			cfg.Auth.APIKeys[i].Key = val
		}
	}

	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
