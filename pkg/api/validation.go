package api

import (
	"fmt"
	"strings"
)

// ValidationConfig holds configurable limits for request validation.
type ValidationConfig struct {
	MaxSourceBytes  int
	MaxContentBytes int
	MaxTimeoutMs    int
}

// DefaultValidationConfig returns a ValidationConfig with sensible defaults.
func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		MaxSourceBytes:  1024 * 1024, // 1MB
		MaxContentBytes: 1024 * 1024,
		MaxTimeoutMs:    5 * 60 * 1000,
	}
}

// ValidateExecutionRequest checks an ExecutionRequest for contract
// violations. It returns an *APIError describing the first failure, or nil.
func ValidateExecutionRequest(req *ExecutionRequest, cfg ValidationConfig) *APIError {
	if req == nil {
		return NewInvalidRequestError("", "request is required")
	}

	if req.Language == "" {
		return NewInvalidRequestError("language", "language is required")
	}
	if !req.Language.Valid() {
		return NewInvalidRequestError("language",
			fmt.Sprintf("unsupported language %q (supported: py, js, ts, cpp)", req.Language))
	}

	if strings.TrimSpace(req.KataPath) == "" {
		return NewInvalidRequestError("kata_path", "kata_path is required")
	}

	if cfg.MaxSourceBytes > 0 && len(req.SourceCode) > cfg.MaxSourceBytes {
		return NewInvalidRequestError("code",
			fmt.Sprintf("code exceeds maximum of %d bytes", cfg.MaxSourceBytes))
	}

	if req.TimeoutMs < 0 {
		return NewInvalidRequestError("timeout_ms", "timeout_ms must not be negative")
	}
	if cfg.MaxTimeoutMs > 0 && req.TimeoutMs > cfg.MaxTimeoutMs {
		return NewInvalidRequestError("timeout_ms",
			fmt.Sprintf("timeout_ms exceeds maximum of %d", cfg.MaxTimeoutMs))
	}

	return nil
}

// ValidateRubric checks that a rubric can be scored.
func ValidateRubric(r *Rubric) *APIError {
	if r == nil || len(r.Criteria) == 0 {
		return NewInvalidRequestError("rubric", "rubric must contain at least one criterion")
	}

	seen := make(map[string]bool, len(r.Criteria))
	for i, c := range r.Criteria {
		param := fmt.Sprintf("rubric.criteria[%d]", i)
		if strings.TrimSpace(c.Name) == "" {
			return NewInvalidRequestError(param+".name", "criterion name is required")
		}
		if seen[c.Name] {
			return NewInvalidRequestError(param+".name",
				fmt.Sprintf("duplicate criterion %q", c.Name))
		}
		seen[c.Name] = true
		if c.Weight < 0 {
			return NewInvalidRequestError(param+".weight", "weight must not be negative")
		}
		if c.MinScore != nil && (*c.MinScore < 0 || *c.MinScore > 100) {
			return NewInvalidRequestError(param+".min_score", "min_score must be between 0 and 100")
		}
	}

	if r.TotalWeight() <= 0 {
		return NewInvalidRequestError("rubric.criteria", "criterion weights must sum to a positive value")
	}
	if r.MinTotalScore < 0 || r.MinTotalScore > 100 {
		return NewInvalidRequestError("rubric.min_total_score", "min_total_score must be between 0 and 100")
	}

	return nil
}

// ValidateJudgeRequest checks a JudgeRequest after any kata rubric has been
// resolved into it.
func ValidateJudgeRequest(req *JudgeRequest, cfg ValidationConfig) *APIError {
	if req == nil {
		return NewInvalidRequestError("", "request is required")
	}
	if _, err := ParseJudgeKind(string(req.Kind)); err != nil {
		return NewInvalidRequestError("kind", err.Error())
	}
	if strings.TrimSpace(req.Content) == "" {
		return NewInvalidRequestError("content", "content is required")
	}
	if cfg.MaxContentBytes > 0 && len(req.Content) > cfg.MaxContentBytes {
		return NewInvalidRequestError("content",
			fmt.Sprintf("content exceeds maximum of %d bytes", cfg.MaxContentBytes))
	}
	return ValidateRubric(req.Rubric)
}

// ValidateGenerateRequest checks a GenerateRequest.
func ValidateGenerateRequest(req *GenerateRequest, cfg ValidationConfig) *APIError {
	if req == nil {
		return NewInvalidRequestError("", "request is required")
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return NewInvalidRequestError("prompt", "prompt is required")
	}
	if cfg.MaxContentBytes > 0 && len(req.Prompt) > cfg.MaxContentBytes {
		return NewInvalidRequestError("prompt",
			fmt.Sprintf("prompt exceeds maximum of %d bytes", cfg.MaxContentBytes))
	}
	return nil
}
