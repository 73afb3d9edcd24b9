package api

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Language identifies a supported learner language.
type Language string

const (
	LanguagePython     Language = "py"
	LanguageJavaScript Language = "js"
	LanguageTypeScript Language = "ts"
	LanguageCPP        Language = "cpp"
)

// Languages lists every supported language in probe and display order.
var Languages = []Language{LanguagePython, LanguageJavaScript, LanguageTypeScript, LanguageCPP}

// ParseLanguage resolves a language code or one of its common aliases.
func ParseLanguage(s string) (Language, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "py", "python", "python3":
		return LanguagePython, nil
	case "js", "javascript", "node":
		return LanguageJavaScript, nil
	case "ts", "typescript":
		return LanguageTypeScript, nil
	case "cpp", "c++", "cxx":
		return LanguageCPP, nil
	default:
		return "", fmt.Errorf("unsupported language %q (supported: py, js, ts, cpp)", s)
	}
}

// Valid reports whether l is one of the supported language codes.
func (l Language) Valid() bool {
	switch l {
	case LanguagePython, LanguageJavaScript, LanguageTypeScript, LanguageCPP:
		return true
	default:
		return false
	}
}

// DisplayName returns the human-readable language name.
func (l Language) DisplayName() string {
	switch l {
	case LanguagePython:
		return "Python"
	case LanguageJavaScript:
		return "JavaScript"
	case LanguageTypeScript:
		return "TypeScript"
	case LanguageCPP:
		return "C++"
	default:
		return string(l)
	}
}

// UnmarshalJSON accepts the language code or an alias. Unknown values are
// kept verbatim so validation can report them with a param name.
func (l *Language) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if parsed, err := ParseLanguage(s); err == nil {
		*l = parsed
		return nil
	}
	*l = Language(s)
	return nil
}

// ExecutionRequest asks the engine to run learner code against a kata.
type ExecutionRequest struct {
	Language      Language `json:"language"`
	SourceCode    string   `json:"code"`
	KataPath      string   `json:"kata_path"`
	IncludeHidden bool     `json:"include_hidden"`

	// TimeoutMs bounds the run step. Zero selects the kata's default.
	TimeoutMs int `json:"timeout_ms,omitempty"`
}

// TestResult is the outcome of a single test, in harness emission order.
type TestResult struct {
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Message string `json:"message,omitempty"`
}

// FailureKind classifies why an execution did not succeed.
type FailureKind string

const (
	FailureToolchainMissing  FailureKind = "toolchain_missing"
	FailureCompileError      FailureKind = "compile_error"
	FailureRuntimeError      FailureKind = "runtime_error"
	FailureTimeout           FailureKind = "timeout"
	FailureHarnessParseError FailureKind = "harness_parse_error"
)

// Diagnostic explains a failed execution.
type Diagnostic struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

// ExecutionResult is the canonical outcome of an execution.
//
// TimedOut implies !Success, and Success implies every test passed.
// TestResults is empty only for toolchain_missing and compile_error.
type ExecutionResult struct {
	Success     bool         `json:"success"`
	Stdout      string       `json:"stdout"`
	Stderr      string       `json:"stderr"`
	TestResults []TestResult `json:"test_results"`
	DurationMs  int64        `json:"duration_ms"`
	Score       int          `json:"score"`
	ExitCode    *int         `json:"exit_code,omitempty"`
	TimedOut    bool         `json:"timed_out"`
	Diagnostic  *Diagnostic  `json:"diagnostic,omitempty"`

	StdoutTruncated bool `json:"stdout_truncated,omitempty"`
	StderrTruncated bool `json:"stderr_truncated,omitempty"`
}

// PassedCount returns how many tests passed.
func (r *ExecutionResult) PassedCount() int {
	n := 0
	for _, tr := range r.TestResults {
		if tr.Passed {
			n++
		}
	}
	return n
}

// ComputeScore returns round(100 * passed / total), or 0 when total is 0.
func ComputeScore(passed, total int) int {
	if total <= 0 || passed <= 0 {
		return 0
	}
	if passed >= total {
		return 100
	}
	return (200*passed + total) / (2 * total)
}
