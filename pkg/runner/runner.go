// Package runner turns a learner submission into an executable plan.
//
// An Adapter knows one language: it materializes the learner's code, the
// kata's test files and an embedded harness in a workspace, and returns the
// sandbox commands that compile (when needed) and run the tests. Every
// harness writes the canonical protocol parsed by package report to the file
// named by KATA_REPORT.
//
// Learner code runs in the harness process, or is linked into the test
// binary, with the same KATA_REPORT in its environment and write access to
// the workspace. It can therefore append, rewrite or truncate report lines
// and claim tests it did not pass. Results are feedback for the learner, not
// a trusted grade; callers that need one must run the harness and the
// learner code under separate identities.
package runner

import (
	"embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rhuss/dojo/pkg/api"
	"github.com/rhuss/dojo/pkg/kata"
	"github.com/rhuss/dojo/pkg/report"
	"github.com/rhuss/dojo/pkg/sandbox"
)

//go:embed harness/kata_runner.py harness/kata_runner.js harness/kata.d.ts harness/kata_test.hpp
var harnessFS embed.FS

// ReportFile is the protocol file name inside the workspace.
const ReportFile = ".kata_report.jsonl"

// Harness exit codes.
const (
	ExitAllPassed    = 0
	ExitTestsFailed  = 1
	ExitHarnessError = 2
)

// ErrToolchainNotConfigured is returned when an adapter is built without a
// command for a tool it needs.
var ErrToolchainNotConfigured = errors.New("toolchain command not configured")

// Toolchain is a resolved executable plus extra arguments.
type Toolchain struct {
	Command string
	Flags   []string
}

// Toolchains holds the executables adapters may invoke.
type Toolchains struct {
	Python     Toolchain
	Node       Toolchain
	TypeScript Toolchain
	CPP        Toolchain
}

// Submission is what an adapter materializes.
type Submission struct {
	Kata          *kata.Kata
	SourceCode    string
	IncludeHidden bool
}

// Plan is the prepared execution of one submission.
type Plan struct {
	Dir        string
	ReportPath string

	// Compile is nil for interpreted languages.
	Compile *sandbox.Command
	Run     sandbox.Command
}

// Adapter prepares submissions for one language.
type Adapter interface {
	Language() api.Language
	Prepare(dir string, sub Submission) (*Plan, error)
}

// New returns the adapter for lang.
func New(lang api.Language, tc Toolchains) (Adapter, error) {
	switch lang {
	case api.LanguagePython:
		return &pythonAdapter{python: tc.Python}, nil
	case api.LanguageJavaScript:
		return &javaScriptAdapter{node: tc.Node}, nil
	case api.LanguageTypeScript:
		return &typeScriptAdapter{tsc: tc.TypeScript, node: tc.Node}, nil
	case api.LanguageCPP:
		return &cppAdapter{cxx: tc.CPP}, nil
	default:
		return nil, fmt.Errorf("no adapter for language %q", lang)
	}
}

// staged describes the files written into a workspace.
type staged struct {
	entry  string
	tests  []string
	report string
}

// stage writes the learner code, copies the public test file and, when
// requested, the hidden one. Test file names are returned in run order,
// public first.
func stage(dir string, lang api.Language, sub Submission) (*staged, error) {
	if sub.Kata == nil {
		return nil, errors.New("submission has no kata")
	}

	s := &staged{
		entry:  sub.Kata.EntryFile(lang),
		report: filepath.Join(dir, ReportFile),
	}
	if err := writeFile(filepath.Join(dir, s.entry), []byte(sub.SourceCode)); err != nil {
		return nil, fmt.Errorf("writing learner code: %w", err)
	}

	public, err := sub.Kata.TestFile(lang)
	if err != nil {
		return nil, err
	}
	if err := copyInto(dir, public); err != nil {
		return nil, fmt.Errorf("copying public tests: %w", err)
	}
	s.tests = append(s.tests, filepath.Base(public))

	if sub.IncludeHidden {
		if hidden, ok := sub.Kata.HiddenFile(lang); ok {
			if err := copyInto(dir, hidden); err != nil {
				return nil, fmt.Errorf("copying hidden tests: %w", err)
			}
			s.tests = append(s.tests, filepath.Base(hidden))
		}
	}

	// The harness appends; start from an empty report.
	if err := writeFile(s.report, nil); err != nil {
		return nil, fmt.Errorf("creating report file: %w", err)
	}
	return s, nil
}

// writeHarness copies an embedded harness file into dir.
func writeHarness(dir, name string) (string, error) {
	data, err := harnessFS.ReadFile("harness/" + name)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	if err := writeFile(path, data); err != nil {
		return "", fmt.Errorf("writing harness %s: %w", name, err)
	}
	return path, nil
}

// environ returns the child environment with the report path and extras.
func environ(reportPath string, extra ...string) []string {
	env := append(os.Environ(), report.EnvVar+"="+reportPath)
	return append(env, extra...)
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func copyInto(dir, src string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(filepath.Join(dir, filepath.Base(src)), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func requireCommand(tc Toolchain, tool string) error {
	if tc.Command == "" {
		return fmt.Errorf("%w: %s", ErrToolchainNotConfigured, tool)
	}
	return nil
}
