// Package report parses the canonical test harness protocol.
//
// Every language harness writes one JSON object per line to the file named
// by KATA_REPORT:
//
//	{"name": "test_adds_numbers", "passed": true}
//	{"name": "test_handles_zero", "passed": false, "message": "expected 0, got 1"}
//
// Blank lines are ignored. Any other line is a harness fault: the parser
// keeps every valid entry in emission order and records the offending lines
// so the caller can surface a harness_parse_error.
package report

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rhuss/dojo/pkg/api"
)

// EnvVar names the environment variable carrying the report file path.
const EnvVar = "KATA_REPORT"

// maxLineBytes bounds a single protocol line.
const maxLineBytes = 1 << 20

// Malformed describes one line that does not follow the protocol.
type Malformed struct {
	Line   int    `json:"line"`
	Text   string `json:"text"`
	Reason string `json:"reason"`
}

// Report is the parsed content of a harness report.
type Report struct {
	Tests     []api.TestResult
	Malformed []Malformed

	// ReadErr is set when the underlying reader failed.
	ReadErr error
}

// OK reports whether the whole report followed the protocol.
func (r *Report) OK() bool {
	return len(r.Malformed) == 0 && r.ReadErr == nil
}

// Passed returns the number of passing tests.
func (r *Report) Passed() int {
	n := 0
	for _, tr := range r.Tests {
		if tr.Passed {
			n++
		}
	}
	return n
}

// Problem summarizes why the report is not OK, or "" when it is.
func (r *Report) Problem() string {
	if r.ReadErr != nil {
		return fmt.Sprintf("reading test report: %v", r.ReadErr)
	}
	if len(r.Malformed) == 0 {
		return ""
	}
	first := r.Malformed[0]
	msg := fmt.Sprintf("line %d: %s", first.Line, first.Reason)
	if n := len(r.Malformed); n > 1 {
		msg += fmt.Sprintf(" (and %d more malformed lines)", n-1)
	}
	return msg
}

// entry mirrors the protocol object. Pointers distinguish missing fields.
type entry struct {
	Name    *string `json:"name"`
	Passed  *bool   `json:"passed"`
	Message *string `json:"message"`
}

// Parse reads the protocol from r. It never fails; problems are recorded
// in the returned Report.
func Parse(r io.Reader) Report {
	var rep Report

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	lineNo := 0
	for sc.Scan() {
		lineNo++
		raw := sc.Bytes()
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}
		tr, err := parseLine(raw)
		if err != nil {
			rep.Malformed = append(rep.Malformed, Malformed{
				Line:   lineNo,
				Text:   clip(string(raw), 200),
				Reason: err.Error(),
			})
			continue
		}
		rep.Tests = append(rep.Tests, tr)
	}
	if err := sc.Err(); err != nil {
		rep.ReadErr = err
	}

	return rep
}

// ParseString is a convenience wrapper around Parse.
func ParseString(s string) Report {
	return Parse(strings.NewReader(s))
}

func parseLine(raw []byte) (api.TestResult, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var e entry
	if err := dec.Decode(&e); err != nil {
		return api.TestResult{}, fmt.Errorf("invalid JSON: %w", err)
	}
	if dec.More() {
		return api.TestResult{}, errors.New("trailing data after JSON object")
	}
	if e.Name == nil || strings.TrimSpace(*e.Name) == "" {
		return api.TestResult{}, errors.New(`missing or empty "name"`)
	}
	if e.Passed == nil {
		return api.TestResult{}, errors.New(`missing "passed"`)
	}

	tr := api.TestResult{Name: *e.Name, Passed: *e.Passed}
	if e.Message != nil {
		tr.Message = *e.Message
	}
	return tr, nil
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
