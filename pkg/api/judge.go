package api

import (
	"encoding/json"
	"fmt"
)

// KataType is the kind of exercise a kata poses.
type KataType string

const (
	KataTypeCode        KataType = "code"
	KataTypeExplanation KataType = "explanation"
	KataTypeTemplate    KataType = "template"
	KataTypeCodebase    KataType = "codebase"
)

// Valid reports whether t is a known kata type.
func (t KataType) Valid() bool {
	switch t {
	case KataTypeCode, KataTypeExplanation, KataTypeTemplate, KataTypeCodebase:
		return true
	default:
		return false
	}
}

// JudgeKind selects the prompt family used by the judge.
type JudgeKind string

const (
	JudgeExplanation JudgeKind = "explanation"
	JudgeTemplate    JudgeKind = "template"
	JudgeCodebase    JudgeKind = "codebase"
)

// ParseJudgeKind returns the judge kind for s.
func ParseJudgeKind(s string) (JudgeKind, error) {
	switch JudgeKind(s) {
	case JudgeExplanation, JudgeTemplate, JudgeCodebase:
		return JudgeKind(s), nil
	default:
		return "", fmt.Errorf("unknown judge kind %q (supported: explanation, template, codebase)", s)
	}
}

// JudgeKindFor maps a kata type to the judge kind that evaluates it.
// Code katas are executed, not judged.
func JudgeKindFor(t KataType) (JudgeKind, bool) {
	switch t {
	case KataTypeExplanation:
		return JudgeExplanation, true
	case KataTypeTemplate:
		return JudgeTemplate, true
	case KataTypeCodebase:
		return JudgeCodebase, true
	case KataTypeCode:
		return "", false
	default:
		return "", false
	}
}

// Criterion is one rubric dimension scored by the judge.
type Criterion struct {
	Name        string  `json:"name" yaml:"name"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`
	Weight      float64 `json:"weight" yaml:"weight"`
	MinScore    *int    `json:"min_score,omitempty" yaml:"min_score,omitempty"`
}

// Rubric is the full scoring scheme for a judged kata.
type Rubric struct {
	Criteria      []Criterion `json:"criteria" yaml:"criteria"`
	MinTotalScore int         `json:"min_total_score" yaml:"min_total_score"`
}

// TotalWeight returns the sum of criterion weights.
func (r *Rubric) TotalWeight() float64 {
	var sum float64
	for _, c := range r.Criteria {
		sum += c.Weight
	}
	return sum
}

// JudgeRequest asks the AI judge to score a learner submission.
//
// Either Rubric or KataPath must be set. When both are present the inline
// rubric wins.
type JudgeRequest struct {
	Kind    JudgeKind `json:"kind"`
	Content string    `json:"content"`
	Rubric  *Rubric   `json:"rubric,omitempty"`

	KataPath string `json:"kata_path,omitempty"`

	Topic               string `json:"topic,omitempty"`
	Context             string `json:"context,omitempty"`
	ExpectedStructure   string `json:"expected_structure,omitempty"`
	TemplateType        string `json:"template_type,omitempty"`
	CodebaseDescription string `json:"codebase_description,omitempty"`
}

// CriterionScore is the judge's verdict for one rubric criterion.
type CriterionScore struct {
	Name     string `json:"name"`
	Score    int    `json:"score"`
	Feedback string `json:"feedback,omitempty"`
	Passed   bool   `json:"passed"`
}

// JudgeResult is the structured verdict of a judge call.
type JudgeResult struct {
	Score             int              `json:"score"`
	Passed            bool             `json:"passed"`
	Feedback          string           `json:"feedback"`
	CriteriaBreakdown []CriterionScore `json:"criteria_breakdown"`

	// Attempts counts completion calls including retries.
	Attempts int `json:"attempts"`
}

// GenerateRequest asks the model for a JSON object matching Schema.
type GenerateRequest struct {
	Prompt string          `json:"prompt"`
	Schema json.RawMessage `json:"schema,omitempty"`
}

// CheckDependenciesRequest selects between the cached snapshot and a fresh probe.
type CheckDependenciesRequest struct {
	Refresh bool `json:"refresh,omitempty"`
}

// GenerateResult carries the generated JSON object.
type GenerateResult struct {
	Content json.RawMessage `json:"content"`
}
