package judge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/rhuss/dojo/pkg/api"
)

var fencePattern = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*\\n?(.*?)```")

// extractObject returns the first JSON object in s, bare or fenced.
func extractObject(s string) (json.RawMessage, error) {
	candidates := []string{}
	for _, m := range fencePattern.FindAllStringSubmatch(s, -1) {
		candidates = append(candidates, m[1])
	}
	if i := strings.IndexByte(s, '{'); i >= 0 {
		if j := strings.LastIndexByte(s, '}'); j > i {
			candidates = append(candidates, s[i:j+1])
		}
	}

	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if !strings.HasPrefix(c, "{") {
			continue
		}
		var raw json.RawMessage
		if err := json.Unmarshal([]byte(c), &raw); err == nil {
			return raw, nil
		}
	}
	return nil, fmt.Errorf("%w: no JSON object in answer", api.ErrMalformedResponse)
}

type verdict struct {
	Criteria []struct {
		Name     string   `json:"name"`
		Score    *float64 `json:"score"`
		Feedback string   `json:"feedback"`
	} `json:"criteria"`
	Feedback string `json:"feedback"`
}

// parseVerdict turns a model answer into a JudgeResult scored against r.
func parseVerdict(answer string, r *api.Rubric) (*api.JudgeResult, error) {
	raw, err := extractObject(answer)
	if err != nil {
		return nil, err
	}
	var v verdict
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", api.ErrMalformedResponse, err)
	}
	if strings.TrimSpace(v.Feedback) == "" {
		return nil, fmt.Errorf("%w: answer has no feedback", api.ErrMalformedResponse)
	}

	byName := make(map[string]int, len(v.Criteria))
	for i, c := range v.Criteria {
		byName[normalize(c.Name)] = i
	}

	res := &api.JudgeResult{Feedback: strings.TrimSpace(v.Feedback), Passed: true}
	var weighted float64
	for _, crit := range r.Criteria {
		i, ok := byName[normalize(crit.Name)]
		if !ok {
			return nil, fmt.Errorf("%w: no score for criterion %q", api.ErrMalformedResponse, crit.Name)
		}
		got := v.Criteria[i]
		if got.Score == nil {
			return nil, fmt.Errorf("%w: criterion %q has no score", api.ErrMalformedResponse, crit.Name)
		}
		if *got.Score < 0 || *got.Score > 100 {
			return nil, fmt.Errorf("%w: score %v for %q is outside 0-100", api.ErrMalformedResponse, *got.Score, crit.Name)
		}

		score := int(math.Round(*got.Score))
		cs := api.CriterionScore{
			Name:     crit.Name,
			Score:    score,
			Feedback: strings.TrimSpace(got.Feedback),
			Passed:   crit.MinScore == nil || score >= *crit.MinScore,
		}
		if !cs.Passed {
			res.Passed = false
		}
		res.CriteriaBreakdown = append(res.CriteriaBreakdown, cs)
		weighted += crit.Weight * float64(score)
	}

	res.Score = int(math.Round(weighted / r.TotalWeight()))
	if res.Score < r.MinTotalScore {
		res.Passed = false
	}
	return res, nil
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// schemaRequired returns the top-level "required" keys of a JSON Schema
// object. The schema must already be known to be an object.
func schemaRequired(schema json.RawMessage) ([]string, error) {
	if len(bytes.TrimSpace(schema)) == 0 {
		return nil, nil
	}
	var s struct {
		Required []string `json:"required"`
	}
	if err := json.Unmarshal(schema, &s); err != nil {
		return nil, err
	}
	return s.Required, nil
}

// checkRequired validates that obj carries every key in required.
func checkRequired(obj json.RawMessage, required []string) error {
	if len(required) == 0 {
		return nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(obj, &fields); err != nil {
		return fmt.Errorf("%w: %v", api.ErrMalformedResponse, err)
	}
	var missing []string
	for _, key := range required {
		if _, ok := fields[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required fields %s", api.ErrMalformedResponse, strings.Join(missing, ", "))
	}
	return nil
}
