package judge

import (
	"fmt"
	"strings"

	"github.com/rhuss/dojo/pkg/api"
	"github.com/rhuss/dojo/pkg/completion"
)

const verdictFormat = `Answer with a single JSON object and nothing else, in this shape:
{
  "criteria": [
    {"name": "<criterion name exactly as listed>", "score": <integer 0-100>, "feedback": "<one or two sentences>"}
  ],
  "feedback": "<overall feedback addressed to the learner>"
}
Score every listed criterion exactly once.`

func systemPrompt(kind api.JudgeKind) string {
	var role string
	switch kind {
	case api.JudgeExplanation:
		role = "You are a programming tutor evaluating a learner's written explanation of a concept. " +
			"Judge correctness, completeness and clarity. Do not reward length for its own sake."
	case api.JudgeTemplate:
		role = "You are a programming tutor evaluating a filled-in learning template. " +
			"Judge whether each section is present, accurate and specific to the topic."
	case api.JudgeCodebase:
		role = "You are a senior engineer evaluating a learner's analysis of an existing codebase. " +
			"Judge whether their findings are accurate, grounded in the code and well reasoned."
	}
	return role + "\nBe fair and concrete. Feedback must say what to improve.\n\n" + verdictFormat
}

func userPrompt(req *api.JudgeRequest) string {
	var b strings.Builder
	if req.Topic != "" {
		fmt.Fprintf(&b, "Topic: %s\n", req.Topic)
	}
	if req.TemplateType != "" {
		fmt.Fprintf(&b, "Template type: %s\n", req.TemplateType)
	}
	if req.Context != "" {
		fmt.Fprintf(&b, "\nContext:\n%s\n", req.Context)
	}
	if req.ExpectedStructure != "" {
		fmt.Fprintf(&b, "\nExpected structure:\n%s\n", req.ExpectedStructure)
	}
	if req.CodebaseDescription != "" {
		fmt.Fprintf(&b, "\nCodebase:\n%s\n", req.CodebaseDescription)
	}

	b.WriteString("\nRubric:\n")
	for _, c := range req.Rubric.Criteria {
		fmt.Fprintf(&b, "- %s (weight %g", c.Name, c.Weight)
		if c.MinScore != nil {
			fmt.Fprintf(&b, ", minimum %d", *c.MinScore)
		}
		b.WriteString(")")
		if c.Description != "" {
			b.WriteString(": " + c.Description)
		}
		b.WriteString("\n")
	}
	if req.Rubric.MinTotalScore > 0 {
		fmt.Fprintf(&b, "Passing requires a weighted total of at least %d.\n", req.Rubric.MinTotalScore)
	}

	b.WriteString("\nSubmission:\n<<<\n")
	b.WriteString(req.Content)
	b.WriteString("\n>>>\n")
	return b.String()
}

func judgeMessages(req *api.JudgeRequest) []completion.Message {
	return []completion.Message{
		{Role: "system", Content: systemPrompt(req.Kind)},
		{Role: "user", Content: userPrompt(req)},
	}
}

func generateMessages(prompt string, schema []byte) []completion.Message {
	sys := "You generate structured learning material. Answer with a single JSON object and nothing else."
	if len(schema) > 0 {
		sys += "\nThe object must conform to this JSON Schema:\n" + string(schema)
	}
	return []completion.Message{
		{Role: "system", Content: sys},
		{Role: "user", Content: prompt},
	}
}
