package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"
)

// --- Request types ---

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// --- Response types ---

type chatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// --- Handler ---

type backend struct {
	score int

	mu       sync.Mutex
	failures []int
	served   int
}

func newBackend(score int, failures []int) *backend {
	return &backend{score: score, failures: failures}
}

// nextFailure pops the next scripted error status, or 0.
func (b *backend) nextFailure() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.served++
	if len(b.failures) == 0 {
		return 0
	}
	code := b.failures[0]
	b.failures = b.failures[1:]
	return code
}

func (b *backend) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	if code := b.nextFailure(); code != 0 {
		writeError(w, code, fmt.Sprintf("scripted failure %d", code))
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	var content string
	system, user := split(req.Messages)
	if strings.Contains(system, "JSON Schema") || strings.Contains(system, "structured learning material") {
		content = generateAnswer(system)
	} else {
		content = verdictAnswer(user, b.score)
	}

	model := req.Model
	if model == "" {
		model = "mock-judge"
	}
	resp := chatResponse{
		ID:      fmt.Sprintf("chatcmpl-mock-%d", time.Now().UnixNano()),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []chatChoice{{
			Message:      chatMessage{Role: "assistant", Content: content},
			FinishReason: "stop",
		}},
		Usage: chatUsage{
			PromptTokens:     len(system+user) / 4,
			CompletionTokens: len(content) / 4,
		},
	}
	resp.Usage.TotalTokens = resp.Usage.PromptTokens + resp.Usage.CompletionTokens

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func handleModels(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"object": "list",
		"data":   []map[string]any{{"id": "mock-judge", "object": "model", "owned_by": "dojo"}},
	})
}

func writeError(w http.ResponseWriter, code int, msg string) {
	errType := "server_error"
	switch {
	case code == http.StatusTooManyRequests:
		errType = "rate_limit_exceeded"
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		errType = "invalid_api_key"
	case code < 500:
		errType = "invalid_request_error"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"message": msg, "type": errType},
	})
}

func split(msgs []chatMessage) (system, user string) {
	var sys, usr []string
	for _, m := range msgs {
		switch m.Role {
		case "system":
			sys = append(sys, m.Content)
		case "user":
			usr = append(usr, m.Content)
		}
	}
	return strings.Join(sys, "\n"), strings.Join(usr, "\n")
}

// --- Answers ---

// criterionLine matches "- Name (weight 2" in the rubric section of a judge prompt.
var criterionLine = regexp.MustCompile(`(?m)^- (.+?) \(weight `)

func verdictAnswer(prompt string, score int) string {
	rubric := prompt
	if i := strings.Index(prompt, "Rubric:"); i >= 0 {
		rubric = prompt[i:]
	}
	if i := strings.Index(rubric, "Submission:"); i >= 0 {
		rubric = rubric[:i]
	}

	type criterion struct {
		Name     string `json:"name"`
		Score    int    `json:"score"`
		Feedback string `json:"feedback"`
	}
	v := struct {
		Criteria []criterion `json:"criteria"`
		Feedback string      `json:"feedback"`
	}{Criteria: []criterion{}}
	for _, m := range criterionLine.FindAllStringSubmatch(rubric, -1) {
		v.Criteria = append(v.Criteria, criterion{
			Name:     m[1],
			Score:    score,
			Feedback: fmt.Sprintf("Mock assessment of %s.", strings.ToLower(m[1])),
		})
	}
	v.Feedback = fmt.Sprintf("Mock verdict: every criterion scored %d.", score)

	b, _ := json.Marshal(v)
	return string(b)
}

func generateAnswer(system string) string {
	out := map[string]any{}
	if i := strings.Index(system, "{"); i >= 0 {
		var schema struct {
			Required   []string                   `json:"required"`
			Properties map[string]json.RawMessage `json:"properties"`
		}
		if err := json.Unmarshal([]byte(system[i:]), &schema); err == nil {
			for _, key := range schema.Required {
				out[key] = placeholder(schema.Properties[key])
			}
		}
	}
	if len(out) == 0 {
		out["content"] = "mock generated content"
	}
	b, _ := json.Marshal(out)
	return "```json\n" + string(b) + "\n```"
}

// placeholder returns a value of the property's declared type.
func placeholder(prop json.RawMessage) any {
	var p struct {
		Type string `json:"type"`
	}
	_ = json.Unmarshal(prop, &p)
	switch p.Type {
	case "array":
		return []any{}
	case "object":
		return map[string]any{}
	case "integer", "number":
		return 0
	case "boolean":
		return false
	default:
		return "mock"
	}
}
