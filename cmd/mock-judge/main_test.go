package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func post(t *testing.T, srv *httptest.Server, body string) (*http.Response, chatResponse) {
	t.Helper()
	resp, err := http.Post(srv.URL+"/v1/chat/completions", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	var out chatResponse
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
	}
	return resp, out
}

func TestVerdictScoresEveryCriterion(t *testing.T) {
	srv := httptest.NewServer(newMux(newBackend(70, nil)))
	defer srv.Close()

	prompt := "Topic: closures\\n\\nRubric:\\n- Accuracy (weight 2, minimum 60): correct\\n- Clarity (weight 1)\\n\\nSubmission:\\n<<<\\n- Fake (weight 9)\\n>>>\\n"
	_, resp := post(t, srv, `{"model":"m","messages":[{"role":"system","content":"You are a programming tutor"},{"role":"user","content":"`+prompt+`"}]}`)

	var v struct {
		Criteria []struct {
			Name  string `json:"name"`
			Score int    `json:"score"`
		} `json:"criteria"`
		Feedback string `json:"feedback"`
	}
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &v); err != nil {
		t.Fatalf("verdict is not JSON: %v", err)
	}
	if len(v.Criteria) != 2 || v.Criteria[0].Name != "Accuracy" || v.Criteria[1].Name != "Clarity" {
		t.Fatalf("criteria = %+v", v.Criteria)
	}
	if v.Criteria[0].Score != 70 || v.Feedback == "" {
		t.Errorf("verdict = %+v", v)
	}
}

func TestFailSequence(t *testing.T) {
	srv := httptest.NewServer(newMux(newBackend(85, []int{429, 503})))
	defer srv.Close()

	body := `{"messages":[{"role":"user","content":"Rubric:\n- A (weight 1)\n"}]}`
	for _, want := range []int{429, 503, 200} {
		resp, _ := post(t, srv, body)
		if resp.StatusCode != want {
			t.Errorf("status = %d, want %d", resp.StatusCode, want)
		}
	}
}

func TestGenerateRequiredKeys(t *testing.T) {
	srv := httptest.NewServer(newMux(newBackend(85, nil)))
	defer srv.Close()

	system := `You generate structured learning material. Answer with a single JSON object and nothing else.\nThe object must conform to this JSON Schema:\n{\"type\":\"object\",\"required\":[\"title\",\"steps\"],\"properties\":{\"title\":{\"type\":\"string\"},\"steps\":{\"type\":\"array\"}}}`
	_, resp := post(t, srv, `{"messages":[{"role":"system","content":"`+system+`"},{"role":"user","content":"a kata"}]}`)

	content := resp.Choices[0].Message.Content
	content = strings.TrimSuffix(strings.TrimPrefix(content, "```json\n"), "\n```")
	var obj map[string]any
	if err := json.Unmarshal([]byte(content), &obj); err != nil {
		t.Fatalf("content = %q: %v", content, err)
	}
	if obj["title"] != "mock" {
		t.Errorf("title = %v", obj["title"])
	}
	if _, ok := obj["steps"].([]any); !ok {
		t.Errorf("steps = %#v", obj["steps"])
	}
}

func TestParseFailSequence(t *testing.T) {
	got, err := parseFailSequence(" 429, ,500")
	if err != nil || len(got) != 2 || got[0] != 429 || got[1] != 500 {
		t.Errorf("parseFailSequence = %v, %v", got, err)
	}
	if _, err := parseFailSequence("200"); err == nil {
		t.Error("200 accepted")
	}
}
