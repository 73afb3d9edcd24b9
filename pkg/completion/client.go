// Package completion is a minimal client for OpenAI-compatible Chat
// Completions APIs.
//
// Complete performs a single call. It returns *HTTPError for non-2xx
// answers, errors wrapping api.ErrMalformedResponse for bodies that cannot
// be decoded, and the transport error otherwise, leaving classification and
// retries to the caller.
package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rhuss/dojo/pkg/api"
	"github.com/rhuss/dojo/pkg/debug"
	"github.com/rhuss/dojo/pkg/observability"
)

// Config holds client settings.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64

	// Timeout bounds each call. Zero means 60s.
	Timeout time.Duration

	// HTTPClient overrides the default client.
	HTTPClient *http.Client
}

// Request is one completion call.
type Request struct {
	Messages []Message

	// JSON asks the backend to answer with a JSON object.
	JSON bool
}

// Response is the first choice of a completion.
type Response struct {
	Content string
	Model   string
	Usage   *Usage
}

// Client performs requests against an OpenAI-compatible backend.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	timeout     time.Duration
}

// NewClient creates a new Client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{
		httpClient:  hc,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
	}
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// HasAPIKey reports whether a key is configured.
func (c *Client) HasAPIKey() bool {
	return c.apiKey != ""
}

// Complete performs one non-streaming call against /v1/chat/completions.
func (c *Client) Complete(ctx context.Context, req *Request) (*Response, error) {
	if !c.HasAPIKey() {
		return nil, api.NewAIServiceError(api.AIErrorAuth, "no API key is configured for the AI service", 0, nil)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	temp := c.temperature
	chatReq := ChatCompletionRequest{
		Model:       c.model,
		Messages:    req.Messages,
		Temperature: &temp,
		N:           1,
	}
	if req.JSON {
		chatReq.ResponseFormat = &ResponseFormat{Type: "json_object"}
	}

	body, err := json.Marshal(chatReq)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	url := c.baseURL + "/v1/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	debug.Trace("completion", "request", "url", url, "body", debug.Truncate(string(body), 8192))

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	observability.AILatency.WithLabelValues(c.model).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()
	debug.Log("completion", "response", "status", httpResp.StatusCode, "elapsed", time.Since(start))

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, newHTTPError(httpResp)
	}

	var chatResp ChatCompletionResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&chatResp); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("reading completion: %w", err)
		}
		return nil, fmt.Errorf("%w: decoding completion: %v", api.ErrMalformedResponse, err)
	}
	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("%w: completion has no choices", api.ErrMalformedResponse)
	}
	content := chatResp.Choices[0].Message.Content
	debug.Trace("completion", "answer", "content", debug.Truncate(content, 8192))
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: completion is empty", api.ErrMalformedResponse)
	}

	return &Response{
		Content: content,
		Model:   chatResp.Model,
		Usage:   chatResp.Usage,
	}, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
