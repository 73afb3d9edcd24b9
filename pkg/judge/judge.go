// Package judge scores free-form learner submissions with an AI model.
//
// A Client builds a prompt from the submission and its rubric, calls the
// completion API through a retry.Retrier, and parses the model's JSON
// verdict into an api.JudgeResult. Every failure surfaces as an
// *api.AIServiceError with a recovery suggestion, or as an *api.APIError
// for invalid arguments.
package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/rhuss/dojo/pkg/api"
	"github.com/rhuss/dojo/pkg/completion"
	"github.com/rhuss/dojo/pkg/debug"
	"github.com/rhuss/dojo/pkg/kata"
	"github.com/rhuss/dojo/pkg/observability"
	"github.com/rhuss/dojo/pkg/retry"
)

// Completer performs one completion call. *completion.Client satisfies it.
type Completer interface {
	Complete(ctx context.Context, req *completion.Request) (*completion.Response, error)
}

// Config holds judge settings.
type Config struct {
	Policy retry.Policy

	// RequestsPerMinute paces completion calls. Zero disables pacing.
	RequestsPerMinute int

	Validation api.ValidationConfig
	Logger     *slog.Logger

	// Timer and Rand override the retry clock and jitter source.
	Timer backoff.Timer
	Rand  func() float64
}

// Client judges submissions and generates structured content.
type Client struct {
	completer Completer
	retrier   *retry.Retrier
	limiter   *rate.Limiter
	cfg       Config
	logger    *slog.Logger
}

// New creates a Client.
func New(c Completer, cfg Config) *Client {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Policy == (retry.Policy{}) {
		cfg.Policy = retry.DefaultPolicy()
	}
	if cfg.Validation == (api.ValidationConfig{}) {
		cfg.Validation = api.DefaultValidationConfig()
	}
	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	return &Client{
		completer: c,
		retrier: retry.New(cfg.Policy, retry.Options{
			Timer:  cfg.Timer,
			Rand:   cfg.Rand,
			Logger: cfg.Logger,
		}),
		limiter: limiter,
		cfg:     cfg,
		logger:  cfg.Logger,
	}
}

// Judge scores req.Content against its rubric. A request without an inline
// rubric takes the rubric, kind and topic from the kata at req.KataPath.
func (c *Client) Judge(ctx context.Context, req *api.JudgeRequest) (*api.JudgeResult, error) {
	if req == nil {
		return nil, api.NewInvalidRequestError("", "request is required")
	}
	resolved, apiErr := resolveKata(req)
	if apiErr != nil {
		return nil, apiErr
	}
	if apiErr := api.ValidateJudgeRequest(resolved, c.cfg.Validation); apiErr != nil {
		return nil, apiErr
	}

	messages := judgeMessages(resolved)
	if debug.TraceIsEnabled("judge") {
		debug.Trace("judge", "prompt", "kind", resolved.Kind, "user", messages[1].Content)
	}
	var result *api.JudgeResult
	attempts, err := c.retrier.Do(ctx, func(ctx context.Context) error {
		resp, err := c.complete(ctx, &completion.Request{Messages: messages, JSON: true})
		if err != nil {
			return err
		}
		result, err = parseVerdict(resp.Content, resolved.Rubric)
		return err
	})
	if err != nil {
		c.recordFailure(string(resolved.Kind), err)
		return nil, err
	}

	result.Attempts = attempts
	outcome := "failed"
	if result.Passed {
		outcome = "passed"
	}
	observability.JudgeRequestsTotal.WithLabelValues(string(resolved.Kind), outcome).Inc()
	c.logger.Debug("submission judged",
		"kind", resolved.Kind,
		"score", result.Score,
		"passed", result.Passed,
		"attempts", attempts,
	)
	return result, nil
}

// Generate asks the model for a JSON object. When schema is set, the object
// must contain the schema's top-level required keys.
func (c *Client) Generate(ctx context.Context, prompt string, schema json.RawMessage) (json.RawMessage, error) {
	if apiErr := api.ValidateGenerateRequest(&api.GenerateRequest{Prompt: prompt, Schema: schema}, c.cfg.Validation); apiErr != nil {
		return nil, apiErr
	}
	if trimmed := bytes.TrimSpace(schema); len(trimmed) > 0 {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return nil, api.NewInvalidRequestError("schema", "schema must be a JSON object")
		}
	}
	required, err := schemaRequired(schema)
	if err != nil {
		return nil, api.NewInvalidRequestError("schema", `schema "required" must be an array of strings`)
	}

	messages := generateMessages(prompt, schema)
	var out json.RawMessage
	attempts, err := c.retrier.Do(ctx, func(ctx context.Context) error {
		resp, err := c.complete(ctx, &completion.Request{Messages: messages, JSON: true})
		if err != nil {
			return err
		}
		obj, err := extractObject(resp.Content)
		if err != nil {
			return err
		}
		if err := checkRequired(obj, required); err != nil {
			return err
		}
		var buf bytes.Buffer
		if err := json.Compact(&buf, obj); err != nil {
			return fmt.Errorf("%w: %v", api.ErrMalformedResponse, err)
		}
		out = buf.Bytes()
		return nil
	})
	if err != nil {
		c.recordFailure("generate", err)
		return nil, err
	}
	observability.JudgeRequestsTotal.WithLabelValues("generate", "passed").Inc()
	c.logger.Debug("content generated", "bytes", len(out), "attempts", attempts)
	return out, nil
}

func (c *Client) complete(ctx context.Context, req *completion.Request) (*completion.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, api.NewAIServiceError(api.AIErrorRateLimit,
				"the configured request rate does not allow another call before the deadline", 0, err)
		}
	}
	return c.completer.Complete(ctx, req)
}

func (c *Client) recordFailure(kind string, err error) {
	outcome := "cancelled"
	var aiErr *api.AIServiceError
	if errors.As(err, &aiErr) {
		outcome = string(aiErr.Type)
	}
	observability.JudgeRequestsTotal.WithLabelValues(kind, outcome).Inc()
	c.logger.Warn("AI call failed", "kind", kind, "error", err)
}

// resolveKata fills the rubric, kind and topic from the request's kata.
func resolveKata(req *api.JudgeRequest) (*api.JudgeRequest, *api.APIError) {
	out := *req
	if req.KataPath == "" {
		return &out, nil
	}

	k, err := kata.Load(req.KataPath)
	if err != nil {
		return nil, api.NewInvalidRequestError("kata_path", err.Error())
	}
	if out.Kind == "" {
		kind, ok := api.JudgeKindFor(k.Meta.Type)
		if !ok {
			return nil, api.NewInvalidRequestError("kata_path",
				fmt.Sprintf("%s katas are executed, not judged", k.Meta.Type))
		}
		out.Kind = kind
	}
	if out.Rubric == nil {
		r, err := k.Rubric()
		if err != nil {
			return nil, api.NewInvalidRequestError("kata_path", err.Error())
		}
		out.Rubric = r
	}
	if out.Topic == "" {
		out.Topic = k.Meta.Topic
	}
	if out.Context == "" {
		out.Context = k.Meta.Description
	}
	return &out, nil
}
