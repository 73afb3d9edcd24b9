package retry

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/rhuss/dojo/pkg/api"
	"github.com/rhuss/dojo/pkg/observability"
)

// Policy controls the retry schedule. MaxAttempts counts retries, so an
// operation runs at most MaxAttempts+1 times.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration

	// Jitter adds up to Jitter times the exponential delay.
	Jitter float64
}

// DefaultPolicy returns three retries from one second, capped at 30s.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		Jitter:      0.5,
	}
}

// Delay returns the wait before retry attempt (0-based), given a uniform
// sample u in [0, 1).
func (p Policy) Delay(attempt int, u float64) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	exp := float64(p.BaseDelay)
	for range attempt {
		exp *= 2
		if p.MaxDelay > 0 && exp >= float64(p.MaxDelay) {
			return p.MaxDelay
		}
	}
	d := exp + u*p.Jitter*exp
	if p.MaxDelay > 0 && d >= float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(d)
}

// State describes a retry about to happen.
type State struct {
	// Attempt is the 0-based index of the call that just failed.
	Attempt     int
	MaxAttempts int
	NextDelay   time.Duration
}

// Options holds optional Retrier collaborators.
type Options struct {
	// Timer schedules the waits; the system timer when nil.
	Timer backoff.Timer

	// Rand returns samples in [0, 1); math/rand/v2 when nil.
	Rand func() float64

	// OnRetry is called before each wait.
	OnRetry func(State, *api.AIServiceError)

	Logger *slog.Logger
}

// Retrier runs operations under a Policy.
type Retrier struct {
	policy Policy
	opts   Options
}

// New creates a Retrier.
func New(p Policy, opts Options) *Retrier {
	if opts.Rand == nil {
		opts.Rand = rand.Float64
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Retrier{policy: p, opts: opts}
}

// Policy returns the retry schedule.
func (r *Retrier) Policy() Policy {
	return r.policy
}

// Do calls op until it succeeds, fails permanently or runs out of retries.
// Failures are classified; only retryable ones are retried. Cancelling ctx
// aborts at once and returns ctx.Err(). Otherwise the returned error is an
// *api.AIServiceError carrying the number of calls made.
func (r *Retrier) Do(ctx context.Context, op func(context.Context) error) (int, error) {
	attempts := 0
	var last *api.AIServiceError

	operation := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		attempts++
		err := op(ctx)
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return backoff.Permanent(ctxErr)
		}
		last = Classify(err)
		if !last.Retryable {
			return backoff.Permanent(last)
		}
		return last
	}

	notify := func(_ error, next time.Duration) {
		state := State{Attempt: attempts - 1, MaxAttempts: r.policy.MaxAttempts, NextDelay: next}
		observability.AIRetriesTotal.WithLabelValues(string(last.Type)).Inc()
		r.opts.Logger.Warn("retrying AI call",
			"attempt", attempts,
			"max_retries", r.policy.MaxAttempts,
			"error_type", last.Type,
			"delay", next,
			"error", last.Message,
		)
		if r.opts.OnRetry != nil {
			r.opts.OnRetry(state, last)
		}
	}

	b := backoff.WithContext(&schedule{policy: r.policy, rand: r.opts.Rand}, ctx)
	err := backoff.RetryNotifyWithTimer(operation, b, notify, r.opts.Timer)
	if err == nil {
		return attempts, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return attempts, ctxErr
	}

	final := Classify(err)
	tagged := *final
	tagged.Attempts = attempts
	return attempts, &tagged
}

// schedule adapts Policy to backoff.BackOff.
type schedule struct {
	policy Policy
	rand   func() float64
	next   int
}

func (s *schedule) NextBackOff() time.Duration {
	if s.next >= s.policy.MaxAttempts {
		return backoff.Stop
	}
	d := s.policy.Delay(s.next, s.rand())
	s.next++
	return d
}

func (s *schedule) Reset() {
	s.next = 0
}
