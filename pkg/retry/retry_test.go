package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/rhuss/dojo/pkg/api"
)

type statusErr struct {
	code int
	msg  string
}

func (e *statusErr) Error() string   { return fmt.Sprintf("HTTP %d: %s", e.code, e.msg) }
func (e *statusErr) HTTPStatus() int { return e.code }

// fakeTimer fires immediately and records every requested wait.
type fakeTimer struct {
	c      chan time.Time
	delays []time.Duration
}

func newFakeTimer() *fakeTimer {
	return &fakeTimer{c: make(chan time.Time, 1)}
}

func (t *fakeTimer) Start(d time.Duration) {
	t.delays = append(t.delays, d)
	t.c <- time.Now()
}

func (t *fakeTimer) Stop() {}

func (t *fakeTimer) C() <-chan time.Time { return t.c }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func constRand(v float64) func() float64 {
	return func() float64 { return v }
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		want      api.AIErrorType
		retryable bool
	}{
		{"401", &statusErr{401, "invalid api key"}, api.AIErrorAuth, false},
		{"403", &statusErr{403, "forbidden"}, api.AIErrorAuth, false},
		{"429", &statusErr{429, "slow down"}, api.AIErrorRateLimit, true},
		{"quota on 400", &statusErr{400, "You exceeded your current quota"}, api.AIErrorRateLimit, true},
		{"500", &statusErr{500, "boom"}, api.AIErrorServer, true},
		{"503", &statusErr{503, "overloaded"}, api.AIErrorServer, true},
		{"504", &statusErr{504, "gateway timeout"}, api.AIErrorTimeout, true},
		{"404", &statusErr{404, "no such model"}, api.AIErrorUnknown, false},
		{"malformed", fmt.Errorf("decoding: %w", api.ErrMalformedResponse), api.AIErrorValidation, false},
		{"deadline", fmt.Errorf("post: %w", context.DeadlineExceeded), api.AIErrorTimeout, true},
		{"refused", &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}, api.AIErrorNetwork, true},
		{"reset", fmt.Errorf("read: %w", syscall.ECONNRESET), api.AIErrorNetwork, true},
		{"dns", &net.DNSError{Err: "no such host", Name: "api.example.invalid"}, api.AIErrorNetwork, true},
		{"unexpected eof", fmt.Errorf("reading body: %w", io.ErrUnexpectedEOF), api.AIErrorNetwork, true},
		{"quota text", errors.New("insufficient_quota"), api.AIErrorRateLimit, true},
		{"other", errors.New("something odd"), api.AIErrorUnknown, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			if got.Type != tt.want {
				t.Errorf("Type = %s, want %s", got.Type, tt.want)
			}
			if got.Retryable != tt.retryable {
				t.Errorf("Retryable = %v, want %v", got.Retryable, tt.retryable)
			}
			if got.Suggestion == "" {
				t.Error("missing suggestion")
			}
			if !errors.Is(got, tt.err) {
				t.Error("classified error does not wrap its cause")
			}
		})
	}
}

func TestClassifyPassesThroughAIServiceError(t *testing.T) {
	orig := api.NewAIServiceError(api.AIErrorAuth, "no API key configured", 0, nil)
	if got := Classify(fmt.Errorf("judge: %w", orig)); got != orig {
		t.Errorf("Classify = %v, want the original error", got)
	}
	if Classify(nil) != nil {
		t.Error("Classify(nil) should be nil")
	}
}

func TestPolicyDelay(t *testing.T) {
	p := DefaultPolicy()

	for _, u := range []float64{0, 0.5, 0.999} {
		prev := time.Duration(0)
		for attempt := 0; attempt < 4; attempt++ {
			d := p.Delay(attempt, u)
			if d <= prev {
				t.Errorf("u=%v: Delay(%d) = %v, not above %v", u, attempt, d, prev)
			}
			prev = d
		}
	}

	if d := p.Delay(0, 0); d != time.Second {
		t.Errorf("Delay(0, 0) = %v, want 1s", d)
	}
	if d := p.Delay(1, 0.5); d != 2500*time.Millisecond {
		t.Errorf("Delay(1, 0.5) = %v, want 2.5s", d)
	}
	if d := p.Delay(10, 0); d != 30*time.Second {
		t.Errorf("Delay(10, 0) = %v, want cap of 30s", d)
	}
	if d := p.Delay(5, 0); d != 30*time.Second {
		t.Errorf("Delay(5, 0) = %v, want cap of 30s", d)
	}
}

// Scenario C: 429, 429, 200 succeeds after exactly two retries with growing delays.
func TestDoRetriesTransientFailures(t *testing.T) {
	timer := newFakeTimer()
	var states []State
	r := New(DefaultPolicy(), Options{
		Timer:   timer,
		Rand:    constRand(0.3),
		Logger:  quietLogger(),
		OnRetry: func(s State, _ *api.AIServiceError) { states = append(states, s) },
	})

	responses := []error{&statusErr{429, "slow"}, &statusErr{429, "slow"}, nil}
	calls := 0
	attempts, err := r.Do(context.Background(), func(context.Context) error {
		err := responses[calls]
		calls++
		return err
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if attempts != 3 || calls != 3 {
		t.Errorf("attempts=%d calls=%d, want 3", attempts, calls)
	}
	if len(timer.delays) != 2 {
		t.Fatalf("waits = %v, want 2", timer.delays)
	}
	if timer.delays[1] <= timer.delays[0] {
		t.Errorf("delays %v are not increasing", timer.delays)
	}
	if len(states) != 2 || states[0].Attempt != 0 || states[1].Attempt != 1 || states[1].MaxAttempts != 3 {
		t.Errorf("states = %+v", states)
	}
	if states[0].NextDelay != timer.delays[0] {
		t.Errorf("state delay %v != timer delay %v", states[0].NextDelay, timer.delays[0])
	}
}

func TestDoStopsOnPermanentFailure(t *testing.T) {
	timer := newFakeTimer()
	r := New(DefaultPolicy(), Options{Timer: timer, Logger: quietLogger()})

	calls := 0
	attempts, err := r.Do(context.Background(), func(context.Context) error {
		calls++
		return &statusErr{401, "invalid api key"}
	})
	var aiErr *api.AIServiceError
	if !errors.As(err, &aiErr) || aiErr.Type != api.AIErrorAuth {
		t.Fatalf("error = %v, want auth", err)
	}
	if calls != 1 || attempts != 1 || len(timer.delays) != 0 {
		t.Errorf("calls=%d attempts=%d waits=%v, want a single call", calls, attempts, timer.delays)
	}
	if aiErr.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", aiErr.Attempts)
	}
}

func TestDoExhaustsRetries(t *testing.T) {
	timer := newFakeTimer()
	r := New(Policy{MaxAttempts: 2, BaseDelay: time.Second, MaxDelay: 30 * time.Second, Jitter: 0.5}, Options{Timer: timer, Logger: quietLogger()})

	calls := 0
	_, err := r.Do(context.Background(), func(context.Context) error {
		calls++
		return &statusErr{503, "unavailable"}
	})
	var aiErr *api.AIServiceError
	if !errors.As(err, &aiErr) {
		t.Fatalf("error = %v, want *api.AIServiceError", err)
	}
	if aiErr.Type != api.AIErrorServer || aiErr.StatusCode != 503 {
		t.Errorf("error = %+v", aiErr)
	}
	if calls != 3 || aiErr.Attempts != 3 {
		t.Errorf("calls=%d Attempts=%d, want 3", calls, aiErr.Attempts)
	}
}

func TestDoZeroRetries(t *testing.T) {
	r := New(Policy{BaseDelay: time.Second, MaxDelay: time.Second}, Options{Timer: newFakeTimer(), Logger: quietLogger()})
	calls := 0
	_, err := r.Do(context.Background(), func(context.Context) error {
		calls++
		return &statusErr{500, "x"}
	})
	if err == nil || calls != 1 {
		t.Errorf("err=%v calls=%d, want one failing call", err, calls)
	}
}

func TestDoAbortsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := New(DefaultPolicy(), Options{Logger: quietLogger()})

	calls := 0
	start := time.Now()
	_, err := r.Do(ctx, func(context.Context) error {
		calls++
		cancel()
		return &statusErr{500, "boom"}
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("cancellation waited for the backoff delay")
	}
}

func TestDoCancelledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := New(Policy{MaxAttempts: 3, BaseDelay: time.Hour, MaxDelay: time.Hour}, Options{
		Logger:  quietLogger(),
		OnRetry: func(State, *api.AIServiceError) { cancel() },
	})
	_, err := r.Do(ctx, func(context.Context) error { return &statusErr{429, "slow"} })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}
