package auth

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rhuss/dojo/pkg/api"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func okHandler(t *testing.T, wantSubject string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if wantSubject != "" {
			if id := IdentityFromContext(r.Context()); id == nil || id.Subject != wantSubject {
				t.Errorf("identity in context = %+v, want %s", id, wantSubject)
			}
		}
		w.WriteHeader(http.StatusOK)
	})
}

func serve(h http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", path, nil))
	return rec
}

func TestMiddlewareBypass(t *testing.T) {
	h := Middleware(&Chain{Default: No}, nil, DefaultBypassPaths, quiet())(okHandler(t, ""))
	if rec := serve(h, "/healthz"); rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestMiddlewareRejects(t *testing.T) {
	h := Middleware(&Chain{Default: No}, nil, DefaultBypassPaths, quiet())(okHandler(t, ""))
	rec := serve(h, "/v1/execute")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	var body struct {
		Error api.APIError `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Error.Type != api.ErrorTypeUnauthorized {
		t.Errorf("error type = %q", body.Error.Type)
	}
}

func TestMiddlewareEmptySubject(t *testing.T) {
	chain := &Chain{Authenticators: []Authenticator{&fixedAuthn{result: Result{Decision: Yes, Identity: &Identity{}}}}}
	h := Middleware(chain, nil, nil, quiet())(okHandler(t, ""))
	if rec := serve(h, "/v1/execute"); rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestMiddlewareInjectsIdentity(t *testing.T) {
	chain := &Chain{Authenticators: []Authenticator{&fixedAuthn{result: Result{Decision: Yes, Identity: &Identity{Subject: "alice"}}}}}
	h := Middleware(chain, nil, nil, quiet())(okHandler(t, "alice"))
	if rec := serve(h, "/v1/execute"); rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestMiddlewareRateLimit(t *testing.T) {
	chain := &Chain{Authenticators: []Authenticator{
		&fixedAuthn{result: Result{Decision: Yes, Identity: &Identity{Subject: "alice", Tier: "limited"}}},
	}}
	limiter := NewSubjectLimiter(map[string]int{"limited": 2}, 100)
	h := Middleware(chain, limiter, nil, quiet())(okHandler(t, "alice"))

	for i := range 2 {
		if rec := serve(h, "/v1/execute"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, rec.Code)
		}
	}
	if rec := serve(h, "/v1/execute"); rec.Code != http.StatusTooManyRequests {
		t.Errorf("third request: status = %d, want 429", rec.Code)
	}
}

func TestSubjectLimiter(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()
	l := NewSubjectLimiter(map[string]int{"free": 2, "unlimited": 0}, 1)
	l.now = func() time.Time { return now }

	alice := &Identity{Subject: "alice", Tier: "free"}
	bob := &Identity{Subject: "bob", Tier: "free"}

	for i := range 2 {
		if err := l.Allow(ctx, alice); err != nil {
			t.Fatalf("alice request %d: %v", i+1, err)
		}
	}
	if err := l.Allow(ctx, alice); err != ErrTooManyRequests {
		t.Errorf("alice over budget: err = %v", err)
	}
	if err := l.Allow(ctx, bob); err != nil {
		t.Errorf("separate bucket per subject: %v", err)
	}

	now = now.Add(30 * time.Second)
	if err := l.Allow(ctx, alice); err != nil {
		t.Errorf("after refill: %v", err)
	}

	for range 10 {
		if err := l.Allow(ctx, &Identity{Subject: "carol", Tier: "unlimited"}); err != nil {
			t.Fatalf("unlimited tier limited: %v", err)
		}
	}

	def := &Identity{Subject: "dave"}
	if err := l.Allow(ctx, def); err != nil {
		t.Fatal(err)
	}
	if err := l.Allow(ctx, def); err != ErrTooManyRequests {
		t.Errorf("default tier allows one per minute: err = %v", err)
	}
}

func TestSubjectLimiterEvictsIdleBuckets(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()
	l := NewSubjectLimiter(nil, 5)
	l.now = func() time.Time { return now }

	_ = l.Allow(ctx, &Identity{Subject: "old"})
	now = now.Add(idleTTL + time.Second)
	_ = l.Allow(ctx, &Identity{Subject: "new"})

	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.buckets) != 1 {
		t.Errorf("buckets = %d, want idle bucket evicted", len(l.buckets))
	}
}
