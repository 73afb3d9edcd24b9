package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fixedAuthn struct {
	result Result
}

func (f *fixedAuthn) Authenticate(_ context.Context, _ *http.Request) Result {
	return f.result
}

func TestChain(t *testing.T) {
	yes := &fixedAuthn{result: Result{Decision: Yes, Identity: &Identity{Subject: "alice"}}}
	no := &fixedAuthn{result: Result{Decision: No, Err: ErrUnauthenticated}}
	abstain := &fixedAuthn{result: Result{Decision: Abstain}}

	tests := []struct {
		name        string
		chain       Chain
		wantDec     Decision
		wantSubject string
	}{
		{"first yes stops", Chain{Authenticators: []Authenticator{yes, no}, Default: No}, Yes, "alice"},
		{"first no stops", Chain{Authenticators: []Authenticator{no, yes}, Default: Yes}, No, ""},
		{"abstain then yes", Chain{Authenticators: []Authenticator{abstain, yes}, Default: No}, Yes, "alice"},
		{"all abstain rejects", Chain{Authenticators: []Authenticator{abstain, abstain}, Default: No}, No, ""},
		{"all abstain accepts anonymously", Chain{Authenticators: []Authenticator{abstain}, Default: Yes}, Yes, "anonymous"},
		{"empty chain", Chain{Default: No}, No, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := tt.chain.Authenticate(context.Background(), httptest.NewRequest("GET", "/", nil))
			if res.Decision != tt.wantDec {
				t.Fatalf("Decision = %d, want %d", res.Decision, tt.wantDec)
			}
			if tt.wantDec == Yes && res.Identity.Subject != tt.wantSubject {
				t.Errorf("Subject = %q, want %q", res.Identity.Subject, tt.wantSubject)
			}
			if tt.wantDec == No && res.Err == nil {
				t.Error("No without an error")
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"", "", false},
		{"Basic abc", "", false},
		{"Bearer abc", "abc", true},
		{"Bearer  padded ", "padded", true},
		{"Bearer ", "", true},
	}
	for _, tt := range tests {
		r := httptest.NewRequest("GET", "/", nil)
		if tt.header != "" {
			r.Header.Set("Authorization", tt.header)
		}
		got, ok := BearerToken(r)
		if got != tt.want || ok != tt.ok {
			t.Errorf("BearerToken(%q) = %q, %v; want %q, %v", tt.header, got, ok, tt.want, tt.ok)
		}
	}
}

func TestIdentityAllows(t *testing.T) {
	var nilID *Identity
	if nilID.Allows("execute") {
		t.Error("nil identity allowed an operation")
	}
	if !(&Identity{Subject: "a"}).Allows("generate") {
		t.Error("identity without scopes should allow everything")
	}
	scoped := &Identity{Subject: "a", Scopes: []string{"execute"}}
	if !scoped.Allows("execute") || scoped.Allows("generate") {
		t.Error("scoped identity checks are wrong")
	}
}

func TestIdentityContext(t *testing.T) {
	if IdentityFromContext(context.Background()) != nil {
		t.Error("empty context has an identity")
	}
	ctx := WithIdentity(context.Background(), &Identity{Subject: "bob"})
	if id := IdentityFromContext(ctx); id == nil || id.Subject != "bob" {
		t.Errorf("identity = %+v", id)
	}
}
