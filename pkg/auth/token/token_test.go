package token

import (
	"context"
	"net/http/httptest"
	"slices"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/rhuss/dojo/pkg/auth"
)

var testCfg = Config{Secret: []byte("shell-secret"), Issuer: "dojo-shell", Audience: "dojo-engine"}

func newAuth(t *testing.T) *Authenticator {
	t.Helper()
	a, err := New(testCfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func authenticate(a *Authenticator, header string) auth.Result {
	r := httptest.NewRequest("POST", "/v1/execute", nil)
	if header != "" {
		r.Header.Set("Authorization", header)
	}
	return a.Authenticate(context.Background(), r)
}

func sign(t *testing.T, claims jwtlib.MapClaims, method jwtlib.SigningMethod, key any) string {
	t.Helper()
	s, err := jwtlib.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("signing: %v", err)
	}
	return s
}

func TestIssuedTokenAuthenticates(t *testing.T) {
	tok, err := Issue(testCfg, "desktop", "premium", []string{"execute", "judge_explanation"}, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	res := authenticate(newAuth(t), "Bearer "+tok)
	if res.Decision != auth.Yes {
		t.Fatalf("Decision = %d, err = %v", res.Decision, res.Err)
	}
	id := res.Identity
	if id.Subject != "desktop" || id.Tier != "premium" {
		t.Errorf("identity = %+v", id)
	}
	if !slices.Equal(id.Scopes, []string{"execute", "judge_explanation"}) {
		t.Errorf("Scopes = %v", id.Scopes)
	}
	if !id.Allows("execute") || id.Allows("generate") {
		t.Error("scope checks do not follow the token")
	}
}

func TestRejectedTokens(t *testing.T) {
	exp := time.Now().Add(time.Hour).Unix()
	base := func() jwtlib.MapClaims {
		return jwtlib.MapClaims{"sub": "desktop", "iss": "dojo-shell", "aud": "dojo-engine", "exp": exp}
	}

	tests := []struct {
		name  string
		token func(t *testing.T) string
	}{
		{"expired", func(t *testing.T) string {
			c := base()
			c["exp"] = time.Now().Add(-time.Hour).Unix()
			return sign(t, c, jwtlib.SigningMethodHS256, testCfg.Secret)
		}},
		{"no expiry", func(t *testing.T) string {
			c := base()
			delete(c, "exp")
			return sign(t, c, jwtlib.SigningMethodHS256, testCfg.Secret)
		}},
		{"wrong secret", func(t *testing.T) string {
			return sign(t, base(), jwtlib.SigningMethodHS256, []byte("other"))
		}},
		{"wrong issuer", func(t *testing.T) string {
			c := base()
			c["iss"] = "someone-else"
			return sign(t, c, jwtlib.SigningMethodHS256, testCfg.Secret)
		}},
		{"wrong audience", func(t *testing.T) string {
			c := base()
			c["aud"] = "other-api"
			return sign(t, c, jwtlib.SigningMethodHS256, testCfg.Secret)
		}},
		{"no subject", func(t *testing.T) string {
			c := base()
			delete(c, "sub")
			return sign(t, c, jwtlib.SigningMethodHS256, testCfg.Secret)
		}},
		{"unsigned", func(t *testing.T) string {
			return sign(t, base(), jwtlib.SigningMethodNone, jwtlib.UnsafeAllowNoneSignatureType)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := authenticate(newAuth(t), "Bearer "+tt.token(t))
			if res.Decision != auth.No || res.Err == nil {
				t.Errorf("Decision = %d, err = %v, want No", res.Decision, res.Err)
			}
		})
	}
}

func TestAbstains(t *testing.T) {
	a := newAuth(t)
	for _, header := range []string{"", "Basic dXNlcjpwYXNz", "Bearer sk-static-key"} {
		if res := authenticate(a, header); res.Decision != auth.Abstain {
			t.Errorf("header %q: Decision = %d, want Abstain", header, res.Decision)
		}
	}
}

func TestScopeArrayClaim(t *testing.T) {
	tok := sign(t, jwtlib.MapClaims{
		"sub":   "desktop",
		"iss":   "dojo-shell",
		"aud":   "dojo-engine",
		"exp":   time.Now().Add(time.Hour).Unix(),
		"scope": []string{"generate", "check_dependencies"},
	}, jwtlib.SigningMethodHS256, testCfg.Secret)

	res := authenticate(newAuth(t), "Bearer "+tok)
	if res.Decision != auth.Yes || !slices.Equal(res.Identity.Scopes, []string{"generate", "check_dependencies"}) {
		t.Errorf("result = %+v", res)
	}
}

func TestNewRequiresSecret(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("New accepted an empty secret")
	}
	if _, err := Issue(Config{}, "x", "", nil, time.Minute); err == nil {
		t.Error("Issue accepted an empty secret")
	}
}
