// Package token authenticates HMAC-signed JWTs issued by the desktop shell.
//
// The shell and the engine share a secret. A token carries the subject
// ("sub"), an optional rate-limit tier ("tier"), and the operations it
// grants ("scope", space separated or a JSON array). Tokens must expire.
package token

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/rhuss/dojo/pkg/auth"
)

// Config holds the shared secret and the expected claims.
type Config struct {
	Secret []byte

	// Issuer and Audience are checked when set.
	Issuer   string
	Audience string

	// Leeway tolerates clock skew on exp and nbf. Default: 30s.
	Leeway time.Duration
}

// Authenticator validates bearer JWTs.
type Authenticator struct {
	cfg Config
}

// New creates an Authenticator. The secret must not be empty.
func New(cfg Config) (*Authenticator, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("token secret is required")
	}
	if cfg.Leeway == 0 {
		cfg.Leeway = 30 * time.Second
	}
	return &Authenticator{cfg: cfg}, nil
}

// Authenticate abstains on requests without a bearer token, and on bearer
// tokens that are not JWTs so an API key authenticator later in the chain
// can take them.
func (a *Authenticator) Authenticate(_ context.Context, r *http.Request) auth.Result {
	raw, ok := auth.BearerToken(r)
	if !ok || strings.Count(raw, ".") != 2 {
		return auth.Result{Decision: auth.Abstain}
	}

	claims := jwtlib.MapClaims{}
	_, err := jwtlib.ParseWithClaims(raw, claims, func(t *jwtlib.Token) (any, error) {
		return a.cfg.Secret, nil
	}, a.parserOptions()...)
	if err != nil {
		slog.Debug("token rejected", "error", err)
		return auth.Result{Decision: auth.No, Err: fmt.Errorf("invalid token: %w", err)}
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return auth.Result{Decision: auth.No, Err: errors.New("token has no subject")}
	}
	tier, _ := claims["tier"].(string)
	return auth.Result{
		Decision: auth.Yes,
		Identity: &auth.Identity{Subject: sub, Tier: tier, Scopes: scopes(claims["scope"])},
	}
}

func (a *Authenticator) parserOptions() []jwtlib.ParserOption {
	opts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithLeeway(a.cfg.Leeway),
	}
	if a.cfg.Issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(a.cfg.Issuer))
	}
	if a.cfg.Audience != "" {
		opts = append(opts, jwtlib.WithAudience(a.cfg.Audience))
	}
	return opts
}

func scopes(v any) []string {
	switch s := v.(type) {
	case string:
		return strings.Fields(s)
	case []any:
		var out []string
		for _, item := range s {
			if str, ok := item.(string); ok && str != "" {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}

// Issue signs an HS256 token for subject that expires after ttl.
func Issue(cfg Config, subject, tier string, scope []string, ttl time.Duration) (string, error) {
	if len(cfg.Secret) == 0 {
		return "", errors.New("token secret is required")
	}
	now := time.Now()
	claims := jwtlib.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	if tier != "" {
		claims["tier"] = tier
	}
	if len(scope) > 0 {
		claims["scope"] = strings.Join(scope, " ")
	}
	if cfg.Issuer != "" {
		claims["iss"] = cfg.Issuer
	}
	if cfg.Audience != "" {
		claims["aud"] = cfg.Audience
	}
	return jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(cfg.Secret)
}
