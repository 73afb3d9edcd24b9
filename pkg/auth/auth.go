package auth

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"
)

// Decision is the vote of one authenticator.
type Decision int

const (
	// Yes accepts the credentials. The chain stops.
	Yes Decision = iota

	// No rejects credentials that were presented but are invalid. The chain stops.
	No

	// Abstain means the authenticator does not handle this kind of credential.
	Abstain
)

// Result is the outcome of one authentication attempt.
type Result struct {
	Decision Decision
	Identity *Identity // set when Decision == Yes
	Err      error     // set when Decision == No
}

// Identity is an authenticated caller.
type Identity struct {
	Subject string

	// Tier selects the caller's rate limit.
	Tier string

	// Scopes lists the operations the caller may invoke. An empty list
	// grants all of them.
	Scopes []string
}

// Allows reports whether the identity may invoke scope.
func (id *Identity) Allows(scope string) bool {
	if id == nil {
		return false
	}
	return len(id.Scopes) == 0 || slices.Contains(id.Scopes, scope)
}

// Anonymous is the identity used when authentication is disabled.
func Anonymous() *Identity {
	return &Identity{Subject: "anonymous", Tier: "default"}
}

// Authenticator examines request credentials.
type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) Result
}

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("access denied")
	ErrTooManyRequests = errors.New("rate limit exceeded")
)

// Chain evaluates authenticators in order and stops on the first Yes or No.
type Chain struct {
	Authenticators []Authenticator

	// Default applies when every authenticator abstains.
	Default Decision
}

// Authenticate runs the chain.
func (c *Chain) Authenticate(ctx context.Context, r *http.Request) Result {
	for _, a := range c.Authenticators {
		if res := a.Authenticate(ctx, r); res.Decision != Abstain {
			return res
		}
	}
	if c.Default == Yes {
		return Result{Decision: Yes, Identity: Anonymous()}
	}
	return Result{Decision: No, Err: ErrUnauthenticated}
}

// BearerToken returns the token of an "Authorization: Bearer" header. The
// boolean is false when the header is absent or uses another scheme.
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return "", false
	}
	return strings.TrimSpace(token), true
}
