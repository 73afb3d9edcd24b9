package api

import (
	"crypto/rand"
	"regexp"
)

// RequestIDPrefix marks ids generated by the engine.
const RequestIDPrefix = "req_"

// Client-supplied ids are opaque but bounded so they are safe to log and
// to use as registry keys.
var requestIDPattern = regexp.MustCompile(`^[A-Za-z0-9_.:-]{1,64}$`)

// NewRequestID returns "req_" followed by 26 random base32 characters.
func NewRequestID() string {
	return RequestIDPrefix + rand.Text()
}

// ValidateRequestID reports whether id is acceptable as a request ID,
// either generated by NewRequestID or supplied by a caller.
func ValidateRequestID(id string) bool {
	return requestIDPattern.MatchString(id)
}
