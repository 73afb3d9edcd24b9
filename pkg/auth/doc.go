// Package auth guards the dojo HTTP surface.
//
// The engine normally listens on loopback for the desktop shell, so the
// default is no authentication. When the port is exposed, callers present a
// bearer credential that one of the chained authenticators (static API keys
// or shell-issued HMAC tokens) accepts, rejects, or abstains on. A chain
// with only abstentions falls back to its default decision.
package auth
