// Command dojo runs learner code against katas and judges free-form
// submissions with an AI model.
//
// Subcommands:
//
//	dojo serve    HTTP API for the desktop shell
//	dojo mcp      MCP tools over stdio
//	dojo exec     run one submission and print the result
//	dojo probe    print toolchain status
//	dojo judge    judge one submission and print the verdict
//	dojo token    issue a bearer token for auth type "token"
package main

import (
	"errors"
	"fmt"
	"os"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		var exit *exitError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// exitError ends the process with code without printing anything.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}
