package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/rhuss/dojo/pkg/config"
	"github.com/rhuss/dojo/pkg/debug"
)

// newLogger builds the process logger and enables debug categories. Logs go
// to w, which is stderr for every subcommand so that stdout stays free for
// results and MCP frames.
func newLogger(cfg config.LoggingConfig, w io.Writer) (*slog.Logger, error) {
	opts := &slog.HandlerOptions{Level: debug.ParseLevel(cfg.Level)}

	var h slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		h = slog.NewJSONHandler(w, opts)
	case "", "text":
		h = slog.NewTextHandler(w, opts)
	default:
		return nil, fmt.Errorf("logging.format must be text or json, got %q", cfg.Format)
	}
	logger := slog.New(h)
	slog.SetDefault(logger)
	debug.Init(cfg.Debug)
	return logger, nil
}
