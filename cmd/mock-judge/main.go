// Command mock-judge runs a deterministic Chat Completions server for
// exercising the judge without a real model. Judge prompts get a verdict
// that scores every rubric criterion; generate prompts get an object with
// the schema's required keys.
//
// Configuration:
//
//	MOCK_PORT          - Listen port (default: 9090)
//	MOCK_SCORE         - Score given to every criterion (default: 85)
//	MOCK_FAIL_SEQUENCE - Comma-separated HTTP statuses returned by the first
//	                     requests before answering normally, e.g. "429,503"
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"
)

func main() {
	port := os.Getenv("MOCK_PORT")
	if port == "" {
		port = "9090"
	}
	score := 85
	if v := os.Getenv("MOCK_SCORE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > 100 {
			slog.Error("MOCK_SCORE must be an integer between 0 and 100", "value", v)
			os.Exit(2)
		}
		score = n
	}
	failures, err := parseFailSequence(os.Getenv("MOCK_FAIL_SEQUENCE"))
	if err != nil {
		slog.Error("invalid MOCK_FAIL_SEQUENCE", "error", err)
		os.Exit(2)
	}

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           newMux(newBackend(score, failures)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("mock judge starting", "port", port, "score", score, "fail_sequence", failures)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("mock judge failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("mock judge shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func newMux(b *backend) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/completions", b.handleChatCompletions)
	mux.HandleFunc("GET /v1/models", handleModels)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}

func parseFailSequence(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		code, err := strconv.Atoi(part)
		if err != nil || code < 400 || code > 599 {
			return nil, fmt.Errorf("%q is not an HTTP error status", part)
		}
		out = append(out, code)
	}
	return out, nil
}
