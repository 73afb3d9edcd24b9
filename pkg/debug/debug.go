// Package debug provides category-based debug logging for dojo.
//
// Two orthogonal controls:
//   - Categories (WHAT to debug): DOJO_DEBUG env or logging.debug
//   - Levels (HOW MUCH detail): logging.level, where trace adds full
//     prompts, model answers and harness reports
//
// Usage:
//
//	debug.Log("sandbox", "spawn", "cmd", cmd.String())
//	if debug.Enabled("judge") { /* expensive formatting */ }
//
// Categories: sandbox, engine, probe, judge, completion, auth, transport, all.
package debug

import (
	"context"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strings"
	"unicode/utf8"
)

// LevelTrace is below slog.LevelDebug for maximum verbosity.
const LevelTrace = slog.LevelDebug - 4

// categories is read-only after Init.
var categories map[string]bool

func init() {
	categories = parseCategories(os.Getenv("DOJO_DEBUG"))
}

// Init sets the enabled categories from config. DOJO_DEBUG overrides it.
func Init(configCategories string) {
	cats := os.Getenv("DOJO_DEBUG")
	if cats == "" {
		cats = configCategories
	}
	categories = parseCategories(cats)
}

// Enabled reports whether debug output is active for the given category.
func Enabled(category string) bool {
	return categories["all"] || categories[category]
}

// Log emits a debug message for the given category on the default logger.
func Log(category string, msg string, args ...any) {
	if !Enabled(category) {
		return
	}
	slog.Debug(msg, append([]any{"debug", category}, args...)...)
}

// Trace emits a trace-level message for the given category.
func Trace(category string, msg string, args ...any) {
	if !TraceIsEnabled(category) {
		return
	}
	slog.Log(context.Background(), LevelTrace, msg, append([]any{"debug", category}, args...)...)
}

// TraceIsEnabled reports whether TRACE level is active for the given category.
func TraceIsEnabled(category string) bool {
	if !Enabled(category) {
		return false
	}
	return slog.Default().Enabled(context.Background(), LevelTrace)
}

// ParseLevel converts a level name to a slog.Level. "trace" maps to
// LevelTrace and "warning" to warn; unknown values are info.
func ParseLevel(s string) slog.Level {
	name := strings.ToLower(strings.TrimSpace(s))
	switch name {
	case "trace":
		return LevelTrace
	case "warning":
		return slog.LevelWarn
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Categories returns the enabled categories, sorted.
func Categories() []string {
	return slices.Sorted(maps.Keys(categories))
}

// Truncate shortens s to at most maxLen bytes without splitting a UTF-8
// sequence, appending "..." when it cut something.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func parseCategories(s string) map[string]bool {
	m := make(map[string]bool)
	for cat := range strings.SplitSeq(s, ",") {
		if cat = strings.ToLower(strings.TrimSpace(cat)); cat != "" {
			m[cat] = true
		}
	}
	return m
}
