// Package observability provides structured logging and Prometheus metrics
// for the agent runtime.
package observability

import (
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
)

// LogConfig configures logger construction.
type LogConfig struct {
	// Level sets the minimum log level: "debug", "info", "warn", "error".
	Level string

	// Format selects "json" or "text" output.
	Format string

	// Output defaults to os.Stderr.
	Output io.Writer
}

// defaultRedactPatterns match secrets that must never reach log output:
// service API keys and tokens passed through tool arguments or URLs.
var defaultRedactPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(api[_-]?key|apikey|token)[=:]\s*"?([A-Za-z0-9_\-]{8,})"?`),
	regexp.MustCompile(`(?i)(X-Plex-Token|X-Api-Key)[=:]\s*"?([A-Za-z0-9_\-]{8,})"?`),
}

// NewLogger builds a slog.Logger with level/format from config and secret
// redaction on string attribute values.
func NewLogger(cfg LogConfig) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	level := parseLevel(cfg.Level)
	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: redactAttr,
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	return slog.New(handler)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func redactAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() != slog.KindString {
		return a
	}
	v := a.Value.String()
	for _, re := range defaultRedactPatterns {
		v = re.ReplaceAllString(v, "${1}=[REDACTED]")
	}
	return slog.Attr{Key: a.Key, Value: slog.StringValue(v)}
}

// Redact applies the secret-redaction patterns to an arbitrary string, for
// callers that embed free text (tool errors, URLs) into progress events.
func Redact(s string) string {
	for _, re := range defaultRedactPatterns {
		s = re.ReplaceAllString(s, "${1}=[REDACTED]")
	}
	return s
}
