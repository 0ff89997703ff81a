package observability

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewLogger_RedactsSecrets(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "info", Format: "text", Output: &buf})

	logger.Info("calling service", "url", "http://plex.local/library?X-Plex-Token=abcd1234efgh5678")

	out := buf.String()
	if strings.Contains(out, "abcd1234efgh5678") {
		t.Fatalf("token leaked into log output: %s", out)
	}
	if !strings.Contains(out, "[REDACTED]") {
		t.Errorf("expected redaction marker in output: %s", out)
	}
}

func TestNewLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "warn", Output: &buf})

	logger.Info("quiet")
	logger.Warn("loud")

	out := buf.String()
	if strings.Contains(out, "quiet") {
		t.Error("info record should be filtered at warn level")
	}
	if !strings.Contains(out, "loud") {
		t.Error("warn record should pass at warn level")
	}
}

func TestRedact(t *testing.T) {
	in := `request failed: apikey=deadbeefcafe1234 not valid`
	out := Redact(in)
	if strings.Contains(out, "deadbeefcafe1234") {
		t.Fatalf("Redact left secret in place: %s", out)
	}
}
