package telemetry

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// ParseLevel
// ---------------------------------------------------------------------------

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tc := range cases {
		if got := ParseLevel(tc.in); got != tc.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

// ---------------------------------------------------------------------------
// NewLogger
// ---------------------------------------------------------------------------

func TestNewLogger_JSONCarriesServiceTag(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "json", "info")
	logger.Info("test message", "key", "value")

	line := strings.TrimSpace(buf.String())
	if line == "" {
		t.Fatal("logger produced no output")
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(line), &obj); err != nil {
		t.Fatalf("output is not valid JSON: %v\noutput: %s", err, line)
	}
	if obj["msg"] != "test message" {
		t.Errorf("msg = %v, want test message", obj["msg"])
	}
	if obj["key"] != "value" {
		t.Errorf("key = %v, want value", obj["key"])
	}
	if obj["service"] != "tavernkeep" {
		t.Errorf("service = %v, want tavernkeep", obj["service"])
	}
}

func TestNewLogger_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "text", "info")
	logger.Info("text test", "env", "development")

	line := buf.String()
	if !strings.Contains(line, "text test") {
		t.Errorf("output missing message: %q", line)
	}
	if !strings.Contains(line, "env=development") {
		t.Errorf("output missing env=development: %q", line)
	}
	if !strings.Contains(line, "service=tavernkeep") {
		t.Errorf("output missing service tag: %q", line)
	}
}

func TestNewLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "json", "warn")
	logger.Info("should be suppressed")
	logger.Warn("should appear")

	out := buf.String()
	if strings.Contains(out, "should be suppressed") {
		t.Error("info record appeared despite warn level")
	}
	if !strings.Contains(out, "should appear") {
		t.Error("warn record was unexpectedly suppressed")
	}
}

func TestNewLogger_DebugAddsSource(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "json", "debug")
	logger.Debug("locate me")

	var obj map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &obj); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if _, ok := obj["source"]; !ok {
		t.Errorf("debug record has no source position: %v", obj)
	}
}

// ---------------------------------------------------------------------------
// SetupLogger
// ---------------------------------------------------------------------------

func TestSetupLogger_DoesNotPanic(t *testing.T) {
	for _, format := range []string{"json", "text", "", "unknown"} {
		for _, level := range []string{"debug", "info", "warn", "error", "", "unknown"} {
			func() {
				defer func() {
					if r := recover(); r != nil {
						t.Errorf("SetupLogger(%q, %q) panicked: %v", format, level, r)
					}
				}()
				SetupLogger(format, level)
			}()
		}
	}
	// Quieten the default again for the rest of the binary.
	SetupLogger("text", "error")
}
