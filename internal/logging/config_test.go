package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]struct {
		want slog.Level
		ok   bool
	}{
		"":        {slog.LevelInfo, false},
		"debug":   {slog.LevelDebug, true},
		" INFO ":  {slog.LevelInfo, true},
		"warning": {slog.LevelWarn, true},
		"error":   {slog.LevelError, true},
		"off":     {levelOff, true},
		"verbose": {slog.LevelInfo, false},
	}
	for raw, tc := range cases {
		got, ok := ParseLevel(raw)
		if got != tc.want || ok != tc.ok {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v, %v", raw, got, ok, tc.want, tc.ok)
		}
	}
}

func TestDefaultConfig_NonTerminalIsJSON(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig(ProfileRuntime, &buf)

	if !cfg.JSON {
		t.Error("non-terminal writer should default to JSON")
	}
	if cfg.Session == "" {
		t.Error("runtime profile should carry a session id")
	}
	if cfg.Level != slog.LevelInfo {
		t.Errorf("Level = %v, want %v", cfg.Level, slog.LevelInfo)
	}
}

func TestDefaultConfig_TestProfile(t *testing.T) {
	cfg := DefaultConfig(ProfileTest, &bytes.Buffer{})

	if cfg.JSON {
		t.Error("test profile should log text")
	}
	if cfg.Level != slog.LevelDebug {
		t.Errorf("Level = %v, want %v", cfg.Level, slog.LevelDebug)
	}
}

func TestNew_JSONWithSession(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, Config{Level: slog.LevelInfo, JSON: true, Session: "abc"})

	logger.Debug("hidden")
	logger.Info("frame written", "length", 12)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d log lines, want 1: %q", len(lines), buf.String())
	}

	var record map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &record); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if record["msg"] != "frame written" {
		t.Errorf("msg = %v, want 'frame written'", record["msg"])
	}
	if record["session"] != "abc" {
		t.Errorf("session = %v, want abc", record["session"])
	}
	if record["length"] != float64(12) {
		t.Errorf("length = %v, want 12", record["length"])
	}
}

func TestNew_Off(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, Config{Level: levelOff})

	logger.Error("should not appear")
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}

func TestNewProfile_OwnWriter(t *testing.T) {
	t.Setenv(EnvLogLevel, "")
	t.Setenv(EnvLogJSON, "")
	before := slog.Default()

	var first, second bytes.Buffer
	NewProfile(ProfileRuntime, &first, "warn").Info("dropped")
	NewProfile(ProfileRuntime, &second, "debug").Debug("kept")

	if first.Len() != 0 {
		t.Errorf("info record passed a warn logger: %q", first.String())
	}
	if !strings.Contains(second.String(), "kept") {
		t.Errorf("second logger output = %q", second.String())
	}
	if slog.Default() != before {
		t.Error("NewProfile replaced the default logger")
	}
}
