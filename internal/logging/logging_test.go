package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"verbose": slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestJSONHandlerByDefault(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, Options{Level: "info"})
	logger.Debug("hidden")
	logger.Info("linked", "epic", "e1")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if rec["msg"] != "linked" || rec["epic"] != "e1" {
		t.Fatalf("unexpected record: %v", rec)
	}
}

func TestDevUsesTextHandler(t *testing.T) {
	var buf bytes.Buffer
	NewWithWriter(&buf, Options{Level: "debug", Dev: true}).Debug("visible", "task", "t1")
	if !strings.Contains(buf.String(), "msg=visible") || !strings.Contains(buf.String(), "task=t1") {
		t.Fatalf("unexpected text output: %q", buf.String())
	}
}

func TestFileOutputRotatesThroughLumberjack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scrum.log")
	logger, closer := New(Options{Level: "info", File: path, MaxSizeMB: 1})
	logger.Info("to file")
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "to file") {
		t.Fatalf("log file missing record: %q", data)
	}
}

func TestStderrCloserIsNoop(t *testing.T) {
	_, closer := New(Options{})
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestLevelVarChangesAtRuntime(t *testing.T) {
	var buf bytes.Buffer
	var level slog.LevelVar
	logger := NewWithWriter(&buf, Options{Level: "warn", LevelVar: &level})
	logger.Info("dropped")
	level.Set(ParseLevel("info"))
	logger.Info("kept")
	if strings.Contains(buf.String(), "dropped") || !strings.Contains(buf.String(), "kept") {
		t.Fatalf("unexpected output: %q", buf.String())
	}
}
