package utils

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoggerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf)
	logger.SetLogLevel(WARNING)

	logger.Info("hidden", nil)
	logger.Warn("shown", map[string]interface{}{"b": 2, "a": 1})

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("INFO line should be filtered: %q", out)
	}
	if !strings.Contains(out, "[WARNING]") || !strings.Contains(out, "shown | a=1 b=2") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestLoggerWritesFile(t *testing.T) {
	dir := t.TempDir()
	logFile := filepath.Join(dir, "nested", "studio.log")

	logger := NewLogger(nil)
	if err := logger.OpenFile(logFile); err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	logger.Error("boom", map[string]interface{}{"code": 7})
	logger.Close()

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "boom code=7") {
		t.Errorf("log file missing line: %q", data)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   DEBUG,
		"WARN":    WARNING,
		"error":   ERROR,
		"":        INFO,
		"verbose": INFO,
	}
	for in, want := range tests {
		if got := ParseLogLevel(in); got != want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
