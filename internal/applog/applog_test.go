package applog

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew_JSONConsole(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := New(Options{Level: slog.LevelInfo, Out: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer closer.Close()

	logger.Debug("hidden")
	logger.Info("hello", slog.String("component", "test"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("not JSON: %v", err)
	}
	if rec["msg"] != "hello" || rec["component"] != "test" {
		t.Errorf("record = %v", rec)
	}
}

func TestNew_TextConsole(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := New(Options{Level: slog.LevelDebug, Format: "text", Out: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Debug("shown", slog.Int("n", 2))
	if !strings.Contains(buf.String(), "msg=shown") || !strings.Contains(buf.String(), "n=2") {
		t.Errorf("text output = %q", buf.String())
	}
}

func TestNew_UnknownFormat(t *testing.T) {
	if _, _, err := New(Options{Format: "xml"}); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestNew_FileSink(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "verbas.log")
	logger, closer, err := New(Options{Level: slog.LevelInfo, Format: "text", File: path, Out: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logger.With(slog.String("component", "project")).Warn("workflow refused")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var rec map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &rec); err != nil {
		t.Fatalf("file record not JSON: %v (%q)", err, data)
	}
	if rec["msg"] != "workflow refused" || rec["component"] != "project" {
		t.Errorf("file record = %v", rec)
	}
	if !strings.Contains(buf.String(), "workflow refused") {
		t.Errorf("console missed the record: %q", buf.String())
	}
}
