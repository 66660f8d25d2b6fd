// Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

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

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLogLevel(tt.in); got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestStructuredLoggerAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := newStructuredLogger(&buf, "migstress", "v0.1.0", "info")
	logger.Info("round started", "kind", "standard")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected JSON output: %v (%s)", err, buf.String())
	}
	if rec["module"] != "migstress" {
		t.Errorf("expected module attribute, got %v", rec["module"])
	}
	if rec["version"] != "v0.1.0" {
		t.Errorf("expected version attribute, got %v", rec["version"])
	}
	if rec["kind"] != "standard" {
		t.Errorf("expected kind attribute, got %v", rec["kind"])
	}
	if _, ok := rec["source"]; ok {
		t.Error("source should only be added at debug level")
	}
}

func TestStructuredLoggerFiltersLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newStructuredLogger(&buf, "m", "v", "warn")
	logger.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("info should be filtered at warn level, got %q", buf.String())
	}
	logger.Warn("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("warn should be logged, got %q", buf.String())
	}
}

func TestFileLoggerAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "worker.log")

	l, err := NewFileLogger(path, "partition", "MIG-a")
	if err != nil {
		t.Fatalf("NewFileLogger() error = %v", err)
	}
	l.Info("allocating", "bytes", 1024)
	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}

	l2, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	l2.Info("second line")
	_ = l2.Close()

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	content := string(b)
	lines := strings.Split(strings.TrimSpace(content), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), content)
	}
	if !strings.Contains(lines[0], "partition=MIG-a") || !strings.Contains(lines[0], "time=") {
		t.Errorf("first line missing attrs or timestamp: %q", lines[0])
	}
	if l.Path() != path {
		t.Errorf("Path() = %q, want %q", l.Path(), path)
	}
}

func TestNewFileLoggerEmptyPath(t *testing.T) {
	if _, err := NewFileLogger(""); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestTee(t *testing.T) {
	path := filepath.Join(t.TempDir(), "suite.log")
	l, err := NewFileLogger(path)
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	var buf bytes.Buffer
	other := slog.New(slog.NewJSONHandler(&buf, nil))
	l.Tee(other).Info("both", "k", "v")

	b, _ := os.ReadFile(path)
	if !strings.Contains(string(b), "both") {
		t.Errorf("file missing record: %q", string(b))
	}
	if !strings.Contains(buf.String(), "both") {
		t.Errorf("second handler missing record: %q", buf.String())
	}
}
