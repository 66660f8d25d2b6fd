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
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

const (
	// EnvVarLogLevel is the environment variable consulted when no explicit level is given.
	EnvVarLogLevel = "LOG_LEVEL"

	fileMode = 0o644
	dirMode  = 0o755
)

// ParseLogLevel converts a level name into a slog.Level.
// Unknown or empty values map to slog.LevelInfo.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

// NewStructuredLogger returns a JSON logger writing to stderr with module and
// version attributes. Debug level adds source locations.
func NewStructuredLogger(module, version, level string) *slog.Logger {
	return newStructuredLogger(os.Stderr, module, version, level)
}

func newStructuredLogger(w io.Writer, module, version, level string) *slog.Logger {
	if level == "" {
		level = os.Getenv(EnvVarLogLevel)
	}
	lvl := ParseLogLevel(level)

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		AddSource: lvl <= slog.LevelDebug,
		Level:     lvl,
	})

	return slog.New(h).With(
		slog.String("module", module),
		slog.String("version", version),
	)
}

// NewTextLogger returns a timestamped text logger on w. Workers log with it so
// their output reads naturally once concatenated into a round log.
func NewTextLogger(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLogLevel(level)}))
}

// SetDefaultStructuredLoggerWithLevel sets the default slog logger with an explicit level.
func SetDefaultStructuredLoggerWithLevel(module, version, level string) {
	slog.SetDefault(NewStructuredLogger(module, version, level))
}

// NewLogLogger adapts the default slog handler to a standard library logger.
func NewLogLogger(level slog.Level, addSource bool) *log.Logger {
	h := slog.Default().Handler()
	if addSource {
		h = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{AddSource: true, Level: level})
	}
	return slog.NewLogLogger(h, level)
}

// FileLogger is an append-only, line-oriented text logger backed by a file.
// Worker, round and suite logs are all FileLoggers.
type FileLogger struct {
	*slog.Logger
	file *os.File
	path string
}

// NewFileLogger opens (creating parent directories) path for appending and
// returns a text logger that timestamps every line.
func NewFileLogger(path string, attrs ...any) (*FileLogger, error) {
	if path == "" {
		return nil, fmt.Errorf("log path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), dirMode); err != nil {
		return nil, fmt.Errorf("failed to create log directory for %s: %w", path, err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, fileMode)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	h := slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug})
	return &FileLogger{
		Logger: slog.New(h).With(attrs...),
		file:   f,
		path:   path,
	}, nil
}

// Path returns the file the logger appends to.
func (l *FileLogger) Path() string {
	return l.path
}

// Writer exposes the underlying file for verbatim writes (child process output).
func (l *FileLogger) Writer() io.Writer {
	return l.file
}

// Close flushes and closes the log file. Safe to call more than once.
func (l *FileLogger) Close() error {
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// Tee returns a logger that writes every record to both the file and next.
func (l *FileLogger) Tee(next *slog.Logger) *slog.Logger {
	return slog.New(teeHandler{l.Handler(), next.Handler()})
}
