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

package serializer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is an output format.
type Format string

const (
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
	FormatTable Format = "table"
)

// IsUnknown reports whether f is not a supported format.
func (f Format) IsUnknown() bool {
	switch f {
	case FormatJSON, FormatYAML, FormatTable:
		return false
	default:
		return true
	}
}

// Extension is the file extension used for f.
func (f Format) Extension() string {
	if f == FormatTable {
		return "txt"
	}
	return string(f)
}

// SupportedFormats lists the output formats.
func SupportedFormats() []string {
	return []string{string(FormatJSON), string(FormatYAML), string(FormatTable)}
}

func orJSON(f Format) Format {
	if f.IsUnknown() {
		slog.Warn("unknown format, defaulting to JSON", "format", f)
		return FormatJSON
	}
	return f
}

// Writer encodes values to an io.Writer.
type Writer struct {
	format Format
	output io.Writer
	closer io.Closer
}

// NewWriter returns a writer to output, stdout when nil. Unknown formats
// fall back to JSON.
func NewWriter(format Format, output io.Writer) *Writer {
	if output == nil {
		output = os.Stdout
	}
	return &Writer{format: orJSON(format), output: output}
}

// NewStdoutWriter returns a writer to stdout.
func NewStdoutWriter(format Format) *Writer {
	return NewWriter(format, os.Stdout)
}

// NewFileWriterOrStdout returns a serializer for path: a ConfigMap writer
// for cm://namespace/name, a file writer otherwise, and stdout when path is
// empty or cannot be opened. Close must be called on the result.
func NewFileWriterOrStdout(format Format, path string) Serializer {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return NewStdoutWriter(format)
	}

	if strings.HasPrefix(trimmed, ConfigMapURIScheme) {
		namespace, name, err := parseConfigMapURI(trimmed)
		if err != nil {
			slog.Error("invalid ConfigMap URI, falling back to stdout", "error", err, "uri", trimmed)
			return NewStdoutWriter(format)
		}
		return NewConfigMapWriter(namespace, name, format)
	}

	file, err := os.Create(trimmed)
	if err != nil {
		slog.Error("failed to create output file, falling back to stdout", "error", err, "path", trimmed)
		return NewStdoutWriter(format)
	}
	w := NewWriter(format, file)
	w.closer = file
	return w
}

// Close closes the underlying file, if any.
func (w *Writer) Close() error {
	if w.closer == nil {
		return nil
	}
	err := w.closer.Close()
	w.closer = nil
	return err
}

// Serialize writes v in the writer's format.
func (w *Writer) Serialize(_ context.Context, v any) error {
	data, err := Marshal(w.format, v)
	if err != nil {
		return err
	}
	if _, err := w.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// Marshal encodes v in format. The table format requires v to implement
// TableWriter.
func Marshal(format Format, v any) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return nil, fmt.Errorf("failed to serialize to JSON: %w", err)
		}
	case FormatYAML:
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return nil, fmt.Errorf("failed to serialize to YAML: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("failed to serialize to YAML: %w", err)
		}
	case FormatTable:
		tw, ok := v.(TableWriter)
		if !ok {
			return nil, fmt.Errorf("%T has no table format", v)
		}
		if err := tw.WriteTable(&buf); err != nil {
			return nil, fmt.Errorf("failed to render table: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
	return buf.Bytes(), nil
}

// WriteToFile writes data to path with 0644 permissions.
func WriteToFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
