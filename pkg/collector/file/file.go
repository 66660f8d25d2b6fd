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

package file

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Option configures a Parser.
type Option func(*Parser)

// Parser reads line-oriented text files such as kernel logs.
type Parser struct {
	delimiter    string
	maxSize      int64
	skipComments bool
}

// WithDelimiter sets the delimiter used to split entries in the file.
// Default is newline ("\n").
func WithDelimiter(delim string) Option {
	return func(p *Parser) {
		p.delimiter = delim
	}
}

// WithMaxSize sets the maximum number of bytes read in one call. Reads past
// the limit keep the newest bytes. Default is 1MB.
func WithMaxSize(size int64) Option {
	return func(p *Parser) {
		p.maxSize = size
	}
}

// WithSkipComments sets whether lines starting with '#' are dropped.
// Default is false; kernel logs have no comments.
func WithSkipComments(skip bool) Option {
	return func(p *Parser) {
		p.skipComments = skip
	}
}

// NewParser creates a parser with the provided options.
func NewParser(opts ...Option) *Parser {
	p := &Parser{
		delimiter: "\n",
		maxSize:   1 << 20,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Size returns the current size of the file at path.
func Size(path string) (int64, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("failed to stat %q: %w", path, err)
	}
	return fi.Size(), nil
}

// GetLines returns the non-empty lines of the file, reading at most the
// maximum size. It does not rely on the reported file size, so it also reads
// procfs files.
func (p *Parser) GetLines(path string) ([]string, error) {
	if path == "" {
		return nil, fmt.Errorf("file path cannot be empty")
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %q: %w", path, err)
	}
	defer f.Close()

	b, err := io.ReadAll(io.LimitReader(f, p.maxSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read file %q: %w", path, err)
	}
	return p.split(b, false), nil
}

// GetLinesFrom returns the non-empty lines written at or after offset and the
// offset to resume from. When the file shrank below offset (rotated or
// truncated) it is read from the start. When more than the maximum size is
// pending, only the newest bytes are read and the first, partial line is
// dropped.
func (p *Parser) GetLinesFrom(path string, offset int64) ([]string, int64, error) {
	if path == "" {
		return nil, offset, fmt.Errorf("file path cannot be empty")
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, offset, fmt.Errorf("failed to open file %q: %w", path, err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, offset, fmt.Errorf("failed to stat file %q: %w", path, err)
	}
	size := fi.Size()
	if size < offset {
		slog.Debug("file shrank, reading from start", "path", path, "offset", offset, "size", size)
		offset = 0
	}

	start := offset
	truncated := false
	if size-start > p.maxSize {
		start = size - p.maxSize
		truncated = true
	}

	if _, err := f.Seek(start, io.SeekStart); err != nil {
		return nil, offset, fmt.Errorf("failed to seek in %q: %w", path, err)
	}
	b, err := io.ReadAll(io.LimitReader(f, size-start))
	if err != nil {
		return nil, offset, fmt.Errorf("failed to read file %q: %w", path, err)
	}

	return p.split(b, truncated), start + int64(len(b)), nil
}

// split returns the non-empty entries of b, without the first one when it
// is partial.
func (p *Parser) split(b []byte, dropFirst bool) []string {
	parts := strings.Split(string(b), p.delimiter)
	if dropFirst && len(parts) > 0 {
		parts = parts[1:]
	}

	result := make([]string, 0, len(parts))
	for _, part := range parts {
		clean := strings.TrimSpace(part)
		if clean == "" {
			continue
		}
		if p.skipComments && strings.HasPrefix(clean, "#") {
			continue
		}
		result = append(result, clean)
	}
	return result
}
