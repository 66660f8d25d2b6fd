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

package kernel

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/NVIDIA/mig-stress/pkg/collector/file"
	"github.com/NVIDIA/mig-stress/pkg/defaults"
	"github.com/NVIDIA/mig-stress/pkg/smi"
)

// Cursor is an opaque position in a kernel log source.
type Cursor string

// Source is a readable kernel log.
type Source interface {
	// Name identifies the source in logs.
	Name() string

	// Mark returns the current end of the log.
	Mark(ctx context.Context) (Cursor, error)

	// Since returns the lines written after the cursor.
	Since(ctx context.Context, c Cursor) ([]string, error)
}

var (
	faultPattern  = regexp.MustCompile(`(?i)(error|fail|crash|xid)`)
	devicePattern = regexp.MustCompile(`(?i)(gpu|nvidia|nvrm|cuda)`)
)

// Match reports whether a kernel log line looks like a GPU fault: it names a
// failure and the GPU driver or device.
func Match(line string) bool {
	return faultPattern.MatchString(line) && devicePattern.MatchString(line)
}

// Scanner finds GPU anomalies written to a kernel log during a round.
type Scanner struct {
	Source Source
}

// NewScanner returns a scanner over src.
func NewScanner(src Source) *Scanner {
	return &Scanner{Source: src}
}

// Mark records the current end of the log.
func (s *Scanner) Mark(ctx context.Context) (Cursor, error) {
	ctx, cancel := context.WithTimeout(ctx, defaults.KernelLogTimeout)
	defer cancel()
	return s.Source.Mark(ctx)
}

// Scan returns the lines written since c that match a GPU fault.
func (s *Scanner) Scan(ctx context.Context, c Cursor) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, defaults.KernelLogTimeout)
	defer cancel()

	lines, err := s.Source.Since(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("failed to read kernel log from %s: %w", s.Source.Name(), err)
	}

	var matches []string
	for _, l := range lines {
		if Match(l) {
			matches = append(matches, l)
		}
	}
	if len(matches) > 0 {
		kernelAnomaliesTotal.WithLabelValues(s.Source.Name()).Add(float64(len(matches)))
		slog.Warn("kernel log anomalies found", "source", s.Source.Name(), "count", len(matches))
	}
	return matches, nil
}

// Dmesg reads the kernel ring buffer with the dmesg command. The cursor is
// the newest line at mark time; dmesg prefixes every line with its
// [sec.usec] timestamp, so the line identifies a position even after older
// lines have been pushed out of a full buffer.
type Dmesg struct {
	Runner  smi.Runner
	Command string
}

// NewDmesg returns a dmesg source using r, or the exec runner when nil.
func NewDmesg(r smi.Runner) *Dmesg {
	if r == nil {
		r = smi.Default()
	}
	return &Dmesg{Runner: r, Command: "dmesg"}
}

// Name implements Source.
func (d *Dmesg) Name() string { return "dmesg" }

func (d *Dmesg) lines(ctx context.Context) ([]string, error) {
	out, err := d.Runner.Run(ctx, d.Command)
	if err != nil {
		return nil, err
	}
	raw := strings.Split(string(out), "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines, nil
}

// Mark implements Source.
func (d *Dmesg) Mark(ctx context.Context) (Cursor, error) {
	lines, err := d.lines(ctx)
	if err != nil {
		return "", err
	}
	if len(lines) == 0 {
		return "", nil
	}
	return Cursor(lines[len(lines)-1]), nil
}

// Since implements Source. When the marked line is no longer in the buffer
// it was cleared or rotated past the mark, and the newest lines are returned
// instead.
func (d *Dmesg) Since(ctx context.Context, c Cursor) ([]string, error) {
	lines, err := d.lines(ctx)
	if err != nil {
		return nil, err
	}
	if c == "" {
		return lines, nil
	}
	for i := len(lines) - 1; i >= 0; i-- {
		if lines[i] == string(c) {
			return lines[i+1:], nil
		}
	}
	return tail(lines, defaults.KernelLogTailLines), nil
}

// File reads a kernel log file such as /var/log/kern.log. The cursor is the
// file size at mark time.
type File struct {
	Path   string
	parser *file.Parser
}

// NewFile returns a file source for path.
func NewFile(path string) *File {
	return &File{Path: path, parser: file.NewParser(file.WithMaxSize(4 << 20))}
}

// Name implements Source.
func (f *File) Name() string { return f.Path }

// Mark implements Source.
func (f *File) Mark(context.Context) (Cursor, error) {
	size, err := file.Size(f.Path)
	if err != nil {
		return "", err
	}
	return Cursor(strconv.FormatInt(size, 10)), nil
}

// Since implements Source.
func (f *File) Since(_ context.Context, c Cursor) ([]string, error) {
	offset, err := strconv.ParseInt(string(c), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid file cursor %q: %w", c, err)
	}
	lines, _, err := f.parser.GetLinesFrom(f.Path, offset)
	return lines, err
}

// Nop is a source with no content, used when scanning is disabled.
type Nop struct{}

// Name implements Source.
func (Nop) Name() string { return "none" }

// Mark implements Source.
func (Nop) Mark(context.Context) (Cursor, error) { return "", nil }

// Since implements Source.
func (Nop) Since(context.Context, Cursor) ([]string, error) { return nil, nil }

func tail(lines []string, n int) []string {
	if len(lines) <= n {
		return lines
	}
	return lines[len(lines)-n:]
}

// Open returns the source named by spec: "dmesg", "journal", "none" or
// "file:<path>".
func Open(spec string) (Source, error) {
	switch {
	case spec == "" || spec == "dmesg":
		return NewDmesg(nil), nil
	case spec == "none":
		return Nop{}, nil
	case spec == "journal":
		return NewJournal()
	case strings.HasPrefix(spec, "file:"):
		path := strings.TrimPrefix(spec, "file:")
		if path == "" {
			return nil, fmt.Errorf("kernel log file path cannot be empty")
		}
		return NewFile(path), nil
	default:
		return nil, fmt.Errorf("unknown kernel log source %q (use dmesg, journal, none or file:<path>)", spec)
	}
}
