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

// Package runlog lays out the log directory of a run and manages the PID
// file used for external liveness checks.
//
//	<root>/<timestamp>-<run>/
//	    suite.log
//	    report.json
//	    01-standard/
//	        round.log
//	        errors.log
//	        workers/standard-worker-p0-0.log
package runlog

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/NVIDIA/mig-stress/pkg/workload"
)

const (
	dirMode  = 0o755
	fileMode = 0o644

	timestampLayout = "20060102-150405"
)

// Layout is the directory tree of one run.
type Layout struct {
	Root  string
	RunID string
	Dir   string
}

// NewLayout creates the run directory under root.
func NewLayout(root, runID string, now time.Time) (*Layout, error) {
	if root == "" {
		return nil, fmt.Errorf("log root cannot be empty")
	}
	if runID == "" {
		return nil, fmt.Errorf("run ID cannot be empty")
	}
	short := runID
	if len(short) > 8 {
		short = short[:8]
	}
	dir := filepath.Join(root, now.UTC().Format(timestampLayout)+"-"+short)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return nil, fmt.Errorf("failed to create run log directory %s: %w", dir, err)
	}
	return &Layout{Root: root, RunID: runID, Dir: dir}, nil
}

// SuiteLog is the run-level log.
func (l *Layout) SuiteLog() string {
	return filepath.Join(l.Dir, "suite.log")
}

// ReportPath is where the report is written in the given format.
func (l *Layout) ReportPath(ext string) string {
	return filepath.Join(l.Dir, "report."+strings.TrimPrefix(ext, "."))
}

// Round returns the paths of round index (1-based) of kind. The directory
// is created.
func (l *Layout) Round(index int, kind workload.Kind) (Round, error) {
	dir := filepath.Join(l.Dir, fmt.Sprintf("%02d-%s", index, kind))
	if err := os.MkdirAll(filepath.Join(dir, "workers"), dirMode); err != nil {
		return Round{}, fmt.Errorf("failed to create round log directory %s: %w", dir, err)
	}
	return Round{Dir: dir}, nil
}

// Round is the log directory of one round.
type Round struct {
	Dir string
}

// Log is the consolidated round log.
func (r Round) Log() string {
	return filepath.Join(r.Dir, "round.log")
}

// ErrorLog collects kernel anomalies found during the round.
func (r Round) ErrorLog() string {
	return filepath.Join(r.Dir, "errors.log")
}

// WorkerLog is the log file of one worker.
func (r Round) WorkerLog(spec workload.Spec) string {
	return filepath.Join(r.Dir, "workers", spec.Name()+".log")
}

// WritePIDFile records pid at path, replacing any previous content.
func WritePIDFile(path string, pid int) error {
	if err := os.MkdirAll(filepath.Dir(path), dirMode); err != nil {
		return fmt.Errorf("failed to create PID file directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(strconv.Itoa(pid)+"\n"), fileMode); err != nil {
		return fmt.Errorf("failed to write PID file %s: %w", path, err)
	}
	return nil
}

// ReadPIDFile returns the pid recorded at path.
func ReadPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read PID file %s: %w", path, err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID file %s: %w", path, err)
	}
	return pid, nil
}

// RemovePIDFile deletes the PID file. A missing file is not an error.
func RemovePIDFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file %s: %w", path, err)
	}
	return nil
}
