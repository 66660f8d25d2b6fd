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

package report

import (
	"time"

	"github.com/NVIDIA/mig-stress/pkg/header"
	"github.com/NVIDIA/mig-stress/pkg/preflight"
	"github.com/NVIDIA/mig-stress/pkg/workload"
)

// Status is the final state of a worker or round.
type Status string

const (
	StatusSuccess           Status = "success"
	StatusFailure           Status = "failure"
	StatusTimeout           Status = "timeout"
	StatusSpawnError        Status = "spawn-error"
	StatusStopped           Status = "stopped"
	StatusDeviceUnavailable Status = "device-unavailable"
	StatusSkipped           Status = "skipped"
)

// WorkerOutcome is the result of one spawned worker. Every spawned worker
// yields exactly one outcome, including workers that failed to spawn.
type WorkerOutcome struct {
	Name      string        `json:"name" yaml:"name"`
	Kind      workload.Kind `json:"kind" yaml:"kind"`
	Role      workload.Role `json:"role" yaml:"role"`
	Partition string        `json:"partition" yaml:"partition"`
	Instance  int           `json:"instance" yaml:"instance"`
	PID       int           `json:"pid,omitempty" yaml:"pid,omitempty"`
	Status    Status        `json:"status" yaml:"status"`
	ExitCode  int           `json:"exitCode" yaml:"exitCode"`
	Elapsed   time.Duration `json:"elapsed" yaml:"elapsed"`
	LogPath   string        `json:"logPath,omitempty" yaml:"logPath,omitempty"`
	Error     string        `json:"error,omitempty" yaml:"error,omitempty"`

	// Decisive outcomes determine round success; secondaries are not decisive.
	Decisive bool `json:"decisive" yaml:"decisive"`
}

// Passed reports whether the outcome counts as succeeded. A non-decisive
// worker stopped at the end of a staged round has passed.
func (o WorkerOutcome) Passed() bool {
	return o.Status == StatusSuccess || (!o.Decisive && o.Status == StatusStopped)
}

// RoundResult aggregates one round of a workload kind.
type RoundResult struct {
	Kind     workload.Kind `json:"kind" yaml:"kind"`
	Started  time.Time     `json:"started" yaml:"started"`
	Duration time.Duration `json:"duration" yaml:"duration"`

	Total     int `json:"total" yaml:"total"`
	Succeeded int `json:"succeeded" yaml:"succeeded"`
	Failed    int `json:"failed" yaml:"failed"`

	// Anomalies are kernel log lines matched during the round.
	Anomalies []string `json:"anomalies,omitempty" yaml:"anomalies,omitempty"`

	Success bool   `json:"success" yaml:"success"`
	Skipped bool   `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Reason  string `json:"reason,omitempty" yaml:"reason,omitempty"`

	LogPath      string `json:"logPath,omitempty" yaml:"logPath,omitempty"`
	ErrorLogPath string `json:"errorLogPath,omitempty" yaml:"errorLogPath,omitempty"`

	Outcomes []WorkerOutcome `json:"outcomes,omitempty" yaml:"outcomes,omitempty"`
}

// NewRoundResult starts a result for kind.
func NewRoundResult(kind workload.Kind, started time.Time) *RoundResult {
	return &RoundResult{Kind: kind, Started: started}
}

// SkippedRound records a kind that never ran. It counts as failed.
func SkippedRound(kind workload.Kind, reason string) RoundResult {
	return RoundResult{Kind: kind, Skipped: true, Reason: reason}
}

// Add records one worker outcome.
func (r *RoundResult) Add(o WorkerOutcome) {
	r.Outcomes = append(r.Outcomes, o)
}

// AddAnomalies records kernel log matches.
func (r *RoundResult) AddAnomalies(lines ...string) {
	r.Anomalies = append(r.Anomalies, lines...)
}

// Finalize computes the counts and the success flag. A round succeeds when it
// was not skipped, has at least one decisive outcome, every decisive outcome
// succeeded and no anomaly was found.
func (r *RoundResult) Finalize() {
	r.Total = len(r.Outcomes)
	r.Succeeded = 0
	decisive, decisiveOK := 0, 0
	for _, o := range r.Outcomes {
		if o.Passed() {
			r.Succeeded++
		}
		if o.Decisive {
			decisive++
			if o.Status == StatusSuccess {
				decisiveOK++
			}
		}
	}
	r.Failed = r.Total - r.Succeeded
	r.Success = !r.Skipped && decisive > 0 && decisive == decisiveOK && len(r.Anomalies) == 0
}

// Status returns the round status for display.
func (r *RoundResult) Status() Status {
	switch {
	case r.Skipped:
		return StatusSkipped
	case r.Success:
		return StatusSuccess
	default:
		return StatusFailure
	}
}

// Summary is the pass/fail matrix of a run.
type Summary struct {
	Kinds   int  `json:"kinds" yaml:"kinds"`
	Passed  int  `json:"passed" yaml:"passed"`
	Failed  int  `json:"failed" yaml:"failed"`
	Skipped int  `json:"skipped" yaml:"skipped"`
	Workers int  `json:"workers" yaml:"workers"`
	Success bool `json:"success" yaml:"success"`
}

// Report is the externally observable result of a run.
type Report struct {
	header.Header `json:",inline" yaml:",inline"`

	RunID      string    `json:"runID" yaml:"runID"`
	Started    time.Time `json:"started" yaml:"started"`
	Finished   time.Time `json:"finished,omitempty" yaml:"finished,omitempty"`
	Partitions []string  `json:"partitions,omitempty" yaml:"partitions,omitempty"`

	// Preflight holds host findings gathered before the first round.
	Preflight *preflight.Result `json:"preflight,omitempty" yaml:"preflight,omitempty"`

	Summary Summary       `json:"summary" yaml:"summary"`
	Rounds  []RoundResult `json:"rounds" yaml:"rounds"`

	LogDir       string `json:"logDir,omitempty" yaml:"logDir,omitempty"`
	SuiteLogPath string `json:"suiteLogPath,omitempty" yaml:"suiteLogPath,omitempty"`
}

// NewReport returns an empty report for a run.
func NewReport(runID, version string, started time.Time) *Report {
	r := &Report{RunID: runID, Started: started, Rounds: []RoundResult{}}
	r.Init(header.KindRunReport, version)
	r.Set("runID", runID)
	return r
}

// Add appends a finalized round and updates the summary.
func (r *Report) Add(rr RoundResult) {
	r.Rounds = append(r.Rounds, rr)
	r.summarize()
}

func (r *Report) summarize() {
	s := Summary{Kinds: len(r.Rounds)}
	for _, rr := range r.Rounds {
		s.Workers += rr.Total
		switch {
		case rr.Skipped:
			s.Skipped++
			s.Failed++
		case rr.Success:
			s.Passed++
		default:
			s.Failed++
		}
	}
	s.Success = s.Failed == 0
	r.Summary = s
}

// Finish stamps the end time.
func (r *Report) Finish(t time.Time) {
	r.Finished = t
	r.summarize()
}

// FailedKinds returns the kinds whose round did not succeed, in run order.
func (r *Report) FailedKinds() []workload.Kind {
	var out []workload.Kind
	for _, rr := range r.Rounds {
		if !rr.Success {
			out = append(out, rr.Kind)
		}
	}
	return out
}

// ExitCode is 0 when every round passed and 1 otherwise.
func (r *Report) ExitCode() int {
	if r.Summary.Success {
		return 0
	}
	return 1
}
