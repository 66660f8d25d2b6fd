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

package sequencer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"k8s.io/utils/clock"

	"github.com/NVIDIA/mig-stress/pkg/collector"
	"github.com/NVIDIA/mig-stress/pkg/defaults"
	"github.com/NVIDIA/mig-stress/pkg/device"
	"github.com/NVIDIA/mig-stress/pkg/errors"
	"github.com/NVIDIA/mig-stress/pkg/launcher"
	"github.com/NVIDIA/mig-stress/pkg/logging"
	"github.com/NVIDIA/mig-stress/pkg/partition"
	"github.com/NVIDIA/mig-stress/pkg/preflight"
	"github.com/NVIDIA/mig-stress/pkg/report"
	"github.com/NVIDIA/mig-stress/pkg/runlog"
	"github.com/NVIDIA/mig-stress/pkg/smi"
	"github.com/NVIDIA/mig-stress/pkg/workload"
)

// State is a step of the run.
type State string

const (
	StateIdle               State = "IDLE"
	StateDiscoverPartitions State = "DISCOVER_PARTITIONS"
	StateVerifyRuntime      State = "VERIFY_RUNTIME"
	StateRunRound           State = "RUN_ROUND"
	StateCooldown           State = "COOLDOWN"
	StateFinalSummary       State = "FINAL_SUMMARY"
)

// ReasonCanceled is the skip reason of kinds not run because the run was canceled.
const ReasonCanceled = "canceled"

// Config is what a run does.
type Config struct {
	// RunID identifies the run; a random UUID when empty.
	RunID string

	// Version is stamped into the report header.
	Version string

	// Kinds are run in order. Repeats run again.
	Kinds []workload.Kind

	// Workload holds the per-worker settings shared by every round.
	Workload workload.Options

	// Cooldown is the pause between two rounds.
	Cooldown time.Duration

	// Warmup is how long secondaries run before the primary of a staged round.
	Warmup time.Duration

	// Setup, when set, is created before discovery.
	Setup *partition.Layout

	// StrictSetup skips every round when setup fails.
	StrictSetup bool

	// Backend is probed before the first round.
	Backend device.Backend

	// RuntimeCheck is an optional external command that must succeed before
	// the first round, e.g. ["python3", "-c", "import torch"].
	RuntimeCheck []string

	// PIDFile, when set, holds the PID of the running sequencer.
	PIDFile string
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if len(c.Kinds) == 0 {
		return fmt.Errorf("at least one workload kind is required")
	}
	for _, k := range c.Kinds {
		if !k.IsValid() {
			return fmt.Errorf("invalid workload kind %q", k)
		}
	}
	if c.Cooldown < 0 {
		return fmt.Errorf("cooldown must not be negative, got %s", c.Cooldown)
	}
	if c.Setup != nil {
		if err := c.Setup.Validate(); err != nil {
			return fmt.Errorf("invalid setup layout: %w", err)
		}
	}
	return nil
}

// Status is a point-in-time view of a run.
type Status struct {
	RunID   string        `json:"runID"`
	State   State         `json:"state"`
	Kind    workload.Kind `json:"kind,omitempty"`
	Round   int           `json:"round"`
	Rounds  int           `json:"rounds"`
	Passed  int           `json:"passed"`
	Failed  int           `json:"failed"`
	Started time.Time     `json:"started,omitzero"`
	Updated time.Time     `json:"updated,omitzero"`
}

// Sequencer runs the rounds of a suite.
type Sequencer struct {
	cfg Config

	builder    launcher.CommandBuilder
	discoverer partition.Discoverer
	manager    *partition.Manager
	collector  *collector.Collector
	preflight  *preflight.Checker
	probe      func(device.Backend) error
	runner     smi.Runner
	layout     *runlog.Layout
	clock      clock.Clock

	log *slog.Logger

	mu     sync.RWMutex
	status Status
}

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithClock sets the clock used for cooldowns, warm-ups and worker deadlines.
func WithClock(c clock.Clock) Option {
	return func(s *Sequencer) { s.clock = c }
}

// WithCollector replaces the default collector.
func WithCollector(c *collector.Collector) Option {
	return func(s *Sequencer) { s.collector = c }
}

// WithManager sets the partition manager used for Config.Setup.
func WithManager(m *partition.Manager) Option {
	return func(s *Sequencer) { s.manager = m }
}

// WithPreflight enables host preflight checks.
func WithPreflight(p *preflight.Checker) Option {
	return func(s *Sequencer) { s.preflight = p }
}

// WithProbe replaces the device backend probe.
func WithProbe(f func(device.Backend) error) Option {
	return func(s *Sequencer) { s.probe = f }
}

// WithRunner sets the runner of the external runtime check.
func WithRunner(r smi.Runner) Option {
	return func(s *Sequencer) { s.runner = r }
}

// WithLayout writes round and suite logs under the run directory.
func WithLayout(l *runlog.Layout) Option {
	return func(s *Sequencer) { s.layout = l }
}

// New returns a sequencer that starts workers with builder on the partitions
// found by discoverer.
func New(builder launcher.CommandBuilder, discoverer partition.Discoverer, cfg Config, opts ...Option) (*Sequencer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidRequest, "invalid run configuration", err)
	}
	if builder == nil || discoverer == nil {
		return nil, errors.New(errors.ErrCodeInvalidRequest, "command builder and discoverer are required")
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}

	s := &Sequencer{
		cfg:        cfg,
		builder:    builder,
		discoverer: discoverer,
		probe:      device.Probe,
		clock:      clock.RealClock{},
		log:        slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.collector == nil {
		s.collector = collector.New(collector.WithClock(s.clock))
	}
	if s.runner == nil {
		s.runner = smi.Default()
	}
	if s.manager == nil && cfg.Setup != nil {
		s.manager = partition.NewManager(s.runner)
	}
	s.status = Status{RunID: cfg.RunID, State: StateIdle, Rounds: len(cfg.Kinds)}
	return s, nil
}

// Status returns a copy of the current run status.
func (s *Sequencer) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Sequencer) setState(state State, kind workload.Kind, round int) {
	s.mu.Lock()
	s.status.State = state
	s.status.Kind = kind
	s.status.Round = round
	s.status.Updated = s.clock.Now()
	s.mu.Unlock()

	sequencerState.Set(stateIndex(state))
	s.log.Debug("state changed", "state", string(state), "kind", string(kind), "round", round)
}

func (s *Sequencer) record(rr report.RoundResult) {
	s.mu.Lock()
	if rr.Success {
		s.status.Passed++
	} else {
		s.status.Failed++
	}
	s.mu.Unlock()

	kindResultsTotal.WithLabelValues(string(rr.Kind), string(rr.Status())).Inc()
}

// Run executes the suite and returns its report. The report is complete even
// when rounds fail; the error is only set when the run could not start.
func (s *Sequencer) Run(ctx context.Context) (*report.Report, error) {
	started := s.clock.Now()
	rep := report.NewReport(s.cfg.RunID, s.cfg.Version, started)

	s.mu.Lock()
	s.status.Started = started
	s.mu.Unlock()

	if s.layout != nil {
		flog, err := logging.NewFileLogger(s.layout.SuiteLog(), "run", s.cfg.RunID)
		if err != nil {
			return nil, err
		}
		defer flog.Close()
		s.log = flog.Tee(slog.Default())
		rep.LogDir = s.layout.Dir
		rep.SuiteLogPath = s.layout.SuiteLog()
	}

	if s.cfg.PIDFile != "" {
		if err := runlog.WritePIDFile(s.cfg.PIDFile, os.Getpid()); err != nil {
			return nil, err
		}
		defer func() {
			if err := runlog.RemovePIDFile(s.cfg.PIDFile); err != nil {
				s.log.Warn("failed to remove PID file", "error", err)
			}
		}()
	}

	s.log.Info("starting run", "runID", s.cfg.RunID, "kinds", kindList(s.cfg.Kinds),
		"duration", s.cfg.Workload.Duration.String(), "cooldown", s.cfg.Cooldown.String())

	if s.preflight != nil {
		rep.Preflight = s.preflight.Run(ctx)
	}

	parts, reason := s.discover(ctx)
	if reason == "" {
		rep.Partitions = partition.IDs(parts)
		reason = s.verifyRuntime(ctx)
	}
	if reason != "" {
		s.skip(rep, s.cfg.Kinds, reason)
		return s.finish(rep), nil
	}

	for i, kind := range s.cfg.Kinds {
		if ctx.Err() != nil {
			s.skip(rep, s.cfg.Kinds[i:], ReasonCanceled)
			break
		}

		rr := s.runRound(ctx, i+1, kind, parts)
		rep.Add(rr)
		s.record(rr)

		if i < len(s.cfg.Kinds)-1 {
			s.cooldown(ctx, kind, i+1)
		}
	}

	return s.finish(rep), nil
}

// discover sets up and lists partitions. A non-empty reason means no round can run.
func (s *Sequencer) discover(ctx context.Context) ([]partition.Partition, string) {
	s.setState(StateDiscoverPartitions, "", 0)

	if s.cfg.Setup != nil {
		if err := s.manager.Setup(ctx, *s.cfg.Setup); err != nil {
			if s.cfg.StrictSetup {
				s.log.Error("partition setup failed", "error", err)
				return nil, "partition setup failed: " + err.Error()
			}
			s.log.Warn("partition setup failed, continuing with existing partitions", "error", err)
		}
	}

	parts, err := s.discoverer.Discover(ctx)
	if err != nil {
		s.log.Error("partition discovery failed", "error", err)
		return nil, "partition discovery failed: " + err.Error()
	}
	if len(parts) == 0 {
		s.log.Error("no partitions found")
		return nil, "no partitions found"
	}
	partitionsDiscovered.Set(float64(len(parts)))
	s.log.Info("discovered partitions", "count", len(parts), "ids", strings.Join(partition.IDs(parts), ","))
	return parts, ""
}

func (s *Sequencer) verifyRuntime(ctx context.Context) string {
	s.setState(StateVerifyRuntime, "", 0)

	if err := s.probe(s.cfg.Backend); err != nil {
		s.log.Error("device backend unavailable", "backend", string(s.cfg.Backend), "error", err)
		return fmt.Sprintf("%s backend unavailable: %v", s.cfg.Backend, err)
	}

	if len(s.cfg.RuntimeCheck) == 0 {
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, defaults.RuntimeCheckTimeout)
	defer cancel()
	if _, err := s.runner.Run(ctx, s.cfg.RuntimeCheck[0], s.cfg.RuntimeCheck[1:]...); err != nil {
		err = errors.WrapWithContext(errors.ErrCodeRuntimeMissing, "runtime check failed", err,
			map[string]any{"command": strings.Join(s.cfg.RuntimeCheck, " ")})
		s.log.Error("numeric runtime unavailable", "error", err)
		return err.Error()
	}
	return ""
}

func (s *Sequencer) runRound(ctx context.Context, index int, kind workload.Kind, parts []partition.Partition) report.RoundResult {
	s.setState(StateRunRound, kind, index)
	s.log.Info("starting round", "round", index, "kind", string(kind))

	wopts := s.cfg.Workload
	wopts.Warmup = s.cfg.Warmup
	specs, err := workload.Plan(kind, parts, wopts)
	if err != nil {
		s.log.Error("failed to plan round", "kind", string(kind), "error", err)
		return report.SkippedRound(kind, err.Error())
	}

	var logs runlog.Round
	opts := []launcher.Option{launcher.WithClock(s.clock)}
	if s.cfg.Warmup > 0 {
		opts = append(opts, launcher.WithWarmup(s.cfg.Warmup))
	}
	if s.layout != nil {
		if logs, err = s.layout.Round(index, kind); err != nil {
			s.log.Warn("round logs disabled", "kind", string(kind), "error", err)
		} else {
			opts = append(opts, launcher.WithLogPath(logs.WorkerLog))
		}
	}

	mark := s.collector.Mark(ctx)
	round := launcher.New(s.builder, opts...).Launch(ctx, specs)
	res, err := s.collector.Collect(ctx, round, mark, logs)
	if err != nil {
		s.log.Error("failed to write round logs", "kind", string(kind), "error", err)
	}

	s.log.Info("round finished", "round", index, "kind", string(kind), "status", string(res.Status()),
		"succeeded", res.Succeeded, "failed", res.Failed, "anomalies", len(res.Anomalies))
	return *res
}

func (s *Sequencer) cooldown(ctx context.Context, kind workload.Kind, index int) {
	if s.cfg.Cooldown <= 0 {
		return
	}
	s.setState(StateCooldown, kind, index)
	s.log.Info("cooling down", "duration", s.cfg.Cooldown.String())
	select {
	case <-s.clock.After(s.cfg.Cooldown):
	case <-ctx.Done():
	}
}

func (s *Sequencer) skip(rep *report.Report, kinds []workload.Kind, reason string) {
	for _, k := range kinds {
		rr := report.SkippedRound(k, reason)
		rep.Add(rr)
		s.record(rr)
	}
	s.log.Warn("kinds skipped", "count", len(kinds), "reason", reason)
}

func (s *Sequencer) finish(rep *report.Report) *report.Report {
	s.setState(StateFinalSummary, "", len(rep.Rounds))
	rep.Finish(s.clock.Now())

	result := "success"
	if !rep.Summary.Success {
		result = "failure"
	}
	runsTotal.WithLabelValues(result).Inc()
	s.log.Info("run finished", "passed", rep.Summary.Passed, "failed", rep.Summary.Failed,
		"skipped", rep.Summary.Skipped, "workers", rep.Summary.Workers, "result", result)
	return rep
}

func kindList(kinds []workload.Kind) string {
	names := make([]string, 0, len(kinds))
	for _, k := range kinds {
		names = append(names, string(k))
	}
	return strings.Join(names, ",")
}
