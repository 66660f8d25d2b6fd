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

package launcher

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"

	"github.com/NVIDIA/mig-stress/pkg/defaults"
	"github.com/NVIDIA/mig-stress/pkg/errors"
	"github.com/NVIDIA/mig-stress/pkg/logging"
	"github.com/NVIDIA/mig-stress/pkg/workload"
)

// LogPathFunc returns the per-worker log file of spec. An empty path sends
// the worker's output nowhere.
type LogPathFunc func(spec workload.Spec) string

// Launcher starts worker processes.
type Launcher struct {
	Builder CommandBuilder
	LogPath LogPathFunc
	Clock   clock.Clock

	// Warmup is how long secondaries run before the primary starts.
	Warmup time.Duration
}

// Option configures a Launcher.
type Option func(*Launcher)

// WithClock sets the clock used for the warm-up delay and elapsed times.
func WithClock(c clock.Clock) Option {
	return func(l *Launcher) { l.Clock = c }
}

// WithLogPath sets where worker output is written.
func WithLogPath(f LogPathFunc) Option {
	return func(l *Launcher) { l.LogPath = f }
}

// WithWarmup overrides the secondary warm-up delay.
func WithWarmup(d time.Duration) Option {
	return func(l *Launcher) { l.Warmup = d }
}

// New returns a launcher using builder to create worker commands.
func New(builder CommandBuilder, opts ...Option) *Launcher {
	l := &Launcher{
		Builder: builder,
		Clock:   clock.RealClock{},
		Warmup:  defaults.SecondaryWarmup,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Round is the set of handles started for one workload kind.
type Round struct {
	Kind    workload.Kind
	Started time.Time

	// Handles holds one handle per spec, secondaries first in staged rounds.
	Handles []*Handle

	// Primary is the decisive handle of a staged round, nil for flat rounds.
	Primary *Handle
}

// Staged reports whether the round has a primary.
func (r *Round) Staged() bool {
	return r.Primary != nil
}

// Secondaries returns the non-primary handles.
func (r *Round) Secondaries() []*Handle {
	out := make([]*Handle, 0, len(r.Handles))
	for _, h := range r.Handles {
		if h != r.Primary {
			out = append(out, h)
		}
	}
	return out
}

// Stop stops every running handle concurrently, each with the given grace.
func (r *Round) Stop(ctx context.Context, grace time.Duration) error {
	return StopAll(ctx, r.Handles, grace)
}

// StopAll stops the given handles concurrently.
func StopAll(ctx context.Context, handles []*Handle, grace time.Duration) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, h := range handles {
		g.Go(func() error { return h.Stop(ctx, grace) })
	}
	return g.Wait()
}

// Launch starts a planned round, staged when it contains a primary.
func (l *Launcher) Launch(ctx context.Context, specs []workload.Spec) *Round {
	primary, others := workload.Split(specs)
	if primary == nil {
		return l.Start(ctx, others)
	}
	return l.StartStaged(ctx, others, *primary)
}

// Start spawns one worker per spec and returns once all are started. A spec
// that fails to spawn yields a finished handle carrying the error.
func (l *Launcher) Start(ctx context.Context, specs []workload.Spec) *Round {
	r := &Round{Started: l.Clock.Now()}
	if len(specs) > 0 {
		r.Kind = specs[0].Kind
	}
	for _, s := range specs {
		r.Handles = append(r.Handles, l.spawn(ctx, s))
	}
	return r
}

// StartStaged spawns the secondaries, waits for the warm-up delay and then
// spawns the primary. The delay is skipped when there are no secondaries. If
// ctx ends during the delay the primary is recorded as a spawn failure.
func (l *Launcher) StartStaged(ctx context.Context, secondaries []workload.Spec, primary workload.Spec) *Round {
	r := l.Start(ctx, secondaries)
	r.Kind = primary.Kind

	if len(secondaries) > 0 && l.Warmup > 0 {
		slog.Info("waiting for secondaries to warm up", "kind", string(primary.Kind),
			"secondaries", len(secondaries), "warmup", l.Warmup.String())
		select {
		case <-l.Clock.After(l.Warmup):
		case <-ctx.Done():
			h := failedHandle(primary, l.Clock, l.logPath(primary),
				errors.Wrap(errors.ErrCodeSpawnFailed, "canceled before primary start", ctx.Err()))
			workerSpawnTotal.WithLabelValues(string(primary.Kind), "error").Inc()
			r.Handles = append(r.Handles, h)
			r.Primary = h
			return r
		}
	}

	h := l.spawn(ctx, primary)
	r.Handles = append(r.Handles, h)
	r.Primary = h
	return r
}

func (l *Launcher) logPath(spec workload.Spec) string {
	if l.LogPath == nil {
		return ""
	}
	return l.LogPath(spec)
}

func (l *Launcher) spawn(ctx context.Context, spec workload.Spec) *Handle {
	path := l.logPath(spec)
	fail := func(msg string, err error) *Handle {
		slog.Error("failed to spawn worker", "name", spec.Name(), "partition", spec.Partition.ID, "error", err)
		workerSpawnTotal.WithLabelValues(string(spec.Kind), "error").Inc()
		return failedHandle(spec, l.Clock, path, errors.Wrap(errors.ErrCodeSpawnFailed, msg, err))
	}

	if err := ctx.Err(); err != nil {
		return fail("round canceled", err)
	}

	cmd, err := l.Builder.Command(ctx, spec)
	if err != nil {
		return fail("failed to build worker command", err)
	}

	var flog *logging.FileLogger
	if path != "" {
		flog, err = logging.NewFileLogger(path, "worker", spec.Name())
		if err != nil {
			return fail("failed to open worker log", err)
		}
		cmd.Stdout = flog.Writer()
		cmd.Stderr = flog.Writer()
	}
	isolate(cmd)

	if err := cmd.Start(); err != nil {
		if flog != nil {
			_ = flog.Close()
		}
		return fail("failed to start worker", err)
	}

	h := &Handle{
		Spec:    spec,
		PID:     cmd.Process.Pid,
		LogPath: path,
		Started: l.Clock.Now(),
		cmd:     cmd,
		clock:   l.Clock,
		log:     flog,
		done:    make(chan struct{}),
	}
	workerSpawnTotal.WithLabelValues(string(spec.Kind), "started").Inc()
	workersRunning.Inc()
	slog.Info("worker started", "name", spec.Name(), "partition", spec.Partition.ID, "pid", h.PID)

	go h.wait()
	return h
}
