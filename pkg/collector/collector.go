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

package collector

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"

	"github.com/NVIDIA/mig-stress/pkg/collector/kernel"
	"github.com/NVIDIA/mig-stress/pkg/defaults"
	"github.com/NVIDIA/mig-stress/pkg/launcher"
	"github.com/NVIDIA/mig-stress/pkg/report"
	"github.com/NVIDIA/mig-stress/pkg/runlog"
	"github.com/NVIDIA/mig-stress/pkg/worker"
)

const logFileMode = 0o644

// Collector waits for the workers of a round and builds its result.
type Collector struct {
	// Scanner looks for kernel anomalies after the round; nil disables the scan.
	Scanner *kernel.Scanner

	Clock clock.Clock

	// GraceMargin is added to each worker's duration before it is timed out.
	GraceMargin time.Duration

	// StopGrace is how long a stopped worker may take to exit before SIGKILL.
	StopGrace time.Duration
}

// Option configures a Collector.
type Option func(*Collector)

// WithScanner sets the kernel anomaly scanner.
func WithScanner(s *kernel.Scanner) Option {
	return func(c *Collector) { c.Scanner = s }
}

// WithClock sets the clock used for worker deadlines.
func WithClock(clk clock.Clock) Option {
	return func(c *Collector) { c.Clock = clk }
}

// WithGraceMargin overrides the margin added to worker durations.
func WithGraceMargin(d time.Duration) Option {
	return func(c *Collector) { c.GraceMargin = d }
}

// WithStopGrace overrides the SIGTERM to SIGKILL delay.
func WithStopGrace(d time.Duration) Option {
	return func(c *Collector) { c.StopGrace = d }
}

// New returns a collector with the default timeouts and no anomaly scan.
func New(opts ...Option) *Collector {
	c := &Collector{
		Clock:       clock.RealClock{},
		GraceMargin: defaults.WorkerGraceMargin,
		StopGrace:   defaults.SecondaryStopGrace,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Mark is the kernel log position taken before a round.
type Mark struct {
	cursor kernel.Cursor
	ok     bool
}

// Mark records the kernel log position. A source that cannot be read yields
// a mark that disables the scan for the round.
func (c *Collector) Mark(ctx context.Context) Mark {
	if c.Scanner == nil {
		return Mark{}
	}
	cur, err := c.Scanner.Mark(ctx)
	if err != nil {
		slog.Warn("kernel log unavailable, anomaly scan disabled for this round",
			"source", c.Scanner.Source.Name(), "error", err)
		return Mark{}
	}
	return Mark{cursor: cur, ok: true}
}

// ending is why the collector stopped waiting on a handle.
type ending int

const (
	endExited ending = iota
	endTimeout
	endStopped
)

// Collect waits for every handle of round, writes the round logs under logs
// (skipped when logs.Dir is empty) and returns the finalized result. The
// returned error reports log write failures only; worker failures are part of
// the result.
func (c *Collector) Collect(ctx context.Context, round *launcher.Round, mark Mark, logs runlog.Round) (*report.RoundResult, error) {
	start := c.Clock.Now()
	res := report.NewRoundResult(round.Kind, round.Started)

	endings := make([]ending, len(round.Handles))
	var primaryDone <-chan struct{}
	if round.Staged() {
		primaryDone = round.Primary.Done()
	}

	// stopping outlives ctx so that canceled rounds still reap their workers
	stopCtx := context.WithoutCancel(ctx)

	var g errgroup.Group
	for i, h := range round.Handles {
		stopWhen := primaryDone
		if h == round.Primary {
			stopWhen = nil
		}
		g.Go(func() error {
			endings[i] = c.await(ctx, stopCtx, h, stopWhen)
			return nil
		})
	}
	_ = g.Wait()

	for i, h := range round.Handles {
		o := outcome(h, endings[i])
		res.Add(o)
		workerOutcomesTotal.WithLabelValues(string(o.Kind), string(o.Status)).Inc()
		slog.Info("worker finished", "name", o.Name, "partition", o.Partition, "pid", o.PID,
			"status", string(o.Status), "exitCode", o.ExitCode, "elapsed", o.Elapsed.Round(time.Millisecond).String())
	}

	if mark.ok && c.Scanner != nil {
		lines, err := c.Scanner.Scan(stopCtx, mark.cursor)
		if err != nil {
			slog.Warn("kernel anomaly scan failed", "kind", string(round.Kind), "error", err)
		}
		if len(lines) > 0 {
			res.AddAnomalies(lines...)
		}
	}

	res.Duration = c.Clock.Since(start)
	res.Finalize()
	roundsTotal.WithLabelValues(string(res.Kind), string(res.Status())).Inc()
	roundDuration.WithLabelValues(string(res.Kind)).Observe(res.Duration.Seconds())

	if logs.Dir == "" {
		return res, nil
	}
	res.LogPath = logs.Log()
	res.ErrorLogPath = logs.ErrorLog()
	if err := WriteRoundLog(res.LogPath, res.Outcomes); err != nil {
		return res, err
	}
	if err := WriteErrorLog(res.ErrorLogPath, res.Anomalies); err != nil {
		return res, err
	}
	return res, nil
}

// await blocks until h exits, its deadline passes, stopWhen is closed or ctx
// ends. In the last three cases the worker is stopped first.
func (c *Collector) await(ctx, stopCtx context.Context, h *launcher.Handle, stopWhen <-chan struct{}) ending {
	if h.Exited() {
		return endExited
	}

	remaining := h.Spec.Duration + c.GraceMargin - c.Clock.Since(h.Started)
	timer := c.Clock.NewTimer(max(remaining, 0))
	defer timer.Stop()

	select {
	case <-h.Done():
		return endExited
	case <-timer.C():
		slog.Warn("worker exceeded its deadline, stopping", "name", h.Spec.Name(), "pid", h.PID,
			"deadline", (h.Spec.Duration + c.GraceMargin).String())
		c.stop(stopCtx, h)
		return endTimeout
	case <-stopWhen:
		slog.Debug("primary finished, stopping secondary", "name", h.Spec.Name(), "pid", h.PID)
		c.stop(stopCtx, h)
		return endStopped
	case <-ctx.Done():
		slog.Info("round canceled, stopping worker", "name", h.Spec.Name(), "pid", h.PID)
		c.stop(stopCtx, h)
		return endStopped
	}
}

func (c *Collector) stop(ctx context.Context, h *launcher.Handle) {
	if err := h.Stop(ctx, c.StopGrace); err != nil {
		slog.Error("failed to stop worker", "name", h.Spec.Name(), "pid", h.PID, "error", err)
	}
	<-h.Done()
}

// outcome maps a finished handle to its outcome.
func outcome(h *launcher.Handle, end ending) report.WorkerOutcome {
	r := h.Result()
	o := report.WorkerOutcome{
		Name:      h.Spec.Name(),
		Kind:      h.Spec.Kind,
		Role:      h.Spec.Role,
		Partition: h.Spec.Partition.ID,
		Instance:  h.Spec.Instance,
		PID:       h.PID,
		ExitCode:  r.ExitCode,
		Elapsed:   r.Elapsed,
		LogPath:   h.LogPath,
		Decisive:  h.Spec.Decisive(),
	}

	switch {
	case r.SpawnErr != nil:
		o.Status = report.StatusSpawnError
		o.Error = r.SpawnErr.Error()
	case end == endTimeout:
		o.Status = report.StatusTimeout
		o.Error = fmt.Sprintf("exceeded deadline of %s", h.Spec.Duration)
	case end == endStopped && r.Signaled:
		o.Status = report.StatusStopped
	case r.WaitErr != nil:
		o.Status = report.StatusFailure
		o.Error = r.WaitErr.Error()
	case r.ExitCode == worker.ExitOK:
		o.Status = report.StatusSuccess
	case r.ExitCode == worker.ExitUnavailable:
		o.Status = report.StatusDeviceUnavailable
		o.Error = "device unavailable"
	default:
		o.Status = report.StatusFailure
		o.Error = fmt.Sprintf("exit code %d", r.ExitCode)
	}
	return o
}

// SectionHeader is the line that opens a worker's section in the round log.
func SectionHeader(o report.WorkerOutcome) string {
	return fmt.Sprintf("===== worker %s/%s partition=%s pid=%d status=%s =====",
		o.Kind, o.Role, o.Partition, o.PID, o.Status)
}

// WriteRoundLog concatenates the worker logs of outcomes into path. Worker
// lines are copied verbatim under a header naming the worker.
func WriteRoundLog(path string, outcomes []report.WorkerOutcome) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, logFileMode)
	if err != nil {
		return fmt.Errorf("failed to create round log %s: %w", path, err)
	}
	defer f.Close()

	for _, o := range outcomes {
		if _, err := fmt.Fprintln(f, SectionHeader(o)); err != nil {
			return fmt.Errorf("failed to write round log: %w", err)
		}
		if err := appendWorkerLog(f, o); err != nil {
			return err
		}
	}
	return f.Close()
}

func appendWorkerLog(w io.Writer, o report.WorkerOutcome) error {
	if o.LogPath == "" {
		_, err := fmt.Fprintln(w, "(no log)")
		return err
	}
	src, err := os.Open(o.LogPath)
	if err != nil {
		// spawn failures may never create the file
		msg := "(no log)"
		if o.Error != "" {
			msg = "(no log: " + o.Error + ")"
		}
		_, werr := fmt.Fprintln(w, msg)
		return werr
	}
	defer src.Close()

	if _, err := io.Copy(w, src); err != nil {
		return fmt.Errorf("failed to copy worker log %s: %w", o.LogPath, err)
	}
	return nil
}

// WriteErrorLog writes one anomaly per line to path. The file is created even
// when there are none.
func WriteErrorLog(path string, anomalies []string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, logFileMode)
	if err != nil {
		return fmt.Errorf("failed to create error log %s: %w", path, err)
	}
	defer f.Close()

	for _, a := range anomalies {
		if _, err := fmt.Fprintln(f, a); err != nil {
			return fmt.Errorf("failed to write error log: %w", err)
		}
	}
	return f.Close()
}
