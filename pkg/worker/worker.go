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

package worker

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/time/rate"
	"k8s.io/utils/clock"

	"github.com/NVIDIA/mig-stress/pkg/defaults"
	"github.com/NVIDIA/mig-stress/pkg/device"
	"github.com/NVIDIA/mig-stress/pkg/errors"
	"github.com/NVIDIA/mig-stress/pkg/telemetry"
	"github.com/NVIDIA/mig-stress/pkg/workload"
)

// State is a worker lifecycle state.
type State string

const (
	StateInit       State = "INIT"
	StateAllocating State = "ALLOCATING"
	StateStressing  State = "STRESSING"
	StateCycling    State = "CYCLING"
	StateCleanup    State = "CLEANUP"
	StateDone       State = "DONE"
	StateFailed     State = "FAILED"
)

// Exit statuses of the worker process.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitUnavailable = 2
)

// Opener opens the device of a worker.
type Opener func(device.Options) (device.Device, error)

// Config configures a Worker.
type Config struct {
	Spec   workload.Spec
	Device device.Options

	// Open defaults to device.Open.
	Open Opener

	// Telemetry is sampled when the strategy asks for it; nil disables sampling.
	Telemetry telemetry.Reader

	Logger *slog.Logger
	Clock  clock.WithTicker

	// Tick is the pause between stress iterations.
	Tick time.Duration

	// ProgressInterval bounds how often a progress line is logged.
	ProgressInterval time.Duration
}

// Stats summarizes what a worker did.
type Stats struct {
	Iterations     int     `json:"iterations"`
	Allocations    int     `json:"allocations"`
	Frees          int     `json:"frees"`
	OOMRecoveries  int     `json:"oomRecoveries"`
	PeakAllocated  uint64  `json:"peakAllocated"`
	ThermalPauses  int     `json:"thermalPauses"`
	MaxTemperature float64 `json:"maxTemperatureC"`
	MaxPower       float64 `json:"maxPowerW"`
}

// Worker runs one stress workload against one partition.
type Worker struct {
	cfg Config
	log *slog.Logger

	mu    sync.Mutex
	state State
	stats Stats

	dev       device.Device
	buffers   []device.Buffer
	allocated uint64
	target    uint64
	nextChunk int

	progress  rate.Sometimes
	telemetry rate.Sometimes
}

// New validates cfg and returns a worker in state INIT.
func New(cfg Config) (*Worker, error) {
	if err := cfg.Spec.Validate(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidRequest, "invalid workload spec", err)
	}
	if cfg.Open == nil {
		cfg.Open = device.Open
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.RealClock{}
	}
	if cfg.Tick <= 0 {
		cfg.Tick = defaults.WorkerTick
	}
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = defaults.WorkerProgressInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	cfg.Device.Partition = cfg.Spec.Partition.ID

	return &Worker{
		cfg: cfg,
		log: cfg.Logger.With(
			"kind", string(cfg.Spec.Kind),
			"role", string(cfg.Spec.Role),
			"partition", cfg.Spec.Partition.ID,
			"instance", cfg.Spec.Instance,
		),
		state:     StateInit,
		progress:  rate.Sometimes{Interval: cfg.ProgressInterval},
		telemetry: rate.Sometimes{Interval: cfg.ProgressInterval},
	}, nil
}

// State returns the current lifecycle state.
func (w *Worker) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Stats returns a snapshot of the worker counters.
func (w *Worker) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *Worker) setState(s State) {
	w.mu.Lock()
	prev := w.state
	w.state = s
	w.mu.Unlock()
	if prev != s {
		w.log.Debug("state change", "from", string(prev), "to", string(s))
	}
}

func (w *Worker) updateStats(f func(*Stats)) {
	w.mu.Lock()
	f(&w.stats)
	w.mu.Unlock()
}

// Run executes the workload until its duration elapses or ctx is canceled.
// Cancellation is a graceful stop and returns nil. Out-of-memory conditions
// are recovered; any other device error, or a panic, fails the worker.
func (w *Worker) Run(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("worker panicked", "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			err = errors.New(errors.ErrCodeInternal, fmt.Sprintf("worker panicked: %v", r))
		}
		if w.dev != nil {
			w.setState(StateCleanup)
			if cerr := w.dev.Close(); cerr != nil {
				w.log.Error("failed to release device", "error", cerr)
				if err == nil {
					err = errors.Wrap(errors.ErrCodeInternal, "failed to release device", cerr)
				}
			}
			w.dev = nil
		}
		if err != nil {
			w.setState(StateFailed)
			return
		}
		w.setState(StateDone)
		s := w.Stats()
		w.log.Info("worker finished",
			"iterations", s.Iterations,
			"allocations", s.Allocations,
			"oomRecoveries", s.OOMRecoveries,
			"peakAllocatedMiB", s.PeakAllocated>>20)
	}()

	strategy := w.cfg.Spec.Strategy
	w.log.Info("worker starting",
		"duration", w.cfg.Spec.Duration.String(),
		"memoryFraction", strategy.MemoryFraction,
		"allocate", string(strategy.Allocate),
		"operate", string(strategy.Operate),
		"cycle", strategy.Cycle)

	dev, err := w.cfg.Open(w.cfg.Device)
	if err != nil {
		if device.IsUnavailable(err) {
			w.log.Error("device unavailable", "error", err)
			return errors.WrapWithContext(errors.ErrCodeDeviceUnavailable, "partition not visible to the runtime", err,
				map[string]any{"partition": w.cfg.Spec.Partition.ID})
		}
		return w.fatal("failed to open device", err)
	}
	w.dev = dev

	info, err := dev.MemInfo()
	if err != nil {
		return w.fatal("failed to read device memory", err)
	}
	w.target = uint64(float64(info.Total) * strategy.MemoryFraction)
	w.log.Info("device opened", "totalMiB", info.Total>>20, "freeMiB", info.Free>>20, "targetMiB", w.target>>20)

	start := w.cfg.Clock.Now()

	w.setState(StateAllocating)
	if err := w.fill(ctx); err != nil {
		return err
	}

	w.setState(StateStressing)
	ticker := w.cfg.Clock.NewTicker(w.cfg.Tick)
	defer ticker.Stop()

	for {
		if w.cfg.Clock.Since(start) >= w.cfg.Spec.Duration {
			return nil
		}
		select {
		case <-ctx.Done():
			w.log.Info("stop requested", "elapsed", w.cfg.Clock.Since(start).Round(time.Millisecond).String())
			return nil
		case <-ticker.C():
		}

		if err := w.iterate(ctx, start); err != nil {
			return err
		}
	}
}

// iterate runs one stress tick.
func (w *Worker) iterate(ctx context.Context, start time.Time) error {
	strategy := w.cfg.Spec.Strategy

	if strategy.Cycle {
		w.setState(StateCycling)
		if err := w.release(); err != nil {
			return err
		}
		if err := w.fill(ctx); err != nil {
			return err
		}
		w.setState(StateStressing)
	}

	var sample *telemetry.Sample
	if strategy.Telemetry && w.cfg.Telemetry != nil {
		s, err := w.cfg.Telemetry.Read(ctx)
		if err != nil {
			w.telemetry.Do(func() { w.log.Warn("telemetry unavailable", "error", err) })
		} else {
			sample = &s
			w.updateStats(func(st *Stats) {
				st.MaxTemperature = max(st.MaxTemperature, s.TemperatureC)
				st.MaxPower = max(st.MaxPower, s.PowerW)
			})
		}
	}

	if err := w.operate(start, sample); err != nil {
		return err
	}

	w.updateStats(func(st *Stats) { st.Iterations++ })
	w.progress.Do(func() {
		attrs := []any{
			"elapsed", w.cfg.Clock.Since(start).Round(time.Second).String(),
			"allocatedMiB", w.allocated >> 20,
			"buffers", len(w.buffers),
			"iterations", w.Stats().Iterations,
		}
		if sample != nil {
			attrs = append(attrs, "temperatureC", sample.TemperatureC, "powerW", sample.PowerW)
		}
		w.log.Info("progress", attrs...)
	})
	return nil
}

func (w *Worker) operate(start time.Time, sample *telemetry.Sample) error {
	strategy := w.cfg.Spec.Strategy

	switch strategy.Operate {
	case workload.OperateNone:
		return nil
	case workload.OperateCompute, workload.OperateMultiPass:
		return w.computeAll(max(strategy.Passes, 1))
	case workload.OperateTransfer:
		for _, b := range w.buffers {
			if err := w.dev.Transfer(b); err != nil {
				return w.fatal("transfer failed", err)
			}
		}
		return nil
	case workload.OperateThermal:
		if w.cooling(start, sample) {
			w.updateStats(func(st *Stats) { st.ThermalPauses++ })
			return nil
		}
		return w.computeAll(max(strategy.Passes, 1))
	default:
		return w.fatal("unsupported operate pattern", fmt.Errorf("%q", strategy.Operate))
	}
}

// cooling reports whether a thermal worker is in a cool phase, either by
// schedule or because the temperature limit is exceeded.
func (w *Worker) cooling(start time.Time, sample *telemetry.Sample) bool {
	if limit := w.cfg.Spec.ThermalLimit; limit > 0 && sample != nil && sample.TemperatureC >= limit {
		return true
	}
	phase := int(w.cfg.Clock.Since(start) / defaults.ThermalPhase)
	return phase%2 == 1
}

func (w *Worker) computeAll(passes int) error {
	for _, b := range w.buffers {
		if err := w.dev.Compute(b, passes); err != nil {
			if device.IsOutOfMemory(err) {
				w.recoverOOM(err)
				return nil
			}
			return w.fatal("compute failed", err)
		}
	}
	return nil
}

// fill allocates chunks until the memory target is reached or the device
// runs out of memory.
func (w *Worker) fill(ctx context.Context) error {
	sizes := w.cfg.Spec.Strategy.ChunkSizes
	for w.allocated < w.target {
		if ctx.Err() != nil {
			return nil
		}
		size := sizes[w.nextChunk%len(sizes)]
		if w.cfg.Spec.Strategy.Allocate == workload.AllocMixed {
			w.nextChunk++
		}
		if remaining := w.target - w.allocated; size > remaining {
			size = remaining
		}

		b, err := w.dev.Alloc(size)
		if err != nil {
			if device.IsOutOfMemory(err) {
				w.recoverOOM(err)
				return nil
			}
			return w.fatal("allocation failed", err)
		}
		w.buffers = append(w.buffers, b)
		w.allocated += b.Size()
		w.updateStats(func(st *Stats) {
			st.Allocations++
			st.PeakAllocated = max(st.PeakAllocated, w.allocated)
		})
	}
	return nil
}

// release frees every buffer.
func (w *Worker) release() error {
	for len(w.buffers) > 0 {
		if err := w.freeLast(); err != nil {
			return err
		}
	}
	return nil
}

func (w *Worker) freeLast() error {
	b := w.buffers[len(w.buffers)-1]
	w.buffers = w.buffers[:len(w.buffers)-1]
	size := b.Size()
	if err := w.dev.Free(b); err != nil {
		return w.fatal("free failed", err)
	}
	w.allocated -= size
	w.updateStats(func(st *Stats) { st.Frees++ })
	return nil
}

// recoverOOM drops the newest quarter of buffers (at least one) and asks the
// runtime to release cached memory. Errors while trimming are logged only.
func (w *Worker) recoverOOM(cause error) {
	drop := max(len(w.buffers)/4, 1)
	if len(w.buffers) == 0 {
		drop = 0
	}
	for i := 0; i < drop; i++ {
		if err := w.freeLast(); err != nil {
			w.log.Warn("failed to free buffer during recovery", "error", err)
			break
		}
	}
	if err := w.dev.Trim(); err != nil {
		w.log.Warn("failed to trim device cache", "error", err)
	}
	w.updateStats(func(st *Stats) { st.OOMRecoveries++ })
	w.log.Warn("out of memory, trimmed buffers and continuing",
		"error", cause.Error(),
		"dropped", drop,
		"allocatedMiB", w.allocated>>20)
}

func (w *Worker) fatal(msg string, err error) error {
	w.log.Error(msg, "error", err, "stack", string(debug.Stack()))
	return errors.WrapWithContext(errors.ErrCodeInternal, msg, err,
		map[string]any{"partition": w.cfg.Spec.Partition.ID})
}

// ExitCode maps the result of Run to the worker's process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.HasCode(err, errors.ErrCodeDeviceUnavailable):
		return ExitUnavailable
	default:
		return ExitFailure
	}
}
