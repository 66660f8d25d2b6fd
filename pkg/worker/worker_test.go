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
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/utils/clock"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/NVIDIA/mig-stress/pkg/device"
	"github.com/NVIDIA/mig-stress/pkg/errors"
	"github.com/NVIDIA/mig-stress/pkg/partition"
	"github.com/NVIDIA/mig-stress/pkg/telemetry"
	"github.com/NVIDIA/mig-stress/pkg/workload"
)

type fakeBuffer struct{ size uint64 }

func (b *fakeBuffer) Size() uint64 { return b.size }

// fakeDevice wraps nothing; it tracks usage against a capacity and can be
// told to fail specific operations.
type fakeDevice struct {
	mu         sync.Mutex
	capacity   uint64
	used       uint64
	live       map[*fakeBuffer]bool
	trims      int
	closed     bool
	computeErr error
	panicOn    string
}

func newFakeDevice(capacity uint64) *fakeDevice {
	return &fakeDevice{capacity: capacity, live: map[*fakeBuffer]bool{}}
}

func (d *fakeDevice) ID() string { return "fake" }

func (d *fakeDevice) MemInfo() (device.MemInfo, error) {
	return device.MemInfo{Free: d.capacity - d.used, Total: d.capacity}, nil
}

func (d *fakeDevice) Alloc(size uint64) (device.Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.used+size > d.capacity {
		return nil, fmt.Errorf("%w: fake", device.ErrOutOfMemory)
	}
	b := &fakeBuffer{size: size}
	d.live[b] = true
	d.used += size
	return b, nil
}

func (d *fakeDevice) Free(b device.Buffer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	fb := b.(*fakeBuffer)
	if !d.live[fb] {
		return fmt.Errorf("double free")
	}
	delete(d.live, fb)
	d.used -= fb.size
	return nil
}

func (d *fakeDevice) Compute(device.Buffer, int) error {
	if d.panicOn == "compute" {
		panic("kernel exploded")
	}
	return d.computeErr
}

func (d *fakeDevice) Transfer(device.Buffer) error { return nil }

func (d *fakeDevice) Trim() error {
	d.mu.Lock()
	d.trims++
	d.mu.Unlock()
	return nil
}

func (d *fakeDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.live = map[*fakeBuffer]bool{}
	d.used = 0
	return nil
}

func testSpec(t *testing.T, kind workload.Kind, duration time.Duration) workload.Spec {
	t.Helper()
	specs, err := workload.Plan(kind, []partition.Partition{{ID: "MIG-test"}}, workload.Options{Duration: duration})
	require.NoError(t, err)
	return specs[0]
}

func newTestWorker(t *testing.T, spec workload.Spec, dev device.Device, openErr error) (*Worker, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	w, err := New(Config{
		Spec: spec,
		Open: func(opts device.Options) (device.Device, error) {
			assert.Equal(t, spec.Partition.ID, opts.Partition)
			if openErr != nil {
				return nil, openErr
			}
			return dev, nil
		},
		Logger:           slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})),
		Tick:             2 * time.Millisecond,
		ProgressInterval: 10 * time.Millisecond,
	})
	require.NoError(t, err)
	return w, &buf
}

func TestWorkerCompletes(t *testing.T) {
	spec := testSpec(t, workload.KindStandard, 50*time.Millisecond)
	spec.Strategy.ChunkSizes = []uint64{1 << 10}
	dev := newFakeDevice(16 << 10)

	w, logs := newTestWorker(t, spec, dev, nil)
	err := w.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateDone, w.State())
	assert.True(t, dev.closed)
	stats := w.Stats()
	assert.Positive(t, stats.Iterations)
	// 80% of 16 KiB in 1 KiB chunks
	assert.Equal(t, 13, stats.Allocations)
	assert.Contains(t, logs.String(), "worker finished")
	assert.Equal(t, ExitOK, ExitCode(err))
}

func TestWorkerRecoversFromOutOfMemory(t *testing.T) {
	spec := testSpec(t, workload.KindThrashing, 40*time.Millisecond)
	spec.Strategy.MemoryFraction = 1
	spec.Strategy.ChunkSizes = []uint64{3 << 10}
	// capacity reports 16 KiB total but only 10 KiB is really available
	dev := newFakeDevice(16 << 10)
	dev.used = 6 << 10

	w, logs := newTestWorker(t, spec, dev, nil)
	require.NoError(t, w.Run(context.Background()))

	assert.Equal(t, StateDone, w.State())
	assert.Positive(t, w.Stats().OOMRecoveries)
	assert.Positive(t, dev.trims)
	assert.Contains(t, logs.String(), "out of memory")
}

func TestWorkerCyclesOnHostBackend(t *testing.T) {
	spec := testSpec(t, workload.KindThrashing, 60*time.Millisecond)
	spec.Strategy.ChunkSizes = []uint64{1 << 10}
	dev, err := device.Open(device.Options{Backend: device.BackendHost, Partition: spec.Partition.ID, HostMemory: 16 << 10})
	require.NoError(t, err)

	w, _ := newTestWorker(t, spec, dev, nil)
	require.NoError(t, w.Run(context.Background()))

	stats := w.Stats()
	require.Positive(t, stats.Iterations)
	// 90% of 16 KiB is 15 chunks, refilled on every cycle
	const perFill = 15
	assert.GreaterOrEqual(t, stats.Allocations, perFill*(stats.Iterations+1))
	assert.GreaterOrEqual(t, stats.Frees, perFill*stats.Iterations)
	assert.Zero(t, stats.OOMRecoveries)
}

func TestNewClock(t *testing.T) {
	spec := testSpec(t, workload.KindStandard, time.Second)

	w, err := New(Config{Spec: spec})
	require.NoError(t, err)
	assert.IsType(t, clock.RealClock{}, w.cfg.Clock)

	fc := testingclock.NewFakeClock(time.Unix(0, 0))
	w, err = New(Config{Spec: spec, Clock: fc})
	require.NoError(t, err)
	assert.Equal(t, fc.Now(), w.cfg.Clock.Now())
}

func TestWorkerFatalError(t *testing.T) {
	spec := testSpec(t, workload.KindStandard, time.Second)
	spec.Strategy.ChunkSizes = []uint64{1 << 10}
	dev := newFakeDevice(8 << 10)
	dev.computeErr = fmt.Errorf("illegal memory access")

	w, logs := newTestWorker(t, spec, dev, nil)
	err := w.Run(context.Background())
	require.Error(t, err)

	assert.Equal(t, StateFailed, w.State())
	assert.True(t, dev.closed)
	assert.Equal(t, ExitFailure, ExitCode(err))
	assert.Contains(t, logs.String(), "illegal memory access")
	assert.Contains(t, logs.String(), "stack=")
}

func TestWorkerPanicIsFatal(t *testing.T) {
	spec := testSpec(t, workload.KindStandard, time.Second)
	spec.Strategy.ChunkSizes = []uint64{1 << 10}
	dev := newFakeDevice(8 << 10)
	dev.panicOn = "compute"

	w, logs := newTestWorker(t, spec, dev, nil)
	err := w.Run(context.Background())
	require.Error(t, err)

	assert.Equal(t, StateFailed, w.State())
	assert.True(t, dev.closed)
	assert.Equal(t, ExitFailure, ExitCode(err))
	assert.Contains(t, logs.String(), "kernel exploded")
}

func TestWorkerDeviceUnavailable(t *testing.T) {
	spec := testSpec(t, workload.KindStandard, time.Second)

	w, _ := newTestWorker(t, spec, nil, fmt.Errorf("%w: not visible", device.ErrUnavailable))
	err := w.Run(context.Background())
	require.Error(t, err)

	assert.True(t, errors.HasCode(err, errors.ErrCodeDeviceUnavailable))
	assert.Equal(t, ExitUnavailable, ExitCode(err))
	assert.Equal(t, StateFailed, w.State())
}

func TestWorkerGracefulStop(t *testing.T) {
	spec := testSpec(t, workload.KindStandard, time.Hour)
	spec.Strategy.ChunkSizes = []uint64{1 << 10}
	dev := newFakeDevice(8 << 10)

	w, logs := newTestWorker(t, spec, dev, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
	assert.Equal(t, StateDone, w.State())
	assert.Contains(t, logs.String(), "stop requested")
}

type fixedTelemetry struct{ temp float64 }

func (f fixedTelemetry) Read(context.Context) (telemetry.Sample, error) {
	return telemetry.Sample{Time: time.Now(), TemperatureC: f.temp, PowerW: 250}, nil
}

func TestWorkerThermalLimitPausesCompute(t *testing.T) {
	spec := testSpec(t, workload.KindThermal, 30*time.Millisecond)
	spec.Strategy.ChunkSizes = []uint64{1 << 10}
	spec.ThermalLimit = 80
	dev := newFakeDevice(8 << 10)
	// compute would fail the worker if it ran
	dev.computeErr = fmt.Errorf("compute must not run above the limit")

	var buf bytes.Buffer
	w, err := New(Config{
		Spec:      spec,
		Open:      func(device.Options) (device.Device, error) { return dev, nil },
		Telemetry: fixedTelemetry{temp: 85},
		Logger:    slog.New(slog.NewTextHandler(&buf, nil)),
		Tick:      2 * time.Millisecond,
	})
	require.NoError(t, err)

	require.NoError(t, w.Run(context.Background()))
	stats := w.Stats()
	assert.Positive(t, stats.ThermalPauses)
	assert.Equal(t, 85.0, stats.MaxTemperature)
	assert.Equal(t, 250.0, stats.MaxPower)
}

func TestNewRejectsInvalidSpec(t *testing.T) {
	_, err := New(Config{Spec: workload.Spec{Kind: workload.KindStandard}})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidRequest))
}
