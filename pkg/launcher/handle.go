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
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"k8s.io/utils/clock"

	"github.com/NVIDIA/mig-stress/pkg/logging"
	"github.com/NVIDIA/mig-stress/pkg/workload"
)

// Handle tracks one worker process from spawn to exit. A handle whose spawn
// failed is already done and carries the spawn error.
type Handle struct {
	Spec    workload.Spec
	PID     int
	LogPath string
	Started time.Time

	cmd   *exec.Cmd
	clock clock.Clock
	log   *logging.FileLogger

	done     chan struct{}
	spawnErr error
	waitErr  error
	exitCode int
	elapsed  time.Duration

	signaled atomic.Bool
	stopOnce sync.Once
}

// Result is the final state of a handle, valid once Done is closed.
type Result struct {
	// SpawnErr is set when the process never started.
	SpawnErr error

	// ExitCode is the process exit status, -1 when killed by a signal.
	ExitCode int

	// WaitErr is the error returned by waiting on the process, if any.
	WaitErr error

	// Signaled reports whether a stop signal was sent before the exit.
	Signaled bool

	Elapsed time.Duration
}

func failedHandle(spec workload.Spec, c clock.Clock, logPath string, err error) *Handle {
	h := &Handle{
		Spec:     spec,
		LogPath:  logPath,
		Started:  c.Now(),
		clock:    c,
		done:     make(chan struct{}),
		spawnErr: err,
		exitCode: -1,
	}
	close(h.done)
	return h
}

// Done is closed once the process has exited or failed to spawn.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Exited reports whether Done is closed.
func (h *Handle) Exited() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Result returns the final state. It must only be called after Done is closed.
func (h *Handle) Result() Result {
	return Result{
		SpawnErr: h.spawnErr,
		ExitCode: h.exitCode,
		WaitErr:  h.waitErr,
		Signaled: h.signaled.Load(),
		Elapsed:  h.elapsed,
	}
}

func (h *Handle) wait() {
	err := h.cmd.Wait()
	h.elapsed = h.clock.Since(h.Started)
	h.waitErr = err
	h.exitCode = -1
	if h.cmd.ProcessState != nil {
		h.exitCode = h.cmd.ProcessState.ExitCode()
	}

	var exitErr *exec.ExitError
	if err != nil && errors.As(err, &exitErr) {
		// a non-zero exit is not a wait failure
		h.waitErr = nil
	}

	workersRunning.Dec()
	// the worker log holds only the worker's own output
	slog.Info("worker exited", "name", h.Spec.Name(), "pid", h.PID, "exitCode", h.exitCode,
		"elapsed", h.elapsed.Round(time.Millisecond).String())
	if h.log != nil {
		_ = h.log.Close()
	}
	close(h.done)
}

// Stop sends SIGTERM to the worker's process group, waits up to grace for it
// to exit and then sends SIGKILL. It returns once the process has exited or
// ctx is done. Stopping an exited handle is a no-op.
func (h *Handle) Stop(ctx context.Context, grace time.Duration) error {
	if h.Exited() {
		return nil
	}

	var termErr error
	h.stopOnce.Do(func() {
		h.signaled.Store(true)
		workerStopSignals.WithLabelValues("term").Inc()
		slog.Debug("terminating worker", "pid", h.PID, "name", h.Spec.Name())
		termErr = terminate(h.cmd)
	})
	if termErr != nil && !h.Exited() {
		slog.Warn("failed to send SIGTERM", "pid", h.PID, "error", termErr)
	}

	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-h.clock.After(grace):
	}

	workerStopSignals.WithLabelValues("kill").Inc()
	slog.Warn("worker did not stop in time, killing", "pid", h.PID, "name", h.Spec.Name(), "grace", grace.String())
	if err := kill(h.cmd); err != nil && !h.Exited() {
		return fmt.Errorf("failed to kill worker %d: %w", h.PID, err)
	}

	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
