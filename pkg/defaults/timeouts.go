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

package defaults

import "time"

// Worker timings.
const (
	// WorkerDuration is the default stress duration of a single worker.
	WorkerDuration = 60 * time.Second

	// WorkerTick is the pause between two stress iterations inside a worker.
	WorkerTick = 100 * time.Millisecond

	// WorkerProgressInterval bounds how often a worker writes a progress line.
	WorkerProgressInterval = 5 * time.Second

	// WorkerGraceMargin is added to a worker's duration to derive the deadline
	// after which the collector stops waiting and terminates it.
	WorkerGraceMargin = 60 * time.Second

	// ThermalPhase is the length of one heat or cool phase of a thermal worker.
	ThermalPhase = 10 * time.Second
)

// Primary/secondary staging.
const (
	// SecondaryWarmup is how long secondaries run before the primary is started.
	SecondaryWarmup = 10 * time.Second

	// SecondaryOverrun is how much longer than the primary a secondary is
	// planned to run. The collector stops secondaries once the primary exits.
	SecondaryOverrun = 30 * time.Second

	// SecondaryStopGrace is how long a signaled worker may take to exit before
	// it is killed.
	SecondaryStopGrace = 30 * time.Second
)

// Sequencer timings.
const (
	// SuiteCooldown is the pause between two rounds so thermal and power state settles.
	SuiteCooldown = 30 * time.Second

	// DiscoveryTimeout bounds a single partition discovery query.
	DiscoveryTimeout = 30 * time.Second

	// SetupTimeout bounds a partition setup or teardown operation.
	SetupTimeout = 2 * time.Minute

	// RuntimeCheckTimeout bounds the numeric runtime availability check.
	RuntimeCheckTimeout = 60 * time.Second

	// PreflightTimeout bounds host preflight checks (systemd, driver version).
	PreflightTimeout = 15 * time.Second
)

// Collector timings.
const (
	// KernelLogTimeout bounds a single kernel log read.
	KernelLogTimeout = 10 * time.Second

	// TelemetryTimeout bounds a single temperature/power query.
	TelemetryTimeout = 5 * time.Second
)

// Output timings.
const (
	// ConfigMapWriteTimeout is the timeout for writing the report to a ConfigMap.
	ConfigMapWriteTimeout = 30 * time.Second

	// OCIPushTimeout is the timeout for pushing the log archive to a registry.
	OCIPushTimeout = 5 * time.Minute
)

// Status server timeouts.
const (
	// ServerReadTimeout is the maximum duration for reading request headers.
	ServerReadTimeout = 10 * time.Second

	// ServerWriteTimeout is the maximum duration for writing a response.
	ServerWriteTimeout = 30 * time.Second

	// ServerIdleTimeout is the maximum duration to wait for the next request.
	ServerIdleTimeout = 120 * time.Second

	// ServerShutdownTimeout is the maximum duration for graceful shutdown.
	ServerShutdownTimeout = 10 * time.Second
)

// KernelLogTailLines is how many trailing kernel log lines are scanned when the
// pre-round mark cannot be found (ring buffer wrapped).
const KernelLogTailLines = 200
