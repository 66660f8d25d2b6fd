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
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/NVIDIA/mig-stress/pkg/device"
	"github.com/NVIDIA/mig-stress/pkg/workload"
)

// EnvVisibleDevices is the variable the CUDA runtime reads to select devices.
// It is only ever set on a child's environment.
const EnvVisibleDevices = "CUDA_VISIBLE_DEVICES"

// CommandBuilder builds the not yet started command of one worker.
type CommandBuilder interface {
	Command(ctx context.Context, spec workload.Spec) (*exec.Cmd, error)
}

// CommandBuilderFunc adapts a function to CommandBuilder.
type CommandBuilderFunc func(ctx context.Context, spec workload.Spec) (*exec.Cmd, error)

// Command implements CommandBuilder.
func (f CommandBuilderFunc) Command(ctx context.Context, spec workload.Spec) (*exec.Cmd, error) {
	return f(ctx, spec)
}

// SelfExec re-executes the running binary with the hidden worker subcommand.
type SelfExec struct {
	// Executable defaults to os.Executable().
	Executable string

	// Subcommand is the worker command name, "worker" by default.
	Subcommand string

	Backend    device.Backend
	HostMemory uint64
	Telemetry  string
	Tick       time.Duration
	LogLevel   string
}

// Command implements CommandBuilder.
func (s SelfExec) Command(ctx context.Context, spec workload.Spec) (*exec.Cmd, error) {
	exe := s.Executable
	if exe == "" {
		var err error
		if exe, err = os.Executable(); err != nil {
			return nil, fmt.Errorf("failed to resolve own executable: %w", err)
		}
	}
	sub := s.Subcommand
	if sub == "" {
		sub = "worker"
	}

	args := []string{sub,
		"--kind", string(spec.Kind),
		"--role", string(spec.Role),
		"--partition", spec.Partition.ID,
		"--instance", strconv.Itoa(spec.Instance),
		"--duration", spec.Duration.String(),
		"--memory-fraction", strconv.FormatFloat(spec.Strategy.MemoryFraction, 'f', -1, 64),
	}
	if spec.Partition.GPUIndex >= 0 {
		args = append(args, "--gpu", strconv.Itoa(spec.Partition.GPUIndex))
	}
	if spec.ThermalLimit > 0 {
		args = append(args, "--thermal-limit", strconv.FormatFloat(spec.ThermalLimit, 'f', -1, 64))
	}
	if s.Backend != "" {
		args = append(args, "--backend", string(s.Backend))
	}
	if s.HostMemory > 0 {
		args = append(args, "--host-memory", strconv.FormatUint(s.HostMemory, 10))
	}
	if s.Telemetry != "" {
		args = append(args, "--telemetry", s.Telemetry)
	}
	if s.Tick > 0 {
		args = append(args, "--tick", s.Tick.String())
	}
	if s.LogLevel != "" {
		args = append(args, "--log-level", s.LogLevel)
	}

	// not CommandContext: cancellation goes through Round.Stop so the worker
	// gets SIGTERM and a grace period instead of an immediate kill
	cmd := exec.Command(exe, args...) //nolint:gosec // own executable
	cmd.Env = os.Environ()
	if s.Backend == device.BackendCUDA {
		cmd.Env = append(cmd.Env, EnvVisibleDevices+"="+spec.Partition.ID)
	}
	return cmd, nil
}
