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

package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/NVIDIA/mig-stress/pkg/defaults"
	"github.com/NVIDIA/mig-stress/pkg/device"
	"github.com/NVIDIA/mig-stress/pkg/logging"
	"github.com/NVIDIA/mig-stress/pkg/partition"
	"github.com/NVIDIA/mig-stress/pkg/telemetry"
	"github.com/NVIDIA/mig-stress/pkg/worker"
	"github.com/NVIDIA/mig-stress/pkg/workload"
)

// workerCmd is started by the launcher, once per worker process. Its exit
// status is the worker outcome: 0 success, 1 failure, 2 device unavailable.
func workerCmd() *cli.Command {
	return &cli.Command{
		Name:   "worker",
		Usage:  "Stress one partition (started by run and suite)",
		Hidden: true,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "kind", Required: true},
			&cli.StringFlag{Name: "role", Value: string(workload.RoleWorker)},
			&cli.StringFlag{Name: "partition", Required: true},
			&cli.IntFlag{Name: "instance"},
			&cli.IntFlag{Name: "gpu", Value: -1},
			&cli.DurationFlag{Name: "duration", Value: defaults.WorkerDuration},
			&cli.FloatFlag{Name: "memory-fraction"},
			&cli.FloatFlag{Name: "thermal-limit"},
			&cli.StringFlag{Name: "backend", Value: string(device.BackendHost)},
			&cli.Uint64Flag{Name: "host-memory"},
			&cli.StringFlag{Name: "telemetry", Value: "smi"},
			&cli.DurationFlag{Name: "tick", Value: defaults.WorkerTick},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logging.NewTextLogger(os.Stderr, cmd.String("log-level"))

			spec, err := workerSpec(cmd)
			if err != nil {
				log.Error("invalid worker arguments", "error", err)
				return cli.Exit("", worker.ExitFailure)
			}
			backend, err := device.ParseBackend(cmd.String("backend"))
			if err != nil {
				log.Error("invalid worker arguments", "error", err)
				return cli.Exit("", worker.ExitFailure)
			}
			reader, err := telemetryReader(cmd.String("telemetry"), spec.Partition.GPUIndex)
			if err != nil {
				log.Warn("telemetry disabled", "error", err)
				reader = telemetry.Nop{}
			}

			w, err := worker.New(worker.Config{
				Spec:      spec,
				Device:    device.Options{Backend: backend, HostMemory: cmd.Uint64("host-memory")},
				Telemetry: reader,
				Logger:    log,
				Tick:      cmd.Duration("tick"),
			})
			if err != nil {
				log.Error("failed to create worker", "error", err)
				return cli.Exit("", worker.ExitFailure)
			}

			if code := worker.ExitCode(w.Run(ctx)); code != worker.ExitOK {
				return cli.Exit("", code)
			}
			return nil
		},
	}
}

// workerSpec rebuilds the workload spec the launcher encoded as flags.
func workerSpec(cmd *cli.Command) (workload.Spec, error) {
	kind, err := workload.ParseKind(cmd.String("kind"))
	if err != nil {
		return workload.Spec{}, err
	}
	role, err := workload.ParseRole(cmd.String("role"))
	if err != nil {
		return workload.Spec{}, err
	}
	strategy, err := workload.StrategyFor(kind)
	if err != nil {
		return workload.Spec{}, err
	}
	if f := cmd.Float("memory-fraction"); f > 0 {
		strategy.MemoryFraction = f
	}

	spec := workload.Spec{
		Kind: kind,
		Role: role,
		Partition: partition.Partition{
			ID:       strings.TrimSpace(cmd.String("partition")),
			GPUIndex: cmd.Int("gpu"),
		},
		Instance:     cmd.Int("instance"),
		Duration:     cmd.Duration("duration"),
		Strategy:     strategy,
		ThermalLimit: cmd.Float("thermal-limit"),
	}
	if err := spec.Validate(); err != nil {
		return workload.Spec{}, err
	}
	return spec, nil
}

// telemetryReader returns the reader named by source for the parent GPU of
// the partition. Telemetry needs the GPU index; without it sampling is off.
func telemetryReader(source string, gpu int) (telemetry.Reader, error) {
	switch strings.ToLower(source) {
	case "", "none":
		return telemetry.Nop{}, nil
	case "smi", "nvml":
	default:
		return nil, fmt.Errorf("unknown telemetry source %q (use smi, nvml or none)", source)
	}
	if gpu < 0 {
		return nil, fmt.Errorf("GPU index of the partition is unknown")
	}
	if strings.EqualFold(source, "nvml") {
		return telemetry.NewNVMLReader(strconv.Itoa(gpu))
	}
	return telemetry.NewSMIReader(nil, strconv.Itoa(gpu)), nil
}
