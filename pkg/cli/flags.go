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
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/NVIDIA/mig-stress/pkg/config"
	"github.com/NVIDIA/mig-stress/pkg/defaults"
	"github.com/NVIDIA/mig-stress/pkg/serializer"
)

const defaultLogDir = "/var/log/migstress"

func outputFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "report destination: file path, cm://namespace/name, or stdout when empty",
		Sources: cli.EnvVars("MIGSTRESS_OUTPUT"),
	}
}

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"t"},
		Usage:   fmt.Sprintf("output format (%s)", strings.Join(serializer.SupportedFormats(), ", ")),
		Value:   string(serializer.FormatTable),
		Sources: cli.EnvVars("MIGSTRESS_FORMAT"),
	}
}

func kubeconfigFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "kubeconfig",
		Aliases: []string{"k"},
		Usage:   "path to kubeconfig, used for cm:// outputs and inputs",
		Sources: cli.EnvVars("KUBECONFIG"),
	}
}

// runFlags are shared by the run and suite commands.
func runFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "suite file (.yaml, .yml or .toml); flags override its values",
			Sources: cli.EnvVars("MIGSTRESS_CONFIG"),
		},
		&cli.DurationFlag{
			Name:    "duration",
			Aliases: []string{"d"},
			Usage:   "stress duration of every worker",
			Value:   defaults.WorkerDuration,
			Sources: cli.EnvVars("MIGSTRESS_DURATION"),
		},
		&cli.DurationFlag{
			Name:    "cooldown",
			Usage:   "pause between rounds",
			Value:   defaults.SuiteCooldown,
			Sources: cli.EnvVars("MIGSTRESS_COOLDOWN"),
		},
		&cli.DurationFlag{
			Name:  "warmup",
			Usage: "how long secondaries run before the primary of a staged round",
			Value: defaults.SecondaryWarmup,
		},
		&cli.FloatFlag{
			Name:  "memory-fraction",
			Usage: "override the fraction of partition memory each worker allocates (0 keeps the kind default)",
		},
		&cli.IntFlag{
			Name:  "procs",
			Usage: "workers per partition for the multiproc kind (0 keeps the default)",
		},
		&cli.FloatFlag{
			Name:  "thermal-limit",
			Usage: "temperature in Celsius above which thermal workers pause compute (0 disables)",
		},
		&cli.StringFlag{
			Name:    "backend",
			Usage:   "device backend (host, cuda)",
			Value:   "host",
			Sources: cli.EnvVars("MIGSTRESS_BACKEND"),
		},
		&cli.Uint64Flag{
			Name:  "host-memory",
			Usage: "capacity in bytes of the host backend",
		},
		&cli.StringFlag{
			Name:  "telemetry",
			Usage: "worker telemetry source (smi, nvml, none)",
			Value: "smi",
		},
		&cli.StringFlag{
			Name:    "kernel-log",
			Usage:   "kernel log source scanned for GPU faults (dmesg, journal, none, file:<path>)",
			Value:   "dmesg",
			Sources: cli.EnvVars("MIGSTRESS_KERNEL_LOG"),
		},
		&cli.StringFlag{
			Name:    "runtime-check",
			Usage:   "shell command that must succeed before the first round, e.g. \"python3 -c 'import torch'\"",
			Sources: cli.EnvVars("MIGSTRESS_RUNTIME_CHECK"),
		},
		&cli.StringSliceFlag{
			Name:    "partitions",
			Aliases: []string{"p"},
			Usage:   "fixed partition identifiers instead of discovery",
			Sources: cli.EnvVars("MIGSTRESS_PARTITIONS"),
		},
		&cli.StringFlag{
			Name:  "discovery",
			Usage: "partition discovery method (smi, nvml)",
			Value: "smi",
		},
		&cli.IntSliceFlag{
			Name:  "setup-gpu",
			Usage: "GPU index to partition before the run (repeatable)",
		},
		&cli.StringSliceFlag{
			Name:  "setup-profile",
			Usage: "MIG profile created on every setup GPU (repeatable)",
		},
		&cli.BoolFlag{
			Name:  "strict-setup",
			Usage: "skip every round when partition setup fails",
		},
		&cli.StringFlag{
			Name:    "log-dir",
			Usage:   "root directory of run logs",
			Value:   defaultLogDir,
			Sources: cli.EnvVars("MIGSTRESS_LOG_DIR"),
		},
		&cli.StringFlag{
			Name:  "pid-file",
			Usage: "write the harness PID to this file while running",
		},
		&cli.StringFlag{
			Name:    "status-addr",
			Usage:   "serve /health, /ready, /metrics and /v1/status on this address while running",
			Sources: cli.EnvVars("MIGSTRESS_STATUS_ADDR"),
		},
		&cli.StringFlag{
			Name:  "metrics-textfile",
			Usage: "write Prometheus metrics to this file at the end of the run (node-exporter textfile format)",
		},
		&cli.StringFlag{
			Name:    "push-logs",
			Usage:   "push the run log directory to oci://registry/repository[:tag]; the tag defaults to the run ID",
			Sources: cli.EnvVars("MIGSTRESS_PUSH_LOGS"),
		},
		&cli.BoolFlag{
			Name:  "plain-http",
			Usage: "use HTTP for --push-logs",
		},
		&cli.BoolFlag{
			Name:  "insecure-tls",
			Usage: "skip TLS verification for --push-logs",
		},
		outputFlag(),
		formatFlag(),
		kubeconfigFlag(),
	}
}

func parseOutputFormat(cmd *cli.Command) (serializer.Format, error) {
	f := serializer.Format(strings.ToLower(cmd.String("format")))
	if f.IsUnknown() {
		return "", fmt.Errorf("unknown output format %q (use %s)", f, strings.Join(serializer.SupportedFormats(), ", "))
	}
	return f, nil
}

// override sets *dst from the flag when the flag was given or *dst is unset.
func override[T comparable](cmd *cli.Command, flag string, dst *T, get func(string) T) {
	var zero T
	if cmd.IsSet(flag) || *dst == zero {
		*dst = get(flag)
	}
}

func overrideSlice[T any](cmd *cli.Command, flag string, dst *[]T, get func(string) []T) {
	if cmd.IsSet(flag) || len(*dst) == 0 {
		*dst = get(flag)
	}
}

// suiteFromCommand loads the suite file, if any, and applies the flags on top.
func suiteFromCommand(cmd *cli.Command) (*config.Suite, error) {
	s := &config.Suite{}
	if path := cmd.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		s = loaded
	}

	override(cmd, "duration", &s.Duration, cmd.Duration)
	override(cmd, "cooldown", &s.Cooldown, cmd.Duration)
	override(cmd, "warmup", &s.Warmup, cmd.Duration)
	override(cmd, "memory-fraction", &s.MemoryFraction, cmd.Float)
	override(cmd, "procs", &s.ProcsPerPartition, cmd.Int)
	override(cmd, "thermal-limit", &s.ThermalLimit, cmd.Float)
	override(cmd, "backend", &s.Backend, cmd.String)
	override(cmd, "host-memory", &s.HostMemory, cmd.Uint64)
	override(cmd, "telemetry", &s.Telemetry, cmd.String)
	override(cmd, "kernel-log", &s.KernelLog, cmd.String)
	override(cmd, "log-dir", &s.LogDir, cmd.String)
	override(cmd, "output", &s.Output, cmd.String)
	override(cmd, "format", &s.Format, cmd.String)
	if check := cmd.String("runtime-check"); check != "" {
		s.RuntimeCheck = []string{"sh", "-c", check}
	}
	overrideSlice(cmd, "partitions", &s.Partitions, cmd.StringSlice)

	if cmd.IsSet("setup-gpu") || cmd.IsSet("setup-profile") {
		s.Setup = layoutFromFlags(cmd, "setup-gpu", "setup-profile")
	}
	if cmd.IsSet("strict-setup") {
		s.StrictSetup = cmd.Bool("strict-setup")
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}
