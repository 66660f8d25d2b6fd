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
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/NVIDIA/mig-stress/pkg/collector"
	"github.com/NVIDIA/mig-stress/pkg/collector/kernel"
	"github.com/NVIDIA/mig-stress/pkg/config"
	"github.com/NVIDIA/mig-stress/pkg/device"
	"github.com/NVIDIA/mig-stress/pkg/launcher"
	"github.com/NVIDIA/mig-stress/pkg/oci"
	"github.com/NVIDIA/mig-stress/pkg/partition"
	"github.com/NVIDIA/mig-stress/pkg/preflight"
	"github.com/NVIDIA/mig-stress/pkg/report"
	"github.com/NVIDIA/mig-stress/pkg/runlog"
	"github.com/NVIDIA/mig-stress/pkg/sequencer"
	"github.com/NVIDIA/mig-stress/pkg/serializer"
	"github.com/NVIDIA/mig-stress/pkg/server"
	"github.com/NVIDIA/mig-stress/pkg/workload"
)

func runCmd() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Run a single workload kind on every partition",
		ArgsUsage: "<kind>",
		Description: fmt.Sprintf(`Run one round of the given workload kind and report the result.

Kinds: %s

# Examples

  migstress run standard --duration 2m
  migstress run intense --partitions MIG-1234,MIG-5678 --format json`, strings.Join(workload.KindNames(), ", ")),
		Flags: runFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return fmt.Errorf("expected exactly one workload kind, got %d arguments", cmd.Args().Len())
			}
			s, err := suiteFromCommand(cmd)
			if err != nil {
				return err
			}
			s.Kinds = []string{cmd.Args().First()}
			return executeSuite(ctx, cmd, s)
		},
	}
}

func suiteCmd() *cli.Command {
	flags := append(runFlags(), &cli.StringSliceFlag{
		Name:    "kinds",
		Usage:   "workload kinds to run in order, or all",
		Sources: cli.EnvVars("MIGSTRESS_KINDS"),
	})

	return &cli.Command{
		Name:  "suite",
		Usage: "Run a sequence of workload kinds, one round each",
		Description: `Run every requested kind in order with a cooldown between rounds. Every
kind gets exactly one entry in the report, whether it passed, failed or was
skipped. The command exits 1 if any kind failed.

# Examples

  migstress suite
  migstress suite --kinds standard,thrashing,pcie --cooldown 1m
  migstress suite --config suite.yaml --output cm://gpu-operator/migstress-report
  migstress suite --status-addr :9400 --push-logs oci://registry.local/migstress-logs`,
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			s, err := suiteFromCommand(cmd)
			if err != nil {
				return err
			}
			if cmd.IsSet("kinds") || len(s.Kinds) == 0 {
				s.Kinds = cmd.StringSlice("kinds")
			}
			if len(s.Kinds) == 0 {
				s.Kinds = []string{"all"}
			}
			return executeSuite(ctx, cmd, s)
		},
	}
}

// executeSuite runs s, writes the report and returns an exit error when any
// kind failed.
func executeSuite(ctx context.Context, cmd *cli.Command, s *config.Suite) error {
	format := serializer.Format(strings.ToLower(s.Format))
	if format.IsUnknown() {
		return fmt.Errorf("unknown output format %q", s.Format)
	}
	kinds, err := s.WorkloadKinds()
	if err != nil {
		return err
	}
	backend, err := device.ParseBackend(s.Backend)
	if err != nil {
		return err
	}
	source, err := kernel.Open(s.KernelLog)
	if err != nil {
		return err
	}
	discoverer, err := newDiscoverer(s.Partitions, cmd.String("discovery"))
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	layout, err := runlog.NewLayout(s.LogDir, runID, time.Now())
	if err != nil {
		return err
	}

	builder := launcher.SelfExec{
		Backend:    backend,
		HostMemory: s.HostMemory,
		Telemetry:  s.Telemetry,
		LogLevel:   cmd.String("log-level"),
	}

	seq, err := sequencer.New(builder, discoverer, sequencer.Config{
		RunID:        runID,
		Version:      version,
		Kinds:        kinds,
		Workload:     s.WorkloadOptions(),
		Cooldown:     s.Cooldown,
		Warmup:       s.Warmup,
		Setup:        s.Setup,
		StrictSetup:  s.StrictSetup,
		Backend:      backend,
		RuntimeCheck: s.RuntimeCheck,
		PIDFile:      cmd.String("pid-file"),
	},
		sequencer.WithCollector(collector.New(collector.WithScanner(kernel.NewScanner(source)))),
		sequencer.WithLayout(layout),
		sequencer.WithPreflight(preflight.NewChecker(nil)),
	)
	if err != nil {
		return err
	}

	rep, err := runWithStatusServer(ctx, seq, cmd.String("status-addr"))
	if err != nil {
		return err
	}

	if err := writeReport(ctx, rep, layout, format, s.Output); err != nil {
		return err
	}
	if path := cmd.String("metrics-textfile"); path != "" {
		if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
			slog.Warn("failed to write metrics textfile", "path", path, "error", err)
		}
	}
	if target := cmd.String("push-logs"); target != "" {
		if err := pushLogs(ctx, cmd, target, layout, runID); err != nil {
			slog.Error("failed to push run logs", "target", target, "error", err)
		}
	}

	if code := rep.ExitCode(); code != 0 {
		return cli.Exit(fmt.Sprintf("failed kinds: %s", joinKinds(rep.FailedKinds())), code)
	}
	return nil
}

// runWithStatusServer runs seq, serving its status on addr when set.
func runWithStatusServer(ctx context.Context, seq *sequencer.Sequencer, addr string) (*report.Report, error) {
	if addr == "" {
		return seq.Run(ctx)
	}

	srvCtx, stop := context.WithCancel(ctx)
	defer stop()

	srv := server.New(server.NewConfig(addr), server.WithStatus(seq), server.WithVersion(version))
	g, gctx := errgroup.WithContext(srvCtx)
	g.Go(func() error {
		return srv.Serve(gctx)
	})

	rep, err := seq.Run(ctx)
	stop()
	if srvErr := g.Wait(); srvErr != nil {
		slog.Warn("status server failed", "error", srvErr)
	}
	return rep, err
}

func newDiscoverer(ids []string, method string) (partition.Discoverer, error) {
	if len(ids) > 0 {
		return partition.Static(ids), nil
	}
	switch strings.ToLower(method) {
	case "", "smi":
		return partition.NewSMIDiscoverer(nil), nil
	case "nvml":
		return partition.NewNVMLDiscoverer()
	default:
		return nil, fmt.Errorf("unknown discovery method %q (use smi or nvml)", method)
	}
}

// writeReport stores the report as JSON in the run directory and writes it
// to output in format.
func writeReport(ctx context.Context, rep *report.Report, layout *runlog.Layout, format serializer.Format, output string) error {
	if layout != nil {
		data, err := serializer.Marshal(serializer.FormatJSON, rep)
		if err != nil {
			return err
		}
		if err := serializer.WriteToFile(layout.ReportPath(serializer.FormatJSON.Extension()), data); err != nil {
			slog.Warn("failed to save report in run directory", "error", err)
		}
	}

	out := serializer.NewFileWriterOrStdout(format, output)
	if c, ok := out.(serializer.Closer); ok {
		defer func() {
			if err := c.Close(); err != nil {
				slog.Warn("failed to close report output", "error", err)
			}
		}()
	}
	if err := out.Serialize(ctx, rep); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func pushLogs(ctx context.Context, cmd *cli.Command, target string, layout *runlog.Layout, runID string) error {
	ref, err := oci.ParseReference(target)
	if err != nil {
		return err
	}
	res, err := oci.Push(ctx, oci.PushOptions{
		SourceDir:   layout.Dir,
		Reference:   ref.WithTag(runID),
		RunID:       runID,
		Version:     version,
		PlainHTTP:   cmd.Bool("plain-http"),
		InsecureTLS: cmd.Bool("insecure-tls"),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.Root().ErrWriter, "logs pushed to %s@%s\n", res.Reference, res.Digest)
	return nil
}

func joinKinds(kinds []workload.Kind) string {
	names := make([]string, 0, len(kinds))
	for _, k := range kinds {
		names = append(names, string(k))
	}
	return strings.Join(names, ",")
}
