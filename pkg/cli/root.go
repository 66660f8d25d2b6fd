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
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/NVIDIA/mig-stress/pkg/logging"
)

const (
	name           = "migstress"
	versionDefault = "dev"
)

var (
	// overridden during build with ldflags
	version = versionDefault
	commit  = "unknown"
	date    = "unknown"
)

// Execute runs the command line and exits with the command's status.
// SIGINT and SIGTERM cancel the context handed to every command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1) //nolint:gocritic // stop already called
	}
}

func newRootCmd() *cli.Command {
	return &cli.Command{
		Name:                  name,
		Usage:                 "stress MIG GPU partitions and report per-workload results",
		Version:               fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		EnableShellCompletion: true,
		Description: `migstress runs a sequence of stress workloads, one round per workload
kind, against every MIG partition of the host. Each round starts one worker
process per partition (several for multiproc), collects their outcomes, scans
the kernel log for GPU faults and records a pass or fail result. The run ends
with a report and exits 1 if any kind failed.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("MIGSTRESS_LOG_LEVEL", logging.EnvVarLogLevel),
			},
		},
		Before: initLogger,
		Commands: []*cli.Command{
			runCmd(),
			suiteCmd(),
			partitionsCmd(),
			reportCmd(),
			versionCmd(),
			workerCmd(),
		},
	}
}

// initLogger installs the JSON logger before any command runs. The worker
// command replaces it with a text logger of its own.
func initLogger(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	logging.SetDefaultStructuredLoggerWithLevel(name, version, cmd.String("log-level"))
	slog.Debug("starting",
		"name", name,
		"version", version,
		"commit", commit,
		"date", date)
	return ctx, nil
}

func versionCmd() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print version information",
		Action: func(_ context.Context, cmd *cli.Command) error {
			_, err := fmt.Fprintf(cmd.Root().Writer, "%s %s\ncommit: %s\nbuilt:  %s\n", name, version, commit, date)
			return err
		},
	}
}
