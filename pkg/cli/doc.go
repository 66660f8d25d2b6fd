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

// Package cli implements the migstress command line.
//
// # Commands
//
//	migstress run <kind>        one round of a single workload kind
//	migstress suite             every requested kind in order (default: all)
//	migstress partitions list   MIG partitions visible on the host
//	migstress partitions setup  enable MIG and create partitions from profiles
//	migstress partitions teardown
//	migstress report show       print a saved report
//	migstress version
//
// The hidden worker command is what the launcher re-executes, once per
// worker process; its exit status is the worker outcome.
//
// # Configuration
//
// Run settings come from flags, MIGSTRESS_* environment variables and an
// optional suite file (--config, YAML or TOML). Flags that are given
// explicitly override the file.
//
// # Outputs
//
// The report is always saved as report.json in the run directory and is
// additionally written to --output (file, cm://namespace/name or stdout) in
// --format (table, json, yaml). --metrics-textfile writes the run metrics for
// the node-exporter textfile collector and --push-logs uploads the run
// directory to an OCI registry.
//
// # Exit codes
//
//	0  every kind passed
//	1  at least one kind failed or was skipped, or the command failed
//
// Version information is set at build time:
//
//	go build -ldflags="-X 'github.com/NVIDIA/mig-stress/pkg/cli.version=1.0.0'"
package cli
