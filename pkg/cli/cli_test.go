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
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"github.com/NVIDIA/mig-stress/pkg/config"
	"github.com/NVIDIA/mig-stress/pkg/header"
	"github.com/NVIDIA/mig-stress/pkg/partition"
	"github.com/NVIDIA/mig-stress/pkg/report"
	"github.com/NVIDIA/mig-stress/pkg/serializer"
	"github.com/NVIDIA/mig-stress/pkg/telemetry"
	"github.com/NVIDIA/mig-stress/pkg/workload"
)

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		format     string
		wantFormat serializer.Format
		wantErr    bool
	}{
		{format: "yaml", wantFormat: serializer.FormatYAML},
		{format: "JSON", wantFormat: serializer.FormatJSON},
		{format: "table", wantFormat: serializer.FormatTable},
		{format: "xml", wantErr: true},
		{format: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			cmd := &cli.Command{
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "format", Value: tt.format},
				},
				Action: func(_ context.Context, c *cli.Command) error {
					got, err := parseOutputFormat(c)
					if tt.wantErr {
						assert.Error(t, err)
						return nil
					}
					require.NoError(t, err)
					assert.Equal(t, tt.wantFormat, got)
					return nil
				},
			}
			require.NoError(t, cmd.Run(context.Background(), []string{"test"}))
		})
	}
}

// suiteFor runs a command with the run flags and returns the parsed suite.
func suiteFor(t *testing.T, args ...string) (*config.Suite, error) {
	t.Helper()
	var (
		got    *config.Suite
		gotErr error
	)
	cmd := &cli.Command{
		Name:  "test",
		Flags: runFlags(),
		Action: func(_ context.Context, c *cli.Command) error {
			got, gotErr = suiteFromCommand(c)
			return nil
		},
	}
	require.NoError(t, cmd.Run(context.Background(), append([]string{"test"}, args...)))
	return got, gotErr
}

func TestSuiteFromFlags(t *testing.T) {
	s, err := suiteFor(t,
		"--duration", "5s",
		"--partitions", "MIG-a,MIG-b",
		"--runtime-check", "python3 -c 'import torch'",
		"--setup-gpu", "0",
		"--setup-profile", "1g.10gb,1g.10gb",
		"--thermal-limit", "85",
	)
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, s.Duration)
	assert.Equal(t, 30*time.Second, s.Cooldown)
	assert.Equal(t, []string{"MIG-a", "MIG-b"}, s.Partitions)
	assert.Equal(t, []string{"sh", "-c", "python3 -c 'import torch'"}, s.RuntimeCheck)
	assert.Equal(t, &partition.Layout{GPUs: []int{0}, Profiles: []string{"1g.10gb", "1g.10gb"}}, s.Setup)
	assert.InDelta(t, 85.0, s.ThermalLimit, 0.001)
	assert.Equal(t, "host", s.Backend)
	assert.Equal(t, "dmesg", s.KernelLog)
	assert.Equal(t, defaultLogDir, s.LogDir)
	assert.Equal(t, "table", s.Format)
}

func TestSuiteFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "suite.yaml")
	require.NoError(t, os.WriteFile(path, []byte("kinds: [standard, pcie]\nduration: 2m\ncooldown: 10s\nbackend: host\n"), 0o600))

	s, err := suiteFor(t, "--config", path, "--duration", "30s")
	require.NoError(t, err)

	assert.Equal(t, []string{"standard", "pcie"}, s.Kinds)
	assert.Equal(t, 30*time.Second, s.Duration, "explicit flag wins")
	assert.Equal(t, 10*time.Second, s.Cooldown, "file value kept")
}

func TestSuiteInvalid(t *testing.T) {
	_, err := suiteFor(t, "--backend", "quantum")
	assert.Error(t, err)

	_, err = suiteFor(t, "--setup-gpu", "0", "--setup-profile", "huge")
	assert.Error(t, err)

	_, err = suiteFor(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestRunRequiresKind(t *testing.T) {
	err := runCmd().Run(context.Background(), []string{"run"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one workload kind")
}

func workerSpecFor(t *testing.T, args ...string) (workload.Spec, error) {
	t.Helper()
	var (
		spec   workload.Spec
		gotErr error
	)
	cmd := workerCmd()
	cmd.Action = func(_ context.Context, c *cli.Command) error {
		spec, gotErr = workerSpec(c)
		return nil
	}
	require.NoError(t, cmd.Run(context.Background(), append([]string{"worker"}, args...)))
	return spec, gotErr
}

func TestWorkerSpec(t *testing.T) {
	spec, err := workerSpecFor(t,
		"--kind", "intense",
		"--role", "secondary",
		"--partition", "MIG-x",
		"--instance", "1",
		"--gpu", "0",
		"--duration", "3s",
		"--memory-fraction", "0.5",
	)
	require.NoError(t, err)

	assert.Equal(t, workload.KindIntense, spec.Kind)
	assert.Equal(t, workload.RoleSecondary, spec.Role)
	assert.Equal(t, "MIG-x", spec.Partition.ID)
	assert.Equal(t, 0, spec.Partition.GPUIndex)
	assert.Equal(t, 1, spec.Instance)
	assert.Equal(t, 3*time.Second, spec.Duration)
	assert.InDelta(t, 0.5, spec.Strategy.MemoryFraction, 0.001)
	assert.False(t, spec.Decisive())
}

func TestWorkerSpecDefaults(t *testing.T) {
	spec, err := workerSpecFor(t, "--kind", "standard", "--partition", "MIG-y")
	require.NoError(t, err)

	want, err := workload.StrategyFor(workload.KindStandard)
	require.NoError(t, err)
	assert.Equal(t, workload.RoleWorker, spec.Role)
	assert.Equal(t, -1, spec.Partition.GPUIndex)
	assert.InDelta(t, want.MemoryFraction, spec.Strategy.MemoryFraction, 0.001)
}

func TestWorkerSpecInvalid(t *testing.T) {
	_, err := workerSpecFor(t, "--kind", "nope", "--partition", "MIG-y")
	assert.Error(t, err)

	_, err = workerSpecFor(t, "--kind", "standard", "--partition", "MIG-y", "--role", "leader")
	assert.Error(t, err)

	_, err = workerSpecFor(t, "--kind", "standard", "--partition", "MIG-y", "--memory-fraction", "1.5")
	assert.Error(t, err)
}

func TestTelemetryReader(t *testing.T) {
	r, err := telemetryReader("none", 0)
	require.NoError(t, err)
	assert.Equal(t, telemetry.Nop{}, r)

	r, err = telemetryReader("smi", 2)
	require.NoError(t, err)
	smiReader, ok := r.(*telemetry.SMIReader)
	require.True(t, ok)
	assert.Equal(t, "2", smiReader.GPU)

	_, err = telemetryReader("smi", -1)
	assert.Error(t, err)

	_, err = telemetryReader("ipmi", 0)
	assert.Error(t, err)
}

func TestNewDiscoverer(t *testing.T) {
	d, err := newDiscoverer([]string{"MIG-a"}, "smi")
	require.NoError(t, err)
	parts, err := d.Discover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"MIG-a"}, partition.IDs(parts))

	d, err = newDiscoverer(nil, "")
	require.NoError(t, err)
	assert.IsType(t, &partition.SMIDiscoverer{}, d)

	_, err = newDiscoverer(nil, "lspci")
	assert.Error(t, err)
}

func TestPartitionListTable(t *testing.T) {
	var buf bytes.Buffer
	l := newPartitionList([]partition.Partition{
		{ID: "MIG-a", GPUIndex: 0, Profile: "1g.10gb", Index: 0},
		{ID: "MIG-b", GPUIndex: -1, Index: 1},
	})
	assert.Equal(t, header.KindPartitionList, l.Kind)
	require.NoError(t, l.WriteTable(&buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "PROFILE")
	assert.Contains(t, lines[1], "1g.10gb")
	assert.True(t, strings.HasPrefix(lines[2], "-"))
}

func TestWriteReport(t *testing.T) {
	rep := report.NewReport("run-1", "v1", time.Now())
	rep.Add(report.SkippedRound(workload.KindStandard, "no partitions"))
	rep.Finish(time.Now())

	out := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, writeReport(context.Background(), rep, nil, serializer.FormatJSON, out))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var got report.Report
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "run-1", got.RunID)
	assert.Len(t, got.Rounds, 1)
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	root := newRootCmd()
	root.Writer = &buf

	require.NoError(t, root.Run(context.Background(), []string{name, "version"}))
	assert.Contains(t, buf.String(), name+" "+version)
}
