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

package partition

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/NVIDIA/mig-stress/pkg/defaults"
	"github.com/NVIDIA/mig-stress/pkg/errors"
	"github.com/NVIDIA/mig-stress/pkg/smi"
)

var (
	// GPU 0: NVIDIA A100-SXM4-40GB (UUID: GPU-5c89852c-d268-c3f3-1b07-005d5ae1dc3f)
	gpuLineRegex = regexp.MustCompile(`^GPU\s+(\d+):\s+.*\(UUID:\s*(GPU-[^)\s]+)\)`)
	//   MIG 1g.5gb      Device  0: (UUID: MIG-c7384736-a75d-5afc-978f-d2f1294409fd)
	migLineRegex = regexp.MustCompile(`^\s*MIG\s+(\S+)\s+Device\s+(\d+):\s+\(UUID:\s*(MIG-[^)\s]+)\)`)
)

// SMIDiscoverer lists MIG partitions by parsing `nvidia-smi -L`.
type SMIDiscoverer struct {
	Runner smi.Runner
}

// NewSMIDiscoverer returns a discoverer backed by the given runner, or the
// exec runner when nil.
func NewSMIDiscoverer(r smi.Runner) *SMIDiscoverer {
	if r == nil {
		r = smi.Default()
	}
	return &SMIDiscoverer{Runner: r}
}

// Discover returns the MIG partitions in the order nvidia-smi lists them.
// A host without MIG partitions yields an empty list and no error; treating
// that as fatal is the caller's decision.
func (d *SMIDiscoverer) Discover(ctx context.Context) ([]Partition, error) {
	ctx, cancel := context.WithTimeout(ctx, defaults.DiscoveryTimeout)
	defer cancel()

	out, err := d.Runner.Run(ctx, smi.Command, "-L")
	if err != nil {
		return nil, errors.WrapWithContext(errors.ErrCodeDiscoveryFailed,
			"failed to list GPU partitions", err, map[string]any{"command": smi.Command + " -L"})
	}

	parts, err := ParseList(out)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDiscoveryFailed, "failed to parse partition list", err)
	}

	slog.Debug("discovered partitions", "count", len(parts))
	return parts, nil
}

// ParseList parses `nvidia-smi -L` output into partitions. MIG lines are
// attributed to the most recent GPU line above them.
func ParseList(out []byte) ([]Partition, error) {
	parts := make([]Partition, 0)
	gpuIndex := -1
	gpuUUID := ""

	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := sc.Text()
		if m := gpuLineRegex.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			idx, err := strconv.Atoi(m[1])
			if err != nil {
				return nil, fmt.Errorf("invalid GPU index in %q: %w", line, err)
			}
			gpuIndex = idx
			gpuUUID = m[2]
			continue
		}
		if m := migLineRegex.FindStringSubmatch(line); m != nil {
			devIdx, err := strconv.Atoi(m[2])
			if err != nil {
				return nil, fmt.Errorf("invalid MIG device index in %q: %w", line, err)
			}
			parts = append(parts, Partition{
				ID:       m[3],
				GPUIndex: gpuIndex,
				GPUUUID:  gpuUUID,
				Profile:  m[1],
				Index:    devIdx,
			})
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read partition list: %w", err)
	}
	return parts, nil
}

// Manager creates and destroys MIG partitions with nvidia-smi. It performs no
// retries; partition lifecycle semantics belong to the vendor tool.
type Manager struct {
	Runner smi.Runner
}

// NewManager returns a manager backed by the given runner, or the exec runner when nil.
func NewManager(r smi.Runner) *Manager {
	if r == nil {
		r = smi.Default()
	}
	return &Manager{Runner: r}
}

// Setup enables MIG mode on every GPU of the layout, removes existing
// instances and creates one GPU instance (with its default compute instance)
// per profile. All GPUs are attempted; the first error is returned.
func (m *Manager) Setup(ctx context.Context, layout Layout) error {
	if err := layout.Validate(); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidRequest, "invalid partition layout", err)
	}

	ctx, cancel := context.WithTimeout(ctx, defaults.SetupTimeout)
	defer cancel()

	var firstErr error
	for _, gpu := range layout.GPUs {
		if err := m.setupGPU(ctx, gpu, layout.Profiles); err != nil {
			slog.Error("partition setup failed", "gpu", gpu, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (m *Manager) setupGPU(ctx context.Context, gpu int, profiles []string) error {
	idx := strconv.Itoa(gpu)

	slog.Info("enabling MIG mode", "gpu", gpu)
	if _, err := m.Runner.Run(ctx, smi.Command, "-i", idx, "-mig", "1"); err != nil {
		return fmt.Errorf("failed to enable MIG mode on GPU %d: %w", gpu, err)
	}

	m.destroyInstances(ctx, gpu)

	slog.Info("creating partitions", "gpu", gpu, "profiles", strings.Join(profiles, ","))
	if _, err := m.Runner.Run(ctx, smi.Command, "mig", "-i", idx, "-cgi", strings.Join(profiles, ","), "-C"); err != nil {
		return fmt.Errorf("failed to create partitions on GPU %d: %w", gpu, err)
	}
	return nil
}

// destroyInstances removes compute and GPU instances. Errors are expected
// when the GPU has none, so they are only logged.
func (m *Manager) destroyInstances(ctx context.Context, gpu int) {
	idx := strconv.Itoa(gpu)
	if _, err := m.Runner.Run(ctx, smi.Command, "mig", "-i", idx, "-dci"); err != nil {
		slog.Debug("no compute instances removed", "gpu", gpu, "error", err)
	}
	if _, err := m.Runner.Run(ctx, smi.Command, "mig", "-i", idx, "-dgi"); err != nil {
		slog.Debug("no GPU instances removed", "gpu", gpu, "error", err)
	}
}

// Teardown destroys every partition on the given GPUs and, when disable is
// set, turns MIG mode off.
func (m *Manager) Teardown(ctx context.Context, gpus []int, disable bool) error {
	ctx, cancel := context.WithTimeout(ctx, defaults.SetupTimeout)
	defer cancel()

	for _, gpu := range gpus {
		m.destroyInstances(ctx, gpu)
		if !disable {
			continue
		}
		if _, err := m.Runner.Run(ctx, smi.Command, "-i", strconv.Itoa(gpu), "-mig", "0"); err != nil {
			return fmt.Errorf("failed to disable MIG mode on GPU %d: %w", gpu, err)
		}
	}
	return nil
}
