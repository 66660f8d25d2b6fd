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

// Package config loads suite files. A suite file names the workload kinds of
// a run and the settings shared by every round; command line flags override
// it. YAML (.yaml, .yml) and TOML (.toml) are accepted, and unknown keys are
// rejected in both.
//
//	kinds: [standard, intense, thrashing]
//	duration: 2m
//	cooldown: 30s
//	setup:
//	  gpus: [0]
//	  profiles: [1g.10gb, 1g.10gb, 2g.20gb]
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/NVIDIA/mig-stress/pkg/device"
	"github.com/NVIDIA/mig-stress/pkg/partition"
	"github.com/NVIDIA/mig-stress/pkg/workload"
)

// Suite is the content of a suite file. Zero values mean "use the default".
type Suite struct {
	Kinds []string `yaml:"kinds" toml:"kinds"`

	// Partitions, when set, replaces discovery with a fixed identifier list.
	Partitions []string `yaml:"partitions,omitempty" toml:"partitions"`

	Duration time.Duration `yaml:"duration,omitempty" toml:"duration"`
	Cooldown time.Duration `yaml:"cooldown,omitempty" toml:"cooldown"`
	Warmup   time.Duration `yaml:"warmup,omitempty" toml:"warmup"`

	MemoryFraction    float64 `yaml:"memoryFraction,omitempty" toml:"memory_fraction"`
	ProcsPerPartition int     `yaml:"procsPerPartition,omitempty" toml:"procs_per_partition"`
	ThermalLimit      float64 `yaml:"thermalLimit,omitempty" toml:"thermal_limit"`

	Backend    string `yaml:"backend,omitempty" toml:"backend"`
	HostMemory uint64 `yaml:"hostMemory,omitempty" toml:"host_memory"`
	Telemetry  string `yaml:"telemetry,omitempty" toml:"telemetry"`
	KernelLog  string `yaml:"kernelLog,omitempty" toml:"kernel_log"`

	RuntimeCheck []string `yaml:"runtimeCheck,omitempty" toml:"runtime_check"`

	Setup       *partition.Layout `yaml:"setup,omitempty" toml:"setup"`
	StrictSetup bool              `yaml:"strictSetup,omitempty" toml:"strict_setup"`

	LogDir string `yaml:"logDir,omitempty" toml:"log_dir"`
	Output string `yaml:"output,omitempty" toml:"output"`
	Format string `yaml:"format,omitempty" toml:"format"`
}

// Load reads and validates the suite file at path.
func Load(path string) (*Suite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("suite file path is empty")
	}

	var s Suite
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read suite file %s: %w", path, err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&s); err != nil {
			return nil, fmt.Errorf("failed to decode suite file %s: %w", path, err)
		}
	case ".toml":
		meta, err := toml.DecodeFile(path, &s)
		if err != nil {
			return nil, fmt.Errorf("failed to decode suite file %s: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("unknown keys in suite file %s: %v", path, undecoded)
		}
	default:
		return nil, fmt.Errorf("unsupported suite file extension %q (use .yaml, .yml or .toml)", ext)
	}

	s.normalize()
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid suite file %s: %w", path, err)
	}
	return &s, nil
}

func (s *Suite) normalize() {
	s.Kinds = trimAll(s.Kinds)
	s.Partitions = trimAll(s.Partitions)
	s.Backend = strings.ToLower(strings.TrimSpace(s.Backend))
	s.Format = strings.ToLower(strings.TrimSpace(s.Format))
}

func trimAll(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Validate checks the values that are set.
func (s *Suite) Validate() error {
	if len(s.Kinds) > 0 {
		if _, err := workload.ParseKinds(s.Kinds); err != nil {
			return err
		}
	}
	if s.Duration < 0 || s.Cooldown < 0 || s.Warmup < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	if s.MemoryFraction < 0 || s.MemoryFraction > 1 {
		return fmt.Errorf("memory fraction must be in [0, 1], got %g", s.MemoryFraction)
	}
	if s.ProcsPerPartition < 0 {
		return fmt.Errorf("procs per partition must not be negative")
	}
	if s.ThermalLimit < 0 {
		return fmt.Errorf("thermal limit must not be negative")
	}
	if s.Backend != "" {
		if _, err := device.ParseBackend(s.Backend); err != nil {
			return err
		}
	}
	if s.Setup != nil {
		if err := s.Setup.Validate(); err != nil {
			return fmt.Errorf("setup: %w", err)
		}
	}
	return nil
}

// WorkloadKinds returns the parsed kinds, expanding "all".
func (s *Suite) WorkloadKinds() ([]workload.Kind, error) {
	return workload.ParseKinds(s.Kinds)
}

// WorkloadOptions returns the per-worker settings of the suite.
func (s *Suite) WorkloadOptions() workload.Options {
	return workload.Options{
		Duration:          s.Duration,
		MemoryFraction:    s.MemoryFraction,
		ProcsPerPartition: s.ProcsPerPartition,
		ThermalLimit:      s.ThermalLimit,
	}
}
