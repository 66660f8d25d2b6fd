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

package workload

import (
	"fmt"
	"time"

	"github.com/NVIDIA/mig-stress/pkg/defaults"
	"github.com/NVIDIA/mig-stress/pkg/partition"
)

// Spec is the immutable description of one worker. It is a value: Plan
// returns an independent copy per worker, slices included.
type Spec struct {
	Kind      Kind                `json:"kind" yaml:"kind"`
	Role      Role                `json:"role" yaml:"role"`
	Partition partition.Partition `json:"partition" yaml:"partition"`

	// Slot is the position of the partition in the planned round. Partition
	// indices repeat across GPUs; slots do not.
	Slot int `json:"slot" yaml:"slot"`

	// Instance distinguishes several workers on the same partition.
	Instance int `json:"instance" yaml:"instance"`

	Duration time.Duration `json:"duration" yaml:"duration"`
	Strategy Strategy      `json:"strategy" yaml:"strategy"`

	// ThermalLimit is the temperature in Celsius above which thermal workers
	// pause compute. Zero disables the limit.
	ThermalLimit float64 `json:"thermalLimit,omitempty" yaml:"thermalLimit,omitempty"`
}

// Name is a filesystem-safe label unique within a round.
func (s Spec) Name() string {
	return fmt.Sprintf("%s-%s-p%d-%d", s.Kind, s.Role, s.Slot, s.Instance)
}

// Decisive reports whether the outcome of this worker determines round success.
func (s Spec) Decisive() bool {
	return s.Role != RoleSecondary
}

// Validate checks the worker input constraints.
func (s Spec) Validate() error {
	if !s.Kind.IsValid() {
		return fmt.Errorf("invalid workload kind %q", s.Kind)
	}
	if s.Partition.ID == "" {
		return fmt.Errorf("partition identifier is required")
	}
	if s.Duration <= 0 {
		return fmt.Errorf("duration must be positive, got %s", s.Duration)
	}
	if f := s.Strategy.MemoryFraction; f <= 0 || f > 1 {
		return fmt.Errorf("memory fraction must be in (0, 1], got %g", f)
	}
	if len(s.Strategy.ChunkSizes) == 0 {
		return fmt.Errorf("at least one chunk size is required")
	}
	for _, c := range s.Strategy.ChunkSizes {
		if c == 0 {
			return fmt.Errorf("chunk size must be positive")
		}
	}
	if s.ThermalLimit < 0 {
		return fmt.Errorf("thermal limit must not be negative, got %g", s.ThermalLimit)
	}
	return nil
}

// Options override strategy defaults when planning a round.
type Options struct {
	// Duration of every worker; defaults.WorkerDuration when zero.
	Duration time.Duration

	// MemoryFraction overrides the strategy's (primary) fraction when non-zero.
	MemoryFraction float64

	// ProcsPerPartition overrides the strategy's worker count when non-zero.
	ProcsPerPartition int

	// ThermalLimit is copied into every spec.
	ThermalLimit float64

	// Warmup is the delay before the primary of a staged round starts;
	// defaults.SecondaryWarmup when zero. Secondaries run for Duration plus
	// Warmup plus defaults.SecondaryOverrun so the primary finishes first.
	Warmup time.Duration
}

// Plan builds the worker specs of one round of kind k over parts. Staged
// kinds make the first partition the primary and the rest secondaries. The
// returned specs are validated.
func Plan(k Kind, parts []partition.Partition, opts Options) ([]Spec, error) {
	strategy, err := StrategyFor(k)
	if err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("no partitions to plan %s round on", k)
	}

	duration := opts.Duration
	if duration == 0 {
		duration = defaults.WorkerDuration
	}
	if opts.MemoryFraction != 0 {
		strategy.MemoryFraction = opts.MemoryFraction
	}
	if opts.ProcsPerPartition != 0 {
		strategy.ProcsPerPartition = opts.ProcsPerPartition
	}
	procs := strategy.ProcsPerPartition
	if procs < 1 {
		procs = 1
	}
	warmup := opts.Warmup
	if warmup <= 0 {
		warmup = defaults.SecondaryWarmup
	}

	specs := make([]Spec, 0, len(parts)*procs)
	for i, p := range parts {
		role := RoleWorker
		st := strategy
		d := duration
		if strategy.Staged {
			role = RolePrimary
			if i > 0 {
				role = RoleSecondary
				st.MemoryFraction = strategy.SecondaryFraction
				d = duration + warmup + defaults.SecondaryOverrun
			}
		}
		for n := 0; n < procs; n++ {
			st.ChunkSizes = append([]uint64(nil), strategy.ChunkSizes...)
			s := Spec{
				Kind:         k,
				Role:         role,
				Partition:    p,
				Slot:         i,
				Instance:     n,
				Duration:     d,
				Strategy:     st,
				ThermalLimit: opts.ThermalLimit,
			}
			if err := s.Validate(); err != nil {
				return nil, fmt.Errorf("invalid %s spec for partition %s: %w", k, p.ID, err)
			}
			specs = append(specs, s)
		}
	}
	return specs, nil
}

// Split separates a planned round into its primary and secondaries. primary
// is nil for flat rounds, in which case all specs are returned as others.
func Split(specs []Spec) (primary *Spec, others []Spec) {
	for i := range specs {
		if specs[i].Role == RolePrimary && primary == nil {
			p := specs[i]
			primary = &p
			continue
		}
		others = append(others, specs[i])
	}
	return primary, others
}
