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

import "fmt"

// AllocPattern selects how a worker fills partition memory.
type AllocPattern string

const (
	// AllocChunked allocates fixed-size chunks until the target is reached.
	AllocChunked AllocPattern = "chunked"
	// AllocMixed rotates through several chunk sizes.
	AllocMixed AllocPattern = "mixed"
)

// OperatePattern selects what a worker does with its buffers each tick.
type OperatePattern string

const (
	// OperateNone only holds the memory.
	OperateNone OperatePattern = "none"
	// OperateCompute runs one compute pass over every buffer.
	OperateCompute OperatePattern = "compute"
	// OperateMultiPass runs several compute passes per tick.
	OperateMultiPass OperatePattern = "multipass"
	// OperateTransfer round-trips buffers between host and device.
	OperateTransfer OperatePattern = "transfer"
	// OperateThermal alternates heat and cool phases, watching temperature.
	OperateThermal OperatePattern = "thermal"
)

const mib = uint64(1) << 20

// Strategy is the parameter set a worker executes. It is selected by kind;
// there is one worker implementation for every kind.
type Strategy struct {
	Allocate AllocPattern   `json:"allocate" yaml:"allocate"`
	Operate  OperatePattern `json:"operate" yaml:"operate"`

	// Cycle frees and reallocates buffers on every tick.
	Cycle bool `json:"cycle" yaml:"cycle"`

	// Telemetry samples temperature and power on every tick.
	Telemetry bool `json:"telemetry" yaml:"telemetry"`

	// Staged rounds run one primary and secondaries on the other partitions.
	Staged bool `json:"staged" yaml:"staged"`

	// MemoryFraction is the target share of partition memory (primary share when staged).
	MemoryFraction float64 `json:"memoryFraction" yaml:"memoryFraction"`

	// SecondaryFraction is the target share for secondaries of a staged round.
	SecondaryFraction float64 `json:"secondaryFraction,omitempty" yaml:"secondaryFraction,omitempty"`

	// ProcsPerPartition is the number of workers started per partition.
	ProcsPerPartition int `json:"procsPerPartition" yaml:"procsPerPartition"`

	// ChunkSizes are the allocation sizes in bytes, used round-robin.
	ChunkSizes []uint64 `json:"chunkSizes" yaml:"chunkSizes"`

	// Passes is the number of compute passes per tick.
	Passes int `json:"passes" yaml:"passes"`
}

var strategies = map[Kind]Strategy{
	KindStandard: {
		Allocate: AllocChunked, Operate: OperateCompute,
		MemoryFraction: 0.80, ProcsPerPartition: 1, Passes: 1,
		ChunkSizes: []uint64{256 * mib},
	},
	KindIntense: {
		Allocate: AllocChunked, Operate: OperateCompute, Staged: true,
		MemoryFraction: 0.95, SecondaryFraction: 0.50, ProcsPerPartition: 1, Passes: 2,
		ChunkSizes: []uint64{256 * mib},
	},
	KindThrashing: {
		Allocate: AllocMixed, Operate: OperateNone, Cycle: true,
		MemoryFraction: 0.90, ProcsPerPartition: 1, Passes: 0,
		ChunkSizes: []uint64{64 * mib, 128 * mib, 256 * mib, 512 * mib},
	},
	KindCUDA: {
		Allocate: AllocChunked, Operate: OperateMultiPass,
		MemoryFraction: 0.60, ProcsPerPartition: 1, Passes: 4,
		ChunkSizes: []uint64{128 * mib},
	},
	KindIntenseThrashing: {
		Allocate: AllocMixed, Operate: OperateCompute, Cycle: true, Staged: true,
		MemoryFraction: 0.95, SecondaryFraction: 0.50, ProcsPerPartition: 1, Passes: 1,
		ChunkSizes: []uint64{64 * mib, 256 * mib, 512 * mib},
	},
	KindPCIe: {
		Allocate: AllocChunked, Operate: OperateTransfer,
		MemoryFraction: 0.50, ProcsPerPartition: 1, Passes: 1,
		ChunkSizes: []uint64{64 * mib},
	},
	KindMultiproc: {
		Allocate: AllocChunked, Operate: OperateCompute,
		MemoryFraction: 0.20, ProcsPerPartition: 4, Passes: 1,
		ChunkSizes: []uint64{128 * mib},
	},
	KindThermal: {
		Allocate: AllocChunked, Operate: OperateThermal, Telemetry: true,
		MemoryFraction: 0.70, ProcsPerPartition: 1, Passes: 8,
		ChunkSizes: []uint64{256 * mib},
	},
}

// StrategyFor returns a copy of the default strategy of kind k.
func StrategyFor(k Kind) (Strategy, error) {
	s, ok := strategies[k]
	if !ok {
		return Strategy{}, fmt.Errorf("no strategy for workload kind %q", k)
	}
	s.ChunkSizes = append([]uint64(nil), s.ChunkSizes...)
	return s, nil
}
