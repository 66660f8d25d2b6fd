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
	"context"
	"fmt"
	"strings"
)

// Partition names one addressable GPU slice. ID is opaque to the harness and
// only ever passed through to workers; the remaining fields are informational
// metadata reported by the discovery tool.
type Partition struct {
	// ID is the identifier handed to the runtime (e.g. MIG-5c1d...).
	ID string `json:"id" yaml:"id"`

	// GPUIndex is the index of the physical GPU that hosts the partition, -1 if unknown.
	GPUIndex int `json:"gpuIndex" yaml:"gpuIndex"`

	// GPUUUID is the UUID of the parent GPU, if known.
	GPUUUID string `json:"gpuUUID,omitempty" yaml:"gpuUUID,omitempty"`

	// Profile is the MIG profile name (e.g. 1g.10gb), if known.
	Profile string `json:"profile,omitempty" yaml:"profile,omitempty"`

	// Index is the device index of the partition within its GPU.
	Index int `json:"index" yaml:"index"`
}

// String returns the partition identifier.
func (p Partition) String() string {
	return p.ID
}

// Discoverer lists the partitions currently visible on the host.
type Discoverer interface {
	Discover(ctx context.Context) ([]Partition, error)
}

// Static is a Discoverer over a fixed list of identifiers.
type Static []string

// Discover returns one partition per configured identifier, in order.
func (s Static) Discover(ctx context.Context) ([]Partition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]Partition, 0, len(s))
	for i, id := range s {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		out = append(out, Partition{ID: id, GPUIndex: -1, Index: i})
	}
	return out, nil
}

// IDs returns the identifiers of ps in order.
func IDs(ps []Partition) []string {
	ids := make([]string, 0, len(ps))
	for _, p := range ps {
		ids = append(ids, p.ID)
	}
	return ids
}

// Layout describes the MIG geometry to create on a set of GPUs.
type Layout struct {
	// GPUs are the indices of the GPUs to partition.
	GPUs []int `json:"gpus" yaml:"gpus" toml:"gpus"`

	// Profiles is the list of GPU instance profiles created on every GPU,
	// e.g. ["1g.10gb", "1g.10gb", "2g.20gb"].
	Profiles []string `json:"profiles" yaml:"profiles" toml:"profiles"`
}

// Validate checks that the layout names at least one GPU and valid profiles.
func (l Layout) Validate() error {
	if len(l.GPUs) == 0 {
		return fmt.Errorf("layout must name at least one GPU")
	}
	for _, g := range l.GPUs {
		if g < 0 {
			return fmt.Errorf("invalid GPU index %d", g)
		}
	}
	if len(l.Profiles) == 0 {
		return fmt.Errorf("layout must name at least one profile")
	}
	for _, p := range l.Profiles {
		if !ProfileName(p).IsValid() {
			return fmt.Errorf("invalid MIG profile %q", p)
		}
	}
	return nil
}
