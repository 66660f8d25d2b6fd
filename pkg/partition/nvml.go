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

//go:build nvml

package partition

import (
	"context"
	"fmt"
	"strings"

	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

// NVMLAvailable reports whether this binary was built with NVML support.
const NVMLAvailable = true

type nvmlDiscoverer struct{}

// NewNVMLDiscoverer initializes NVML and returns a discoverer that walks the
// MIG devices of every GPU.
func NewNVMLDiscoverer() (Discoverer, error) {
	ret := nvml.Init()
	if ret != nvml.SUCCESS {
		return nil, fmt.Errorf("unable to initialize NVML: %s", nvml.ErrorString(ret))
	}
	return nvmlDiscoverer{}, nil
}

func (nvmlDiscoverer) Discover(ctx context.Context) ([]Partition, error) {
	count, ret := nvml.DeviceGetCount()
	if ret != nvml.SUCCESS {
		return nil, fmt.Errorf("error getting GPU device count: %s", nvml.ErrorString(ret))
	}

	parts := make([]Partition, 0)
	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		d, ret := nvml.DeviceGetHandleByIndex(i)
		if ret != nvml.SUCCESS {
			return nil, fmt.Errorf("error getting device handle for GPU %d: %s", i, nvml.ErrorString(ret))
		}
		gpuUUID, _ := d.GetUUID()

		maxMig, ret := d.GetMaxMigDeviceCount()
		if ret != nvml.SUCCESS {
			// not MIG capable
			continue
		}
		for j := 0; j < maxMig; j++ {
			mig, ret := d.GetMigDeviceHandleByIndex(j)
			if ret == nvml.ERROR_NOT_FOUND || ret == nvml.ERROR_INVALID_ARGUMENT {
				continue
			}
			if ret != nvml.SUCCESS {
				return nil, fmt.Errorf("error getting MIG device %d on GPU %d: %s", j, i, nvml.ErrorString(ret))
			}
			uuid, ret := mig.GetUUID()
			if ret != nvml.SUCCESS {
				return nil, fmt.Errorf("error getting UUID of MIG device %d on GPU %d: %s", j, i, nvml.ErrorString(ret))
			}
			name, _ := mig.GetName()
			parts = append(parts, Partition{
				ID:       uuid,
				GPUIndex: i,
				GPUUUID:  gpuUUID,
				Profile:  profileFromName(name),
				Index:    j,
			})
		}
	}
	return parts, nil
}

// profileFromName extracts "1g.5gb" from "NVIDIA A100-SXM4-40GB MIG 1g.5gb".
func profileFromName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	last := fields[len(fields)-1]
	if ProfileName(last).IsValid() {
		return last
	}
	return ""
}
