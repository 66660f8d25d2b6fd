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

package telemetry

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

// NVMLAvailable reports whether this binary was built with NVML support.
const NVMLAvailable = true

type nvmlReader struct {
	dev nvml.Device
}

// NewNVMLReader initializes NVML and returns a reader for the GPU selected
// by index or UUID.
func NewNVMLReader(gpu string) (Reader, error) {
	if ret := nvml.Init(); ret != nvml.SUCCESS {
		return nil, fmt.Errorf("unable to initialize NVML: %s", nvml.ErrorString(ret))
	}

	var (
		dev nvml.Device
		ret nvml.Return
	)
	if idx, err := strconv.Atoi(gpu); err == nil {
		dev, ret = nvml.DeviceGetHandleByIndex(idx)
	} else if strings.HasPrefix(gpu, "GPU-") {
		dev, ret = nvml.DeviceGetHandleByUUID(gpu)
	} else {
		return nil, fmt.Errorf("invalid GPU selector %q", gpu)
	}
	if ret != nvml.SUCCESS {
		return nil, fmt.Errorf("unable to get device %s: %s", gpu, nvml.ErrorString(ret))
	}
	return nvmlReader{dev: dev}, nil
}

func (r nvmlReader) Read(ctx context.Context) (Sample, error) {
	if err := ctx.Err(); err != nil {
		return Sample{}, err
	}
	temp, ret := r.dev.GetTemperature(nvml.TEMPERATURE_GPU)
	if ret != nvml.SUCCESS {
		return Sample{}, fmt.Errorf("error getting temperature: %s", nvml.ErrorString(ret))
	}
	// milliwatts
	power, ret := r.dev.GetPowerUsage()
	if ret != nvml.SUCCESS {
		return Sample{}, fmt.Errorf("error getting power usage: %s", nvml.ErrorString(ret))
	}
	return Sample{Time: time.Now(), TemperatureC: float64(temp), PowerW: float64(power) / 1000}, nil
}
