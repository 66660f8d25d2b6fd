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

// Package telemetry reads GPU temperature and power draw.
package telemetry

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/NVIDIA/mig-stress/pkg/defaults"
	"github.com/NVIDIA/mig-stress/pkg/smi"
)

// Sample is one telemetry reading of the GPU hosting a partition.
type Sample struct {
	Time         time.Time `json:"time" yaml:"time"`
	TemperatureC float64   `json:"temperatureC" yaml:"temperatureC"`
	PowerW       float64   `json:"powerW" yaml:"powerW"`
}

// Reader returns the current telemetry of one GPU.
type Reader interface {
	Read(ctx context.Context) (Sample, error)
}

// SMIReader queries nvidia-smi. GPU selects the GPU by index or UUID; MIG
// partitions report the telemetry of their parent GPU.
type SMIReader struct {
	Runner smi.Runner
	GPU    string
	Now    func() time.Time
}

// NewSMIReader returns a reader for the given GPU selector.
func NewSMIReader(r smi.Runner, gpu string) *SMIReader {
	if r == nil {
		r = smi.Default()
	}
	return &SMIReader{Runner: r, GPU: gpu, Now: time.Now}
}

// Read implements Reader.
func (r *SMIReader) Read(ctx context.Context) (Sample, error) {
	ctx, cancel := context.WithTimeout(ctx, defaults.TelemetryTimeout)
	defer cancel()

	args := []string{"--query-gpu=temperature.gpu,power.draw", "--format=csv,noheader,nounits"}
	if r.GPU != "" {
		args = append(args, "-i", r.GPU)
	}
	out, err := r.Runner.Run(ctx, smi.Command, args...)
	if err != nil {
		return Sample{}, fmt.Errorf("failed to query telemetry: %w", err)
	}

	s, err := ParseQuery(string(out))
	if err != nil {
		return Sample{}, err
	}
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	s.Time = now()
	return s, nil
}

// ParseQuery parses the first line of
// "--query-gpu=temperature.gpu,power.draw --format=csv,noheader,nounits".
// Fields nvidia-smi reports as "[N/A]" or "[Not Supported]" read as zero.
func ParseQuery(out string) (Sample, error) {
	line := strings.TrimSpace(strings.SplitN(strings.TrimSpace(out), "\n", 2)[0])
	if line == "" {
		return Sample{}, fmt.Errorf("empty telemetry output")
	}
	fields := strings.Split(line, ",")
	if len(fields) != 2 {
		return Sample{}, fmt.Errorf("unexpected telemetry line %q", line)
	}
	temp, err := parseField(fields[0])
	if err != nil {
		return Sample{}, fmt.Errorf("invalid temperature %q: %w", fields[0], err)
	}
	power, err := parseField(fields[1])
	if err != nil {
		return Sample{}, fmt.Errorf("invalid power draw %q: %w", fields[1], err)
	}
	return Sample{TemperatureC: temp, PowerW: power}, nil
}

func parseField(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "[") {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

// Nop is a Reader that always returns a zero sample.
type Nop struct{}

// Read implements Reader.
func (Nop) Read(context.Context) (Sample, error) {
	return Sample{Time: time.Now()}, nil
}
