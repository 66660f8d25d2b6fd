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

// Package partition discovers and manages the GPU partitions a stress round
// runs against.
//
// A partition is identified by an opaque string (a MIG device UUID on NVIDIA
// hardware) that is handed to the worker process unchanged. Discovery is
// pluggable:
//
//   - SMIDiscoverer parses "nvidia-smi -L" output.
//   - NewNVMLDiscoverer walks MIG devices through NVML (build tag "nvml").
//   - Static wraps a fixed list of identifiers supplied by the operator.
//
// Manager creates and removes MIG partitions with nvidia-smi for the
// "partitions setup" and "partitions teardown" commands.
//
// Usage:
//
//	d := partition.NewSMIDiscoverer(nil)
//	parts, err := d.Discover(ctx)
//	if err != nil {
//	    return err
//	}
//	for _, p := range parts {
//	    fmt.Println(p.ID, p.Profile)
//	}
package partition
