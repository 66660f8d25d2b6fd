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

//go:build !nvml

package telemetry

import "fmt"

// NVMLAvailable reports whether this binary was built with NVML support.
const NVMLAvailable = false

// NewNVMLReader is unavailable without the nvml build tag.
func NewNVMLReader(string) (Reader, error) {
	return nil, fmt.Errorf("NVML support not compiled in (build with -tags nvml)")
}
