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
	"regexp"
	"strconv"
	"strings"
)

var (
	profileRegex = regexp.MustCompile(`^\d+g\.\d+gb(\+me)?$`)
	giRegex      = regexp.MustCompile(`^\d+g`)
	memoryRegex  = regexp.MustCompile(`\d+gb`)
)

// Common MIG profiles of A100/H100 class GPUs.
const (
	Profile1g5gb  ProfileName = "1g.5gb"
	Profile1g10gb ProfileName = "1g.10gb"
	Profile2g10gb ProfileName = "2g.10gb"
	Profile2g20gb ProfileName = "2g.20gb"
	Profile3g20gb ProfileName = "3g.20gb"
	Profile3g40gb ProfileName = "3g.40gb"
	Profile4g20gb ProfileName = "4g.20gb"
	Profile4g40gb ProfileName = "4g.40gb"
	Profile7g40gb ProfileName = "7g.40gb"
	Profile7g80gb ProfileName = "7g.80gb"
)

// ProfileName is a MIG GPU instance profile such as "1g.10gb".
type ProfileName string

// IsValid reports whether the name has the <N>g.<M>gb shape.
func (p ProfileName) IsValid() bool {
	return profileRegex.MatchString(string(p))
}

// ComputeSlices returns the number of compute slices (the <N>g part), 0 if invalid.
func (p ProfileName) ComputeSlices() int {
	s := strings.TrimSuffix(giRegex.FindString(string(p)), "g")
	n, _ := strconv.Atoi(s)
	return n
}

// MemoryGB returns the memory size in GB (the <M>gb part), 0 if invalid.
func (p ProfileName) MemoryGB() int {
	s := strings.TrimSuffix(memoryRegex.FindString(string(p)), "gb")
	n, _ := strconv.Atoi(s)
	return n
}

// MemoryBytes returns the nominal partition memory in bytes, 0 if invalid.
func (p ProfileName) MemoryBytes() uint64 {
	return uint64(p.MemoryGB()) << 30
}
