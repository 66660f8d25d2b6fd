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
	"strings"
)

// Kind names a stress pattern.
type Kind string

// Supported workload kinds, in suite order.
const (
	KindStandard         Kind = "standard"
	KindIntense          Kind = "intense"
	KindThrashing        Kind = "thrashing"
	KindCUDA             Kind = "cuda"
	KindIntenseThrashing Kind = "intense-thrashing"
	KindPCIe             Kind = "pcie"
	KindMultiproc        Kind = "multiproc"
	KindThermal          Kind = "thermal"
)

// KindAll expands to every supported kind when parsing kind lists.
const KindAll = "all"

var allKinds = []Kind{
	KindStandard,
	KindIntense,
	KindThrashing,
	KindCUDA,
	KindIntenseThrashing,
	KindPCIe,
	KindMultiproc,
	KindThermal,
}

// Kinds returns every supported kind in suite order.
func Kinds() []Kind {
	out := make([]Kind, len(allKinds))
	copy(out, allKinds)
	return out
}

// KindNames returns the supported kind names, for flag usage text.
func KindNames() []string {
	out := make([]string, 0, len(allKinds))
	for _, k := range allKinds {
		out = append(out, string(k))
	}
	return out
}

// IsValid reports whether k is a supported kind.
func (k Kind) IsValid() bool {
	for _, v := range allKinds {
		if v == k {
			return true
		}
	}
	return false
}

// ParseKind parses a kind name, case-insensitively.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.IsValid() {
		return "", fmt.Errorf("unknown workload kind %q (supported: %s)", s, strings.Join(KindNames(), ", "))
	}
	return k, nil
}

// ParseKinds parses a list of kind names. Items may be comma separated and
// "all" expands to every kind. Order is preserved; repeats are kept, since
// running a kind twice in a suite is legitimate.
func ParseKinds(items []string) ([]Kind, error) {
	var out []Kind
	for _, item := range items {
		for _, s := range strings.Split(item, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			if strings.EqualFold(s, KindAll) {
				out = append(out, allKinds...)
				continue
			}
			k, err := ParseKind(s)
			if err != nil {
				return nil, err
			}
			out = append(out, k)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no workload kinds given")
	}
	return out, nil
}

// Role is the part a worker plays within a round.
type Role string

const (
	// RoleWorker is a worker in a flat round where every outcome counts.
	RoleWorker Role = "worker"
	// RolePrimary is the partition under peak stress in a staged round.
	RolePrimary Role = "primary"
	// RoleSecondary carries background load in a staged round.
	RoleSecondary Role = "secondary"
)

// ParseRole parses a role name.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleWorker, RolePrimary, RoleSecondary:
		return r, nil
	default:
		return "", fmt.Errorf("unknown worker role %q", s)
	}
}
