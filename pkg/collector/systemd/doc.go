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

// Package systemd reports the state of NVIDIA host services.
//
// The stress harness runs with or without these services; their state is
// recorded by the preflight step so a failed run can be correlated with a
// stopped persistence daemon or fabric manager.
//
// # Usage
//
//	c := systemd.NewCollector(nil)
//	units, err := c.Collect(ctx)
//	for _, u := range units {
//	    fmt.Printf("%s: %s/%s\n", u.Name, u.ActiveState, u.SubState)
//	}
//
// Units are queried over D-Bus with ListUnitsByNames, so a unit that is not
// installed is reported with LoadState "not-found" rather than an error.
// Hosts without a systemd bus yield an error the caller may treat as
// informational.
package systemd
