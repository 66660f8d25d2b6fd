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

// Package sequencer runs a suite of workload kinds one round at a time.
//
// A run moves through a fixed set of states and never revisits one:
//
//	DISCOVER_PARTITIONS -> VERIFY_RUNTIME -> (RUN_ROUND -> COOLDOWN)* -> FINAL_SUMMARY
//
// Partition setup, when configured, runs before discovery. A setup failure
// is logged and the run continues unless strict setup is requested. If no
// partition is found, or the numeric runtime is missing, no worker is spawned
// and every kind is recorded as skipped. A failed round never stops the
// sequence: the report always holds exactly one round result per requested
// kind.
//
// Canceling the context stops the running round and records the remaining
// kinds as skipped with reason "canceled".
package sequencer
