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

// Package defaults holds the timing constants shared by the harness.
//
// Constants are grouped by the component that consumes them:
//
//   - Worker: stress duration, tick, progress sampling, collector grace margin
//   - Staging: secondary warm-up before the primary starts and the stop grace
//     granted to signaled workers
//   - Sequencer: cooldown between rounds and bounds on discovery, setup and
//     runtime checks
//   - Output and status server timeouts
//
// All values can be overridden per run from the command line or a suite file;
// these are only the values used when nothing else is specified.
package defaults
