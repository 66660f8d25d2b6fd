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

// Package kernel scans kernel logs for GPU faults raised while a stress round
// runs.
//
// A Scanner marks the end of a Source before a round starts and, once the
// round is over, returns the lines written since the mark that name both a
// failure (error, fail, crash, Xid) and the GPU stack (gpu, nvidia, NVRM,
// cuda). Sources are the dmesg command, a log file such as /var/log/kern.log,
// and, when built with the sdjournal tag, the systemd journal.
package kernel
