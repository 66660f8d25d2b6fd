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

// Package worker implements the stress loop of a single worker process.
//
// A Worker moves through INIT, ALLOCATING, STRESSING (and CYCLING for
// strategies that free and reallocate every tick), CLEANUP and finally DONE
// or FAILED. Exhausting partition memory is the intended stress condition and
// is recovered by trimming the newest buffers; any other device error, or a
// panic, fails the worker after logging a stack trace.
//
// ExitCode maps the result of Run to the process exit status the collector
// observes: 0 on success or graceful stop, 2 when the partition is not
// visible to the runtime, 1 otherwise.
package worker
