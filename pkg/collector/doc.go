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

// Package collector finishes a round of stress workers.
//
// Collect blocks until every worker of a launched round has exited, stopping
// workers that outlive their duration plus a grace margin, and turns each
// handle into exactly one report.WorkerOutcome. In a staged round the
// secondaries are stopped once the primary has finished.
//
// After the workers are done the collector:
//   - concatenates the per-worker logs into the round log, one section per
//     worker headed by its identity and status;
//   - scans the kernel log from the mark taken before the round for GPU
//     faults and writes matches to the round error log.
//
// A round succeeds only when every decisive worker succeeded and the error
// log is empty:
//
//	c := collector.New(collector.WithScanner(kernel.NewScanner(kernel.NewDmesg(nil))))
//	mark := c.Mark(ctx)
//	round := l.Launch(ctx, specs)
//	res, err := c.Collect(ctx, round, mark, logs)
package collector
