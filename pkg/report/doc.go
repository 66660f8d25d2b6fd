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

// Package report holds the results of a run: one WorkerOutcome per spawned
// worker, one RoundResult per workload kind and the Report that aggregates
// them into a pass/fail matrix and an exit code.
//
// A round succeeds only when every decisive outcome succeeded and the kernel
// anomaly scan found nothing. Secondaries of staged rounds are recorded but
// are not decisive. Skipped rounds count as failed.
package report
