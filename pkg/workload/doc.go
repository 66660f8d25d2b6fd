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

// Package workload defines the workload kinds, their strategies and the
// per-worker Spec.
//
// Every kind is executed by the same worker; a Strategy selects the allocate
// pattern, the operate pattern and whether buffers are cycled. Plan turns a
// kind and a partition list into one Spec per worker, assigning primary and
// secondary roles for staged kinds.
package workload
