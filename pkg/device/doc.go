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

// Package device abstracts the numeric runtime a worker stresses.
//
// A Device is opened for one partition identifier, passed explicitly in
// Options. Two backends exist: the host backend, which stresses Go heap
// memory up to a fixed capacity, and the CUDA backend (build tag "cuda"),
// which uses the CUDA driver API through gorgonia.org/cu.
//
// Allocation failures caused by exhausted memory wrap ErrOutOfMemory and are
// recoverable. A partition the runtime cannot see yields ErrUnavailable.
package device
