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

// Package launcher starts worker processes for a round.
//
// Every worker is an independent OS process in its own process group, built
// by a CommandBuilder (by default the running binary re-executed with the
// worker subcommand). Start returns once all workers are spawned; a spawn
// failure is recorded on a finished Handle instead of aborting the round.
//
// Staged rounds start the secondaries first, wait for the warm-up delay on
// the launcher's clock and only then start the primary.
//
// Handle.Stop sends SIGTERM to the worker's process group and SIGKILL once
// the grace period has passed.
package launcher
