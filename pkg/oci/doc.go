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

// Package oci pushes a run's log directory to an OCI registry.
//
// The directory is packed as one gzipped tar layer under an OCI 1.1
// artifact manifest with media type ArtifactType, so it can be fetched
// later with any ORAS client:
//
//	ref, err := oci.ParseReference("oci://ghcr.io/acme/mig-logs")
//	if err != nil {
//	    return err
//	}
//	res, err := oci.Push(ctx, oci.PushOptions{
//	    SourceDir: "/var/log/mig-stress/run-42",
//	    Reference: ref.WithTag(runID),
//	    RunID:     runID,
//	})
//
// Credentials come from the Docker configuration (~/.docker/config.json)
// and its credential helpers.
package oci
