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

// Package serializer writes and reads migstress documents.
//
// Run reports are written as JSON, YAML or a human-readable table to stdout,
// a file or a Kubernetes ConfigMap:
//
//	s := serializer.NewFileWriterOrStdout(serializer.FormatYAML, "cm://gpu-ops/mig-stress-report")
//	defer func() {
//	    if c, ok := s.(serializer.Closer); ok {
//	        _ = c.Close()
//	    }
//	}()
//	err := s.Serialize(ctx, rep)
//
// The table format is only available for values implementing TableWriter.
// ConfigMaps are created or updated with server-side apply and hold the
// document under report.<ext> together with its format and timestamp.
//
// FromFile reads a document back from a file or a ConfigMap URI.
package serializer
