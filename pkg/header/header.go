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

package header

import (
	"time"
)

// APIVersion is the schema version of every document migstress emits.
const APIVersion = "migstress.nvidia.com/v1alpha1"

// Kind is the type of a migstress document.
type Kind string

// Document kinds.
const (
	KindRunReport     Kind = "RunReport"
	KindPartitionList Kind = "PartitionList"
	KindRunStatus     Kind = "RunStatus"
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	return string(k)
}

// IsValid checks if the Kind is one of the recognized kinds.
func (k Kind) IsValid() bool {
	switch k {
	case KindRunReport, KindPartitionList, KindRunStatus:
		return true
	default:
		return false
	}
}

// Header carries Kubernetes-style Kind, APIVersion and Metadata fields.
type Header struct {
	Kind       Kind              `json:"kind,omitempty" yaml:"kind,omitempty"`
	APIVersion string            `json:"apiVersion,omitempty" yaml:"apiVersion,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Init sets kind and the current APIVersion and stamps the metadata with the
// creation time and, when non-empty, the tool version.
func (h *Header) Init(kind Kind, version string) {
	h.Kind = kind
	h.APIVersion = APIVersion
	h.Metadata = map[string]string{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if version != "" {
		h.Metadata["version"] = version
	}
}

// Set adds a metadata entry, initializing the map if needed.
func (h *Header) Set(key, value string) {
	if h.Metadata == nil {
		h.Metadata = make(map[string]string)
	}
	h.Metadata[key] = value
}

// GetKind returns the document kind.
func (h Header) GetKind() Kind {
	return h.Kind
}

// GetMetadata returns the metadata map.
func (h Header) GetMetadata() map[string]string {
	return h.Metadata
}
