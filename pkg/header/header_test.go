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
	"testing"
	"time"
)

func TestInit(t *testing.T) {
	var h Header
	h.Init(KindRunReport, "v1.2.3")

	if h.Kind != KindRunReport {
		t.Errorf("Kind = %s", h.Kind)
	}
	if h.APIVersion != APIVersion {
		t.Errorf("APIVersion = %s", h.APIVersion)
	}
	if h.Metadata["version"] != "v1.2.3" {
		t.Errorf("version = %q", h.Metadata["version"])
	}
	if _, err := time.Parse(time.RFC3339, h.Metadata["timestamp"]); err != nil {
		t.Errorf("timestamp not RFC3339: %v", err)
	}

	h.Init(KindPartitionList, "")
	if _, ok := h.Metadata["version"]; ok {
		t.Error("empty version must not be recorded")
	}
}

func TestSet(t *testing.T) {
	var h Header
	h.Set("runID", "abc")
	if h.Metadata["runID"] != "abc" {
		t.Errorf("Set did not initialize metadata: %v", h.Metadata)
	}
}

func TestKindIsValid(t *testing.T) {
	for _, k := range []Kind{KindRunReport, KindPartitionList, KindRunStatus} {
		if !k.IsValid() {
			t.Errorf("%s should be valid", k)
		}
	}
	if Kind("Bogus").IsValid() {
		t.Error("unknown kind reported valid")
	}
}
