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

package partition

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/NVIDIA/mig-stress/pkg/errors"
	"github.com/NVIDIA/mig-stress/pkg/smi"
)

const listOutput = `GPU 0: NVIDIA A100-SXM4-40GB (UUID: GPU-5c89852c-d268-c3f3-1b07-005d5ae1dc3f)
  MIG 1g.5gb      Device  0: (UUID: MIG-c7384736-a75d-5afc-978f-d2f1294409fd)
  MIG 1g.5gb      Device  1: (UUID: MIG-a28ad590-3fda-56dd-84fc-0a0b96edc58d)
  MIG 2g.10gb     Device  2: (UUID: MIG-1d4bba5b-b6b9-5a2f-9c3e-1ad0a8a0b1c2)
GPU 1: NVIDIA A100-SXM4-40GB (UUID: GPU-0e2a6a1f-3b6c-4c0e-9f4b-7a1d2c3b4e5f)
`

func fakeRunner(out string, err error) smi.Runner {
	return smi.RunnerFunc(func(_ context.Context, _ string, _ ...string) ([]byte, error) {
		return []byte(out), err
	})
}

func TestParseList(t *testing.T) {
	got, err := ParseList([]byte(listOutput))
	if err != nil {
		t.Fatalf("ParseList() error = %v", err)
	}

	gpu0 := "GPU-5c89852c-d268-c3f3-1b07-005d5ae1dc3f"
	want := []Partition{
		{ID: "MIG-c7384736-a75d-5afc-978f-d2f1294409fd", GPUIndex: 0, GPUUUID: gpu0, Profile: "1g.5gb", Index: 0},
		{ID: "MIG-a28ad590-3fda-56dd-84fc-0a0b96edc58d", GPUIndex: 0, GPUUUID: gpu0, Profile: "1g.5gb", Index: 1},
		{ID: "MIG-1d4bba5b-b6b9-5a2f-9c3e-1ad0a8a0b1c2", GPUIndex: 0, GPUUUID: gpu0, Profile: "2g.10gb", Index: 2},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseList() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseListNoMIG(t *testing.T) {
	got, err := ParseList([]byte("GPU 0: Tesla T4 (UUID: GPU-aaaa)\n"))
	if err != nil {
		t.Fatalf("ParseList() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no partitions, got %v", got)
	}
}

func TestSMIDiscoverer(t *testing.T) {
	d := NewSMIDiscoverer(fakeRunner(listOutput, nil))

	first, err := d.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	second, err := d.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("repeated discovery differs (-first +second):\n%s", diff)
	}
	if len(first) != 3 {
		t.Errorf("expected 3 partitions, got %d", len(first))
	}
}

func TestSMIDiscovererError(t *testing.T) {
	d := NewSMIDiscoverer(fakeRunner("", fmt.Errorf("nvidia-smi not found in PATH")))

	_, err := d.Discover(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.HasCode(err, errors.ErrCodeDiscoveryFailed) {
		t.Errorf("expected DISCOVERY_FAILED, got %v", err)
	}
}

func TestStatic(t *testing.T) {
	got, err := Static{"MIG-a", " ", "MIG-b"}.Discover(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"MIG-a", "MIG-b"}, IDs(got)); diff != "" {
		t.Errorf("IDs mismatch (-want +got):\n%s", diff)
	}
	for _, p := range got {
		if p.GPUIndex != -1 {
			t.Errorf("expected unknown GPU index, got %d", p.GPUIndex)
		}
	}
}

func TestStaticCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (Static{"MIG-a"}).Discover(ctx); err == nil {
		t.Error("expected error on canceled context")
	}
}

func TestProfileName(t *testing.T) {
	tests := []struct {
		name   ProfileName
		valid  bool
		slices int
		memory int
	}{
		{Profile1g5gb, true, 1, 5},
		{Profile3g40gb, true, 3, 40},
		{Profile7g80gb, true, 7, 80},
		{"1g.10gb+me", true, 1, 10},
		{"bogus", false, 0, 0},
		{"", false, 0, 0},
	}
	for _, tt := range tests {
		t.Run(string(tt.name), func(t *testing.T) {
			if got := tt.name.IsValid(); got != tt.valid {
				t.Errorf("IsValid() = %v, want %v", got, tt.valid)
			}
			if got := tt.name.ComputeSlices(); got != tt.slices {
				t.Errorf("ComputeSlices() = %d, want %d", got, tt.slices)
			}
			if got := tt.name.MemoryGB(); got != tt.memory {
				t.Errorf("MemoryGB() = %d, want %d", got, tt.memory)
			}
		})
	}
	if got := Profile1g5gb.MemoryBytes(); got != 5<<30 {
		t.Errorf("MemoryBytes() = %d", got)
	}
}

func TestLayoutValidate(t *testing.T) {
	tests := []struct {
		name    string
		layout  Layout
		wantErr bool
	}{
		{"valid", Layout{GPUs: []int{0, 1}, Profiles: []string{"1g.5gb", "2g.10gb"}}, false},
		{"no gpus", Layout{Profiles: []string{"1g.5gb"}}, true},
		{"negative gpu", Layout{GPUs: []int{-1}, Profiles: []string{"1g.5gb"}}, true},
		{"no profiles", Layout{GPUs: []int{0}}, true},
		{"bad profile", Layout{GPUs: []int{0}, Profiles: []string{"huge"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.layout.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

type recordingRunner struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]bool
}

func (r *recordingRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	call := strings.Join(append([]string{name}, args...), " ")
	r.mu.Lock()
	r.calls = append(r.calls, call)
	r.mu.Unlock()
	if r.fail[call] {
		return nil, fmt.Errorf("%s failed", call)
	}
	return nil, nil
}

func TestManagerSetup(t *testing.T) {
	r := &recordingRunner{fail: map[string]bool{
		// no instances yet
		"nvidia-smi mig -i 0 -dci": true,
		"nvidia-smi mig -i 0 -dgi": true,
	}}
	m := NewManager(r)

	err := m.Setup(context.Background(), Layout{GPUs: []int{0}, Profiles: []string{"1g.5gb", "1g.5gb"}})
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	want := []string{
		"nvidia-smi -i 0 -mig 1",
		"nvidia-smi mig -i 0 -dci",
		"nvidia-smi mig -i 0 -dgi",
		"nvidia-smi mig -i 0 -cgi 1g.5gb,1g.5gb -C",
	}
	if diff := cmp.Diff(want, r.calls); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestManagerSetupContinuesAfterFailure(t *testing.T) {
	r := &recordingRunner{fail: map[string]bool{"nvidia-smi -i 0 -mig 1": true}}
	m := NewManager(r)

	err := m.Setup(context.Background(), Layout{GPUs: []int{0, 1}, Profiles: []string{"1g.5gb"}})
	if err == nil {
		t.Fatal("expected error")
	}
	found := false
	for _, c := range r.calls {
		if c == "nvidia-smi mig -i 1 -cgi 1g.5gb -C" {
			found = true
		}
	}
	if !found {
		t.Errorf("GPU 1 was not set up: %v", r.calls)
	}
}

func TestManagerSetupInvalidLayout(t *testing.T) {
	m := NewManager(&recordingRunner{})
	err := m.Setup(context.Background(), Layout{})
	if !errors.HasCode(err, errors.ErrCodeInvalidRequest) {
		t.Errorf("expected INVALID_REQUEST, got %v", err)
	}
}

func TestManagerTeardown(t *testing.T) {
	r := &recordingRunner{}
	m := NewManager(r)

	if err := m.Teardown(context.Background(), []int{2}, true); err != nil {
		t.Fatalf("Teardown() error = %v", err)
	}
	want := []string{
		"nvidia-smi mig -i 2 -dci",
		"nvidia-smi mig -i 2 -dgi",
		"nvidia-smi -i 2 -mig 0",
	}
	if diff := cmp.Diff(want, r.calls); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
}
