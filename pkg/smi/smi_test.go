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

package smi

import (
	"context"
	"strings"
	"testing"
)

func TestExecRunner(t *testing.T) {
	r := ExecRunner{}

	out, err := r.Run(context.Background(), "sh", "-c", "echo hello")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if strings.TrimSpace(string(out)) != "hello" {
		t.Errorf("Run() = %q, want hello", out)
	}
}

func TestExecRunnerIncludesStderr(t *testing.T) {
	r := ExecRunner{}

	_, err := r.Run(context.Background(), "sh", "-c", "echo boom >&2; exit 3")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("expected stderr in error, got %v", err)
	}
}

func TestExecRunnerMissingBinary(t *testing.T) {
	r := ExecRunner{}

	_, err := r.Run(context.Background(), "definitely-not-a-real-binary-name")
	if err == nil {
		t.Fatal("expected error for missing binary")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRunnerFunc(t *testing.T) {
	var gotName string
	var gotArgs []string
	r := RunnerFunc(func(_ context.Context, name string, args ...string) ([]byte, error) {
		gotName = name
		gotArgs = args
		return []byte("ok"), nil
	})

	out, err := r.Run(context.Background(), Command, "-L")
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "ok" || gotName != Command || len(gotArgs) != 1 || gotArgs[0] != "-L" {
		t.Errorf("unexpected call: %s %v -> %q", gotName, gotArgs, out)
	}
}
