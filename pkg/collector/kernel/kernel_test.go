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

package kernel

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NVIDIA/mig-stress/pkg/defaults"
	"github.com/NVIDIA/mig-stress/pkg/smi"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"NVRM: Xid (PCI:0000:3b:00): 31, pid=1234, Ch 00000008", true},
		{"nvidia 0000:3b:00.0: GPU has fallen off the bus, error", true},
		{"[  12.3] cuda driver crash detected", true},
		{"NVIDIA: module loaded", false},
		{"ext4 error on sda1", false},
		{"usb 1-1: new high-speed USB device", false},
		{"GPU FAILURE", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Match(tt.line), tt.line)
	}
}

type fakeDmesg struct {
	outputs [][]string
	calls   int
	err     error
}

func (f *fakeDmesg) runner() smi.Runner {
	return smi.RunnerFunc(func(_ context.Context, name string, _ ...string) ([]byte, error) {
		if f.err != nil {
			return nil, f.err
		}
		out := f.outputs[f.calls]
		if f.calls < len(f.outputs)-1 {
			f.calls++
		}
		return []byte(strings.Join(out, "\n") + "\n"), nil
	})
}

func TestDmesgSince(t *testing.T) {
	f := &fakeDmesg{outputs: [][]string{
		{"boot", "NVRM: Xid 79 old error"},
		{"boot", "NVRM: Xid 79 old error", "NVRM: Xid 13 gpu error", "eth0 link up"},
	}}
	s := NewScanner(NewDmesg(f.runner()))
	ctx := context.Background()

	c, err := s.Mark(ctx)
	require.NoError(t, err)
	assert.Equal(t, Cursor("NVRM: Xid 79 old error"), c)

	got, err := s.Scan(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, []string{"NVRM: Xid 13 gpu error"}, got)
}

func TestDmesgFullBuffer(t *testing.T) {
	// the buffer is full: each new line pushes the oldest one out
	f := &fakeDmesg{outputs: [][]string{
		{"[ 1.000000] a", "[ 2.000000] b", "[ 3.000000] c"},
		{"[ 2.000000] b", "[ 3.000000] c", "[ 9.000000] NVRM: Xid (PCI:0000:07:00): 79, GPU has fallen off the bus"},
	}}
	s := NewScanner(NewDmesg(f.runner()))
	ctx := context.Background()

	c, err := s.Mark(ctx)
	require.NoError(t, err)

	got, err := s.Scan(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, []string{"[ 9.000000] NVRM: Xid (PCI:0000:07:00): 79, GPU has fallen off the bus"}, got)
}

func TestDmesgEmptyAtMark(t *testing.T) {
	f := &fakeDmesg{outputs: [][]string{{}, {"NVIDIA GPU error"}}}
	s := NewScanner(NewDmesg(f.runner()))
	ctx := context.Background()

	c, err := s.Mark(ctx)
	require.NoError(t, err)
	assert.Equal(t, Cursor(""), c)

	got, err := s.Scan(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, []string{"NVIDIA GPU error"}, got)
}

func TestDmesgMarkRotatedOut(t *testing.T) {
	f := &fakeDmesg{outputs: [][]string{{"only", "NVIDIA GPU error"}}}
	d := NewDmesg(f.runner())

	got, err := d.Since(context.Background(), Cursor("[ 0.100000] long gone"))
	require.NoError(t, err)
	assert.Equal(t, []string{"only", "NVIDIA GPU error"}, got)
}

func TestTail(t *testing.T) {
	lines := make([]string, defaults.KernelLogTailLines+10)
	assert.Len(t, tail(lines, defaults.KernelLogTailLines), defaults.KernelLogTailLines)
	assert.Len(t, tail(lines[:3], defaults.KernelLogTailLines), 3)
}

func TestDmesgError(t *testing.T) {
	f := &fakeDmesg{err: errors.New("permission denied")}
	s := NewScanner(NewDmesg(f.runner()))

	_, err := s.Scan(context.Background(), Cursor(""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dmesg")
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kern.log")
	require.NoError(t, os.WriteFile(path, []byte("NVRM: Xid 48 before the round, gpu error\n"), 0o600))

	s := NewScanner(NewFile(path))
	ctx := context.Background()

	c, err := s.Mark(ctx)
	require.NoError(t, err)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	_, err = f.WriteString("kernel: unrelated\nnvidia-modeset: GPU crash on head 0\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	got, err := s.Scan(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, []string{"nvidia-modeset: GPU crash on head 0"}, got)
}

func TestFileSourceMissing(t *testing.T) {
	s := NewScanner(NewFile(filepath.Join(t.TempDir(), "missing.log")))
	_, err := s.Mark(context.Background())
	assert.Error(t, err)
}

func TestNop(t *testing.T) {
	s := NewScanner(Nop{})
	c, err := s.Mark(context.Background())
	require.NoError(t, err)
	got, err := s.Scan(context.Background(), c)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestOpen(t *testing.T) {
	src, err := Open("dmesg")
	require.NoError(t, err)
	assert.Equal(t, "dmesg", src.Name())

	src, err = Open("")
	require.NoError(t, err)
	assert.Equal(t, "dmesg", src.Name())

	src, err = Open("none")
	require.NoError(t, err)
	assert.Equal(t, "none", src.Name())

	src, err = Open("file:/var/log/kern.log")
	require.NoError(t, err)
	assert.Equal(t, "/var/log/kern.log", src.Name())

	_, err = Open("file:")
	assert.Error(t, err)

	_, err = Open("syslog")
	assert.Error(t, err)
}
