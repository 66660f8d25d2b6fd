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

package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenHost(t *testing.T) {
	d, err := Open(Options{Backend: BackendHost, Partition: "MIG-a", HostMemory: 1 << 20})
	require.NoError(t, err)
	defer d.Close()

	assert.Equal(t, "MIG-a", d.ID())
	info, err := d.MemInfo()
	require.NoError(t, err)
	assert.Equal(t, MemInfo{Free: 1 << 20, Total: 1 << 20}, info)
}

func TestOpenRequiresPartition(t *testing.T) {
	_, err := Open(Options{Backend: BackendHost})
	require.Error(t, err)
	assert.True(t, IsUnavailable(err))
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open(Options{Backend: "tpu", Partition: "x"})
	assert.Error(t, err)
}

func TestHostAllocOutOfMemory(t *testing.T) {
	d, err := Open(Options{Partition: "MIG-a", HostMemory: 64 << 10})
	require.NoError(t, err)
	defer d.Close()

	a, err := d.Alloc(48 << 10)
	require.NoError(t, err)

	_, err = d.Alloc(32 << 10)
	require.Error(t, err)
	assert.True(t, IsOutOfMemory(err))

	require.NoError(t, d.Free(a))
	b, err := d.Alloc(32 << 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(32<<10), b.Size())

	info, err := d.MemInfo()
	require.NoError(t, err)
	assert.Equal(t, uint64(32<<10), info.Free)
}

func TestHostOperations(t *testing.T) {
	d, err := Open(Options{Partition: "MIG-a", HostMemory: 1 << 20})
	require.NoError(t, err)

	b, err := d.Alloc(256 << 10)
	require.NoError(t, err)

	assert.NoError(t, d.Compute(b, 3))
	assert.NoError(t, d.Transfer(b))
	assert.NoError(t, d.Trim())

	require.NoError(t, d.Free(b))
	assert.Error(t, d.Free(b), "double free must fail")
	assert.Error(t, d.Compute(b, 1), "freed buffer must not be usable")

	_, err = d.Alloc(0)
	assert.Error(t, err)

	require.NoError(t, d.Close())
}

func TestHostCloseReleasesEverything(t *testing.T) {
	d, err := Open(Options{Partition: "MIG-a", HostMemory: 1 << 20})
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		_, err := d.Alloc(128 << 10)
		require.NoError(t, err)
	}
	require.NoError(t, d.Close())

	info, err := d.MemInfo()
	require.NoError(t, err)
	assert.Equal(t, info.Total, info.Free)
}

func TestParseBackend(t *testing.T) {
	b, err := ParseBackend(" CUDA ")
	require.NoError(t, err)
	assert.Equal(t, BackendCUDA, b)

	_, err = ParseBackend("rocm")
	assert.Error(t, err)
}

func TestProbe(t *testing.T) {
	assert.NoError(t, Probe(BackendHost))
	assert.Error(t, Probe("rocm"))
	assert.Contains(t, Backends(), BackendHost)
}

func TestHostBufferSizeSurvivesFree(t *testing.T) {
	dev, err := Open(Options{Partition: "MIG-test", HostMemory: 8 << 10})
	require.NoError(t, err)
	b, err := dev.Alloc(4 << 10)
	require.NoError(t, err)
	require.NoError(t, dev.Free(b))
	assert.Equal(t, uint64(4<<10), b.Size())

	info, err := dev.MemInfo()
	require.NoError(t, err)
	assert.Equal(t, uint64(8<<10), info.Free)
}
