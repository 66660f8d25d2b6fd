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

package host

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const modules = `nvidia_uvm 1863680 2 - Live 0x0000000000000000 (POE)
nvidia_drm 114688 0 - Live 0x0000000000000000 (POE)
ext4 1069056 1 - Live 0x0000000000000000
nvidia 56868864 50 nvidia_uvm,nvidia_drm, Live 0x0000000000000000 (POE)
`

func TestNVIDIAModules(t *testing.T) {
	mods, err := NVIDIAModules(writeFile(t, "modules", modules))
	require.NoError(t, err)
	assert.Equal(t, []string{"nvidia", "nvidia_drm", "nvidia_uvm"}, mods)

	info := &Info{Modules: mods}
	assert.True(t, info.HasModule("nvidia"))
	assert.False(t, info.HasModule("ext4"))
}

func TestNVIDIAModulesMissingFile(t *testing.T) {
	_, err := NVIDIAModules(filepath.Join(t.TempDir(), "modules"))
	assert.Error(t, err)
}

func TestPrettyName(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "pretty name",
			content: "# comment\nNAME=\"Ubuntu\"\nVERSION_ID=\"22.04\"\nPRETTY_NAME=\"Ubuntu 22.04.4 LTS\"\n",
			want:    "Ubuntu 22.04.4 LTS",
		},
		{
			name:    "name and version",
			content: "NAME='Rocky Linux'\nVERSION_ID=9.3\n",
			want:    "Rocky Linux 9.3",
		},
		{
			name:    "malformed lines skipped",
			content: "garbage\nNAME=Debian\n",
			want:    "Debian",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PrettyName(writeFile(t, "os-release", tt.content))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCollect(t *testing.T) {
	dir := t.TempDir()
	orig := []string{filePathModules, filePathReleasePrimary, filePathReleaseFallback, filePathKernelRelease}
	t.Cleanup(func() {
		filePathModules, filePathReleasePrimary, filePathReleaseFallback, filePathKernelRelease = orig[0], orig[1], orig[2], orig[3]
	})

	filePathModules = writeFile(t, "modules", modules)
	filePathReleasePrimary = filepath.Join(dir, "missing")
	filePathReleaseFallback = writeFile(t, "os-release", "PRETTY_NAME=\"Test OS\"\n")
	filePathKernelRelease = writeFile(t, "osrelease", "6.8.0-test\n")

	info, err := Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Test OS", info.OS)
	assert.Equal(t, "6.8.0-test", info.Kernel)
	assert.Len(t, info.Modules, 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Collect(ctx)
	assert.Error(t, err)
}
