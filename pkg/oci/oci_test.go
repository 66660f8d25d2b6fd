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

package oci

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	ociv1 "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"oras.land/oras-go/v2/content"
	"oras.land/oras-go/v2/content/memory"

	"github.com/NVIDIA/mig-stress/pkg/errors"
)

func TestParseReference(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Reference
		wantErr bool
	}{
		{
			name:  "registry with tag",
			input: "oci://ghcr.io/nvidia/mig-logs:v1",
			want:  Reference{Registry: "ghcr.io", Repository: "nvidia/mig-logs", Tag: "v1"},
		},
		{
			name:  "local registry with port",
			input: "oci://localhost:5000/logs",
			want:  Reference{Registry: "localhost:5000", Repository: "logs"},
		},
		{
			name:  "docker hub shorthand",
			input: "oci://logs:latest",
			want:  Reference{Registry: "docker.io", Repository: "library/logs", Tag: "latest"},
		},
		{name: "missing scheme", input: "ghcr.io/nvidia/logs", wantErr: true},
		{name: "upper case repository", input: "oci://ghcr.io/NVIDIA/logs", wantErr: true},
		{name: "digest", input: "oci://ghcr.io/nvidia/logs@sha256:" + sha256Zero, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseReference(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, errors.ErrCodeInvalidRequest, errors.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

const sha256Zero = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

func TestReferenceWithTag(t *testing.T) {
	ref := Reference{Registry: "ghcr.io", Repository: "nvidia/logs"}
	assert.Equal(t, "ghcr.io/nvidia/logs", ref.String())
	assert.Equal(t, "ghcr.io/nvidia/logs:run-1", ref.WithTag("run-1").String())

	ref.Tag = "pinned"
	assert.Equal(t, "pinned", ref.WithTag("run-1").Tag)
}

func TestReferenceValidate(t *testing.T) {
	assert.Error(t, Reference{Registry: "ghcr.io", Repository: "logs"}.Validate())
	assert.Error(t, Reference{Tag: "v1"}.Validate())
	assert.Error(t, Reference{Registry: "ghcr.io", Repository: "logs", Tag: "bad tag"}.Validate())
	assert.NoError(t, Reference{Registry: "ghcr.io", Repository: "logs", Tag: "v1"}.Validate())
}

func TestPushToMemoryStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run-1")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "round-01-standard"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "suite.log"), []byte("started\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "round-01-standard", "round.log"), []byte("ok\n"), 0o600))

	ctx := context.Background()
	store := memory.New()
	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	res, err := Push(ctx, PushOptions{
		SourceDir: dir,
		Reference: Reference{Registry: "localhost:5000", Repository: "logs", Tag: "run-1"},
		RunID:     "abc",
		Version:   "v0.1.0",
		Created:   created,
		Target:    store,
	})
	require.NoError(t, err)
	assert.Equal(t, "localhost:5000/logs:run-1", res.Reference)

	desc, err := store.Resolve(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, desc.Digest.String(), res.Digest)

	raw, err := content.FetchAll(ctx, store, desc)
	require.NoError(t, err)

	var m ociv1.Manifest
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Equal(t, ArtifactType, m.ArtifactType)
	assert.Equal(t, "abc", m.Annotations[AnnotationRunID])
	assert.Equal(t, "v0.1.0", m.Annotations[ociv1.AnnotationVersion])
	assert.Equal(t, "2025-01-02T03:04:05Z", m.Annotations[ociv1.AnnotationCreated])
	require.Len(t, m.Layers, 1)
	assert.Equal(t, ociv1.MediaTypeImageLayerGzip, m.Layers[0].MediaType)
	assert.Equal(t, "run-1", m.Layers[0].Annotations[ociv1.AnnotationTitle])
}

func TestPushRequiresTag(t *testing.T) {
	_, err := Push(context.Background(), PushOptions{
		SourceDir: t.TempDir(),
		Reference: Reference{Registry: "localhost:5000", Repository: "logs"},
		Target:    memory.New(),
	})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidRequest, errors.CodeOf(err))
}

func TestPushMissingDirectory(t *testing.T) {
	_, err := Push(context.Background(), PushOptions{
		SourceDir: filepath.Join(t.TempDir(), "missing"),
		Reference: Reference{Registry: "localhost:5000", Repository: "logs", Tag: "v1"},
		Target:    memory.New(),
	})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeNotFound, errors.CodeOf(err))
}
