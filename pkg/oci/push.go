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
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	ociv1 "github.com/opencontainers/image-spec/specs-go/v1"
	oras "oras.land/oras-go/v2"
	"oras.land/oras-go/v2/content/file"
	"oras.land/oras-go/v2/registry/remote"
	"oras.land/oras-go/v2/registry/remote/auth"
	"oras.land/oras-go/v2/registry/remote/credentials"

	"github.com/NVIDIA/mig-stress/pkg/defaults"
	"github.com/NVIDIA/mig-stress/pkg/errors"
)

// ArtifactType is the media type of pushed run log archives.
const ArtifactType = "application/vnd.nvidia.migstress.logs.v1"

// AnnotationRunID carries the run identifier on the manifest.
const AnnotationRunID = "com.nvidia.migstress.run-id"

// PushOptions configures a log push.
type PushOptions struct {
	// SourceDir is the run log directory.
	SourceDir string
	// Reference is the destination; its tag must be set.
	Reference Reference
	// RunID and Version are recorded as manifest annotations.
	RunID   string
	Version string
	// Created overrides the creation annotation, now when zero.
	Created time.Time
	// PlainHTTP uses HTTP instead of HTTPS for the registry connection.
	PlainHTTP bool
	// InsecureTLS skips TLS certificate verification.
	InsecureTLS bool
	// Target replaces the remote repository, e.g. with an in-memory store.
	Target oras.Target
}

// PushResult describes a pushed artifact.
type PushResult struct {
	Digest    string `json:"digest" yaml:"digest"`
	Reference string `json:"reference" yaml:"reference"`
}

// Push archives SourceDir as a single gzipped tar layer and copies the
// resulting artifact to the registry.
func Push(ctx context.Context, opts PushOptions) (*PushResult, error) {
	if err := opts.Reference.Validate(); err != nil {
		return nil, err
	}

	absDir, err := filepath.Abs(opts.SourceDir)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidRequest, "failed to resolve log directory", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeNotFound, "log directory not found", err)
	}
	if !info.IsDir() {
		return nil, errors.New(errors.ErrCodeInvalidRequest, fmt.Sprintf("%s is not a directory", absDir))
	}

	ctx, cancel := context.WithTimeout(ctx, defaults.OCIPushTimeout)
	defer cancel()

	fs, err := file.New(absDir)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, "failed to create file store", err)
	}
	defer func() { _ = fs.Close() }()
	fs.TarReproducible = true

	layer, err := fs.Add(ctx, filepath.Base(absDir), ociv1.MediaTypeImageLayerGzip, absDir)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, "failed to add log directory to store", err)
	}

	manifest, err := oras.PackManifest(ctx, fs, oras.PackManifestVersion1_1, ArtifactType,
		oras.PackManifestOptions{
			Layers:              []ociv1.Descriptor{layer},
			ManifestAnnotations: annotations(opts),
		})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, "failed to pack manifest", err)
	}

	tag := opts.Reference.Tag
	if err := fs.Tag(ctx, manifest, tag); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, "failed to tag manifest", err)
	}

	dst := opts.Target
	if dst == nil {
		repo, repoErr := remote.NewRepository(opts.Reference.Repo())
		if repoErr != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidRequest, "failed to initialize remote repository", repoErr)
		}
		repo.PlainHTTP = opts.PlainHTTP
		repo.Client = newAuthClient(opts.PlainHTTP, opts.InsecureTLS)
		dst = repo
	}

	desc, err := oras.Copy(ctx, fs, tag, dst, tag, oras.DefaultCopyOptions)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeUnavailable, "failed to push logs to registry", err)
	}

	slog.Info("pushed run logs", "reference", opts.Reference.String(), "digest", desc.Digest.String())
	return &PushResult{
		Digest:    desc.Digest.String(),
		Reference: opts.Reference.String(),
	}, nil
}

func annotations(opts PushOptions) map[string]string {
	created := opts.Created
	if created.IsZero() {
		created = time.Now()
	}
	a := map[string]string{
		ociv1.AnnotationCreated: created.UTC().Format(time.RFC3339),
		ociv1.AnnotationTitle:   "mig-stress run logs",
	}
	if opts.Version != "" {
		a[ociv1.AnnotationVersion] = opts.Version
	}
	if opts.RunID != "" {
		a[AnnotationRunID] = opts.RunID
	}
	return a
}

// newAuthClient returns a registry client that uses Docker credential helpers.
func newAuthClient(plainHTTP, insecureTLS bool) *auth.Client {
	credStore, err := credentials.NewStoreFromDocker(credentials.StoreOptions{})
	if err != nil {
		slog.Debug("docker credential store unavailable", "error", err)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !plainHTTP && insecureTLS {
		if transport.TLSClientConfig == nil {
			transport.TLSClientConfig = &tls.Config{} //nolint:gosec
		}
		transport.TLSClientConfig.InsecureSkipVerify = true //nolint:gosec
	}

	client := &auth.Client{
		Client: &http.Client{Transport: transport},
		Cache:  auth.NewCache(),
	}
	if credStore != nil {
		client.Credential = credentials.Credential(credStore)
	}
	return client
}
