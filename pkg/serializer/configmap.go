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

package serializer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	accorev1 "k8s.io/client-go/applyconfigurations/core/v1"

	"github.com/NVIDIA/mig-stress/pkg/defaults"
	"github.com/NVIDIA/mig-stress/pkg/header"
	"github.com/NVIDIA/mig-stress/pkg/k8s/client"
)

const (
	fieldManager = "migstress"
	appName      = "mig-stress"
)

// ClientFunc returns the Kubernetes client used by a ConfigMapWriter.
type ClientFunc func() (client.Interface, error)

func sharedClient() (client.Interface, error) {
	c, _, err := client.GetKubeClient()
	return c, err
}

// ConfigMapWriter stores a serialized value in a ConfigMap with server-side
// apply, so repeated runs update the same object.
type ConfigMapWriter struct {
	namespace string
	name      string
	format    Format
	client    ClientFunc
}

// NewConfigMapWriter returns a writer to namespace/name using the shared client.
func NewConfigMapWriter(namespace, name string, format Format) *ConfigMapWriter {
	return &ConfigMapWriter{namespace: namespace, name: name, format: orJSON(format), client: sharedClient}
}

// WithClient replaces the client source.
func (w *ConfigMapWriter) WithClient(f ClientFunc) *ConfigMapWriter {
	w.client = f
	return w
}

type headered interface {
	GetKind() header.Kind
	GetMetadata() map[string]string
}

// Serialize applies the ConfigMap. Values carrying a header label the object
// with their kind and version.
func (w *ConfigMapWriter) Serialize(ctx context.Context, v any) error {
	ctx, cancel := context.WithTimeout(ctx, defaults.ConfigMapWriteTimeout)
	defer cancel()

	content, err := Marshal(w.format, v)
	if err != nil {
		return err
	}

	kind, version, timestamp := "unknown", "unknown", time.Now().UTC().Format(time.RFC3339)
	if h, ok := v.(headered); ok {
		kind = h.GetKind().String()
		if m := h.GetMetadata(); m != nil {
			if s := m["version"]; s != "" {
				version = s
			}
			if s := m["timestamp"]; s != "" {
				timestamp = s
			}
		}
	}

	c, err := w.client()
	if err != nil {
		return fmt.Errorf("failed to get kubernetes client: %w", err)
	}

	cm := accorev1.ConfigMap(w.name, w.namespace).
		WithLabels(map[string]string{
			"app.kubernetes.io/name":      appName,
			"app.kubernetes.io/component": labelValue(kind),
			"app.kubernetes.io/version":   labelValue(version),
		}).
		WithData(map[string]string{
			"report." + w.format.Extension(): string(content),
			"format":                         string(w.format),
			"timestamp":                      timestamp,
		})

	slog.Info("applying ConfigMap", "namespace", w.namespace, "name", w.name, "format", w.format)
	_, err = c.CoreV1().ConfigMaps(w.namespace).Apply(ctx, cm, metav1.ApplyOptions{
		FieldManager: fieldManager,
		Force:        true,
	})
	if err != nil {
		return fmt.Errorf("failed to apply ConfigMap %s/%s: %w", w.namespace, w.name, err)
	}
	return nil
}

// Close implements Closer.
func (w *ConfigMapWriter) Close() error {
	return nil
}

// labelValue makes s a valid label value: at most 63 characters of
// alphanumerics, '-', '_' and '.', starting and ending alphanumeric.
func labelValue(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '-'
		}
	}, s)
	if len(s) > 63 {
		s = s[:63]
	}
	return strings.Trim(s, "-_.")
}

func parseConfigMapURI(uri string) (namespace, name string, err error) {
	if !strings.HasPrefix(uri, ConfigMapURIScheme) {
		return "", "", fmt.Errorf("invalid ConfigMap URI: must start with %s", ConfigMapURIScheme)
	}
	namespace, name, ok := strings.Cut(strings.TrimPrefix(uri, ConfigMapURIScheme), "/")
	if !ok {
		return "", "", fmt.Errorf("invalid ConfigMap URI format: expected %snamespace/name, got %s", ConfigMapURIScheme, uri)
	}
	namespace, name = strings.TrimSpace(namespace), strings.TrimSpace(name)
	if namespace == "" {
		return "", "", fmt.Errorf("invalid ConfigMap URI: namespace cannot be empty")
	}
	if name == "" {
		return "", "", fmt.Errorf("invalid ConfigMap URI: name cannot be empty")
	}
	return namespace, name, nil
}
