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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/NVIDIA/mig-stress/pkg/k8s/client"
)

// FormatFromPath returns the format implied by the file extension, JSON when
// the extension is unknown.
func FormatFromPath(path string) Format {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".json"):
		return FormatJSON
	case strings.HasSuffix(lower, ".yaml"), strings.HasSuffix(lower, ".yml"):
		return FormatYAML
	case strings.HasSuffix(lower, ".txt"), strings.HasSuffix(lower, ".table"):
		return FormatTable
	default:
		slog.Warn("unknown file extension, defaulting to JSON", "path", path)
		return FormatJSON
	}
}

// Unmarshal decodes data in format into v. Tables cannot be decoded.
func Unmarshal(format Format, data []byte, v any) error {
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, v); err != nil {
			return fmt.Errorf("failed to decode JSON: %w", err)
		}
	case FormatYAML:
		if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(v); err != nil {
			return fmt.Errorf("failed to decode YAML: %w", err)
		}
	case FormatTable:
		return fmt.Errorf("table format cannot be decoded")
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
	return nil
}

// FromFile reads a T from a file or a cm://namespace/name ConfigMap written
// by ConfigMapWriter. kubeconfig is only used for ConfigMaps.
func FromFile[T any](ctx context.Context, path, kubeconfig string) (*T, error) {
	if strings.HasPrefix(path, ConfigMapURIScheme) {
		namespace, name, err := parseConfigMapURI(path)
		if err != nil {
			return nil, err
		}
		c, _, err := client.ForKubeconfig(kubeconfig)
		if err != nil {
			return nil, fmt.Errorf("failed to get kubernetes client: %w", err)
		}
		return FromConfigMap[T](ctx, c, namespace, name)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var v T
	if err := Unmarshal(FormatFromPath(path), data, &v); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return &v, nil
}

// FromConfigMap reads a T stored by ConfigMapWriter in namespace/name.
func FromConfigMap[T any](ctx context.Context, c client.Interface, namespace, name string) (*T, error) {
	cm, err := c.CoreV1().ConfigMaps(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get ConfigMap %s/%s: %w", namespace, name, err)
	}

	format := Format(cm.Data["format"])
	content, ok := cm.Data["report."+format.Extension()]
	if !ok || format.IsUnknown() {
		// fall back to any decodable key
		for _, f := range []Format{FormatYAML, FormatJSON} {
			if content, ok = cm.Data["report."+f.Extension()]; ok {
				format = f
				break
			}
		}
	}
	if !ok {
		return nil, fmt.Errorf("ConfigMap %s/%s has no report data", namespace, name)
	}

	var v T
	if err := Unmarshal(format, []byte(content), &v); err != nil {
		return nil, fmt.Errorf("failed to load ConfigMap %s/%s: %w", namespace, name, err)
	}
	return &v, nil
}
