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

// Package host reads the host facts that matter for GPU stress runs: the
// loaded NVIDIA kernel modules, the OS release and the kernel version.
package host

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/NVIDIA/mig-stress/pkg/collector/file"
)

var (
	filePathModules         = "/proc/modules"
	filePathReleasePrimary  = "/etc/os-release"
	filePathReleaseFallback = "/usr/lib/os-release"
	filePathKernelRelease   = "/proc/sys/kernel/osrelease"
)

// Info is a summary of the host.
type Info struct {
	OS      string   `json:"os,omitempty" yaml:"os,omitempty"`
	Kernel  string   `json:"kernel,omitempty" yaml:"kernel,omitempty"`
	Modules []string `json:"modules,omitempty" yaml:"modules,omitempty"`
}

// HasModule reports whether the named kernel module is loaded.
func (i *Info) HasModule(name string) bool {
	for _, m := range i.Modules {
		if m == name {
			return true
		}
	}
	return false
}

// Collect reads the host facts. Only the module list is required; the OS
// and kernel names are left empty when their files are missing.
func Collect(ctx context.Context) (*Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mods, err := NVIDIAModules(filePathModules)
	if err != nil {
		return nil, err
	}

	release := filePathReleasePrimary
	if _, statErr := os.Stat(release); os.IsNotExist(statErr) {
		release = filePathReleaseFallback
	}
	name, _ := PrettyName(release)

	kernel, _ := os.ReadFile(filePathKernelRelease)

	return &Info{
		OS:      name,
		Kernel:  strings.TrimSpace(string(kernel)),
		Modules: mods,
	}, nil
}

// NVIDIAModules returns the sorted names of loaded modules starting with
// "nvidia" from a /proc/modules formatted file.
func NVIDIAModules(path string) ([]string, error) {
	lines, err := file.NewParser().GetLines(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read kernel modules from %s: %w", path, err)
	}

	mods := make([]string, 0)
	for _, line := range lines {
		// module name is the first field
		fields := strings.Fields(line)
		if len(fields) > 0 && strings.HasPrefix(fields[0], "nvidia") {
			mods = append(mods, fields[0])
		}
	}
	sort.Strings(mods)
	return mods, nil
}

// PrettyName returns PRETTY_NAME, or NAME VERSION_ID, of an os-release file.
func PrettyName(path string) (string, error) {
	lines, err := file.NewParser(file.WithSkipComments(true)).GetLines(path)
	if err != nil {
		return "", fmt.Errorf("failed to read os release from %s: %w", path, err)
	}

	kv := make(map[string]string, len(lines))
	for _, line := range lines {
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		kv[strings.TrimSpace(k)] = strings.Trim(strings.TrimSpace(v), `"'`)
	}

	if name := kv["PRETTY_NAME"]; name != "" {
		return name, nil
	}
	return strings.TrimSpace(kv["NAME"] + " " + kv["VERSION_ID"]), nil
}
