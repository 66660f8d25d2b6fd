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

// Package preflight inspects the host before a run: the NVIDIA driver version
// and the state of NVIDIA systemd services. Findings are informational and
// never stop a run.
package preflight

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/NVIDIA/mig-stress/pkg/collector/host"
	"github.com/NVIDIA/mig-stress/pkg/collector/systemd"
	"github.com/NVIDIA/mig-stress/pkg/defaults"
	"github.com/NVIDIA/mig-stress/pkg/smi"
)

// MinDriverMajor is the first driver branch with MIG support.
const MinDriverMajor = 450

// DriverVersion is an NVIDIA driver version such as 535.104.05.
type DriverVersion struct {
	Major int    `json:"major" yaml:"major"`
	Minor int    `json:"minor" yaml:"minor"`
	Raw   string `json:"raw" yaml:"raw"`
}

// String returns the version as reported by the driver.
func (v DriverVersion) String() string {
	return v.Raw
}

// SupportsMIG reports whether the driver branch supports MIG.
func (v DriverVersion) SupportsMIG() bool {
	return v.Major >= MinDriverMajor
}

// ParseDriverVersion parses "<major>.<minor>[.<patch>]". Only major and minor
// are numeric in every driver release.
func ParseDriverVersion(s string) (DriverVersion, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DriverVersion{}, fmt.Errorf("empty driver version")
	}
	parts := strings.Split(s, ".")
	if len(parts) < 2 {
		return DriverVersion{}, fmt.Errorf("invalid driver version %q", s)
	}
	major, err := strconv.Atoi(parts[0])
	if err != nil || major < 0 {
		return DriverVersion{}, fmt.Errorf("invalid driver major version in %q", s)
	}
	minor, err := strconv.Atoi(parts[1])
	if err != nil || minor < 0 {
		return DriverVersion{}, fmt.Errorf("invalid driver minor version in %q", s)
	}
	return DriverVersion{Major: major, Minor: minor, Raw: s}, nil
}

// Result is what the checks found.
type Result struct {
	Driver   *DriverVersion      `json:"driver,omitempty" yaml:"driver,omitempty"`
	Host     *host.Info          `json:"host,omitempty" yaml:"host,omitempty"`
	Units    []systemd.UnitState `json:"units,omitempty" yaml:"units,omitempty"`
	Warnings []string            `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

func (r *Result) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	slog.Warn("preflight", "finding", msg)
	r.Warnings = append(r.Warnings, msg)
}

// Checker runs the preflight checks. A nil Units collector skips the
// service check and a nil Host skips the kernel module check.
type Checker struct {
	Runner smi.Runner
	Units  *systemd.Collector
	Host   func(context.Context) (*host.Info, error)
}

// NewChecker returns a checker using r (the exec runner when nil) and the
// default NVIDIA services.
func NewChecker(r smi.Runner) *Checker {
	if r == nil {
		r = smi.Default()
	}
	return &Checker{Runner: r, Units: systemd.NewCollector(nil), Host: host.Collect}
}

// Run performs every check and returns the findings.
func (c *Checker) Run(ctx context.Context) *Result {
	ctx, cancel := context.WithTimeout(ctx, defaults.PreflightTimeout)
	defer cancel()

	res := &Result{}
	c.checkDriver(ctx, res)
	c.checkHost(ctx, res)
	c.checkUnits(ctx, res)
	return res
}

func (c *Checker) checkDriver(ctx context.Context, res *Result) {
	out, err := c.Runner.Run(ctx, smi.Command, "--query-gpu=driver_version", "--format=csv,noheader")
	if err != nil {
		res.warn("driver version unavailable: %v", err)
		return
	}
	// one line per GPU, all on the same driver
	line, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	v, err := ParseDriverVersion(line)
	if err != nil {
		res.warn("%v", err)
		return
	}
	res.Driver = &v
	if !v.SupportsMIG() {
		res.warn("driver %s predates MIG support (R%d)", v, MinDriverMajor)
	}
}

func (c *Checker) checkHost(ctx context.Context, res *Result) {
	if c.Host == nil {
		return
	}
	info, err := c.Host(ctx)
	if err != nil {
		slog.Debug("host facts unavailable", "error", err)
		return
	}
	res.Host = info
	if !info.HasModule("nvidia") {
		res.warn("nvidia kernel module is not loaded")
	}
}

func (c *Checker) checkUnits(ctx context.Context, res *Result) {
	if c.Units == nil {
		return
	}
	units, err := c.Units.Collect(ctx)
	if err != nil {
		slog.Debug("systemd unavailable", "error", err)
		return
	}
	res.Units = units
	for _, u := range units {
		if u.Installed() && !u.Active() {
			res.warn("%s is %s", u.Name, u.ActiveState)
		}
	}
}
