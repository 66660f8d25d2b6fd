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

package systemd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/coreos/go-systemd/v22/dbus"
)

// DefaultServices are the NVIDIA host services inspected when none are configured.
var DefaultServices = []string{
	"nvidia-persistenced.service",
	"nvidia-fabricmanager.service",
	"nvidia-dcgm.service",
}

// UnitState is the load and run state of one unit.
type UnitState struct {
	Name        string `json:"name" yaml:"name"`
	LoadState   string `json:"loadState" yaml:"loadState"`
	ActiveState string `json:"activeState" yaml:"activeState"`
	SubState    string `json:"subState" yaml:"subState"`
}

// Active reports whether the unit is running.
func (u UnitState) Active() bool {
	return u.ActiveState == "active"
}

// Installed reports whether systemd knows the unit.
func (u UnitState) Installed() bool {
	return u.LoadState != "" && u.LoadState != "not-found"
}

// Conn is the subset of the systemd D-Bus connection used by the collector.
type Conn interface {
	ListUnitsByNamesContext(ctx context.Context, units []string) ([]dbus.UnitStatus, error)
	Close()
}

// ConnectFunc opens a systemd connection.
type ConnectFunc func(ctx context.Context) (Conn, error)

func connectSystemd(ctx context.Context) (Conn, error) {
	return dbus.NewSystemdConnectionContext(ctx)
}

// Collector gathers the state of systemd services.
type Collector struct {
	Services []string
	Connect  ConnectFunc
}

// NewCollector returns a collector for services, or DefaultServices when empty.
func NewCollector(services []string) *Collector {
	if len(services) == 0 {
		services = DefaultServices
	}
	return &Collector{Services: services, Connect: connectSystemd}
}

// Collect returns one state per configured service, in configuration order.
func (c *Collector) Collect(ctx context.Context) ([]UnitState, error) {
	connect := c.Connect
	if connect == nil {
		connect = connectSystemd
	}

	conn, err := connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to systemd: %w", err)
	}
	defer conn.Close()

	statuses, err := conn.ListUnitsByNamesContext(ctx, c.Services)
	if err != nil {
		return nil, fmt.Errorf("failed to list units: %w", err)
	}

	byName := make(map[string]dbus.UnitStatus, len(statuses))
	for _, s := range statuses {
		byName[s.Name] = s
	}

	units := make([]UnitState, 0, len(c.Services))
	for _, name := range c.Services {
		s, ok := byName[name]
		if !ok {
			units = append(units, UnitState{Name: name, LoadState: "not-found", ActiveState: "inactive", SubState: "dead"})
			continue
		}
		units = append(units, UnitState{
			Name:        name,
			LoadState:   s.LoadState,
			ActiveState: s.ActiveState,
			SubState:    s.SubState,
		})
		slog.Debug("unit state", "unit", name, "load", s.LoadState, "active", s.ActiveState)
	}
	return units, nil
}
