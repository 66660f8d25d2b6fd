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

package preflight

import (
	"context"
	"errors"
	"testing"

	"github.com/coreos/go-systemd/v22/dbus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NVIDIA/mig-stress/pkg/collector/host"
	"github.com/NVIDIA/mig-stress/pkg/collector/systemd"
	"github.com/NVIDIA/mig-stress/pkg/smi"
)

func TestParseDriverVersion(t *testing.T) {
	tests := []struct {
		in      string
		major   int
		minor   int
		wantErr bool
	}{
		{in: "535.104.05", major: 535, minor: 104},
		{in: "450.80", major: 450, minor: 80},
		{in: " 550.54.15\n", major: 550, minor: 54},
		{in: "", wantErr: true},
		{in: "535", wantErr: true},
		{in: "abc.1", wantErr: true},
		{in: "535.x", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			v, err := ParseDriverVersion(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.major, v.Major)
			assert.Equal(t, tt.minor, v.Minor)
		})
	}
}

func TestSupportsMIG(t *testing.T) {
	assert.True(t, DriverVersion{Major: 450}.SupportsMIG())
	assert.True(t, DriverVersion{Major: 535}.SupportsMIG())
	assert.False(t, DriverVersion{Major: 440}.SupportsMIG())
}

func driverRunner(out string, err error) smi.Runner {
	return smi.RunnerFunc(func(context.Context, string, ...string) ([]byte, error) {
		return []byte(out), err
	})
}

type fakeConn struct{ units []dbus.UnitStatus }

func (f fakeConn) ListUnitsByNamesContext(context.Context, []string) ([]dbus.UnitStatus, error) {
	return f.units, nil
}

func (fakeConn) Close() {}

func TestRun(t *testing.T) {
	units := systemd.NewCollector([]string{"nvidia-persistenced.service", "nvidia-dcgm.service"})
	units.Connect = func(context.Context) (systemd.Conn, error) {
		return fakeConn{units: []dbus.UnitStatus{
			{Name: "nvidia-persistenced.service", LoadState: "loaded", ActiveState: "active", SubState: "running"},
			{Name: "nvidia-dcgm.service", LoadState: "loaded", ActiveState: "failed", SubState: "failed"},
		}}, nil
	}
	c := &Checker{Runner: driverRunner("535.104.05\n535.104.05\n", nil), Units: units}

	res := c.Run(context.Background())
	require.NotNil(t, res.Driver)
	assert.Equal(t, "535.104.05", res.Driver.String())
	assert.Len(t, res.Units, 2)
	assert.Equal(t, []string{"nvidia-dcgm.service is failed"}, res.Warnings)
}

func TestRunOldDriver(t *testing.T) {
	c := &Checker{Runner: driverRunner("418.87.01", nil)}

	res := c.Run(context.Background())
	require.NotNil(t, res.Driver)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "predates MIG")
}

func TestRunWithoutDriver(t *testing.T) {
	c := &Checker{Runner: driverRunner("", errors.New("nvidia-smi not found"))}

	res := c.Run(context.Background())
	assert.Nil(t, res.Driver)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "not found")
}

func TestRunWithoutSystemd(t *testing.T) {
	units := systemd.NewCollector(nil)
	units.Connect = func(context.Context) (systemd.Conn, error) { return nil, errors.New("no bus") }
	c := &Checker{Runner: driverRunner("550.54.15", nil), Units: units}

	res := c.Run(context.Background())
	assert.Empty(t, res.Warnings)
	assert.Empty(t, res.Units)
}

func TestRunHostModules(t *testing.T) {
	c := &Checker{
		Runner: driverRunner("550.54.15", nil),
		Host: func(context.Context) (*host.Info, error) {
			return &host.Info{OS: "Ubuntu 22.04.4 LTS", Modules: []string{"nvidia_uvm"}}, nil
		},
	}

	res := c.Run(context.Background())
	require.NotNil(t, res.Host)
	assert.Equal(t, "Ubuntu 22.04.4 LTS", res.Host.OS)
	assert.Equal(t, []string{"nvidia kernel module is not loaded"}, res.Warnings)

	c.Host = func(context.Context) (*host.Info, error) {
		return &host.Info{Modules: []string{"nvidia", "nvidia_uvm"}}, nil
	}
	assert.Empty(t, c.Run(context.Background()).Warnings)

	c.Host = func(context.Context) (*host.Info, error) { return nil, errors.New("no procfs") }
	res = c.Run(context.Background())
	assert.Nil(t, res.Host)
	assert.Empty(t, res.Warnings)
}
