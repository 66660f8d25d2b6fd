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

package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NVIDIA/mig-stress/pkg/smi"
)

func TestParseQuery(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Sample
		wantErr bool
	}{
		{"typical", "67, 245.31\n", Sample{TemperatureC: 67, PowerW: 245.31}, false},
		{"multi gpu takes first", "40, 60.00\n55, 120.5\n", Sample{TemperatureC: 40, PowerW: 60}, false},
		{"not supported", "51, [N/A]", Sample{TemperatureC: 51}, false},
		{"empty", "  \n", Sample{}, true},
		{"one field", "51", Sample{}, true},
		{"garbage", "hot, 12", Sample{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseQuery(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSMIReader(t *testing.T) {
	var gotArgs []string
	runner := smi.RunnerFunc(func(_ context.Context, _ string, args ...string) ([]byte, error) {
		gotArgs = args
		return []byte("70, 300.0\n"), nil
	})
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	r := NewSMIReader(runner, "1")
	r.Now = func() time.Time { return fixed }

	s, err := r.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Sample{Time: fixed, TemperatureC: 70, PowerW: 300}, s)
	assert.Equal(t, []string{"--query-gpu=temperature.gpu,power.draw", "--format=csv,noheader,nounits", "-i", "1"}, gotArgs)
}

func TestSMIReaderError(t *testing.T) {
	runner := smi.RunnerFunc(func(context.Context, string, ...string) ([]byte, error) {
		return nil, errors.New("boom")
	})
	_, err := NewSMIReader(runner, "").Read(context.Background())
	assert.Error(t, err)
}
