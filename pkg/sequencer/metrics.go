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

package sequencer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "migstress_runs_total",
			Help: "Total number of completed runs",
		},
		[]string{"result"}, // success or failure
	)

	kindResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "migstress_kind_results_total",
			Help: "Total number of recorded kind results",
		},
		[]string{"kind", "status"},
	)

	partitionsDiscovered = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "migstress_partitions_discovered",
			Help: "Number of partitions found by the last discovery",
		},
	)

	sequencerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "migstress_sequencer_state",
			Help: "Current sequencer state (0 idle, 1 discover, 2 verify, 3 round, 4 cooldown, 5 summary)",
		},
	)
)

func stateIndex(s State) float64 {
	switch s {
	case StateDiscoverPartitions:
		return 1
	case StateVerifyRuntime:
		return 2
	case StateRunRound:
		return 3
	case StateCooldown:
		return 4
	case StateFinalSummary:
		return 5
	default:
		return 0
	}
}
