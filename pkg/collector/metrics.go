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

package collector

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	workerOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "migstress_worker_outcomes_total",
			Help: "Total number of finished workers by final status",
		},
		[]string{"kind", "status"},
	)

	roundsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "migstress_rounds_total",
			Help: "Total number of collected rounds by result",
		},
		[]string{"kind", "status"}, // success or failure
	)

	roundDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "migstress_round_collect_duration_seconds",
			Help:    "Time spent waiting for the workers of a round",
			Buckets: []float64{1, 10, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"kind"},
	)
)
