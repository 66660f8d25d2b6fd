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

package launcher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	workerSpawnTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "migstress_worker_spawn_total",
			Help: "Total number of worker spawn attempts",
		},
		[]string{"kind", "result"}, // started or error
	)

	workerStopSignals = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "migstress_worker_stop_signals_total",
			Help: "Total number of stop signals sent to workers",
		},
		[]string{"signal"}, // term or kill
	)

	workersRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "migstress_workers_running",
			Help: "Number of worker processes currently running",
		},
	)
)
