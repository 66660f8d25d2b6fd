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

package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "migstress_http_requests_total",
		Help: "Status server requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "migstress_http_request_duration_seconds",
		Help:    "Status server request latency.",
		Buckets: []float64{.001, .005, .01, .05, .1, .5, 1},
	}, []string{"method", "path"})

	rateLimitRejects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "migstress_rate_limit_rejects_total",
		Help: "Status requests rejected by the rate limiter.",
	})

	panicRecoveries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "migstress_panic_recoveries_total",
		Help: "Panics recovered in status handlers.",
	})
)
