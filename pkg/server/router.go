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
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/NVIDIA/mig-stress/pkg/header"
	"github.com/NVIDIA/mig-stress/pkg/sequencer"
	"github.com/NVIDIA/mig-stress/pkg/serializer"
)

// StatusDocument is the body of GET /v1/status.
type StatusDocument struct {
	header.Header `json:",inline" yaml:",inline"`

	Status sequencer.Status `json:"status" yaml:"status"`
}

func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleDefault)

	// System endpoints (no rate limiting)
	mux.HandleFunc("/health", s.probe("healthy", nil, ""))
	mux.HandleFunc("/ready", s.probe("ready", s.Ready, "run is not in progress"))
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/v1/status", s.withMiddleware(s.handleStatus))

	return mux
}

func (s *Server) handleDefault(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeError(w, r, http.StatusNotFound, ErrCodeNotFound, "no such route", false,
			map[string]any{"path": r.URL.Path})
		return
	}

	serializer.RespondJSON(w, http.StatusOK, struct {
		Name      string   `json:"name"`
		Version   string   `json:"version"`
		Ready     bool     `json:"ready"`
		Timestamp string   `json:"timestamp"`
		Routes    []string `json:"routes"`
	}{
		Name:      Name,
		Version:   s.version,
		Ready:     s.Ready(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Routes: []string{
			"GET /v1/status",
			"GET /metrics",
			"GET /health",
			"GET /ready",
		},
	})
}

// handleStatus handles GET /v1/status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "method not allowed", false, nil)
		return
	}
	if s.status == nil {
		writeError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable,
			"no run attached", true, nil)
		return
	}
	doc := StatusDocument{Status: s.status.Status()}
	doc.Init(header.KindRunStatus, s.version)
	if doc.Status.RunID != "" {
		doc.Set("runID", doc.Status.RunID)
	}
	serializer.RespondJSON(w, http.StatusOK, doc)
}
