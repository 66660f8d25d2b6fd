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

	"github.com/NVIDIA/mig-stress/pkg/serializer"
)

// HealthResponse is the body of /health and /ready.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason,omitempty"`
}

// probe returns a GET-only handler reporting up while check holds. /health
// passes a nil check and is always up.
func (s *Server) probe(up string, check func() bool, reason string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, r, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "method not allowed", false, nil)
			return
		}
		if check != nil && !check() {
			serializer.RespondJSON(w, http.StatusServiceUnavailable,
				HealthResponse{Status: "not_" + up, Timestamp: time.Now(), Reason: reason})
			return
		}
		serializer.RespondJSON(w, http.StatusOK, HealthResponse{Status: up, Timestamp: time.Now()})
	}
}
