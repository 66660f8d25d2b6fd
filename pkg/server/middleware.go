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
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const headerRequestID = "X-Request-Id"

// withMiddleware wraps a polled route: observe, tag with a request ID,
// recover panics, then rate limit.
func (s *Server) withMiddleware(h http.HandlerFunc) http.HandlerFunc {
	return observe(withRequestID(recoverPanic(s.limit(h))))
}

// observe records request metrics and a debug line once the handler returns.
func observe(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := newResponseWriter(w)
		next.ServeHTTP(rw, r)

		elapsed := time.Since(start)
		status := rw.Status()
		httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(elapsed.Seconds())
		slog.Debug("status request",
			"requestID", rw.Header().Get(headerRequestID),
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"duration", elapsed.String())
	}
}

// withRequestID keeps a caller-supplied UUID request ID or assigns a new one.
func withRequestID(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(headerRequestID, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKeyRequestID, id)))
	}
}

func recoverPanic(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			panicRecoveries.Inc()
			slog.Error("status handler panicked", "error", fmt.Sprint(rec), "path", r.URL.Path,
				"requestID", r.Context().Value(contextKeyRequestID))
			writeError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "internal server error", true, nil)
		}()
		next.ServeHTTP(w, r)
	}
}

// limit rejects requests over the configured rate with 429 and Retry-After.
func (s *Server) limit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.rateLimiter.Allow() {
			next.ServeHTTP(w, r)
			return
		}
		rateLimitRejects.Inc()
		w.Header().Set("Retry-After", "1")
		writeError(w, r, http.StatusTooManyRequests, ErrCodeRateLimitExceeded, "too many status requests", true,
			map[string]any{"limit": float64(s.config.RateLimit), "burst": s.config.RateLimitBurst})
	}
}
