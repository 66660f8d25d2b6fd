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

// Package server exposes the state of a running suite over HTTP.
//
// Routes:
//
//	GET /           index with name, version and routes
//	GET /health     liveness
//	GET /ready      503 until the run starts
//	GET /metrics    Prometheus metrics of the harness
//	GET /v1/status  current state, kind and round progress
//
// /v1/status is rate limited and carries an X-Request-Id header; errors are
// returned as ErrorResponse JSON bodies.
//
// The server is started next to the sequencer and stops with its context:
//
//	srv := server.New(server.NewConfig(":9400"), server.WithStatus(seq))
//	g.Go(func() error { return srv.Serve(ctx) })
package server
