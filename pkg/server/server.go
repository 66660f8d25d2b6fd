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
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/NVIDIA/mig-stress/pkg/logging"
	"github.com/NVIDIA/mig-stress/pkg/sequencer"
)

// Name identifies the server in the index response.
const Name = "migstress-status"

// StatusProvider reports the live state of a run.
type StatusProvider interface {
	Status() sequencer.Status
}

// Server exposes run status and metrics over HTTP.
type Server struct {
	config      *Config
	httpServer  *http.Server
	rateLimiter *rate.Limiter
	status      StatusProvider
	version     string

	mu    sync.RWMutex
	ready bool
}

// Option configures a Server.
type Option func(*Server)

// WithStatus attaches the run whose state /v1/status reports.
func WithStatus(p StatusProvider) Option {
	return func(s *Server) {
		s.status = p
	}
}

// WithVersion sets the version shown on the index route.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// New creates a server. A nil config listens on defaults.
func New(config *Config, opts ...Option) *Server {
	if config == nil {
		config = NewConfig(":9400")
	}

	s := &Server{
		config:      config,
		rateLimiter: rate.NewLimiter(config.RateLimit, config.RateLimitBurst),
		version:     "dev",
	}
	for _, o := range opts {
		o(s)
	}

	s.httpServer = &http.Server{
		Addr:         config.Address,
		Handler:      s.setupRoutes(),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
		ErrorLog:     logging.NewLogLogger(slog.LevelWarn, false),
	}
	return s
}

// Handler returns the routed handler, for embedding or tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// SetReady marks the server as ready to serve traffic
func (s *Server) SetReady(ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = ready
}

// Ready reports the readiness flag.
func (s *Server) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// Serve listens on the configured address and serves until ctx is done,
// then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Address, err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves on ln until ctx is done.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	slog.Info("status server listening", "address", ln.Addr().String())
	s.SetReady(true)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("status server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return s.shutdown()
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Debug("status server stopped")
	return nil
}

func (s *Server) shutdown() error {
	s.SetReady(false)

	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("status server shutdown failed: %w", err)
	}
	return nil
}
