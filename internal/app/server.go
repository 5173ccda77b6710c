// Copyright 2025 The Rivaas Authors
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

package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/scriptrun/scriptrun/internal/applog"
	"github.com/scriptrun/scriptrun/internal/dispatch"
	"github.com/scriptrun/scriptrun/internal/reload"
	"github.com/scriptrun/scriptrun/internal/worker"
)

const defaultShutdownTimeout = 10 * time.Second

// Server owns the TenantSet, worker registry, and a reload coordinator per
// watched tenant, plus the single HTTP listener all tenants share (spec.md
// §3's host-routed dispatch: one process, every tenant multiplexed over one
// address by Host header).
type Server struct {
	Hooks

	Addr            string
	Tenants         *dispatch.TenantSet
	Workers         *worker.Registry
	Logger          applog.Logger
	ShutdownTimeout time.Duration

	coordinators []*reload.Coordinator
	httpServer   *http.Server
}

// New builds a Server ready to have tenants and reload coordinators added
// before Run is called.
func New(addr string, logger applog.Logger) *Server {
	if logger == nil {
		logger = applog.Default
	}
	return &Server{
		Addr:            addr,
		Tenants:         dispatch.NewTenantSet(),
		Workers:         worker.NewRegistry(logger),
		Logger:          logger,
		ShutdownTimeout: defaultShutdownTimeout,
	}
}

// Watch adds a reload.Coordinator for host, started when Run starts the
// server (spec.md §4.6).
func (s *Server) Watch(host, sourceDir string) error {
	c, err := reload.New(host, sourceDir, s.Tenants, s.Workers, s.Logger)
	if err != nil {
		return err
	}
	s.coordinators = append(s.coordinators, c)
	return nil
}

// Run starts the HTTP listener and blocks until ctx is cancelled, then
// drains in-flight requests within ShutdownTimeout. Grounded on the
// teacher's runServer: start in a goroutine, signal readiness, select on
// context cancellation or a listen error, then shut down with a fresh
// timeout context (the original ctx is already done by the time shutdown
// begins, so a child of context.Background carries the grace period).
func (s *Server) Run(ctx context.Context) error {
	if err := s.Hooks.runStart(ctx); err != nil {
		return fmt.Errorf("startup hook failed: %w", err)
	}

	handler := dispatch.NewHandler(s.Tenants, s.Workers, s.Logger)
	s.httpServer = &http.Server{Addr: s.Addr, Handler: handler}

	watchCtx, cancelWatchers := context.WithCancel(context.Background())
	defer cancelWatchers()
	for _, c := range s.coordinators {
		go c.Run(watchCtx)
	}

	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("server failed: %w", err)
	}

	serverErr := make(chan error, 1)
	ready := make(chan struct{})
	go func() {
		s.Logger.Info("server starting", "address", s.Addr)
		close(ready)
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- fmt.Errorf("server failed: %w", err)
		}
	}()

	<-ready
	s.Hooks.runReady()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		s.Logger.Info("server shutting down", "reason", ctx.Err())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.ShutdownTimeout)
	defer cancel()

	s.Hooks.runShutdown(shutdownCtx)

	err = s.httpServer.Shutdown(shutdownCtx)
	s.Hooks.runStop()
	return err
}
