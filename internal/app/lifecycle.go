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

// Package app wires TenantSet, worker.Registry, and reload.Coordinators
// into a runnable HTTP server with the teacher's lifecycle-hook shape
// (OnStart/OnReady/OnShutdown/OnStop), grounded on
// _teacher_ref/lifecycle.go and _teacher_ref/server.go's runServer.
package app

import (
	"context"
	"sync"
)

// Hooks mirrors the teacher's app.Hooks: sequential fail-fast OnStart,
// best-effort OnReady, LIFO OnShutdown, best-effort OnStop.
type Hooks struct {
	mu         sync.Mutex
	onStart    []func(context.Context) error
	onReady    []func()
	onShutdown []func(context.Context)
	onStop     []func()
}

// OnStart registers a hook run sequentially before the listener starts;
// the first error aborts startup.
func (h *Hooks) OnStart(fn func(context.Context) error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onStart = append(h.onStart, fn)
}

// OnReady registers a hook run once the listener is accepting connections.
func (h *Hooks) OnReady(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onReady = append(h.onReady, fn)
}

// OnShutdown registers a hook run in LIFO order during graceful shutdown.
func (h *Hooks) OnShutdown(fn func(context.Context)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onShutdown = append(h.onShutdown, fn)
}

// OnStop registers a best-effort hook run after the server has fully
// stopped; panics are recovered and swallowed, matching the teacher's
// "OnStop hooks run in best-effort mode" contract.
func (h *Hooks) OnStop(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onStop = append(h.onStop, fn)
}

func (h *Hooks) runStart(ctx context.Context) error {
	h.mu.Lock()
	hooks := append([]func(context.Context) error(nil), h.onStart...)
	h.mu.Unlock()

	for _, fn := range hooks {
		if err := fn(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (h *Hooks) runReady() {
	h.mu.Lock()
	hooks := append([]func()(nil), h.onReady...)
	h.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}

func (h *Hooks) runShutdown(ctx context.Context) {
	h.mu.Lock()
	hooks := append([]func(context.Context)(nil), h.onShutdown...)
	h.mu.Unlock()

	for i := len(hooks) - 1; i >= 0; i-- {
		hooks[i](ctx)
	}
}

func (h *Hooks) runStop() {
	h.mu.Lock()
	hooks := append([]func()(nil), h.onStop...)
	h.mu.Unlock()

	for _, fn := range hooks {
		runBestEffort(fn)
	}
}

func runBestEffort(fn func()) {
	defer func() { _ = recover() }()
	fn()
}
