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

package worker

import (
	"sync"

	"github.com/scriptrun/scriptrun/internal/apperror"
	"github.com/scriptrun/scriptrun/internal/applog"
)

// Registry maps a tenant host to its current ScriptWorker (spec.md §3's
// WorkerRegistry). Grounded on original_source/dino-server/src/lib.rs's
// AppState.workers (a DashMap<String, Sender<WorkerMessage>>); Go has no
// built-in concurrent map with DashMap's sharded-lock behavior in the
// standard library, so a RWMutex-guarded map is the idiomatic substitute —
// lookups are the hot path and take the read lock only.
type Registry struct {
	mu      sync.RWMutex
	workers map[string]*ScriptWorker
	logger  applog.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry(logger applog.Logger) *Registry {
	return &Registry{workers: make(map[string]*ScriptWorker), logger: logger}
}

// Spawn starts a worker for host and inserts it, per spec.md §4.1's initial
// bring-up (one worker per tenant at startup).
func (r *Registry) Spawn(host string, bundle string) error {
	w, err := Spawn(host, bundle, applog.WithHost(r.logger, host))
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.workers[host] = w
	r.mu.Unlock()
	return nil
}

// Lookup returns the current worker for host. Non-blocking and
// contention-light: a single RLock (spec.md §3's lookup requirement).
func (r *Registry) Lookup(host string) (*ScriptWorker, bool) {
	r.mu.RLock()
	w, ok := r.workers[host]
	r.mu.RUnlock()
	return w, ok
}

// Send looks up host's worker and enqueues msg on it, holding the registry's
// read lock across the lookup and the worker's BeginSend so that a
// concurrent Replace can never swap the map entry and call Shutdown in the
// gap between "found the worker" and "the message is on its way in" (spec.md
// §8's boundary case: "Request arriving during Shutdown processing of an old
// worker is routed to the new worker (not dropped)" also covers the caller
// that captured the *old* worker a moment before Replace ran). The enqueue
// itself happens after the lock is released, matching Lookup's contention
// profile on the hot path; BeginSend/EndSend is what lets Replace wait for
// it safely (see Replace below).
func (r *Registry) Send(host string, msg Message) error {
	r.mu.RLock()
	w, ok := r.workers[host]
	if ok {
		w.BeginSend()
	}
	r.mu.RUnlock()
	if !ok {
		return ErrWorkerMissing
	}

	w.Send(msg)
	w.EndSend()
	return nil
}

// Replace spawns a new worker carrying bundle, atomically swaps it into the
// map under host, then sends Shutdown to the worker it replaced (spec.md
// §3's replace: "atomically insert the new inbox under host, obtaining the
// old one; send Shutdown on the old inbox"). The new worker is live and
// reachable via Lookup before the old one is told to stop, so no request is
// ever dropped between the two steps.
//
// Between the map swap and Shutdown, prev.inflight.Wait() blocks until every
// Send call that already grabbed prev under the old mapping (their
// BeginSend happened-before this Lock, by RWMutex exclusion) has finished
// enqueueing its message. No Send started after the swap can ever see prev
// again, so once Wait returns it is safe to tell prev to stop: every message
// anyone was ever going to hand it is already sitting in its inbox.
func (r *Registry) Replace(host string, bundle string) error {
	next, err := Spawn(host, bundle, applog.WithHost(r.logger, host))
	if err != nil {
		return err
	}

	r.mu.Lock()
	prev := r.workers[host]
	r.workers[host] = next
	r.mu.Unlock()

	if prev != nil {
		prev.inflight.Wait()
		prev.Shutdown()
	}
	return nil
}

// Remove shuts down and forgets the worker for host, if any. Used when a
// tenant is deleted from configuration entirely. Waits out in-flight sends
// for the same reason Replace does.
func (r *Registry) Remove(host string) {
	r.mu.Lock()
	w, ok := r.workers[host]
	delete(r.workers, host)
	r.mu.Unlock()

	if ok {
		w.inflight.Wait()
		w.Shutdown()
	}
}

// ErrWorkerMissing is returned by the dispatcher when a matched route has no
// worker registered for its host, an internal-inconsistency case (spec.md
// §4.5's WorkerMissing).
var ErrWorkerMissing = apperror.New(apperror.KindWorkerMissing, "no worker registered for this host")
