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

package tenantrouter

import (
	"sync/atomic"

	"github.com/scriptrun/scriptrun/internal/config"
)

// Snapshot is the immutable bundle of (path router, bundled script text)
// spec.md §3 calls a TenantRouter: "an immutable bundle of (a) a radix trie
// keyed on PathPattern with leaves of MethodRoute, and (b) the bundled
// script text." Grounded on dino-server/src/router.rs's AppRouter.
type Snapshot struct {
	Router *PathRouter
	Code   string
}

// newSnapshot builds a Snapshot from bundled code and an ordered route
// table, per spec.md §4.1's `build`/`try_new`.
func newSnapshot(code string, patterns []string, byPath map[string][]config.Route) (*Snapshot, error) {
	router, err := BuildPathRouter(patterns, byPath)
	if err != nil {
		return nil, err
	}
	return &Snapshot{Router: router, Code: code}, nil
}

// Swappable holds exactly one live Snapshot and lets readers load it
// wait-free while a writer atomically replaces it (spec.md §3's
// SwappableRouter, §4.2). Grounded on the teacher's router package atomic
// swap pattern (router/atomic_test.go) and on the original's
// `Arc<ArcSwap<AppRouter>>` — Go's atomic.Pointer is the idiomatic
// equivalent of arc-swap's single-slot hazard-free pointer.
type Swappable struct {
	current atomic.Pointer[Snapshot]
}

// New builds the first snapshot and seats it.
func New(code string, patterns []string, byPath map[string][]config.Route) (*Swappable, error) {
	snap, err := newSnapshot(code, patterns, byPath)
	if err != nil {
		return nil, err
	}
	s := &Swappable{}
	s.current.Store(snap)
	return s, nil
}

// Swap builds a new snapshot and atomically replaces the current one.
// Readers that already called Load keep their reference to the old
// snapshot; it is released once the Go garbage collector determines no
// reader holds it, which is the Go analogue of arc-swap's refcounted
// release spec.md §4.2 describes.
func (s *Swappable) Swap(code string, patterns []string, byPath map[string][]config.Route) error {
	snap, err := newSnapshot(code, patterns, byPath)
	if err != nil {
		return err
	}
	s.current.Store(snap)
	return nil
}

// Load returns the current snapshot. Wait-free: a single atomic load, never
// blocking and never observing a half-constructed Snapshot (spec.md §4.2).
func (s *Swappable) Load() *Snapshot {
	return s.current.Load()
}
