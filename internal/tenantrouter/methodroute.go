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

import "github.com/scriptrun/scriptrun/internal/config"

// MethodRoute maps an HTTP method to the (optional) handler name that
// serves it for one path pattern. Unspecified methods map to "absent".
// Immutable once constructed, mirroring dino-server/src/router.rs's
// MethodRoute struct (one Option<String> field per method).
type MethodRoute struct {
	handlers map[config.Method]string
}

func newMethodRoute(routes []config.Route) MethodRoute {
	mr := MethodRoute{handlers: make(map[config.Method]string, len(routes))}
	for _, r := range routes {
		// Last one wins if a pattern lists the same method twice; the config
		// loader does not reject this, matching the Rust original's bare
		// struct-field assignment (`method_route.get = Some(method.handler)`),
		// which has the same last-write-wins behavior.
		mr.handlers[r.Method] = r.Handler
	}
	return mr
}

// Get returns the handler name bound to method, or "" and false if the
// method is not permitted on this path.
func (mr MethodRoute) Get(method config.Method) (string, bool) {
	h, ok := mr.handlers[method]
	return h, ok
}
