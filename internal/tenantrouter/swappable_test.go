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
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scriptrun/scriptrun/internal/config"
)

// Mirrors original_source/dino-server/src/router.rs's app_router_swap_should_work.
func TestSwappable_SwapReplacesWholesale(t *testing.T) {
	patterns := []string{"/api/hello/{id}", "/api/goodbye/{name}"}
	byPath := map[string][]config.Route{
		"/api/hello/{id}":    {{Method: config.MethodGET, Handler: "hello"}},
		"/api/goodbye/{name}": {{Method: config.MethodPOST, Handler: "hello"}},
	}
	sw, err := New("v1", patterns, byPath)
	require.NoError(t, err)

	snap := sw.Load()
	res, err := snap.Router.Match(config.MethodGET, "/api/hello/1")
	require.NoError(t, err)
	require.Equal(t, "hello", res.Handler)
	require.Equal(t, "v1", snap.Code)

	newByPath := map[string][]config.Route{
		"/api/hello/{id}":    {{Method: config.MethodGET, Handler: "hello2"}},
		"/api/goodbye/{name}": {{Method: config.MethodPOST, Handler: "handler2"}},
	}
	require.NoError(t, sw.Swap("v2", patterns, newByPath))

	snap2 := sw.Load()
	res, err = snap2.Router.Match(config.MethodGET, "/api/hello/1")
	require.NoError(t, err)
	require.Equal(t, "hello2", res.Handler)
	require.Equal(t, "v2", snap2.Code)

	res, err = snap2.Router.Match(config.MethodPOST, "/api/goodbye/2")
	require.NoError(t, err)
	require.Equal(t, "handler2", res.Handler)
}

// A reader that loaded the snapshot before Swap keeps using the pre-swap
// snapshot for the rest of its request, per spec.md §4.2's concurrency
// contract.
func TestSwappable_InFlightReaderSeesPreSwapSnapshot(t *testing.T) {
	patterns := []string{"/h"}
	byPath := map[string][]config.Route{"/h": {{Method: config.MethodGET, Handler: "v1"}}}
	sw, err := New("v1code", patterns, byPath)
	require.NoError(t, err)

	preSwap := sw.Load()

	require.NoError(t, sw.Swap("v2code", patterns, map[string][]config.Route{
		"/h": {{Method: config.MethodGET, Handler: "v2"}},
	}))

	res, err := preSwap.Router.Match(config.MethodGET, "/h")
	require.NoError(t, err)
	require.Equal(t, "v1", res.Handler)
	require.Equal(t, "v1code", preSwap.Code)

	postSwap := sw.Load()
	res, err = postSwap.Router.Match(config.MethodGET, "/h")
	require.NoError(t, err)
	require.Equal(t, "v2", res.Handler)
}

// Concurrent Load()s never observe a half-constructed snapshot: every
// reader must see a Snapshot whose Code and Router agree with one another
// (they were built together by New/Swap).
func TestSwappable_ConcurrentLoadNeverTorn(t *testing.T) {
	patterns := []string{"/h"}
	sw, err := New("0", patterns, map[string][]config.Route{
		"/h": {{Method: config.MethodGET, Handler: "h0"}},
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	stop := make(chan struct{})

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap := sw.Load()
				res, err := snap.Router.Match(config.MethodGET, "/h")
				require.NoError(t, err)
				// The handler name and the code must come from the same
				// generation; "hN" must pair with code "N".
				require.Equal(t, "h"+snap.Code, res.Handler)
			}
		}()
	}

	for i := 1; i <= 100; i++ {
		code := string(rune('0' + i%10))
		require.NoError(t, sw.Swap(code, patterns, map[string][]config.Route{
			"/h": {{Method: config.MethodGET, Handler: "h" + code}},
		}))
	}
	close(stop)
	wg.Wait()
}
