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

package dispatch

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scriptrun/scriptrun/internal/applog"
	"github.com/scriptrun/scriptrun/internal/config"
	"github.com/scriptrun/scriptrun/internal/tenantrouter"
	"github.com/scriptrun/scriptrun/internal/worker"
)

const helloBundle = `
(function(){
	async function hello(req){
		return {
			status:200,
			headers:{"content-type":"application/json"},
			body: JSON.stringify(req),
		};
	}
	return {hello:hello};
})();
`

func newTestHandler(t *testing.T, host string) (*Handler, *worker.Registry) {
	t.Helper()
	patterns := []string{"/api/hello/{id}"}
	byPath := map[string][]config.Route{
		"/api/hello/{id}": {{Method: config.MethodGET, Handler: "hello"}},
	}
	sw, err := tenantrouter.New("v1", patterns, byPath)
	require.NoError(t, err)

	tenants := NewTenantSet()
	tenants.Add(host, sw)

	workers := worker.NewRegistry(applog.Noop())
	require.NoError(t, workers.Spawn(host, helloBundle))

	return NewHandler(tenants, workers, applog.Noop()), workers
}

// Scenario 1 from spec.md §9.
func TestHandler_HappyPathReturnsHandlerResponse(t *testing.T) {
	h, _ := newTestHandler(t, "tenant-a.example.com")

	req := httptest.NewRequest(http.MethodGet, "/api/hello/42", nil)
	req.Host = "tenant-a.example.com"
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("content-type"))
	require.Contains(t, rec.Body.String(), `"id":"42"`)
}

// Scenario 2 from spec.md §9: POST against a GET-only route is 405.
func TestHandler_MethodNotAllowedIs405(t *testing.T) {
	h, _ := newTestHandler(t, "tenant-a.example.com")

	req := httptest.NewRequest(http.MethodPost, "/api/hello/42", nil)
	req.Host = "tenant-a.example.com"
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	require.Empty(t, rec.Body.String())
}

func TestHandler_UnknownHostIs404(t *testing.T) {
	h, _ := newTestHandler(t, "tenant-a.example.com")

	req := httptest.NewRequest(http.MethodGet, "/api/hello/42", nil)
	req.Host = "unregistered.example.com"
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_UnknownPathIs404(t *testing.T) {
	h, _ := newTestHandler(t, "tenant-a.example.com")

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	req.Host = "tenant-a.example.com"
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

// Headers must be forwarded per SPEC_FULL.md's Open Question resolution.
func TestHandler_ForwardsRequestHeaders(t *testing.T) {
	h, _ := newTestHandler(t, "tenant-a.example.com")

	req := httptest.NewRequest(http.MethodGet, "/api/hello/42", nil)
	req.Host = "tenant-a.example.com"
	req.Header.Set("X-Request-Id", "abc-123")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "abc-123")
}

func TestHostOnly_StripsPort(t *testing.T) {
	require.Equal(t, "example.com", hostOnly("example.com:8080"))
	require.Equal(t, "example.com", hostOnly("example.com"))
}

func TestHandler_NonUTF8BodyIs500(t *testing.T) {
	h, _ := newTestHandler(t, "tenant-a.example.com")

	body := []byte{0xff, 0xfe, 0xfd}
	req := httptest.NewRequest(http.MethodGet, "/api/hello/42", strings.NewReader(string(body)))
	req.Host = "tenant-a.example.com"
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}
