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

// Package dispatch implements the per-request HTTP pipeline (spec.md §4.5):
// host lookup, path+method match against the tenant's router snapshot,
// request marshalling, a worker round trip, and response reconstruction.
// Grounded on original_source/dino-server/src/lib.rs's handler/assemble_req,
// reworked from axum extractors into net/http's ResponseWriter/Request
// shape, matching the teacher's app/server.go handler style.
package dispatch

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/scriptrun/scriptrun/internal/apperror"
	"github.com/scriptrun/scriptrun/internal/applog"
	"github.com/scriptrun/scriptrun/internal/config"
	"github.com/scriptrun/scriptrun/internal/scriptengine"
	"github.com/scriptrun/scriptrun/internal/tenantrouter"
	"github.com/scriptrun/scriptrun/internal/worker"
)

// TenantSet maps each host to its SwappableRouter. It holds routing state
// only, mirroring the teacher/original split between routing state and worker
// state (dino-server/src/lib.rs's AppState keeps these as two maps; here
// the routers live in TenantSet and the workers in *worker.Registry, wired
// together at Spawn/Replace time by the host key they share).
type TenantSet struct {
	routers map[string]*tenantrouter.Swappable
}

// NewTenantSet builds an empty set; tenants are added with Add.
func NewTenantSet() *TenantSet {
	return &TenantSet{routers: make(map[string]*tenantrouter.Swappable)}
}

// Add registers host's SwappableRouter, replacing any existing entry.
func (t *TenantSet) Add(host string, sw *tenantrouter.Swappable) {
	t.routers[host] = sw
}

// Lookup returns the SwappableRouter registered for host.
func (t *TenantSet) Lookup(host string) (*tenantrouter.Swappable, bool) {
	sw, ok := t.routers[host]
	return sw, ok
}

// Handler is the single HTTP entry point for every tenant, matching the
// original's `Router::new().route("/{*path}", any(handler))` catch-all.
type Handler struct {
	Tenants  *TenantSet
	Workers  *worker.Registry
	Logger   applog.Logger
	Recorder *Recorder
}

func NewHandler(tenants *TenantSet, workers *worker.Registry, logger applog.Logger) *Handler {
	return &Handler{Tenants: tenants, Workers: workers, Logger: logger, Recorder: NewRecorder()}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	host := hostOnly(r.Host)
	ctx, finish := h.Recorder.start(r.Context(), host, strings.ToUpper(r.Method), r.URL.Path)
	r = r.WithContext(ctx)

	resp, handler, err := h.dispatch(r, host)
	if err != nil {
		status := writeError(w, err, applog.FromContext(ctx, h.Logger))
		finish(handler, status, err)
		return
	}
	writeResponse(w, resp)
	finish(handler, resp.Status, nil)
}

func hostOnly(hostHeader string) string {
	if idx := strings.LastIndex(hostHeader, ":"); idx != -1 {
		// Guard against bare IPv6 literals (e.g. "[::1]") which contain
		// colons that are not a port separator.
		if !strings.Contains(hostHeader[idx:], "]") {
			return hostHeader[:idx]
		}
	}
	return hostHeader
}

// dispatch returns the matched handler name alongside the response so
// ServeHTTP's Recorder.start finish closure can tag the span/metrics with
// it even on a path/method-miss error, where handler is simply "".
func (h *Handler) dispatch(r *http.Request, host string) (scriptengine.Resp, string, error) {
	sw, ok := h.Tenants.Lookup(host)
	if !ok {
		return scriptengine.Resp{}, "", apperror.New(apperror.KindHostNotFound, host)
	}

	snapshot := sw.Load()
	method, err := config.ParseMethod(r.Method)
	if err != nil {
		return scriptengine.Resp{}, "", apperror.New(apperror.KindRouteMethodNotAllowed, r.Method)
	}

	matched, err := snapshot.Router.Match(method, r.URL.Path)
	if err != nil {
		return scriptengine.Resp{}, "", err
	}

	req, err := assembleRequest(r, matched)
	if err != nil {
		return scriptengine.Resp{}, matched.Handler, err
	}

	// Workers.Send (not a separate Lookup+Send) closes the narrow race where
	// this host's worker is replaced between finding it and handing it the
	// message; see Registry.Send and Registry.Replace.
	msg, replyCh := worker.NewRequestMessage(req, matched.Handler)
	if err := h.Workers.Send(host, msg); err != nil {
		return scriptengine.Resp{}, matched.Handler, err
	}
	reply := <-replyCh
	if reply.Err != nil {
		return scriptengine.Resp{}, matched.Handler, reply.Err
	}
	return reply.Resp, matched.Handler, nil
}

// assembleRequest builds the interpreter-bound Req value (spec.md §4.5
// step 4): full URI as url, canonical uppercase method, headers forwarded
// (per SPEC_FULL.md's Open Question resolution), last-wins query params,
// path capture params, and a UTF-8-decoded optional body.
func assembleRequest(r *http.Request, matched tenantrouter.MatchResult) (scriptengine.Req, error) {
	headers := map[string]string{}
	for k := range r.Header {
		headers[k] = r.Header.Get(k)
	}

	query := map[string]string{}
	for k, vs := range r.URL.Query() {
		if len(vs) > 0 {
			query[k] = vs[len(vs)-1]
		}
	}

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return scriptengine.Req{}, apperror.Wrap(apperror.KindBodyDecodeError, "reading request body", err)
	}
	var body *string
	if len(raw) > 0 {
		if !utf8.Valid(raw) {
			return scriptengine.Req{}, apperror.New(apperror.KindBodyDecodeError, "request body is not valid UTF-8")
		}
		s := string(raw)
		body = &s
	}

	return scriptengine.Req{
		Headers: headers,
		Query:   query,
		Params:  matched.Params,
		Body:    body,
		URL:     r.URL.String(),
		Method:  strings.ToUpper(r.Method),
	}, nil
}

func writeResponse(w http.ResponseWriter, resp scriptengine.Resp) {
	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(resp.Status)
	if resp.Body != nil {
		_, _ = io.WriteString(w, *resp.Body)
	}
}

func writeError(w http.ResponseWriter, err error, logger applog.Logger) int {
	status := apperror.KindOf(err)
	var ae *apperror.Error
	httpStatus := http.StatusInternalServerError
	if errors.As(err, &ae) {
		httpStatus = ae.HTTPStatus()
	}

	switch httpStatus {
	case http.StatusNotFound:
		logger.Debug("request not served", "error", err.Error(), "kind", status)
	case http.StatusMethodNotAllowed:
		logger.Debug("method not allowed", "error", err.Error(), "kind", status)
	default:
		logger.Error("request failed", "error", err.Error(), "kind", status)
	}

	w.WriteHeader(httpStatus)
	if httpStatus == http.StatusInternalServerError {
		_, _ = io.WriteString(w, err.Error())
	}
	return httpStatus
}
