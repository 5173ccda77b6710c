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

// Package scriptengine hosts one embedded JavaScript interpreter and the
// conversion between HTTP-shaped request/response values and interpreter
// values (spec.md §4.7). Grounded on original_source/dino-server/src/engine.rs
// and dino/src/engine.rs's JsWorker: try_new evaluates the bundle once and
// keeps the returned `handlers` object live; run looks up a handler by name,
// calls it with the marshalled request, and awaits its promise to
// completion. rquickjs's Promise::finish has no goja equivalent, so handler
// results are settled through a small JS trampoline (see trampolineSrc)
// wired to two native callbacks, which is the idiomatic way to drive a
// goja_nodejs event loop to completion synchronously.
package scriptengine

import (
	"fmt"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"

	"github.com/scriptrun/scriptrun/internal/apperror"
	"github.com/scriptrun/scriptrun/internal/applog"
)

// Req is the request value shipped into the interpreter (spec.md §4.7's
// outbound marshalling): {headers, query, params, body, url, method}.
type Req struct {
	Headers map[string]string
	Query   map[string]string
	Params  map[string]string
	Body    *string
	URL     string
	Method  string
}

func (r Req) toJS() map[string]interface{} {
	headers := r.Headers
	if headers == nil {
		headers = map[string]string{}
	}
	query := r.Query
	if query == nil {
		query = map[string]string{}
	}
	params := r.Params
	if params == nil {
		params = map[string]string{}
	}
	var body interface{}
	if r.Body != nil {
		body = *r.Body
	}
	return map[string]interface{}{
		"headers": headers,
		"query":   query,
		"params":  params,
		"body":    body,
		"url":     r.URL,
		"method":  r.Method,
	}
}

// Resp is the response value read back out of the interpreter (spec.md
// §4.7's inbound marshalling).
type Resp struct {
	Status  int
	Headers map[string]string
	Body    *string
}

// trampolineSrc normalizes a handler's return value (plain object or
// promise) into a single settle/fail path so Go code never has to reason
// about goja's Promise representation directly.
const trampolineSrc = `
function __scriptrun_invoke(fn, req) {
	Promise.resolve(fn(req)).then(__scriptrun_settle, __scriptrun_fail);
}
`

// Engine owns one goja runtime, its event loop, and the bundle's exported
// handlers object. Not safe for concurrent use: spec.md §4.4 assigns exactly
// one worker goroutine per Engine, which is what makes blocking promise
// resolution on that goroutine safe.
type Engine struct {
	loop     *eventloop.EventLoop
	handlers *goja.Object
	settled  chan settleResult
}

type settleResult struct {
	value interface{}
	err   error
}

// New evaluates the bundle's IIFE and binds the `print` global, per
// dino-server/src/engine.rs's JsWorker::try_new. The bundle must evaluate to
// an object whose own properties are the handler functions.
func New(bundle string, logger applog.Logger, tenantHost string) (*Engine, error) {
	loop := eventloop.NewEventLoop()
	e := &Engine{loop: loop, settled: make(chan settleResult, 1)}

	var initErr error
	loop.Run(func(vm *goja.Runtime) {
		global := vm.GlobalObject()

		if err := global.Set("print", func(msg string) {
			logger.Debug(msg, "host", tenantHost)
		}); err != nil {
			initErr = err
			return
		}
		if err := global.Set("__scriptrun_settle", func(call goja.FunctionCall) goja.Value {
			e.settled <- settleResult{value: call.Argument(0).Export()}
			return goja.Undefined()
		}); err != nil {
			initErr = err
			return
		}
		if err := global.Set("__scriptrun_fail", func(call goja.FunctionCall) goja.Value {
			e.settled <- settleResult{err: fmt.Errorf("handler rejected: %s", call.Argument(0).String())}
			return goja.Undefined()
		}); err != nil {
			initErr = err
			return
		}
		if _, err := vm.RunString(trampolineSrc); err != nil {
			initErr = err
			return
		}

		ret, err := vm.RunString(bundle)
		if err != nil {
			initErr = err
			return
		}
		obj := ret.ToObject(vm)
		if obj == nil {
			initErr = fmt.Errorf("bundle did not evaluate to an object of handlers")
			return
		}
		e.handlers = obj
	})
	if initErr != nil {
		loop.Stop()
		return nil, apperror.Wrap(apperror.KindBundlingError, "evaluating bundle", initErr)
	}
	return e, nil
}

// Close stops the interpreter's event loop. No further Invoke calls are
// valid afterward.
func (e *Engine) Close() {
	e.loop.Stop()
}

// Invoke calls the named handler with req, awaiting its promise to
// completion on the caller's goroutine (spec.md §4.4: "blocking the worker
// thread - this is safe because the worker is single-threaded and only
// serves one request at a time").
func (e *Engine) Invoke(name string, req Req) (Resp, error) {
	var callErr error

	e.loop.Run(func(vm *goja.Runtime) {
		fnVal := e.handlers.Get(name)
		if fnVal == nil || goja.IsUndefined(fnVal) {
			callErr = apperror.New(apperror.KindHandlerNotFound, fmt.Sprintf("handler %q not found", name))
			return
		}
		if _, ok := goja.AssertFunction(fnVal); !ok {
			callErr = apperror.New(apperror.KindHandlerNotFound, fmt.Sprintf("handler %q is not callable", name))
			return
		}
		invoke, ok := goja.AssertFunction(vm.Get("__scriptrun_invoke"))
		if !ok {
			callErr = apperror.New(apperror.KindHandlerExecutionError, "invoke trampoline missing")
			return
		}
		if _, err := invoke(goja.Undefined(), fnVal, vm.ToValue(req.toJS())); err != nil {
			callErr = apperror.Wrap(apperror.KindHandlerExecutionError, fmt.Sprintf("invoking handler %q", name), err)
			return
		}
	})
	if callErr != nil {
		return Resp{}, callErr
	}

	select {
	case res := <-e.settled:
		if res.err != nil {
			return Resp{}, apperror.Wrap(apperror.KindHandlerExecutionError, fmt.Sprintf("handler %q", name), res.err)
		}
		return respFromExported(res.value)
	default:
		return Resp{}, apperror.New(apperror.KindResponseShapeError, fmt.Sprintf("handler %q never settled", name))
	}
}

func respFromExported(v interface{}) (Resp, error) {
	obj, ok := v.(map[string]interface{})
	if !ok {
		return Resp{}, apperror.New(apperror.KindResponseShapeError, "handler return value is not an object")
	}

	statusRaw, ok := obj["status"]
	if !ok {
		return Resp{}, apperror.New(apperror.KindResponseShapeError, "handler return value missing numeric status")
	}
	status, err := toInt(statusRaw)
	if err != nil || status < 100 || status > 599 {
		return Resp{}, apperror.New(apperror.KindResponseShapeError, fmt.Sprintf("status %v out of range [100,599]", statusRaw))
	}

	headers := map[string]string{}
	if raw, ok := obj["headers"]; ok && raw != nil {
		switch m := raw.(type) {
		case map[string]string:
			// req.headers handed back as-is exports as the Go map it wraps.
			for k, v := range m {
				headers[k] = v
			}
		case map[string]interface{}:
			for k, v := range m {
				s, ok := v.(string)
				if !ok {
					return Resp{}, apperror.New(apperror.KindResponseShapeError, fmt.Sprintf("header %q is not a string", k))
				}
				headers[k] = s
			}
		default:
			return Resp{}, apperror.New(apperror.KindResponseShapeError, "headers is not a string map")
		}
	}

	var body *string
	if raw, ok := obj["body"]; ok && raw != nil {
		s, ok := raw.(string)
		if !ok {
			return Resp{}, apperror.New(apperror.KindResponseShapeError, "body is not a string")
		}
		body = &s
	}

	return Resp{Status: status, Headers: headers, Body: body}, nil
}

func toInt(v interface{}) (int, error) {
	switch n := v.(type) {
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	case int:
		return n, nil
	default:
		return 0, fmt.Errorf("not a number: %v", v)
	}
}
