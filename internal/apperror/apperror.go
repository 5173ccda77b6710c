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

// Package apperror defines the closed taxonomy of errors the dispatch
// pipeline and reload coordinator can produce, each carrying the HTTP status
// (if any) a client should see for it.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies one member of the error taxonomy from spec §7.
type Kind string

const (
	KindHostNotFound           Kind = "host_not_found"
	KindRoutePathNotFound      Kind = "route_path_not_found"
	KindRouteMethodNotAllowed  Kind = "route_method_not_allowed"
	KindBundlingError          Kind = "bundling_error"
	KindConfigLoadError        Kind = "config_load_error"
	KindHandlerNotFound        Kind = "handler_not_found"
	KindHandlerExecutionError  Kind = "handler_execution_error"
	KindResponseShapeError     Kind = "response_shape_error"
	KindBodyDecodeError        Kind = "body_decode_error"
	KindWorkerMissing          Kind = "worker_missing"
)

// Error is the concrete error type used across the dispatch and reload
// paths. It implements ErrorType (HTTPStatus) so a single errors.As check
// at the dispatch boundary renders any of these as an HTTP response.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func New(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

func Wrap(kind Kind, detail string, err error) *Error {
	return &Error{Kind: kind, Detail: detail, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus implements the teacher's ErrorType interface shape
// (errors.Simple's determineStatus looks for exactly this method).
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindHostNotFound, KindRoutePathNotFound:
		return http.StatusNotFound
	case KindRouteMethodNotAllowed:
		return http.StatusMethodNotAllowed
	default:
		return http.StatusInternalServerError
	}
}

// Code returns an RFC9457-flavored machine-readable code for diagnostic bodies.
func (e *Error) Code() string { return string(e.Kind) }

// KindOf extracts the Kind from err if it (or something it wraps) is an
// *Error, defaulting to KindHandlerExecutionError for opaque errors reaching
// the dispatch boundary.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindHandlerExecutionError
}
