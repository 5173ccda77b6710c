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
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// With no SDK wired into the process-wide OTel providers, NewRecorder must
// still be safe to build and drive end to end (spans/instruments resolve to
// OpenTelemetry's no-op implementations rather than a nil Recorder).
func TestRecorder_StartAndFinishNeverPanic(t *testing.T) {
	rec := NewRecorder()
	require.NotNil(t, rec)

	ctx, finish := rec.start(context.Background(), "tenant.example.com", "GET", "/api/hello/42")
	require.NotNil(t, ctx)
	require.NotPanics(t, func() { finish("hello", 200, nil) })
}

func TestRecorder_FinishWithErrorNeverPanics(t *testing.T) {
	rec := NewRecorder()

	_, finish := rec.start(context.Background(), "tenant.example.com", "GET", "/nope")
	require.NotPanics(t, func() { finish("", 404, errors.New("no path pattern matches")) })
}
