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

package applog

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// FromContext returns l tagged with the trace and span IDs of ctx's active
// span, grounded on the teacher's logging.ContextLogger (context.go), which
// extracts the same two fields from an OpenTelemetry span for log/trace
// correlation. Returns l unchanged when ctx carries no valid span context;
// a valid but non-recording span context is still tagged.
func FromContext(ctx context.Context, l Logger) Logger {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return l
	}
	return &traceLogger{base: l, traceID: sc.TraceID().String(), spanID: sc.SpanID().String()}
}

type traceLogger struct {
	base    Logger
	traceID string
	spanID  string
}

func (t *traceLogger) with(args []any) []any {
	return append([]any{"trace_id", t.traceID, "span_id", t.spanID}, args...)
}

func (t *traceLogger) Debug(msg string, args ...any) { t.base.Debug(msg, t.with(args)...) }
func (t *traceLogger) Info(msg string, args ...any)  { t.base.Info(msg, t.with(args)...) }
func (t *traceLogger) Warn(msg string, args ...any)  { t.base.Warn(msg, t.with(args)...) }
func (t *traceLogger) Error(msg string, args ...any) { t.base.Error(msg, t.with(args)...) }
