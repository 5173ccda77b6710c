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
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// instrumentationName identifies this package's tracer/meter to whatever
// SDK the host process wires up, per OpenTelemetry convention.
const instrumentationName = "github.com/scriptrun/scriptrun/internal/dispatch"

// Recorder narrows the teacher's three-pillar observabilityRecorder
// (app/observability.go's OnRequestStart/OnRequestEnd lifecycle around a
// router.ObservabilityRecorder) to the one thing every dispatched request
// needs: a trace span plus a request-count/duration metric pair, tagged by
// tenant host and outcome. The teacher's own rivaas.dev/metrics and
// rivaas.dev/tracing packages are private modules inside its monorepo (see
// DESIGN.md), so this talks to the OpenTelemetry APIs they themselves wrap
// directly instead.
type Recorder struct {
	tracer   trace.Tracer
	requests metric.Int64Counter
	duration metric.Float64Histogram
}

// NewRecorder builds a Recorder from the process-wide OTel tracer/meter
// providers (otel.GetTracerProvider/otel.GetMeterProvider). With no SDK
// configured these resolve to OpenTelemetry's documented no-op
// implementations, so every dispatched request can be instrumented
// unconditionally without a host application having to opt in first.
func NewRecorder() *Recorder {
	meter := otel.Meter(instrumentationName)

	requests, err := meter.Int64Counter(
		"scriptrun.dispatch.requests",
		metric.WithDescription("Requests dispatched to a tenant worker, by host, handler, and outcome."),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		requests = noopCounter{}
	}

	duration, err := meter.Float64Histogram(
		"scriptrun.dispatch.duration",
		metric.WithDescription("Time from request receipt to reply, in seconds."),
		metric.WithUnit("s"),
	)
	if err != nil {
		duration = noopHistogram{}
	}

	return &Recorder{
		tracer:   otel.Tracer(instrumentationName),
		requests: requests,
		duration: duration,
	}
}

// start opens a span named for the request and returns the span-carrying
// context plus a finish closure, mirroring OnRequestStart/OnRequestEnd
// except collapsed into one call pair since dispatch has no separate
// response-writer-wrapping phase to straddle. handler is the empty string
// until the route has matched; finish is always called exactly once.
func (rec *Recorder) start(ctx context.Context, host, method, path string) (context.Context, func(handler string, status int, err error)) {
	started := time.Now()
	ctx, span := rec.tracer.Start(ctx, method+" "+path, trace.WithAttributes(
		attribute.String("scriptrun.host", host),
		attribute.String("http.method", method),
	))

	return ctx, func(handler string, status int, err error) {
		defer span.End()

		attrs := []attribute.KeyValue{
			attribute.String("scriptrun.host", host),
			attribute.String("http.method", method),
		}
		if handler != "" {
			attrs = append(attrs, attribute.String("scriptrun.handler", handler))
			span.SetName(method + " " + handler)
		}

		attrs = append(attrs, attribute.Int("http.status_code", status))

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			if status >= 500 {
				span.SetStatus(codes.Error, "")
			}
		}

		rec.requests.Add(ctx, 1, metric.WithAttributes(attrs...))
		rec.duration.Record(ctx, time.Since(started).Seconds(), metric.WithAttributes(attrs...))
	}
}

// noopCounter/noopHistogram stand in on the rare path where instrument
// creation itself fails (e.g. a name collision against a custom SDK view),
// so a Recorder is always safe to call without a nil check at every
// callsite.
type noopCounter struct{ metric.Int64Counter }

func (noopCounter) Add(context.Context, int64, ...metric.AddOption) {}

type noopHistogram struct{ metric.Float64Histogram }

func (noopHistogram) Record(context.Context, float64, ...metric.RecordOption) {}
