// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const engineTracerName = "countdown.engine"

var meter = otel.Meter(engineTracerName)

var (
	iterationsTotal metric.Int64Counter
	searchesTotal   metric.Int64Counter
	levelDuration   metric.Float64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the engine instruments. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		iterationsTotal, err = meter.Int64Counter(
			"countdown_engine_iterations_total",
			metric.WithDescription("Operator evaluations performed by searches"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		searchesTotal, err = meter.Int64Counter(
			"countdown_engine_searches_total",
			metric.WithDescription("Searches that reached a terminal state"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		levelDuration, err = meter.Float64Histogram(
			"countdown_engine_level_duration_seconds",
			metric.WithDescription("Wall time spent exhausting one depth level"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordIterations(ctx context.Context, n int64) {
	if n == 0 || initMetrics() != nil {
		return
	}
	iterationsTotal.Add(ctx, n)
}

func recordLevel(ctx context.Context, level int, elapsed time.Duration) {
	if initMetrics() != nil {
		return
	}
	levelDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
		attribute.Int("level", level),
	))
}

func recordTerminal(ctx context.Context, state State) {
	if initMetrics() != nil {
		return
	}
	searchesTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("state", state.String()),
	))
}

// -----------------------------------------------------------------------------
// Tracing
// -----------------------------------------------------------------------------

// SearchTracer provides OpenTelemetry tracing for searches.
//
// Thread Safety: Safe for concurrent use.
type SearchTracer struct {
	tracer  trace.Tracer
	logger  *slog.Logger
	enabled bool
}

// NewSearchTracer creates a tracer using the global TracerProvider.
//
// Inputs:
//   - logger: Logger for structured logging (can be nil).
//   - enabled: When false every span is a no-op.
//
// Outputs:
//   - *SearchTracer: Tracer instance.
func NewSearchTracer(logger *slog.Logger, enabled bool) *SearchTracer {
	if logger == nil {
		logger = slog.Default()
	}
	return &SearchTracer{
		tracer:  otel.Tracer(engineTracerName),
		logger:  logger,
		enabled: enabled,
	}
}

// StartSearch starts the span covering a whole search.
func (t *SearchTracer) StartSearch(ctx context.Context, target int64, values []int64, ops []Operator) (context.Context, trace.Span) {
	if t == nil || !t.enabled {
		return ctx, noop.Span{}
	}

	names := make([]string, len(ops))
	for i, op := range ops {
		names[i] = op.Name()
	}
	return t.tracer.Start(ctx, "countdown.search",
		trace.WithAttributes(
			attribute.Int64("countdown.target", target),
			attribute.Int64Slice("countdown.values", values),
			attribute.StringSlice("countdown.operators", names),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// TraceLevel records the start of a depth level on the search span.
func (t *SearchTracer) TraceLevel(span trace.Span, level int, maxIterations int64, known int) {
	if t == nil || !t.enabled || span == nil {
		return
	}
	span.AddEvent("countdown.level", trace.WithAttributes(
		attribute.Int("countdown.level", level),
		attribute.Int64("countdown.level.max_iterations", maxIterations),
		attribute.Int("countdown.index.size", known),
	))
}

// EndSearch completes the search span.
func (t *SearchTracer) EndSearch(span trace.Span, state State, p Progress, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.SetAttributes(
		attribute.String("countdown.result.state", state.String()),
		attribute.Int("countdown.result.depth", p.CurrentDepth),
		attribute.Int64("countdown.result.iterations", p.Iterations),
	)
	span.End()
}
