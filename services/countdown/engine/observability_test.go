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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestSearchTracer_Disabled(t *testing.T) {
	tracer := NewSearchTracer(nil, false)
	ctx, span := tracer.StartSearch(context.Background(), 6, []int64{2, 3}, []Operator{Add})

	assert.NotNil(t, ctx)
	assert.Equal(t, noop.Span{}, span)
	tracer.TraceLevel(span, 1, 4, 2)
	tracer.EndSearch(span, StateCompleted, Progress{}, nil)
}

func TestSearchTracer_NilReceiver(t *testing.T) {
	var tracer *SearchTracer
	_, span := tracer.StartSearch(context.Background(), 6, nil, nil)
	assert.Equal(t, noop.Span{}, span)
}

func TestSearchTracer_RecordsSearchSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer tp.Shutdown(context.Background())

	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	res, err := Solve(context.Background(), Options{
		Target:    24,
		Values:    []int64{1, 2, 3, 4},
		Operators: []Operator{Add, Multiply},
		Tracer:    NewSearchTracer(nil, true),
	})
	require.NoError(t, err)
	require.Equal(t, StateCompleted, res.State)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "countdown.search", span.Name())

	levels := 0
	for _, ev := range span.Events() {
		if ev.Name == "countdown.level" {
			levels++
		}
	}
	assert.Equal(t, res.Solution.Depth, levels)

	var state string
	for _, kv := range span.Attributes() {
		if kv.Key == "countdown.result.state" {
			state = kv.Value.AsString()
		}
	}
	assert.Equal(t, "completed", state)
}
