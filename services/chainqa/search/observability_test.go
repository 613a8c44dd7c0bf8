// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/AleutianAI/chainqa/services/chainqa/command"
	"github.com/AleutianAI/chainqa/services/chainqa/engine/memengine"
	"github.com/AleutianAI/chainqa/services/chainqa/recovery"
	"github.com/AleutianAI/chainqa/services/chainqa/resolver"
	"github.com/AleutianAI/chainqa/services/chainqa/scoring"
)

func tracedController(t *testing.T, enabled bool) (*Controller, *memengine.Engine, *tracetest.SpanRecorder) {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})

	f, err := memengine.ParseFixture([]byte(water))
	require.NoError(t, err)
	eng := memengine.New(f)
	res, err := resolver.New(eng, scoring.PlainRanker{})
	require.NoError(t, err)
	ctrl, err := NewController(recovery.NewRunner(res, nil), Options{Strategy: StrategyDFS},
		WithTracer(NewTracer(nil, enabled)))
	require.NoError(t, err)
	return ctrl, eng, rec
}

func TestTracer_SpansPerRunAndExpansion(t *testing.T) {
	ctrl, eng, rec := tracedController(t, true)

	_, err := ctrl.Resolve(context.Background(), eng.Root(), command.Parse("water ; forwardProperty boiling point"), Options{})
	require.NoError(t, err)

	byName := map[string][]sdktrace.ReadOnlySpan{}
	for _, s := range rec.Ended() {
		byName[s.Name()] = append(byName[s.Name()], s)
	}
	require.Len(t, byName["search.Run"], 1)
	run := byName["search.Run"][0]

	expands := byName["search.Expand"]
	require.NotEmpty(t, expands)
	for _, s := range expands {
		assert.Equal(t, run.SpanContext().TraceID(), s.SpanContext().TraceID())
	}
	require.NotEmpty(t, expands[0].Events())
	assert.Equal(t, "rank", expands[0].Events()[0].Name)
}

func TestTracer_DisabledRecordsNothing(t *testing.T) {
	ctrl, eng, rec := tracedController(t, false)

	_, err := ctrl.Resolve(context.Background(), eng.Root(), command.Parse("water"), Options{})
	require.NoError(t, err)
	for _, s := range rec.Ended() {
		assert.NotContains(t, s.Name(), "search.", "resolver spans still use the global provider")
	}
}
