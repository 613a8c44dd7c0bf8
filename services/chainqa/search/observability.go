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
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/AleutianAI/chainqa/services/chainqa/telemetry"
)

// Tracer emits one span per run with a child span per expanded state.
// Rank attempts are span events on the expansion span.
//
// Thread Safety: Safe for concurrent use.
type Tracer struct {
	tracer trace.Tracer
	logger *slog.Logger
}

// NewTracer creates a tracer on the global provider. When enabled is
// false every span is a no-op, which keeps deep searches cheap.
func NewTracer(logger *slog.Logger, enabled bool) *Tracer {
	if logger == nil {
		logger = slog.Default()
	}
	var tp trace.TracerProvider = noop.NewTracerProvider()
	if enabled {
		tp = otel.GetTracerProvider()
	}
	return &Tracer{tracer: tp.Tracer("chainqa.search"), logger: logger}
}

// scope is an open span and what to do when it closes.
type scope struct{ span trace.Span }

func (s scope) end(err error, attrs ...attribute.KeyValue) {
	s.span.SetAttributes(attrs...)
	if err != nil {
		telemetry.RecordError(s.span, err)
	}
	s.span.End()
}

func (t *Tracer) run(ctx context.Context, strategy Strategy, chainLen int, opts Options) (context.Context, scope) {
	ctx, span := t.tracer.Start(ctx, "search.Run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("search.strategy", string(strategy)),
			attribute.Int("search.chain_length", chainLen),
			attribute.Int("search.top_k", opts.TopK),
			attribute.Int("search.beam_width", opts.BeamWidth),
			attribute.Int("search.max_states", opts.MaxStates),
		),
	)
	return ctx, scope{span}
}

func (t *Tracer) finishRun(sc scope, res *Result, err error) {
	if err == nil {
		sc.span.SetStatus(codes.Ok, "")
	}
	if res == nil {
		sc.end(err)
		return
	}
	sc.end(err,
		attribute.Float64("search.score", res.Score),
		attribute.Bool("search.complete", res.Complete),
		attribute.Int("search.states_created", res.Stats.StatesCreated),
		attribute.Int("search.states_evaluated", res.Stats.StatesEvaluated),
		attribute.Int("search.expansions", res.Stats.Expansions),
		attribute.Int("search.max_frontier", res.Stats.MaxFrontier),
		attribute.Bool("search.budget_exhausted", res.Stats.BudgetExhausted),
	)
}

// expand opens the span for expanding s, whose head step is not done.
func (t *Tracer) expand(ctx context.Context, s *State) (context.Context, scope) {
	step := s.Remaining[0].Raw
	ctx, span := t.tracer.Start(ctx, "search.Expand", trace.WithAttributes(
		attribute.String("search.step", step),
		attribute.Int("search.depth", s.Depth),
		attribute.Float64("search.score", s.Score),
	))
	t.logger.DebugContext(ctx, "expanding state",
		slog.String("step", step),
		slog.Int("depth", s.Depth),
		slog.Int("remaining", len(s.Remaining)),
	)
	return ctx, scope{span}
}

func (t *Tracer) rank(ctx context.Context, rank int, err error) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	attrs := []attribute.KeyValue{attribute.Int("search.rank", rank)}
	if err != nil {
		attrs = append(attrs, attribute.String("search.error", err.Error()))
	}
	span.AddEvent("rank", trace.WithAttributes(attrs...))
}
