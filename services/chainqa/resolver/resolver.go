// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package resolver applies one parsed step to a navigation place.
//
// Structural steps move the focus or apply a fixed suggestion. Lexical
// steps request keyword-constrained suggestions from the engine, restrict
// them to a structural type and let a scoring.Ranker pick the requested
// rank. Steps that only alter the final query text (limit, offset,
// groupBy, filter) are announced on an events.Sink and keep the place.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/chainqa/services/chainqa"
	"github.com/AleutianAI/chainqa/services/chainqa/command"
	"github.com/AleutianAI/chainqa/services/chainqa/engine"
	"github.com/AleutianAI/chainqa/services/chainqa/events"
	"github.com/AleutianAI/chainqa/services/chainqa/scoring"
	"github.com/AleutianAI/chainqa/services/chainqa/telemetry"
)

// MatchMinLength is the minimum rune length of a match keyword.
const MatchMinLength = 3

// StructuralScore is the score of a step that involves no ranking.
const StructuralScore = 1.0

// Outcome is the result of resolving one step.
type Outcome struct {
	// Place is the place after the step.
	Place engine.Place

	// Score is the suggestion score contributed by the step.
	Score float64

	// Skipped reports that a class or match step produced no results and
	// was undone, leaving Place at the input place.
	Skipped bool

	// Candidate is the chosen suggestion for lexical steps.
	Candidate *scoring.Candidate
}

// Resolver resolves steps against one engine.
//
// Thread Safety: A Resolver holds no per-run state and may be shared,
// but the engine it drives is single-place, so runs must not overlap.
type Resolver struct {
	eng    engine.Engine
	ranker scoring.Ranker
	sink   events.Sink
	logger *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithSink sets the notification sink.
func WithSink(s events.Sink) Option {
	return func(r *Resolver) {
		r.sink = s
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = l
	}
}

// New creates a resolver. A nil ranker falls back to plain ranking.
func New(eng engine.Engine, ranker scoring.Ranker, opts ...Option) (*Resolver, error) {
	if eng == nil {
		return nil, chainqa.ErrNilEngine
	}
	if ranker == nil {
		ranker = scoring.PlainRanker{}
	}
	r := &Resolver{
		eng:    eng,
		ranker: ranker,
		sink:   events.Discard{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Engine returns the engine the resolver drives.
func (r *Resolver) Engine() engine.Engine {
	return r.eng
}

// Sink returns the notification sink.
func (r *Resolver) Sink() events.Sink {
	return r.sink
}

// Resolve applies step to place, choosing the rank-th candidate for
// lexical steps.
//
// Description:
//
//	Records the attempt in sc, resolves the step, then waits for the
//	resulting place to be evaluated. A class or match step whose place
//	has no result rows is undone: the input place is returned with score
//	zero and sc.NeedsRetry is raised. On success the step is recorded as
//	resolved and the move is remembered for goback.
//
// Inputs:
//
//	ctx - Context for cancellation and tracing.
//	sc - Bookkeeping of the current run. Nil uses a throwaway context.
//	place - Place to start from.
//	step - Step to apply.
//	rank - 1-based candidate rank for lexical steps.
//
// Outputs:
//
//	Outcome - Resulting place and score.
//	error - *StepError describing a parse, resolution or structural failure.
func (r *Resolver) Resolve(ctx context.Context, sc *SearchContext, place engine.Place, step command.Step, rank int) (Outcome, error) {
	ctx, span := telemetry.StartSpan(ctx, "chainqa.resolver", "Resolver.Resolve",
		trace.WithAttributes(
			attribute.String("step", step.Raw),
			attribute.String("step.kind", step.Kind.String()),
			attribute.Int("rank", rank),
		),
	)
	defer span.End()

	if rank < 1 {
		rank = 1
	}
	if sc == nil {
		sc = NewSearchContext()
	}
	sc.attempt(step)

	out, err := r.resolve(ctx, sc, place, step, rank)
	if err != nil {
		telemetry.RecordError(span, err)
		r.logger.DebugContext(ctx, "step failed",
			slog.String("step", step.Raw),
			slog.Int("rank", rank),
			slog.String("error", err.Error()),
		)
		return Outcome{}, err
	}

	if err := out.Place.WaitEvaluated(ctx); err != nil {
		se := structuralErr(step, "evaluation failed", err)
		telemetry.RecordError(span, se)
		return Outcome{}, se
	}

	if step.Kind.SkipsWhenEmpty() && out.Place.Results().Len() == 0 {
		sc.NeedsRetry = true
		span.SetAttributes(attribute.Bool("skipped", true))
		r.logger.DebugContext(ctx, "step has no results, skipping",
			slog.String("step", step.Raw),
		)
		return Outcome{Place: place, Score: 0, Skipped: true, Candidate: out.Candidate}, nil
	}

	sc.resolved(step)
	if step.Kind != command.KindGoBack {
		sc.recordMove(place, out.Place)
	}
	span.SetAttributes(attribute.Float64("score", out.Score))
	return out, nil
}

func (r *Resolver) resolve(ctx context.Context, sc *SearchContext, place engine.Place, step command.Step, rank int) (Outcome, error) {
	switch step.Kind {
	case command.KindUp:
		return r.moveFocus(ctx, place, step, place.FocusPath().MoveUp())
	case command.KindDown:
		return r.moveFocus(ctx, place, step, place.FocusPath().MoveDown())
	case command.KindAnd:
		return r.apply(ctx, place, step, engine.Suggestion{Kind: engine.IncrAnd})
	case command.KindOr:
		return r.apply(ctx, place, step, engine.Suggestion{Kind: engine.IncrOr})
	case command.KindNot:
		return r.apply(ctx, place, step, engine.Suggestion{Kind: engine.IncrNot})
	case command.KindMaybe:
		return r.apply(ctx, place, step, engine.Suggestion{Kind: engine.IncrMaybe})
	case command.KindAsc:
		return r.order(ctx, place, step, engine.Asc)
	case command.KindDesc:
		return r.order(ctx, place, step, engine.Desc)
	case command.KindGoBack:
		if prev, ok := sc.Predecessor(place); ok {
			return Outcome{Place: prev, Score: StructuralScore}, nil
		}
		return Outcome{Place: place, Score: StructuralScore}, nil
	case command.KindGroupBy:
		return r.groupBy(ctx, place, step)
	case command.KindGroup:
		return r.group(ctx, place, step)
	case command.KindCountDistinct:
		return r.apply(ctx, place, step, engine.Suggestion{Kind: engine.IncrAggreg, Aggreg: engine.CountDistinct})
	case command.KindAfter:
		return r.constrain(ctx, place, step, engine.Constraint{Kind: engine.ConstrAfter, Keyword: arg(step, 0)})
	case command.KindBefore:
		return r.constrain(ctx, place, step, engine.Constraint{Kind: engine.ConstrBefore, Keyword: arg(step, 0)})
	case command.KindFromTo:
		return r.constrain(ctx, place, step, engine.Constraint{Kind: engine.ConstrFromTo, From: arg(step, 0), To: arg(step, 1)})
	case command.KindHigherThan:
		return r.numeric(ctx, place, step, engine.ConstrHigherThan)
	case command.KindLowerThan:
		return r.numeric(ctx, place, step, engine.ConstrLowerThan)
	case command.KindBetween:
		if !command.IsNumeric(arg(step, 0)) || !command.IsNumeric(arg(step, 1)) {
			return Outcome{}, parseErr(step, "between something that is not a number", chainqa.ErrInvalidNumber)
		}
		return r.constrain(ctx, place, step, engine.Constraint{Kind: engine.ConstrBetween, From: arg(step, 0), To: arg(step, 1)})
	case command.KindGreater:
		return r.compare(ctx, place, step, engine.ConstrAfter, engine.ConstrHigherThan)
	case command.KindLess:
		return r.compare(ctx, place, step, engine.ConstrBefore, engine.ConstrLowerThan)
	case command.KindMatch:
		return r.match(ctx, place, step, rank)
	case command.KindLimit:
		return r.announce(ctx, place, step, events.TypeLimit, events.LimitData{LimitNumber: arg(step, 0)})
	case command.KindOffset:
		return r.announce(ctx, place, step, events.TypeOffset, events.OffsetData{OffsetNumber: arg(step, 0)})
	case command.KindFilter:
		kws := strings.Fields(arg(step, 0))
		r.eng.SetFilterConstraint(engine.MatchesAll(kws...))
		r.sink.Emit(ctx, events.TypeFilter, events.FilterData{Keywords: kws})
		return Outcome{Place: place, Score: StructuralScore}, nil
	case command.KindClass:
		return r.lexical(ctx, place, step, rank, concepts(engine.MatchesAll(step.Keywords()...)),
			isClass, r.eng.ClassLabels())
	case command.KindClassWithoutConstraint:
		return r.lexical(ctx, place, step, rank, concepts(engine.True()),
			isClass, r.eng.ClassLabels())
	case command.KindForwardProperty:
		return r.lexical(ctx, place, step, rank, concepts(engine.MatchesAll(step.Keywords()...)),
			engine.Suggestion.IsForwardRelation, r.eng.PropertyLabels())
	case command.KindBackwardProperty:
		return r.lexical(ctx, place, step, rank, concepts(engine.MatchesAll(step.Keywords()...)),
			engine.Suggestion.IsBackwardRelation, r.eng.PropertyLabels())
	case command.KindProperty:
		return r.property(ctx, place, step, rank)
	case command.KindPropertyWithoutPriority:
		return r.lexical(ctx, place, step, rank, concepts(engine.MatchesAll(step.Keywords()...)),
			engine.Suggestion.IsRelation, r.eng.PropertyLabels())
	case command.KindPropertyWithoutConstraint:
		return r.lexical(ctx, place, step, rank, concepts(engine.True()),
			engine.Suggestion.IsRelation, r.eng.PropertyLabels())
	case command.KindTerm:
		return r.lexical(ctx, place, step, rank, terms(engine.MatchesAll(step.Keywords()...)),
			engine.Suggestion.IsEntityTerm, r.eng.TermLabels())
	default:
		return Outcome{}, parseErr(step, "unsupported step", fmt.Errorf("kind %s", step.Kind))
	}
}

func arg(step command.Step, i int) string {
	if i < len(step.Args) {
		return strings.TrimSpace(step.Args[i])
	}
	return ""
}

func isClass(s engine.Suggestion) bool {
	return s.Kind == engine.IncrType
}

type request func(ctx context.Context, p engine.Place) (engine.Forest, error)

func concepts(c engine.Constraint) request {
	return func(ctx context.Context, p engine.Place) (engine.Forest, error) {
		return p.ConceptSuggestions(ctx, false, c)
	}
}

func terms(c engine.Constraint) request {
	return func(ctx context.Context, p engine.Place) (engine.Forest, error) {
		return p.TermSuggestions(ctx, false, c)
	}
}

func (r *Resolver) moveFocus(ctx context.Context, place engine.Place, step command.Step, path engine.Path) (Outcome, error) {
	next, err := place.FocusAtPath(ctx, path)
	if err != nil {
		return Outcome{}, structuralErr(step, "focus move failed", err)
	}
	return Outcome{Place: next, Score: StructuralScore}, nil
}

func (r *Resolver) apply(ctx context.Context, place engine.Place, step command.Step, s engine.Suggestion) (Outcome, error) {
	next, err := place.ApplySuggestion(ctx, s)
	if err != nil {
		return Outcome{}, structuralErr(step, "apply "+string(s.Kind)+" failed", err)
	}
	return Outcome{Place: next, Score: StructuralScore}, nil
}

func (r *Resolver) constrain(ctx context.Context, place engine.Place, step command.Step, c engine.Constraint) (Outcome, error) {
	return r.apply(ctx, place, step, engine.Suggestion{
		Kind:       engine.IncrConstr,
		Constr:     &c,
		FilterType: engine.OnlyLiterals,
	})
}

func (r *Resolver) numeric(ctx context.Context, place engine.Place, step command.Step, kind engine.ConstraintKind) (Outcome, error) {
	v := arg(step, 0)
	if !command.IsNumeric(v) {
		return Outcome{}, parseErr(step, step.Kind.String()+" something that is not a number", chainqa.ErrInvalidNumber)
	}
	return r.constrain(ctx, place, step, engine.Constraint{Kind: kind, Value: v})
}

// compare resolves '>' and '<': dates compare with temporal, everything
// else with numeric constraints.
func (r *Resolver) compare(ctx context.Context, place engine.Place, step command.Step, temporal, numeric engine.ConstraintKind) (Outcome, error) {
	if err := place.WaitEvaluated(ctx); err != nil {
		return Outcome{}, structuralErr(step, "evaluation failed", err)
	}
	v := arg(step, 0)
	if engine.IsTemporal(place.Results().LastColumnDatatype()) {
		return r.constrain(ctx, place, step, engine.Constraint{Kind: temporal, Keyword: v})
	}
	if !command.IsNumeric(v) {
		return Outcome{}, parseErr(step, step.Kind.String()+" something that is not a number", chainqa.ErrInvalidNumber)
	}
	return r.constrain(ctx, place, step, engine.Constraint{Kind: numeric, Value: v})
}

func (r *Resolver) order(ctx context.Context, place engine.Place, step command.Step, o engine.Order) (Outcome, error) {
	out, err := r.apply(ctx, place, step, engine.Suggestion{Kind: engine.IncrOrder, Order: o})
	if err != nil {
		return Outcome{}, err
	}
	if err := place.WaitEvaluated(ctx); err != nil {
		return Outcome{}, structuralErr(step, "evaluation failed", err)
	}
	if engine.IsTemporal(place.Results().LastColumnDatatype()) {
		r.sink.Emit(ctx, events.TypeOrderDate, events.OrderDateData{Order: string(o)})
	}
	return out, nil
}

func (r *Resolver) groupBy(ctx context.Context, place engine.Place, step command.Step) (Outcome, error) {
	action := arg(step, 0)
	if !events.GroupByActions[action] {
		action = events.GroupByCount
	}
	r.sink.Emit(ctx, events.TypeGroupByAction, events.GroupByData{Action: action})
	return Outcome{Place: place, Score: StructuralScore}, nil
}

func (r *Resolver) group(ctx context.Context, place engine.Place, step command.Step) (Outcome, error) {
	each, err := r.apply(ctx, place, step, engine.Suggestion{Kind: engine.IncrForeach})
	if err != nil {
		return Outcome{}, err
	}
	var agg engine.Aggregation
	switch arg(step, 0) {
	case "count":
		agg = engine.CountDistinct
	case "sum":
		agg = engine.Sum
	case "avg":
		agg = engine.Avg
	case "max":
		agg = engine.Max
	case "min":
		agg = engine.Min
	default:
		agg = engine.Sample
	}
	return r.apply(ctx, each.Place, step, engine.Suggestion{Kind: engine.IncrAggregID, Aggreg: agg, AggregID: 1})
}

func (r *Resolver) announce(ctx context.Context, place engine.Place, step command.Step, t events.Type, data any) (Outcome, error) {
	if !command.IsNumeric(arg(step, 0)) {
		return Outcome{}, parseErr(step, step.Kind.String()+" something that is not a number", chainqa.ErrInvalidNumber)
	}
	r.sink.Emit(ctx, t, data)
	return Outcome{Place: place, Score: StructuralScore}, nil
}

func (r *Resolver) match(ctx context.Context, place engine.Place, step command.Step, rank int) (Outcome, error) {
	kw := arg(step, 0)
	if utf8.RuneCountInString(kw) < MatchMinLength {
		return Outcome{}, parseErr(step,
			fmt.Sprintf("match parameter should be at least %d characters long", MatchMinLength),
			chainqa.ErrMatchTooShort)
	}
	if rank > 1 {
		return Outcome{}, resolutionErr(step, "match has a single interpretation", chainqa.ErrNoSuggestion)
	}
	if err := place.WaitEvaluated(ctx); err != nil {
		return Outcome{}, structuralErr(step, "evaluation failed", err)
	}
	c := engine.MatchesAll(strings.Fields(kw)...)
	next, err := place.ApplySuggestion(ctx, engine.Suggestion{
		Kind:       engine.IncrConstr,
		Constr:     &c,
		FilterType: engine.Mixed,
	})
	if err != nil {
		return Outcome{}, structuralErr(step, "apply match failed", err)
	}
	return Outcome{Place: next, Score: StructuralScore}, nil
}

// property tries forward relations first and requests backward ones only
// when no forward candidate qualifies.
func (r *Resolver) property(ctx context.Context, place engine.Place, step command.Step, rank int) (Outcome, error) {
	req := concepts(engine.MatchesAll(step.Keywords()...))
	out, err := r.lexical(ctx, place, step, rank, req, engine.Suggestion.IsForwardRelation, r.eng.PropertyLabels())
	if err == nil || !errors.Is(err, chainqa.ErrNoSuggestion) {
		return out, err
	}
	r.logger.DebugContext(ctx, "no forward property, trying backward", slog.String("step", step.Raw))
	return r.lexical(ctx, place, step, rank, req, engine.Suggestion.IsBackwardRelation, r.eng.PropertyLabels())
}

func (r *Resolver) lexical(ctx context.Context, place engine.Place, step command.Step, rank int, req request, keep scoring.Predicate, lex engine.Lexicon) (Outcome, error) {
	if err := place.WaitEvaluated(ctx); err != nil {
		return Outcome{}, structuralErr(step, "evaluation failed", err)
	}
	forest, err := req(ctx, place)
	if err != nil {
		return Outcome{}, resolutionErr(step, step.Kind.String()+" not found", err)
	}
	cand, err := scoring.Select(ctx, r.ranker, step.Keyword(), forest, keep, lex, rank)
	if err != nil {
		if errors.Is(err, chainqa.ErrNoSuggestion) {
			return Outcome{}, resolutionErr(step, "no suggestion found", err)
		}
		return Outcome{}, resolutionErr(step, step.Kind.String()+" search failed", err)
	}
	next, err := place.ApplySuggestion(ctx, cand.Suggestion)
	if err != nil {
		return Outcome{}, structuralErr(step, "apply suggestion failed", err)
	}
	r.logger.DebugContext(ctx, "chose suggestion",
		slog.String("step", step.Raw),
		slog.Int("rank", rank),
		slog.String("candidate", cand.String()),
	)
	return Outcome{Place: next, Score: cand.Score, Candidate: &cand}, nil
}
