// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package resolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/chainqa/services/chainqa"
	"github.com/AleutianAI/chainqa/services/chainqa/command"
	"github.com/AleutianAI/chainqa/services/chainqa/engine"
	"github.com/AleutianAI/chainqa/services/chainqa/engine/memengine"
	"github.com/AleutianAI/chainqa/services/chainqa/events"
	"github.com/AleutianAI/chainqa/services/chainqa/scoring"
)

const graph = `
name: films
entities:
  - {uri: "ex:Film", label: film, kind: class, frequency: 20}
  - {uri: "ex:FilmFestival", label: film festival, kind: class, frequency: 5}
  - {uri: "ex:Ghost", label: ghost, kind: class, frequency: 2, empty: true}
  - {uri: "ex:Broken", label: broken, kind: class, frequency: 2, fail: true}
  - {uri: "ex:director", label: director, kind: property, frequency: 12}
  - {uri: "ex:starring", label: starring, kind: property, orientation: both, frequency: 8}
  - {uri: "ex:birthPlace", label: birth place, kind: property, orientation: bwd, frequency: 4}
  - {uri: "ex:released", label: release date, kind: property, frequency: 2, datatype: "http://www.w3.org/2001/XMLSchema#date"}
  - {uri: "ex:budget", label: budget, kind: property, frequency: 2, datatype: "http://www.w3.org/2001/XMLSchema#decimal"}
  - {uri: "ex:TimBurton", label: Tim Burton, kind: term, frequency: 3}
  - {uri: "ex:TimBurtonJr", label: Tim Burton Jr, kind: term, frequency: 3}
`

type fixture struct {
	eng  *memengine.Engine
	sink *events.MockEmitter
	res  *Resolver
	sc   *SearchContext
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f, err := memengine.ParseFixture([]byte(graph))
	require.NoError(t, err)
	eng := memengine.New(f)
	sink := events.NewMockEmitter()
	res, err := New(eng, scoring.PlainRanker{}, WithSink(sink))
	require.NoError(t, err)
	return &fixture{eng: eng, sink: sink, res: res, sc: NewSearchContext()}
}

func (f *fixture) resolve(t *testing.T, place engine.Place, raw string, rank int) (Outcome, error) {
	t.Helper()
	return f.res.Resolve(context.Background(), f.sc, place, command.Classify(raw), rank)
}

func (f *fixture) mustResolve(t *testing.T, place engine.Place, raw string) engine.Place {
	t.Helper()
	out, err := f.resolve(t, place, raw, 1)
	require.NoError(t, err)
	return out.Place
}

func TestNew_RequiresEngine(t *testing.T) {
	_, err := New(nil, nil)
	assert.ErrorIs(t, err, chainqa.ErrNilEngine)
}

func TestResolve_ClassRanks(t *testing.T) {
	f := newFixture(t)
	root := f.eng.Root()

	out, err := f.resolve(t, root, "a film", 1)
	require.NoError(t, err)
	require.NotNil(t, out.Candidate)
	assert.Equal(t, "ex:Film", out.Candidate.Ref)
	assert.InDelta(t, 20.0, out.Score, 1e-9)
	assert.False(t, out.Skipped)

	out, err = f.resolve(t, root, "a film", 2)
	require.NoError(t, err)
	assert.Equal(t, "ex:FilmFestival", out.Candidate.Ref)

	_, err = f.resolve(t, root, "a film", 3)
	assert.ErrorIs(t, err, chainqa.ErrNoSuggestion)
	se, ok := AsStepError(err)
	require.True(t, ok)
	assert.Equal(t, ClassResolution, se.Class)
}

func TestResolve_InvalidNumberMakesNoEngineCall(t *testing.T) {
	for _, raw := range []string{"higherThan abc", "lowerThan x1", "between 1 and two", "limit ten", "offset -"} {
		t.Run(raw, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.resolve(t, f.eng.Root(), raw, 1)
			require.Error(t, err)
			assert.ErrorIs(t, err, chainqa.ErrInvalidNumber)

			se, ok := AsStepError(err)
			require.True(t, ok)
			assert.Equal(t, ClassParse, se.Class)
			assert.Equal(t, memengine.Calls{}, f.eng.Calls())
		})
	}
}

func TestResolve_NumericConstraints(t *testing.T) {
	f := newFixture(t)
	place := f.mustResolve(t, f.eng.Root(), "forwardProperty budget")

	next := f.mustResolve(t, place, "higherThan 1000")
	assert.Contains(t, next.SPARQL(), "HigherThan(1000)")

	next = f.mustResolve(t, place, "between 1 and 2.5")
	assert.Contains(t, next.SPARQL(), "Between(1,2.5)")

	next = f.mustResolve(t, place, "from 1990 to 2000")
	assert.Contains(t, next.SPARQL(), "FromTo(1990,2000)")
}

func TestResolve_PropertyPrefersForward(t *testing.T) {
	f := newFixture(t)

	out, err := f.resolve(t, f.eng.Root(), "property starring", 1)
	require.NoError(t, err)
	assert.Equal(t, engine.Fwd, out.Candidate.Suggestion.Orientation)
	assert.Equal(t, int64(1), f.eng.Calls().ConceptRequests, "backward candidates must not be requested")
}

func TestResolve_PropertyFallsBackToBackward(t *testing.T) {
	f := newFixture(t)

	out, err := f.resolve(t, f.eng.Root(), "property birth place", 1)
	require.NoError(t, err)
	assert.Equal(t, "ex:birthPlace", out.Candidate.Ref)
	assert.Equal(t, engine.Bwd, out.Candidate.Suggestion.Orientation)
	assert.Equal(t, int64(2), f.eng.Calls().ConceptRequests)
}

func TestResolve_DirectionalProperties(t *testing.T) {
	f := newFixture(t)
	root := f.eng.Root()

	_, err := f.resolve(t, root, "forwardProperty birth place", 1)
	assert.ErrorIs(t, err, chainqa.ErrNoSuggestion)

	out, err := f.resolve(t, root, "backwardProperty birth place", 1)
	require.NoError(t, err)
	assert.Equal(t, "ex:birthPlace", out.Candidate.Ref)

	out, err = f.resolve(t, root, "propertyWithoutPriority starring", 2)
	require.NoError(t, err)
	assert.Equal(t, engine.Bwd, out.Candidate.Suggestion.Orientation)

	out, err = f.resolve(t, root, "propertyWithoutConstraint director", 1)
	require.NoError(t, err)
	assert.Equal(t, "ex:director", out.Candidate.Ref)
	assert.Equal(t, 1, out.Place.FocusPath().Depth())
}

func TestResolve_Term(t *testing.T) {
	f := newFixture(t)

	out, err := f.resolve(t, f.eng.Root(), "Tim Burton", 1)
	require.NoError(t, err)
	assert.Equal(t, "ex:TimBurton", out.Candidate.Ref)
	assert.InDelta(t, 3.0, out.Score, 1e-9)
	assert.Equal(t, int64(1), f.eng.Calls().TermRequests)

	_, err = f.resolve(t, f.eng.Root(), "Einstein", 1)
	assert.ErrorIs(t, err, chainqa.ErrNoSuggestion)
}

func TestResolve_EmptyClassIsSkipped(t *testing.T) {
	f := newFixture(t)
	root := f.eng.Root()

	out, err := f.resolve(t, root, "a ghost", 1)
	require.NoError(t, err)
	assert.True(t, out.Skipped)
	assert.Zero(t, out.Score)
	assert.Equal(t, root.Permalink(), out.Place.Permalink())
	assert.True(t, f.sc.NeedsRetry)
	assert.Nil(t, f.sc.LastResolved)
}

func TestResolve_EvaluationFailureIsStructural(t *testing.T) {
	f := newFixture(t)

	_, err := f.resolve(t, f.eng.Root(), "a broken", 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, chainqa.ErrEvaluation)
	se, ok := AsStepError(err)
	require.True(t, ok)
	assert.Equal(t, ClassStructural, se.Class)
}

func TestResolve_Match(t *testing.T) {
	f := newFixture(t)
	root := f.eng.Root()

	_, err := f.resolve(t, root, "match ab", 1)
	assert.ErrorIs(t, err, chainqa.ErrMatchTooShort)
	assert.Equal(t, memengine.Calls{}, f.eng.Calls())

	_, err = f.resolve(t, root, "match burton", 2)
	assert.ErrorIs(t, err, chainqa.ErrNoSuggestion)

	out, err := f.resolve(t, root, "match burton", 1)
	require.NoError(t, err)
	assert.False(t, out.Skipped)
	assert.Contains(t, out.Place.SPARQL(), "MatchesAll[burton]")

	out, err = f.resolve(t, root, "match zzzz", 1)
	require.NoError(t, err)
	assert.True(t, out.Skipped)
	assert.True(t, f.sc.NeedsRetry)
}

func TestResolve_FocusMoves(t *testing.T) {
	f := newFixture(t)

	down := f.mustResolve(t, f.eng.Root(), "down")
	assert.Equal(t, engine.Path{engine.Down}, down.FocusPath())

	up := f.mustResolve(t, down, "up")
	assert.Empty(t, up.FocusPath())

	// Up at the root is a no-op.
	up = f.mustResolve(t, up, "up")
	assert.Empty(t, up.FocusPath())
}

func TestResolve_StructuralSuggestions(t *testing.T) {
	f := newFixture(t)
	place := f.mustResolve(t, f.eng.Root(), "a film")

	for raw, want := range map[string]string{
		"and":           "IncrAnd",
		"or":            "IncrOr",
		"not":           "IncrNot",
		"maybe":         "IncrMaybe",
		"countDistinct": "IncrAggreg:COUNT_DISTINCT",
		"after 2000":    "After(2000)",
		"before 2000":   "Before(2000)",
	} {
		out, err := f.resolve(t, place, raw, 1)
		require.NoError(t, err, raw)
		assert.Contains(t, out.Place.SPARQL(), want, raw)
		assert.InDelta(t, StructuralScore, out.Score, 1e-9, raw)
	}
}

func TestResolve_Group(t *testing.T) {
	f := newFixture(t)
	place := f.mustResolve(t, f.eng.Root(), "a film")

	cases := map[string]string{
		"group count":  "COUNT_DISTINCT",
		"group sum":    "SUM",
		"group avg":    "AVG",
		"group max":    "MAX",
		"group min":    "MIN",
		"group median": "SAMPLE",
	}
	for raw, agg := range cases {
		out, err := f.resolve(t, place, raw, 1)
		require.NoError(t, err, raw)
		q := out.Place.SPARQL()
		assert.Contains(t, q, "IncrForeach", raw)
		assert.Contains(t, q, "IncrAggregId:"+agg, raw)
	}
}

func TestResolve_Notifications(t *testing.T) {
	f := newFixture(t)
	root := f.eng.Root()

	out, err := f.resolve(t, root, "limit 10", 1)
	require.NoError(t, err)
	assert.Equal(t, root, out.Place)

	_, err = f.resolve(t, root, "offset 5", 1)
	require.NoError(t, err)
	_, err = f.resolve(t, root, "groupBy sum", 1)
	require.NoError(t, err)
	_, err = f.resolve(t, root, "filter french film", 1)
	require.NoError(t, err)

	evs := f.sink.Events()
	require.Len(t, evs, 4)
	assert.Equal(t, events.LimitData{LimitNumber: "10"}, evs[0].Data)
	assert.Equal(t, events.OffsetData{OffsetNumber: "5"}, evs[1].Data)
	assert.Equal(t, events.GroupByData{Action: events.GroupByCount}, evs[2].Data)
	assert.Equal(t, events.FilterData{Keywords: []string{"french", "film"}}, evs[3].Data)

	c, ok := f.eng.FilterConstraint()
	require.True(t, ok)
	assert.Equal(t, []string{"french", "film"}, c.Keywords)
}

func TestResolve_OrderDate(t *testing.T) {
	f := newFixture(t)

	dated := f.mustResolve(t, f.eng.Root(), "forwardProperty release date")
	f.mustResolve(t, dated, "desc")
	assert.Equal(t, 1, f.sink.Count(events.TypeOrderDate))

	plain := f.mustResolve(t, f.eng.Root(), "forwardProperty budget")
	out := f.mustResolve(t, plain, "asc")
	assert.Contains(t, out.SPARQL(), "IncrOrder:ASC")
	assert.Equal(t, 1, f.sink.Count(events.TypeOrderDate))
}

func TestResolve_Comparators(t *testing.T) {
	f := newFixture(t)

	dated := f.mustResolve(t, f.eng.Root(), "forwardProperty release date")
	next := f.mustResolve(t, dated, "> 2000-01-01")
	assert.Contains(t, next.SPARQL(), "After(2000-01-01)")
	next = f.mustResolve(t, dated, "< 2000-01-01")
	assert.Contains(t, next.SPARQL(), "Before(2000-01-01)")

	numeric := f.mustResolve(t, f.eng.Root(), "forwardProperty budget")
	next = f.mustResolve(t, numeric, "> 100")
	assert.Contains(t, next.SPARQL(), "HigherThan(100)")
	next = f.mustResolve(t, numeric, "< 100")
	assert.Contains(t, next.SPARQL(), "LowerThan(100)")

	_, err := f.resolve(t, numeric, "> lots", 1)
	assert.ErrorIs(t, err, chainqa.ErrInvalidNumber)
}

func TestResolve_GoBack(t *testing.T) {
	f := newFixture(t)
	root := f.eng.Root()

	film := f.mustResolve(t, root, "a film")
	back := f.mustResolve(t, film, "goback")
	assert.Equal(t, root.Permalink(), back.Permalink())

	// Without a recorded predecessor the place is kept.
	same := f.mustResolve(t, root, "goback")
	assert.Equal(t, root.Permalink(), same.Permalink())
}

func TestSearchContext_Bookkeeping(t *testing.T) {
	f := newFixture(t)
	film := f.mustResolve(t, f.eng.Root(), "a film")
	f.mustResolve(t, film, "forwardProperty director")

	require.NotNil(t, f.sc.LastAttempted)
	require.NotNil(t, f.sc.LastResolved)
	require.NotNil(t, f.sc.PreviousStep)
	assert.Equal(t, command.KindForwardProperty, f.sc.LastResolved.Kind)
	assert.Equal(t, command.KindClass, f.sc.PreviousStep.Kind)

	_, _ = f.resolve(t, film, "Nobody Known", 1)
	assert.Equal(t, command.KindTerm, f.sc.LastAttempted.Kind)
	assert.Equal(t, command.KindForwardProperty, f.sc.LastResolved.Kind)

	f.sc.Reset()
	assert.Nil(t, f.sc.LastAttempted)
	assert.Nil(t, f.sc.LastResolved)
	assert.False(t, f.sc.NeedsRetry)
	_, ok := f.sc.Predecessor(film)
	assert.False(t, ok)
}

func TestResolve_CancelledContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.res.Resolve(ctx, f.sc, f.eng.Root(), command.Classify("a film"), 1)
	assert.ErrorIs(t, err, context.Canceled)
}
