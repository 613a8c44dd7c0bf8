// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package command

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() time.Time {
	return time.Date(2025, 3, 14, 23, 30, 0, 0, time.UTC)
}

func TestParse_StripsQuotesAndPadding(t *testing.T) {
	chain := Parse(`  'a film' ; forwardProperty director `)

	require.Len(t, chain, 2)
	assert.Equal(t, KindClass, chain[0].Kind)
	assert.Equal(t, "film", chain[0].Keyword())
	assert.Equal(t, KindForwardProperty, chain[1].Kind)
	assert.Equal(t, "director", chain[1].Keyword())
}

func TestParse_EmptyInput(t *testing.T) {
	for _, raw := range []string{"", "   ", `""`, " ; ; "} {
		assert.Empty(t, Parse(raw), "input %q", raw)
	}
}

func TestParse_DropsEmptyFragments(t *testing.T) {
	chain := Parse("water;;  ; forwardProperty boiling point;")
	require.Len(t, chain, 2)
	assert.Equal(t, "water", chain[0].Raw)
	assert.Equal(t, "boiling point", chain[1].Keyword())
}

func TestNormalize_ReplacesToday(t *testing.T) {
	p := NewParser(WithClock(fixedClock))

	assert.Equal(t, "before 2025-03-14", p.Normalize("before today"))
	// Only the whole word is replaced.
	assert.Equal(t, "todays news", p.Normalize("todays news"))
}

func TestClassify_Grammar(t *testing.T) {
	tests := []struct {
		in   string
		kind Kind
		args []string
	}{
		{"up", KindUp, nil},
		{"down", KindDown, nil},
		{"and", KindAnd, nil},
		{"or", KindOr, nil},
		{"not", KindNot, nil},
		{"maybe", KindMaybe, nil},
		{"asc", KindAsc, nil},
		{"desc", KindDesc, nil},
		{"goback", KindGoBack, nil},
		{"groupBy count", KindGroupBy, []string{"count"}},
		{"group sum", KindGroup, []string{"sum"}},
		{"countDistinct", KindCountDistinct, nil},
		{"after 1980", KindAfter, []string{"1980"}},
		{"before 2000-01-01", KindBefore, []string{"2000-01-01"}},
		{"from 1990 to 2000", KindFromTo, []string{"1990", "2000"}},
		{"higherThan 10", KindHigherThan, []string{"10"}},
		{"lowerThan 3.5", KindLowerThan, []string{"3.5"}},
		{"between 1 and 5", KindBetween, []string{"1", "5"}},
		{"> 1e7", KindGreater, []string{"1e7"}},
		{"<5", KindLess, []string{"5"}},
		{"match Einstein", KindMatch, []string{"Einstein"}},
		{"limit 10", KindLimit, []string{"10"}},
		{"offset 20", KindOffset, []string{"20"}},
		{"filter big red", KindFilter, []string{"big red"}},
		{"a film", KindClass, []string{"film"}},
		{"classWithoutConstraint person", KindClassWithoutConstraint, []string{"person"}},
		{"forwardProperty director", KindForwardProperty, []string{"director"}},
		{"backwardProperty starring", KindBackwardProperty, []string{"starring"}},
		{"propertyWithoutPriority author", KindPropertyWithoutPriority, []string{"author"}},
		{"property publisher", KindProperty, []string{"publisher"}},
		{"propertyWithoutConstraint birth date", KindPropertyWithoutConstraint, []string{"birth date"}},
		{"Tim Burton", KindTerm, nil},
		{"Up", KindTerm, nil},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			step := Classify(tt.in)
			assert.Equal(t, tt.kind, step.Kind, "kind %s", step.Kind)
			assert.Equal(t, tt.args, step.Args)
			assert.Equal(t, tt.in, step.Raw)
		})
	}
}

func TestClassify_GroupByBeforeGroup(t *testing.T) {
	step := Classify("groupBy sum")
	assert.Equal(t, KindGroupBy, step.Kind)
}

func TestStep_Keyword(t *testing.T) {
	assert.Equal(t, "Tim Burton", Classify("Tim Burton").Keyword())
	assert.Equal(t, []string{"boiling", "point"}, Classify("forwardProperty boiling point").Keywords())
}

func TestKind_Predicates(t *testing.T) {
	assert.True(t, KindProperty.IsLexical())
	assert.True(t, KindTerm.IsLexical())
	assert.True(t, KindMatch.IsLexical())
	assert.False(t, KindHigherThan.IsLexical())
	assert.False(t, KindUp.IsLexical())

	assert.True(t, KindBetween.IsNumericConstraint())
	assert.True(t, KindOr.IsConnector())

	assert.True(t, KindClass.SkipsWhenEmpty())
	assert.True(t, KindMatch.SkipsWhenEmpty())
	assert.False(t, KindClassWithoutConstraint.SkipsWhenEmpty())
}

func TestChain_String(t *testing.T) {
	chain := Parse("a film; forwardProperty director ;Tim Burton")
	assert.Equal(t, "a film ; forwardProperty director ; Tim Burton", chain.String())
	assert.Equal(t, []string{"a film", "forwardProperty director", "Tim Burton"}, chain.Commands())
}

func TestIsNumeric(t *testing.T) {
	for _, s := range []string{"1", "-2.5", " 12 ", "1e7", "0.001"} {
		assert.True(t, IsNumeric(s), s)
	}
	for _, s := range []string{"", "abc", "12abc", "  ", "NaN"} {
		assert.False(t, IsNumeric(s), s)
	}
}

func TestMatchAndUpBuilders(t *testing.T) {
	m := Match("Einstein")
	assert.Equal(t, Classify("match Einstein"), m)
	assert.Equal(t, Classify("up"), Up())
}
