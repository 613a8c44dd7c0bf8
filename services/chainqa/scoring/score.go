// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package scoring ranks the suggestions the engine returns for a keyword.
//
// A candidate's score is its observed frequency damped by the edit
// distance between the keyword and the candidate's display label:
//
//	score = frequency / (1 + levenshtein(keyword, label))
//
// The reference-count ranker additionally breaks score ties by the number
// of triples the candidate takes part in across the whole graph.
package scoring

import (
	"fmt"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/AleutianAI/chainqa/services/chainqa/engine"
)

// Candidate is a scored suggestion.
type Candidate struct {
	Suggestion engine.Suggestion `json:"suggestion"`
	Ref        string            `json:"ref"`
	Label      string            `json:"label"`
	Frequency  float64           `json:"frequency"`
	Score      float64           `json:"score"`

	// References is the total subject plus object triple count. Only the
	// reference-count ranker fills it.
	References int64 `json:"references,omitempty"`
}

// String renders the candidate for logs.
func (c Candidate) String() string {
	return fmt.Sprintf("%s %q score=%.4f refs=%d", c.Suggestion.Kind, c.Label, c.Score, c.References)
}

// Predicate restricts candidates to a structural type.
type Predicate func(engine.Suggestion) bool

// EditDistance is the unit-cost Levenshtein distance between a and b,
// counted in runes and case-sensitive.
func EditDistance(a, b string) int {
	return fuzzy.LevenshteinDistance(a, b)
}

// Score computes frequency / (1 + EditDistance(keyword, label)).
func Score(frequency float64, keyword, label string) float64 {
	return frequency / float64(1+EditDistance(keyword, label))
}

// Label returns the lexicon label of ref, falling back to ref itself.
func Label(lex engine.Lexicon, ref string) string {
	if lex == nil {
		return ref
	}
	if e, ok := lex.Info(ref); ok && e.Label != "" {
		return e.Label
	}
	return ref
}

// scoreForest scores the items accepted by keep. Items without an
// identifying reference are dropped.
func scoreForest(keyword string, forest engine.Forest, keep Predicate, lex engine.Lexicon) []Candidate {
	out := make([]Candidate, 0, len(forest))
	for _, item := range forest {
		if keep != nil && !keep(item.Suggestion) {
			continue
		}
		ref, ok := item.Suggestion.Ref()
		if !ok {
			continue
		}
		label := Label(lex, ref)
		out = append(out, Candidate{
			Suggestion: item.Suggestion,
			Ref:        ref,
			Label:      label,
			Frequency:  item.Frequency,
			Score:      Score(item.Frequency, keyword, label),
		})
	}
	return out
}
