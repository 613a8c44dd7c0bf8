// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package engine defines the capability contract of the knowledge-graph
// navigation engine consumed by the resolver.
//
// The engine itself is an external collaborator. Places and suggestions
// are owned by it; the resolver only inspects, forwards and applies them.
// The memengine subpackage provides an in-process implementation backed by
// a fixture graph.
package engine

import "context"

// Place is an immutable navigation state: a query under construction with
// a focus inside it.
type Place interface {
	// FocusPath returns the focus position as a list of moves.
	FocusPath() Path

	// FocusAtPath returns the same query focused at path.
	FocusAtPath(ctx context.Context, path Path) (Place, error)

	// ApplySuggestion returns the place obtained by applying s.
	ApplySuggestion(ctx context.Context, s Suggestion) (Place, error)

	// ConceptSuggestions returns class and relation candidates allowed by
	// constr at the current focus.
	ConceptSuggestions(ctx context.Context, includeInverse bool, constr Constraint) (Forest, error)

	// TermSuggestions returns entity and literal candidates allowed by
	// constr at the current focus.
	TermSuggestions(ctx context.Context, includeInverse bool, constr Constraint) (Forest, error)

	// WaitEvaluated blocks until the place's query has been evaluated.
	// It returns an error when evaluation failed.
	WaitEvaluated(ctx context.Context) error

	// Results returns the evaluated result table. Only meaningful after
	// WaitEvaluated returned nil.
	Results() Results

	// SPARQL returns the query text of the place.
	SPARQL() string

	// Permalink returns a stable identifier of the place's content.
	Permalink() string
}

// Lexicon maps references to display labels and usage frequencies.
type Lexicon interface {
	Info(ref string) (Entry, bool)
}

// Entry is one lexicon record.
type Entry struct {
	Label     string  `json:"label" yaml:"label"`
	Frequency float64 `json:"frequency,omitempty" yaml:"frequency,omitempty"`
}

// QueryEvaluator runs raw SPARQL queries against the underlying graph.
type QueryEvaluator interface {
	EvalSPARQL(ctx context.Context, query string) (Results, error)
}

// Engine is the single-place navigation engine.
//
// The engine exposes exactly one current place. Callers that explore
// several interpretations must set the place they are about to work on
// before using it.
type Engine interface {
	QueryEvaluator

	CurrentPlace() Place
	SetCurrentPlace(p Place)

	ClassLabels() Lexicon
	PropertyLabels() Lexicon
	TermLabels() Lexicon

	// SetFilterConstraint restricts the suggestions shown for the
	// current place.
	SetFilterConstraint(c Constraint)
}

// MapLexicon is a Lexicon over a plain map.
type MapLexicon map[string]Entry

// Info implements Lexicon.
func (m MapLexicon) Info(ref string) (Entry, bool) {
	e, ok := m[ref]
	return e, ok
}
