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
	"github.com/AleutianAI/chainqa/services/chainqa/command"
	"github.com/AleutianAI/chainqa/services/chainqa/engine"
)

// SearchContext is the bookkeeping of one top-level chain resolution.
//
// It replaces process-wide "last command" state: every resolver and
// recovery call receives the context of the run it belongs to, so
// consecutive or concurrent runs never observe each other.
//
// Thread Safety: Not safe for concurrent use. One run owns one context.
type SearchContext struct {
	// LastAttempted is the last step handed to the resolver.
	LastAttempted *command.Step

	// LastResolved is the last step that resolved successfully.
	LastResolved *command.Step

	// PreviousStep is the step resolved before LastResolved.
	PreviousStep *command.Step

	// NeedsRetry is raised when a class or match step was skipped because
	// its place had no results. A later terminal failure may then restart
	// the whole chain once.
	NeedsRetry bool

	// parents maps a place permalink to the place it was reached from.
	parents map[string]engine.Place
}

// NewSearchContext returns an empty context.
func NewSearchContext() *SearchContext {
	return &SearchContext{parents: make(map[string]engine.Place)}
}

// Reset clears the context for a new top-level resolution.
func (sc *SearchContext) Reset() {
	sc.LastAttempted = nil
	sc.LastResolved = nil
	sc.PreviousStep = nil
	sc.NeedsRetry = false
	sc.parents = make(map[string]engine.Place)
}

func (sc *SearchContext) attempt(step command.Step) {
	s := step
	sc.LastAttempted = &s
}

func (sc *SearchContext) resolved(step command.Step) {
	s := step
	sc.PreviousStep = sc.LastResolved
	sc.LastResolved = &s
}

// recordMove remembers that next was reached from prev. The first
// predecessor recorded for a permalink wins.
func (sc *SearchContext) recordMove(prev, next engine.Place) {
	if prev == nil || next == nil {
		return
	}
	if sc.parents == nil {
		sc.parents = make(map[string]engine.Place)
	}
	key := next.Permalink()
	if key == prev.Permalink() {
		return
	}
	if _, ok := sc.parents[key]; !ok {
		sc.parents[key] = prev
	}
}

// Predecessor returns the place p was reached from, if known.
func (sc *SearchContext) Predecessor(p engine.Place) (engine.Place, bool) {
	if p == nil || sc.parents == nil {
		return nil, false
	}
	prev, ok := sc.parents[p.Permalink()]
	return prev, ok
}
