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
	"encoding/json"
	"fmt"
	"strings"

	"github.com/AleutianAI/chainqa/services/chainqa/command"
	"github.com/AleutianAI/chainqa/services/chainqa/engine"
)

// Status is the lifecycle of a search state.
type Status string

const (
	StatusUnevaluated Status = "unevaluated"
	StatusEvaluating  Status = "evaluating"
	StatusEvaluated   Status = "evaluated"
)

// String returns the status name.
func (s Status) String() string {
	return string(s)
}

// State is one node of the search tree: a place reached after resolving
// a prefix of the chain, and the steps still to resolve from it.
//
// Thread Safety: Not safe for concurrent use. A run owns its states.
type State struct {
	// Place is the engine place of this state.
	Place engine.Place

	// Remaining are the steps left to resolve, head first.
	Remaining command.Chain

	// Score is the parent's score plus the suggestion score of the step
	// that produced this state.
	Score float64

	// Depth is the number of steps resolved since the root.
	Depth int

	parent   *State
	children []*State
	status   Status
}

func newState(place engine.Place, remaining command.Chain, score float64, parent *State) *State {
	s := &State{
		Place:     place,
		Remaining: remaining,
		Score:     score,
		parent:    parent,
		status:    StatusUnevaluated,
	}
	if parent != nil {
		s.Depth = parent.Depth + 1
	}
	return s
}

// Status returns the lifecycle status.
func (s *State) Status() Status {
	return s.status
}

// Evaluated reports whether the state has been expanded.
func (s *State) Evaluated() bool {
	return s.status == StatusEvaluated
}

// Terminal reports whether no steps remain.
func (s *State) Terminal() bool {
	return len(s.Remaining) == 0
}

// Parent returns the state this one was expanded from, nil for the root.
func (s *State) Parent() *State {
	return s.parent
}

// Children returns the states produced by expanding this one.
func (s *State) Children() []*State {
	out := make([]*State, len(s.children))
	copy(out, s.children)
	return out
}

// Walk visits s and its descendants depth-first, parents first.
func (s *State) Walk(fn func(*State)) {
	stack := []*State{s}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		fn(n)
		for i := len(n.children) - 1; i >= 0; i-- {
			stack = append(stack, n.children[i])
		}
	}
}

// Count returns the number of states in the subtree rooted at s.
func (s *State) Count() int {
	n := 0
	s.Walk(func(*State) { n++ })
	return n
}

// Leaves returns the terminal states of the subtree rooted at s.
func (s *State) Leaves() []*State {
	var out []*State
	s.Walk(func(n *State) {
		if n.Terminal() {
			out = append(out, n)
		}
	})
	return out
}

type stateJSON struct {
	Permalink         string      `json:"permalink"`
	Score             float64     `json:"score"`
	RemainingCommands []string    `json:"remaining_commands"`
	Evaluated         bool        `json:"evaluated"`
	Children          []stateJSON `json:"children"`
}

func (s *State) toJSON() stateJSON {
	out := stateJSON{
		Score:             s.Score,
		RemainingCommands: s.Remaining.Commands(),
		Evaluated:         s.Evaluated(),
		Children:          make([]stateJSON, 0, len(s.children)),
	}
	if s.Place != nil {
		out.Permalink = s.Place.Permalink()
	}
	for _, c := range s.children {
		out.Children = append(out.Children, c.toJSON())
	}
	return out
}

// MarshalJSON renders the subtree rooted at s.
func (s *State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.toJSON())
}

// Format renders the subtree as indented text for terminals.
func (s *State) Format() string {
	var sb strings.Builder
	s.format(&sb, "", true, true)
	return sb.String()
}

func (s *State) format(sb *strings.Builder, prefix string, isLast, isRoot bool) {
	connector := "├── "
	childPrefix := prefix + "│   "
	if isLast {
		connector = "└── "
		childPrefix = prefix + "    "
	}
	if isRoot {
		connector = ""
		childPrefix = ""
	}

	next := "done"
	if !s.Terminal() {
		next = s.Remaining[0].Raw
	}
	fmt.Fprintf(sb, "%s%s[%.3f] next: %s", prefix, connector, s.Score, next)
	if !s.Evaluated() {
		sb.WriteString(" (unevaluated)")
	}
	sb.WriteString("\n")

	for i, c := range s.children {
		c.format(sb, childPrefix, i == len(s.children)-1, false)
	}
}
