// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package command parses command-chain strings into typed steps.
//
// A chain is a ';'-separated list of commands produced by an upstream
// generator. Parsing is tolerant: stray quotes and padding are removed
// and anything that matches no keyword grammar becomes a Term lookup.
//
// Thread Safety:
//
//	Step and Chain values are immutable once parsed and safe to share.
package command

import "strings"

// Kind identifies which grammar rule produced a step.
type Kind int

const (
	KindTerm Kind = iota
	KindUp
	KindDown
	KindAnd
	KindOr
	KindNot
	KindMaybe
	KindAsc
	KindDesc
	KindGoBack
	KindGroupBy
	KindGroup
	KindCountDistinct
	KindAfter
	KindBefore
	KindFromTo
	KindHigherThan
	KindLowerThan
	KindBetween
	KindGreater
	KindLess
	KindMatch
	KindLimit
	KindOffset
	KindFilter
	KindClass
	KindClassWithoutConstraint
	KindForwardProperty
	KindBackwardProperty
	KindPropertyWithoutPriority
	KindProperty
	KindPropertyWithoutConstraint
)

var kindNames = map[Kind]string{
	KindTerm:                      "term",
	KindUp:                        "up",
	KindDown:                      "down",
	KindAnd:                       "and",
	KindOr:                        "or",
	KindNot:                       "not",
	KindMaybe:                     "maybe",
	KindAsc:                       "asc",
	KindDesc:                      "desc",
	KindGoBack:                    "goback",
	KindGroupBy:                   "groupBy",
	KindGroup:                     "group",
	KindCountDistinct:             "countDistinct",
	KindAfter:                     "after",
	KindBefore:                    "before",
	KindFromTo:                    "fromTo",
	KindHigherThan:                "higherThan",
	KindLowerThan:                 "lowerThan",
	KindBetween:                   "between",
	KindGreater:                   "greater",
	KindLess:                      "less",
	KindMatch:                     "match",
	KindLimit:                     "limit",
	KindOffset:                    "offset",
	KindFilter:                    "filter",
	KindClass:                     "class",
	KindClassWithoutConstraint:    "classWithoutConstraint",
	KindForwardProperty:           "forwardProperty",
	KindBackwardProperty:          "backwardProperty",
	KindPropertyWithoutPriority:   "propertyWithoutPriority",
	KindProperty:                  "property",
	KindPropertyWithoutConstraint: "propertyWithoutConstraint",
}

// String returns the grammar name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// IsConnector reports whether k is one of and/or/not/maybe.
func (k Kind) IsConnector() bool {
	return k == KindAnd || k == KindOr || k == KindNot || k == KindMaybe
}

// IsNumericConstraint reports whether k filters literal values.
func (k Kind) IsNumericConstraint() bool {
	switch k {
	case KindAfter, KindBefore, KindFromTo, KindHigherThan, KindLowerThan,
		KindBetween, KindGreater, KindLess:
		return true
	}
	return false
}

// IsProperty reports whether k resolves to a relation suggestion.
func (k Kind) IsProperty() bool {
	switch k {
	case KindForwardProperty, KindBackwardProperty, KindProperty,
		KindPropertyWithoutPriority, KindPropertyWithoutConstraint:
		return true
	}
	return false
}

// IsLexical reports whether a step of this kind chooses among ranked
// engine candidates, and therefore may branch during search.
func (k Kind) IsLexical() bool {
	switch k {
	case KindTerm, KindMatch, KindClass, KindClassWithoutConstraint:
		return true
	}
	return k.IsProperty()
}

// SkipsWhenEmpty reports whether a step of this kind is cancelled, rather
// than failed, when the resulting place has no result rows.
func (k Kind) SkipsWhenEmpty() bool {
	return k == KindClass || k == KindMatch
}

// Step is one parsed command.
type Step struct {
	// Kind is the grammar rule that matched.
	Kind Kind `json:"kind"`

	// Raw is the normalized command text.
	Raw string `json:"raw"`

	// Args holds the captured arguments, in grammar order.
	Args []string `json:"args,omitempty"`
}

// Keyword returns the primary keyword of the step. For terms this is the
// whole command text.
func (s Step) Keyword() string {
	if s.Kind == KindTerm || len(s.Args) == 0 {
		return s.Raw
	}
	return s.Args[0]
}

// Keywords splits the primary keyword on whitespace.
func (s Step) Keywords() []string {
	return strings.Fields(s.Keyword())
}

// String returns the normalized command text.
func (s Step) String() string {
	return s.Raw
}

// Match builds the match step used when a term lookup is loosened.
func Match(keyword string) Step {
	return Step{Kind: KindMatch, Raw: "match " + keyword, Args: []string{keyword}}
}

// Up builds a navigate-up step.
func Up() Step {
	return Step{Kind: KindUp, Raw: "up"}
}

// Chain is an ordered list of steps.
type Chain []Step

// String joins the steps back into command-chain syntax.
func (c Chain) String() string {
	parts := make([]string, len(c))
	for i, s := range c {
		parts[i] = s.Raw
	}
	return strings.Join(parts, " ; ")
}

// Commands returns the raw text of every step.
func (c Chain) Commands() []string {
	out := make([]string, len(c))
	for i, s := range c {
		out[i] = s.Raw
	}
	return out
}
