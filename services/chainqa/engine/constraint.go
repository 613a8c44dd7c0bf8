// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"fmt"
	"strings"
)

// ConstraintKind identifies a suggestion or value constraint.
type ConstraintKind string

const (
	ConstrTrue       ConstraintKind = "True"
	ConstrMatchesAll ConstraintKind = "MatchesAll"
	ConstrAfter      ConstraintKind = "After"
	ConstrBefore     ConstraintKind = "Before"
	ConstrFromTo     ConstraintKind = "FromTo"
	ConstrHigherThan ConstraintKind = "HigherThan"
	ConstrLowerThan  ConstraintKind = "LowerThan"
	ConstrBetween    ConstraintKind = "Between"
)

// Constraint restricts suggestions or values.
type Constraint struct {
	Kind ConstraintKind `json:"kind" yaml:"kind"`

	// Keywords is set for MatchesAll.
	Keywords []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`

	// Keyword is set for After and Before.
	Keyword string `json:"keyword,omitempty" yaml:"keyword,omitempty"`

	// From and To are set for FromTo and Between.
	From string `json:"from,omitempty" yaml:"from,omitempty"`
	To   string `json:"to,omitempty" yaml:"to,omitempty"`

	// Value is set for HigherThan and LowerThan.
	Value string `json:"value,omitempty" yaml:"value,omitempty"`
}

// True is the constraint accepting every suggestion.
func True() Constraint {
	return Constraint{Kind: ConstrTrue}
}

// MatchesAll accepts suggestions whose label contains every keyword.
func MatchesAll(keywords ...string) Constraint {
	kw := make([]string, len(keywords))
	copy(kw, keywords)
	return Constraint{Kind: ConstrMatchesAll, Keywords: kw}
}

// Accepts reports whether label satisfies a True or MatchesAll
// constraint. Matching is case-insensitive. Value constraints accept
// every label.
func (c Constraint) Accepts(label string) bool {
	if c.Kind != ConstrMatchesAll {
		return true
	}
	l := strings.ToLower(label)
	for _, kw := range c.Keywords {
		if !strings.Contains(l, strings.ToLower(kw)) {
			return false
		}
	}
	return true
}

// String renders the constraint for logs.
func (c Constraint) String() string {
	switch c.Kind {
	case ConstrMatchesAll:
		return fmt.Sprintf("MatchesAll%v", c.Keywords)
	case ConstrAfter, ConstrBefore:
		return fmt.Sprintf("%s(%s)", c.Kind, c.Keyword)
	case ConstrFromTo, ConstrBetween:
		return fmt.Sprintf("%s(%s,%s)", c.Kind, c.From, c.To)
	case ConstrHigherThan, ConstrLowerThan:
		return fmt.Sprintf("%s(%s)", c.Kind, c.Value)
	default:
		return string(c.Kind)
	}
}
