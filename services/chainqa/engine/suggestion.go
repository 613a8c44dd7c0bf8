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

// SuggestionKind is the structural type tag of a suggestion.
type SuggestionKind string

const (
	IncrType     SuggestionKind = "IncrType"
	IncrRel      SuggestionKind = "IncrRel"
	IncrPred     SuggestionKind = "IncrPred"
	IncrTerm     SuggestionKind = "IncrTerm"
	IncrOrder    SuggestionKind = "IncrOrder"
	IncrConstr   SuggestionKind = "IncrConstr"
	IncrAnd      SuggestionKind = "IncrAnd"
	IncrOr       SuggestionKind = "IncrOr"
	IncrNot      SuggestionKind = "IncrNot"
	IncrMaybe    SuggestionKind = "IncrMaybe"
	IncrForeach  SuggestionKind = "IncrForeach"
	IncrAggregID SuggestionKind = "IncrAggregId"
	IncrAggreg   SuggestionKind = "IncrAggreg"
)

// Orientation is the traversal direction of a relation.
type Orientation string

const (
	Fwd Orientation = "Fwd"
	Bwd Orientation = "Bwd"
)

// Arg is the position of the focus in a predicate suggestion.
type Arg string

const (
	ArgS Arg = "S"
	ArgO Arg = "O"
)

// PredKind identifies the shape of a predicate suggestion.
type PredKind string

const (
	PredClass PredKind = "Class"
	PredProp  PredKind = "Prop"
	PredSO    PredKind = "SO"
	PredEO    PredKind = "EO"
)

// Pred is the predicate carried by an IncrPred suggestion.
type Pred struct {
	Kind PredKind `json:"kind" yaml:"kind"`
	URI  string   `json:"uri,omitempty" yaml:"uri,omitempty"`
	URIO string   `json:"uri_o,omitempty" yaml:"uri_o,omitempty"`
	URIE string   `json:"uri_e,omitempty" yaml:"uri_e,omitempty"`
}

// TermKind distinguishes entity terms from literals.
type TermKind string

const (
	TermURI     TermKind = "uri"
	TermLiteral TermKind = "literal"
)

// Term is the value carried by an IncrTerm suggestion.
type Term struct {
	Kind     TermKind `json:"kind" yaml:"kind"`
	URI      string   `json:"uri,omitempty" yaml:"uri,omitempty"`
	Value    string   `json:"value,omitempty" yaml:"value,omitempty"`
	Datatype string   `json:"datatype,omitempty" yaml:"datatype,omitempty"`
}

// Order is a sort direction.
type Order string

const (
	Asc  Order = "ASC"
	Desc Order = "DESC"
)

// FilterType restricts which values a constraint applies to.
type FilterType string

const (
	OnlyLiterals FilterType = "OnlyLiterals"
	Mixed        FilterType = "Mixed"
)

// Aggregation is an aggregation operator.
type Aggregation string

const (
	CountDistinct Aggregation = "COUNT_DISTINCT"
	Sum           Aggregation = "SUM"
	Avg           Aggregation = "AVG"
	Max           Aggregation = "MAX"
	Min           Aggregation = "MIN"
	Sample        Aggregation = "SAMPLE"
)

// Suggestion is a structured candidate for extending a place. Only the
// fields relevant to Kind are set.
type Suggestion struct {
	Kind        SuggestionKind `json:"kind" yaml:"kind"`
	URI         string         `json:"uri,omitempty" yaml:"uri,omitempty"`
	Orientation Orientation    `json:"orientation,omitempty" yaml:"orientation,omitempty"`
	Arg         Arg            `json:"arg,omitempty" yaml:"arg,omitempty"`
	Pred        *Pred          `json:"pred,omitempty" yaml:"pred,omitempty"`
	Term        *Term          `json:"term,omitempty" yaml:"term,omitempty"`
	Order       Order          `json:"order,omitempty" yaml:"order,omitempty"`
	Constr      *Constraint    `json:"constr,omitempty" yaml:"constr,omitempty"`
	FilterType  FilterType     `json:"filter_type,omitempty" yaml:"filter_type,omitempty"`
	Aggreg      Aggregation    `json:"aggreg,omitempty" yaml:"aggreg,omitempty"`
	AggregID    int            `json:"aggreg_id,omitempty" yaml:"aggreg_id,omitempty"`
}

// Ref returns the identifying reference of the suggestion, used for
// lexicon lookups and reference counts. Structural suggestions and
// literal terms have none.
func (s Suggestion) Ref() (string, bool) {
	var ref string
	switch s.Kind {
	case IncrType, IncrRel:
		ref = s.URI
	case IncrPred:
		if s.Pred == nil {
			return "", false
		}
		switch s.Pred.Kind {
		case PredClass, PredProp:
			ref = s.Pred.URI
		case PredSO:
			ref = s.Pred.URIO
		case PredEO:
			ref = s.Pred.URIE
		}
	case IncrTerm:
		if s.Term != nil && s.Term.Kind == TermURI {
			ref = s.Term.URI
		}
	}
	return ref, ref != ""
}

// IsForwardRelation reports whether s follows a relation from the focus.
func (s Suggestion) IsForwardRelation() bool {
	return s.Kind == IncrRel && s.Orientation == Fwd || s.Kind == IncrPred && s.Arg == ArgS
}

// IsBackwardRelation reports whether s follows a relation into the focus.
func (s Suggestion) IsBackwardRelation() bool {
	return s.Kind == IncrRel && s.Orientation == Bwd || s.Kind == IncrPred && s.Arg == ArgO
}

// IsRelation reports whether s is a relation in either direction.
func (s Suggestion) IsRelation() bool {
	return s.IsForwardRelation() || s.IsBackwardRelation()
}

// IsEntityTerm reports whether s is a URI-valued term.
func (s Suggestion) IsEntityTerm() bool {
	return s.Kind == IncrTerm && s.Term != nil && s.Term.Kind == TermURI
}

// String renders a compact description for logs.
func (s Suggestion) String() string {
	var b strings.Builder
	b.WriteString(string(s.Kind))
	if ref, ok := s.Ref(); ok {
		fmt.Fprintf(&b, "(%s)", ref)
	}
	if s.Orientation != "" {
		b.WriteString(":" + string(s.Orientation))
	}
	if s.Order != "" {
		b.WriteString(":" + string(s.Order))
	}
	if s.Aggreg != "" {
		b.WriteString(":" + string(s.Aggreg))
	}
	if s.Constr != nil {
		b.WriteString(":" + s.Constr.String())
	}
	return b.String()
}

// Item is one node of a suggestion forest.
type Item struct {
	Suggestion Suggestion `json:"suggestion" yaml:"suggestion"`

	// Frequency is the observed usage count at the place; 0 when unknown.
	Frequency float64 `json:"frequency,omitempty" yaml:"frequency,omitempty"`
}

// Forest is the flattened list of suggestions returned by the engine.
type Forest []Item
