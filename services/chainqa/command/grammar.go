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
	"math"
	"regexp"
	"strconv"
	"strings"
)

// rule is one entry of the ordered step grammar.
type rule struct {
	kind  Kind
	exact string
	re    *regexp.Regexp
}

// grammar is evaluated top to bottom and the first match wins. Exact
// keywords come before parameterized forms, and Term is the fallback.
var grammar = []rule{
	{kind: KindUp, exact: "up"},
	{kind: KindDown, exact: "down"},
	{kind: KindAnd, exact: "and"},
	{kind: KindOr, exact: "or"},
	{kind: KindNot, exact: "not"},
	{kind: KindMaybe, exact: "maybe"},
	{kind: KindAsc, exact: "asc"},
	{kind: KindDesc, exact: "desc"},
	{kind: KindGoBack, exact: "goback"},
	{kind: KindGroupBy, re: regexp.MustCompile(`^groupBy\s+(.+)$`)},
	{kind: KindGroup, re: regexp.MustCompile(`^group\s*(.+)$`)},
	{kind: KindCountDistinct, exact: "countDistinct"},
	{kind: KindAfter, re: regexp.MustCompile(`^after\s+(.+)$`)},
	{kind: KindBefore, re: regexp.MustCompile(`^before\s+(.+)$`)},
	{kind: KindFromTo, re: regexp.MustCompile(`^from\s+(.+)\s+to\s+(.+)$`)},
	{kind: KindHigherThan, re: regexp.MustCompile(`^higherThan\s*(.+)$`)},
	{kind: KindLowerThan, re: regexp.MustCompile(`^lowerThan\s*(.+)$`)},
	{kind: KindBetween, re: regexp.MustCompile(`^between\s+(.+)\s+and\s+(.+)$`)},
	{kind: KindGreater, re: regexp.MustCompile(`^>\s*(.+)$`)},
	{kind: KindLess, re: regexp.MustCompile(`^<\s*(.+)$`)},
	{kind: KindMatch, re: regexp.MustCompile(`^match\s*(.+)$`)},
	{kind: KindLimit, re: regexp.MustCompile(`^limit\s*(.+)$`)},
	{kind: KindOffset, re: regexp.MustCompile(`^offset\s*(.+)$`)},
	{kind: KindFilter, re: regexp.MustCompile(`^filter\s+(.+)$`)},
	{kind: KindClass, re: regexp.MustCompile(`^a\s+(.+?)\s*$`)},
	{kind: KindClassWithoutConstraint, re: regexp.MustCompile(`^classWithoutConstraint\s+(.+?)\s*$`)},
	{kind: KindForwardProperty, re: regexp.MustCompile(`^forwardProperty\s+(.+)$`)},
	{kind: KindBackwardProperty, re: regexp.MustCompile(`^backwardProperty\s+(.+)$`)},
	{kind: KindPropertyWithoutPriority, re: regexp.MustCompile(`^propertyWithoutPriority\s+(.+)$`)},
	{kind: KindProperty, re: regexp.MustCompile(`^property\s+(.+)$`)},
	{kind: KindPropertyWithoutConstraint, re: regexp.MustCompile(`^propertyWithoutConstraint\s+(.+)$`)},
}

// Classify maps one normalized command to its step. Keywords are
// case-sensitive.
func Classify(fragment string) Step {
	for _, r := range grammar {
		if r.re == nil {
			if fragment == r.exact {
				return Step{Kind: r.kind, Raw: fragment}
			}
			continue
		}
		m := r.re.FindStringSubmatch(fragment)
		if m == nil {
			continue
		}
		args := make([]string, len(m)-1)
		copy(args, m[1:])
		return Step{Kind: r.kind, Raw: fragment, Args: args}
	}
	return Step{Kind: KindTerm, Raw: fragment}
}

// IsNumeric reports whether s parses as a decimal or scientific number
// once surrounding whitespace is removed.
func IsNumeric(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	f, err := strconv.ParseFloat(s, 64)
	return err == nil && !math.IsNaN(f)
}
