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
	"cmp"
	"context"
	"slices"

	"github.com/AleutianAI/chainqa/services/chainqa/resolver"
)

// depthFirst explores the whole tree with an explicit stack and returns
// the highest scoring state seen. Ties keep the earlier state.
func depthFirst(ctx context.Context, x *expander, sc *resolver.SearchContext, root *State, b budget) (*State, error) {
	best := root
	stack := []*State{root}
	b.observeFrontier(len(stack))

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return best, err
		}
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if !s.Evaluated() {
			if !s.Terminal() {
				if err := b.check(); err != nil {
					return best, err
				}
			}
			if err := x.expand(ctx, sc, s); err != nil {
				return best, err
			}
		}
		if s.Score > best.Score {
			best = s
		}

		for i := len(s.children) - 1; i >= 0; i-- {
			stack = append(stack, s.children[i])
		}
		b.observeFrontier(len(stack))
	}
	return best, nil
}

// beamSearch expands the frontier round by round, keeping the width
// highest scoring children of each round.
func beamSearch(ctx context.Context, x *expander, sc *resolver.SearchContext, root *State, width int, b budget) (*State, error) {
	best := root
	frontier := []*State{root}
	b.observeFrontier(len(frontier))

	for len(frontier) > 0 {
		var next []*State
		for _, s := range frontier {
			if err := ctx.Err(); err != nil {
				return best, err
			}
			if !s.Evaluated() {
				if !s.Terminal() {
					if err := b.check(); err != nil {
						return best, err
					}
				}
				if err := x.expand(ctx, sc, s); err != nil {
					return best, err
				}
			}
			if s.Score > best.Score {
				best = s
			}
			next = append(next, s.children...)
		}

		slices.SortStableFunc(next, func(l, r *State) int {
			return cmp.Compare(r.Score, l.Score)
		})
		if len(next) > width {
			next = next[:width]
		}
		b.observeFrontier(len(next))
		frontier = next
	}
	return best, nil
}
