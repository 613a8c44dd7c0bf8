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
	"context"
	"errors"
	"log/slog"
	"slices"

	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/chainqa/services/chainqa"
	"github.com/AleutianAI/chainqa/services/chainqa/engine"
	"github.com/AleutianAI/chainqa/services/chainqa/recovery"
	"github.com/AleutianAI/chainqa/services/chainqa/resolver"
)

// expander turns a state into its children, one per candidate rank of
// the head step.
type expander struct {
	runner *recovery.Runner
	eng    engine.Engine
	topK   int
	tracer *Tracer
	logger *slog.Logger
	stats  *Stats
	budget budget
}

// expand evaluates s once.
//
// Description:
//
//	A terminal state is marked evaluated with no children. Otherwise the
//	engine's current place is set to s.Place and the head step is resolved
//	at ranks 1..K, K being 1 for steps that are not lexical. Rank 1 goes
//	through the recovery ladder; later ranks use it only when rank 1
//	needed it. A term rewritten as a match ends the loop after rank 1,
//	a match having a single interpretation. A failed rank is logged and
//	skipped; no suggestion at a rank ends the loop since later ranks
//	cannot do better. No child is created once the state budget is full.
//
// Outputs:
//
//	error - Non-nil only for context cancellation.
func (x *expander) expand(ctx context.Context, sc *resolver.SearchContext, s *State) error {
	if s.Evaluated() {
		return nil
	}
	s.status = StatusEvaluating
	x.stats.StatesEvaluated++
	if s.Terminal() {
		s.status = StatusEvaluated
		return nil
	}
	x.stats.Expansions++

	ctx, espan := x.tracer.expand(ctx, s)
	x.eng.SetCurrentPlace(s.Place)

	head := s.Remaining[0]
	k := x.topK
	if !head.Kind.IsLexical() {
		k = 1
	}

	var err error
	recovered := false
	for rank := 1; rank <= k; rank++ {
		if err = ctx.Err(); err != nil {
			break
		}
		if x.budget.full() {
			break
		}

		var out resolver.Outcome
		var rerr error
		if rank == 1 || recovered {
			var actions []recovery.Action
			out, actions, _, rerr = x.runner.ResolveStep(ctx, sc, s.Place, head, rank)
			if rank == 1 && len(actions) > 0 {
				recovered = true
				if slices.Contains(actions, recovery.ActionTermToMatch) {
					k = 1
				}
			}
		} else {
			out, rerr = x.runner.Resolver().Resolve(ctx, sc, s.Place, head, rank)
		}
		recordRank(head.Kind.String(), rerr)
		x.tracer.rank(ctx, rank, rerr)

		if rerr != nil {
			if cerr := ctx.Err(); cerr != nil {
				err = cerr
				break
			}
			x.logger.DebugContext(ctx, "rank not resolved",
				slog.String("step", head.Raw),
				slog.Int("rank", rank),
				slog.String("error", rerr.Error()),
			)
			if errors.Is(rerr, chainqa.ErrNoSuggestion) {
				break
			}
			continue
		}

		child := newState(out.Place, s.Remaining[1:], s.Score+out.Score, s)
		s.children = append(s.children, child)
		x.stats.StatesCreated++
	}

	s.status = StatusEvaluated
	espan.end(err, attribute.Int("search.children", len(s.children)))
	return err
}
