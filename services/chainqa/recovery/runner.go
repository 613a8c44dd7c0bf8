// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package recovery

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/AleutianAI/chainqa/services/chainqa/command"
	"github.com/AleutianAI/chainqa/services/chainqa/engine"
	"github.com/AleutianAI/chainqa/services/chainqa/resolver"
)

// ChainError is a terminal chain failure. The caller can report how far
// the chain got and which steps were left.
type ChainError struct {
	// Failed is the step that could not be resolved.
	Failed command.Step `json:"failed"`

	// Index is the 0-based position of Failed in the chain.
	Index int `json:"index"`

	// Total is the chain length.
	Total int `json:"total"`

	// Remaining are the unexecuted steps, Failed first.
	Remaining command.Chain `json:"remaining"`

	// Place is the last place reached.
	Place engine.Place `json:"-"`

	// Err is the step failure.
	Err error `json:"-"`
}

// Error implements error.
func (e *ChainError) Error() string {
	return fmt.Sprintf("reached step %d of %d (%q): %v", e.Index+1, e.Total, e.Failed.Raw, e.Err)
}

// Unwrap returns the step failure.
func (e *ChainError) Unwrap() error {
	return e.Err
}

// Result summarises a sequential run.
type Result struct {
	// Place is the place after the last resolved step.
	Place engine.Place

	// Score is the sum of the step scores.
	Score float64

	// Resolved is the number of chain steps resolved.
	Resolved int

	// Restarts is the number of whole-chain restarts.
	Restarts int

	// Recoveries lists the rules applied, in order.
	Recoveries []Action
}

// Runner resolves steps with the recovery ladder.
//
// Thread Safety: Not safe for overlapping runs on the same engine.
type Runner struct {
	res    *resolver.Resolver
	ladder *Ladder
	logger *slog.Logger
}

// NewRunner creates a runner over res. Term fallbacks are announced on
// the resolver's sink.
func NewRunner(res *resolver.Resolver, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		res:    res,
		ladder: NewLadder(res.Sink(), logger),
		logger: logger,
	}
}

// Resolver returns the underlying resolver.
func (r *Runner) Resolver() *resolver.Resolver {
	return r.res
}

// ResolveStep resolves step at rank, applying the term and climb rules
// until step itself resolves or no rule applies.
//
// Description:
//
//	Steps inserted by recovery (a climbing up) are resolved first and
//	their place carried forward. The returned outcome is that of step, or
//	of the match that replaced it. Restart is never applied here.
//
// Outputs:
//
//	resolver.Outcome - Outcome of the originating step.
//	[]Action - Rules applied.
//	engine.Place - Last place reached, meaningful on failure.
//	error - The last step failure when the ladder is exhausted.
func (r *Runner) ResolveStep(ctx context.Context, sc *resolver.SearchContext, place engine.Place, step command.Step, rank int) (resolver.Outcome, []Action, engine.Place, error) {
	pending := command.Chain{step}
	cur := place
	var used Used
	var actions []Action

	for {
		out, err := r.res.Resolve(ctx, sc, cur, pending[0], rank)
		if err != nil {
			action, next := r.ladder.Recover(ctx, sc, cur, pending, &used, false)
			if action == ActionNone {
				return resolver.Outcome{}, actions, cur, err
			}
			actions = append(actions, action)
			pending = next
			continue
		}
		if len(pending) == 1 {
			return out, actions, out.Place, nil
		}
		cur = out.Place
		pending = pending[1:]
	}
}

// Run resolves chain from place at rank 1, step by step.
//
// Description:
//
//	The run resets sc, then walks the chain with an index. Each step goes
//	through ResolveStep; the engine's current place follows every
//	resolved step. When a step fails for good and a class or match step
//	was skipped earlier, the chain restarts once from place.
//
// Outputs:
//
//	Result - Progress made, also filled on failure.
//	error - *ChainError on terminal failure, or a context error.
func (r *Runner) Run(ctx context.Context, sc *resolver.SearchContext, place engine.Place, chain command.Chain) (Result, error) {
	sc.Reset()
	eng := r.res.Engine()
	res := Result{Place: place}
	var runUsed Used

	for i := 0; i < len(chain); {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		out, actions, reached, err := r.ResolveStep(ctx, sc, res.Place, chain[i], 1)
		res.Recoveries = append(res.Recoveries, actions...)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			if r.ladder.Restart(ctx, sc, chain[i], &runUsed) {
				res.Recoveries = append(res.Recoveries, ActionRestart)
				res.Restarts++
				sc.Reset()
				res.Place = place
				res.Score = 0
				res.Resolved = 0
				eng.SetCurrentPlace(place)
				i = 0
				continue
			}
			res.Place = reached
			r.logger.InfoContext(ctx, "chain halted",
				slog.Int("step", i+1),
				slog.Int("total", len(chain)),
				slog.String("error", err.Error()),
			)
			return res, &ChainError{
				Failed:    chain[i],
				Index:     i,
				Total:     len(chain),
				Remaining: append(command.Chain(nil), chain[i:]...),
				Place:     reached,
				Err:       err,
			}
		}

		res.Place = out.Place
		res.Score += out.Score
		res.Resolved++
		eng.SetCurrentPlace(out.Place)
		i++
	}
	return res, nil
}
