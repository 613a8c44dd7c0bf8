// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package recovery rewrites the remaining chain when a step fails and
// runs chains sequentially with those rewrites.
//
// The ladder, tried in order for each failure:
//
//  1. A failed term lookup of at least three characters is retried as a
//     keyword match.
//  2. A failed property, forwardProperty, backwardProperty or up step,
//     with the focus deeper than one move,
//     is retried after climbing one level.
//  3. If a class or match step was skipped for lack of results earlier in
//     the run, the whole chain restarts once.
//  4. Otherwise the failure is terminal.
//
// Each rule is applied at most once per originating failure. Restart is
// applied at most once per run and only by the sequential runner.
package recovery

import (
	"context"
	"log/slog"
	"unicode/utf8"

	"github.com/AleutianAI/chainqa/services/chainqa/command"
	"github.com/AleutianAI/chainqa/services/chainqa/engine"
	"github.com/AleutianAI/chainqa/services/chainqa/events"
	"github.com/AleutianAI/chainqa/services/chainqa/resolver"
)

// Action is a recovery rule.
type Action string

const (
	ActionNone        Action = ""
	ActionTermToMatch Action = "term_to_match"
	ActionClimb       Action = "climb"
	ActionRestart     Action = "restart"
)

// TermMinLength is the minimum rune length of a term worth retrying as a
// match.
const TermMinLength = 3

// TermBackupMessage accompanies the term_cmd_backup notification.
const TermBackupMessage = "The command trying to get a specific entity failed. Now trying to match the corresponding term instead."

// Used records which rules were already spent.
type Used struct {
	TermToMatch bool
	Climb       bool
	Restart     bool
}

// Ladder decides how to recover from a failed step.
type Ladder struct {
	sink   events.Sink
	logger *slog.Logger
}

// NewLadder creates a ladder that announces term fallbacks on sink.
func NewLadder(sink events.Sink, logger *slog.Logger) *Ladder {
	if sink == nil {
		sink = events.Discard{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ladder{sink: sink, logger: logger}
}

// Recover picks the first applicable rule for the failure of pending[0]
// at place and returns the rewritten pending steps.
//
// Description:
//
//	Only the term and climb rules rewrite pending. When restart applies
//	the returned chain is nil and the caller restarts the run. Context
//	errors are never recovered.
//
// Inputs:
//
//	ctx - Context; a cancelled context yields ActionNone.
//	sc - Run bookkeeping, read for the restart rule.
//	place - Place at which pending[0] failed.
//	pending - Steps still to resolve, failed step first.
//	used - Rules already spent; updated in place.
//	allowRestart - Whether the restart rule may apply.
//
// Outputs:
//
//	Action - The rule applied, or ActionNone when terminal.
//	command.Chain - The rewritten pending steps for term and climb.
func (l *Ladder) Recover(ctx context.Context, sc *resolver.SearchContext, place engine.Place, pending command.Chain, used *Used, allowRestart bool) (Action, command.Chain) {
	if ctx.Err() != nil || len(pending) == 0 {
		return ActionNone, nil
	}
	head := pending[0]

	if head.Kind == command.KindTerm && utf8.RuneCountInString(head.Raw) >= TermMinLength && !used.TermToMatch {
		used.TermToMatch = true
		l.sink.Emit(ctx, events.TypeTermCmdBackup, events.TermBackupData{
			Message: TermBackupMessage,
			Step:    head.Raw,
		})
		l.logger.InfoContext(ctx, "retrying term as match", slog.String("step", head.Raw))
		return ActionTermToMatch, replaceHead(pending, command.Match(head.Raw))
	}

	if climbs(head.Kind) && place != nil && place.FocusPath().Depth() > 1 && !used.Climb {
		used.Climb = true
		l.logger.InfoContext(ctx, "climbing before retrying", slog.String("step", head.Raw))
		return ActionClimb, prepend(command.Up(), pending)
	}

	if allowRestart && l.Restart(ctx, sc, head, used) {
		return ActionRestart, nil
	}

	return ActionNone, nil
}

// climbs reports whether a failure of kind may be retried one focus
// level up. The unprioritised and unconstrained property variants never
// climb.
func climbs(k command.Kind) bool {
	switch k {
	case command.KindProperty, command.KindForwardProperty, command.KindBackwardProperty, command.KindUp:
		return true
	default:
		return false
	}
}

// Restart reports whether the whole chain should restart after head
// failed for good, spending the restart rule if so.
func (l *Ladder) Restart(ctx context.Context, sc *resolver.SearchContext, head command.Step, used *Used) bool {
	if ctx.Err() != nil || sc == nil || !sc.NeedsRetry || used.Restart {
		return false
	}
	used.Restart = true
	l.logger.InfoContext(ctx, "restarting chain after skipped step", slog.String("step", head.Raw))
	return true
}

func replaceHead(c command.Chain, s command.Step) command.Chain {
	out := make(command.Chain, len(c))
	copy(out, c)
	out[0] = s
	return out
}

func prepend(s command.Step, c command.Chain) command.Chain {
	out := make(command.Chain, 0, len(c)+1)
	out = append(out, s)
	return append(out, c...)
}
