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
	"fmt"
	"time"

	"github.com/AleutianAI/chainqa/services/chainqa"
)

// Stats are the counters of one run.
type Stats struct {
	// StatesCreated counts every state, the root included.
	StatesCreated int `json:"states_created"`

	// StatesEvaluated counts states taken through evaluation.
	StatesEvaluated int `json:"states_evaluated"`

	// Expansions counts evaluations of states that still had steps.
	Expansions int `json:"expansions"`

	// MaxFrontier is the largest stack or beam held between rounds.
	MaxFrontier int `json:"max_frontier"`

	// Elapsed is the wall time of the run.
	Elapsed time.Duration `json:"elapsed_ns"`

	// BudgetExhausted reports that the run stopped on max_states.
	BudgetExhausted bool `json:"budget_exhausted"`
}

// String renders the counters for logs.
func (s Stats) String() string {
	return fmt.Sprintf("created=%d evaluated=%d expansions=%d max_frontier=%d elapsed=%s",
		s.StatesCreated, s.StatesEvaluated, s.Expansions, s.MaxFrontier, s.Elapsed)
}

// budget enforces the optional state limit of a run.
type budget struct {
	maxStates int
	stats     *Stats
}

// full reports whether the run has created maxStates states, marking
// the run exhausted if so. A zero limit is never full.
func (b budget) full() bool {
	if b.maxStates > 0 && b.stats.StatesCreated >= b.maxStates {
		b.stats.BudgetExhausted = true
		return true
	}
	return false
}

// check returns ErrBudgetExhausted once the budget is full.
func (b budget) check() error {
	if b.full() {
		return chainqa.ErrBudgetExhausted
	}
	return nil
}

func (b budget) observeFrontier(n int) {
	if n > b.stats.MaxFrontier {
		b.stats.MaxFrontier = n
	}
}
