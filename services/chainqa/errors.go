// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package chainqa holds the error values shared by the command-chain
// resolver packages.
//
// The resolver turns a machine-generated command chain such as
//
//	a film ; forwardProperty director ; Tim Burton
//
// into a sequence of operations against a knowledge-graph navigation
// engine. Subpackages:
//
//   - command: normalization, splitting and step grammar
//   - resolver: per-step resolution against the engine
//   - scoring: candidate ranking
//   - recovery: failure recovery ladder and sequential runner
//   - search: depth-first and beam exploration of interpretations
package chainqa

import "errors"

var (
	// ErrEmptyChain indicates the chain had no steps after normalization.
	ErrEmptyChain = errors.New("empty command chain")

	// ErrNoSuggestion indicates no candidate qualified for a keyword step.
	ErrNoSuggestion = errors.New("no suggestion found")

	// ErrInvalidNumber indicates a numeric step argument did not parse.
	ErrInvalidNumber = errors.New("argument is not a number")

	// ErrMatchTooShort indicates a match keyword below the minimum length.
	ErrMatchTooShort = errors.New("match parameter is too short")

	// ErrEvaluation indicates the engine failed to evaluate a place.
	ErrEvaluation = errors.New("place evaluation failed")

	// ErrSearchInProgress indicates a resolution is already running.
	ErrSearchInProgress = errors.New("a resolution is already in progress")

	// ErrUnknownStrategy indicates an unsupported search strategy name.
	ErrUnknownStrategy = errors.New("unknown search strategy")

	// ErrBudgetExhausted indicates the search stopped on its state budget.
	ErrBudgetExhausted = errors.New("search state budget exhausted")

	// ErrCircuitOpen indicates the SPARQL circuit breaker rejected a call.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrNilEngine indicates a component was built without an engine.
	ErrNilEngine = errors.New("engine must not be nil")
)
