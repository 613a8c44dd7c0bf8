// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package search explores the interpretations of a command chain.
//
// Each lexical step (class, property, term, match) can resolve to several
// candidates. The controller builds a tree of states, one per resolved
// prefix, and picks the state with the highest accumulated score. That
// state need not be complete: a short, confident prefix beats a long,
// weakly supported one.
//
// Strategies:
//
//   - sequential: rank 1 only, with the full recovery ladder
//   - dfs: exhaustive depth-first backtracking
//   - beam: bounded beam search over expansion rounds
//
// Thread Safety: a Controller runs one resolution at a time. A second
// concurrent call fails with chainqa.ErrSearchInProgress.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AleutianAI/chainqa/services/chainqa"
	"github.com/AleutianAI/chainqa/services/chainqa/command"
	"github.com/AleutianAI/chainqa/services/chainqa/engine"
	"github.com/AleutianAI/chainqa/services/chainqa/recovery"
	"github.com/AleutianAI/chainqa/services/chainqa/resolver"
	"github.com/AleutianAI/chainqa/services/chainqa/telemetry"
)

// Strategy names an exploration strategy.
type Strategy string

const (
	StrategySequential Strategy = "sequential"
	StrategyDFS        Strategy = "dfs"
	StrategyBeam       Strategy = "beam"
)

// Strategies lists the supported strategies.
var Strategies = []Strategy{StrategySequential, StrategyDFS, StrategyBeam}

// ParseStrategy resolves a strategy name or alias.
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sequential", "best-at-individual-command":
		return StrategySequential, nil
	case "dfs", "depth-first", "backtracking", "exhaustive":
		return StrategyDFS, nil
	case "beam", "beam-search":
		return StrategyBeam, nil
	default:
		return "", fmt.Errorf("%w: %q", chainqa.ErrUnknownStrategy, name)
	}
}

// Default breadth settings.
const (
	DefaultTopK      = 3
	DefaultBeamWidth = 3
)

// Options tune one resolution.
type Options struct {
	// Strategy selects the exploration strategy.
	Strategy Strategy `json:"strategy" yaml:"strategy"`

	// TopK is the number of candidates tried per lexical step.
	TopK int `json:"top_k" yaml:"top_k"`

	// BeamWidth is the number of states kept between beam rounds.
	BeamWidth int `json:"beam_width" yaml:"beam_width"`

	// MaxStates caps the states a run creates, the root included. The
	// run stops at the cap and returns the best state so far. 0 is
	// unlimited.
	MaxStates int `json:"max_states" yaml:"max_states"`
}

// DefaultOptions returns beam search with K=3 and width 3.
func DefaultOptions() Options {
	return Options{
		Strategy:  StrategyBeam,
		TopK:      DefaultTopK,
		BeamWidth: DefaultBeamWidth,
	}
}

// Merge fills the zero fields of o from base.
func (o Options) Merge(base Options) Options {
	if o.Strategy == "" {
		o.Strategy = base.Strategy
	}
	if o.TopK <= 0 {
		o.TopK = base.TopK
	}
	if o.BeamWidth <= 0 {
		o.BeamWidth = base.BeamWidth
	}
	if o.MaxStates <= 0 {
		o.MaxStates = base.MaxStates
	}
	return o
}

// Result is the outcome of one resolution.
type Result struct {
	Strategy Strategy `json:"strategy"`

	// Place is the chosen place; the engine's current place is set to it.
	Place engine.Place `json:"-"`

	// Score is the accumulated score of the chosen place.
	Score float64 `json:"score"`

	// Complete reports whether every step was resolved on the chosen path.
	Complete bool `json:"complete"`

	// Remaining are the steps not resolved on the chosen path.
	Remaining command.Chain `json:"remaining"`

	// Root is the search tree; nil for the sequential strategy.
	Root *State `json:"-"`

	// Best is the chosen state; nil for the sequential strategy.
	Best *State `json:"-"`

	Stats Stats `json:"stats"`

	// Recoveries lists the recovery rules the sequential strategy applied.
	Recoveries []recovery.Action `json:"recoveries,omitempty"`
}

// Controller runs resolutions against one engine.
type Controller struct {
	runner   *recovery.Runner
	eng      engine.Engine
	defaults Options
	tracer   *Tracer
	logger   *slog.Logger
	busy     atomic.Bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(t *Tracer) Option {
	return func(c *Controller) {
		if t != nil {
			c.tracer = t
		}
	}
}

// NewController creates a controller over runner.
//
// Inputs:
//
//	runner - Step runner; its resolver's engine is the one driven.
//	defaults - Options used where a call leaves fields zero. Zero fields
//	  here fall back to DefaultOptions.
//	opts - Logger and tracer.
//
// Outputs:
//
//	*Controller - Ready controller.
//	error - Non-nil for a nil runner or an unknown default strategy.
func NewController(runner *recovery.Runner, defaults Options, opts ...Option) (*Controller, error) {
	if runner == nil || runner.Resolver() == nil {
		return nil, fmt.Errorf("search: %w", chainqa.ErrNilEngine)
	}
	defaults = defaults.Merge(DefaultOptions())
	if _, err := ParseStrategy(string(defaults.Strategy)); err != nil {
		return nil, err
	}
	c := &Controller{
		runner:   runner,
		eng:      runner.Resolver().Engine(),
		defaults: defaults,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.tracer == nil {
		c.tracer = NewTracer(c.logger, false)
	}
	return c, nil
}

// Defaults returns the default options.
func (c *Controller) Defaults() Options {
	return c.defaults
}

// Engine returns the driven engine.
func (c *Controller) Engine() engine.Engine {
	return c.eng
}

// Busy reports whether a resolution is running.
func (c *Controller) Busy() bool {
	return c.busy.Load()
}

// Lease is an exclusive claim on a Controller, taken with Acquire.
// Callers that must prepare per-run state before resolving, such as
// stamping a run ID on shared emitters, hold a lease while doing so.
type Lease struct {
	c        *Controller
	opts     Options
	strategy Strategy
	once     sync.Once
}

// Acquire claims the controller for one resolution with opts merged over
// the defaults. It fails with ErrUnknownStrategy for a bad strategy and
// with ErrSearchInProgress while another lease is held.
func (c *Controller) Acquire(opts Options) (*Lease, error) {
	opts = opts.Merge(c.defaults)
	strategy, err := ParseStrategy(string(opts.Strategy))
	if err != nil {
		return nil, err
	}
	if !c.busy.CompareAndSwap(false, true) {
		recordRun(strategy, "busy", nil)
		return nil, chainqa.ErrSearchInProgress
	}
	return &Lease{c: c, opts: opts, strategy: strategy}, nil
}

// Release frees the controller. Later calls do nothing.
func (l *Lease) Release() {
	l.once.Do(func() { l.c.busy.Store(false) })
}

// Resolve acquires the controller, resolves chain from place, and
// releases it.
//
// Description:
//
//	A nil place starts from the engine's current place. The bookkeeping
//	context is fresh for every call. On return the engine's current place
//	is the chosen place, also when the run stopped early.
//
//	An empty chain returns place unchanged with zero expansions. A run
//	stopped by MaxStates is not an error; Stats.BudgetExhausted is set.
//
// Outputs:
//
//	*Result - Outcome; non-nil whenever the run started.
//	error - ErrSearchInProgress, ErrUnknownStrategy, a context error, or
//	  *recovery.ChainError for a failed sequential run.
func (c *Controller) Resolve(ctx context.Context, place engine.Place, chain command.Chain, opts Options) (*Result, error) {
	lease, err := c.Acquire(opts)
	if err != nil {
		return nil, err
	}
	defer lease.Release()
	return lease.Resolve(ctx, place, chain)
}

// Resolve runs one resolution under the lease, as Controller.Resolve.
func (l *Lease) Resolve(ctx context.Context, place engine.Place, chain command.Chain) (*Result, error) {
	c, opts, strategy := l.c, l.opts, l.strategy
	if place == nil {
		place = c.eng.CurrentPlace()
	}

	ctx, runSpan := c.tracer.run(ctx, strategy, len(chain), opts)
	logger := telemetry.LoggerWithTrace(ctx, c.logger)
	logger.InfoContext(ctx, "resolving chain",
		slog.String("strategy", string(strategy)),
		slog.String("chain", chain.String()),
		slog.Int("top_k", opts.TopK),
		slog.Int("beam_width", opts.BeamWidth),
	)

	start := time.Now()
	sc := resolver.NewSearchContext()
	var res *Result
	var err error
	if strategy == StrategySequential {
		res, err = c.sequential(ctx, sc, place, chain)
	} else {
		res, err = c.explore(ctx, sc, place, chain, strategy, opts, logger)
	}
	res.Strategy = strategy
	res.Stats.Elapsed = time.Since(start)
	c.eng.SetCurrentPlace(res.Place)

	status := "ok"
	if err != nil {
		status = "failed"
		logger.InfoContext(ctx, "chain not fully resolved", slog.String("error", err.Error()))
	}
	recordRun(strategy, status, res)
	c.tracer.finishRun(runSpan, res, err)

	logger.InfoContext(ctx, "chain resolved",
		slog.Float64("score", res.Score),
		slog.Bool("complete", res.Complete),
		slog.String("stats", res.Stats.String()),
	)
	return res, err
}

func (c *Controller) sequential(ctx context.Context, sc *resolver.SearchContext, place engine.Place, chain command.Chain) (*Result, error) {
	run, err := c.runner.Run(ctx, sc, place, chain)
	res := &Result{
		Place:      run.Place,
		Score:      run.Score,
		Complete:   err == nil,
		Recoveries: run.Recoveries,
		Stats: Stats{
			StatesCreated:   run.Resolved + 1,
			StatesEvaluated: run.Resolved + 1,
			Expansions:      run.Resolved,
			MaxFrontier:     1,
		},
	}
	var ce *recovery.ChainError
	if errors.As(err, &ce) {
		res.Remaining = ce.Remaining
	} else if err != nil {
		res.Remaining = chain[run.Resolved:]
	}
	return res, err
}

func (c *Controller) explore(ctx context.Context, sc *resolver.SearchContext, place engine.Place, chain command.Chain, strategy Strategy, opts Options, logger *slog.Logger) (*Result, error) {
	res := &Result{}
	root := newState(place, chain, 0, nil)
	res.Stats.StatesCreated = 1

	b := budget{maxStates: opts.MaxStates, stats: &res.Stats}
	x := &expander{
		runner: c.runner,
		eng:    c.eng,
		topK:   opts.TopK,
		tracer: c.tracer,
		logger: logger,
		stats:  &res.Stats,
		budget: b,
	}

	var best *State
	var err error
	switch strategy {
	case StrategyDFS:
		best, err = depthFirst(ctx, x, sc, root, b)
	default:
		best, err = beamSearch(ctx, x, sc, root, opts.BeamWidth, b)
	}
	if errors.Is(err, chainqa.ErrBudgetExhausted) {
		logger.WarnContext(ctx, "state budget exhausted, returning best so far",
			slog.Int("max_states", opts.MaxStates))
		err = nil
	}

	res.Root = root
	res.Best = best
	res.Place = best.Place
	res.Score = best.Score
	res.Complete = best.Terminal()
	res.Remaining = best.Remaining
	return res, err
}
