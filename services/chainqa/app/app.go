// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package app assembles the resolver stack from a configuration.
//
// Both the CLI and the HTTP server build one App and call Resolve.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/AleutianAI/chainqa/services/chainqa/command"
	"github.com/AleutianAI/chainqa/services/chainqa/config"
	"github.com/AleutianAI/chainqa/services/chainqa/engine"
	"github.com/AleutianAI/chainqa/services/chainqa/engine/memengine"
	"github.com/AleutianAI/chainqa/services/chainqa/events"
	"github.com/AleutianAI/chainqa/services/chainqa/recovery"
	"github.com/AleutianAI/chainqa/services/chainqa/resolver"
	"github.com/AleutianAI/chainqa/services/chainqa/scoring"
	"github.com/AleutianAI/chainqa/services/chainqa/search"
	"github.com/AleutianAI/chainqa/services/chainqa/sparql"
	bstore "github.com/AleutianAI/chainqa/services/chainqa/storage/badger"
)

// App holds the wired components.
//
// Thread Safety: Resolve may be called concurrently; overlapping calls
// fail with chainqa.ErrSearchInProgress before touching run state.
type App struct {
	Config     config.Config
	Engine     engine.Engine
	Emitter    *events.Emitter
	Controller *search.Controller
	Parser     *command.Parser

	// SPARQL is nil unless an endpoint is configured.
	SPARQL *sparql.Client

	db     *bstore.DB
	logger *slog.Logger
}

// Option configures Build.
type Option func(*buildOptions)

type buildOptions struct {
	engine engine.Engine
}

// WithEngine uses eng instead of loading the configured fixture.
func WithEngine(eng engine.Engine) Option {
	return func(o *buildOptions) {
		o.engine = eng
	}
}

// Build wires the components described by cfg.
//
// Description:
//
//	The engine is the YAML fixture at cfg.Fixture.Path unless WithEngine
//	is given. Reference counts go to the SPARQL endpoint when one is
//	configured, else to the engine. The count cache follows
//	cfg.Cache.Backend.
//
// Outputs:
//
//	*App - Ready to resolve. Close it to release the cache store.
//	error - Non-nil when a component cannot be created.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var bo buildOptions
	for _, opt := range opts {
		opt(&bo)
	}

	a := &App{Config: cfg, logger: logger, Parser: command.NewParser()}

	eng := bo.engine
	if eng == nil {
		fixture, err := loadFixture(cfg.Fixture.Path, logger)
		if err != nil {
			return nil, err
		}
		eng = memengine.New(fixture)
	}
	a.Engine = eng

	var eval engine.QueryEvaluator = eng
	if cfg.SPARQL.Endpoint != "" {
		client, err := sparql.NewClient(cfg.SPARQL, sparql.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("create sparql client: %w", err)
		}
		a.SPARQL = client
		eval = client
	}

	cache, err := a.openCache()
	if err != nil {
		return nil, err
	}

	var counter scoring.ReferenceCounter
	if cfg.Scoring.Policy != scoring.PolicyPlain {
		counter = scoring.NewQueryCounter(eval, cache)
	}
	ranker, err := scoring.NewRanker(cfg.Scoring.Policy, counter, cfg.Scoring.MaxConcurrency, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Emitter = events.NewEmitter(events.WithLogger(logger))
	res, err := resolver.New(eng, ranker, resolver.WithSink(a.Emitter), resolver.WithLogger(logger))
	if err != nil {
		a.Close()
		return nil, err
	}

	ctrl, err := search.NewController(recovery.NewRunner(res, logger), cfg.Search.Options(),
		search.WithLogger(logger),
		search.WithTracer(search.NewTracer(logger, cfg.Search.TracingEnabled)),
	)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Controller = ctrl

	logger.Info("chainqa ready",
		slog.String("strategy", cfg.Search.Strategy),
		slog.String("scoring", cfg.Scoring.Policy),
		slog.String("cache", cfg.Cache.Backend),
		slog.Bool("sparql_endpoint", a.SPARQL != nil),
	)
	return a, nil
}

func loadFixture(path string, logger *slog.Logger) (*memengine.Fixture, error) {
	if path == "" {
		logger.Warn("no fixture configured, the engine graph is empty")
		return &memengine.Fixture{Name: "empty"}, nil
	}
	f, err := memengine.LoadFixture(path)
	if err != nil {
		return nil, fmt.Errorf("load fixture %s: %w", path, err)
	}
	return f, nil
}

func (a *App) openCache() (scoring.Cache, error) {
	switch a.Config.Cache.Backend {
	case config.CacheBadger:
		bcfg := a.Config.Cache.Badger
		bcfg.Logger = a.logger
		db, err := bstore.Open(bcfg)
		if err != nil {
			return nil, fmt.Errorf("open reference-count cache: %w", err)
		}
		a.db = db
		return scoring.NewBadgerCache(db, a.Config.Cache.TTL, a.logger), nil
	case config.CacheMemory:
		return scoring.NewMemoryCache(), nil
	default:
		return scoring.NopCache{}, nil
	}
}

// Outcome is a resolution plus the query alterations announced while it
// ran.
type Outcome struct {
	RunID       string
	Result      *search.Result
	Alterations events.QueryAlterations
}

// SPARQL returns the query of the chosen place.
func (o *Outcome) SPARQL() string {
	if o.Result == nil || o.Result.Place == nil {
		return ""
	}
	return o.Result.Place.SPARQL()
}

// Permalink returns the permalink of the chosen place.
func (o *Outcome) Permalink() string {
	if o.Result == nil || o.Result.Place == nil {
		return ""
	}
	return o.Result.Place.Permalink()
}

// Resolve parses raw and resolves it from the engine's current place.
//
// Outputs:
//
//	*Outcome - Filled whenever the run started, also on failure.
//	error - As search.Controller.Resolve.
func (a *App) Resolve(ctx context.Context, raw string, opts search.Options) (*Outcome, error) {
	return a.ResolveChain(ctx, a.Parser.Parse(raw), opts)
}

// ResolveChain resolves an already parsed chain.
func (a *App) ResolveChain(ctx context.Context, chain command.Chain, opts search.Options) (*Outcome, error) {
	lease, err := a.Controller.Acquire(opts)
	if err != nil {
		return nil, err
	}
	defer lease.Release()

	runID := uuid.NewString()
	a.Emitter.SetRunID(runID)
	rec := events.NewRecorder(a.Emitter)
	defer rec.Close()

	res, err := lease.Resolve(ctx, nil, chain)
	if res == nil {
		return nil, err
	}
	return &Outcome{RunID: runID, Result: res, Alterations: rec.Alterations()}, err
}

// Reset moves the engine back to its root place. It reports false when
// the engine has no root or a resolution is running.
func (a *App) Reset() bool {
	r, ok := a.Engine.(interface{ Root() engine.Place })
	if !ok {
		return false
	}
	lease, err := a.Controller.Acquire(search.Options{})
	if err != nil {
		return false
	}
	defer lease.Release()
	a.Engine.SetCurrentPlace(r.Root())
	return true
}

// Close releases the cache store.
func (a *App) Close() error {
	var errs []error
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close cache: %w", err))
		}
		a.db = nil
	}
	return errors.Join(errs...)
}
