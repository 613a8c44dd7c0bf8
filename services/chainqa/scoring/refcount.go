// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scoring

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/AleutianAI/chainqa/services/chainqa/engine"
	"github.com/AleutianAI/chainqa/services/chainqa/sparql"
)

// ReferenceCounter reports how many triples a reference takes part in.
type ReferenceCounter interface {
	Count(ctx context.Context, ref string) (int64, error)
}

// QueryCounter counts references with two raw count queries, one with
// the reference as object and one as subject.
//
// Thread Safety: Safe for concurrent use.
type QueryCounter struct {
	eval  engine.QueryEvaluator
	cache Cache
	group singleflight.Group
}

// NewQueryCounter creates a counter over eval. A nil cache disables
// caching.
func NewQueryCounter(eval engine.QueryEvaluator, cache Cache) *QueryCounter {
	if cache == nil {
		cache = NopCache{}
	}
	return &QueryCounter{eval: eval, cache: cache}
}

// Count implements ReferenceCounter.
//
// Description:
//
//	Serves from the cache when possible. On a miss, concurrent lookups
//	of the same reference share one pair of queries; the two queries of
//	the pair run concurrently.
func (q *QueryCounter) Count(ctx context.Context, ref string) (int64, error) {
	start := time.Now()
	defer func() { recordLookup(ctx, time.Since(start)) }()

	if n, ok := q.cache.Get(ctx, ref); ok {
		recordCacheHit(ctx)
		return n, nil
	}
	recordCacheMiss(ctx)

	v, err, _ := q.group.Do(ref, func() (any, error) {
		if n, ok := q.cache.Get(ctx, ref); ok {
			return n, nil
		}
		n, err := q.query(ctx, ref)
		if err != nil {
			return nil, err
		}
		q.cache.Put(ctx, ref, n)
		return n, nil
	})
	if err != nil {
		return 0, fmt.Errorf("count references of %s: %w", ref, err)
	}
	n, ok := v.(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected type from reference count group: got %T", v)
	}
	return n, nil
}

func (q *QueryCounter) query(ctx context.Context, ref string) (int64, error) {
	var objects, subjects int64
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := q.eval.EvalSPARQL(gCtx, sparql.CountObjectQuery(ref))
		if err != nil {
			return err
		}
		objects = res.FirstInt(sparql.CountVar)
		return nil
	})
	g.Go(func() error {
		res, err := q.eval.EvalSPARQL(gCtx, sparql.CountSubjectQuery(ref))
		if err != nil {
			return err
		}
		subjects = res.FirstInt(sparql.CountVar)
		return nil
	})
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return objects + subjects, nil
}
