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
	"log/slog"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/chainqa/services/chainqa"
	"github.com/AleutianAI/chainqa/services/chainqa/engine"
	"github.com/AleutianAI/chainqa/services/chainqa/telemetry"
)

// Ranking policies.
const (
	PolicyPlain    = "plain"
	PolicyRefCount = "refcount"
)

// Ranker orders the candidates of a forest for a keyword, best first.
type Ranker interface {
	Rank(ctx context.Context, keyword string, forest engine.Forest, keep Predicate, lex engine.Lexicon) ([]Candidate, error)
}

// Select ranks forest and returns the rank-th best candidate (1-based).
// It returns chainqa.ErrNoSuggestion when fewer than rank candidates
// qualify.
func Select(ctx context.Context, r Ranker, keyword string, forest engine.Forest, keep Predicate, lex engine.Lexicon, rank int) (Candidate, error) {
	if rank < 1 {
		rank = 1
	}
	ranked, err := r.Rank(ctx, keyword, forest, keep, lex)
	if err != nil {
		return Candidate{}, err
	}
	if len(ranked) < rank {
		return Candidate{}, fmt.Errorf("%w: %q (rank %d of %d)", chainqa.ErrNoSuggestion, keyword, rank, len(ranked))
	}
	return ranked[rank-1], nil
}

// PlainRanker sorts by score alone.
type PlainRanker struct{}

// Rank implements Ranker. Equal scores keep forest order.
func (PlainRanker) Rank(ctx context.Context, keyword string, forest engine.Forest, keep Predicate, lex engine.Lexicon) ([]Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cands := scoreForest(keyword, forest, keep, lex)
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].Score > cands[j].Score
	})
	return cands, nil
}

// RefCountRanker keeps candidates with a positive score and breaks score
// ties by graph reference count.
//
// Thread Safety: Safe for concurrent use.
type RefCountRanker struct {
	counter        ReferenceCounter
	maxConcurrency int
	logger         *slog.Logger
}

// NewRefCountRanker creates a ranker. maxConcurrency bounds the number
// of candidates counted at once; values below 1 leave it unbounded.
func NewRefCountRanker(counter ReferenceCounter, maxConcurrency int, logger *slog.Logger) *RefCountRanker {
	if logger == nil {
		logger = slog.Default()
	}
	return &RefCountRanker{counter: counter, maxConcurrency: maxConcurrency, logger: logger}
}

// Rank implements Ranker.
//
// Description:
//
//	Scores the accepted candidates, drops those scoring zero, counts the
//	references of the remaining ones concurrently and sorts by score
//	then reference count, both descending. A failed count is logged and
//	treated as zero so an unavailable endpoint degrades the tie-break
//	rather than the resolution.
//
// Outputs:
//
//	[]Candidate - Ranked candidates, possibly empty.
//	error - Only context cancellation.
func (r *RefCountRanker) Rank(ctx context.Context, keyword string, forest engine.Forest, keep Predicate, lex engine.Lexicon) ([]Candidate, error) {
	ctx, span := telemetry.StartSpan(ctx, "chainqa.scoring", "RefCountRanker.Rank")
	defer span.End()

	scored := scoreForest(keyword, forest, keep, lex)
	cands := scored[:0]
	for _, c := range scored {
		if c.Score > 0 {
			cands = append(cands, c)
		}
	}
	span.SetAttributes(
		attribute.String("keyword", keyword),
		attribute.Int("candidates", len(cands)),
	)
	if len(cands) == 0 {
		return cands, nil
	}

	g, gCtx := errgroup.WithContext(ctx)
	if r.maxConcurrency > 0 {
		g.SetLimit(r.maxConcurrency)
	}
	for i := range cands {
		g.Go(func() error {
			n, err := r.counter.Count(gCtx, cands[i].Ref)
			if err != nil {
				if ctxErr := gCtx.Err(); ctxErr != nil {
					return ctxErr
				}
				r.logger.WarnContext(gCtx, "reference count failed",
					slog.String("ref", cands[i].Ref),
					slog.String("error", err.Error()),
				)
				return nil
			}
			cands[i].References = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].Score != cands[j].Score {
			return cands[i].Score > cands[j].Score
		}
		return cands[i].References > cands[j].References
	})
	return cands, nil
}

// NewRanker builds the ranker for policy. The reference-count policy
// requires counter.
func NewRanker(policy string, counter ReferenceCounter, maxConcurrency int, logger *slog.Logger) (Ranker, error) {
	switch policy {
	case PolicyPlain:
		return PlainRanker{}, nil
	case PolicyRefCount, "":
		if counter == nil {
			return nil, fmt.Errorf("ranking policy %q requires a reference counter", PolicyRefCount)
		}
		return NewRefCountRanker(counter, maxConcurrency, logger), nil
	default:
		return nil, fmt.Errorf("unknown ranking policy %q", policy)
	}
}
