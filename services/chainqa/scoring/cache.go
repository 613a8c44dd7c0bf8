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
	"encoding/binary"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	bstore "github.com/AleutianAI/chainqa/services/chainqa/storage/badger"
)

// Cache stores reference counts. Implementations never fail the caller;
// storage errors are treated as misses.
type Cache interface {
	Get(ctx context.Context, ref string) (int64, bool)
	Put(ctx context.Context, ref string, n int64)
}

// NopCache caches nothing.
type NopCache struct{}

// Get implements Cache.
func (NopCache) Get(context.Context, string) (int64, bool) { return 0, false }

// Put implements Cache.
func (NopCache) Put(context.Context, string, int64) {}

// MemoryCache is a process-local map cache.
type MemoryCache struct {
	mu     sync.RWMutex
	counts map[string]int64
}

// NewMemoryCache creates an empty memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{counts: make(map[string]int64)}
}

// Get implements Cache.
func (m *MemoryCache) Get(_ context.Context, ref string) (int64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.counts[ref]
	return n, ok
}

// Put implements Cache.
func (m *MemoryCache) Put(_ context.Context, ref string, n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[ref] = n
}

// Len returns the number of cached references.
func (m *MemoryCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.counts)
}

const refCountPrefix = "refcount/"

// BadgerCache persists counts in BadgerDB with an optional TTL.
//
// Thread Safety: Safe for concurrent use.
type BadgerCache struct {
	db     *bstore.DB
	ttl    time.Duration
	logger *slog.Logger
}

// NewBadgerCache creates a cache over db. A zero ttl keeps entries
// forever.
func NewBadgerCache(db *bstore.DB, ttl time.Duration, logger *slog.Logger) *BadgerCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &BadgerCache{db: db, ttl: ttl, logger: logger}
}

// Get implements Cache.
func (b *BadgerCache) Get(ctx context.Context, ref string) (int64, bool) {
	var n int64
	err := b.db.View(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(refCountPrefix + ref))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) != 8 {
				return errors.New("malformed reference count entry")
			}
			n = int64(binary.BigEndian.Uint64(val))
			return nil
		})
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			b.logger.WarnContext(ctx, "reference count cache read failed",
				slog.String("ref", ref), slog.String("error", err.Error()))
		}
		return 0, false
	}
	return n, true
}

// Put implements Cache.
func (b *BadgerCache) Put(ctx context.Context, ref string, n int64) {
	val := make([]byte, 8)
	binary.BigEndian.PutUint64(val, uint64(n))
	err := b.db.Update(ctx, func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(refCountPrefix+ref), val)
		if b.ttl > 0 {
			e = e.WithTTL(b.ttl)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		b.logger.WarnContext(ctx, "reference count cache write failed",
			slog.String("ref", ref), slog.String("error", err.Error()))
	}
}

var (
	_ Cache = NopCache{}
	_ Cache = (*MemoryCache)(nil)
	_ Cache = (*BadgerCache)(nil)
)
