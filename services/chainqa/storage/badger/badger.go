// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package badger is the embedded key-value store under the persistent
// reference-count cache.
//
// BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// ErrNoPath is returned by Open for an on-disk store without a directory.
var ErrNoPath = errors.New("badger: path is required unless in_memory is set")

// Config describes one store.
type Config struct {
	// Path is the store directory. A leading ~ is the user's home.
	Path     string `json:"path" yaml:"path"`
	InMemory bool   `json:"in_memory" yaml:"in_memory"`

	// SyncWrites trades write latency for durability of every commit.
	SyncWrites bool `json:"sync_writes" yaml:"sync_writes"`

	// GCInterval of 0 disables value-log GC.
	GCInterval     time.Duration `json:"gc_interval" yaml:"gc_interval" validate:"gte=0"`
	GCDiscardRatio float64       `json:"gc_discard_ratio" yaml:"gc_discard_ratio" validate:"gte=0,lte=1"`

	// Logger receives badger's own log lines at Debug and above. Nil
	// discards them.
	Logger *slog.Logger `json:"-" yaml:"-"`
}

// DefaultConfig returns on-disk defaults. Path is left for the caller.
func DefaultConfig() Config {
	return Config{GCInterval: 10 * time.Minute, GCDiscardRatio: 0.5}
}

// DB is an open store.
//
// Thread Safety: Safe for concurrent use. Close is idempotent.
type DB struct {
	db       *badger.DB
	inMemory bool
	logger   *slog.Logger

	cancelGC  context.CancelFunc
	gc        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// Open opens or creates the store described by cfg and, for on-disk
// stores with a GC interval, starts value-log collection.
func Open(cfg Config) (*DB, error) {
	opts, err := options(cfg)
	if err != nil {
		return nil, err
	}
	bdb, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger store: %w", err)
	}

	d := &DB{db: bdb, inMemory: cfg.InMemory, logger: cfg.Logger}
	if d.logger == nil {
		d.logger = slog.New(slog.DiscardHandler)
	}
	if !cfg.InMemory && cfg.GCInterval > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		d.cancelGC = cancel
		d.gc.Add(1)
		go d.collect(ctx, cfg.GCInterval, cfg.GCDiscardRatio)
	}
	return d, nil
}

// OpenInMemory opens an empty store that never touches disk.
func OpenInMemory() (*DB, error) {
	return Open(Config{InMemory: true})
}

func options(cfg Config) (badger.Options, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		dir, err := expandHome(cfg.Path)
		if err != nil {
			return opts, err
		}
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return opts, fmt.Errorf("create store directory: %w", err)
		}
		opts = badger.DefaultOptions(dir)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger == nil {
		return opts.WithLogger(nil), nil
	}
	return opts.WithLogger(slogAdapter{cfg.Logger}), nil
}

func expandHome(path string) (string, error) {
	switch {
	case path == "":
		return "", ErrNoPath
	case path == "~" || strings.HasPrefix(path, "~/"):
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve %s: %w", path, err)
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
	}
	return path, nil
}

// collect runs value-log GC until ctx ends. One pass keeps rewriting
// while badger finds files worth collecting.
func (d *DB) collect(ctx context.Context, every time.Duration, ratio float64) {
	defer d.gc.Done()
	tick := time.NewTicker(every)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}
		for ctx.Err() == nil {
			err := d.db.RunValueLogGC(ratio)
			if err == nil {
				continue
			}
			if !errors.Is(err, badger.ErrNoRewrite) && !errors.Is(err, badger.ErrRejected) {
				d.logger.Warn("value log gc failed", slog.String("error", err.Error()))
			}
			break
		}
	}
}

// InMemory reports whether the store keeps no files.
func (d *DB) InMemory() bool {
	return d.inMemory
}

// Update runs fn in a read-write transaction, committing only when fn
// succeeds.
func (d *DB) Update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.db.Update(fn)
}

// View runs fn in a read-only transaction.
func (d *DB) View(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.db.View(fn)
}

// Close stops GC and closes the store.
func (d *DB) Close() error {
	d.closeOnce.Do(func() {
		if d.cancelGC != nil {
			d.cancelGC()
			d.gc.Wait()
		}
		d.closeErr = d.db.Close()
	})
	return d.closeErr
}

// slogAdapter satisfies badger.Logger. Badger is chatty at Info, so
// Info lines are demoted to Debug.
type slogAdapter struct{ l *slog.Logger }

func (a slogAdapter) Errorf(f string, v ...any)   { a.l.Error(a.line(f, v)) }
func (a slogAdapter) Warningf(f string, v ...any) { a.l.Warn(a.line(f, v)) }
func (a slogAdapter) Infof(f string, v ...any)    { a.l.Debug(a.line(f, v)) }
func (a slogAdapter) Debugf(f string, v ...any)   { a.l.Debug(a.line(f, v)) }

func (slogAdapter) line(f string, v []any) string {
	return strings.TrimRight(fmt.Sprintf(f, v...), "\n")
}
