// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/chainqa/services/chainqa"
	"github.com/AleutianAI/chainqa/services/chainqa/config"
	"github.com/AleutianAI/chainqa/services/chainqa/events"
	"github.com/AleutianAI/chainqa/services/chainqa/search"
)

const graph = `
name: films
entities:
  - {uri: "ex:Film", label: film, kind: class, frequency: 20, subjects: 40, objects: 3}
  - {uri: "ex:director", label: director, kind: property, frequency: 12, subjects: 9, objects: 1}
  - {uri: "ex:released", label: release date, kind: property, frequency: 2, datatype: "http://www.w3.org/2001/XMLSchema#date"}
`

func testConfig(t *testing.T) config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "films.yaml")
	require.NoError(t, os.WriteFile(path, []byte(graph), 0o600))

	cfg := config.Default()
	cfg.Fixture.Path = path
	return cfg
}

func TestBuild_MissingFixture(t *testing.T) {
	cfg := config.Default()
	cfg.Fixture.Path = filepath.Join(t.TempDir(), "absent.yaml")
	_, err := Build(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestBuild_UnknownPolicy(t *testing.T) {
	cfg := testConfig(t)
	cfg.Scoring.Policy = "random"
	_, err := Build(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestResolve_RecordsAlterations(t *testing.T) {
	a, err := Build(context.Background(), testConfig(t), nil)
	require.NoError(t, err)
	defer a.Close()

	out, err := a.Resolve(context.Background(), "a film ; forwardProperty release date ; desc ; limit 5", search.Options{})
	require.NoError(t, err)

	assert.NotEmpty(t, out.RunID)
	assert.True(t, out.Result.Complete)
	assert.Equal(t, "5", out.Alterations.Limit)
	assert.True(t, out.Alterations.OrderByDate)
	assert.Contains(t, out.SPARQL(), "ex:released")
	assert.Equal(t, out.Permalink(), a.Engine.CurrentPlace().Permalink())
}

func TestResolve_AlterationsAreScopedToRun(t *testing.T) {
	a, err := Build(context.Background(), testConfig(t), nil)
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Resolve(context.Background(), "limit 5", search.Options{})
	require.NoError(t, err)
	require.True(t, a.Reset())

	out, err := a.Resolve(context.Background(), "a film", search.Options{})
	require.NoError(t, err)
	assert.True(t, out.Alterations.IsZero())
	assert.Zero(t, a.Emitter.SubscriptionCount(), "recorders unsubscribe after the run")
}

func TestBuild_BadgerCache(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cache.Backend = config.CacheBadger
	cfg.Cache.Badger.InMemory = true

	a, err := Build(context.Background(), cfg, nil)
	require.NoError(t, err)

	out, err := a.Resolve(context.Background(), "a film ; forwardProperty director", search.Options{Strategy: search.StrategySequential})
	require.NoError(t, err)
	assert.True(t, out.Result.Complete)
	assert.NoError(t, a.Close())
	assert.NoError(t, a.Close())
}

func TestReset(t *testing.T) {
	a, err := Build(context.Background(), testConfig(t), nil)
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Resolve(context.Background(), "a film", search.Options{})
	require.NoError(t, err)
	assert.NotEqual(t, "mem:@", a.Engine.CurrentPlace().Permalink())

	require.True(t, a.Reset())
	assert.Equal(t, "mem:@", a.Engine.CurrentPlace().Permalink())
}

func TestResolve_BusyLeavesRunStateAlone(t *testing.T) {
	a, err := Build(context.Background(), testConfig(t), nil)
	require.NoError(t, err)
	defer a.Close()

	lease, err := a.Controller.Acquire(search.Options{})
	require.NoError(t, err)
	a.Emitter.SetRunID("held")

	out, err := a.Resolve(context.Background(), "a film ; limit 5", search.Options{})
	assert.ErrorIs(t, err, chainqa.ErrSearchInProgress)
	assert.Nil(t, out)
	assert.Zero(t, a.Emitter.SubscriptionCount())
	assert.False(t, a.Reset())

	a.Emitter.Emit(context.Background(), events.TypeLimit, nil)
	buf := a.Emitter.BufferByType(events.TypeLimit)
	require.Len(t, buf, 1)
	assert.Equal(t, "held", buf[0].RunID)

	lease.Release()
	lease.Release()
	out, err = a.Resolve(context.Background(), "a film", search.Options{})
	require.NoError(t, err)
	assert.True(t, out.Result.Complete)
}
