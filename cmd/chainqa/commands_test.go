// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/chainqa/services/chainqa"
	"github.com/AleutianAI/chainqa/services/chainqa/recovery"
)

const films = `
name: films
entities:
  - {uri: "ex:Film", label: film, kind: class, frequency: 20}
  - {uri: "ex:director", label: director, kind: property, frequency: 12}
  - {uri: "ex:TimBurton", label: Tim Burton, kind: term, frequency: 3}
`

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "films.yaml")
	require.NoError(t, os.WriteFile(path, []byte(films), 0o600))
	return path
}

func TestVersion(t *testing.T) {
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "chainqa 0.1.0")
}

func TestParse(t *testing.T) {
	out, _, err := execute(t, "parse", "a film ; forwardProperty director ; limit 5")
	require.NoError(t, err)
	assert.Contains(t, out, "class")
	assert.Contains(t, out, "forwardProperty director")
	assert.Contains(t, out, `["5"]`)
}

func TestParse_JSON(t *testing.T) {
	out, _, err := execute(t, "parse", "--json", "a", "film ; up")
	require.NoError(t, err)

	var steps []stepJSON
	require.NoError(t, json.Unmarshal([]byte(out), &steps))
	assert.Equal(t, []stepJSON{
		{Kind: "class", Raw: "a film", Args: []string{"film"}},
		{Kind: "up", Raw: "up"},
	}, steps)
}

func TestParse_Empty(t *testing.T) {
	_, _, err := execute(t, "parse", " ; ")
	assert.ErrorIs(t, err, chainqa.ErrEmptyChain)
}

func TestResolve_Pretty(t *testing.T) {
	out, _, err := execute(t, "resolve", "--fixture", writeFixture(t), "--tree",
		"a film ; forwardProperty director ; Tim Burton ; limit 10")
	require.NoError(t, err)
	assert.Contains(t, out, "Chain resolved")
	assert.Contains(t, out, "limit: 10")
	assert.Contains(t, out, "ex:TimBurton")
	assert.Contains(t, out, "next: done")
}

func TestResolve_JSON(t *testing.T) {
	out, _, err := execute(t, "resolve", "--fixture", writeFixture(t), "--json", "--strategy", "dfs",
		"a film ; director")
	require.NoError(t, err)

	var doc struct {
		RunID  string `json:"run_id"`
		Chain  string `json:"chain"`
		Result struct {
			Strategy string `json:"strategy"`
			Complete bool   `json:"complete"`
		} `json:"result"`
		SPARQL string          `json:"sparql"`
		Tree   json.RawMessage `json:"tree"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.NotEmpty(t, doc.RunID)
	assert.Equal(t, "a film ; director", doc.Chain)
	assert.Equal(t, "dfs", doc.Result.Strategy)
	assert.True(t, doc.Result.Complete)
	assert.Contains(t, doc.SPARQL, "ex:director")
	assert.Empty(t, doc.Tree)
}

func TestResolve_StrictFailure(t *testing.T) {
	out, _, err := execute(t, "resolve", "--fixture", writeFixture(t), "--strategy", "sequential", "--strict",
		"a film ; forwardProperty budget")
	require.Error(t, err)

	var chainErr *recovery.ChainError
	require.ErrorAs(t, err, &chainErr)
	assert.ErrorIs(t, err, chainqa.ErrNoSuggestion)
	assert.Contains(t, out, "Chain partially resolved")
}

func TestResolve_Rejects(t *testing.T) {
	fixture := writeFixture(t)

	_, _, err := execute(t, "resolve", "--fixture", fixture, "--strategy", "mcts", "a film")
	assert.ErrorIs(t, err, chainqa.ErrUnknownStrategy)

	_, _, err = execute(t, "resolve", "--fixture", filepath.Join(t.TempDir(), "absent.yaml"), "a film")
	assert.Error(t, err)

	_, _, err = execute(t, "resolve", "--log-level", "loud", "a film")
	assert.Error(t, err)
}
