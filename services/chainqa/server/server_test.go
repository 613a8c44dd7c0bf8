// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/chainqa/services/chainqa/app"
	"github.com/AleutianAI/chainqa/services/chainqa/config"
	"github.com/AleutianAI/chainqa/services/chainqa/engine/memengine"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const graph = `
name: films
entities:
  - {uri: "ex:Film", label: film, kind: class, frequency: 20}
  - {uri: "ex:FilmStudio", label: film studio, kind: class, frequency: 3}
  - {uri: "ex:director", label: director, kind: property, frequency: 12}
  - {uri: "ex:TimBurton", label: Tim Burton, kind: term, frequency: 3}
`

func setupRouter(t *testing.T) (*gin.Engine, *app.App) {
	t.Helper()
	fixture, err := memengine.ParseFixture([]byte(graph))
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Server.Mode = gin.TestMode
	cfg.Scoring.Policy = "plain"
	cfg.Cache.Backend = config.CacheNone

	a, err := app.Build(context.Background(), cfg, nil, app.WithEngine(memengine.New(fixture)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return NewRouter(a, nil), a
}

func post(t *testing.T, router http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHandleHealth(t *testing.T) {
	router, _ := setupRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[HealthResponse](t, w)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, ServiceVersion, resp.Version)
	assert.Equal(t, "beam", resp.Strategy)
	assert.False(t, resp.Busy)
	assert.Empty(t, resp.SPARQLCircuit)
}

func TestHandleParse(t *testing.T) {
	router, _ := setupRouter(t)

	w := post(t, router, "/v1/chains/parse", ParseRequest{Chain: "  a film ;forwardProperty director;limit 5 "})
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[ParseResponse](t, w)
	assert.Equal(t, "a film ; forwardProperty director ; limit 5", resp.Chain)
	require.Len(t, resp.Steps, 3)
	assert.Equal(t, StepView{Kind: "class", Raw: "a film", Args: []string{"film"}}, resp.Steps[0])
	assert.Equal(t, "forwardProperty", resp.Steps[1].Kind)
	assert.Equal(t, []string{"5"}, resp.Steps[2].Args)
}

func TestHandleParse_Rejects(t *testing.T) {
	router, _ := setupRouter(t)

	w := post(t, router, "/v1/chains/parse", ParseRequest{Chain: " ; ; "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "EMPTY_CHAIN", decode[ErrorResponse](t, w).Code)

	w = post(t, router, "/v1/chains/parse", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", decode[ErrorResponse](t, w).Code)
}

func TestHandleResolve(t *testing.T) {
	router, a := setupRouter(t)

	w := post(t, router, "/v1/chains/resolve", ResolveRequest{
		Chain:       "a film ; forwardProperty director ; limit 5",
		IncludeTree: true,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	resp := decode[map[string]any](t, w)
	assert.Equal(t, "beam", resp["strategy"])
	assert.Equal(t, true, resp["complete"])
	assert.NotEmpty(t, resp["run_id"])
	assert.Empty(t, resp["remaining"])
	assert.Contains(t, resp["sparql"], "ex:director")
	assert.Equal(t, a.Engine.CurrentPlace().Permalink(), resp["permalink"])

	alt := resp["alterations"].(map[string]any)
	assert.Equal(t, "5", alt["limit"])

	tree := resp["tree"].(map[string]any)
	assert.Equal(t, "mem:@", tree["permalink"])
	assert.NotEmpty(t, tree["children"])
}

func TestHandleResolve_SequentialFailure(t *testing.T) {
	router, _ := setupRouter(t)

	w := post(t, router, "/v1/chains/resolve", ResolveRequest{
		Chain:    "a film ; forwardProperty budget",
		Strategy: "sequential",
		Reset:    true,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[ResolveResponse](t, w)
	assert.False(t, resp.Complete)
	assert.Nil(t, resp.Tree)
	require.NotNil(t, resp.Failure)
	assert.Equal(t, "forwardProperty budget", resp.Failure.Step)
	assert.Equal(t, 2, resp.Failure.Total)
	assert.Contains(t, resp.Failure.Reason, "reached step")
	assert.Equal(t, []string{"forwardProperty budget"}, resp.Remaining)
}

func TestHandleResolve_BadRequests(t *testing.T) {
	router, _ := setupRouter(t)

	tests := []struct {
		name string
		body any
		code string
	}{
		{"missing chain", map[string]any{"strategy": "dfs"}, "INVALID_REQUEST"},
		{"top k out of range", ResolveRequest{Chain: "a film", TopK: 100}, "INVALID_REQUEST"},
		{"unknown strategy", ResolveRequest{Chain: "a film", Strategy: "mcts"}, "UNKNOWN_STRATEGY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(t, router, "/v1/chains/resolve", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.code, decode[ErrorResponse](t, w).Code)
		})
	}
}

func TestMetrics(t *testing.T) {
	router, _ := setupRouter(t)
	post(t, router, "/v1/chains/resolve", ResolveRequest{Chain: "a film"})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "chainqa_search_runs_total")
}
