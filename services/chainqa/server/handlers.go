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
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/chainqa/services/chainqa"
	"github.com/AleutianAI/chainqa/services/chainqa/app"
	"github.com/AleutianAI/chainqa/services/chainqa/recovery"
	"github.com/AleutianAI/chainqa/services/chainqa/telemetry"
)

// ServiceVersion is the chainqa service version.
const ServiceVersion = "0.1.0"

// Handlers serves the chain API on top of one App.
type Handlers struct {
	app    *app.App
	logger *slog.Logger
}

// NewHandlers creates handlers for a.
func NewHandlers(a *app.App, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{app: a, logger: logger}
}

// HandleParse handles POST /v1/chains/parse.
//
// Response:
//
//	200 OK: ParseResponse
//	400 Bad Request: malformed body or empty chain
func (h *Handlers) HandleParse(c *gin.Context) {
	var req ParseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Code: "INVALID_REQUEST"})
		return
	}
	chain := h.app.Parser.Parse(req.Chain)
	if len(chain) == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: chainqa.ErrEmptyChain.Error(), Code: "EMPTY_CHAIN"})
		return
	}
	c.JSON(http.StatusOK, ParseResponse{Chain: chain.String(), Steps: stepViews(chain)})
}

// HandleResolve handles POST /v1/chains/resolve.
//
// Description:
//
//	Resolves the chain against the engine and moves the engine to the
//	chosen place. A chain that cannot be fully resolved is still a 200:
//	the response carries the best partial place with complete=false and,
//	for the sequential strategy, the failure.
//
// Response:
//
//	200 OK: ResolveResponse
//	400 Bad Request: malformed body or unknown strategy
//	409 Conflict: another resolution is running
//	504 Gateway Timeout: the resolve timeout elapsed
//	500 Internal Server Error: anything else
func (h *Handlers) HandleResolve(c *gin.Context) {
	logger := h.requestLogger(c)

	var req ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Code: "INVALID_REQUEST"})
		return
	}

	if req.Reset && !h.app.Reset() {
		c.JSON(http.StatusConflict, ErrorResponse{Error: chainqa.ErrSearchInProgress.Error(), Code: "SEARCH_IN_PROGRESS"})
		return
	}

	ctx := c.Request.Context()
	if d := h.app.Config.Server.ResolveTimeout; d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	out, err := h.app.Resolve(ctx, req.Chain, req.options())
	var chainErr *recovery.ChainError
	switch {
	case err == nil:
	case errors.As(err, &chainErr) && out != nil:
		logger.Info("chain halted", slog.Int("index", chainErr.Index), slog.Int("total", chainErr.Total))
	case errors.Is(err, chainqa.ErrSearchInProgress):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "SEARCH_IN_PROGRESS"})
		return
	case errors.Is(err, chainqa.ErrUnknownStrategy):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "UNKNOWN_STRATEGY"})
		return
	case errors.Is(err, context.DeadlineExceeded):
		logger.Warn("resolve timed out", slog.String("chain", req.Chain))
		c.JSON(http.StatusGatewayTimeout, ErrorResponse{Error: err.Error(), Code: "RESOLVE_TIMEOUT"})
		return
	default:
		logger.Error("resolve failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "RESOLVE_FAILED"})
		return
	}

	resp := ResolveResponse{
		RunID:       out.RunID,
		Strategy:    string(out.Result.Strategy),
		Complete:    out.Result.Complete,
		Score:       out.Result.Score,
		SPARQL:      out.SPARQL(),
		Permalink:   out.Permalink(),
		Remaining:   commands(out.Result.Remaining),
		Alterations: out.Alterations,
		Stats:       out.Result.Stats,
		Recoveries:  out.Result.Recoveries,
	}
	if chainErr != nil {
		resp.Failure = &FailureView{
			Step:      chainErr.Failed.Raw,
			Index:     chainErr.Index,
			Total:     chainErr.Total,
			Remaining: commands(chainErr.Remaining),
			Reason:    chainErr.Error(),
		}
	}
	if req.IncludeTree {
		resp.Tree = out.Result.Root
	}
	logger.Info("chain resolved",
		slog.String("run_id", out.RunID),
		slog.Bool("complete", resp.Complete),
		slog.Float64("score", resp.Score),
	)
	c.JSON(http.StatusOK, resp)
}

// HandleHealth handles GET /v1/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	resp := HealthResponse{
		Status:   "healthy",
		Version:  ServiceVersion,
		Busy:     h.app.Controller.Busy(),
		Strategy: string(h.app.Controller.Defaults().Strategy),
	}
	if h.app.SPARQL != nil {
		resp.SPARQLCircuit = h.app.SPARQL.Breaker().State().String()
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handlers) requestLogger(c *gin.Context) *slog.Logger {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return telemetry.LoggerWithTrace(c.Request.Context(), h.logger).With(
		slog.String("request_id", requestID),
		slog.String("handler", c.FullPath()),
	)
}
