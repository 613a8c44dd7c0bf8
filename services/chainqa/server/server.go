// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package server exposes the chain resolver over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/chainqa/services/chainqa/app"
	"github.com/AleutianAI/chainqa/services/chainqa/telemetry"
)

const shutdownGrace = 10 * time.Second

// RegisterRoutes registers the /v1 chain endpoints on rg.
//
// Endpoints:
//
//	POST /v1/chains/parse   - Split and classify a chain
//	POST /v1/chains/resolve - Resolve a chain against the engine
//	GET  /v1/health         - Liveness and search status
func RegisterRoutes(rg *gin.RouterGroup, h *Handlers) {
	chains := rg.Group("/chains")
	{
		chains.POST("/parse", h.HandleParse)
		chains.POST("/resolve", h.HandleResolve)
	}
	rg.GET("/health", h.HandleHealth)
}

// NewRouter builds the gin engine with tracing middleware, the /v1 routes
// and /metrics.
func NewRouter(a *app.App, logger *slog.Logger) *gin.Engine {
	if a.Config.Server.Mode != "" {
		gin.SetMode(a.Config.Server.Mode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(a.Config.Telemetry.ServiceName))

	RegisterRoutes(router.Group("/v1"), NewHandlers(a, logger))

	metrics := telemetry.MetricsHandler()
	if metrics == nil {
		metrics = promhttp.Handler()
	}
	router.GET("/metrics", gin.WrapH(metrics))
	return router
}

// Server is the HTTP server for one App.
type Server struct {
	http   *http.Server
	logger *slog.Logger
}

// New creates a server listening on a.Config.Server.Addr.
func New(a *app.App, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	cfg := a.Config.Server
	return &Server{
		http: &http.Server{
			Addr:         cfg.Addr,
			Handler:      NewRouter(a, logger),
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		logger: logger,
	}
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("chainqa listening", slog.String("addr", s.http.Addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("listen on %s: %w", s.http.Addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
