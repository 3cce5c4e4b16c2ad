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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/countdown/services/countdown"
	"github.com/AleutianAI/countdown/services/countdown/history"
	storage "github.com/AleutianAI/countdown/services/countdown/storage/badger"
	"github.com/AleutianAI/countdown/services/countdown/telemetry"
)

type serveOptions struct {
	addr      string
	ephemeral bool
	debug     bool
}

var serveFlags serveOptions

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.Slog()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, cfg.Observability.Telemetry)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(sctx); err != nil {
			log.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()

	var store *history.Store
	if cfg.History.Enabled {
		scfg := cfg.History.Storage
		if serveFlags.ephemeral {
			scfg = storage.InMemoryConfig()
		}
		var closeDB func() error
		store, closeDB, err = openHistory(scfg, log)
		if err != nil {
			return err
		}
		defer closeDB()
		log.Info("history enabled", slog.String("path", scfg.Path), slog.Bool("in_memory", scfg.InMemory))
	}

	svc := countdown.NewService(cfg, store, log)
	router := newRouter(svc, serveFlags.debug)

	addr := cfg.Server.Addr
	if serveFlags.addr != "" {
		addr = serveFlags.addr
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("countdown server listening", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			_ = svc.Close(context.Background())
			return fmt.Errorf("listen on %s: %w", addr, err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(sctx); err != nil {
		log.Warn("http shutdown failed", slog.String("error", err.Error()))
	}
	if err := svc.Close(sctx); err != nil {
		log.Warn("service shutdown failed", slog.String("error", err.Error()))
	}
	return nil
}

// newRouter builds the gin engine: recovery, tracing, /v1 API and /metrics.
func newRouter(svc *countdown.Service, debug bool) *gin.Engine {
	if debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("countdown"))
	if debug {
		router.Use(gin.Logger())
	}

	v1 := router.Group("/v1")
	countdown.RegisterRoutes(v1, countdown.NewHandlers(svc))

	metrics := telemetry.MetricsHandler()
	if metrics == nil {
		metrics = promhttp.Handler()
	}
	router.GET("/metrics", gin.WrapH(metrics))
	return router
}
