// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command personalize starts the Aleutian Studio personalization server.
//
// The server ranks creative tools per user, runs A/B experiments,
// scores generated artifacts, and watches model health.
//
// Usage:
//
//	go run ./cmd/personalize serve
//	go run ./cmd/personalize serve --config config.yaml
//	PERSONALIZE_PORT=9090 go run ./cmd/personalize serve
//
// Example requests:
//
//	# Health check
//	curl http://localhost:8086/v1/personalize/health
//
//	# Rank tools for a prompt
//	curl -X POST http://localhost:8086/v1/personalize/recommendations \
//	  -H "Content-Type: application/json" \
//	  -d '{"user_id": "u1", "prompt": "a cat in space", "device": "mobile"}'
//
//	# Record an interaction event
//	curl -X POST http://localhost:8086/v1/personalize/events \
//	  -H "Content-Type: application/json" \
//	  -d '{"user_id": "u1", "tool_id": "text-to-image", "success": true}'
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

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianStudio/pkg/logging"
	"github.com/AleutianAI/AleutianStudio/services/personalize"
	"github.com/AleutianAI/AleutianStudio/services/personalize/config"
	"github.com/AleutianAI/AleutianStudio/services/personalize/monitor"
	"github.com/AleutianAI/AleutianStudio/services/personalize/storage"
	"github.com/AleutianAI/AleutianStudio/services/personalize/telemetry"
)

var (
	configPath string

	rootCmd = &cobra.Command{
		Use:   "personalize",
		Short: "Aleutian Studio personalization and experimentation server",
		Long: `Personalize serves per-user tool recommendations, A/B experiment
assignment and analysis, artifact quality assessment, and model health
monitoring for Aleutian Studio.`,
	}
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE:  runServe,
	}
)

func init() {
	serveCmd.Flags().StringVar(&configPath, "config", "", "Path to YAML config file (optional)")
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := logging.New(logging.FromEnv("personalize"))
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	gin.SetMode(cfg.Server.Mode)

	tcfg := cfg.Telemetry
	tcfg.ServiceVersion = personalize.ServiceVersion
	shutdownTelemetry, err := telemetry.Init(ctx, tcfg)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			slog.Warn("Telemetry shutdown incomplete", "error", err)
		}
	}()

	metrics, err := telemetry.NewMetrics(otel.Meter("personalize"))
	if err != nil {
		return fmt.Errorf("create metrics: %w", err)
	}

	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Warn("Storage close failed", "error", err)
		}
	}()

	mon := monitor.NewMonitor(
		monitor.WithDriftThreshold(cfg.Monitor.DriftThreshold),
		monitor.WithMetrics(metrics))
	svc, err := personalize.NewService(st, cfg.Catalog,
		personalize.WithMetrics(metrics),
		personalize.WithMonitor(mon),
	)
	if err != nil {
		return fmt.Errorf("create service: %w", err)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("personalize-service"))
	if cfg.Server.Mode == "debug" {
		router.Use(gin.Logger())
	}

	v1 := router.Group("/v1")
	personalize.RegisterRoutes(v1, personalize.NewHandlers(svc))
	router.GET("/metrics", gin.WrapH(telemetry.MetricsHandler()))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Starting personalization server",
			"address", srv.Addr,
			"storage", cfg.Storage.Backend,
			"catalog_tools", len(cfg.Catalog))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		mon.Run(gctx, cfg.SweepInterval())
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down personalization server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace())
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// openStore selects the storage backend from configuration.
func openStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Backend {
	case "badger":
		bcfg := storage.DefaultBadgerConfig(cfg.Storage.Dir)
		bcfg.InMemory = cfg.Storage.InMemory
		bcfg.Logger = slog.Default()
		return storage.OpenBadger(bcfg)
	default:
		return storage.NewMemoryStore(), nil
	}
}
