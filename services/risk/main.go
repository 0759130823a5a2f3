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
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	// --- OpenTelemetry imports ---
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/AleutianAI/AleutianRisk/pkg/logging"
	"github.com/AleutianAI/AleutianRisk/services/risk/alerting"
	"github.com/AleutianAI/AleutianRisk/services/risk/compliance"
	"github.com/AleutianAI/AleutianRisk/services/risk/controls"
	"github.com/AleutianAI/AleutianRisk/services/risk/engine"
	"github.com/AleutianAI/AleutianRisk/services/risk/handlers"
	"github.com/AleutianAI/AleutianRisk/services/risk/middleware"
	"github.com/AleutianAI/AleutianRisk/services/risk/observability"
	"github.com/AleutianAI/AleutianRisk/services/risk/routes"
	"github.com/AleutianAI/AleutianRisk/services/risk/scheduler"
	"github.com/AleutianAI/AleutianRisk/services/risk/storage"
	"github.com/AleutianAI/AleutianRisk/services/risk/trend"
	"github.com/AleutianAI/AleutianRisk/services/risk/vuln"
)

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		otelEndpoint = "aleutian-otel-collector:4317"
	}
	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("risk-service")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

func main() {
	port := os.Getenv("RISK_SERVICE_PORT")
	if port == "" {
		port = "12310"
	}
	dataDir := os.Getenv("RISK_DATA_DIR")
	if dataDir == "" {
		dataDir = "/var/lib/aleutian/risk"
	}

	platformLog := logging.New(logging.Config{
		Level:   logging.LevelInfo,
		LogDir:  os.Getenv("RISK_LOG_DIR"),
		Service: "risk",
	})
	defer platformLog.Close()
	logger := platformLog.Slog()
	slog.SetDefault(logger)

	// --- Init the tracer ---
	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	metrics := observability.InitMetrics()

	// --- Platform state store ---
	storeCfg := storage.DefaultConfig()
	storeCfg.Path = filepath.Join(dataDir, "state")
	storeCfg.Logger = logger
	db, err := storage.Open(storeCfg)
	if err != nil {
		log.Fatalf("FATAL: could not open the state store: %v", err)
	}
	defer db.Close()
	store := storage.NewStore(db)

	gc, err := storage.NewGCRunner(db, storeCfg.GCInterval, storeCfg.GCDiscardRatio, logger)
	if err != nil {
		log.Fatalf("FATAL: could not configure badger GC: %v", err)
	}
	gc.Start()
	defer gc.Stop()

	// --- CVE mirror ---
	mirror, err := vuln.NewMirror(filepath.Join(dataDir, "cve_mirror.db"))
	if err != nil {
		log.Fatalf("FATAL: could not open the CVE mirror: %v", err)
	}
	defer mirror.Close()

	nvdOpts := []vuln.NVDOption{}
	if key := os.Getenv("NVD_API_KEY"); key != "" {
		nvdOpts = append(nvdOpts, vuln.WithAPIKey(key))
	}
	vulns := vuln.NewService(vuln.NewNVDClient(logger, nvdOpts...), mirror, metrics, logger)

	// --- Control assessor with optional catalog override ---
	catalog, err := controls.LoadEmbedded()
	if err != nil {
		log.Fatalf("FATAL: could not load the control catalog: %v", err)
	}
	assessor := controls.NewAssessor(catalog, logger)
	if override := os.Getenv("RISK_CONTROL_CATALOG"); override != "" {
		watcher := controls.NewWatcher(assessor, override, logger)
		if err := watcher.Start(); err != nil {
			slog.Warn("catalog override watcher failed to start", "error", err)
		} else {
			defer watcher.Stop()
		}
	}

	complianceEngine, err := compliance.NewEngine(logger)
	if err != nil {
		log.Fatalf("FATAL: could not load the framework mappings: %v", err)
	}

	// --- Alerting ---
	hub := alerting.NewHub(logger)
	defer hub.Close()
	alerts := alerting.NewManager(store, hub, metrics, logger)
	alerts.Start()
	defer alerts.Stop()

	riskEngine := engine.New(store, vulns, assessor, logger)

	// --- Continuous assessment ---
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched := scheduler.New(store, riskEngine, alerts, metrics, logger, scheduler.DefaultConfig())
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("FATAL: could not start the scheduler: %v", err)
	}
	defer sched.Stop()

	var provider middleware.AuthProvider = middleware.NopAuthProvider{}
	if token := os.Getenv("RISK_API_TOKEN"); token != "" {
		provider = middleware.StaticTokenProvider{Token: token}
		slog.Info("API token authentication enabled")
	} else {
		slog.Info("RISK_API_TOKEN not set, running in open local mode")
	}

	router := gin.Default()
	router.Use(otelgin.Middleware("risk-service"))

	routes.SetupRoutes(router, handlers.Deps{
		Store:      store,
		Engine:     riskEngine,
		Vulns:      vulns,
		Controls:   assessor,
		Compliance: complianceEngine,
		Alerts:     alerts,
		Hub:        hub,
		Trends:     trend.NewAnalyzer(store),
		Metrics:    metrics,
		Logger:     logger,
	}, provider)

	log.Println("Starting the risk service on port ", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
