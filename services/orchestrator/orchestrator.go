// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.
// Package orchestrator provides the forecast service for AleutianHorizon.
//
// This package contains the Service type that wires every component of the
// service together: configuration, logging, the LLM-backed forecast oracle,
// the forecast pipeline, the optional InfluxDB sensor store, metrics,
// tracing and HTTP routing.
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	svc, err := orchestrator.New(cfg, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	go svc.Run()
//	...
//	svc.Shutdown(ctx)
//
// # Degraded Start
//
// A missing LLM API key or base URL does not stop the service. Profiling
// keeps working and every forecast fails with a CONFIG_MISSING oracle error
// until the configuration is fixed.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/AleutianAI/AleutianHorizon/pkg/logging"
	"github.com/AleutianAI/AleutianHorizon/services/forecast"
	"github.com/AleutianAI/AleutianHorizon/services/llm"
	"github.com/AleutianAI/AleutianHorizon/services/orchestrator/config"
	"github.com/AleutianAI/AleutianHorizon/services/orchestrator/observability"
	"github.com/AleutianAI/AleutianHorizon/services/orchestrator/routes"
	"github.com/AleutianAI/AleutianHorizon/services/sensorstore"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const serviceName = "horizon-service"

// =============================================================================
// Interface Definition
// =============================================================================

// Service defines the contract for the forecast service.
//
// # Description
//
// Service abstracts the server lifecycle so main and tests share one
// construction path.
//
// # Thread Safety
//
// Run blocks and should be called once per instance. Shutdown may be called
// from another goroutine.
//
// # Assumptions
//
//   - Service is fully initialized before Run() is called
type Service interface {
	// Run starts the HTTP server and blocks until Shutdown or a fatal
	// listener error. A clean shutdown returns nil.
	Run() error

	// Shutdown stops accepting requests, waits for in-flight requests until
	// ctx expires, then releases the tracer, store and log resources.
	Shutdown(ctx context.Context) error

	// Router returns the underlying Gin engine for testing.
	Router() *gin.Engine
}

// =============================================================================
// Options
// =============================================================================

// Options overrides components New would otherwise build from config.
// A nil *Options uses every default.
type Options struct {
	// Registry receives the service metrics and backs /metrics.
	// Default: the global Prometheus registry.
	Registry *prometheus.Registry

	// LLMClient replaces the client built from config.LLM.
	LLMClient llm.LLMClient

	// SensorStore replaces the InfluxDB store built from config.Influx.
	SensorStore sensorstore.Store

	// Logger replaces the logger built from config.Log.
	Logger *logging.Logger

	// Now replaces time.Now for the pipeline and sensor lookback.
	Now func() time.Time
}

// =============================================================================
// Implementation
// =============================================================================

type service struct {
	config        config.Config
	opts          Options
	router        *gin.Engine
	server        *http.Server
	logger        *logging.Logger
	ownsLogger    bool
	llmClient     llm.LLMClient
	pipeline      *forecast.Pipeline
	metrics       *observability.ForecastMetrics
	gatherer      prometheus.Gatherer
	store         sensorstore.Store
	influx        *sensorstore.InfluxStore
	tracerCleanup func(context.Context)
}

// New creates the service.
//
// # Description
//
// Validates the configuration and builds every component. Tracing export is
// skipped when cfg.OTelEndpoint is empty. A failure to build the LLM client
// is logged and tolerated (see Degraded Start in the package docs).
//
// # Inputs
//
//   - cfg: Usually from config.Load().
//   - opts: Optional overrides. May be nil.
//
// # Outputs
//
//   - Service: Ready to Run.
//   - error: Invalid configuration or tracer/store setup failure.
func New(cfg config.Config, opts *Options) (Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	s := &service{config: cfg}
	if opts != nil {
		s.opts = *opts
	}

	s.initLogger()

	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	if cfg.OTelEndpoint != "" {
		cleanup, err := s.initTracer()
		if err != nil {
			s.cleanup()
			return nil, fmt.Errorf("failed to initialize tracer: %w", err)
		}
		s.tracerCleanup = cleanup
	} else {
		slog.Info("OTLP endpoint not configured, trace export disabled")
	}

	s.initMetrics()
	s.initLLMClient()
	s.initPipeline()

	if err := s.initSensorStore(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize sensor store: %w", err)
	}

	s.initRouter()
	return s, nil
}

func (s *service) Run() error {
	slog.Info("Starting forecast server", "port", s.config.Port)
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *service) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down forecast server")
	err := s.server.Shutdown(ctx)
	s.cleanup()
	return err
}

func (s *service) Router() *gin.Engine {
	return s.router
}

// =============================================================================
// Initialization
// =============================================================================

func (s *service) initLogger() {
	if s.opts.Logger != nil {
		s.logger = s.opts.Logger
		return
	}
	s.logger = logging.New(logging.Config{
		Level:   logging.ParseLevel(s.config.Log.Level),
		LogDir:  s.config.Log.Dir,
		Service: "horizon",
		JSON:    s.config.Log.JSON,
	})
	s.ownsLogger = true
	slog.SetDefault(s.logger.Slog())
}

// initTracer sets up the OTLP gRPC trace exporter.
//
// # Outputs
//
//   - func(context.Context): Flushes and stops the exporter.
//   - error: Non-nil if exporter creation fails.
func (s *service) initTracer() (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(s.config.OTelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String(serviceName)))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	cleanup := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceProvider.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
		_ = conn.Close()
	}

	return cleanup, nil
}

func (s *service) initMetrics() {
	if s.opts.Registry != nil {
		s.metrics = observability.NewForecastMetrics(s.opts.Registry)
		s.gatherer = s.opts.Registry
		return
	}
	s.metrics = observability.NewForecastMetrics(prometheus.DefaultRegisterer)
	s.gatherer = prometheus.DefaultGatherer
}

func (s *service) initLLMClient() {
	if s.opts.LLMClient != nil {
		s.llmClient = s.opts.LLMClient
		return
	}
	client, err := llm.NewClient(s.config.LLM)
	if err != nil {
		slog.Warn("LLM client unavailable, forecasts will fail until configured",
			"backend", s.config.LLM.Backend, "error", err)
		return
	}
	slog.Info("Using LLM backend", "backend", s.config.LLM.Backend, "model", s.config.LLM.Model)
	s.llmClient = client
}

func (s *service) initPipeline() {
	opts := []forecast.Option{forecast.WithRecorder(s.metrics)}
	if s.config.EnableRequestLogging {
		opts = append(opts, forecast.WithAuditSink(forecast.NewLoggerAuditSink(s.logger)))
	}
	if s.opts.Now != nil {
		opts = append(opts, forecast.WithClock(s.opts.Now))
	}

	oracle := forecast.NewLLMOracle(s.llmClient, s.config.Temperature)
	s.pipeline = forecast.NewPipeline(forecast.Config{
		MaxHorizonSteps: s.config.MaxHorizonSteps,
		MaxGridBuckets:  int64(s.config.MaxGridBuckets),
		OracleTimeout:   s.config.LLM.Timeout,
		ModelName:       s.config.LLM.Model,
	}, oracle, opts...)
}

func (s *service) initSensorStore() error {
	if s.opts.SensorStore != nil {
		s.store = s.opts.SensorStore
		return nil
	}
	if !s.config.Influx.Enabled() {
		slog.Info("InfluxDB not configured, sensor forecast route disabled")
		return nil
	}
	store, err := sensorstore.NewInfluxStore(sensorstore.Config{
		URL:         s.config.Influx.URL,
		Token:       s.config.Influx.Token,
		Org:         s.config.Influx.Org,
		Bucket:      s.config.Influx.Bucket,
		Measurement: s.config.Influx.Measurement,
		Field:       s.config.Influx.Field,
	})
	if err != nil {
		return err
	}
	slog.Info("InfluxDB sensor store initialized", "url", s.config.Influx.URL, "bucket", s.config.Influx.Bucket)
	s.influx = store
	s.store = store
	return nil
}

func (s *service) initRouter() {
	s.router = gin.Default()
	s.router.Use(otelgin.Middleware(serviceName))

	routes.SetupRoutes(s.router, routes.Dependencies{
		Pipeline:       s.pipeline,
		Metrics:        s.metrics,
		Gatherer:       s.gatherer,
		Store:          s.store,
		RateLimitRPS:   s.config.RateLimit.RPS,
		RateLimitBurst: s.config.RateLimit.Burst,
		Now:            s.opts.Now,
	})

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// cleanup releases resources. Safe to call on a partially built service.
func (s *service) cleanup() {
	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
	if s.influx != nil {
		s.influx.Close()
	}
	if s.ownsLogger && s.logger != nil {
		if err := s.logger.Close(); err != nil {
			slog.Warn("Logger close error", "error", err)
		}
	}
}

// =============================================================================
// Compile-time Interface Check
// =============================================================================

var _ Service = (*service)(nil)
