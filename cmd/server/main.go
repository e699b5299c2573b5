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

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ekyc/internal/document/blob"
	"ekyc/internal/document/cache"
	"ekyc/internal/document/classify"
	"ekyc/internal/document/extraction"
	extractionmetrics "ekyc/internal/document/extraction/metrics"
	"ekyc/internal/document/handler"
	"ekyc/internal/document/ports"
	"ekyc/internal/document/providers/documentai"
	"ekyc/internal/document/providers/inference"
	"ekyc/internal/document/registry"
	"ekyc/internal/platform/config"
	"ekyc/internal/platform/httpserver"
	"ekyc/internal/platform/logger"
	httpmetrics "ekyc/internal/platform/metrics"
	"ekyc/internal/platform/postgres"
	"ekyc/internal/platform/redis"
	ratelimit "ekyc/internal/ratelimit/middleware"
	"ekyc/internal/ratelimit/store/bucket"
	"ekyc/pkg/platform/audit"
	"ekyc/pkg/platform/audit/publisher"
	auditmemory "ekyc/pkg/platform/audit/store/memory"
	auditpostgres "ekyc/pkg/platform/audit/store/postgres"
	"ekyc/pkg/platform/circuit"
	"ekyc/pkg/platform/middleware/metadata"
	"ekyc/pkg/platform/middleware/requesttime"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal/document.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	docs, err := buildRegistry(cfg.DefinitionsFile)
	if err != nil {
		return err
	}
	log.Info("document registry loaded", "document_types", docs.Len())

	docAI, err := documentai.New(ctx, documentai.Config{
		ProjectID:             cfg.DocumentAI.ProjectID,
		Location:              cfg.DocumentAI.Location,
		ClassifierProcessorID: cfg.DocumentAI.ClassifierProcessorID,
		ExtractorProcessors:   cfg.DocumentAI.ExtractorProcessors,
		CredentialsFile:       cfg.DocumentAI.CredentialsFile,
		Timeout:               cfg.DocumentAI.Timeout,
	}, documentai.WithLogger(log))
	if err != nil {
		return fmt.Errorf("document ai client: %w", err)
	}
	defer docAI.Close()

	inferenceOpts := []inference.Option{inference.WithLogger(log)}
	if cfg.Inference.APIKey != "" {
		inferenceOpts = append(inferenceOpts, inference.WithAPIKey(cfg.Inference.APIKey))
	}
	if cfg.Inference.BreakerFailures > 0 {
		inferenceOpts = append(inferenceOpts, inference.WithBreaker(circuit.New(inference.BackendName,
			circuit.WithFailureThreshold(cfg.Inference.BreakerFailures),
			circuit.WithCooldown(cfg.Inference.BreakerCooldown),
		)))
	}
	vision := inference.New(cfg.Inference.URL, cfg.Inference.Timeout, inferenceOpts...)

	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	pool, err := postgres.Open(ctx, cfg.Postgres, log)
	if err != nil {
		return err
	}
	if pool != nil {
		defer pool.Close()
	}

	classifierOpts := []classify.Option{
		classify.WithThreshold(cfg.Classification.Threshold),
		classify.WithLogger(log),
	}
	if c := buildCache(cfg, redisClient, reg, log); c != nil {
		classifierOpts = append(classifierOpts, classify.WithCache(c))
	}
	classifier := classify.New(docAI, docs, classifierOpts...)
	log.Info("classifier ready",
		"threshold", classifier.Threshold(),
		"cache", cfg.Classification.CacheBackend,
	)

	auditStore, err := buildAuditStore(ctx, cfg, pool)
	if err != nil {
		return err
	}
	sampler := publisher.NewSampler(cfg.Audit.OpsSampleRate)
	auditPublisher := publisher.NewPublisher(auditStore,
		publisher.WithAsyncBuffer(cfg.Audit.AsyncBuffer),
		publisher.WithBatching(cfg.Audit.BatchSize, cfg.Audit.FlushInterval),
		publisher.WithLogger(log),
		publisher.WithMetrics(publisher.NewMetrics(reg)),
		publisher.WithSampler(sampler),
	)
	defer func() {
		if err := auditPublisher.Close(); err != nil {
			log.Warn("audit publisher close", "error", err)
		}
	}()

	engineOpts := []extraction.Option{
		extraction.WithConfig(extraction.Config{
			MaxConcurrency:         cfg.Extraction.MaxConcurrency,
			ClassificationTimeout:  cfg.Classification.Timeout,
			FieldTimeout:           cfg.Extraction.FieldTimeout,
			CapabilityTimeout:      cfg.Extraction.CapabilityTimeout,
			ClassificationAttempts: cfg.Classification.Attempts,
			CapabilityAttempts:     cfg.Extraction.CapabilityAttempts,
			InitialBackoff:         cfg.Extraction.InitialBackoff,
			MaxBackoff:             cfg.Extraction.MaxBackoff,
			MinDetectionConfidence: cfg.Extraction.MinDetectionConfidence,
			BoxVariance:            cfg.Extraction.BoxVariance,
		}),
		extraction.WithLogger(log),
		extraction.WithMetrics(extractionmetrics.New(reg)),
		extraction.WithAuditPublisher(auditPublisher),
	}
	if cfg.Blob.Dir != "" {
		store, err := blob.NewFileStore(cfg.Blob.Dir, cfg.Blob.MaxSize)
		if err != nil {
			return err
		}
		defer store.Close()
		engineOpts = append(engineOpts, extraction.WithBlobStore(store))
	}
	engine, err := extraction.New(classifier, docs, docAI, vision, vision, engineOpts...)
	if err != nil {
		return fmt.Errorf("extraction engine: %w", err)
	}

	handlerOpts := []handler.Option{
		handler.WithMetrics(httpmetrics.New(reg)),
		handler.WithMaxUploadBytes(cfg.Server.MaxUploadBytes),
		handler.WithRequestTimeout(cfg.Server.RequestTimeout),
		handler.WithRetryAfter(cfg.Extraction.MaxBackoff),
	}
	if cfg.RateLimit.Extract > 0 {
		limiter := ratelimit.New(buildLimiterStore(cfg, redisClient), cfg.RateLimit.Extract, cfg.RateLimit.Window, log)
		handlerOpts = append(handlerOpts, handler.WithExtractLimiter(limiter.RateLimit("extract")))
	}
	if cfg.Server.AdminToken != "" {
		handlerOpts = append(handlerOpts, handler.WithAuditReader(auditPublisher, cfg.Server.AdminToken))
	}

	r := chi.NewRouter()
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	r.Get("/health", healthHandler(log, healthChecks(vision, redisClient, pool)))
	handler.New(engine, docs, log, handlerOpts...).Register(r)

	srv := httpserver.New(cfg.Server.Addr, r)
	errCh := make(chan error, 1)
	go func() {
		log.Info("starting ekyc", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

func buildRegistry(path string) (*registry.Registry, error) {
	if path == "" {
		return registry.New(registry.BuiltinDefinitions()...)
	}
	overrides, err := registry.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load document definitions: %w", err)
	}
	return registry.NewWithOverrides(overrides)
}

func buildCache(cfg config.Config, client *redis.Client, reg prometheus.Registerer, log *slog.Logger) ports.ClassificationCache {
	m := cache.NewMetrics(reg)
	switch cfg.Classification.CacheBackend {
	case "redis":
		return cache.NewRedisCache(client.Client, cfg.Classification.CacheTTL,
			cache.WithRedisMetrics(m),
			cache.WithRedisLogger(log),
		)
	case "memory":
		return cache.NewInMemoryCache(cfg.Classification.CacheTTL, cache.WithMemoryMetrics(m))
	default:
		return nil
	}
}

func buildLimiterStore(cfg config.Config, client *redis.Client) ratelimit.Store {
	if cfg.RateLimit.Store == "redis" {
		return bucket.NewRedisBucketStore(client.Client)
	}
	return bucket.NewInMemoryBucketStore()
}

func buildAuditStore(ctx context.Context, cfg config.Config, pool *pgxpool.Pool) (audit.Store, error) {
	if cfg.Audit.Store != "postgres" {
		return auditmemory.NewInMemoryStore(), nil
	}
	store := auditpostgres.New(pool)
	migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := store.Migrate(migrateCtx); err != nil {
		return nil, err
	}
	return store, nil
}
