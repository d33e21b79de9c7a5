// Package main is the entry point for the scoring engine API server.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/thrryv/engine/internal/api"
	"github.com/thrryv/engine/internal/auth"
	"github.com/thrryv/engine/internal/challenge"
	"github.com/thrryv/engine/internal/claim"
	"github.com/thrryv/engine/internal/config"
	"github.com/thrryv/engine/internal/credibility"
	"github.com/thrryv/engine/internal/db"
	"github.com/thrryv/engine/internal/discovery"
	"github.com/thrryv/engine/internal/evaluator"
	"github.com/thrryv/engine/internal/health"
	"github.com/thrryv/engine/internal/idempotency"
	"github.com/thrryv/engine/internal/jobs"
	"github.com/thrryv/engine/internal/ledger"
	"github.com/thrryv/engine/internal/middleware"
	"github.com/thrryv/engine/internal/originality"
	"github.com/thrryv/engine/internal/standing"
	"github.com/thrryv/engine/internal/tracing"
)

const serviceName = "thrryv-engine"

// challengeSweepInterval is how often active challenges are checked for
// window expiry.
const challengeSweepInterval = time.Minute

func main() {
	configPath := flag.String("config", "", "path to YAML config file (optional)")
	help := flag.Bool("help", false, "display help message")
	flag.Parse()

	if *help {
		fmt.Println("Thrryv Scoring Engine API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	summary := make([]any, 0)
	for k, v := range cfg.LogSummary() {
		summary = append(summary, k, v)
	}
	logger.Info("configuration loaded", summary...)

	startCtx, startCancel := context.WithTimeout(context.Background(), 10*time.Second)
	conn, err := db.Open(startCtx, cfg.DatabaseURL)
	startCancel()
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = conn.Close() }()

	// Redis is optional: without it, rate limiting falls back to the
	// in-memory store.
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("invalid redis URL", "error", err)
			os.Exit(1)
		}
		redisClient = redis.NewClient(opts)
		defer func() { _ = redisClient.Close() }()
	}

	// Tracing is opt-in via environment; the middleware degrades to a
	// no-op tracer when disabled.
	traceProvider, err := tracing.NewProvider(tracing.Config{
		ServiceName:  serviceName,
		Enabled:      os.Getenv("TRACING_ENABLED") == "true",
		Environment:  cfg.Env,
		ExporterType: os.Getenv("TRACING_EXPORTER"),
		OTLPEndpoint: os.Getenv("OTLP_ENDPOINT"),
		SamplingRate: tracingSamplingRate(),
		InsecureMode: cfg.Env != "production",
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	// Metrics registry and collectors.
	registry := prometheus.NewRegistry()
	httpMetrics := middleware.NewMetrics()
	if err := httpMetrics.Register(registry); err != nil {
		logger.Error("failed to register HTTP metrics", "error", err)
		os.Exit(1)
	}
	standingMetrics := standing.NewMetrics()
	if err := standingMetrics.Register(registry); err != nil {
		logger.Error("failed to register standing metrics", "error", err)
		os.Exit(1)
	}
	jobMetrics := jobs.NewMetrics()
	if err := jobMetrics.Register(registry); err != nil {
		logger.Error("failed to register job metrics", "error", err)
		os.Exit(1)
	}

	// External content evaluator; a zero-value Static keeps every scoring
	// path on its fail-open branch when no API key is configured.
	var eval evaluator.Evaluator
	if cfg.EvaluatorAPIKey != "" {
		eval, err = evaluator.NewOpenAI(evaluator.OpenAIConfig{
			APIKey:  cfg.EvaluatorAPIKey,
			BaseURL: cfg.EvaluatorBaseURL,
			Model:   cfg.EvaluatorModel,
		})
		if err != nil {
			logger.Error("failed to initialize evaluator", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Warn("no evaluator API key configured, content evaluation disabled")
		eval = &evaluator.Static{Err: evaluator.ErrUnavailable}
	}

	// Repositories.
	claimRepo := claim.NewPostgresRepository(conn)
	ledgerStore := ledger.NewPostgresStore(conn)
	idemRepo := idempotency.NewPostgresRepository(conn)
	recordStore := standing.NewPostgresRecordStore(conn)
	standingSource := standing.NewPostgresDataSource(conn)
	challengeRepo := challenge.NewPostgresRepository(conn)

	// Domain services.
	credConfig := credibility.DefaultConfig()
	credConfig.UncertainFloor = cfg.UncertainFloor
	recomputer := credibility.NewRecomputer(claimRepo, credConfig, logger)

	reputationLedger := ledger.New(ledgerStore, idemRepo, ledger.DefaultConfig(), logger)
	originalityScorer := originality.NewScorer(eval, originality.DefaultConfig(), logger)

	standingConfig := standing.DefaultConfig()
	standingConfig.EMAWindow = cfg.StandingEMAWindow
	classifier := standing.NewClassifier(standingSource, recordStore, standingConfig, logger)
	dirty := standing.NewDirtyTracker()

	tables, err := discovery.LoadCalibration(cfg.DiscoveryCalibrationPath)
	if err != nil {
		logger.Error("failed to load discovery calibration", "error", err)
		os.Exit(1)
	}
	discoveryEngine := discovery.NewEngine(tables, logger)

	challengeService := challenge.NewService(challengeRepo, challenge.DefaultScorerConfig(), dirty, logger)

	// HTTP handlers and routes.
	healthHandlers := api.NewHealthHandlers(healthConfig(conn, redisClient))
	handlers := api.Handlers{
		Claims:      api.NewClaimHandlers(claimRepo, recomputer, reputationLedger, originalityScorer, eval, dirty),
		Standing:    api.NewStandingHandlers(classifier, dirty),
		Originality: api.NewOriginalityHandlers(claimRepo, originalityScorer),
		Discovery:   api.NewDiscoveryHandlers(claimRepo, discoveryEngine, classifier),
		Challenges:  api.NewChallengeHandlers(challengeService, challengeRepo),
		Health:      healthHandlers.Health,
		Ready:       healthHandlers.Ready,
	}
	mux := api.NewRouter(handlers)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	var rateLimitStore middleware.RateLimitStore
	if redisClient != nil {
		rateLimitStore = middleware.NewRedisRateLimitStore(redisClient)
	} else {
		rateLimitStore = middleware.NewInMemoryRateLimitStore()
	}

	jwtService := auth.NewJWTService(cfg.JWTSecret)

	corsConfig := middleware.CORSConfig{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}

	// Middleware chain: RequestID -> Logging -> CORS -> HTTPMetrics ->
	// RateLimiter -> Authentication -> Tracing
	handler := middleware.RequestID(
		middleware.Logging(logger)(
			middleware.CORS(corsConfig)(
				middleware.HTTPMetrics(httpMetrics)(
					middleware.RateLimiter(rateLimitStore, middleware.DefaultGlobalLimit(), middleware.IPKeyFunc())(
						middleware.Authentication(jwtService)(
							middleware.Tracing(serviceName)(mux)))))))

	// pprof endpoints, refused outside development.
	handler = middleware.Profiling(middleware.ProfilingConfig{
		Enabled:     cfg.ProfilingEnabled,
		Environment: cfg.Env,
	})(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Background work: standing recompute, challenge window sweeps, and
	// idempotency key cleanup.
	jobCtx, jobCancel := context.WithCancel(context.Background())
	defer jobCancel()

	recomputeJob := standing.NewRecomputeJob(standing.RecomputeJobConfig{
		Interval:   time.Duration(cfg.RecomputeIntervalSec) * time.Second,
		Logger:     logger,
		Metrics:    standingMetrics,
		JobMetrics: jobMetrics,
	}, dirty, classifier)
	if err := recomputeJob.Start(jobCtx); err != nil {
		logger.Error("failed to start standing recompute job", "error", err)
		os.Exit(1)
	}

	stopCh := make(chan struct{})
	go runChallengeSweeper(challengeService, logger, stopCh)
	go idempotency.RunPeriodicCleanup(idemRepo, time.Hour, idempotency.DefaultExpiry, stopCh)

	go func() {
		logger.Info("starting server", "port", cfg.Port, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	close(stopCh)
	recomputeJob.Stop()

	if err := traceProvider.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown tracing", "error", err)
	}

	recomputer.Stats().LogSummary(logger)
	logger.Info("server stopped")
}

// runChallengeSweeper periodically closes challenges past their prediction
// window and expires challenges never resolved by their creator.
func runChallengeSweeper(service *challenge.Service, logger *slog.Logger, stopCh <-chan struct{}) {
	ticker := time.NewTicker(challengeSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			if closed, err := service.Close(now); err != nil {
				logger.Error("failed to close challenges", "error", err)
			} else if closed > 0 {
				logger.Info("closed challenges past prediction window", "count", closed)
			}
			if expired, err := service.ExpireOverdue(now); err != nil {
				logger.Error("failed to expire challenges", "error", err)
			} else if expired > 0 {
				logger.Info("expired unresolved challenges", "count", expired)
			}
		case <-stopCh:
			return
		}
	}
}

// healthConfig wires health checkers, leaving absent dependencies nil so the
// readiness probe skips them.
func healthConfig(conn *sql.DB, redisClient *redis.Client) api.HealthHandlersConfig {
	cfg := api.HealthHandlersConfig{
		DBChecker: health.NewDBChecker(conn),
	}
	if redisClient != nil {
		cfg.RedisChecker = health.NewRedisChecker(redisClient)
	}
	return cfg
}

func tracingSamplingRate() float64 {
	raw := os.Getenv("TRACING_SAMPLING_RATE")
	if raw == "" {
		return 0.1
	}
	rate, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		slog.Warn("invalid TRACING_SAMPLING_RATE, using default", "value", raw)
		return 0.1
	}
	return rate
}
