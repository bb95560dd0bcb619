package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/dentalcrm/cmd/mainconfig"
	"github.com/wolfman30/dentalcrm/internal/api/router"
	"github.com/wolfman30/dentalcrm/internal/app/bootstrap"
	"github.com/wolfman30/dentalcrm/internal/archive"
	appconfig "github.com/wolfman30/dentalcrm/internal/config"
	httpmiddleware "github.com/wolfman30/dentalcrm/internal/http/middleware"
	"github.com/wolfman30/dentalcrm/internal/messaging"
	"github.com/wolfman30/dentalcrm/internal/observability/metrics"
	"github.com/wolfman30/dentalcrm/internal/patients"
	"github.com/wolfman30/dentalcrm/internal/stats"
	"github.com/wolfman30/dentalcrm/internal/templates"
	callbackworker "github.com/wolfman30/dentalcrm/internal/worker/callbacks"
	"github.com/wolfman30/dentalcrm/pkg/logging"
)

const (
	limiterEvictInterval = time.Minute
	limiterIdleAfter     = 10 * time.Minute
)

func main() {
	// .env is optional outside local development
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting dentalcrm API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"timezone", cfg.ClinicTimezone,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := connectPostgresPool(ctx, cfg.DatabaseURL, logger)
	if pool != nil {
		defer pool.Close()
	}
	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	var reports *archive.Store
	if cfg.ReportBucket != "" {
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
		reports = bootstrap.BuildReportStore(awsCfg, cfg, logger)
	}

	metricsHandler, crmMetrics := setupMetrics()
	limiter := httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	go limiter.RunEviction(ctx, limiterEvictInterval, limiterIdleAfter)

	routerCfg, patientSvc, err := buildRouterConfig(ctx, cfg, deps{
		pool:    pool,
		redis:   redisClient,
		reports: reports,
		metrics: crmMetrics,
	}, logger)
	if err != nil {
		logger.Error("failed to initialize services", "error", err)
		os.Exit(1)
	}

	if cfg.CallbackDigestSchedule != "off" {
		digest := callbackworker.NewDigest(patientSvc, logger).WithMetrics(crmMetrics)
		scheduler, err := digest.Start(ctx, cfg.CallbackDigestSchedule, cfg.Location())
		if err != nil {
			logger.Error("invalid CALLBACK_DIGEST_SCHEDULE", "error", err)
			os.Exit(1)
		}
		defer scheduler.Stop()
	}
	routerCfg.MetricsHandler = metricsHandler
	routerCfg.RateLimiter = limiter
	r := router.New(routerCfg)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// deps are the optional backing services. Nil members select the in-memory
// implementations.
type deps struct {
	pool    *pgxpool.Pool
	redis   *redis.Client
	reports *archive.Store
	metrics *metrics.CRMMetrics
}

func buildRouterConfig(ctx context.Context, cfg *appconfig.Config, d deps, logger *logging.Logger) (*router.Config, *patients.Service, error) {
	var (
		patientRepo   patients.Repository
		templateStore templates.Store
		logStore      messaging.LogStore
		checks        = map[string]router.HealthCheck{}
	)
	if d.pool != nil {
		patientRepo = patients.NewPostgresRepository(d.pool)
		templateStore = templates.NewPostgresStore(d.pool)
		logStore = messaging.NewSQLLogStore(stdlib.OpenDBFromPool(d.pool))
		checks["postgres"] = d.pool.Ping
	} else {
		logger.Warn("DATABASE_URL not set; using in-memory storage")
		patientRepo = patients.NewInMemoryRepository()
		templateStore = templates.NewMemoryStore()
		logStore = messaging.NewMemoryLogStore()
	}
	if d.redis != nil {
		client := d.redis
		checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	}

	loc := cfg.Location()
	patientSvc := patients.NewService(patientRepo, patients.NewEngine(loc), logger).WithMetrics(d.metrics)
	vars := patientVariables{svc: patientSvc}

	templateSvc := templates.NewService(templateStore, logger).WithVariables(vars)
	if _, err := templateSvc.EnsureDefaultCategory(ctx); err != nil {
		return nil, nil, fmt.Errorf("ensure default category: %w", err)
	}

	statsSvc := stats.NewService(patientSvc, loc, logger).
		WithDefaultMonths(cfg.TrendMonths).
		WithArchive(d.reports).
		WithMetrics(d.metrics)

	messagingSvc := messaging.NewService(
		templateSvc,
		bootstrap.BuildGateway(cfg, logger),
		logStore,
		bootstrap.BuildDeduper(d.redis, logger),
		messaging.Config{From: cfg.SMSSenderNumber, DedupWindow: cfg.MessageDedupWindow},
		logger,
	).WithPatients(vars).WithMetrics(d.metrics)

	return &router.Config{
		Logger:             logger,
		PatientsHandler:    patients.NewHandler(patientSvc, logger),
		StatsHandler:       stats.NewHandler(statsSvc, logger),
		TemplatesHandler:   templates.NewHandler(templateSvc, logger),
		MessagingHandler:   messaging.NewHandler(messagingSvc, logger),
		OperatorAuthSecret: cfg.AdminJWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		HealthChecks:       checks,
	}, patientSvc, nil
}

// patientVariables exposes patient records to template rendering.
type patientVariables struct {
	svc *patients.Service
}

func (v patientVariables) Variables(ctx context.Context, patientID string) (map[string]any, error) {
	vars, err := v.svc.Variables(ctx, patientID)
	if errors.Is(err, patients.ErrPatientNotFound) {
		return nil, templates.ErrUnknownPatient
	}
	return vars, err
}

func setupMetrics() (http.Handler, *metrics.CRMMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), metrics.NewCRMMetrics(reg)
}

func connectPostgresPool(ctx context.Context, url string, logger *logging.Logger) *pgxpool.Pool {
	if url == "" {
		return nil
	}
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		logger.Error("failed to connect postgres", "error", err)
		os.Exit(1)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		logger.Error("postgres not reachable", "error", err)
		os.Exit(1)
	}
	return pool
}
