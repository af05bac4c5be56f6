package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/user/carewatch/internal/adapter/api"
	"github.com/user/carewatch/internal/adapter/metrics"
	"github.com/user/carewatch/internal/adapter/repository/postgres"
	redisrepo "github.com/user/carewatch/internal/adapter/repository/redis"
	"github.com/user/carewatch/internal/adapter/slack"
	"github.com/user/carewatch/internal/adapter/structurer"
	"github.com/user/carewatch/internal/intake"
	"github.com/user/carewatch/internal/pkg/config"
	"github.com/user/carewatch/internal/pkg/logger"
	"github.com/user/carewatch/internal/risk"
	"github.com/user/carewatch/internal/usecase"

	_ "github.com/lib/pq" // Keep for postgres driver
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logger.New(cfg.LogLevel)
	slog.SetDefault(logger)

	m := metrics.NewIntakeMetrics()

	// --- Start Admin and Metrics Server ---
	adminMux := http.NewServeMux()
	adminMux.Handle("/metrics", promhttp.Handler())

	adminServer := &http.Server{
		Addr:    cfg.AdminAddr,
		Handler: adminMux,
	}

	go func() {
		logger.Info("starting admin & metrics server", "addr", adminServer.Addr)
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("admin & metrics server failed", "error", err)
		}
	}()

	// --- Graceful Shutdown Context ---
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Database and Redis Connections ---
	db, err := sql.Open("postgres", cfg.PostgresURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("could not connect to redis, channel lookups will hit postgres directly", "error", err)
	}

	// --- Initialize Repositories ---
	patientRepo := redisrepo.NewCachedPatientRepository(
		postgres.NewPatientRepository(db, logger), redisClient, cfg.PatientCacheTTL, logger,
	)
	alertRepo := postgres.NewAlertRepository(db, logger)
	reportRepo := postgres.NewReportRepository(db, logger)
	historyRepo := postgres.NewRiskHistoryRepository(db, logger)
	tenantRepo := postgres.NewTenantConfigRepository(db, logger, cfg.TenantConfigCacheTTL, m)

	// --- Initialize Collaborators ---
	messenger := slack.NewClient(cfg.SlackAPIBaseURL, cfg.SlackRateLimit, cfg.SlackRateBurst, cfg.ClaimReaction, logger)
	anthropic := structurer.NewClient(cfg.AnthropicAPIKey, cfg.AnthropicModel, "", logger)

	// --- Initialize Intake Pipeline ---
	dedup := intake.NewDedupCache(cfg.DedupCacheSize)
	claims := intake.NewClaimCoordinator(messenger, logger)
	dispatcher := intake.NewDispatcher(cfg.DispatchConcurrency, m.DispatchInFlight, logger)

	// --- Initialize Use Cases ---
	engine := risk.New(risk.PolicyFromDays(cfg.RiskStepDownDays, cfg.RiskResetDays))
	riskUseCase := usecase.NewRecalculateRiskUseCase(patientRepo, alertRepo, historyRepo, engine, m, logger)
	ackUseCase := usecase.NewAcknowledgeAlertUseCase(alertRepo, riskUseCase, logger)
	ingestUseCase := usecase.NewIngestEventUseCase(usecase.IngestDeps{
		Patients:   patientRepo,
		Reports:    reportRepo,
		Alerts:     alertRepo,
		Tenants:    tenantRepo,
		Messenger:  messenger,
		Structurer: anthropic,
		Detector:   anthropic,
		Assistant:  anthropic,
		Risk:       riskUseCase,
		Dedup:      dedup,
		Claims:     claims,
		Dispatcher: dispatcher,
		Metrics:    m,
	}, logger)

	// --- Initialize Intake Server ---
	router := api.NewRouter(cfg, logger, api.RouterDeps{
		Tenants: tenantRepo,
		History: historyRepo,
		Ingest:  ingestUseCase,
		Ack:     ackUseCase,
		Risk:    riskUseCase,
		Metrics: m,
	})
	server := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	go func() {
		logger.Info("starting intake server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("intake server failed", "error", err)
			stop() // Trigger shutdown on server error
		}
	}()

	// --- Wait for shutdown signal ---
	<-ctx.Done()
	logger.Info("shutting down servers...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("intake server shutdown failed", "error", err)
	}
	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("admin server shutdown failed", "error", err)
	}

	// Detached tasks finish on their own schedule; give them a bounded grace
	// period before the process exits.
	if !dispatcher.Wait(15 * time.Second) {
		logger.Warn("detached tasks still running at shutdown deadline")
	}

	logger.Info("servers shut down gracefully")
}
