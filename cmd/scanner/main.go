package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/user/carewatch/internal/adapter/repository/postgres"
	"github.com/user/carewatch/internal/adapter/slack"
	"github.com/user/carewatch/internal/adapter/structurer"
	"github.com/user/carewatch/internal/pkg/config"
	"github.com/user/carewatch/internal/pkg/logger"
	"github.com/user/carewatch/internal/risk"
	"github.com/user/carewatch/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	log.Info("starting scanner worker")

	// Create a context that we can cancel on shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling for graceful shutdown
	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stopChan
		log.Info("shutdown signal received, stopping scanner...")
		cancel()
	}()

	// Connect to PostgreSQL
	db, err := sql.Open("postgres", cfg.PostgresURL)
	if err != nil {
		log.Error("failed to open postgres connection", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	log.Info("connected to postgres")

	// Instantiate repositories and collaborators. The scanner talks straight
	// to postgres; it has no hot path worth caching.
	patientRepo := postgres.NewPatientRepository(db, log)
	alertRepo := postgres.NewAlertRepository(db, log)
	reportRepo := postgres.NewReportRepository(db, log)
	historyRepo := postgres.NewRiskHistoryRepository(db, log)
	tenantRepo := postgres.NewTenantConfigRepository(db, log, cfg.TenantConfigCacheTTL, nil)

	messenger := slack.NewClient(cfg.SlackAPIBaseURL, cfg.SlackRateLimit, cfg.SlackRateBurst, cfg.ClaimReaction, log)
	anthropic := structurer.NewClient(cfg.AnthropicAPIKey, cfg.AnthropicModel, "", log)

	engine := risk.New(risk.PolicyFromDays(cfg.RiskStepDownDays, cfg.RiskResetDays))
	riskUseCase := usecase.NewRecalculateRiskUseCase(patientRepo, alertRepo, historyRepo, engine, nil, log)
	scanUseCase := usecase.NewScanPatientsUseCase(patientRepo, reportRepo, alertRepo, tenantRepo, messenger, anthropic, riskUseCase, log)

	lookback := time.Duration(cfg.ScanLookbackDays) * 24 * time.Hour

	runSweep := func() {
		for _, org := range cfg.ScanOrgs {
			report, err := scanUseCase.Scan(ctx, org, lookback)
			if err != nil {
				log.Error("org sweep failed", "org_id", org, "error", err)
				continue
			}
			log.Info("org sweep finished",
				"org_id", org,
				"scanned", report.Scanned,
				"new_alerts", report.NewAlerts,
				"risk_changes", report.RiskChanges,
			)
		}
	}

	// One sweep at startup, then on the configured interval.
	runSweep()

	ticker := time.NewTicker(cfg.ScanInterval)
	defer ticker.Stop()

	log.Info("scanner worker started", "interval", cfg.ScanInterval, "orgs", cfg.ScanOrgs)

Loop:
	for {
		select {
		case <-ticker.C:
			runSweep()
		case <-ctx.Done():
			log.Info("context cancelled, shutting down scanner loop")
			break Loop
		}
	}

	log.Info("scanner worker shut down gracefully")
}
