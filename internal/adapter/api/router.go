package api

import (
	"log/slog"
	"net/http"

	"github.com/user/carewatch/internal/adapter/api/handler"
	"github.com/user/carewatch/internal/adapter/api/middleware"
	"github.com/user/carewatch/internal/adapter/metrics"
	"github.com/user/carewatch/internal/domain"
	"github.com/user/carewatch/internal/pkg/config"
	"github.com/user/carewatch/internal/usecase"
)

// RouterDeps bundles everything the router wires together.
type RouterDeps struct {
	Tenants domain.TenantConfigRepository
	History domain.RiskHistoryRepository
	Ingest  *usecase.IngestEventUseCase
	Ack     *usecase.AcknowledgeAlertUseCase
	Risk    *usecase.RecalculateRiskUseCase
	Metrics *metrics.IntakeMetrics
}

// NewRouter creates and configures the main HTTP router for the intake service.
func NewRouter(cfg *config.Config, logger *slog.Logger, deps RouterDeps) http.Handler {
	mux := http.NewServeMux()

	// Handlers
	eventsHandler := handler.NewEventsHandler(deps.Ingest, deps.Metrics, logger)
	opsHandler := handler.NewOpsHandler(deps.Ack, deps.Risk, deps.History, logger)

	// Middleware
	verify := middleware.VerifySignature(deps.Tenants, cfg.DefaultOrg, cfg.SignatureMaxAge, deps.Metrics, logger)
	replayGuard := middleware.ReplayGuard(deps.Metrics, logger)
	opsAuth := middleware.Auth(cfg.OpsAPIKey, logger)

	// Event intake: redelivery short-circuit runs before signature
	// verification so retries cost nothing.
	mux.Handle("POST /slack/events", replayGuard(verify(eventsHandler)))

	// Ops API
	mux.Handle("POST /api/patients/{id}/alerts/{alertID}/ack", opsAuth(http.HandlerFunc(opsHandler.AcknowledgeAlert)))
	mux.Handle("PUT /api/patients/{id}/risk-level", opsAuth(http.HandlerFunc(opsHandler.OverrideRiskLevel)))
	mux.Handle("GET /api/patients/{id}/risk-history", opsAuth(http.HandlerFunc(opsHandler.RiskHistory)))

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return middleware.Logging(logger)(mux)
}
