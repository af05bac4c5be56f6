package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/user/carewatch/internal/domain"
	"github.com/user/carewatch/internal/usecase"
)

// OpsHandler serves the operator endpoints: alert acknowledgment and manual
// risk override.
type OpsHandler struct {
	ack     *usecase.AcknowledgeAlertUseCase
	risk    *usecase.RecalculateRiskUseCase
	history domain.RiskHistoryRepository
	logger  *slog.Logger
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(ack *usecase.AcknowledgeAlertUseCase, risk *usecase.RecalculateRiskUseCase, history domain.RiskHistoryRepository, logger *slog.Logger) *OpsHandler {
	return &OpsHandler{ack: ack, risk: risk, history: history, logger: logger}
}

// AcknowledgeAlert handles POST /api/patients/{id}/alerts/{alertID}/ack.
func (h *OpsHandler) AcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	patientID := r.PathValue("id")
	alertID := r.PathValue("alertID")

	var req struct {
		Actor string `json:"actor"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Actor == "" {
		http.Error(w, "actor is required", http.StatusBadRequest)
		return
	}

	if err := h.ack.Acknowledge(r.Context(), patientID, alertID, req.Actor); err != nil {
		h.respondError(w, err)
		return
	}
	writeOK(w)
}

// OverrideRiskLevel handles PUT /api/patients/{id}/risk-level.
func (h *OpsHandler) OverrideRiskLevel(w http.ResponseWriter, r *http.Request) {
	patientID := r.PathValue("id")

	var req struct {
		Level string `json:"level"`
		Actor string `json:"actor"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Actor == "" {
		http.Error(w, "level and actor are required", http.StatusBadRequest)
		return
	}
	level := domain.RiskLevel(req.Level)
	switch level {
	case domain.RiskHigh, domain.RiskMedium, domain.RiskLow:
	default:
		http.Error(w, "level must be high, medium, or low", http.StatusBadRequest)
		return
	}

	if err := h.risk.Override(r.Context(), patientID, level, req.Actor); err != nil {
		h.respondError(w, err)
		return
	}
	writeOK(w)
}

// RiskHistory handles GET /api/patients/{id}/risk-history.
func (h *OpsHandler) RiskHistory(w http.ResponseWriter, r *http.Request) {
	patientID := r.PathValue("id")

	entries, err := h.history.ListByPatient(r.Context(), patientID, 100)
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, map[string]any{"entries": entries})
}

func (h *OpsHandler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrPatientNotFound):
		http.Error(w, "patient not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrAlertNotFound):
		http.Error(w, "alert not found", http.StatusNotFound)
	default:
		h.logger.Error("ops request failed", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
