package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/user/carewatch/internal/domain"
)

// AcknowledgeAlertUseCase marks an alert as acknowledged and triggers a risk
// recalculation for the patient.
type AcknowledgeAlertUseCase struct {
	alerts domain.AlertRepository
	risk   *RecalculateRiskUseCase
	logger *slog.Logger
}

// NewAcknowledgeAlertUseCase creates a new AcknowledgeAlertUseCase.
func NewAcknowledgeAlertUseCase(alerts domain.AlertRepository, risk *RecalculateRiskUseCase, logger *slog.Logger) *AcknowledgeAlertUseCase {
	return &AcknowledgeAlertUseCase{alerts: alerts, risk: risk, logger: logger}
}

// Acknowledge records the acknowledgment and recalculates risk. A failed
// recalculation does not roll back the acknowledgment; the next trigger will
// converge on the correct level.
func (uc *AcknowledgeAlertUseCase) Acknowledge(ctx context.Context, patientID, alertID, actor string) error {
	if err := uc.alerts.Acknowledge(ctx, patientID, alertID, actor, time.Now().UTC()); err != nil {
		return fmt.Errorf("acknowledge alert: %w", err)
	}

	if _, err := uc.risk.Recalculate(ctx, patientID, domain.TriggerAlertAcknowledged, actor); err != nil {
		uc.logger.Warn("risk recalculation after acknowledgment failed",
			"patient_id", patientID, "alert_id", alertID, "error", err)
	}
	return nil
}
