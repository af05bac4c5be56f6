package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/user/carewatch/internal/adapter/metrics"
	"github.com/user/carewatch/internal/domain"
	"github.com/user/carewatch/internal/risk"
)

// RiskChange describes the outcome of one recalculation.
type RiskChange struct {
	Changed       bool
	PreviousLevel domain.RiskLevel
	NewLevel      domain.RiskLevel
	Reason        string
}

// RecalculateRiskUseCase derives a patient's risk level from the current
// outstanding-alert set and persists the transition plus its history entry.
// It always reads fresh state, so concurrent recalculations converge
// regardless of order.
type RecalculateRiskUseCase struct {
	patients domain.PatientRepository
	alerts   domain.AlertRepository
	history  domain.RiskHistoryRepository
	engine   *risk.Engine
	metrics  *metrics.IntakeMetrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewRecalculateRiskUseCase creates a new RecalculateRiskUseCase.
func NewRecalculateRiskUseCase(
	patients domain.PatientRepository,
	alerts domain.AlertRepository,
	history domain.RiskHistoryRepository,
	engine *risk.Engine,
	m *metrics.IntakeMetrics,
	logger *slog.Logger,
) *RecalculateRiskUseCase {
	return &RecalculateRiskUseCase{
		patients: patients,
		alerts:   alerts,
		history:  history,
		engine:   engine,
		metrics:  m,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source. For tests.
func (uc *RecalculateRiskUseCase) WithClock(now func() time.Time) *RecalculateRiskUseCase {
	uc.now = now
	return uc
}

// Recalculate computes the level from scratch and, on an actual transition,
// updates the patient document and appends exactly one history entry.
func (uc *RecalculateRiskUseCase) Recalculate(ctx context.Context, patientID string, trigger domain.RiskTrigger, actor string) (*RiskChange, error) {
	patient, err := uc.patients.GetByID(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("load patient: %w", err)
	}

	outstanding, err := uc.alerts.ListOutstanding(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("list outstanding alerts: %w", err)
	}
	counts := domain.CountBySeverity(outstanding)

	latest, err := uc.alerts.LatestAlertTimestamp(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("latest alert timestamp: %w", err)
	}

	res := uc.engine.Calculate(risk.Input{
		Counts:        counts,
		CurrentLevel:  patient.RiskLevel,
		CurrentSource: patient.RiskSource,
		LatestAlertAt: latest,
		Now:           uc.now(),
	})

	change := &RiskChange{
		Changed:       res.Changed,
		PreviousLevel: patient.RiskLevel,
		NewLevel:      res.Level,
		Reason:        res.Reason,
	}
	if !res.Changed {
		return change, nil
	}

	now := uc.now()
	if err := uc.patients.UpdateRiskLevel(ctx, patientID, res.Level, domain.RiskSourceAuto, res.Reason, now); err != nil {
		return nil, fmt.Errorf("update risk level: %w", err)
	}

	entry := &domain.RiskHistoryEntry{
		ID:            uuid.NewString(),
		PatientID:     patientID,
		PreviousLevel: patient.RiskLevel,
		NewLevel:      res.Level,
		Source:        domain.RiskSourceAuto,
		Reason:        res.Reason,
		Trigger:       trigger,
		AlertSnapshot: counts,
		CreatedBy:     actor,
		CreatedAt:     now,
	}
	if err := uc.history.Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("append risk history: %w", err)
	}

	if uc.metrics != nil {
		uc.metrics.RiskTransitions.WithLabelValues(string(res.Level)).Inc()
	}
	uc.logger.Info("risk level changed",
		"patient_id", patientID,
		"previous", patient.RiskLevel,
		"new", res.Level,
		"trigger", trigger,
	)

	return change, nil
}

// Override sets the level manually. The source always becomes manual and a
// history entry is always appended, even when the level does not change.
func (uc *RecalculateRiskUseCase) Override(ctx context.Context, patientID string, level domain.RiskLevel, actor string) error {
	patient, err := uc.patients.GetByID(ctx, patientID)
	if err != nil {
		return fmt.Errorf("load patient: %w", err)
	}

	outstanding, err := uc.alerts.ListOutstanding(ctx, patientID)
	if err != nil {
		return fmt.Errorf("list outstanding alerts: %w", err)
	}

	now := uc.now()
	reason := fmt.Sprintf("manually set by %s", actor)
	if err := uc.patients.UpdateRiskLevel(ctx, patientID, level, domain.RiskSourceManual, reason, now); err != nil {
		return fmt.Errorf("update risk level: %w", err)
	}

	entry := &domain.RiskHistoryEntry{
		ID:            uuid.NewString(),
		PatientID:     patientID,
		PreviousLevel: patient.RiskLevel,
		NewLevel:      level,
		Source:        domain.RiskSourceManual,
		Reason:        reason,
		Trigger:       domain.TriggerManualUpdate,
		AlertSnapshot: domain.CountBySeverity(outstanding),
		CreatedBy:     actor,
		CreatedAt:     now,
	}
	if err := uc.history.Append(ctx, entry); err != nil {
		return fmt.Errorf("append risk history: %w", err)
	}

	uc.logger.Info("risk level manually overridden",
		"patient_id", patientID,
		"previous", patient.RiskLevel,
		"new", level,
		"actor", actor,
	)
	return nil
}
