package usecase

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/user/carewatch/internal/domain"
	"github.com/user/carewatch/internal/domain/mocks"
	"github.com/user/carewatch/internal/risk"
)

func newRiskFixture(t *testing.T, patient *domain.Patient) (*RecalculateRiskUseCase, *mocks.MockPatientRepository, *mocks.MockAlertRepository, *mocks.MockRiskHistoryRepository) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(testWriter{t}, nil))
	patients := &mocks.MockPatientRepository{
		Patients: map[string]*domain.Patient{patient.ID: patient},
	}
	alerts := &mocks.MockAlertRepository{}
	history := &mocks.MockRiskHistoryRepository{}
	uc := NewRecalculateRiskUseCase(patients, alerts, history, risk.New(risk.DefaultPolicy()), nil, logger)
	return uc, patients, alerts, history
}

func TestRecalculate_TransitionAppendsOneEntry(t *testing.T) {
	patient := &domain.Patient{ID: "p1", RiskLevel: domain.RiskLow, RiskSource: domain.RiskSourceAuto}
	uc, patients, alerts, history := newRiskFixture(t, patient)
	alerts.Outstanding = []domain.Alert{{Severity: domain.SeverityHigh}}

	change, err := uc.Recalculate(context.Background(), "p1", domain.TriggerAlertCreated, "system")
	if err != nil {
		t.Fatalf("Recalculate: %v", err)
	}
	if !change.Changed || change.NewLevel != domain.RiskHigh {
		t.Fatalf("change = %+v, want transition to high", change)
	}

	if len(history.Entries) != 1 {
		t.Fatalf("history entries = %d, want exactly 1 per transition", len(history.Entries))
	}
	entry := history.Entries[0]
	if entry.PreviousLevel != domain.RiskLow || entry.NewLevel != domain.RiskHigh {
		t.Errorf("entry levels = %s->%s, want low->high", entry.PreviousLevel, entry.NewLevel)
	}
	if entry.Trigger != domain.TriggerAlertCreated {
		t.Errorf("entry trigger = %s, want alert_created", entry.Trigger)
	}
	if entry.AlertSnapshot.High != 1 {
		t.Errorf("snapshot high = %d, want 1", entry.AlertSnapshot.High)
	}
	if len(patients.RiskUpdates) != 1 {
		t.Errorf("risk updates = %d, want 1", len(patients.RiskUpdates))
	}
}

func TestRecalculate_NoChangeAppendsNothing(t *testing.T) {
	patient := &domain.Patient{ID: "p1", RiskLevel: domain.RiskHigh, RiskSource: domain.RiskSourceAuto}
	uc, patients, alerts, history := newRiskFixture(t, patient)
	alerts.Outstanding = []domain.Alert{{Severity: domain.SeverityHigh}}

	change, err := uc.Recalculate(context.Background(), "p1", domain.TriggerPeriodicScan, "scanner")
	if err != nil {
		t.Fatalf("Recalculate: %v", err)
	}
	if change.Changed {
		t.Fatalf("change.Changed = true, want false for same level")
	}
	if len(history.Entries) != 0 {
		t.Errorf("history entries = %d, want 0 for a no-op recalculation", len(history.Entries))
	}
	if len(patients.RiskUpdates) != 0 {
		t.Errorf("risk updates = %d, want 0 for a no-op recalculation", len(patients.RiskUpdates))
	}
}

func TestRecalculate_Idempotent(t *testing.T) {
	patient := &domain.Patient{ID: "p1", RiskLevel: domain.RiskLow, RiskSource: domain.RiskSourceAuto}
	uc, _, alerts, history := newRiskFixture(t, patient)
	alerts.Outstanding = []domain.Alert{{Severity: domain.SeverityMedium}, {Severity: domain.SeverityMedium}}

	for i := 0; i < 5; i++ {
		if _, err := uc.Recalculate(context.Background(), "p1", domain.TriggerAlertCreated, "system"); err != nil {
			t.Fatalf("Recalculate #%d: %v", i+1, err)
		}
	}

	// Only the first call transitions; the rest see high already in place.
	if len(history.Entries) != 1 {
		t.Errorf("history entries = %d, want 1 after repeated recalculation", len(history.Entries))
	}
}

func TestRecalculate_QuietStepDown(t *testing.T) {
	patient := &domain.Patient{ID: "p1", RiskLevel: domain.RiskHigh, RiskSource: domain.RiskSourceAuto}
	uc, _, alerts, history := newRiskFixture(t, patient)

	now := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	latest := now.Add(-10 * 24 * time.Hour)
	alerts.LatestAt = &latest
	uc.WithClock(func() time.Time { return now })

	change, err := uc.Recalculate(context.Background(), "p1", domain.TriggerPeriodicScan, "scanner")
	if err != nil {
		t.Fatalf("Recalculate: %v", err)
	}
	if change.NewLevel != domain.RiskMedium {
		t.Fatalf("level = %s, want medium after a 10 day quiet period", change.NewLevel)
	}
	if len(history.Entries) != 1 || history.Entries[0].Trigger != domain.TriggerPeriodicScan {
		t.Errorf("expected one periodic_scan history entry, got %+v", history.Entries)
	}
}

func TestOverride_AlwaysAppendsHistory(t *testing.T) {
	patient := &domain.Patient{ID: "p1", RiskLevel: domain.RiskMedium, RiskSource: domain.RiskSourceAuto}
	uc, patients, _, history := newRiskFixture(t, patient)

	// Same level as current: the pin itself is still an auditable action.
	if err := uc.Override(context.Background(), "p1", domain.RiskMedium, "dr.tanaka"); err != nil {
		t.Fatalf("Override: %v", err)
	}

	if len(history.Entries) != 1 {
		t.Fatalf("history entries = %d, want 1 even without a level change", len(history.Entries))
	}
	entry := history.Entries[0]
	if entry.Source != domain.RiskSourceManual || entry.Trigger != domain.TriggerManualUpdate {
		t.Errorf("entry source/trigger = %s/%s, want manual/manual_update", entry.Source, entry.Trigger)
	}
	if entry.CreatedBy != "dr.tanaka" {
		t.Errorf("entry created_by = %q, want dr.tanaka", entry.CreatedBy)
	}

	if len(patients.RiskUpdates) != 1 {
		t.Fatalf("risk updates = %d, want 1", len(patients.RiskUpdates))
	}
	if patients.RiskUpdates[0].Source != domain.RiskSourceManual {
		t.Errorf("update source = %s, want manual", patients.RiskUpdates[0].Source)
	}
}

func TestOverride_PinSurvivesRecalculation(t *testing.T) {
	patient := &domain.Patient{ID: "p1", RiskLevel: domain.RiskLow, RiskSource: domain.RiskSourceAuto}
	uc, patients, alerts, _ := newRiskFixture(t, patient)

	if err := uc.Override(context.Background(), "p1", domain.RiskHigh, "dr.tanaka"); err != nil {
		t.Fatalf("Override: %v", err)
	}

	// No outstanding alerts and a long quiet period would normally reset to
	// low, but the manual pin holds.
	now := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	latest := now.Add(-30 * 24 * time.Hour)
	alerts.LatestAt = &latest
	uc.WithClock(func() time.Time { return now })

	change, err := uc.Recalculate(context.Background(), "p1", domain.TriggerPeriodicScan, "scanner")
	if err != nil {
		t.Fatalf("Recalculate: %v", err)
	}
	if change.Changed {
		t.Fatalf("pinned level changed to %s, want hold at high", change.NewLevel)
	}
	if got := patients.Patients["p1"].RiskLevel; got != domain.RiskHigh {
		t.Errorf("patient level = %s, want high", got)
	}
}
