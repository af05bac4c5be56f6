package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/user/carewatch/internal/domain"
)

// ScanReport summarizes one scheduled scan over an org's active patients.
type ScanReport struct {
	OrgID       string
	Scanned     int
	NewAlerts   int
	RiskChanges int
	Unreported  []string // names of patients with no report inside the lookback window
	ByLevel     map[domain.RiskLevel]int
}

// ScanPatientsUseCase runs the scheduled sweep: it re-runs pattern detection
// over each active patient's recent reports, recalculates every patient's
// risk level, and posts a digest to the org's on-call channel. Recalculating
// every patient is what drives time-based de-escalation for patients with no
// inbound events.
type ScanPatientsUseCase struct {
	patients  domain.PatientRepository
	reports   domain.ReportRepository
	alerts    domain.AlertRepository
	tenants   domain.TenantConfigRepository
	messenger domain.Messenger
	detector  domain.AlertDetector
	risk      *RecalculateRiskUseCase
	logger    *slog.Logger
	now       func() time.Time
}

// NewScanPatientsUseCase creates a new ScanPatientsUseCase.
func NewScanPatientsUseCase(
	patients domain.PatientRepository,
	reports domain.ReportRepository,
	alerts domain.AlertRepository,
	tenants domain.TenantConfigRepository,
	messenger domain.Messenger,
	detector domain.AlertDetector,
	risk *RecalculateRiskUseCase,
	logger *slog.Logger,
) *ScanPatientsUseCase {
	return &ScanPatientsUseCase{
		patients:  patients,
		reports:   reports,
		alerts:    alerts,
		tenants:   tenants,
		messenger: messenger,
		detector:  detector,
		risk:      risk,
		logger:    logger.With("component", "scanner"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source. For tests.
func (uc *ScanPatientsUseCase) WithClock(now func() time.Time) *ScanPatientsUseCase {
	uc.now = now
	return uc
}

// Scan sweeps one org. Per-patient failures are logged and skipped so a
// single bad record cannot abort the whole sweep.
func (uc *ScanPatientsUseCase) Scan(ctx context.Context, orgID string, lookback time.Duration) (*ScanReport, error) {
	active, err := uc.patients.ListActive(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("list active patients: %w", err)
	}

	token, err := uc.tenants.BotToken(ctx, orgID)
	if err != nil {
		uc.logger.Warn("bot token lookup failed, digest will not be posted", "org_id", orgID, "error", err)
	}

	since := uc.now().Add(-lookback)
	report := &ScanReport{
		OrgID:   orgID,
		ByLevel: map[domain.RiskLevel]int{},
	}

	for i := range active {
		patient := &active[i]
		report.Scanned++

		created, err := uc.scanPatient(ctx, token, patient, since)
		if err != nil {
			uc.logger.Error("patient scan failed", "patient_id", patient.ID, "error", err)
		}
		report.NewAlerts += created

		change, err := uc.risk.Recalculate(ctx, patient.ID, domain.TriggerPeriodicScan, "scanner")
		if err != nil {
			uc.logger.Error("scan recalculation failed", "patient_id", patient.ID, "error", err)
			report.ByLevel[patient.RiskLevel]++
			continue
		}
		if change.Changed {
			report.RiskChanges++
		}
		report.ByLevel[change.NewLevel]++
	}

	// Flag patients that went silent: no report inside the lookback window.
	for i := range active {
		recent, err := uc.reports.ListRecent(ctx, active[i].ID, since, 1)
		if err != nil {
			continue
		}
		if len(recent) == 0 {
			report.Unreported = append(report.Unreported, active[i].Name)
		}
	}

	if err := uc.postDigest(ctx, token, orgID, report); err != nil {
		uc.logger.Warn("digest post failed", "org_id", orgID, "error", err)
	}

	uc.logger.Info("scan complete",
		"org_id", orgID,
		"scanned", report.Scanned,
		"new_alerts", report.NewAlerts,
		"risk_changes", report.RiskChanges,
	)
	return report, nil
}

// scanPatient re-runs detection over the patient's recent reports and creates
// alerts for patterns not already outstanding. Returns the number of alerts
// created.
func (uc *ScanPatientsUseCase) scanPatient(ctx context.Context, token string, patient *domain.Patient, since time.Time) (int, error) {
	recent, err := uc.reports.ListRecent(ctx, patient.ID, since, 20)
	if err != nil {
		return 0, fmt.Errorf("list recent reports: %w", err)
	}
	if len(recent) == 0 {
		return 0, nil
	}

	latest := &recent[0]
	drafts, err := uc.detector.Detect(ctx, patient, latest, recent[1:])
	if err != nil {
		return 0, fmt.Errorf("detect: %w", err)
	}
	if len(drafts) == 0 {
		return 0, nil
	}

	outstanding, err := uc.alerts.ListOutstanding(ctx, patient.ID)
	if err != nil {
		return 0, fmt.Errorf("list outstanding alerts: %w", err)
	}
	known := make(map[string]bool, len(outstanding))
	for _, a := range outstanding {
		known[a.PatternID] = true
	}

	created := 0
	for _, draft := range drafts {
		// A pattern already flagged and unacknowledged is not news.
		if known[draft.PatternID] {
			continue
		}
		alert := &domain.Alert{
			ID:              uuid.NewString(),
			PatientID:       patient.ID,
			Severity:        draft.Severity,
			PatternID:       draft.PatternID,
			PatternName:     draft.PatternName,
			Title:           draft.Title,
			Message:         draft.Message,
			Evidence:        draft.Evidence,
			Recommendations: draft.Recommendations,
			CreatedAt:       uc.now(),
		}
		if err := uc.alerts.Create(ctx, alert); err != nil {
			uc.logger.Error("scan alert create failed", "patient_id", patient.ID, "pattern", draft.PatternID, "error", err)
			continue
		}
		created++
		if err := uc.messenger.PostMessage(ctx, token, patient.ChannelID, formatAlertMessage(alert)); err != nil {
			uc.logger.Warn("scan alert post failed", "channel", patient.ChannelID, "error", err)
		}
	}
	return created, nil
}

func (uc *ScanPatientsUseCase) postDigest(ctx context.Context, token, orgID string, report *ScanReport) error {
	oncall, err := uc.tenants.OncallChannel(ctx, orgID)
	if err != nil {
		return fmt.Errorf("oncall channel lookup: %w", err)
	}
	if oncall == "" {
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Daily patient scan (%s)\n\n", uc.now().Format("2006-01-02"))
	fmt.Fprintf(&b, "Patients scanned: %d\n", report.Scanned)
	fmt.Fprintf(&b, "Risk levels: high %d / medium %d / low %d\n",
		report.ByLevel[domain.RiskHigh], report.ByLevel[domain.RiskMedium], report.ByLevel[domain.RiskLow])
	if report.NewAlerts > 0 {
		fmt.Fprintf(&b, "New alerts: %d\n", report.NewAlerts)
	}
	if report.RiskChanges > 0 {
		fmt.Fprintf(&b, "Risk level changes: %d\n", report.RiskChanges)
	}
	if len(report.Unreported) > 0 {
		b.WriteString("\nNo recent reports:\n")
		for _, name := range report.Unreported {
			fmt.Fprintf(&b, "- %s\n", name)
		}
	}
	return uc.messenger.PostMessage(ctx, token, oncall, b.String())
}
