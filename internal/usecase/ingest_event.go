package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/user/carewatch/internal/adapter/metrics"
	"github.com/user/carewatch/internal/domain"
	"github.com/user/carewatch/internal/intake"
)

const reportHistoryWindow = 7 * 24 * time.Hour

// IngestEventUseCase admits inbound messaging events and processes them on
// detached tasks. The synchronous Admit path does only the cheap checks
// (instance-local dedup, cross-instance claim) so the transport gets its
// acknowledgment well inside its response deadline; everything expensive
// happens behind the dispatcher.
type IngestEventUseCase struct {
	patients   domain.PatientRepository
	reports    domain.ReportRepository
	alerts     domain.AlertRepository
	tenants    domain.TenantConfigRepository
	messenger  domain.Messenger
	structurer domain.Structurer
	detector   domain.AlertDetector
	assistant  domain.Assistant
	risk       *RecalculateRiskUseCase
	dedup      *intake.DedupCache
	claims     *intake.ClaimCoordinator
	dispatcher *intake.Dispatcher
	routes     []MentionRoute
	metrics    *metrics.IntakeMetrics
	logger     *slog.Logger
}

// IngestDeps bundles the collaborators of IngestEventUseCase.
type IngestDeps struct {
	Patients   domain.PatientRepository
	Reports    domain.ReportRepository
	Alerts     domain.AlertRepository
	Tenants    domain.TenantConfigRepository
	Messenger  domain.Messenger
	Structurer domain.Structurer
	Detector   domain.AlertDetector
	Assistant  domain.Assistant
	Risk       *RecalculateRiskUseCase
	Dedup      *intake.DedupCache
	Claims     *intake.ClaimCoordinator
	Dispatcher *intake.Dispatcher
	Metrics    *metrics.IntakeMetrics
}

// NewIngestEventUseCase creates a new IngestEventUseCase.
func NewIngestEventUseCase(deps IngestDeps, logger *slog.Logger) *IngestEventUseCase {
	return &IngestEventUseCase{
		patients:   deps.Patients,
		reports:    deps.Reports,
		alerts:     deps.Alerts,
		tenants:    deps.Tenants,
		messenger:  deps.Messenger,
		structurer: deps.Structurer,
		detector:   deps.Detector,
		assistant:  deps.Assistant,
		risk:       deps.Risk,
		dedup:      deps.Dedup,
		claims:     deps.Claims,
		dispatcher: deps.Dispatcher,
		routes:     DefaultMentionRoutes(),
		metrics:    deps.Metrics,
		logger:     logger,
	}
}

// Admit runs the admission pipeline: dedup, claim, dispatch. It always
// returns nil for events that were verified — redeliveries, duplicates, and
// lost claims are silently accepted no-ops by design.
func (uc *IngestEventUseCase) Admit(ctx context.Context, event *domain.Event) error {
	key := event.DedupKey()
	if uc.dedup.Seen(key) {
		uc.metrics.Event("duplicate")
		uc.logger.Debug("duplicate event suppressed", "key", key)
		return nil
	}
	uc.dedup.MarkSeen(key)

	token, err := uc.tenants.BotToken(ctx, event.OrgID)
	if err != nil {
		// Without a token the claim cannot be authoritative; the mark call
		// will fail as a non-conflict error and processing proceeds.
		uc.logger.Warn("bot token lookup failed", "org_id", event.OrgID, "error", err)
	}

	if !uc.claims.TryClaim(ctx, token, event.Channel, event.TS) {
		uc.metrics.Event("claim_lost")
		return nil
	}

	uc.metrics.Event("accepted")
	uc.dispatcher.Dispatch(func() {
		// Detached tasks outlive the HTTP request; they carry a fresh
		// context because nothing cancels them once admitted.
		uc.process(context.Background(), token, event)
	})
	return nil
}

func (uc *IngestEventUseCase) process(ctx context.Context, token string, event *domain.Event) {
	patient, err := uc.patients.GetByChannel(ctx, event.Channel)
	if err != nil {
		if errors.Is(err, domain.ErrPatientNotFound) {
			uc.logger.Debug("event for unbound channel ignored", "channel", event.Channel)
			return
		}
		uc.fail("resolve patient", event, err)
		return
	}

	switch event.Kind {
	case domain.EventKindMessage:
		// Only replies threaded on the patient's anchor message are reports;
		// everything else in the channel is casual chat.
		if event.ThreadTS == "" || event.ThreadTS != patient.AnchorTS {
			return
		}
		uc.handleReport(ctx, token, patient, event)
	case domain.EventKindMention:
		uc.handleMention(ctx, token, patient, event)
	}
}

func (uc *IngestEventUseCase) handleReport(ctx context.Context, token string, patient *domain.Patient, event *domain.Event) {
	reporter, err := uc.messenger.UserName(ctx, token, event.User)
	if err != nil {
		uc.logger.Warn("user name lookup failed", "user", event.User, "error", err)
		reporter = "unknown"
	}
	role := inferReporterRole(event.Text)

	structured, err := uc.structurer.Structure(ctx, patient, event.Text, reporter, role)
	if err != nil {
		uc.fail("structure report", event, err)
		return
	}

	now := time.Now().UTC()
	report := &domain.Report{
		ID:           uuid.NewString(),
		PatientID:    patient.ID,
		ReporterName: reporter,
		ReporterRole: role,
		RawText:      event.Text,
		BPS:          structured.BPS,
		Confidence:   structured.Confidence,
		SourceTS:     event.TS,
		CreatedAt:    now,
	}
	if err := uc.reports.Create(ctx, report); err != nil {
		uc.fail("save report", event, err)
		return
	}

	confirmation := fmt.Sprintf("Saved: %s (confidence %.2f, reported by %s)", structured.Summary, structured.Confidence, reporter)
	if err := uc.messenger.PostThreadReply(ctx, token, event.Channel, event.ThreadTS, confirmation); err != nil {
		uc.logger.Warn("confirmation post failed", "channel", event.Channel, "error", err)
	}

	history, err := uc.reports.ListRecent(ctx, patient.ID, now.Add(-reportHistoryWindow), 20)
	if err != nil {
		uc.fail("load report history", event, err)
		return
	}

	drafts, err := uc.detector.Detect(ctx, patient, report, history)
	if err != nil {
		uc.fail("detect alerts", event, err)
		return
	}
	if len(drafts) == 0 {
		return
	}

	for _, draft := range drafts {
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
			CreatedAt:       time.Now().UTC(),
		}
		if err := uc.alerts.Create(ctx, alert); err != nil {
			uc.fail("save alert", event, err)
			continue
		}
		if err := uc.messenger.PostMessage(ctx, token, event.Channel, formatAlertMessage(alert)); err != nil {
			uc.logger.Warn("alert post failed", "channel", event.Channel, "error", err)
		}
	}

	if _, err := uc.risk.Recalculate(ctx, patient.ID, domain.TriggerAlertCreated, "system"); err != nil {
		uc.fail("recalculate risk", event, err)
	}
}

func (uc *IngestEventUseCase) handleMention(ctx context.Context, token string, patient *domain.Patient, event *domain.Event) {
	text := strings.TrimSpace(StripMentions(event.Text))
	threadTS := event.ThreadTS
	if threadTS == "" {
		threadTS = event.TS
	}

	reply := func(msg string) {
		if err := uc.messenger.PostThreadReply(ctx, token, event.Channel, threadTS, msg); err != nil {
			uc.logger.Warn("mention reply failed", "channel", event.Channel, "error", err)
		}
	}

	switch RouteMention(uc.routes, text) {
	case CapabilitySummary:
		reports, err := uc.reports.ListRecent(ctx, patient.ID, time.Now().UTC().Add(-2*reportHistoryWindow), 20)
		if err != nil {
			uc.fail("load reports for summary", event, err)
			return
		}
		summary, err := uc.assistant.Summarize(ctx, patient, reports)
		if err != nil {
			uc.fail("summarize", event, err)
			return
		}
		reply(summary)
	case CapabilitySave:
		reply("To record a report, reply in the patient's anchor thread. Replies there are structured and saved automatically.")
	default:
		reports, err := uc.reports.ListRecent(ctx, patient.ID, time.Now().UTC().Add(-2*reportHistoryWindow), 20)
		if err != nil {
			uc.fail("load reports for answer", event, err)
			return
		}
		answer, err := uc.assistant.Answer(ctx, patient, text, reports)
		if err != nil {
			uc.fail("answer question", event, err)
			return
		}
		reply(answer)
	}
}

// fail logs a detached-task error and counts it. Nothing is retried and
// nothing propagates: the next event for the patient recalculates from
// whatever state exists.
func (uc *IngestEventUseCase) fail(op string, event *domain.Event, err error) {
	if uc.metrics != nil {
		uc.metrics.ProcessingFailures.Inc()
	}
	uc.logger.Error("detached processing failed",
		"op", op, "channel", event.Channel, "ts", event.TS, "error", err)
}

func formatAlertMessage(alert *domain.Alert) string {
	marker := map[domain.Severity]string{
		domain.SeverityHigh:   "[HIGH]",
		domain.SeverityMedium: "[MEDIUM]",
		domain.SeverityLow:    "[LOW]",
	}[alert.Severity]

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n\n%s\n", marker, alert.Title, alert.Message)
	if len(alert.Evidence) > 0 {
		b.WriteString("\nEvidence:\n")
		for _, e := range alert.Evidence {
			fmt.Fprintf(&b, "- %s\n", e)
		}
	}
	if len(alert.Recommendations) > 0 {
		b.WriteString("\nRecommended actions:\n")
		for _, r := range alert.Recommendations {
			fmt.Fprintf(&b, "- %s\n", r)
		}
	}
	return b.String()
}

// inferReporterRole guesses the reporter's role from self-identifying
// keywords in the text. Defaults to unknown; the structurer treats the role
// as a hint only.
func inferReporterRole(text string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "nurse") || strings.Contains(lower, "visiting ns"):
		return "nurse"
	case strings.Contains(lower, "pharmacist") || strings.Contains(lower, "pharmacy"):
		return "pharmacist"
	case strings.Contains(lower, "physical therapist") || strings.Contains(lower, "physio"):
		return "pt"
	case strings.Contains(lower, "care manager"):
		return "cm"
	case strings.Contains(lower, "helper") || strings.Contains(lower, "caregiver"):
		return "helper"
	case strings.Contains(lower, "doctor") || strings.Contains(lower, "physician"):
		return "doctor"
	case strings.Contains(lower, "family") || strings.Contains(lower, "daughter") || strings.Contains(lower, "son") || strings.Contains(lower, "wife") || strings.Contains(lower, "husband"):
		return "family"
	default:
		return "unknown"
	}
}
