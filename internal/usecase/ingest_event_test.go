package usecase

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/user/carewatch/internal/domain"
	"github.com/user/carewatch/internal/domain/mocks"
	"github.com/user/carewatch/internal/intake"
	"github.com/user/carewatch/internal/risk"
)

type ingestFixture struct {
	uc         *IngestEventUseCase
	patients   *mocks.MockPatientRepository
	reports    *mocks.MockReportRepository
	alerts     *mocks.MockAlertRepository
	history    *mocks.MockRiskHistoryRepository
	messenger  *mocks.MockMessenger
	structurer *mocks.MockStructurer
	detector   *mocks.MockAlertDetector
	assistant  *mocks.MockAssistant
	dispatcher *intake.Dispatcher
}

func newIngestFixture(t *testing.T) *ingestFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(testWriter{t}, nil))

	patient := &domain.Patient{
		ID:        "patient-1",
		OrgID:     "demo-org",
		Name:      "Hanako Sato",
		ChannelID: "C0PATIENT1",
		AnchorTS:  "1700000000.000100",
		RiskLevel: domain.RiskLow,
	}

	f := &ingestFixture{
		patients: &mocks.MockPatientRepository{
			Patients:  map[string]*domain.Patient{patient.ID: patient},
			ByChannel: map[string]*domain.Patient{patient.ChannelID: patient},
		},
		reports: &mocks.MockReportRepository{},
		alerts:  &mocks.MockAlertRepository{},
		history: &mocks.MockRiskHistoryRepository{},
		messenger: &mocks.MockMessenger{
			Names: map[string]string{"U0NURSE": "Yamada"},
		},
		structurer: &mocks.MockStructurer{
			Result: &domain.StructuredReport{
				BPS:        json.RawMessage(`{"bio":{"appetite":"reduced"}}`),
				Confidence: 0.85,
				Summary:    "Reduced appetite over two days",
			},
		},
		detector:  &mocks.MockAlertDetector{},
		assistant: &mocks.MockAssistant{SummaryResult: "weekly summary", AnswerResult: "an answer"},
	}

	riskUC := NewRecalculateRiskUseCase(
		f.patients, f.alerts, f.history,
		risk.New(risk.DefaultPolicy()), nil, logger,
	)

	f.dispatcher = intake.NewDispatcher(3, nil, logger)
	f.uc = NewIngestEventUseCase(IngestDeps{
		Patients:   f.patients,
		Reports:    f.reports,
		Alerts:     f.alerts,
		Tenants:    &mocks.MockTenantConfigRepository{Token: "xoxb-test"},
		Messenger:  f.messenger,
		Structurer: f.structurer,
		Detector:   f.detector,
		Assistant:  f.assistant,
		Risk:       riskUC,
		Dedup:      intake.NewDedupCache(100),
		Claims:     intake.NewClaimCoordinator(f.messenger, logger),
		Dispatcher: f.dispatcher,
		Metrics:    nil,
	}, logger)
	return f
}

// testWriter routes log output through the test log so failures stay readable.
type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

func reportEvent(ts string) *domain.Event {
	return &domain.Event{
		ID:       "Ev" + ts,
		Kind:     domain.EventKindMessage,
		OrgID:    "demo-org",
		Channel:  "C0PATIENT1",
		TS:       ts,
		ThreadTS: "1700000000.000100",
		User:     "U0NURSE",
		Text:     "Nurse here, her appetite has been poor since yesterday",
	}
}

func (f *ingestFixture) drain(t *testing.T) {
	t.Helper()
	if !f.dispatcher.Wait(5 * time.Second) {
		t.Fatal("dispatched tasks did not finish")
	}
}

func TestIngestEvent_ReportFlow(t *testing.T) {
	f := newIngestFixture(t)
	f.detector.Drafts = []domain.AlertDraft{{
		PatternID:   "appetite_decline",
		PatternName: "Appetite decline",
		Severity:    domain.SeverityHigh,
		Title:       "Appetite declining",
		Message:     "Appetite reduced for 2 consecutive days",
		Evidence:    []string{"poor appetite reported"},
	}}

	if err := f.uc.Admit(context.Background(), reportEvent("1700000100.000200")); err != nil {
		t.Fatalf("Admit returned error: %v", err)
	}
	f.drain(t)

	if len(f.reports.Created) != 1 {
		t.Fatalf("reports created = %d, want 1", len(f.reports.Created))
	}
	saved := f.reports.Created[0]
	if saved.ReporterName != "Yamada" || saved.ReporterRole != "nurse" {
		t.Errorf("reporter = %s/%s, want Yamada/nurse", saved.ReporterName, saved.ReporterRole)
	}
	if len(f.alerts.Created) != 1 {
		t.Fatalf("alerts created = %d, want 1", len(f.alerts.Created))
	}
	if f.alerts.Created[0].Severity != domain.SeverityHigh {
		t.Errorf("alert severity = %s, want high", f.alerts.Created[0].Severity)
	}
	// Confirmation reply plus the alert broadcast.
	if got := f.messenger.PostedCount(); got != 2 {
		t.Errorf("posted messages = %d, want 2", got)
	}
	// One high outstanding alert escalates the patient to high.
	if len(f.patients.RiskUpdates) == 0 {
		t.Fatal("expected a risk update after alert creation")
	}
}

func TestIngestEvent_DuplicateSuppressed(t *testing.T) {
	f := newIngestFixture(t)

	ev := reportEvent("1700000100.000300")
	if err := f.uc.Admit(context.Background(), ev); err != nil {
		t.Fatalf("first Admit: %v", err)
	}
	if err := f.uc.Admit(context.Background(), ev); err != nil {
		t.Fatalf("second Admit: %v", err)
	}
	f.drain(t)

	if got := f.structurer.CallCount(); got != 1 {
		t.Errorf("structurer calls = %d, want 1 (duplicate must not reprocess)", got)
	}
	if len(f.reports.Created) != 1 {
		t.Errorf("reports created = %d, want 1", len(f.reports.Created))
	}
}

func TestIngestEvent_ClaimLostSkipsProcessing(t *testing.T) {
	f := newIngestFixture(t)

	ev := reportEvent("1700000100.000400")
	// Another instance already holds the mark for this message.
	if err := f.messenger.Mark(context.Background(), "xoxb-test", ev.Channel, ev.TS); err != nil {
		t.Fatalf("pre-mark: %v", err)
	}

	if err := f.uc.Admit(context.Background(), ev); err != nil {
		t.Fatalf("Admit: %v", err)
	}
	f.drain(t)

	if got := f.structurer.CallCount(); got != 0 {
		t.Errorf("structurer calls = %d, want 0 after lost claim", got)
	}
}

func TestIngestEvent_NonAnchorThreadIgnored(t *testing.T) {
	f := newIngestFixture(t)

	ev := reportEvent("1700000100.000500")
	ev.ThreadTS = "1700000099.999999" // some other thread

	if err := f.uc.Admit(context.Background(), ev); err != nil {
		t.Fatalf("Admit: %v", err)
	}
	f.drain(t)

	if got := f.structurer.CallCount(); got != 0 {
		t.Errorf("structurer calls = %d, want 0 for off-anchor chatter", got)
	}
}

func TestIngestEvent_UnboundChannelIgnored(t *testing.T) {
	f := newIngestFixture(t)

	ev := reportEvent("1700000100.000600")
	ev.Channel = "C0UNKNOWN"

	if err := f.uc.Admit(context.Background(), ev); err != nil {
		t.Fatalf("Admit: %v", err)
	}
	f.drain(t)

	if got := f.structurer.CallCount(); got != 0 {
		t.Errorf("structurer calls = %d, want 0 for unbound channel", got)
	}
}

func TestIngestEvent_MentionSummary(t *testing.T) {
	f := newIngestFixture(t)

	ev := &domain.Event{
		ID:      "EvMention1",
		Kind:    domain.EventKindMention,
		OrgID:   "demo-org",
		Channel: "C0PATIENT1",
		TS:      "1700000200.000100",
		User:    "U0NURSE",
		Text:    "<@U0BOT> summary please",
	}
	if err := f.uc.Admit(context.Background(), ev); err != nil {
		t.Fatalf("Admit: %v", err)
	}
	f.drain(t)

	if f.assistant.SummarizeCalls != 1 {
		t.Errorf("Summarize calls = %d, want 1", f.assistant.SummarizeCalls)
	}
	if got := f.messenger.PostedCount(); got != 1 {
		t.Fatalf("posted messages = %d, want 1", got)
	}
	if f.messenger.Posted[0].Text != "weekly summary" {
		t.Errorf("reply = %q, want the summary text", f.messenger.Posted[0].Text)
	}
}

func TestIngestEvent_MentionQuestionFallback(t *testing.T) {
	f := newIngestFixture(t)

	ev := &domain.Event{
		ID:      "EvMention2",
		Kind:    domain.EventKindMention,
		OrgID:   "demo-org",
		Channel: "C0PATIENT1",
		TS:      "1700000200.000200",
		User:    "U0NURSE",
		Text:    "<@U0BOT> how is her sleep lately?",
	}
	if err := f.uc.Admit(context.Background(), ev); err != nil {
		t.Fatalf("Admit: %v", err)
	}
	f.drain(t)

	if f.assistant.AnswerCalls != 1 {
		t.Errorf("Answer calls = %d, want 1", f.assistant.AnswerCalls)
	}
}
