package domain

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrPatientNotFound is returned when no patient matches the lookup.
	ErrPatientNotFound = errors.New("patient not found")

	// ErrAlertNotFound is returned when no alert matches the lookup.
	ErrAlertNotFound = errors.New("alert not found")
)

// PatientRepository provides access to patient documents, the single source
// of truth for the current risk state.
type PatientRepository interface {
	GetByID(ctx context.Context, id string) (*Patient, error)

	// GetByChannel resolves the patient owning a messaging channel.
	// Returns ErrPatientNotFound when the channel is not bound to a patient.
	GetByChannel(ctx context.Context, channelID string) (*Patient, error)

	ListActive(ctx context.Context, orgID string) ([]Patient, error)

	// UpdateRiskLevel writes the current risk state fields. Last write wins;
	// recalculation always derives fresh state from outstanding alerts, so no
	// locking is required.
	UpdateRiskLevel(ctx context.Context, patientID string, level RiskLevel, source RiskSource, reason string, updatedAt time.Time) error
}

// AlertRepository stores alerts. Alerts are append-and-acknowledge only;
// nothing ever deletes one.
type AlertRepository interface {
	Create(ctx context.Context, alert *Alert) error

	// Acknowledge marks an alert as acknowledged. Returns ErrAlertNotFound
	// if the alert does not exist for the patient.
	Acknowledge(ctx context.Context, patientID, alertID, actor string, at time.Time) error

	// ListOutstanding returns the patient's unacknowledged alerts.
	ListOutstanding(ctx context.Context, patientID string) ([]Alert, error)

	// LatestAlertTimestamp returns the creation time of the most recent alert
	// ever recorded for the patient, or nil if none exists.
	LatestAlertTimestamp(ctx context.Context, patientID string) (*time.Time, error)

	ListByPatient(ctx context.Context, patientID string, limit int) ([]Alert, error)
}

// ReportRepository stores structured care reports.
type ReportRepository interface {
	Create(ctx context.Context, report *Report) error
	ListRecent(ctx context.Context, patientID string, since time.Time, limit int) ([]Report, error)
}

// RiskHistoryRepository is the append-only ledger of risk level transitions.
type RiskHistoryRepository interface {
	Append(ctx context.Context, entry *RiskHistoryEntry) error
	ListByPatient(ctx context.Context, patientID string, limit int) ([]RiskHistoryEntry, error)
}

// TenantConfigRepository provides per-organization messaging platform
// credentials. Implementations should cache lookups; the signing secret is
// read on every inbound event.
type TenantConfigRepository interface {
	SigningSecret(ctx context.Context, orgID string) (string, error)
	BotToken(ctx context.Context, orgID string) (string, error)
	OncallChannel(ctx context.Context, orgID string) (string, error)
}
