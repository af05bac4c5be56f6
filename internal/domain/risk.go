package domain

import "time"

// RiskLevel is a patient's priority indicator.
type RiskLevel string

const (
	RiskHigh   RiskLevel = "high"
	RiskMedium RiskLevel = "medium"
	RiskLow    RiskLevel = "low"
)

// RiskSource records whether the current level was computed automatically or
// pinned by a human. A manually pinned level is never overwritten by
// automatic de-escalation.
type RiskSource string

const (
	RiskSourceAuto   RiskSource = "auto"
	RiskSourceManual RiskSource = "manual"
)

// RiskTrigger names what caused a risk recalculation.
type RiskTrigger string

const (
	TriggerAlertCreated      RiskTrigger = "alert_created"
	TriggerAlertAcknowledged RiskTrigger = "alert_acknowledged"
	TriggerManualUpdate      RiskTrigger = "manual_update"
	TriggerPeriodicScan      RiskTrigger = "periodic_scan"
)

// RiskHistoryEntry is an immutable audit record of one risk level transition.
// Exactly one entry is appended per actual transition; no-op recalculations
// append nothing.
type RiskHistoryEntry struct {
	ID            string         `json:"id"`
	PatientID     string         `json:"patient_id"`
	PreviousLevel RiskLevel      `json:"previous_level"`
	NewLevel      RiskLevel      `json:"new_level"`
	Source        RiskSource     `json:"source"`
	Reason        string         `json:"reason"`
	Trigger       RiskTrigger    `json:"trigger"`
	AlertSnapshot SeverityCounts `json:"alert_snapshot"`
	CreatedBy     string         `json:"created_by"`
	CreatedAt     time.Time      `json:"created_at"`
}
