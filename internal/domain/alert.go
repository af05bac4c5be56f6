package domain

import (
	"strings"
	"time"
)

// Severity classifies how urgently an alert needs human attention.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// ParseSeverity normalizes a free-form severity string. Unknown values map to
// low so that a malformed detector response can never inflate priority.
func ParseSeverity(s string) Severity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return SeverityHigh
	case "medium":
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Alert flags a detected anomaly for a patient. Alerts are mutated only by
// acknowledgment and are never deleted; they remain for audit and for the
// risk engine's outstanding-alert counts.
type Alert struct {
	ID              string     `json:"id"`
	PatientID       string     `json:"patient_id"`
	Severity        Severity   `json:"severity"`
	PatternID       string     `json:"pattern_id"`
	PatternName     string     `json:"pattern_name"`
	Title           string     `json:"title"`
	Message         string     `json:"message"`
	Evidence        []string   `json:"evidence"`
	Recommendations []string   `json:"recommendations"`
	SlackMessageTS  string     `json:"slack_message_ts,omitempty"`
	Acknowledged    bool       `json:"acknowledged"`
	AcknowledgedBy  string     `json:"acknowledged_by,omitempty"`
	AcknowledgedAt  *time.Time `json:"acknowledged_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// AlertDraft is a detector-produced alert candidate before it is assigned an
// ID and persisted.
type AlertDraft struct {
	PatternID       string   `json:"pattern_id"`
	PatternName     string   `json:"pattern_name"`
	Severity        Severity `json:"severity"`
	Title           string   `json:"title"`
	Message         string   `json:"message"`
	Evidence        []string `json:"evidence"`
	Recommendations []string `json:"recommendations"`
}

// SeverityCounts is a snapshot of outstanding (unacknowledged) alerts by
// severity, used as input to the risk engine and recorded in history entries.
type SeverityCounts struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// Total returns the number of outstanding alerts across all severities.
func (c SeverityCounts) Total() int {
	return c.High + c.Medium + c.Low
}

// CountBySeverity tallies unacknowledged alerts into a SeverityCounts
// snapshot. Acknowledged alerts in the input are ignored.
func CountBySeverity(alerts []Alert) SeverityCounts {
	var counts SeverityCounts
	for _, a := range alerts {
		if a.Acknowledged {
			continue
		}
		switch a.Severity {
		case SeverityHigh:
			counts.High++
		case SeverityMedium:
			counts.Medium++
		default:
			counts.Low++
		}
	}
	return counts
}
