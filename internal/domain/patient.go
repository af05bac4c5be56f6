package domain

import "time"

// Patient statuses.
const (
	PatientStatusActive   = "active"
	PatientStatusInactive = "inactive"
)

// Patient is the subject a report, alert, and risk level pertain to.
// Each patient owns one messaging channel; thread replies to the channel's
// anchor message are treated as care reports.
type Patient struct {
	ID            string     `json:"id"`
	OrgID         string     `json:"org_id"`
	Name          string     `json:"name"`
	ChannelID     string     `json:"channel_id"`
	AnchorTS      string     `json:"anchor_ts"`
	Status        string     `json:"status"`
	RiskLevel     RiskLevel  `json:"risk_level"`
	RiskSource    RiskSource `json:"risk_level_source"`
	RiskReason    string     `json:"risk_level_reason"`
	RiskUpdatedAt time.Time  `json:"risk_level_updated_at"`
}
