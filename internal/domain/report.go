package domain

import (
	"encoding/json"
	"time"
)

// Report is a structured care record produced from a free-text thread reply
// by the structuring collaborator.
type Report struct {
	ID           string          `json:"id"`
	PatientID    string          `json:"patient_id"`
	ReporterName string          `json:"reporter_name"`
	ReporterRole string          `json:"reporter_role"`
	RawText      string          `json:"raw_text"`
	BPS          json.RawMessage `json:"bps_classification"`
	Confidence   float64         `json:"confidence"`
	SourceTS     string          `json:"source_ts,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}
