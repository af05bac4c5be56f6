package domain

import (
	"context"
	"errors"
)

// ErrAlreadyMarked indicates the mark operation found an existing marker on
// the message: another instance already claimed it.
var ErrAlreadyMarked = errors.New("message already marked")

// Messenger is the outbound interface to the messaging platform.
// All calls take the per-tenant bot token explicitly; credentials live in
// tenant configuration, not in the client.
type Messenger interface {
	PostMessage(ctx context.Context, token, channel, text string) error
	PostThreadReply(ctx context.Context, token, channel, threadTS, text string) error

	// Mark performs the idempotent per-message mark operation used as the
	// cross-instance claim. Returns ErrAlreadyMarked when the marker already
	// exists on the message.
	Mark(ctx context.Context, token, channel, ts string) error

	// UserName resolves a platform user ID to a display name.
	UserName(ctx context.Context, token, userID string) (string, error)
}

// StructuredReport is the structuring collaborator's output for one report.
type StructuredReport struct {
	BPS        []byte  // JSON document with bio/psycho/social sections
	Confidence float64 // 0.0-1.0
	Summary    string  // one-line human-readable summary for the confirmation
}

// Structurer converts a free-text report into structured data.
// Failures are reported to the caller and never retried automatically.
type Structurer interface {
	Structure(ctx context.Context, patient *Patient, text, reporterName, reporterRole string) (*StructuredReport, error)
}

// AlertDetector matches a new report against the detection patterns, given
// the patient's recent report history.
type AlertDetector interface {
	Detect(ctx context.Context, patient *Patient, newReport *Report, history []Report) ([]AlertDraft, error)
}

// Assistant answers mention queries from the patient's recent reports.
type Assistant interface {
	Summarize(ctx context.Context, patient *Patient, reports []Report) (string, error)
	Answer(ctx context.Context, patient *Patient, question string, reports []Report) (string, error)
}
