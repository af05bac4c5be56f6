package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/user/carewatch/internal/domain"
)

// AlertRepository implements domain.AlertRepository for PostgreSQL.
// Evidence and recommendations are stored as jsonb arrays.
type AlertRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewAlertRepository creates a new PostgreSQL alert repository.
func NewAlertRepository(db *sql.DB, logger *slog.Logger) *AlertRepository {
	return &AlertRepository{db: db, logger: logger}
}

func (r *AlertRepository) Create(ctx context.Context, alert *domain.Alert) error {
	evidence, err := json.Marshal(alert.Evidence)
	if err != nil {
		return err
	}
	recommendations, err := json.Marshal(alert.Recommendations)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO alerts (id, patient_id, severity, pattern_id, pattern_name, title, message, evidence, recommendations, slack_message_ts, acknowledged, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, false, $11)`
	_, err = r.db.ExecContext(ctx, query,
		alert.ID, alert.PatientID, alert.Severity, alert.PatternID, alert.PatternName,
		alert.Title, alert.Message, evidence, recommendations, alert.SlackMessageTS, alert.CreatedAt,
	)
	return err
}

func (r *AlertRepository) Acknowledge(ctx context.Context, patientID, alertID, actor string, at time.Time) error {
	query := `
		UPDATE alerts
		SET acknowledged = true, acknowledged_by = $3, acknowledged_at = $4
		WHERE id = $2 AND patient_id = $1 AND acknowledged = false`
	res, err := r.db.ExecContext(ctx, query, patientID, alertID, actor, at)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrAlertNotFound
	}
	return nil
}

const alertColumns = `id, patient_id, severity, pattern_id, pattern_name, title, message, evidence, recommendations, slack_message_ts, acknowledged, acknowledged_by, acknowledged_at, created_at`

func (r *AlertRepository) ListOutstanding(ctx context.Context, patientID string) ([]domain.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE patient_id = $1 AND acknowledged = false ORDER BY created_at DESC`
	return r.list(ctx, query, patientID)
}

func (r *AlertRepository) ListByPatient(ctx context.Context, patientID string, limit int) ([]domain.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE patient_id = $1 ORDER BY created_at DESC LIMIT $2`
	return r.list(ctx, query, patientID, limit)
}

// LatestAlertTimestamp returns the creation time of the patient's newest
// alert, acknowledged or not. Returns nil when the patient has no alerts.
func (r *AlertRepository) LatestAlertTimestamp(ctx context.Context, patientID string) (*time.Time, error) {
	query := `SELECT MAX(created_at) FROM alerts WHERE patient_id = $1`
	var latest sql.NullTime
	if err := r.db.QueryRowContext(ctx, query, patientID).Scan(&latest); err != nil {
		return nil, err
	}
	if !latest.Valid {
		return nil, nil
	}
	return &latest.Time, nil
}

func (r *AlertRepository) list(ctx context.Context, query string, args ...any) ([]domain.Alert, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []domain.Alert
	for rows.Next() {
		var a domain.Alert
		var evidence, recommendations []byte
		var ackedBy sql.NullString
		var ackedAt sql.NullTime
		err := rows.Scan(
			&a.ID, &a.PatientID, &a.Severity, &a.PatternID, &a.PatternName,
			&a.Title, &a.Message, &evidence, &recommendations, &a.SlackMessageTS,
			&a.Acknowledged, &ackedBy, &ackedAt, &a.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(evidence, &a.Evidence); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(recommendations, &a.Recommendations); err != nil {
			return nil, err
		}
		if ackedBy.Valid {
			a.AcknowledgedBy = ackedBy.String
		}
		if ackedAt.Valid {
			t := ackedAt.Time
			a.AcknowledgedAt = &t
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}
