package postgres

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/user/carewatch/internal/domain"
)

// RiskHistoryRepository implements domain.RiskHistoryRepository for
// PostgreSQL. The table is append-only; entries are never updated or deleted.
type RiskHistoryRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewRiskHistoryRepository creates a new PostgreSQL risk history repository.
func NewRiskHistoryRepository(db *sql.DB, logger *slog.Logger) *RiskHistoryRepository {
	return &RiskHistoryRepository{db: db, logger: logger}
}

func (r *RiskHistoryRepository) Append(ctx context.Context, entry *domain.RiskHistoryEntry) error {
	query := `
		INSERT INTO risk_history (id, patient_id, previous_level, new_level, source, reason, trigger, snapshot_high, snapshot_medium, snapshot_low, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.PatientID, entry.PreviousLevel, entry.NewLevel,
		entry.Source, entry.Reason, entry.Trigger,
		entry.AlertSnapshot.High, entry.AlertSnapshot.Medium, entry.AlertSnapshot.Low,
		entry.CreatedBy, entry.CreatedAt,
	)
	return err
}

func (r *RiskHistoryRepository) ListByPatient(ctx context.Context, patientID string, limit int) ([]domain.RiskHistoryEntry, error) {
	query := `
		SELECT id, patient_id, previous_level, new_level, source, reason, trigger, snapshot_high, snapshot_medium, snapshot_low, created_by, created_at
		FROM risk_history
		WHERE patient_id = $1
		ORDER BY created_at DESC
		LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, patientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.RiskHistoryEntry
	for rows.Next() {
		var e domain.RiskHistoryEntry
		err := rows.Scan(
			&e.ID, &e.PatientID, &e.PreviousLevel, &e.NewLevel,
			&e.Source, &e.Reason, &e.Trigger,
			&e.AlertSnapshot.High, &e.AlertSnapshot.Medium, &e.AlertSnapshot.Low,
			&e.CreatedBy, &e.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
