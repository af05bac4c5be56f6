package postgres

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/user/carewatch/internal/domain"
)

// ReportRepository implements domain.ReportRepository for PostgreSQL.
// The structured bio/psycho/social document is stored as jsonb.
type ReportRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewReportRepository creates a new PostgreSQL report repository.
func NewReportRepository(db *sql.DB, logger *slog.Logger) *ReportRepository {
	return &ReportRepository{db: db, logger: logger}
}

func (r *ReportRepository) Create(ctx context.Context, report *domain.Report) error {
	query := `
		INSERT INTO reports (id, patient_id, reporter_name, reporter_role, raw_text, bps, confidence, source_ts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (patient_id, source_ts) DO NOTHING`
	_, err := r.db.ExecContext(ctx, query,
		report.ID, report.PatientID, report.ReporterName, report.ReporterRole,
		report.RawText, []byte(report.BPS), report.Confidence, report.SourceTS, report.CreatedAt,
	)
	return err
}

func (r *ReportRepository) ListRecent(ctx context.Context, patientID string, since time.Time, limit int) ([]domain.Report, error) {
	query := `
		SELECT id, patient_id, reporter_name, reporter_role, raw_text, bps, confidence, source_ts, created_at
		FROM reports
		WHERE patient_id = $1 AND created_at >= $2
		ORDER BY created_at DESC
		LIMIT $3`
	rows, err := r.db.QueryContext(ctx, query, patientID, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []domain.Report
	for rows.Next() {
		var rep domain.Report
		var bps []byte
		err := rows.Scan(
			&rep.ID, &rep.PatientID, &rep.ReporterName, &rep.ReporterRole,
			&rep.RawText, &bps, &rep.Confidence, &rep.SourceTS, &rep.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		rep.BPS = bps
		reports = append(reports, rep)
	}
	return reports, rows.Err()
}
