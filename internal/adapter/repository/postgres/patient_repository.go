package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/user/carewatch/internal/domain"
)

// PatientRepository implements domain.PatientRepository for PostgreSQL.
type PatientRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPatientRepository creates a new PostgreSQL patient repository.
func NewPatientRepository(db *sql.DB, logger *slog.Logger) *PatientRepository {
	return &PatientRepository{db: db, logger: logger}
}

const patientColumns = `id, org_id, name, channel_id, anchor_ts, status, risk_level, risk_level_source, risk_level_reason, risk_level_updated_at`

func (r *PatientRepository) GetByID(ctx context.Context, id string) (*domain.Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *PatientRepository) GetByChannel(ctx context.Context, channelID string) (*domain.Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients WHERE channel_id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, channelID))
}

func (r *PatientRepository) ListActive(ctx context.Context, orgID string) ([]domain.Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients WHERE org_id = $1 AND status = $2 ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query, orgID, domain.PatientStatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var patients []domain.Patient
	for rows.Next() {
		var p domain.Patient
		if err := scanPatient(rows, &p); err != nil {
			return nil, err
		}
		patients = append(patients, p)
	}
	return patients, rows.Err()
}

func (r *PatientRepository) UpdateRiskLevel(ctx context.Context, patientID string, level domain.RiskLevel, source domain.RiskSource, reason string, updatedAt time.Time) error {
	query := `
		UPDATE patients
		SET risk_level = $2, risk_level_source = $3, risk_level_reason = $4, risk_level_updated_at = $5
		WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, patientID, level, source, reason, updatedAt)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrPatientNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PatientRepository) scanOne(row rowScanner) (*domain.Patient, error) {
	var p domain.Patient
	if err := scanPatient(row, &p); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPatientNotFound
		}
		return nil, err
	}
	return &p, nil
}

func scanPatient(row rowScanner, p *domain.Patient) error {
	return row.Scan(
		&p.ID, &p.OrgID, &p.Name, &p.ChannelID, &p.AnchorTS, &p.Status,
		&p.RiskLevel, &p.RiskSource, &p.RiskReason, &p.RiskUpdatedAt,
	)
}
