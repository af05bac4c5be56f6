package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/user/carewatch/internal/domain"
)

// MockPatientRepository is a mock implementation of domain.PatientRepository for testing.
type MockPatientRepository struct {
	mu              sync.Mutex
	Patients        map[string]*domain.Patient // keyed by patient ID
	ByChannel       map[string]*domain.Patient // keyed by channel ID
	Active          []domain.Patient
	RiskUpdates     []RiskUpdate
	GetErr          error
	ListErr         error
	UpdateErr       error
}

// RiskUpdate records one UpdateRiskLevel call.
type RiskUpdate struct {
	PatientID string
	Level     domain.RiskLevel
	Source    domain.RiskSource
	Reason    string
	UpdatedAt time.Time
}

func (m *MockPatientRepository) GetByID(ctx context.Context, id string) (*domain.Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	if p, ok := m.Patients[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, domain.ErrPatientNotFound
}

func (m *MockPatientRepository) GetByChannel(ctx context.Context, channelID string) (*domain.Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	if p, ok := m.ByChannel[channelID]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, domain.ErrPatientNotFound
}

func (m *MockPatientRepository) ListActive(ctx context.Context, orgID string) ([]domain.Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	return m.Active, nil
}

func (m *MockPatientRepository) UpdateRiskLevel(ctx context.Context, patientID string, level domain.RiskLevel, source domain.RiskSource, reason string, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	m.RiskUpdates = append(m.RiskUpdates, RiskUpdate{patientID, level, source, reason, updatedAt})
	if p, ok := m.Patients[patientID]; ok {
		p.RiskLevel = level
		p.RiskSource = source
		p.RiskReason = reason
		p.RiskUpdatedAt = updatedAt
	}
	return nil
}

// MockAlertRepository is a mock implementation of domain.AlertRepository for testing.
type MockAlertRepository struct {
	mu          sync.Mutex
	Created     []domain.Alert
	Acked       []string
	Outstanding []domain.Alert
	LatestAt    *time.Time
	CreateErr   error
	AckErr      error
	ListErr     error
}

func (m *MockAlertRepository) Create(ctx context.Context, alert *domain.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.Created = append(m.Created, *alert)
	return nil
}

func (m *MockAlertRepository) Acknowledge(ctx context.Context, patientID, alertID, actor string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AckErr != nil {
		return m.AckErr
	}
	m.Acked = append(m.Acked, alertID)
	return nil
}

// ListOutstanding returns the preset outstanding set plus any alerts created
// through the mock that have not been acknowledged.
func (m *MockAlertRepository) ListOutstanding(ctx context.Context, patientID string) ([]domain.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	acked := make(map[string]bool, len(m.Acked))
	for _, id := range m.Acked {
		acked[id] = true
	}
	out := append([]domain.Alert(nil), m.Outstanding...)
	for _, a := range m.Created {
		if !acked[a.ID] {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *MockAlertRepository) LatestAlertTimestamp(ctx context.Context, patientID string) (*time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	return m.LatestAt, nil
}

func (m *MockAlertRepository) ListByPatient(ctx context.Context, patientID string, limit int) ([]domain.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append(m.Outstanding[:len(m.Outstanding):len(m.Outstanding)], m.Created...), nil
}

// MockReportRepository is a mock implementation of domain.ReportRepository for testing.
type MockReportRepository struct {
	mu        sync.Mutex
	Created   []domain.Report
	Recent    []domain.Report
	CreateErr error
	ListErr   error
}

func (m *MockReportRepository) Create(ctx context.Context, report *domain.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.Created = append(m.Created, *report)
	return nil
}

func (m *MockReportRepository) ListRecent(ctx context.Context, patientID string, since time.Time, limit int) ([]domain.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	return m.Recent, nil
}

// MockRiskHistoryRepository is a mock implementation of domain.RiskHistoryRepository for testing.
type MockRiskHistoryRepository struct {
	mu        sync.Mutex
	Entries   []domain.RiskHistoryEntry
	AppendErr error
}

func (m *MockRiskHistoryRepository) Append(ctx context.Context, entry *domain.RiskHistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AppendErr != nil {
		return m.AppendErr
	}
	m.Entries = append(m.Entries, *entry)
	return nil
}

func (m *MockRiskHistoryRepository) ListByPatient(ctx context.Context, patientID string, limit int) ([]domain.RiskHistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Entries, nil
}

// MockTenantConfigRepository is a mock implementation of domain.TenantConfigRepository for testing.
type MockTenantConfigRepository struct {
	Secret  string
	Token   string
	Oncall  string
	Err     error
}

func (m *MockTenantConfigRepository) SigningSecret(ctx context.Context, orgID string) (string, error) {
	return m.Secret, m.Err
}

func (m *MockTenantConfigRepository) BotToken(ctx context.Context, orgID string) (string, error) {
	return m.Token, m.Err
}

func (m *MockTenantConfigRepository) OncallChannel(ctx context.Context, orgID string) (string, error) {
	return m.Oncall, m.Err
}
