package mocks

import (
	"context"
	"sync"

	"github.com/user/carewatch/internal/domain"
)

// PostedMessage records one outbound message from the mock messenger.
type PostedMessage struct {
	Channel  string
	ThreadTS string
	Text     string
}

// MockMessenger is a mock implementation of domain.Messenger for testing.
type MockMessenger struct {
	mu          sync.Mutex
	Posted      []PostedMessage
	Marked      []string // "channel:ts" pairs
	Names       map[string]string
	PostErr     error
	MarkErr     error
	UserNameErr error
}

func (m *MockMessenger) PostMessage(ctx context.Context, token, channel, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PostErr != nil {
		return m.PostErr
	}
	m.Posted = append(m.Posted, PostedMessage{Channel: channel, Text: text})
	return nil
}

func (m *MockMessenger) PostThreadReply(ctx context.Context, token, channel, threadTS, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PostErr != nil {
		return m.PostErr
	}
	m.Posted = append(m.Posted, PostedMessage{Channel: channel, ThreadTS: threadTS, Text: text})
	return nil
}

func (m *MockMessenger) Mark(ctx context.Context, token, channel, ts string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.MarkErr != nil {
		return m.MarkErr
	}
	key := channel + ":" + ts
	for _, marked := range m.Marked {
		if marked == key {
			return domain.ErrAlreadyMarked
		}
	}
	m.Marked = append(m.Marked, key)
	return nil
}

func (m *MockMessenger) UserName(ctx context.Context, token, userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UserNameErr != nil {
		return "", m.UserNameErr
	}
	if name, ok := m.Names[userID]; ok {
		return name, nil
	}
	return "unknown", nil
}

// PostedCount returns the number of messages posted so far.
func (m *MockMessenger) PostedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Posted)
}

// MockStructurer is a mock implementation of domain.Structurer for testing.
type MockStructurer struct {
	mu     sync.Mutex
	Result *domain.StructuredReport
	Err    error
	Calls  int
}

func (m *MockStructurer) Structure(ctx context.Context, patient *domain.Patient, text, reporterName, reporterRole string) (*domain.StructuredReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Result, nil
}

// CallCount returns how many times Structure was invoked.
func (m *MockStructurer) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls
}

// MockAlertDetector is a mock implementation of domain.AlertDetector for testing.
type MockAlertDetector struct {
	mu     sync.Mutex
	Drafts []domain.AlertDraft
	Err    error
	Calls  int
}

func (m *MockAlertDetector) Detect(ctx context.Context, patient *domain.Patient, newReport *domain.Report, history []domain.Report) ([]domain.AlertDraft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Drafts, nil
}

// MockAssistant is a mock implementation of domain.Assistant for testing.
type MockAssistant struct {
	mu             sync.Mutex
	SummaryResult  string
	AnswerResult   string
	Err            error
	SummarizeCalls int
	AnswerCalls    int
}

func (m *MockAssistant) Summarize(ctx context.Context, patient *domain.Patient, reports []domain.Report) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SummarizeCalls++
	if m.Err != nil {
		return "", m.Err
	}
	return m.SummaryResult, nil
}

func (m *MockAssistant) Answer(ctx context.Context, patient *domain.Patient, question string, reports []domain.Report) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AnswerCalls++
	if m.Err != nil {
		return "", m.Err
	}
	return m.AnswerResult, nil
}
