package structurer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/user/carewatch/internal/domain"
)

const (
	defaultBaseURL = "https://api.anthropic.com"
	apiVersion     = "2023-06-01"
	maxTokens      = 1024
)

// Client talks to the Anthropic Messages API and implements the structuring,
// alert detection, and assistant collaborators.
type Client struct {
	apiKey  string
	model   string
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates an Anthropic-backed collaborator client. baseURL is
// overridable for tests; pass "" for the production endpoint.
func NewClient(apiKey, model, baseURL string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
		http:    &http.Client{Timeout: 60 * time.Second},
		logger:  logger.With("component", "anthropic"),
	}
}

type apiRequest struct {
	Model     string       `json:"model"`
	MaxTokens int          `json:"max_tokens"`
	System    string       `json:"system,omitempty"`
	Messages  []apiMessage `json:"messages"`
}

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type apiResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Structure converts a free-text care report into a bio/psycho/social JSON
// document with a confidence score.
func (c *Client) Structure(ctx context.Context, patient *domain.Patient, text, reporterName, reporterRole string) (*domain.StructuredReport, error) {
	system := "You are a clinical documentation assistant for home care teams. " +
		"Classify the report into biological, psychological, and social observations. " +
		"Respond with JSON only: " +
		`{"bps":{"bio":{},"psycho":{},"social":{}},"confidence":0.0,"summary":""}. ` +
		"confidence is your certainty in the classification from 0 to 1; summary is one short sentence."

	user := fmt.Sprintf("Patient: %s\nReporter: %s (%s)\nReport:\n%s", patient.Name, reporterName, reporterRole, text)

	raw, err := c.complete(ctx, system, user)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		BPS        json.RawMessage `json:"bps"`
		Confidence float64         `json:"confidence"`
		Summary    string          `json:"summary"`
	}
	if err := json.Unmarshal([]byte(stripFences(raw)), &parsed); err != nil {
		return nil, fmt.Errorf("parse structuring response: %w", err)
	}

	return &domain.StructuredReport{
		BPS:        parsed.BPS,
		Confidence: parsed.Confidence,
		Summary:    parsed.Summary,
	}, nil
}

// Detect matches the new report, in the context of recent history, against
// the deterioration patterns and returns alert candidates.
func (c *Client) Detect(ctx context.Context, patient *domain.Patient, newReport *domain.Report, history []domain.Report) ([]domain.AlertDraft, error) {
	system := "You are a clinical risk screener for home care teams. " +
		"Compare the new report with the recent history and flag deterioration patterns: " +
		"appetite_decline, sleep_disruption, mobility_decline, cognitive_change, mood_decline, medication_issue, social_withdrawal. " +
		"Respond with a JSON array only. Each element: " +
		`{"pattern_id":"","pattern_name":"","severity":"high|medium|low","title":"","message":"","evidence":[],"recommendations":[]}. ` +
		"Return [] when nothing warrants attention. Flag only patterns the evidence actually supports."

	var b strings.Builder
	fmt.Fprintf(&b, "Patient: %s\n\nNew report (%s, %s):\n%s\n", patient.Name, newReport.ReporterName, newReport.ReporterRole, newReport.RawText)
	if len(history) > 0 {
		b.WriteString("\nRecent history, newest first:\n")
		for _, r := range history {
			fmt.Fprintf(&b, "- [%s] %s: %s\n", r.CreatedAt.Format("2006-01-02"), r.ReporterName, r.RawText)
		}
	}

	raw, err := c.complete(ctx, system, b.String())
	if err != nil {
		return nil, err
	}

	var candidates []struct {
		PatternID       string   `json:"pattern_id"`
		PatternName     string   `json:"pattern_name"`
		Severity        string   `json:"severity"`
		Title           string   `json:"title"`
		Message         string   `json:"message"`
		Evidence        []string `json:"evidence"`
		Recommendations []string `json:"recommendations"`
	}
	if err := json.Unmarshal([]byte(stripFences(raw)), &candidates); err != nil {
		return nil, fmt.Errorf("parse detection response: %w", err)
	}

	drafts := make([]domain.AlertDraft, 0, len(candidates))
	for _, cand := range candidates {
		drafts = append(drafts, domain.AlertDraft{
			PatternID:       cand.PatternID,
			PatternName:     cand.PatternName,
			Severity:        domain.ParseSeverity(cand.Severity),
			Title:           cand.Title,
			Message:         cand.Message,
			Evidence:        cand.Evidence,
			Recommendations: cand.Recommendations,
		})
	}
	return drafts, nil
}

// Summarize produces a handoff summary of the patient's recent reports.
func (c *Client) Summarize(ctx context.Context, patient *domain.Patient, reports []domain.Report) (string, error) {
	if len(reports) == 0 {
		return "No reports have been recorded recently.", nil
	}

	system := "You are a home care handoff assistant. Summarize the recent reports for the next caregiver in a few short bullet points. Plain text only."
	return c.complete(ctx, system, formatReports(patient, reports))
}

// Answer answers a free-form question from the patient's recent reports.
func (c *Client) Answer(ctx context.Context, patient *domain.Patient, question string, reports []domain.Report) (string, error) {
	system := "You are a home care team assistant. Answer the question using only the reports provided. " +
		"Say so plainly when the reports do not contain the answer. Plain text only."
	user := formatReports(patient, reports) + "\nQuestion: " + question
	return c.complete(ctx, system, user)
}

func formatReports(patient *domain.Patient, reports []domain.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Patient: %s\nReports, newest first:\n", patient.Name)
	for _, r := range reports {
		fmt.Fprintf(&b, "- [%s] %s (%s): %s\n", r.CreatedAt.Format("2006-01-02"), r.ReporterName, r.ReporterRole, r.RawText)
	}
	return b.String()
}

func (c *Client) complete(ctx context.Context, system, user string) (string, error) {
	payload, err := json.Marshal(apiRequest{
		Model:     c.model,
		MaxTokens: maxTokens,
		System:    system,
		Messages:  []apiMessage{{Role: "user", Content: user}},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("anthropic request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	var res apiResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return "", fmt.Errorf("parse anthropic response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if res.Error != nil {
			return "", fmt.Errorf("anthropic: %s: %s", res.Error.Type, res.Error.Message)
		}
		return "", fmt.Errorf("anthropic: status %d", resp.StatusCode)
	}

	var out strings.Builder
	for _, block := range res.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	if out.Len() == 0 {
		return "", fmt.Errorf("anthropic: empty response")
	}
	return strings.TrimSpace(out.String()), nil
}

// stripFences removes a markdown code fence wrapper if the model added one.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
