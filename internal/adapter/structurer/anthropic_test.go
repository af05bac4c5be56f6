package structurer

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/user/carewatch/internal/domain"
)

func newTestClient(t *testing.T, reply string) (*Client, *[]string) {
	t.Helper()
	var systems []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-api-key"); got != "sk-test" {
			t.Errorf("x-api-key = %q", got)
		}
		if got := r.Header.Get("anthropic-version"); got != apiVersion {
			t.Errorf("anthropic-version = %q", got)
		}
		var req apiRequest
		json.NewDecoder(r.Body).Decode(&req)
		systems = append(systems, req.System)
		json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]string{{"type": "text", "text": reply}},
		})
	}))
	t.Cleanup(server.Close)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewClient("sk-test", "claude-sonnet-4-20250514", server.URL, logger), &systems
}

func TestClient_Structure(t *testing.T) {
	reply := "```json\n" + `{"bps":{"bio":{"appetite":"reduced"},"psycho":{},"social":{}},"confidence":0.9,"summary":"Appetite reduced"}` + "\n```"
	client, _ := newTestClient(t, reply)

	got, err := client.Structure(context.Background(), &domain.Patient{Name: "Sato"}, "appetite poor", "Yamada", "nurse")
	if err != nil {
		t.Fatalf("Structure: %v", err)
	}
	if got.Confidence != 0.9 {
		t.Errorf("confidence = %v, want 0.9", got.Confidence)
	}
	if got.Summary != "Appetite reduced" {
		t.Errorf("summary = %q", got.Summary)
	}

	var bps map[string]any
	if err := json.Unmarshal(got.BPS, &bps); err != nil {
		t.Fatalf("bps not valid JSON after fence stripping: %v", err)
	}
}

func TestClient_Detect(t *testing.T) {
	reply := `[{"pattern_id":"appetite_decline","pattern_name":"Appetite decline","severity":"HIGH","title":"t","message":"m","evidence":["e"],"recommendations":["r"]}]`
	client, _ := newTestClient(t, reply)

	drafts, err := client.Detect(context.Background(), &domain.Patient{Name: "Sato"}, &domain.Report{RawText: "x"}, nil)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(drafts) != 1 {
		t.Fatalf("drafts = %d, want 1", len(drafts))
	}
	if drafts[0].Severity != domain.SeverityHigh {
		t.Errorf("severity = %s, want normalized high", drafts[0].Severity)
	}
}

func TestClient_DetectNothing(t *testing.T) {
	client, _ := newTestClient(t, "[]")

	drafts, err := client.Detect(context.Background(), &domain.Patient{}, &domain.Report{}, nil)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(drafts) != 0 {
		t.Errorf("drafts = %d, want 0", len(drafts))
	}
}

func TestClient_SummarizeEmptyHistory(t *testing.T) {
	client, systems := newTestClient(t, "should not be called")

	got, err := client.Summarize(context.Background(), &domain.Patient{}, nil)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if got == "" {
		t.Error("want a canned answer for empty history")
	}
	if len(*systems) != 0 {
		t.Error("empty history must not hit the API")
	}
}

func TestClient_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"type": "rate_limit_error", "message": "slow down"},
		})
	}))
	defer server.Close()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := NewClient("sk-test", "claude-sonnet-4-20250514", server.URL, logger)

	_, err := client.Answer(context.Background(), &domain.Patient{}, "q", []domain.Report{{RawText: "x"}})
	if err == nil {
		t.Fatal("want error on API failure")
	}
}
