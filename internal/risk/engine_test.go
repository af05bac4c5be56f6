package risk

import (
	"strings"
	"testing"
	"time"

	"github.com/user/carewatch/internal/domain"
)

func daysAgo(now time.Time, days int) *time.Time {
	t := now.Add(-time.Duration(days) * 24 * time.Hour)
	return &t
}

func TestEngine_Escalation(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	engine := New(DefaultPolicy())

	tests := []struct {
		name        string
		counts      domain.SeverityCounts
		current     domain.RiskLevel
		wantLevel   domain.RiskLevel
		wantChanged bool
	}{
		{"one high escalates to high", domain.SeverityCounts{High: 1}, domain.RiskLow, domain.RiskHigh, true},
		{"two medium compound to high", domain.SeverityCounts{Medium: 2}, domain.RiskLow, domain.RiskHigh, true},
		{"one medium escalates to medium", domain.SeverityCounts{Medium: 1}, domain.RiskLow, domain.RiskMedium, true},
		{"three low escalate to medium", domain.SeverityCounts{Low: 3}, domain.RiskLow, domain.RiskMedium, true},
		{"one low stays low", domain.SeverityCounts{Low: 1}, domain.RiskLow, domain.RiskLow, false},
		{"high beats medium count", domain.SeverityCounts{High: 1, Medium: 5}, domain.RiskMedium, domain.RiskHigh, true},
		{"already high is unchanged", domain.SeverityCounts{High: 2}, domain.RiskHigh, domain.RiskHigh, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := engine.Calculate(Input{
				Counts:        tt.counts,
				CurrentLevel:  tt.current,
				CurrentSource: domain.RiskSourceAuto,
				LatestAlertAt: daysAgo(now, 1),
				Now:           now,
			})
			if res.Level != tt.wantLevel {
				t.Errorf("level = %q, want %q", res.Level, tt.wantLevel)
			}
			if res.Changed != tt.wantChanged {
				t.Errorf("changed = %v, want %v", res.Changed, tt.wantChanged)
			}
			if res.Reason == "" {
				t.Error("expected a non-empty reason")
			}
		})
	}
}

func TestEngine_DeEscalation(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	engine := New(DefaultPolicy())

	t.Run("recent activity holds steady", func(t *testing.T) {
		res := engine.Calculate(Input{
			CurrentLevel:  domain.RiskHigh,
			CurrentSource: domain.RiskSourceAuto,
			LatestAlertAt: daysAgo(now, 6),
			Now:           now,
		})
		if res.Changed {
			t.Errorf("expected no change, got %q", res.Level)
		}
		if !strings.Contains(res.Reason, "holding steady") {
			t.Errorf("unexpected reason %q", res.Reason)
		}
	})

	t.Run("quiet window steps down one level", func(t *testing.T) {
		res := engine.Calculate(Input{
			CurrentLevel:  domain.RiskHigh,
			CurrentSource: domain.RiskSourceAuto,
			LatestAlertAt: daysAgo(now, 10),
			Now:           now,
		})
		if !res.Changed || res.Level != domain.RiskMedium {
			t.Errorf("got (%q, changed=%v), want (medium, true)", res.Level, res.Changed)
		}
	})

	t.Run("long quiet resets to low", func(t *testing.T) {
		res := engine.Calculate(Input{
			CurrentLevel:  domain.RiskHigh,
			CurrentSource: domain.RiskSourceAuto,
			LatestAlertAt: daysAgo(now, 20),
			Now:           now,
		})
		if !res.Changed || res.Level != domain.RiskLow {
			t.Errorf("got (%q, changed=%v), want (low, true)", res.Level, res.Changed)
		}
	})

	t.Run("manual pin is never overwritten", func(t *testing.T) {
		res := engine.Calculate(Input{
			CurrentLevel:  domain.RiskHigh,
			CurrentSource: domain.RiskSourceManual,
			LatestAlertAt: daysAgo(now, 30),
			Now:           now,
		})
		if res.Changed || res.Level != domain.RiskHigh {
			t.Errorf("got (%q, changed=%v), want (high, false)", res.Level, res.Changed)
		}
		if !strings.Contains(res.Reason, "manually pinned") {
			t.Errorf("unexpected reason %q", res.Reason)
		}
	})

	t.Run("no history defaults to low", func(t *testing.T) {
		res := engine.Calculate(Input{
			CurrentLevel:  domain.RiskMedium,
			CurrentSource: domain.RiskSourceAuto,
			LatestAlertAt: nil,
			Now:           now,
		})
		if !res.Changed || res.Level != domain.RiskLow {
			t.Errorf("got (%q, changed=%v), want (low, true)", res.Level, res.Changed)
		}
	})

	t.Run("step down floors at low", func(t *testing.T) {
		res := engine.Calculate(Input{
			CurrentLevel:  domain.RiskLow,
			CurrentSource: domain.RiskSourceAuto,
			LatestAlertAt: daysAgo(now, 10),
			Now:           now,
		})
		if res.Changed || res.Level != domain.RiskLow {
			t.Errorf("got (%q, changed=%v), want (low, false)", res.Level, res.Changed)
		}
	})

	t.Run("exact threshold boundaries", func(t *testing.T) {
		// Exactly 7 days quiet triggers the step-down window.
		res := engine.Calculate(Input{
			CurrentLevel:  domain.RiskHigh,
			CurrentSource: domain.RiskSourceAuto,
			LatestAlertAt: daysAgo(now, 7),
			Now:           now,
		})
		if res.Level != domain.RiskMedium {
			t.Errorf("at 7 days: level = %q, want medium", res.Level)
		}

		// Exactly 14 days quiet resets to low.
		res = engine.Calculate(Input{
			CurrentLevel:  domain.RiskHigh,
			CurrentSource: domain.RiskSourceAuto,
			LatestAlertAt: daysAgo(now, 14),
			Now:           now,
		})
		if res.Level != domain.RiskLow {
			t.Errorf("at 14 days: level = %q, want low", res.Level)
		}
	})
}

func TestEngine_ConfigurablePolicy(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	engine := New(PolicyFromDays(3, 5))

	res := engine.Calculate(Input{
		CurrentLevel:  domain.RiskHigh,
		CurrentSource: domain.RiskSourceAuto,
		LatestAlertAt: daysAgo(now, 4),
		Now:           now,
	})
	if res.Level != domain.RiskMedium {
		t.Errorf("with 3/5 policy at 4 days quiet: level = %q, want medium", res.Level)
	}
}

func TestEngine_Purity(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	engine := New(DefaultPolicy())

	in := Input{
		Counts:        domain.SeverityCounts{Medium: 1},
		CurrentLevel:  domain.RiskLow,
		CurrentSource: domain.RiskSourceAuto,
		LatestAlertAt: daysAgo(now, 2),
		Now:           now,
	}

	first := engine.Calculate(in)
	for i := 0; i < 10; i++ {
		if got := engine.Calculate(in); got != first {
			t.Fatalf("calculation %d differs: %+v vs %+v", i, got, first)
		}
	}
}
