package risk

import (
	"fmt"
	"time"

	"github.com/user/carewatch/internal/domain"
)

// Policy holds the de-escalation thresholds. The defaults mirror the original
// care protocol; both values are deployment configuration, not constants.
type Policy struct {
	// StepDownAfter is the quiet period after which the level steps down one
	// notch per recalculation.
	StepDownAfter time.Duration

	// ResetAfter is the quiet period after which the level drops straight to
	// low.
	ResetAfter time.Duration
}

// DefaultPolicy returns the standard 7/14 day de-escalation windows.
func DefaultPolicy() Policy {
	return Policy{
		StepDownAfter: 7 * 24 * time.Hour,
		ResetAfter:    14 * 24 * time.Hour,
	}
}

// PolicyFromDays builds a Policy from whole-day thresholds.
func PolicyFromDays(stepDownDays, resetDays int) Policy {
	return Policy{
		StepDownAfter: time.Duration(stepDownDays) * 24 * time.Hour,
		ResetAfter:    time.Duration(resetDays) * 24 * time.Hour,
	}
}

// Input carries everything Calculate needs. Now is passed explicitly so the
// engine never reads the wall clock.
type Input struct {
	Counts        domain.SeverityCounts
	CurrentLevel  domain.RiskLevel
	CurrentSource domain.RiskSource
	LatestAlertAt *time.Time // nil when no alert has ever been recorded
	Now           time.Time
}

// Result is the outcome of one calculation.
type Result struct {
	Level   domain.RiskLevel
	Reason  string
	Changed bool
}

// Engine computes a patient's risk level from outstanding alert counts and
// elapsed quiet time. It is pure: no side effects, no clock, no I/O.
type Engine struct {
	policy Policy
}

// New creates an Engine with the given de-escalation policy.
func New(policy Policy) *Engine {
	return &Engine{policy: policy}
}

// Calculate evaluates the transition rules in strict priority order; the
// first match wins. Escalation rules look only at outstanding counts;
// de-escalation applies only when nothing is outstanding.
func (e *Engine) Calculate(in Input) Result {
	if level, reason, ok := escalate(in.Counts); ok {
		return e.result(in, level, reason)
	}
	return e.deescalate(in)
}

func escalate(c domain.SeverityCounts) (domain.RiskLevel, string, bool) {
	switch {
	case c.High >= 1:
		return domain.RiskHigh, fmt.Sprintf("%d unacknowledged high-severity alerts", c.High), true
	case c.Medium >= 2:
		return domain.RiskHigh, fmt.Sprintf("%d unacknowledged medium-severity alerts", c.Medium), true
	case c.Medium == 1:
		return domain.RiskMedium, "1 unacknowledged medium-severity alert", true
	case c.Low >= 3:
		return domain.RiskMedium, fmt.Sprintf("%d unacknowledged low-severity alerts", c.Low), true
	case c.Low >= 1:
		return domain.RiskLow, fmt.Sprintf("%d unacknowledged low-severity alerts", c.Low), true
	}
	return "", "", false
}

func (e *Engine) deescalate(in Input) Result {
	if in.CurrentSource == domain.RiskSourceManual {
		return e.result(in, in.CurrentLevel, "manually pinned, no automatic change")
	}

	if in.LatestAlertAt == nil {
		return e.result(in, domain.RiskLow, "no alert history")
	}

	quiet := in.Now.Sub(*in.LatestAlertAt)
	days := int(quiet.Hours() / 24)

	switch {
	case quiet >= e.policy.ResetAfter:
		return e.result(in, domain.RiskLow, fmt.Sprintf("all alerts acknowledged, quiet for %d days", days))
	case quiet >= e.policy.StepDownAfter:
		next := stepDown(in.CurrentLevel)
		if next == in.CurrentLevel {
			return e.result(in, in.CurrentLevel, "already at lowest level, holding steady")
		}
		return e.result(in, next, fmt.Sprintf("all alerts acknowledged, quiet for %d days, stepping down one level", days))
	default:
		return e.result(in, in.CurrentLevel, fmt.Sprintf("recent alert activity within %d days, holding steady", int(e.policy.StepDownAfter.Hours()/24)))
	}
}

func (e *Engine) result(in Input, level domain.RiskLevel, reason string) Result {
	return Result{
		Level:   level,
		Reason:  reason,
		Changed: level != in.CurrentLevel,
	}
}

// stepDown moves one notch toward low, flooring at low.
func stepDown(level domain.RiskLevel) domain.RiskLevel {
	switch level {
	case domain.RiskHigh:
		return domain.RiskMedium
	case domain.RiskMedium:
		return domain.RiskLow
	default:
		return domain.RiskLow
	}
}
