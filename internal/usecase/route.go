package usecase

import "regexp"

// Capability names a downstream handler for a mention.
type Capability string

const (
	CapabilitySummary  Capability = "summary"
	CapabilitySave     Capability = "save"
	CapabilityQuestion Capability = "question"
)

// MentionRoute binds a text pattern to a capability. Routes are evaluated
// top to bottom; the first match wins.
type MentionRoute struct {
	Pattern    *regexp.Regexp
	Capability Capability
}

var botMentionPattern = regexp.MustCompile(`<@[A-Z0-9]+>`)

// StripMentions removes platform mention tokens (e.g. "<@U123ABC>") from text.
func StripMentions(text string) string {
	return botMentionPattern.ReplaceAllString(text, "")
}

// DefaultMentionRoutes returns the standard routing table. Question answering
// is the fallback and is not part of the table.
func DefaultMentionRoutes() []MentionRoute {
	return []MentionRoute{
		{regexp.MustCompile(`(?i)\b(summary|summarize|handoff|recap)\b`), CapabilitySummary},
		{regexp.MustCompile(`(?i)\b(save|record)\b`), CapabilitySave},
	}
}

// RouteMention selects the capability for a mention's text, falling back to
// question answering when no rule matches.
func RouteMention(routes []MentionRoute, text string) Capability {
	for _, route := range routes {
		if route.Pattern.MatchString(text) {
			return route.Capability
		}
	}
	return CapabilityQuestion
}
