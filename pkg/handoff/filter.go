package handoff

import (
	"fmt"
	"strings"

	"github.com/aretw0/tandem/pkg/core"
)

// Keep reports whether text is relevant to p: it mentions an include keyword
// and no exclude keyword.
func (p Profile) Keep(text string) bool {
	l := strings.ToLower(text)
	for _, kw := range p.Exclude {
		if strings.Contains(l, kw) {
			return false
		}
	}
	return p.Mentions(text)
}

// Mentions reports whether text contains any include keyword of p.
func (p Profile) Mentions(text string) bool {
	l := strings.ToLower(text)
	for _, kw := range p.Include {
		if strings.Contains(l, kw) {
			return true
		}
	}
	return false
}

// FilterDecisions keeps the decisions of log that are relevant to p.
func FilterDecisions(p Profile, log *core.DecisionLog) []core.Decision {
	return filtered[*core.DecisionLog](log, p.Keep).Decisions
}

// RelevantContent extracts the next steps and pending tasks that mention one
// of p's include keywords, tagged with where they came from.
func RelevantContent(p Profile, shared *core.SharedContext, progress *core.ProgressSummary) []string {
	var out []string
	for _, s := range filtered[*core.SharedContext](shared, p.Mentions).NextSteps {
		out = append(out, "Next Step: "+s)
	}
	for _, s := range filtered[*core.ProgressSummary](progress, p.Mentions).PendingTasks {
		out = append(out, "Pending Task: "+s)
	}
	return out
}

func filtered[T core.Filterable](r T, keep func(string) bool) T {
	return r.Filter(keep).(T)
}

// Blockers collects the progress blockers plus every decision that is still
// pending or whose impact mentions a blocker.
func Blockers(progress *core.ProgressSummary, log *core.DecisionLog) []string {
	out := append([]string(nil), progress.Blockers...)
	for _, d := range log.Decisions {
		if strings.EqualFold(strings.TrimSpace(d.Status), "pending") ||
			strings.Contains(strings.ToLower(d.Impact), "blocker") {
			out = append(out, fmt.Sprintf("Decision %d: %s (%s)", d.ID, d.Title, orDash(d.Status)))
		}
	}
	return unique(out)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
