package handoff

import (
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/tandem/pkg/core"
)

// References lists the workspace documents every handoff points at.
var References = []string{
	"context/shared-context.md",
	"decisions/decisions-log.md",
	"progress/progress-summary.md",
	"quality/quality-metrics.md",
}

const (
	recentCompleted = 5
	requirementMax  = 5
)

// view is everything a handoff document renders.
type view struct {
	ID          string
	Source      string
	Target      string
	Role        Role
	Created     time.Time
	Notes       string
	Profile     Profile
	Shared      *core.SharedContext
	Progress    *core.ProgressSummary
	Quality     *core.Assessment
	Decisions   []core.Decision
	Relevant    []string
	NextActions []string
	Blockers    []string
}

func render(v view) string {
	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}
	bullets := func(items []string, empty string) {
		if len(items) == 0 {
			line("- %s", empty)
			return
		}
		for _, it := range items {
			line("- %s", it)
		}
	}

	line("# Handoff: %s to %s", v.Source, v.Target)
	line("")
	line("**Handoff ID:** %s", v.ID)
	line("**Source Agent:** %s", v.Source)
	line("**Target Agent:** %s", v.Target)
	line("**Target Role:** %s", v.Role)
	line("**Created:** %s", v.Created.UTC().Format(time.RFC3339))
	line("")

	line("## Context Summary")
	line("")
	line("**Current Focus:** %s", orNone(oneLine(v.Shared.CurrentFocus)))
	line("**Primary Agent:** %s", orNone(v.Shared.PrimaryAgent))
	line("**Current Story:** %s", orNone(v.Progress.CurrentStory))
	if v.Quality != nil {
		line("**Latest Quality Assessment:** %s (%s) by %s", trimFloat(v.Quality.Score), orNone(v.Quality.Grade), orNone(v.Quality.Agent))
	} else {
		line("**Latest Quality Assessment:** none")
	}
	if notes := strings.TrimSpace(v.Notes); notes != "" {
		line("")
		line("### Handoff Notes")
		line("")
		line("%s", notes)
	}
	line("")

	line("## Key Decisions")
	line("")
	if len(v.Decisions) == 0 {
		line("- No decisions relevant to %s.", v.Role)
	}
	for _, d := range v.Decisions {
		line("- **Decision %d: %s** (%s): %s", d.ID, oneLine(d.Title), orDash(d.Status), orNone(oneLine(d.Decision)))
		if r := oneLine(d.Rationale); r != "" {
			line("  - Rationale: %s", r)
		}
		if i := oneLine(d.Impact); i != "" {
			line("  - Impact: %s", i)
		}
	}
	line("")

	line("## Relevant Context")
	line("")
	bullets(v.Relevant, "Nothing in the next steps or pending tasks matched this role.")
	line("")

	line("## Progress Snapshot")
	line("")
	line("**Completed Tasks:** %d", len(v.Progress.CompletedTasks))
	line("**Pending Tasks:** %d", len(v.Progress.PendingTasks))
	line("**Quality Score:** %s", trimFloat(v.Progress.QualityScore))
	if n := len(v.Progress.CompletedTasks); n > 0 {
		line("")
		line("Recently completed:")
		line("")
		bullets(tailN(v.Progress.CompletedTasks, recentCompleted), "")
	}
	line("")

	line("## Next Actions")
	line("")
	for _, a := range v.NextActions {
		line("- [ ] %s", a)
	}
	line("")

	line("## Blockers")
	line("")
	bullets(v.Blockers, "None recorded.")
	line("")

	line("## Role Requirements")
	line("")
	for _, req := range v.Profile.Required {
		line("### %s", titleCase(req))
		line("")
		bullets(requirementItems(req, v), fmt.Sprintf("To be confirmed by %s with %s before work starts.", v.Target, v.Source))
		line("")
	}

	line("## References")
	line("")
	bullets(References, "")
	line("")

	line("## Completeness Checklist")
	line("")
	line("- [x] Context summary")
	line("- [x] Decisions reviewed")
	line("- [x] Next actions listed")
	line("- [x] References attached")
	line("- [x] Role sections: %s", strings.Join(v.Profile.Required, ", "))

	return b.String()
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "none"
	}
	return s
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func trimFloat(f float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", f), "0"), ".")
}

func tailN(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[len(items)-n:]
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// requirementItems returns the filtered decisions and relevant items that
// mention a word of the requirement label.
func requirementItems(req string, v view) []string {
	var stems []string
	for _, w := range strings.Fields(strings.ToLower(req)) {
		if w = stem(w); len(w) >= 4 {
			stems = append(stems, w)
		}
	}
	mentions := func(text string) bool {
		l := strings.ToLower(text)
		for _, s := range stems {
			if strings.Contains(l, s) {
				return true
			}
		}
		return false
	}

	var out []string
	for _, d := range v.Decisions {
		if len(out) < requirementMax && mentions(d.Text()) {
			out = append(out, fmt.Sprintf("Decision %d: %s", d.ID, oneLine(d.Title)))
		}
	}
	for _, it := range v.Relevant {
		if len(out) < requirementMax && mentions(it) {
			out = append(out, it)
		}
	}
	return out
}

func stem(w string) string {
	for _, suffix := range []string{"ments", "ment", "ing", "s"} {
		if t := strings.TrimSuffix(w, suffix); t != w && len(t) >= 4 {
			return t
		}
	}
	return w
}
