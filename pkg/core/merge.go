package core

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Merge combines two views of the shared context. Sessions, decisions and next
// steps are unioned; focus and primary agent follow the later update.
func (c *SharedContext) Merge(other Record) (Record, error) {
	b, ok := other.(*SharedContext)
	if !ok {
		return nil, fmt.Errorf("cannot merge %s into %s", other.Type(), c.Type())
	}
	later := pickLater[*SharedContext](c, b)
	return &SharedContext{
		LastUpdated:    latest(c.LastUpdated, b.LastUpdated),
		ActiveSessions: union(c.ActiveSessions, b.ActiveSessions),
		PrimaryAgent:   later.PrimaryAgent,
		CurrentFocus:   later.CurrentFocus,
		KeyDecisions:   union(c.KeyDecisions, b.KeyDecisions),
		NextSteps:      union(c.NextSteps, b.NextSteps),
		SessionNotes:   joinNotes(c.SessionNotes, b.SessionNotes),
		Archive:        later.Archive,
	}, nil
}

// Filter keeps the next steps accepted by keep.
func (c *SharedContext) Filter(keep func(string) bool) Record {
	out := *c
	out.NextSteps = filterStrings(c.NextSteps, keep)
	return &out
}

// Merge unions both logs, deduplicating by title (first occurrence wins),
// orders by date and renumbers from 1. Untitled decisions are deduplicated
// on their date, agent and body instead.
func (l *DecisionLog) Merge(other Record) (Record, error) {
	b, ok := other.(*DecisionLog)
	if !ok {
		return nil, fmt.Errorf("cannot merge %s into %s", other.Type(), l.Type())
	}
	seen := make(map[string]bool)
	var merged []Decision
	for _, d := range append(append([]Decision(nil), l.Decisions...), b.Decisions...) {
		key := decisionKey(d)
		if seen[key] {
			continue
		}
		seen[key] = true
		merged = append(merged, d)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Date.Before(merged[j].Date)
	})
	for i := range merged {
		merged[i].ID = i + 1
	}
	return &DecisionLog{
		LastUpdated: latest(l.LastUpdated, b.LastUpdated),
		Decisions:   merged,
		Archive:     pickLater[*DecisionLog](l, b).Archive,
	}, nil
}

// Filter keeps the decisions whose text is accepted by keep.
func (l *DecisionLog) Filter(keep func(string) bool) Record {
	out := &DecisionLog{LastUpdated: l.LastUpdated, Archive: l.Archive}
	for _, d := range l.Decisions {
		if keep(d.Text()) {
			out.Decisions = append(out.Decisions, d)
		}
	}
	return out
}

// Merge unions the task sets; story and score follow the later update.
func (p *ProgressSummary) Merge(other Record) (Record, error) {
	b, ok := other.(*ProgressSummary)
	if !ok {
		return nil, fmt.Errorf("cannot merge %s into %s", other.Type(), p.Type())
	}
	later := pickLater[*ProgressSummary](p, b)
	return &ProgressSummary{
		LastUpdated:    latest(p.LastUpdated, b.LastUpdated),
		CurrentStory:   later.CurrentStory,
		QualityScore:   later.QualityScore,
		CompletedTasks: union(p.CompletedTasks, b.CompletedTasks),
		PendingTasks:   union(p.PendingTasks, b.PendingTasks),
		Blockers:       union(p.Blockers, b.Blockers),
		Archive:        later.Archive,
	}, nil
}

// Filter keeps the pending tasks accepted by keep.
func (p *ProgressSummary) Filter(keep func(string) bool) Record {
	out := *p
	out.PendingTasks = filterStrings(p.PendingTasks, keep)
	return &out
}

var (
	_ Mergeable  = (*SharedContext)(nil)
	_ Mergeable  = (*DecisionLog)(nil)
	_ Mergeable  = (*ProgressSummary)(nil)
	_ Filterable = (*SharedContext)(nil)
	_ Filterable = (*DecisionLog)(nil)
	_ Filterable = (*ProgressSummary)(nil)
)

// LastWriterWins returns whichever record was updated later; b wins ties.
func LastWriterWins(a, b Record) Record {
	if a.Updated().After(b.Updated()) {
		return a
	}
	return b
}

// pickLater returns b unless a was updated strictly later.
func pickLater[T Record](a, b T) T {
	if a.Updated().After(b.Updated()) {
		return a
	}
	return b
}

func latest(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

// union merges string sets preserving first-seen order.
func union(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, list := range [][]string{a, b} {
		for _, s := range list {
			s = strings.TrimSpace(s)
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func decisionKey(d Decision) string {
	if title := strings.TrimSpace(d.Title); title != "" {
		return "title\x00" + title
	}
	return strings.Join([]string{
		"body", d.Date.UTC().Format(time.RFC3339Nano), d.Agent,
		d.Context, d.Decision, d.Rationale, d.Alternatives, d.Impact,
	}, "\x00")
}

func joinNotes(a, b string) string {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	switch {
	case a == "":
		return b
	case b == "" || a == b:
		return a
	}
	return a + "\n" + b
}

func filterStrings(items []string, keep func(string) bool) []string {
	var out []string
	for _, s := range items {
		if keep(s) {
			out = append(out, s)
		}
	}
	return out
}
