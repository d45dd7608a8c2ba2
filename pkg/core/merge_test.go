package core_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/tandem/pkg/core"
)

var t0 = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func TestSharedContext_Merge(t *testing.T) {
	a := &core.SharedContext{
		LastUpdated:    t0,
		ActiveSessions: []string{"s1", "s2"},
		PrimaryAgent:   "dev",
		CurrentFocus:   "login",
		KeyDecisions:   []string{"Use JWT"},
		NextSteps:      []string{"tests", "docs"},
		SessionNotes:   "a notes",
	}
	b := &core.SharedContext{
		LastUpdated:    t0.Add(time.Minute),
		ActiveSessions: []string{"s2", "s3"},
		PrimaryAgent:   "qa",
		CurrentFocus:   "testing login",
		KeyDecisions:   []string{"Use JWT", "Cypress"},
		NextSteps:      []string{"docs", "release"},
		SessionNotes:   "b notes",
	}

	merged, err := a.Merge(b)
	require.NoError(t, err)
	assert.Equal(t, &core.SharedContext{
		LastUpdated:    t0.Add(time.Minute),
		ActiveSessions: []string{"s1", "s2", "s3"},
		PrimaryAgent:   "qa",
		CurrentFocus:   "testing login",
		KeyDecisions:   []string{"Use JWT", "Cypress"},
		NextSteps:      []string{"tests", "docs", "release"},
		SessionNotes:   "a notes\nb notes",
	}, merged)

	// The older side keeps scalar fields only when it is strictly later.
	merged, err = b.Merge(a)
	require.NoError(t, err)
	assert.Equal(t, "qa", merged.(*core.SharedContext).PrimaryAgent)
}

func TestSharedContext_MergeIdenticalNotes(t *testing.T) {
	a := &core.SharedContext{SessionNotes: "same"}
	b := &core.SharedContext{SessionNotes: "same"}

	merged, err := a.Merge(b)
	require.NoError(t, err)
	assert.Equal(t, "same", merged.(*core.SharedContext).SessionNotes)
}

func TestDecisionLog_Merge(t *testing.T) {
	a := &core.DecisionLog{Decisions: []core.Decision{
		{ID: 1, Title: "Use JWT", Date: t0.Add(2 * time.Hour), Decision: "from a"},
		{ID: 2, Title: "Postgres", Date: t0},
	}}
	b := &core.DecisionLog{Decisions: []core.Decision{
		{ID: 1, Title: "Use JWT", Date: t0.Add(3 * time.Hour), Decision: "from b"},
		{ID: 2, Title: "Redis cache", Date: t0.Add(time.Hour)},
	}}

	merged, err := a.Merge(b)
	require.NoError(t, err)
	log := merged.(*core.DecisionLog)

	require.Len(t, log.Decisions, 3)
	titles := make(map[string]bool)
	for i, d := range log.Decisions {
		assert.Equal(t, i+1, d.ID)
		assert.False(t, titles[d.Title], "duplicate title %q", d.Title)
		titles[d.Title] = true
	}
	assert.Equal(t, []string{"Postgres", "Redis cache", "Use JWT"},
		[]string{log.Decisions[0].Title, log.Decisions[1].Title, log.Decisions[2].Title})
	assert.Equal(t, "from a", log.Decisions[2].Decision, "first occurrence wins")
}

func TestDecisionLog_MergeUntitled(t *testing.T) {
	shared := core.Decision{ID: 1, Date: t0, Agent: "dev", Decision: "Ship behind a flag"}
	a := &core.DecisionLog{Decisions: []core.Decision{
		shared,
		{ID: 2, Date: t0.Add(time.Hour), Agent: "dev", Decision: "Drop IE support"},
	}}
	b := &core.DecisionLog{Decisions: []core.Decision{
		shared,
		{ID: 2, Date: t0.Add(2 * time.Hour), Agent: "qa", Decision: "Nightly regression run"},
	}}

	merged, err := a.Merge(b)
	require.NoError(t, err)
	log := merged.(*core.DecisionLog)

	require.Len(t, log.Decisions, 3)
	assert.Equal(t, "Ship behind a flag", log.Decisions[0].Decision)
	assert.Equal(t, "Drop IE support", log.Decisions[1].Decision)
	assert.Equal(t, "Nightly regression run", log.Decisions[2].Decision)
}

func TestDecisionLog_AppendAndLast(t *testing.T) {
	log := &core.DecisionLog{}
	for _, title := range []string{"a", "b", "c"} {
		log.Append(core.Decision{Title: title})
	}
	assert.Equal(t, 3, log.Decisions[2].ID)

	last := log.Last(2)
	require.Len(t, last, 2)
	assert.Equal(t, "b", last[0].Title)
	assert.Len(t, log.Last(0), 3)
}

func TestProgressSummary_Merge(t *testing.T) {
	a := &core.ProgressSummary{
		LastUpdated:    t0.Add(time.Hour),
		CurrentStory:   "AUTH-1",
		QualityScore:   80,
		CompletedTasks: []string{"schema"},
		PendingTasks:   []string{"ui"},
	}
	b := &core.ProgressSummary{
		LastUpdated:    t0,
		CurrentStory:   "AUTH-0",
		QualityScore:   60,
		CompletedTasks: []string{"schema", "api"},
		Blockers:       []string{"keys"},
	}

	merged, err := a.Merge(b)
	require.NoError(t, err)
	p := merged.(*core.ProgressSummary)
	assert.Equal(t, "AUTH-1", p.CurrentStory)
	assert.Equal(t, 80.0, p.QualityScore)
	assert.Equal(t, []string{"schema", "api"}, p.CompletedTasks)
	assert.Equal(t, []string{"ui"}, p.PendingTasks)
	assert.Equal(t, []string{"keys"}, p.Blockers)
}

func TestMerge_TypeMismatch(t *testing.T) {
	_, err := (&core.SharedContext{}).Merge(&core.ProgressSummary{})
	assert.Error(t, err)
}

func TestLastWriterWins(t *testing.T) {
	older := &core.QualityMetrics{LastUpdated: t0}
	newer := &core.QualityMetrics{LastUpdated: t0.Add(time.Second)}

	assert.Same(t, newer, core.LastWriterWins(older, newer))
	assert.Same(t, newer, core.LastWriterWins(newer, older))

	tieA := &core.QualityMetrics{LastUpdated: t0}
	tieB := &core.QualityMetrics{LastUpdated: t0}
	assert.Same(t, tieB, core.LastWriterWins(tieA, tieB))
}

func TestFilter(t *testing.T) {
	hasTest := func(s string) bool { return len(s) >= 4 && s[:4] == "test" }

	sc := (&core.SharedContext{NextSteps: []string{"test login", "deploy"}}).Filter(hasTest)
	assert.Equal(t, []string{"test login"}, sc.(*core.SharedContext).NextSteps)

	p := (&core.ProgressSummary{PendingTasks: []string{"deploy", "tests"}}).Filter(hasTest)
	assert.Equal(t, []string{"tests"}, p.(*core.ProgressSummary).PendingTasks)

	log := (&core.DecisionLog{Decisions: []core.Decision{{Title: "test plan"}, {Title: "infra"}}}).Filter(hasTest)
	require.Len(t, log.(*core.DecisionLog).Decisions, 1)
}

func TestHandoffStatus_CanTransition(t *testing.T) {
	assert.True(t, core.HandoffPending.CanTransition(core.HandoffInProgress))
	assert.True(t, core.HandoffPending.CanTransition(core.HandoffRejected))
	assert.True(t, core.HandoffInProgress.CanTransition(core.HandoffCompleted))
	assert.False(t, core.HandoffInProgress.CanTransition(core.HandoffPending))
	assert.False(t, core.HandoffCompleted.CanTransition(core.HandoffRejected))
	assert.False(t, core.HandoffRejected.CanTransition(core.HandoffInProgress))
}

func TestHash(t *testing.T) {
	assert.Len(t, core.Hash(""), 64)
	assert.Equal(t, core.Hash("abc"), core.Hash("abc"))
	assert.NotEqual(t, core.Hash("abc"), core.Hash("acb"))
}
