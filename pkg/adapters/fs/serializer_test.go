package fs_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/tandem/pkg/adapters/fs"
	"github.com/aretw0/tandem/pkg/core"
)

var stamp = time.Date(2026, 3, 14, 9, 26, 53, 589_000_000, time.UTC)

func TestMarkdownCodec_RoundTrip(t *testing.T) {
	codec := fs.NewMarkdownCodec()

	tests := []struct {
		name   string
		record core.Record
	}{
		{
			name: "shared context",
			record: &core.SharedContext{
				LastUpdated:    stamp,
				ActiveSessions: []string{"s1", "s2"},
				PrimaryAgent:   "dev",
				CurrentFocus:   "Implement login\nwith refresh tokens",
				KeyDecisions:   []string{"Use JWT", "Postgres for sessions"},
				NextSteps:      []string{"Write tests", "Wire middleware"},
				SessionNotes:   "s1 started the auth story.",
			},
		},
		{
			name: "decision log",
			record: &core.DecisionLog{
				LastUpdated: stamp,
				Decisions: []core.Decision{
					{ID: 1, Title: "Use JWT", Date: stamp, Agent: "architect", Context: "auth", Decision: "JWT access tokens", Rationale: "technical fit", Alternatives: "sessions", Impact: "api", Status: "accepted"},
					{ID: 2, Title: "Rate limit", Date: stamp.Add(time.Hour), Agent: "dev", Decision: "token bucket", Status: "pending"},
				},
			},
		},
		{
			name: "progress summary",
			record: &core.ProgressSummary{
				LastUpdated:    stamp,
				CurrentStory:   "AUTH-1 login",
				QualityScore:   87.5,
				CompletedTasks: []string{"schema"},
				PendingTasks:   []string{"ui", "tests"},
				Blockers:       []string{"waiting on keys"},
			},
		},
		{
			name: "quality metrics",
			record: &core.QualityMetrics{
				LastUpdated: stamp,
				Assessments: []core.Assessment{
					{Timestamp: stamp, Agent: "qa", Score: 91, Grade: "A", Notes: "solid"},
				},
				Archive: "archive/archived-1-quality-metrics.md",
			},
		},
		{
			name: "markdown blocks in free text",
			record: &core.SharedContext{
				LastUpdated:  stamp,
				CurrentFocus: "<!-- draft\nship the API",
				NextSteps:    []string{"Review"},
				SessionNotes: "notes\n## Next Steps\n- injected\n```go\nfmt.Println()\n  ~~~\n\\## literal backslash",
			},
		},
		{
			name: "decision titles ending in a hash",
			record: &core.DecisionLog{
				LastUpdated: stamp,
				Decisions: []core.Decision{
					{ID: 1, Title: "Pick option #"},
					{ID: 2, Title: "Use C#"},
					{ID: 3, Title: "Rank ##"},
				},
			},
		},
		{
			name: "undated assessment",
			record: &core.QualityMetrics{
				LastUpdated: stamp,
				Assessments: []core.Assessment{{Agent: "qa", Score: 70, Grade: "C"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := codec.Format(tt.record)
			require.NoError(t, err)

			got, err := codec.Parse(tt.record.Type(), data)
			require.NoError(t, err)
			assert.Equal(t, tt.record, got)

			again, err := codec.Format(got)
			require.NoError(t, err)
			assert.Equal(t, string(data), string(again))
		})
	}
}

func TestMarkdownCodec_CanonicalLayout(t *testing.T) {
	codec := fs.NewMarkdownCodec()
	data, err := codec.Format(&core.SharedContext{
		LastUpdated:  stamp,
		PrimaryAgent: "dev",
		CurrentFocus: "Implement login",
		NextSteps:    []string{"Write tests"},
	})
	require.NoError(t, err)

	out := string(data)
	assert.Contains(t, out, "# Shared Context\n")
	assert.Contains(t, out, "**Last Updated:** 2026-03-14T09:26:53.589Z\n")
	assert.Contains(t, out, "**Primary Agent:** dev\n")
	assert.Contains(t, out, "## Current Focus\n\nImplement login\n")
	assert.Contains(t, out, "## Next Steps\n\n- Write tests\n")
}

func TestMarkdownCodec_MissingSectionDegrades(t *testing.T) {
	codec := fs.NewMarkdownCodec()
	src := "# Shared Context\n\n**Primary Agent:** qa\n\n## Next Steps\n\n- ship it\n"

	rec, err := codec.Parse(core.SharedContextType, []byte(src))
	require.NoError(t, err)

	sc := rec.(*core.SharedContext)
	assert.Equal(t, "qa", sc.PrimaryAgent)
	assert.Empty(t, sc.CurrentFocus)
	assert.True(t, sc.LastUpdated.IsZero())
	assert.Equal(t, []string{"ship it"}, sc.NextSteps)
}

func TestMarkdownCodec_HeadingInsideCodeBlock(t *testing.T) {
	codec := fs.NewMarkdownCodec()
	src := "# Shared Context\n\n## Session Notes\n\n```\n## Next Steps\n- not a step\n```\n"

	rec, err := codec.Parse(core.SharedContextType, []byte(src))
	require.NoError(t, err)

	sc := rec.(*core.SharedContext)
	assert.Empty(t, sc.NextSteps)
	assert.Contains(t, sc.SessionNotes, "## Next Steps")
}

func TestMarkdownCodec_Unrecognised(t *testing.T) {
	codec := fs.NewMarkdownCodec()

	_, err := codec.Parse(core.ProgressType, []byte("just some prose\n"))
	require.ErrorIs(t, err, core.ErrParse)

	_, err = codec.Parse(core.DecisionsType, []byte("   \n"))
	require.ErrorIs(t, err, core.ErrParse)
}

func TestMarkdownCodec_UnknownTypeIsRaw(t *testing.T) {
	codec := fs.NewMarkdownCodec()
	src := "**Last Updated:** 2026-03-14T09:26:53.589Z\nfree form\n"

	rec, err := codec.Parse("retro", []byte(src))
	require.NoError(t, err)
	assert.Equal(t, core.ContextType("retro"), rec.Type())
	assert.Equal(t, stamp, rec.Updated())

	out, err := codec.Format(rec)
	require.NoError(t, err)
	assert.Equal(t, src, string(out))
}
