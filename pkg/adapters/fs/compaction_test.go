package fs_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/tandem/pkg/adapters/fs"
	"github.com/aretw0/tandem/pkg/core"
)

func TestCompaction_SharedContext(t *testing.T) {
	cfg, _ := setupWorkspace(t, func(c *fs.Config) {
		c.Thresholds = map[core.ContextType]int64{core.SharedContextType: 8 << 10}
	})
	repo := fs.NewRepository(cfg, nil)
	ctx := context.Background()

	var notes strings.Builder
	for i := 0; i < 400; i++ {
		fmt.Fprintf(&notes, "session note %d: worked on the login flow\n", i)
	}
	var decisions []string
	for i := 0; i < 30; i++ {
		decisions = append(decisions, fmt.Sprintf("decision %d", i))
	}
	_, err := repo.Save(ctx, &core.SharedContext{
		CurrentFocus: "Implement login",
		KeyDecisions: decisions,
		SessionNotes: notes.String(),
	})
	require.NoError(t, err)

	path := filepath.Join(cfg.Root, "context", "shared-context.md")
	original, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Greater(t, len(original), 8<<10)

	archive, err := repo.CompactIfNeeded(ctx, core.SharedContextType)
	require.NoError(t, err)
	require.NotEmpty(t, archive)
	assert.True(t, strings.HasPrefix(filepath.Base(archive), "archived-"))
	assert.True(t, strings.HasSuffix(archive, "-shared-context.md"))

	archived, err := os.ReadFile(archive)
	require.NoError(t, err)
	assert.Equal(t, original, archived, "archive is byte-identical")

	compacted, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Less(t, len(compacted), len(original))

	rec, err := fs.NewMarkdownCodec().Parse(core.SharedContextType, compacted)
	require.NoError(t, err)
	sc := rec.(*core.SharedContext)
	assert.Equal(t, "Implement login", sc.CurrentFocus)
	assert.Len(t, sc.KeyDecisions, 20)
	assert.Equal(t, "decision 29", sc.KeyDecisions[19])
	assert.Contains(t, sc.SessionNotes, "session note 399")
	assert.NotContains(t, sc.SessionNotes, "session note 0:")
	assert.True(t, strings.HasPrefix(sc.Archive, "archive/archived-"))

	state := repo.State().(fs.RepositoryState)
	assert.Equal(t, archive, state.LastCompacted[core.SharedContextType])
}

func TestCompaction_BelowThreshold(t *testing.T) {
	cfg, _ := setupWorkspace(t)
	repo := fs.NewRepository(cfg, nil)
	ctx := context.Background()

	_, err := repo.Save(ctx, &core.ProgressSummary{CurrentStory: "small"})
	require.NoError(t, err)

	archive, err := repo.CompactIfNeeded(ctx, core.ProgressType)
	require.NoError(t, err)
	assert.Empty(t, archive)

	archive, err = repo.CompactIfNeeded(ctx, core.QualityType)
	require.NoError(t, err)
	assert.Empty(t, archive, "missing file is never compacted")
}

func TestCompaction_DecisionLogKeepsTail(t *testing.T) {
	cfg, _ := setupWorkspace(t)
	repo := fs.NewRepository(cfg, nil)
	ctx := context.Background()

	log := &core.DecisionLog{}
	for i := 0; i < 25; i++ {
		log.Append(core.Decision{Title: fmt.Sprintf("D%d", i), Decision: "x"})
	}
	_, err := repo.Save(ctx, log)
	require.NoError(t, err)

	_, err = repo.Compact(ctx, core.DecisionsType)
	require.NoError(t, err)

	rec := repo.Load(ctx, core.DecisionsType).(*core.DecisionLog)
	require.Len(t, rec.Decisions, 20)
	assert.Equal(t, "D5", rec.Decisions[0].Title)
	assert.Equal(t, 25, rec.Decisions[19].ID)
	assert.NotEmpty(t, rec.Archive)
}

func TestCompaction_QualityKeepsLastAssessments(t *testing.T) {
	cfg, _ := setupWorkspace(t)
	repo := fs.NewRepository(cfg, nil)
	ctx := context.Background()

	q := &core.QualityMetrics{}
	for i := 0; i < 15; i++ {
		q.Assessments = append(q.Assessments, core.Assessment{Timestamp: stamp.Add(timeMinutes(i)), Agent: "qa", Score: float64(i)})
	}
	_, err := repo.Save(ctx, q)
	require.NoError(t, err)

	_, err = repo.Compact(ctx, core.QualityType)
	require.NoError(t, err)

	rec := repo.Load(ctx, core.QualityType).(*core.QualityMetrics)
	require.Len(t, rec.Assessments, 10)
	assert.Equal(t, float64(5), rec.Assessments[0].Score)
}

func TestCompaction_FitsThreshold(t *testing.T) {
	const limit = 4 << 10
	cfg, _ := setupWorkspace(t, func(c *fs.Config) {
		c.Thresholds = map[core.ContextType]int64{
			core.SharedContextType: limit,
			core.ProgressType:      limit,
		}
	})
	repo := fs.NewRepository(cfg, nil)
	ctx := context.Background()

	var steps, pending []string
	for i := 0; i < 300; i++ {
		steps = append(steps, fmt.Sprintf("next step %d: review the checkout flow", i))
		pending = append(pending, fmt.Sprintf("pending task %d: wire the payment adapter", i))
	}
	_, err := repo.Save(ctx, &core.SharedContext{CurrentFocus: "Checkout", NextSteps: steps})
	require.NoError(t, err)
	_, err = repo.Save(ctx, &core.ProgressSummary{CurrentStory: "Checkout", PendingTasks: pending})
	require.NoError(t, err)

	for _, ct := range []core.ContextType{core.SharedContextType, core.ProgressType} {
		t.Run(string(ct), func(t *testing.T) {
			archive, err := repo.CompactIfNeeded(ctx, ct)
			require.NoError(t, err)
			require.NotEmpty(t, archive)

			again, err := repo.CompactIfNeeded(ctx, ct)
			require.NoError(t, err)
			assert.Empty(t, again, "a compacted document is not compacted again")
		})
	}

	sc := repo.Load(ctx, core.SharedContextType).(*core.SharedContext)
	require.NotEmpty(t, sc.NextSteps)
	assert.Equal(t, steps[len(steps)-1], sc.NextSteps[len(sc.NextSteps)-1])
	assert.Equal(t, "Checkout", sc.CurrentFocus)

	for _, rel := range []string{"context/shared-context.md", "progress/progress-summary.md"} {
		data, err := os.ReadFile(filepath.Join(cfg.Root, rel))
		require.NoError(t, err, rel)
		assert.LessOrEqual(t, len(data), limit, rel)
	}
}
