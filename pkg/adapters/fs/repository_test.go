package fs_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/tandem/pkg/adapters/fs"
	"github.com/aretw0/tandem/pkg/core"
)

// fakeClock is a settable clock safe for concurrent use.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{now: stamp} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// setupWorkspace returns a config rooted in a fresh temp dir.
func setupWorkspace(t *testing.T, opts ...func(*fs.Config)) (fs.Config, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	cfg := fs.Config{
		Root:  filepath.Join(t.TempDir(), "workspace"),
		Clock: clock.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg, clock
}

func TestRepository_Initialize(t *testing.T) {
	cfg, _ := setupWorkspace(t)
	repo := fs.NewRepository(cfg, nil)

	require.NoError(t, repo.Initialize(context.Background()))
	for _, d := range []string{"context", "decisions", "progress", "quality", "versions", "locks", "handoffs", "archive"} {
		info, err := os.Stat(filepath.Join(cfg.Root, d))
		require.NoError(t, err, d)
		assert.True(t, info.IsDir(), d)
	}
}

func TestRepository_LoadDefaults(t *testing.T) {
	cfg, _ := setupWorkspace(t)
	repo := fs.NewRepository(cfg, nil)
	ctx := context.Background()

	t.Run("Missing File", func(t *testing.T) {
		rec := repo.Load(ctx, core.SharedContextType)
		assert.Equal(t, &core.SharedContext{}, rec)
	})

	t.Run("Unparsable File", func(t *testing.T) {
		path := filepath.Join(cfg.Root, "progress", "progress-summary.md")
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte("garbage without structure"), 0644))

		rec := repo.Load(ctx, core.ProgressType)
		assert.Equal(t, &core.ProgressSummary{}, rec)
	})
}

func TestRepository_SaveAndRead(t *testing.T) {
	cfg, clock := setupWorkspace(t)
	repo := fs.NewRepository(cfg, nil)
	ctx := context.Background()

	prev, err := repo.Save(ctx, &core.SharedContext{CurrentFocus: "Implement login"})
	require.NoError(t, err)
	assert.Zero(t, prev)

	first, err := repo.Read(ctx, core.SharedContextType)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(cfg.Root, "context", "shared-context.md"))

	clock.Advance(time.Minute)
	prev, err = repo.Save(ctx, &core.SharedContext{CurrentFocus: "Implement logout"})
	require.NoError(t, err)
	assert.Equal(t, int64(len(first)), prev)

	rec := repo.Load(ctx, core.SharedContextType).(*core.SharedContext)
	assert.Equal(t, "Implement logout", rec.CurrentFocus)
	assert.Equal(t, clock.Now(), rec.LastUpdated)

	entries, err := os.ReadDir(filepath.Join(cfg.Root, "context"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestRepository_ReadMissing(t *testing.T) {
	cfg, _ := setupWorkspace(t)
	repo := fs.NewRepository(cfg, nil)

	content, err := repo.Read(context.Background(), core.DecisionsType)
	require.NoError(t, err)
	assert.Empty(t, content)
}

func TestRepository_UnknownType(t *testing.T) {
	cfg, _ := setupWorkspace(t)
	repo := fs.NewRepository(cfg, nil)

	_, err := repo.WriteRaw(context.Background(), "retro", "x")
	require.ErrorIs(t, err, core.ErrUnknownType)
}

func TestRepository_WriteFailureSurfaces(t *testing.T) {
	cfg, _ := setupWorkspace(t)
	// A file where the document directory should be makes every write fail.
	require.NoError(t, os.MkdirAll(cfg.Root, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Root, "quality"), []byte("x"), 0644))
	repo := fs.NewRepository(cfg, nil)

	_, err := repo.Save(context.Background(), &core.QualityMetrics{})
	require.ErrorIs(t, err, core.ErrIO)

	var pathErr *core.PathError
	require.ErrorAs(t, err, &pathErr)
	assert.Equal(t, core.QualityType, pathErr.ContextType)
}

func TestRepository_State(t *testing.T) {
	cfg, _ := setupWorkspace(t, func(c *fs.Config) { c.MaxVersions = 7 })
	repo := fs.NewRepository(cfg, nil)

	state, ok := repo.State().(fs.RepositoryState)
	require.True(t, ok)
	assert.Equal(t, cfg.Root, state.Path)
	assert.Equal(t, 7, state.MaxVersions)
	assert.Equal(t, fs.DefaultSharedContextThreshold, state.Thresholds[core.SharedContextType])
	assert.False(t, state.WatcherActive)
	assert.Equal(t, "repository", repo.ComponentType())
}
