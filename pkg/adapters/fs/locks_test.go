package fs_test

import (
	"context"
	"encoding/json"
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

func TestLocks_AcquireConflictRelease(t *testing.T) {
	cfg, _ := setupWorkspace(t)
	locks := fs.NewLocks(cfg)
	ctx := context.Background()

	first, err := locks.Acquire(ctx, core.SharedContextType, "s1", time.Minute)
	require.NoError(t, err)
	assert.True(t, first.Acquired)
	assert.True(t, first.Lock.Expires.After(first.Lock.Timestamp))

	second, err := locks.Acquire(ctx, core.SharedContextType, "s2", time.Minute)
	require.NoError(t, err)
	assert.False(t, second.Acquired)
	assert.Equal(t, "s1", second.LockedBy)
	assert.Equal(t, first.ExpiresAt, second.ExpiresAt)

	released, err := locks.Release(ctx, core.SharedContextType, "s1")
	require.NoError(t, err)
	assert.True(t, released)

	third, err := locks.Acquire(ctx, core.SharedContextType, "s2", time.Minute)
	require.NoError(t, err)
	assert.True(t, third.Acquired)
}

func TestLocks_FileFormat(t *testing.T) {
	cfg, _ := setupWorkspace(t)
	locks := fs.NewLocks(cfg)

	_, err := locks.Acquire(context.Background(), core.DecisionsType, "s1", 30*time.Second)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(cfg.Root, "locks", "decisions.lock"))
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "s1", raw["sessionId"])
	assert.Equal(t, float64(stamp.UnixMilli()), raw["timestamp"])
	assert.Equal(t, float64(stamp.Add(30*time.Second).UnixMilli()), raw["expires"])
}

func TestLocks_RefreshKeepsTimestamp(t *testing.T) {
	cfg, clock := setupWorkspace(t)
	locks := fs.NewLocks(cfg)
	ctx := context.Background()

	first, err := locks.Acquire(ctx, core.ProgressType, "s1", time.Minute)
	require.NoError(t, err)

	clock.Advance(30 * time.Second)
	refreshed, err := locks.Acquire(ctx, core.ProgressType, "s1", time.Minute)
	require.NoError(t, err)
	assert.True(t, refreshed.Acquired)
	assert.Equal(t, first.Lock.Timestamp, refreshed.Lock.Timestamp)
	assert.Equal(t, clock.Now().Add(time.Minute), refreshed.ExpiresAt)
}

func TestLocks_ExpiredLockIsTakenOver(t *testing.T) {
	cfg, clock := setupWorkspace(t)
	locks := fs.NewLocks(cfg)
	ctx := context.Background()

	_, err := locks.Acquire(ctx, core.QualityType, "s1", time.Second)
	require.NoError(t, err)

	clock.Advance(2 * time.Second)
	res, err := locks.Acquire(ctx, core.QualityType, "s2", time.Second)
	require.NoError(t, err)
	assert.True(t, res.Acquired)
	assert.Equal(t, clock.Now(), res.Lock.Timestamp)
}

func TestLocks_DefaultTTL(t *testing.T) {
	cfg, _ := setupWorkspace(t)
	locks := fs.NewLocks(cfg)

	res, err := locks.Acquire(context.Background(), core.QualityType, "s1", 0)
	require.NoError(t, err)
	assert.Equal(t, core.DefaultLockTTL, res.Lock.Expires.Sub(res.Lock.Timestamp))
}

func TestLocks_SubMillisecondTTL(t *testing.T) {
	cfg, clock := setupWorkspace(t)
	locks := fs.NewLocks(cfg)
	clock.Advance(300 * time.Microsecond)

	res, err := locks.Acquire(context.Background(), core.ProgressType, "s1", 500*time.Microsecond)
	require.NoError(t, err)
	require.True(t, res.Acquired)
	assert.True(t, res.Lock.Expires.After(res.Lock.Timestamp))
	assert.True(t, res.Lock.Live(clock.Now()))

	other, err := locks.Acquire(context.Background(), core.ProgressType, "s2", time.Minute)
	require.NoError(t, err)
	assert.False(t, other.Acquired)
}

func TestLocks_ReleaseByNonOwner(t *testing.T) {
	cfg, _ := setupWorkspace(t)
	locks := fs.NewLocks(cfg)
	ctx := context.Background()

	_, err := locks.Acquire(ctx, core.SharedContextType, "s1", time.Minute)
	require.NoError(t, err)
	path := filepath.Join(cfg.Root, "locks", "shared-context.lock")
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	released, err := locks.Release(ctx, core.SharedContextType, "s2")
	require.NoError(t, err)
	assert.False(t, released)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	released, err = locks.Release(ctx, core.DecisionsType, "s1")
	require.NoError(t, err)
	assert.False(t, released, "nothing to release")
}

func TestLocks_CleanupExpired(t *testing.T) {
	cfg, clock := setupWorkspace(t)
	locks := fs.NewLocks(cfg)
	ctx := context.Background()

	_, err := locks.Acquire(ctx, core.SharedContextType, "s1", time.Second)
	require.NoError(t, err)
	_, err = locks.Acquire(ctx, core.DecisionsType, "s1", time.Second)
	require.NoError(t, err)
	_, err = locks.Acquire(ctx, core.ProgressType, "s2", time.Hour)
	require.NoError(t, err)

	clock.Advance(5 * time.Second)
	removed, err := locks.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	held, err := locks.Held(ctx)
	require.NoError(t, err)
	require.Len(t, held, 1)
	assert.Equal(t, core.ProgressType, held[0].ContextType)
	assert.Equal(t, "s2", held[0].SessionID)
}

func TestLocks_CorruptFileIsTreatedAsFree(t *testing.T) {
	cfg, _ := setupWorkspace(t)
	locks := fs.NewLocks(cfg)
	dir := filepath.Join(cfg.Root, "locks")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "progress.lock"), []byte("{not json"), 0644))

	res, err := locks.Acquire(context.Background(), core.ProgressType, "s1", time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Acquired)
}

func TestLocks_ConcurrentAcquireSingleWinner(t *testing.T) {
	cfg, _ := setupWorkspace(t)
	ctx := context.Background()

	const contenders = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []string
	)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Separate managers share nothing but the directory, like separate processes.
			locks := fs.NewLocks(cfg)
			session := "s" + string(rune('a'+i))
			res, err := locks.Acquire(ctx, core.SharedContextType, session, time.Minute)
			if !assert.NoError(t, err) {
				return
			}
			if res.Acquired {
				mu.Lock()
				winners = append(winners, session)
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.Len(t, winners, 1)
}
