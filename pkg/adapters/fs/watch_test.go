package fs_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/tandem/pkg/adapters/fs"
	"github.com/aretw0/tandem/pkg/core"
)

func timeMinutes(n int) time.Duration { return time.Duration(n) * time.Minute }

// nextEvent waits for the first event matching want.
func nextEvent(t *testing.T, events <-chan core.Event, want func(core.Event) bool) core.Event {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case e, ok := <-events:
			require.True(t, ok, "event channel closed")
			if want(e) {
				return e
			}
		case <-timeout:
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestWatch_DocumentsAndLocks(t *testing.T) {
	cfg, _ := setupWorkspace(t)
	repo := fs.NewRepository(cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := repo.Watch(ctx)
	require.NoError(t, err)

	_, err = repo.Save(ctx, &core.SharedContext{CurrentFocus: "watch me"})
	require.NoError(t, err)
	e := nextEvent(t, events, func(e core.Event) bool { return e.ContextType == core.SharedContextType })
	assert.Equal(t, "context/shared-context.md", e.Path)

	_, err = fs.NewLocks(cfg).Acquire(ctx, core.DecisionsType, "s1", time.Minute)
	require.NoError(t, err)
	e = nextEvent(t, events, func(e core.Event) bool { return e.Path == "locks/decisions.lock" })
	assert.Equal(t, core.DecisionsType, e.ContextType)

	cancel()
	for range events {
	}
	assert.False(t, repo.State().(fs.RepositoryState).WatcherActive)
}
