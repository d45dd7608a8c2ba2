package lifecycle_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/tandem/pkg/adapters/lifecycle"
	"github.com/aretw0/tandem/pkg/core"
)

func TestSourceFiltersByType(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan core.Event, 3)
	in <- core.Event{Type: core.EventModify, ContextType: core.ProgressType, Path: "progress/progress-summary.md"}
	in <- core.Event{Type: core.EventModify, ContextType: core.DecisionsType, Path: "decisions/decisions-log.md"}
	in <- core.Event{Type: core.EventCreate, Path: "handoffs/handoff-1.md"}
	close(in)

	src := lifecycle.NewSource(in, core.DecisionsType)
	require.NoError(t, src.Start(ctx))

	var got []string
	timeout := time.After(2 * time.Second)
	for {
		select {
		case e, ok := <-src.Events():
			if !ok {
				assert.Equal(t, []string{"MODIFY decisions/decisions-log.md", "CREATE handoffs/handoff-1.md"}, got)
				return
			}
			got = append(got, e.String())
		case <-timeout:
			t.Fatal("source did not close")
		}
	}
}

func TestSourceStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := lifecycle.NewSource(make(chan core.Event))
	require.NoError(t, src.Start(ctx))
	cancel()

	select {
	case _, ok := <-src.Events():
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("source did not close after cancel")
	}
}
