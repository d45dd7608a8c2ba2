// Package lifecycle bridges workspace change events to lifecycle sources.
package lifecycle

import (
	"context"

	"github.com/aretw0/lifecycle"

	"github.com/aretw0/tandem/pkg/core"
)

type workspaceSource struct {
	events <-chan core.Event
	types  map[core.ContextType]bool
	out    chan lifecycle.Event
}

// NewSource creates a lifecycle.Source that forwards workspace events. When
// types is non-empty only events for those context types are forwarded;
// handoff events carry no context type and always pass.
func NewSource(events <-chan core.Event, types ...core.ContextType) lifecycle.Source {
	s := &workspaceSource{
		events: events,
		out:    make(chan lifecycle.Event),
	}
	if len(types) > 0 {
		s.types = make(map[core.ContextType]bool, len(types))
		for _, t := range types {
			s.types[t] = true
		}
	}
	return s
}

func (s *workspaceSource) Events() <-chan lifecycle.Event {
	return s.out
}

func (s *workspaceSource) accept(e core.Event) bool {
	return s.types == nil || e.ContextType == "" || s.types[e.ContextType]
}

func (s *workspaceSource) Start(ctx context.Context) error {
	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer close(s.out)
		for {
			select {
			case <-ctx.Done():
				return nil
			case e, ok := <-s.events:
				if !ok {
					return nil
				}
				if !s.accept(e) {
					continue
				}
				// core.Event satisfies lifecycle.Event through String().
				select {
				case s.out <- e:
				case <-ctx.Done():
					return nil
				}
			}
		}
	})
	return nil
}
