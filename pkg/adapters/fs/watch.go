package fs

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime/debug"
	"strings"

	"github.com/aretw0/lifecycle"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/aretw0/tandem/pkg/core"
)

var _ core.Watchable = (*Repository)(nil)

// watchDirs are the workspace directories observed by Watch.
func watchDirs() []string {
	dirs := []string{LocksDir, HandoffsDir}
	for _, t := range core.DocumentTypes {
		dirs = append(dirs, filepath.Dir(documentPaths[t]))
	}
	return dirs
}

// Watch streams changes to the canonical documents, lock files and rendered
// handoffs until ctx is done. The channel is closed when the watcher stops.
func (r *Repository) Watch(ctx context.Context) (<-chan core.Event, error) {
	if err := r.Initialize(ctx); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	for _, d := range watchDirs() {
		if err := watcher.Add(filepath.Join(r.Path, d)); err != nil {
			_ = watcher.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", d, err)
		}
	}

	events := make(chan core.Event, 64)
	r.setWatcherActive(true)

	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer close(events)
		defer r.setWatcherActive(false)
		defer watcher.Close()
		return r.watchLoop(ctx, watcher, events)
	}, lifecycle.WithErrorHandler(func(err error) {
		r.config.Logger.Error("watcher stopped", "error", err)
	}))

	return events, nil
}

func (r *Repository) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, events chan<- core.Event) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("watcher panic: %v", recovered)
			if r.config.Logger.Enabled(ctx, slog.LevelDebug) {
				r.config.Logger.Error("watcher panic", "error", err, "stack", string(debug.Stack()))
			} else {
				r.config.Logger.Error("watcher panic", "error", err)
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case fe, ok := <-watcher.Events:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher events channel closed")
			}
			e, ok := r.toEvent(fe)
			if !ok {
				continue
			}
			r.config.Logger.Debug("workspace event", "type", e.Type, "path", e.Path)
			select {
			case events <- e:
			case <-ctx.Done():
				return nil
			}

		case werr, ok := <-watcher.Errors:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher errors channel closed")
			}
			r.config.Logger.Error("fsnotify error", "error", werr)
		}
	}
}

// toEvent maps a raw notification to a workspace event. Temp files, guard
// files and the registry index are ignored.
func (r *Repository) toEvent(fe fsnotify.Event) (core.Event, bool) {
	base := filepath.Base(fe.Name)
	if strings.HasPrefix(base, TempFilePrefix) || strings.HasSuffix(base, guardExt) {
		return core.Event{}, false
	}

	var kind core.EventType
	switch {
	case fe.Has(fsnotify.Create):
		kind = core.EventCreate
	case fe.Has(fsnotify.Write):
		kind = core.EventModify
	case fe.Has(fsnotify.Remove), fe.Has(fsnotify.Rename):
		kind = core.EventDelete
	default:
		return core.Event{}, false
	}

	rel, err := filepath.Rel(r.Path, fe.Name)
	if err != nil {
		return core.Event{}, false
	}
	rel = filepath.ToSlash(rel)

	e := core.Event{Type: kind, Path: rel, Timestamp: r.config.Clock().UTC()}
	for t, p := range documentPaths {
		if rel == filepath.ToSlash(p) {
			e.ContextType = t
			return e, true
		}
	}
	if ok, _ := doublestar.Match(LocksDir+"/*"+lockExt, rel); ok {
		e.ContextType = core.ContextType(strings.TrimSuffix(base, lockExt))
		return e, true
	}
	if ok, _ := doublestar.Match(HandoffsDir+"/*.md", rel); ok && base != AuditFile {
		return e, true
	}
	return core.Event{}, false
}
