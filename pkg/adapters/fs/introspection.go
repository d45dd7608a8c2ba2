package fs

import (
	"github.com/aretw0/introspection"

	"github.com/aretw0/tandem/pkg/core"
)

// RepositoryState exposes internal state for observability.
type RepositoryState struct {
	Path          string                      `json:"path"`
	MaxVersions   int                         `json:"max_versions"`
	Thresholds    map[core.ContextType]int64  `json:"thresholds"`
	WatcherActive bool                        `json:"watcher_active"`
	LastCompacted map[core.ContextType]string `json:"last_compacted,omitempty"`
}

// State implements introspection.Introspectable.
func (r *Repository) State() any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	compacted := make(map[core.ContextType]string, len(r.lastCompacted))
	for t, p := range r.lastCompacted {
		compacted[t] = p
	}
	thresholds := make(map[core.ContextType]int64, len(r.config.Thresholds))
	for t, v := range r.config.Thresholds {
		thresholds[t] = v
	}

	return RepositoryState{
		Path:          r.Path,
		MaxVersions:   r.config.MaxVersions,
		Thresholds:    thresholds,
		WatcherActive: r.watcherActive,
		LastCompacted: compacted,
	}
}

// ComponentType implements introspection.Component.
func (r *Repository) ComponentType() string {
	return "repository"
}

var _ introspection.Introspectable = (*Repository)(nil)
var _ introspection.Component = (*Repository)(nil)

func (r *Repository) setWatcherActive(active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.watcherActive = active
}
