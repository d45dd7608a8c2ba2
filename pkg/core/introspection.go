package core

import (
	"github.com/aretw0/introspection"
)

// ServiceState exposes internal state for observability.
type ServiceState struct {
	StoreType      string `json:"store_type"`
	ConflictWindow string `json:"conflict_window"`
	RecentVersions int    `json:"recent_versions"`
	LockTTL        string `json:"lock_ttl"`
	Compaction     bool   `json:"compaction"`
}

// State implements introspection.Introspectable.
func (s *Service) State() any {
	storeType := "unknown"
	if comp, ok := s.store.(introspection.Component); ok {
		storeType = comp.ComponentType()
	}

	return ServiceState{
		StoreType:      storeType,
		ConflictWindow: s.conflictWindow.String(),
		RecentVersions: s.recentVersions,
		LockTTL:        s.lockTTL.String(),
		Compaction:     s.compactor != nil,
	}
}

// ComponentType implements introspection.Component.
func (s *Service) ComponentType() string {
	return "service"
}

var _ introspection.Introspectable = (*Service)(nil)
var _ introspection.Component = (*Service)(nil)
