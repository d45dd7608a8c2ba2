package core

import (
	"context"
	"time"
)

// Codec converts between records and their canonical text.
type Codec interface {
	// Parse reads content of type t. Field-level problems degrade to defaults;
	// an error means the content is not recognisable as t at all.
	Parse(t ContextType, content []byte) (Record, error)
	// Format renders the canonical text of r.
	Format(r Record) ([]byte, error)
}

// DocumentStore persists the canonical documents.
type DocumentStore interface {
	// Load returns the record for t, or its default when absent or unparsable.
	Load(ctx context.Context, t ContextType) Record
	// Read returns the raw content of t, or "" when the file does not exist.
	Read(ctx context.Context, t ContextType) (string, error)
	// Save writes r and returns the size of the file it replaced.
	Save(ctx context.Context, r Record) (int64, error)
	// WriteRaw replaces the content of t verbatim.
	WriteRaw(ctx context.Context, t ContextType, content string) (int64, error)
}

// Compactor archives oversized documents.
type Compactor interface {
	CompactIfNeeded(ctx context.Context, t ContextType) (archived string, err error)
}

// VersionLedger keeps bounded per-type snapshot history.
type VersionLedger interface {
	Create(ctx context.Context, t ContextType, content, sessionID, agent string) (string, error)
	Recent(ctx context.Context, t ContextType, limit int) ([]Version, error)
	Rollback(ctx context.Context, t ContextType, versionID string) (Version, error)
}

// LockManager grants TTL-scoped advisory locks per document type.
type LockManager interface {
	Acquire(ctx context.Context, t ContextType, sessionID string, ttl time.Duration) (LockResult, error)
	Release(ctx context.Context, t ContextType, sessionID string) (bool, error)
	CleanupExpired(ctx context.Context) (int, error)
}

// HandoffRegistry persists handoffs and their listing projection.
type HandoffRegistry interface {
	Register(ctx context.Context, h Handoff) (Handoff, error)
	List(ctx context.Context) ([]RegistryEntry, error)
	Pending(ctx context.Context, targetAgent string) ([]RegistryEntry, error)
	Stats(ctx context.Context) (HandoffStats, error)
	Transition(ctx context.Context, id string, status HandoffStatus, sessionID string) (RegistryEntry, error)
}

// Watchable is implemented by stores that can stream workspace changes.
type Watchable interface {
	Watch(ctx context.Context) (<-chan Event, error)
}

// Recorder receives coordination measurements. Implementations must be safe
// for concurrent use.
type Recorder interface {
	VersionCreated(t ContextType)
	ConflictChecked(t ContextType, conflict bool)
	LockAttempt(t ContextType, acquired bool)
	MergePerformed(t ContextType, degraded bool)
	HandoffCreated(role, grade string)
}

type nopRecorder struct{}

func (nopRecorder) VersionCreated(ContextType)        {}
func (nopRecorder) ConflictChecked(ContextType, bool) {}
func (nopRecorder) LockAttempt(ContextType, bool)     {}
func (nopRecorder) MergePerformed(ContextType, bool)  {}
func (nopRecorder) HandoffCreated(string, string)     {}

// NopRecorder discards all measurements.
var NopRecorder Recorder = nopRecorder{}
