package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// Defaults for the coordination heuristics.
const (
	DefaultConflictWindow = 5 * time.Minute
	DefaultRecentVersions = 5
	DefaultLockTTL        = 30 * time.Second

	// MinLockTTL is the lock file resolution; shorter positive TTLs round up.
	MinLockTTL = time.Millisecond
)

// Components are the adapters a Service coordinates.
type Components struct {
	Store     DocumentStore
	Codec     Codec
	Ledger    VersionLedger
	Locks     LockManager
	Registry  HandoffRegistry
	Compactor Compactor
}

// Service handles the coordination workflow over the shared documents.
type Service struct {
	store     DocumentStore
	codec     Codec
	ledger    VersionLedger
	locks     LockManager
	registry  HandoffRegistry
	compactor Compactor

	logger         *slog.Logger
	recorder       Recorder
	now            func() time.Time
	conflictWindow time.Duration
	recentVersions int
	lockTTL        time.Duration
}

// ServiceOption customizes a Service during construction.
type ServiceOption func(*Service)

// WithServiceLogger sets the logger used for degraded paths.
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) ServiceOption {
	return func(s *Service) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithConflictWindow sets how far back a foreign version counts as concurrent.
func WithConflictWindow(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.conflictWindow = d
		}
	}
}

// WithRecentVersions sets how many versions the conflict check inspects.
func WithRecentVersions(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.recentVersions = n
		}
	}
}

// WithLockTTL sets the lock lifetime used when callers pass none.
func WithLockTTL(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.lockTTL = d
		}
	}
}

// NewService creates a new Service.
func NewService(c Components, opts ...ServiceOption) *Service {
	s := &Service{
		store:          c.Store,
		codec:          c.Codec,
		ledger:         c.Ledger,
		locks:          c.Locks,
		registry:       c.Registry,
		compactor:      c.Compactor,
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		recorder:       NopRecorder,
		now:            time.Now,
		conflictWindow: DefaultConflictWindow,
		recentVersions: DefaultRecentVersions,
		lockTTL:        DefaultLockTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// --- Documents ---

// Load returns the record for t, falling back to its default.
func (s *Service) Load(ctx context.Context, t ContextType) Record {
	return s.store.Load(ctx, t)
}

// Read returns the raw content of t.
func (s *Service) Read(ctx context.Context, t ContextType) (string, error) {
	return s.store.Read(ctx, t)
}

// Save persists r and compacts the document when it has outgrown its threshold.
// It returns the size of the replaced file.
func (s *Service) Save(ctx context.Context, r Record) (int64, error) {
	prev, err := s.store.Save(ctx, r)
	if err != nil {
		return 0, err
	}
	s.compact(ctx, r.Type())
	return prev, nil
}

func (s *Service) compact(ctx context.Context, t ContextType) {
	if s.compactor == nil {
		return
	}
	archived, err := s.compactor.CompactIfNeeded(ctx, t)
	if err != nil {
		s.logger.Warn("compaction failed", "type", t, "error", err)
		return
	}
	if archived != "" {
		s.logger.Info("document compacted", "type", t, "archive", archived)
	}
}

// --- Versions ---

// CreateVersion snapshots content for t.
func (s *Service) CreateVersion(ctx context.Context, t ContextType, content, sessionID, agent string) (string, error) {
	id, err := s.ledger.Create(ctx, t, content, sessionID, agent)
	if err != nil {
		return "", err
	}
	s.recorder.VersionCreated(t)
	return id, nil
}

// Checkpoint snapshots the currently persisted content of t.
func (s *Service) Checkpoint(ctx context.Context, t ContextType, sessionID, agent string) (string, error) {
	content, err := s.store.Read(ctx, t)
	if err != nil {
		return "", err
	}
	return s.CreateVersion(ctx, t, content, sessionID, agent)
}

// RecentVersions lists versions of t, newest first.
func (s *Service) RecentVersions(ctx context.Context, t ContextType, limit int) ([]Version, error) {
	return s.ledger.Recent(ctx, t, limit)
}

// Rollback restores t to a previous version after backing up the current state.
func (s *Service) Rollback(ctx context.Context, t ContextType, versionID string) (Version, error) {
	return s.ledger.Rollback(ctx, t, versionID)
}

// --- Conflicts ---

// DetectConflict classifies a proposed write. Identical content never conflicts.
// Otherwise any of the most recent versions written by another session inside
// the conflict window is reported as a concurrent modification.
//
// This is a recency heuristic over wall-clock timestamps, not a causal check:
// a foreign write older than the window, or one never checkpointed, goes
// unnoticed, and clock skew between processes shifts the window.
func (s *Service) DetectConflict(ctx context.Context, t ContextType, proposed, sessionID string) (Conflict, error) {
	current, err := s.store.Read(ctx, t)
	if err != nil {
		return Conflict{}, err
	}
	if Hash(proposed) == Hash(current) {
		s.recorder.ConflictChecked(t, false)
		return Conflict{}, nil
	}

	versions, err := s.ledger.Recent(ctx, t, s.recentVersions)
	if err != nil {
		return Conflict{}, err
	}

	now := s.now()
	var concurrent []Version
	for _, v := range versions {
		if v.SessionID == sessionID {
			continue
		}
		if now.Sub(v.Timestamp) <= s.conflictWindow {
			concurrent = append(concurrent, v)
		}
	}

	if len(concurrent) == 0 {
		s.recorder.ConflictChecked(t, false)
		return Conflict{}, nil
	}

	s.recorder.ConflictChecked(t, true)
	return Conflict{
		HasConflict: true,
		Kind:        ConcurrentModification,
		Current:     current,
		Proposed:    proposed,
		Concurrent:  concurrent,
	}, nil
}

// Merge reconciles two divergent versions of t. Records that implement
// Mergeable merge field by field; anything else is last-writer-wins. The third
// argument is the common base; it is accepted for three-way callers and not
// consulted.
//
// Merge never fails: when either side cannot be parsed or formatted, b is
// returned as the most recent content.
func (s *Service) Merge(ctx context.Context, t ContextType, _, a, b string) string {
	ra, err := s.codec.Parse(t, []byte(a))
	if err != nil {
		return s.degradeMerge(t, "a", err, b)
	}
	rb, err := s.codec.Parse(t, []byte(b))
	if err != nil {
		return s.degradeMerge(t, "b", err, b)
	}

	var merged Record
	if m, ok := ra.(Mergeable); ok {
		merged, err = m.Merge(rb)
		if err != nil {
			return s.degradeMerge(t, "merge", err, b)
		}
	} else {
		merged = LastWriterWins(ra, rb)
	}

	out, err := s.codec.Format(merged)
	if err != nil {
		return s.degradeMerge(t, "format", err, b)
	}
	s.recorder.MergePerformed(t, false)
	return string(out)
}

func (s *Service) degradeMerge(t ContextType, stage string, err error, fallback string) string {
	s.logger.Warn("merge degraded to most recent content", "type", t, "stage", stage, "error", err)
	s.recorder.MergePerformed(t, true)
	return fallback
}

// Strategy decides what Update does when a conflict is detected.
type Strategy string

const (
	StrategyMerge     Strategy = "merge"
	StrategyOverwrite Strategy = "overwrite"
	StrategyReject    Strategy = "reject"
)

// UpdateRequest describes a write to a shared document.
type UpdateRequest struct {
	Type       ContextType
	Content    string
	SessionID  string
	Agent      string
	Strategy   Strategy
	Checkpoint bool
	Lock       bool
	LockTTL    time.Duration
}

// UpdateResult reports what Update did.
type UpdateResult struct {
	Written      bool
	Merged       bool
	Conflict     Conflict
	Lock         *LockResult
	VersionID    string
	PreviousSize int64
	Content      string
}

// Update runs the full write workflow: optional lock, conflict check, merge or
// reject, write, optional checkpoint. A lock held by another session is
// reported in the result with Written=false.
func (s *Service) Update(ctx context.Context, req UpdateRequest) (UpdateResult, error) {
	if req.SessionID == "" {
		return UpdateResult{}, errors.New("update requires a session id")
	}
	if !req.Type.Known() {
		return UpdateResult{}, fmt.Errorf("%w: %s", ErrUnknownType, req.Type)
	}
	if req.Strategy == "" {
		req.Strategy = StrategyMerge
	}

	var result UpdateResult
	if req.Lock {
		lr, err := s.AcquireLock(ctx, req.Type, req.SessionID, req.LockTTL)
		if err != nil {
			return result, err
		}
		result.Lock = &lr
		if !lr.Acquired {
			return result, nil
		}
		defer func() {
			if _, err := s.locks.Release(ctx, req.Type, req.SessionID); err != nil {
				s.logger.Warn("lock release failed", "type", req.Type, "error", err)
			}
		}()
	}

	conflict, err := s.DetectConflict(ctx, req.Type, req.Content, req.SessionID)
	if err != nil {
		return result, err
	}
	result.Conflict = conflict

	content := req.Content
	if conflict.HasConflict {
		switch req.Strategy {
		case StrategyReject:
			return result, nil
		case StrategyMerge:
			content = s.Merge(ctx, req.Type, "", conflict.Current, req.Content)
			result.Merged = true
		}
	}

	prev, err := s.store.WriteRaw(ctx, req.Type, content)
	if err != nil {
		return result, err
	}
	result.Written = true
	result.PreviousSize = prev
	result.Content = content
	s.compact(ctx, req.Type)

	if req.Checkpoint {
		id, err := s.CreateVersion(ctx, req.Type, content, req.SessionID, req.Agent)
		if err != nil {
			return result, err
		}
		result.VersionID = id
	}
	return result, nil
}

// --- Locks ---

// AcquireLock claims t for sessionID. A non-positive ttl uses the default.
func (s *Service) AcquireLock(ctx context.Context, t ContextType, sessionID string, ttl time.Duration) (LockResult, error) {
	if ttl <= 0 {
		ttl = s.lockTTL
	}
	if ttl < MinLockTTL {
		ttl = MinLockTTL
	}
	res, err := s.locks.Acquire(ctx, t, sessionID, ttl)
	if err != nil {
		return res, err
	}
	s.recorder.LockAttempt(t, res.Acquired)
	return res, nil
}

// ReleaseLock drops the lock on t if sessionID owns it.
func (s *Service) ReleaseLock(ctx context.Context, t ContextType, sessionID string) (bool, error) {
	return s.locks.Release(ctx, t, sessionID)
}

// CleanupExpiredLocks removes every lock past its expiry.
func (s *Service) CleanupExpiredLocks(ctx context.Context) (int, error) {
	return s.locks.CleanupExpired(ctx)
}

// --- Handoffs ---

// PendingHandoffs lists pending handoffs, optionally for one target agent.
func (s *Service) PendingHandoffs(ctx context.Context, targetAgent string) ([]RegistryEntry, error) {
	return s.registry.Pending(ctx, targetAgent)
}

// HandoffStats summarizes the registry.
func (s *Service) HandoffStats(ctx context.Context) (HandoffStats, error) {
	return s.registry.Stats(ctx)
}

// TransitionHandoff advances the registry status of a handoff.
func (s *Service) TransitionHandoff(ctx context.Context, id string, status HandoffStatus, sessionID string) (RegistryEntry, error) {
	return s.registry.Transition(ctx, id, status, sessionID)
}

// Registry exposes the handoff registry to builders.
func (s *Service) Registry() HandoffRegistry {
	return s.registry
}

// Recorder exposes the metrics recorder to builders.
func (s *Service) Recorder() Recorder {
	return s.recorder
}

// Now returns the service clock reading.
func (s *Service) Now() time.Time {
	return s.now()
}

// Watch observes changes in the workspace if supported.
func (s *Service) Watch(ctx context.Context) (<-chan Event, error) {
	w, ok := s.store.(Watchable)
	if !ok {
		return nil, errors.New("store does not support watching")
	}
	return w.Watch(ctx)
}
