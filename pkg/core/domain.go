// Package core holds the domain of tandem: the shared project-state records,
// their versions, locks and handoffs, and the coordination workflow that ties
// them together.
package core

import (
	"time"
)

// ContextType names one of the shared documents. Any other value is accepted by
// the version ledger and merged with last-writer-wins semantics.
type ContextType string

const (
	SharedContextType ContextType = "shared-context"
	DecisionsType     ContextType = "decisions"
	ProgressType      ContextType = "progress"
	QualityType       ContextType = "quality"
)

// DocumentTypes lists the canonical documents in a stable order.
var DocumentTypes = []ContextType{SharedContextType, DecisionsType, ProgressType, QualityType}

// Known reports whether t is one of the canonical documents.
func (t ContextType) Known() bool {
	for _, k := range DocumentTypes {
		if t == k {
			return true
		}
	}
	return false
}

// Record is the structured form of a shared document.
type Record interface {
	Type() ContextType
	Updated() time.Time
}

// Mergeable is implemented by records that can reconcile two divergent versions.
// The receiver is the older side ("A"), other is "B".
type Mergeable interface {
	Record
	Merge(other Record) (Record, error)
}

// Filterable is implemented by records whose free-text items can be narrowed
// to the ones relevant for a role.
type Filterable interface {
	Record
	Filter(keep func(text string) bool) Record
}

// SharedContext is the current focus and near-term plan shared by all sessions.
type SharedContext struct {
	LastUpdated    time.Time
	ActiveSessions []string
	PrimaryAgent   string
	CurrentFocus   string
	KeyDecisions   []string
	NextSteps      []string
	SessionNotes   string
	Archive        string
}

func (c *SharedContext) Type() ContextType  { return SharedContextType }
func (c *SharedContext) Updated() time.Time { return c.LastUpdated }

// Decision is one entry of the decision log. Title is the natural dedup key.
type Decision struct {
	ID           int
	Title        string
	Date         time.Time
	Agent        string
	Context      string
	Decision     string
	Rationale    string
	Alternatives string
	Impact       string
	Status       string
}

// Text is the searchable body of the decision used by role filters.
func (d Decision) Text() string {
	return d.Title + " " + d.Decision + " " + d.Rationale + " " + d.Impact
}

// DecisionLog is the append-only ledger of decisions.
type DecisionLog struct {
	LastUpdated time.Time
	Decisions   []Decision
	Archive     string
}

func (l *DecisionLog) Type() ContextType  { return DecisionsType }
func (l *DecisionLog) Updated() time.Time { return l.LastUpdated }

// Append adds a decision with the next sequence number.
func (l *DecisionLog) Append(d Decision) Decision {
	next := 1
	for _, existing := range l.Decisions {
		if existing.ID >= next {
			next = existing.ID + 1
		}
	}
	d.ID = next
	l.Decisions = append(l.Decisions, d)
	return d
}

// Last returns up to n of the most recent decisions in log order.
func (l *DecisionLog) Last(n int) []Decision {
	if n <= 0 || len(l.Decisions) <= n {
		return append([]Decision(nil), l.Decisions...)
	}
	return append([]Decision(nil), l.Decisions[len(l.Decisions)-n:]...)
}

// ProgressSummary tracks the current story and task lists.
type ProgressSummary struct {
	LastUpdated    time.Time
	CurrentStory   string
	QualityScore   float64
	CompletedTasks []string
	PendingTasks   []string
	Blockers       []string
	Archive        string
}

func (p *ProgressSummary) Type() ContextType  { return ProgressType }
func (p *ProgressSummary) Updated() time.Time { return p.LastUpdated }

// Assessment is one point of the quality timeline.
type Assessment struct {
	Timestamp time.Time
	Agent     string
	Score     float64
	Grade     string
	Notes     string
}

// QualityMetrics is the append-only timeline of assessments.
type QualityMetrics struct {
	LastUpdated time.Time
	Assessments []Assessment
	Archive     string
}

func (q *QualityMetrics) Type() ContextType  { return QualityType }
func (q *QualityMetrics) Updated() time.Time { return q.LastUpdated }

// Latest returns the most recent assessment, if any.
func (q *QualityMetrics) Latest() (Assessment, bool) {
	if len(q.Assessments) == 0 {
		return Assessment{}, false
	}
	latest := q.Assessments[0]
	for _, a := range q.Assessments[1:] {
		if a.Timestamp.After(latest.Timestamp) {
			latest = a
		}
	}
	return latest, true
}

// RawDocument carries content of a type the codec has no structure for.
type RawDocument struct {
	Kind        ContextType
	LastUpdated time.Time
	Content     string
}

func (r *RawDocument) Type() ContextType  { return r.Kind }
func (r *RawDocument) Updated() time.Time { return r.LastUpdated }

// NewRecord returns the empty default record for t.
func NewRecord(t ContextType) Record {
	switch t {
	case SharedContextType:
		return &SharedContext{}
	case DecisionsType:
		return &DecisionLog{}
	case ProgressType:
		return &ProgressSummary{}
	case QualityType:
		return &QualityMetrics{}
	default:
		return &RawDocument{Kind: t}
	}
}

// Version is an immutable snapshot of a document with provenance.
type Version struct {
	ID          string      `json:"id"`
	ContextType ContextType `json:"contextType"`
	Timestamp   time.Time   `json:"timestamp"`
	SessionID   string      `json:"sessionId"`
	Agent       string      `json:"agent"`
	Content     string      `json:"content"`
	Hash        string      `json:"hash"`
}

// Lock is a TTL-scoped advisory claim over one document type.
type Lock struct {
	ContextType ContextType
	SessionID   string
	Timestamp   time.Time
	Expires     time.Time
}

// Live reports whether the lock is still held at now.
func (l Lock) Live(now time.Time) bool {
	return now.Before(l.Expires)
}

// LockResult is the outcome of an acquire attempt. A conflict is a result,
// not an error.
type LockResult struct {
	Acquired  bool
	Lock      Lock
	LockedBy  string
	ExpiresAt time.Time
}

// ConflictKind classifies a detected conflict.
type ConflictKind string

const ConcurrentModification ConflictKind = "concurrent_modification"

// Conflict is the outcome of a conflict check.
type Conflict struct {
	HasConflict bool
	Kind        ConflictKind
	Current     string
	Proposed    string
	Concurrent  []Version
}

// HandoffStatus is the lifecycle state of a handoff in the registry.
type HandoffStatus string

const (
	HandoffPending    HandoffStatus = "pending"
	HandoffInProgress HandoffStatus = "in_progress"
	HandoffCompleted  HandoffStatus = "completed"
	HandoffRejected   HandoffStatus = "rejected"
)

// CanTransition reports whether a handoff may move from s to next.
func (s HandoffStatus) CanTransition(next HandoffStatus) bool {
	switch s {
	case HandoffPending:
		return next == HandoffInProgress || next == HandoffCompleted || next == HandoffRejected
	case HandoffInProgress:
		return next == HandoffCompleted || next == HandoffRejected
	default:
		return false
	}
}

// Handoff is a rendered, role-filtered package for a target agent.
type Handoff struct {
	ID              string
	SourceAgent     string
	TargetAgent     string
	TargetAgentType string
	Timestamp       time.Time
	Content         string
	ValidationScore int
	Grade           string
	Status          HandoffStatus
	Path            string
}

// RegistryEntry is the listing projection of a Handoff.
type RegistryEntry struct {
	HandoffID       string        `json:"handoffId"`
	SourceAgent     string        `json:"sourceAgent"`
	TargetAgent     string        `json:"targetAgent"`
	TargetAgentType string        `json:"targetAgentType,omitempty"`
	Timestamp       time.Time     `json:"timestamp"`
	ValidationScore int           `json:"validationScore"`
	Grade           string        `json:"grade"`
	Status          HandoffStatus `json:"status"`
}

// HandoffStats summarizes the registry.
type HandoffStats struct {
	Count        int
	AverageScore float64
	Grades       map[string]int
}

// EventType represents the kind of change observed in the workspace.
type EventType string

const (
	EventCreate EventType = "CREATE"
	EventModify EventType = "MODIFY"
	EventDelete EventType = "DELETE"
)

// Event is a change observed in the workspace.
type Event struct {
	Type        EventType
	ContextType ContextType
	Path        string
	Timestamp   time.Time
}

func (e Event) String() string {
	return string(e.Type) + " " + e.Path
}
