package fs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"

	"github.com/aretw0/tandem/pkg/core"
)

// MaxRegistryEntries bounds the registry projection. Rendered handoff files
// are never pruned.
const MaxRegistryEntries = 100

const auditHeader = "# Handoff Audit Trail\n\n"

// Registry implements core.HandoffRegistry: rendered handoffs under
// <root>/handoffs, a bounded JSON index and a markdown audit trail.
type Registry struct {
	dir    string
	config Config
}

// NewRegistry creates a handoff registry under <root>/handoffs.
func NewRegistry(config Config) *Registry {
	config = config.withDefaults()
	return &Registry{
		dir:    filepath.Join(config.Root, HandoffsDir),
		config: config,
	}
}

var _ core.HandoffRegistry = (*Registry)(nil)

func (g *Registry) registryPath() string { return filepath.Join(g.dir, RegistryFile) }
func (g *Registry) auditPath() string    { return filepath.Join(g.dir, AuditFile) }

func validHandoffID(id string) error {
	if id == "" || id != filepath.Base(id) || strings.HasPrefix(id, ".") {
		return fmt.Errorf("invalid handoff id %q", id)
	}
	return nil
}

// Register writes the rendered handoff, appends its registry entry and logs
// an audit block. The handoff file is created once and never rewritten.
func (g *Registry) Register(ctx context.Context, h core.Handoff) (core.Handoff, error) {
	if err := validHandoffID(h.ID); err != nil {
		return h, err
	}
	if h.Status == "" {
		h.Status = core.HandoffPending
	}
	if h.Timestamp.IsZero() {
		h.Timestamp = g.config.Clock()
	}
	h.Timestamp = h.Timestamp.UTC()

	if err := os.MkdirAll(g.dir, 0755); err != nil {
		return h, core.IOError("", g.dir, err)
	}
	path := filepath.Join(g.dir, h.ID+".md")
	if _, err := os.Stat(path); err == nil {
		return h, core.IOError("", path, fmt.Errorf("handoff already exists"))
	}
	if err := writeFileAtomic(path, []byte(h.Content), 0644); err != nil {
		return h, core.IOError("", path, err)
	}
	h.Path = path

	release, err := acquireGuard(ctx, g.registryPath()+guardExt, g.config.GuardStaleAfter)
	if err != nil {
		return h, core.IOError("", g.registryPath(), err)
	}
	defer release()

	entries, err := g.read()
	if err != nil {
		return h, err
	}
	entries = append(entries, core.RegistryEntry{
		HandoffID:       h.ID,
		SourceAgent:     h.SourceAgent,
		TargetAgent:     h.TargetAgent,
		TargetAgentType: h.TargetAgentType,
		Timestamp:       h.Timestamp,
		ValidationScore: h.ValidationScore,
		Grade:           h.Grade,
		Status:          h.Status,
	})
	if len(entries) > MaxRegistryEntries {
		entries = entries[len(entries)-MaxRegistryEntries:]
	}
	if err := g.write(entries); err != nil {
		return h, err
	}

	rel, _ := filepath.Rel(g.config.Root, path)
	block := fmt.Sprintf("## Handoff Created: %s\n\n"+
		"- **Timestamp:** %s\n"+
		"- **Source Agent:** %s\n"+
		"- **Target Agent:** %s\n"+
		"- **Target Type:** %s\n"+
		"- **Validation Score:** %d (%s)\n"+
		"- **Status:** %s\n"+
		"- **File:** %s\n\n",
		h.ID, formatTime(h.Timestamp), h.SourceAgent, h.TargetAgent, h.TargetAgentType,
		h.ValidationScore, h.Grade, h.Status, filepath.ToSlash(rel))
	if err := g.audit(block); err != nil {
		return h, err
	}

	g.config.Logger.Info("handoff registered", "id", h.ID, "target", h.TargetAgent, "score", h.ValidationScore, "grade", h.Grade)
	return h, nil
}

// List returns the registry entries, oldest first.
func (g *Registry) List(ctx context.Context) ([]core.RegistryEntry, error) {
	return g.read()
}

// Pending returns pending entries, optionally restricted to one target agent.
func (g *Registry) Pending(ctx context.Context, targetAgent string) ([]core.RegistryEntry, error) {
	entries, err := g.read()
	if err != nil {
		return nil, err
	}
	var pending []core.RegistryEntry
	for _, e := range entries {
		if e.Status != core.HandoffPending {
			continue
		}
		if targetAgent != "" && !strings.EqualFold(e.TargetAgent, targetAgent) {
			continue
		}
		pending = append(pending, e)
	}
	return pending, nil
}

// Stats returns the entry count, the average validation score and the grade
// histogram.
func (g *Registry) Stats(ctx context.Context) (core.HandoffStats, error) {
	entries, err := g.read()
	if err != nil {
		return core.HandoffStats{}, err
	}
	stats := core.HandoffStats{Count: len(entries), Grades: make(map[string]int)}
	total := 0
	for _, e := range entries {
		total += e.ValidationScore
		stats.Grades[e.Grade]++
	}
	if stats.Count > 0 {
		stats.AverageScore = float64(total) / float64(stats.Count)
	}
	return stats, nil
}

// Transition moves the registry entry of id to status and records the change
// in the audit trail.
func (g *Registry) Transition(ctx context.Context, id string, status core.HandoffStatus, sessionID string) (core.RegistryEntry, error) {
	release, err := acquireGuard(ctx, g.registryPath()+guardExt, g.config.GuardStaleAfter)
	if err != nil {
		return core.RegistryEntry{}, core.IOError("", g.registryPath(), err)
	}
	defer release()

	entries, err := g.read()
	if err != nil {
		return core.RegistryEntry{}, err
	}
	idx := -1
	for i, e := range entries {
		if e.HandoffID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return core.RegistryEntry{}, fmt.Errorf("%w: %s", core.ErrHandoffNotFound, id)
	}
	from := entries[idx].Status
	if !from.CanTransition(status) {
		return entries[idx], fmt.Errorf("%w: %s -> %s", core.ErrInvalidTransition, from, status)
	}
	entries[idx].Status = status
	if err := g.write(entries); err != nil {
		return core.RegistryEntry{}, err
	}

	block := fmt.Sprintf("## Status Changed: %s\n\n"+
		"- **Timestamp:** %s\n"+
		"- **Session:** %s\n"+
		"- **From:** %s\n"+
		"- **To:** %s\n\n",
		id, formatTime(g.config.Clock()), sessionID, from, status)
	if err := g.audit(block); err != nil {
		return entries[idx], err
	}

	g.config.Logger.Info("handoff status changed", "id", id, "from", from, "to", status, "session", sessionID)
	return entries[idx], nil
}

// Content returns the rendered handoff of id.
func (g *Registry) Content(ctx context.Context, id string) (string, error) {
	if err := validHandoffID(id); err != nil {
		return "", err
	}
	path := filepath.Join(g.dir, id+".md")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", core.ErrHandoffNotFound, id)
		}
		return "", core.IOError("", path, err)
	}
	return string(data), nil
}

func (g *Registry) read() ([]core.RegistryEntry, error) {
	data, err := os.ReadFile(g.registryPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, core.IOError("", g.registryPath(), err)
	}
	var entries []core.RegistryEntry
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}
	if err := json.Unmarshal(jsonc.ToJSON(data), &entries); err != nil {
		return nil, &core.PathError{Kind: core.ErrParse, Path: g.registryPath(), Err: err}
	}
	return entries, nil
}

func (g *Registry) write(entries []core.RegistryEntry) error {
	if entries == nil {
		entries = []core.RegistryEntry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode registry: %w", err)
	}
	if err := writeFileAtomic(g.registryPath(), data, 0644); err != nil {
		return core.IOError("", g.registryPath(), err)
	}
	return nil
}

// audit appends block to the audit trail. Callers hold the registry guard.
func (g *Registry) audit(block string) error {
	path := g.auditPath()
	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return core.IOError("", path, err)
	}
	if len(existing) == 0 {
		existing = []byte(auditHeader)
	}
	out := append(existing, block...)
	if err := writeFileAtomic(path, out, 0644); err != nil {
		return core.IOError("", path, err)
	}
	return nil
}
