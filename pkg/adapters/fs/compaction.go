package fs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/tandem/pkg/core"
)

// Retained tails of a compacted document.
const (
	compactKeepDecisions   = 20
	compactKeepCompleted   = 20
	compactKeepAssessments = 10
	compactKeepNotesBytes  = 4096

	// compactMaxPasses is the pass at which every retained tail is empty.
	compactMaxPasses = 5
)

// CompactIfNeeded compacts t when its file exceeds the configured threshold.
// It returns the archive path, or "" when nothing was done.
func (r *Repository) CompactIfNeeded(ctx context.Context, t core.ContextType) (string, error) {
	path, err := r.fullPath(t)
	if err != nil {
		return "", err
	}
	size, err := fileSize(path)
	if err != nil {
		return "", core.IOError(t, path, err)
	}
	if size <= r.config.Thresholds[t] {
		return "", nil
	}
	return r.Compact(ctx, t)
}

// Compact archives the current file of t verbatim and replaces it with a
// condensed summary pointing at the archive.
func (r *Repository) Compact(ctx context.Context, t core.ContextType) (string, error) {
	path, err := r.fullPath(t)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", core.IOError(t, path, err)
	}

	archiveDir := filepath.Join(r.Path, ArchiveDir)
	if err := os.MkdirAll(archiveDir, 0755); err != nil {
		return "", core.IOError(t, archiveDir, err)
	}
	stamp := r.config.Clock().UnixMilli()
	var archivePath string
	for {
		archivePath = filepath.Join(archiveDir, fmt.Sprintf("archived-%d-%s", stamp, filepath.Base(path)))
		if _, err := os.Stat(archivePath); os.IsNotExist(err) {
			break
		}
		stamp++
	}
	if err := writeFileAtomic(archivePath, data, 0644); err != nil {
		return "", core.IOError(t, archivePath, err)
	}

	rec, err := r.codec.Parse(t, data)
	if err != nil {
		r.config.Logger.Warn("compacting unparsable document, keeping defaults", "type", t, "error", err)
		rec = core.NewRecord(t)
	}
	rel, _ := filepath.Rel(r.Path, archivePath)
	out, err := r.condense(t, rec, filepath.ToSlash(rel))
	if err != nil {
		return "", core.ParseError(t, err)
	}
	if err := writeFileAtomic(path, out, 0644); err != nil {
		return "", core.IOError(t, path, err)
	}

	r.mu.Lock()
	r.lastCompacted[t] = archivePath
	r.mu.Unlock()

	r.config.Logger.Info("document compacted", "type", t, "archive", archivePath, "before", len(data), "after", len(out))
	return archivePath, nil
}

// condense formats the retained tail of rec. The first pass trims only the
// append-only parts; while the result is still above the threshold, each
// further pass halves every list and text field.
func (r *Repository) condense(t core.ContextType, rec core.Record, archive string) ([]byte, error) {
	limit := r.config.Thresholds[t]
	for pass := 0; ; pass++ {
		out, err := r.codec.Format(retain(rec, archive, pass))
		if err != nil {
			return nil, err
		}
		fits := limit <= 0 || int64(len(out)) <= limit
		if fits || pass == compactMaxPasses {
			if !fits {
				r.config.Logger.Warn("compacted document still above threshold", "type", t, "size", len(out), "threshold", limit)
			}
			return out, nil
		}
	}
}

func retain(rec core.Record, archive string, pass int) core.Record {
	keep := func(n int) int { return n >> pass }
	switch v := rec.(type) {
	case *core.SharedContext:
		out := *v
		out.Archive = archive
		out.KeyDecisions = tail(v.KeyDecisions, keep(compactKeepDecisions))
		out.SessionNotes = tailNotes(v.SessionNotes, archive, keep(compactKeepNotesBytes))
		if pass > 0 {
			out.NextSteps = tail(v.NextSteps, keep(compactKeepDecisions))
			out.ActiveSessions = tail(v.ActiveSessions, keep(compactKeepDecisions))
			out.CurrentFocus = clip(v.CurrentFocus, keep(compactKeepNotesBytes))
		}
		return &out
	case *core.DecisionLog:
		out := &core.DecisionLog{LastUpdated: v.LastUpdated, Archive: archive}
		if n := keep(compactKeepDecisions); n > 0 {
			out.Decisions = v.Last(n)
		}
		return out
	case *core.ProgressSummary:
		out := *v
		out.Archive = archive
		out.CompletedTasks = tail(v.CompletedTasks, keep(compactKeepCompleted))
		if pass > 0 {
			out.PendingTasks = tail(v.PendingTasks, keep(compactKeepCompleted))
			out.Blockers = tail(v.Blockers, keep(compactKeepCompleted))
			out.CurrentStory = clip(v.CurrentStory, keep(compactKeepNotesBytes))
		}
		return &out
	case *core.QualityMetrics:
		out := &core.QualityMetrics{LastUpdated: v.LastUpdated, Archive: archive}
		n := keep(compactKeepAssessments)
		if len(v.Assessments) > n {
			out.Assessments = append(out.Assessments, v.Assessments[len(v.Assessments)-n:]...)
		} else {
			out.Assessments = append(out.Assessments, v.Assessments...)
		}
		return out
	}
	return rec
}

func tail(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return append([]string(nil), items[len(items)-n:]...)
}

// clip keeps the first n bytes of s.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.ToValidUTF8(s[:n], "")
}

// tailNotes keeps the last whole lines of notes that fit budget.
func tailNotes(notes, archive string, budget int) string {
	if len(notes) <= budget {
		return notes
	}
	kept := notes[len(notes)-budget:]
	if i := strings.IndexByte(kept, '\n'); i >= 0 {
		kept = kept[i+1:]
	} else {
		kept = strings.ToValidUTF8(kept, "")
	}
	return fmt.Sprintf("Earlier notes archived in %s.\n%s", archive, kept)
}
