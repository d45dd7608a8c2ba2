package fs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/aretw0/tandem/pkg/core"
)

// RollbackSession is the synthetic session and agent recorded on the backup
// taken before a rollback.
const RollbackSession = "rollback-backup"

// Ledger implements core.VersionLedger with one JSON file per version.
type Ledger struct {
	dir    string
	repo   *Repository
	config Config
}

// NewLedger creates a ledger under <root>/versions. repo is used by Rollback
// to read and replace live documents.
func NewLedger(config Config, repo *Repository) *Ledger {
	config = config.withDefaults()
	return &Ledger{
		dir:    filepath.Join(config.Root, VersionsDir),
		repo:   repo,
		config: config,
	}
}

var _ core.VersionLedger = (*Ledger)(nil)

// versionStamp renders t as ISO 8601 with ':' and '.' replaced by '-'.
func versionStamp(t time.Time) string {
	return strings.NewReplacer(":", "-", ".", "-").Replace(t.UTC().Format(timestampLayout))
}

// safeName keeps session ids usable inside file names.
func safeName(s string) string {
	if s == "" {
		return "anonymous"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, s)
}

// Create snapshots content and enforces retention for t.
func (l *Ledger) Create(ctx context.Context, t core.ContextType, content, sessionID, agent string) (string, error) {
	if t == "" {
		return "", fmt.Errorf("%w: empty context type", core.ErrUnknownType)
	}
	if err := os.MkdirAll(l.dir, 0755); err != nil {
		return "", core.IOError(t, l.dir, err)
	}

	now := l.config.Clock().UTC().Truncate(time.Millisecond)
	var id, path string
	for {
		id = fmt.Sprintf("%s-%s-%s", t, versionStamp(now), safeName(sessionID))
		path = filepath.Join(l.dir, id+".json")
		if _, err := os.Stat(path); os.IsNotExist(err) {
			break
		}
		now = now.Add(time.Millisecond)
	}

	v := core.Version{
		ID:          id,
		ContextType: t,
		Timestamp:   now,
		SessionID:   sessionID,
		Agent:       agent,
		Content:     content,
		Hash:        core.Hash(content),
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode version: %w", err)
	}
	if err := writeFileAtomic(path, data, 0644); err != nil {
		return "", core.IOError(t, path, err)
	}
	l.config.Logger.Debug("version created", "type", t, "id", id, "session", sessionID)

	if removed, err := l.Cleanup(ctx, t); err != nil {
		l.config.Logger.Warn("version retention failed", "type", t, "error", err)
	} else if removed > 0 {
		l.config.Logger.Debug("old versions removed", "type", t, "count", removed)
	}
	return id, nil
}

// files returns the version file names of t relative to the versions dir.
func (l *Ledger) files(t core.ContextType) ([]string, error) {
	if _, err := os.Stat(l.dir); os.IsNotExist(err) {
		return nil, nil
	}
	pattern := string(t) + "-[0-9][0-9][0-9][0-9]-*.json"
	matches, err := doublestar.Glob(os.DirFS(l.dir), pattern)
	if err != nil {
		return nil, core.IOError(t, l.dir, err)
	}
	return matches, nil
}

// Count returns how many versions of t are retained.
func (l *Ledger) Count(ctx context.Context, t core.ContextType) (int, error) {
	files, err := l.files(t)
	return len(files), err
}

// Cleanup keeps the newest MaxVersions files of t by modification time and
// deletes the rest.
func (l *Ledger) Cleanup(ctx context.Context, t core.ContextType) (int, error) {
	files, err := l.files(t)
	if err != nil {
		return 0, err
	}
	excess := len(files) - l.config.MaxVersions
	if excess <= 0 {
		return 0, nil
	}

	type entry struct {
		name  string
		mtime time.Time
	}
	entries := make([]entry, 0, len(files))
	for _, name := range files {
		info, err := os.Stat(filepath.Join(l.dir, name))
		if err != nil {
			continue
		}
		entries = append(entries, entry{name: name, mtime: info.ModTime()})
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].mtime.Equal(entries[j].mtime) {
			return entries[i].mtime.Before(entries[j].mtime)
		}
		return entries[i].name < entries[j].name
	})

	removed := 0
	for _, e := range entries[:min(excess, len(entries))] {
		if err := os.Remove(filepath.Join(l.dir, e.name)); err != nil && !os.IsNotExist(err) {
			return removed, core.IOError(t, e.name, err)
		}
		removed++
	}
	return removed, nil
}

// Recent returns up to limit versions of t, newest first. A non-positive limit
// returns all of them.
func (l *Ledger) Recent(ctx context.Context, t core.ContextType, limit int) ([]core.Version, error) {
	files, err := l.files(t)
	if err != nil {
		return nil, err
	}
	versions := make([]core.Version, 0, len(files))
	for _, name := range files {
		v, err := l.read(name)
		if err != nil {
			l.config.Logger.Warn("skipping unreadable version", "file", name, "error", err)
			continue
		}
		if v.ContextType != t {
			continue
		}
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool {
		if !versions[i].Timestamp.Equal(versions[j].Timestamp) {
			return versions[i].Timestamp.After(versions[j].Timestamp)
		}
		return versions[i].ID > versions[j].ID
	})
	if limit > 0 && len(versions) > limit {
		versions = versions[:limit]
	}
	return versions, nil
}

func (l *Ledger) read(name string) (core.Version, error) {
	var v core.Version
	data, err := os.ReadFile(filepath.Join(l.dir, name))
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("invalid version file: %w", err)
	}
	return v, nil
}

// Rollback backs up the live document of t as a new version attributed to
// RollbackSession, then restores the content of versionID.
func (l *Ledger) Rollback(ctx context.Context, t core.ContextType, versionID string) (core.Version, error) {
	versions, err := l.Recent(ctx, t, 0)
	if err != nil {
		return core.Version{}, err
	}
	var target *core.Version
	for i := range versions {
		if versions[i].ID == versionID {
			target = &versions[i]
			break
		}
	}
	if target == nil {
		return core.Version{}, core.VersionNotFound(t, versionID)
	}

	current, err := l.repo.Read(ctx, t)
	if err != nil {
		return core.Version{}, err
	}
	if _, err := l.Create(ctx, t, current, RollbackSession, RollbackSession); err != nil {
		return core.Version{}, fmt.Errorf("failed to back up before rollback: %w", err)
	}
	if _, err := l.repo.WriteRaw(ctx, t, target.Content); err != nil {
		return core.Version{}, err
	}
	l.config.Logger.Info("document rolled back", "type", t, "version", versionID, "agent", target.Agent)
	return *target, nil
}
