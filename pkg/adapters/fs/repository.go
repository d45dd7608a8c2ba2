package fs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aretw0/tandem/pkg/core"
)

// Workspace layout, relative to the root. Other tools read these paths.
const (
	VersionsDir  = "versions"
	LocksDir     = "locks"
	HandoffsDir  = "handoffs"
	ArchiveDir   = "archive"
	RegistryFile = "handoff-registry.json"
	AuditFile    = "audit-trail.md"
)

var documentPaths = map[core.ContextType]string{
	core.SharedContextType: filepath.Join("context", "shared-context.md"),
	core.DecisionsType:     filepath.Join("decisions", "decisions-log.md"),
	core.ProgressType:      filepath.Join("progress", "progress-summary.md"),
	core.QualityType:       filepath.Join("quality", "quality-metrics.md"),
}

// DocumentPath returns the path of t relative to the workspace root.
func DocumentPath(t core.ContextType) (string, bool) {
	p, ok := documentPaths[t]
	return p, ok
}

// Default compaction thresholds in bytes.
const (
	DefaultSharedContextThreshold int64 = 10 << 20
	DefaultDecisionsThreshold     int64 = 5 << 20
	DefaultDocumentThreshold      int64 = 1 << 20
)

// DefaultThresholds returns the per-type compaction thresholds.
func DefaultThresholds() map[core.ContextType]int64 {
	return map[core.ContextType]int64{
		core.SharedContextType: DefaultSharedContextThreshold,
		core.DecisionsType:     DefaultDecisionsThreshold,
		core.ProgressType:      DefaultDocumentThreshold,
		core.QualityType:       DefaultDocumentThreshold,
	}
}

// Config holds the configuration for the filesystem adapters.
type Config struct {
	Root            string
	Logger          *slog.Logger
	Clock           func() time.Time
	MaxVersions     int
	Thresholds      map[core.ContextType]int64
	GuardStaleAfter time.Duration
}

const (
	DefaultMaxVersions     = 50
	DefaultGuardStaleAfter = 10 * time.Second
)

func (c Config) withDefaults() Config {
	if c.Logger == nil {
		c.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	if c.MaxVersions <= 0 {
		c.MaxVersions = DefaultMaxVersions
	}
	if c.GuardStaleAfter <= 0 {
		c.GuardStaleAfter = DefaultGuardStaleAfter
	}
	thresholds := DefaultThresholds()
	for t, v := range c.Thresholds {
		if v > 0 {
			thresholds[t] = v
		}
	}
	c.Thresholds = thresholds
	return c
}

// Repository implements core.DocumentStore over the workspace directory.
type Repository struct {
	Path   string
	codec  core.Codec
	config Config

	mu            sync.RWMutex
	watcherActive bool
	lastCompacted map[core.ContextType]string
}

// NewRepository creates a new filesystem-backed document store.
func NewRepository(config Config, codec core.Codec) *Repository {
	config = config.withDefaults()
	if codec == nil {
		codec = NewMarkdownCodec()
	}
	return &Repository{
		Path:          config.Root,
		codec:         codec,
		config:        config,
		lastCompacted: make(map[core.ContextType]string),
	}
}

var _ core.DocumentStore = (*Repository)(nil)
var _ core.Compactor = (*Repository)(nil)

// Initialize creates the workspace skeleton. Existing files are left untouched.
func (r *Repository) Initialize(ctx context.Context) error {
	dirs := []string{VersionsDir, LocksDir, HandoffsDir, ArchiveDir}
	for _, p := range documentPaths {
		dirs = append(dirs, filepath.Dir(p))
	}
	for _, d := range dirs {
		full := filepath.Join(r.Path, d)
		if err := os.MkdirAll(full, 0755); err != nil {
			return core.IOError("", full, err)
		}
	}
	return nil
}

func (r *Repository) fullPath(t core.ContextType) (string, error) {
	rel, ok := documentPaths[t]
	if !ok {
		return "", fmt.Errorf("%w: %s", core.ErrUnknownType, t)
	}
	return filepath.Join(r.Path, rel), nil
}

// Load returns the record for t. A missing or unparsable file yields the
// default record; this never fails.
func (r *Repository) Load(ctx context.Context, t core.ContextType) core.Record {
	content, err := r.Read(ctx, t)
	if err != nil {
		r.config.Logger.Warn("document unreadable, using default", "type", t, "error", err)
		return core.NewRecord(t)
	}
	if content == "" {
		return core.NewRecord(t)
	}
	rec, err := r.codec.Parse(t, []byte(content))
	if err != nil {
		r.config.Logger.Warn("document unparsable, using default", "type", t, "error", err)
		return core.NewRecord(t)
	}
	return rec
}

// Read returns the raw content of t, or "" when the file does not exist.
func (r *Repository) Read(ctx context.Context, t core.ContextType) (string, error) {
	path, err := r.fullPath(t)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", core.IOError(t, path, err)
	}
	return string(data), nil
}

// Save stamps r with the current time, writes its canonical form and returns
// the size of the file it replaced.
func (r *Repository) Save(ctx context.Context, rec core.Record) (int64, error) {
	touch(rec, r.config.Clock())
	data, err := r.codec.Format(rec)
	if err != nil {
		return 0, core.ParseError(rec.Type(), err)
	}
	return r.write(rec.Type(), data)
}

// WriteRaw replaces the content of t verbatim.
func (r *Repository) WriteRaw(ctx context.Context, t core.ContextType, content string) (int64, error) {
	return r.write(t, []byte(content))
}

func (r *Repository) write(t core.ContextType, data []byte) (int64, error) {
	path, err := r.fullPath(t)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return 0, core.IOError(t, path, err)
	}
	prev, err := fileSize(path)
	if err != nil {
		return 0, core.IOError(t, path, err)
	}
	if err := writeFileAtomic(path, data, 0644); err != nil {
		return 0, core.IOError(t, path, err)
	}
	r.config.Logger.Debug("document written", "type", t, "bytes", len(data), "previous", prev)
	return prev, nil
}

func touch(rec core.Record, now time.Time) {
	now = now.UTC()
	switch v := rec.(type) {
	case *core.SharedContext:
		v.LastUpdated = now
	case *core.DecisionLog:
		v.LastUpdated = now
	case *core.ProgressSummary:
		v.LastUpdated = now
	case *core.QualityMetrics:
		v.LastUpdated = now
	case *core.RawDocument:
		v.LastUpdated = now
	}
}
