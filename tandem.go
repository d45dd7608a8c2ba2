package tandem

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/tandem/internal/platform"
	"github.com/aretw0/tandem/pkg/core"
	"github.com/aretw0/tandem/pkg/handoff"
)

// --- Types ---

// Workspace is an opened workspace with every component wired.
type Workspace = platform.Workspace

// Config is the resolved workspace configuration.
type Config = platform.Config

// ConfigFile is the optional configuration file at the workspace root.
const ConfigFile = platform.ConfigFile

// --- Configuration ---

// Option defines a functional option for opening a workspace.
type Option = platform.Option

// WithLogger sets the logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return platform.WithLogger(logger)
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r core.Recorder) Option {
	return platform.WithRecorder(r)
}

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return platform.WithClock(now)
}

// WithConfigFile reads configuration from path instead of <root>/tandem.yaml.
func WithConfigFile(path string) Option {
	return platform.WithConfigFile(path)
}

// WithAutoInit controls whether the workspace skeleton is created on open.
func WithAutoInit(auto bool) Option {
	return platform.WithAutoInit(auto)
}

// WithMustExist fails the open when the root does not exist.
func WithMustExist(must bool) Option {
	return platform.WithMustExist(must)
}

// WithMaxVersions overrides the per-type version retention.
func WithMaxVersions(n int) Option {
	return platform.WithMaxVersions(n)
}

// WithConflictWindow overrides the conflict detection window.
func WithConflictWindow(d time.Duration) Option {
	return platform.WithConflictWindow(d)
}

// WithLockTTL overrides the default lock lifetime.
func WithLockTTL(d time.Duration) Option {
	return platform.WithLockTTL(d)
}

// WithRoleAliases adds keywords to the handoff role resolver.
func WithRoleAliases(aliases map[handoff.Role][]string) Option {
	return platform.WithRoleAliases(aliases)
}

// --- Factory ---

// Open wires a workspace rooted at root.
func Open(ctx context.Context, root string, opts ...Option) (*Workspace, error) {
	return platform.Open(ctx, root, opts...)
}

// LoadConfig reads a tandem.yaml overlaid on the defaults.
func LoadConfig(path string) (Config, error) {
	return platform.LoadConfig(path)
}

// FindRoot walks upwards from startDir looking for a workspace.
func FindRoot(startDir string) (string, error) {
	return platform.FindRoot(startDir)
}
