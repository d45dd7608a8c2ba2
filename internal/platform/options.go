package platform

import (
	"log/slog"
	"time"

	"github.com/aretw0/tandem/pkg/core"
	"github.com/aretw0/tandem/pkg/handoff"
)

// options holds the internal configuration for a workspace.
type options struct {
	logger     *slog.Logger
	recorder   core.Recorder
	clock      func() time.Time
	configFile string
	autoInit   bool
	mustExist  bool
	overrides  []func(*Config)
}

// Option defines a functional option for opening a workspace.
type Option func(*options)

// defaultOptions returns the default configuration.
func defaultOptions() *options {
	return &options{
		recorder: core.NopRecorder,
		autoInit: true,
	}
}

func (o *options) override(fn func(*Config)) {
	o.overrides = append(o.overrides, fn)
}

// WithLogger sets the logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithRecorder attaches a metrics recorder to the service and the handoff
// builder.
func WithRecorder(r core.Recorder) Option {
	return func(o *options) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithClock overrides the wall clock (useful for testing).
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.clock = now
	}
}

// WithConfigFile reads configuration from path instead of <root>/tandem.yaml.
func WithConfigFile(path string) Option {
	return func(o *options) {
		o.configFile = path
	}
}

// WithAutoInit controls whether the workspace skeleton is created on open.
// Enabled by default.
func WithAutoInit(auto bool) Option {
	return func(o *options) {
		o.autoInit = auto
	}
}

// WithMustExist fails the open when the root directory does not exist.
func WithMustExist(must bool) Option {
	return func(o *options) {
		o.mustExist = must
	}
}

// WithMaxVersions overrides the per-type version retention.
func WithMaxVersions(n int) Option {
	return func(o *options) {
		o.override(func(c *Config) {
			if n > 0 {
				c.MaxVersions = n
			}
		})
	}
}

// WithConflictWindow overrides how far back conflict detection looks.
func WithConflictWindow(d time.Duration) Option {
	return func(o *options) {
		o.override(func(c *Config) {
			if d > 0 {
				c.ConflictWindow = d
			}
		})
	}
}

// WithLockTTL overrides the default lock lifetime.
func WithLockTTL(d time.Duration) Option {
	return func(o *options) {
		o.override(func(c *Config) {
			if d > 0 {
				c.LockTTL = d
			}
		})
	}
}

// WithRoleAliases adds keywords to the role resolver on top of the file
// configuration.
func WithRoleAliases(aliases map[handoff.Role][]string) Option {
	return func(o *options) {
		o.override(func(c *Config) {
			if c.Roles == nil {
				c.Roles = make(map[handoff.Role][]string)
			}
			for r, words := range aliases {
				c.Roles[r] = append(c.Roles[r], words...)
			}
		})
	}
}
