package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/tandem/pkg/adapters/fs"
	"github.com/aretw0/tandem/pkg/core"
	"github.com/aretw0/tandem/pkg/handoff"
)

// ConfigFile is the optional configuration file at the workspace root.
const ConfigFile = "tandem.yaml"

// FileConfig is the on-disk shape of tandem.yaml. Durations are strings in
// time.ParseDuration syntax. Zero values mean "use the default".
type FileConfig struct {
	MaxVersions     int                 `yaml:"max_versions" validate:"gte=0,lte=10000"`
	RecentVersions  int                 `yaml:"recent_versions" validate:"gte=0,lte=1000"`
	ConflictWindow  string              `yaml:"conflict_window" validate:"omitempty,duration"`
	LockTTL         string              `yaml:"lock_ttl" validate:"omitempty,duration"`
	GuardStaleAfter string              `yaml:"guard_stale_after" validate:"omitempty,duration"`
	Thresholds      map[string]int64    `yaml:"thresholds" validate:"dive,gte=0"`
	Roles           map[string][]string `yaml:"roles" validate:"dive,dive,required"`
}

// Config is the resolved workspace configuration.
type Config struct {
	MaxVersions     int
	RecentVersions  int
	ConflictWindow  time.Duration
	LockTTL         time.Duration
	GuardStaleAfter time.Duration
	Thresholds      map[core.ContextType]int64
	Roles           map[handoff.Role][]string
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return Config{
		MaxVersions:     fs.DefaultMaxVersions,
		RecentVersions:  core.DefaultRecentVersions,
		ConflictWindow:  core.DefaultConflictWindow,
		LockTTL:         core.DefaultLockTTL,
		GuardStaleAfter: fs.DefaultGuardStaleAfter,
		Thresholds:      fs.DefaultThresholds(),
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
		d, err := time.ParseDuration(fl.Field().String())
		return err == nil && d > 0
	})
	return v
}

// LoadConfig reads path and overlays it on the defaults. A missing file is
// not an error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, core.IOError("", path, err)
	}

	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return cfg, &core.PathError{Kind: core.ErrParse, Path: path, Err: err}
	}
	if err := validate.Struct(fc); err != nil {
		return cfg, fmt.Errorf("invalid %s: %w", filepath.Base(path), err)
	}
	return fc.apply(cfg)
}

func (fc FileConfig) apply(cfg Config) (Config, error) {
	if fc.MaxVersions > 0 {
		cfg.MaxVersions = fc.MaxVersions
	}
	if fc.RecentVersions > 0 {
		cfg.RecentVersions = fc.RecentVersions
	}
	for _, d := range []struct {
		raw string
		dst *time.Duration
	}{
		{fc.ConflictWindow, &cfg.ConflictWindow},
		{fc.LockTTL, &cfg.LockTTL},
		{fc.GuardStaleAfter, &cfg.GuardStaleAfter},
	} {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return cfg, err
		}
		*d.dst = parsed
	}
	for name, v := range fc.Thresholds {
		if v > 0 {
			cfg.Thresholds[core.ContextType(name)] = v
		}
	}
	if len(fc.Roles) > 0 {
		cfg.Roles = make(map[handoff.Role][]string, len(fc.Roles))
		for name, words := range fc.Roles {
			role, err := handoff.ParseRole(name)
			if err != nil {
				return cfg, fmt.Errorf("roles: %w", err)
			}
			if role.Multi() {
				return cfg, fmt.Errorf("roles: %s is a combined role, configure its parts", role)
			}
			cfg.Roles[role] = append(cfg.Roles[role], words...)
		}
	}
	return cfg, nil
}

// File returns the FileConfig that reproduces c.
func (c Config) File() FileConfig {
	fc := FileConfig{
		MaxVersions:     c.MaxVersions,
		RecentVersions:  c.RecentVersions,
		ConflictWindow:  c.ConflictWindow.String(),
		LockTTL:         c.LockTTL.String(),
		GuardStaleAfter: c.GuardStaleAfter.String(),
		Thresholds:      make(map[string]int64, len(c.Thresholds)),
	}
	for t, v := range c.Thresholds {
		fc.Thresholds[string(t)] = v
	}
	if len(c.Roles) > 0 {
		fc.Roles = make(map[string][]string, len(c.Roles))
		for r, words := range c.Roles {
			fc.Roles[string(r)] = words
		}
	}
	return fc
}

// WriteConfig writes c to path as YAML, unless the file already exists.
func WriteConfig(path string, c Config) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	data, err := yaml.Marshal(c.File())
	if err != nil {
		return false, fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return false, core.IOError("", path, err)
	}
	return true, nil
}
