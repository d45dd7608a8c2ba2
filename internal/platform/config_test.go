package platform

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/tandem/pkg/core"
	"github.com/aretw0/tandem/pkg/handoff"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ConfigFile)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), ConfigFile))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
max_versions: 10
recent_versions: 3
conflict_window: 90s
lock_ttl: 1m
thresholds:
  decisions: 2048
  notes: 512
roles:
  dev: [hacker]
  ux-expert: [pixel]
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.MaxVersions)
	assert.Equal(t, 3, cfg.RecentVersions)
	assert.Equal(t, 90*time.Second, cfg.ConflictWindow)
	assert.Equal(t, time.Minute, cfg.LockTTL)
	assert.Equal(t, DefaultConfig().GuardStaleAfter, cfg.GuardStaleAfter)
	assert.Equal(t, int64(2048), cfg.Thresholds[core.DecisionsType])
	assert.Equal(t, int64(512), cfg.Thresholds["notes"])
	assert.Equal(t, DefaultConfig().Thresholds[core.ProgressType], cfg.Thresholds[core.ProgressType])
	assert.Equal(t, []string{"hacker"}, cfg.Roles[handoff.Dev])
	assert.Equal(t, []string{"pixel"}, cfg.Roles[handoff.UXExpert])
}

func TestLoadConfigRejects(t *testing.T) {
	cases := map[string]string{
		"bad duration":     "lock_ttl: soon\n",
		"negative window":  "conflict_window: -5s\n",
		"negative count":   "max_versions: -1\n",
		"unknown role":     "roles:\n  janitor: [mop]\n",
		"combined role":    "roles:\n  dev-analyst: [both]\n",
		"empty keyword":    "roles:\n  qa: [\"\"]\n",
		"not yaml mapping": "- just\n- a list\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestWriteConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFile)
	want := DefaultConfig()
	want.MaxVersions = 7
	want.Roles = map[handoff.Role][]string{handoff.QA: {"gatekeeper"}}

	written, err := WriteConfig(path, want)
	require.NoError(t, err)
	assert.True(t, written)

	got, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	written, err = WriteConfig(path, DefaultConfig())
	require.NoError(t, err)
	assert.False(t, written, "an existing file is never overwritten")
}
