package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/vnykmshr/coalesce/pkg/common/errors"
	"github.com/vnykmshr/coalesce/pkg/dispatch/queue"
)

const sampleYAML = `
log_level: debug
pool:
  workers: 4
  queue_size: 16
profiles:
  search:
    delay: 250ms
    queue: ui
  progress:
    interval: 1s
`

const sampleJSON = `{
  "pool": {"workers": 2},
  "profiles": {
    "save": {"delay": "2s", "interval": "0s", "queue": "io"}
  }
}`

func TestLoadBytes_YAML(t *testing.T) {
	cfg, err := LoadBytes([]byte(sampleYAML), FormatYAML)
	require.NoError(t, err)

	assert.Equal(t, PoolConfig{Workers: 4, QueueSize: 16}, cfg.Pool)
	assert.Equal(t, []string{"progress", "search"}, cfg.Names())

	lvl, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, zerolog.DebugLevel, lvl)

	search, err := cfg.Profile("search")
	require.NoError(t, err)
	assert.Equal(t, Profile{Delay: 250 * time.Millisecond, Interval: 300 * time.Millisecond, Queue: "ui"}, search)

	progress, err := cfg.Profile("progress")
	require.NoError(t, err)
	assert.Equal(t, Profile{Delay: 300 * time.Millisecond, Interval: time.Second, Queue: queue.MainLabel}, progress)
}

func TestLoadBytes_JSON(t *testing.T) {
	cfg, err := LoadBytes([]byte(sampleJSON), FormatJSON)
	require.NoError(t, err)

	save, err := cfg.Profile("save")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, save.Delay)
	assert.Zero(t, save.Interval, "explicit zero is kept")
	assert.Equal(t, "io", save.Queue)

	lvl, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, zerolog.InfoLevel, lvl)
}

func TestLoadBytes_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		format  Format
		invalid bool
	}{
		{"negative delay", "profiles:\n  a:\n    delay: -1s\n", FormatYAML, true},
		{"negative interval", "profiles:\n  a:\n    interval: -5ms\n", FormatYAML, true},
		{"negative workers", "pool:\n  workers: -1\n", FormatYAML, true},
		{"unknown log level", "log_level: loud\n", FormatYAML, true},
		{"unsupported format", "a = 1", Format("toml"), true},
		{"unknown key", "profiles:\n  a:\n    dealy: 1s\n", FormatYAML, false},
		{"bad duration", "profiles:\n  a:\n    delay: soon\n", FormatYAML, false},
		{"malformed json", "{", FormatJSON, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadBytes([]byte(tt.input), tt.format)
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Equal(t, tt.invalid, cerrors.IsValidationError(err), "got %v", err)
		})
	}
}

func TestProfile_NotFound(t *testing.T) {
	cfg, err := LoadBytes([]byte(sampleYAML), FormatYAML)
	require.NoError(t, err)

	_, err = cfg.Profile("missing")
	assert.ErrorIs(t, err, cerrors.ErrProfileNotFound)
	assert.Contains(t, err.Error(), `"missing"`)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "coalesce.yml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(sampleYAML), 0o600))
	cfg, err := Load(yamlPath)
	require.NoError(t, err)
	assert.Len(t, cfg.Profiles, 2)

	jsonPath := filepath.Join(dir, "coalesce.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(sampleJSON), 0o600))
	cfg, err = Load(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Pool.Workers)

	_, err = Load(filepath.Join(dir, "coalesce.toml"))
	assert.True(t, cerrors.IsValidationError(err))

	_, err = Load(filepath.Join(dir, "absent.yaml"))
	require.Error(t, err)
	assert.False(t, cerrors.IsValidationError(err))
}
