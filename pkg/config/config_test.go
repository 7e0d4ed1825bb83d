package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laekov/polarkv/internal/bytesize"
)

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	opts, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, bytesize.ByteSize(defaultChunkSize), opts.Engine.ChunkSize)
	assert.Equal(t, defaultMaxJournal, opts.Engine.MaxJournal)
	assert.Equal(t, "INFO", opts.Logging.Level)
}

func TestLoadParsesYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "polarkv.yaml")
	contents := `
engine:
  chunk_size: 8MiB
  max_journal: 64
  resident_budget: 128MiB
  recycle_interval: 250ms
logging:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))

	opts, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8*bytesize.MiB, opts.Engine.ChunkSize)
	assert.Equal(t, 64, opts.Engine.MaxJournal)
	assert.Equal(t, 128*bytesize.MiB, opts.Engine.ResidentBudget)
	assert.Equal(t, 250*time.Millisecond, opts.Engine.RecycleInterval)
	assert.Equal(t, "DEBUG", opts.Logging.Level)
	assert.Equal(t, "json", opts.Logging.Format)
}

func TestSaveConfigThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "polarkv.yaml")

	opts := &Options{}
	ApplyDefaults(opts)
	opts.Engine.MaxJournal = 42

	require.NoError(t, SaveConfig(opts, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 42, loaded.Engine.MaxJournal)
}

func TestApplyDefaultsPreservesExplicitValues(t *testing.T) {
	opts := &Options{}
	opts.Engine.MaxJournal = 7
	opts.Logging.Level = "warn"
	ApplyDefaults(opts)

	assert.Equal(t, 7, opts.Engine.MaxJournal)
	assert.Equal(t, "WARN", opts.Logging.Level)
	assert.Equal(t, bytesize.ByteSize(defaultChunkSize), opts.Engine.ChunkSize)
}
