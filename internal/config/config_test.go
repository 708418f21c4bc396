package config

import (
	"os"
	"path/filepath"
	"testing"

	"budgetsync/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
app:
  name: budgetsync-test
storage:
  path: data/offline.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, BackendSQLite, cfg.Storage.Backend)
	assert.Equal(t, "1.1.1.1:443", cfg.Network.ProbeAddress)
	assert.Equal(t, "exports", cfg.Exports.Path)

	sc := cfg.SyncConfig()
	assert.Equal(t, models.DefaultMaxRetries, sc.MaxRetries)
	assert.True(t, sc.AutoSync)
	assert.True(t, sc.EnableOfflineMode)
}

func TestLoadSyncSection(t *testing.T) {
	path := writeConfig(t, `
storage:
  path: data/offline.db
sync:
  max_retries: 5
  retry_delay_ms: 250
  sync_interval_ms: 60000
  auto_sync: false
  conflict_resolution: client-wins
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	sc := cfg.SyncConfig()
	assert.Equal(t, 5, sc.MaxRetries)
	assert.Equal(t, int64(250), sc.RetryDelayMs)
	assert.Equal(t, int64(60000), sc.SyncIntervalMs)
	assert.False(t, sc.AutoSync)
	assert.Equal(t, models.ConflictClientWins, sc.ConflictResolution)
}

func TestLoadEnvExpansion(t *testing.T) {
	t.Setenv("BUDGETSYNC_DB", "/tmp/offline.db")
	path := writeConfig(t, `
storage:
  path: ${BUDGETSYNC_DB}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/offline.db", cfg.Storage.Path)
}

func TestValidateRejectsBadConfig(t *testing.T) {
	_, err := Load(writeConfig(t, `
storage:
  backend: postgres
  path: data/offline.db
`))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, `
storage:
  backend: redis
`))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, `
storage:
  path: data/offline.db
sync:
  conflict_resolution: merge
`))
	assert.Error(t, err)
}
