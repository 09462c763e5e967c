package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_Defaults(t *testing.T) {
	path := writeConfig(t, `
app:
  name: bumpcheck
rulebooks:
  directory: ./testdata
workers:
  classify-entrant:
    enabled: true
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "bumpcheck", cfg.App.Name)
	assert.Equal(t, "localhost:26500", cfg.Camunda.BrokerAddress)
	assert.Equal(t, SourceFile, cfg.Rulebooks.Source)
	assert.Equal(t, "./testdata", cfg.Rulebooks.Directory)
	assert.Equal(t, 60000, cfg.Rulebooks.ReloadInterval)
	assert.Equal(t, 5432, cfg.Database.Postgres.Port)
	assert.Equal(t, "disable", cfg.Database.Postgres.SSLMode)
	assert.Equal(t, "rulebook:", cfg.Database.Redis.KeyPrefix)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, ":8080", cfg.Server.Addr())

	worker := cfg.Workers["classify-entrant"]
	assert.True(t, worker.Enabled)
	assert.Equal(t, 5, worker.MaxJobsActive)
	assert.Equal(t, 30000, worker.Timeout)
	assert.Equal(t, 3, worker.MaxRetries)
}

func TestLoadFromFile_ExpandsEnvPlaceholders(t *testing.T) {
	t.Setenv("RULEBOOK_DB_HOST", "db.internal")
	t.Setenv("RULEBOOK_DB_PASSWORD", "s3cret")

	path := writeConfig(t, `
rulebooks:
  source: postgres
database:
  postgres:
    host: ${RULEBOOK_DB_HOST}
    database: rulebooks
    user: classifier
    password: ${RULEBOOK_DB_PASSWORD}
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, SourcePostgres, cfg.Rulebooks.Source)
	assert.Equal(t, "db.internal", cfg.Database.Postgres.Host)
	assert.Equal(t, "s3cret", cfg.Database.Postgres.Password)
	assert.Contains(t, cfg.Database.Postgres.GetDSN(), "host=db.internal port=5432")
}

func TestLoadFromFile_EnvironmentOverridesFile(t *testing.T) {
	t.Setenv("LOGGING_LEVEL", "debug")

	path := writeConfig(t, `
logging:
  level: warn
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		expectedErr string
	}{
		{
			name: "unknown source",
			body: `
rulebooks:
  source: s3
`,
			expectedErr: "rulebooks.source",
		},
		{
			name: "postgres source needs a host",
			body: `
rulebooks:
  source: postgres
database:
  postgres:
    database: rulebooks
    user: classifier
`,
			expectedErr: "database.postgres.host is required",
		},
		{
			name: "redis enabled without address",
			body: `
database:
  redis:
    enabled: true
`,
			expectedErr: "database.redis.address is required",
		},
		{
			name: "negative reload interval",
			body: `
rulebooks:
  reload_interval: -5
`,
			expectedErr: "reload_interval",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectedErr)
		})
	}
}

func TestLoadFromFile_MissingFile(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestGetWorkerConfig(t *testing.T) {
	cfg := &Config{Workers: map[string]WorkerConfig{
		"fetch-bump-questions": {Enabled: false, MaxJobsActive: 2, Timeout: 1000, MaxRetries: 1},
	}}

	assert.Equal(t, 2, GetWorkerConfig(cfg, "fetch-bump-questions").MaxJobsActive)
	assert.False(t, IsWorkerEnabled(cfg, "fetch-bump-questions"))

	fallback := GetWorkerConfig(cfg, "classify-entrant")
	assert.True(t, fallback.Enabled)
	assert.Equal(t, 5, fallback.MaxJobsActive)
	assert.True(t, IsWorkerEnabled(cfg, "classify-entrant"))
}

func TestGetDuration(t *testing.T) {
	assert.Equal(t, 1500*time.Millisecond, GetDuration(1500))
}
