package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:3000", cfg.Target.BaseURL)
	assert.Len(t, cfg.Services, 2)
	assert.Equal(t, "backend", cfg.Services[0].Name)
	assert.Equal(t, "data/data.db", cfg.Cleanup.Database)
}

func TestLoadOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "harness.yaml")
	content := `
target:
  baseUrl: http://localhost:8080
  requestTimeout: 10s
services:
  - name: api
    command: ["./api"]
    port: 8080
    healthUrl: http://localhost:8080/healthz
    grace: 15s
run:
  stopOnFirstFailure: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080", cfg.Target.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Target.RequestTimeout)
	require.Len(t, cfg.Services, 1)
	assert.Equal(t, "api", cfg.Services[0].Name)
	assert.Equal(t, 15*time.Second, cfg.Services[0].Grace)
	assert.True(t, cfg.Run.StopOnFirstFailure)
	// Untouched sections keep their defaults.
	assert.Equal(t, "admin@example.com", cfg.Target.AdminEmail)
	assert.Equal(t, "reports", cfg.Report.Dir)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "harness.yaml")
	require.NoError(t, os.WriteFile(path, []byte("target: [not a map"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("HARNESS_BASE_URL", "http://ci:9000")
	t.Setenv("HARNESS_ADMIN_EMAIL", "ci@example.com")
	t.Setenv("HARNESS_VERBOSE", "true")
	t.Setenv("HARNESS_KEEP_DATA", "not-a-bool")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "http://ci:9000", cfg.Target.BaseURL)
	assert.Equal(t, "ci@example.com", cfg.Target.AdminEmail)
	assert.True(t, cfg.Run.Verbose)
	assert.False(t, cfg.Run.KeepData)
}
