package runner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"harness/internal/config"
	"harness/internal/reconcile"
	"harness/internal/report"
)

func TestCleanupTargets(t *testing.T) {
	targets := cleanupTargets(config.CleanupConfig{
		Database:   "data/data.db",
		BackupsDir: "data/backups",
		Extra:      []string{"data/sessions.json"},
	})
	require.Len(t, targets, 3)
	assert.Equal(t, reconcile.KindFileWithWAL, targets[0].Kind)
	assert.Equal(t, reconcile.KindDirectory, targets[1].Kind)
	assert.Equal(t, reconcile.KindFile, targets[2].Kind)
	assert.Equal(t, "data/sessions.json", targets[2].Path)
}

func TestCleanupTargetsSkipsEmptyEntries(t *testing.T) {
	assert.Empty(t, cleanupTargets(config.CleanupConfig{}))
}

func TestServiceSpecs(t *testing.T) {
	specs := serviceSpecs([]config.ServiceConfig{{
		Name:      "backend",
		Command:   []string{"npm", "run", "start"},
		Dir:       "backend",
		Port:      3000,
		HealthURL: "http://localhost:3000/api/health",
		Grace:     10 * time.Second,
	}})
	require.Len(t, specs, 1)
	assert.Equal(t, "backend", specs[0].Name)
	assert.Equal(t, 10*time.Second, specs[0].GracePeriod)
}

func TestRunFailedMessage(t *testing.T) {
	err := &RunFailed{Report: &report.RunReport{
		Failed:        2,
		Skipped:       3,
		SuiteFailures: []report.SuiteFailure{{Group: "projects", Reason: "panic"}},
	}}
	assert.Contains(t, err.Error(), "2 test failure(s)")
	assert.Contains(t, err.Error(), "1 suite failure(s)")
	assert.Contains(t, err.Error(), "3 skipped")
}
