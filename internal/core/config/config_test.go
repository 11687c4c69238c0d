package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	dataDir := t.TempDir()

	cfg, err := Load(filepath.Join(dataDir, "does-not-exist.yml"), dataDir)
	require.NoError(t, err)

	assert.Equal(t, "day", cfg.Report.Period)
	assert.Equal(t, RangeThisWeek, cfg.Report.Range)
	assert.Equal(t, int64(15_000), cfg.Sync.TimeoutMs)
	assert.Equal(t, int64(1_000), cfg.Watch.RefreshMs)
	assert.Equal(t, dataDir, cfg.DataDir)
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Report, cfg.Report)
}

func TestLoadReadsFile(t *testing.T) {
	path := writeConfig(t, `
report:
  period: week
  range: this-month
sync:
  timeout_ms: 30000
`)

	cfg, err := Load(path, t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "week", cfg.Report.Period)
	assert.Equal(t, RangeThisMonth, cfg.Report.Range)
	assert.Equal(t, int64(30_000), cfg.Sync.TimeoutMs)
	assert.Equal(t, int64(1_000), cfg.Watch.RefreshMs, "unset values keep defaults")
}

func TestLoadRejectsBadPeriod(t *testing.T) {
	path := writeConfig(t, "report:\n  period: fortnight\n")

	_, err := Load(path, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "report.period")
}

func TestLoadRejectsBadRange(t *testing.T) {
	path := writeConfig(t, "report:\n  range: yesterday\n")

	_, err := Load(path, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "report.range")
}

func TestLoadRejectsTinyTimeout(t *testing.T) {
	path := writeConfig(t, "sync:\n  timeout_ms: 50\n")

	_, err := Load(path, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sync.timeout_ms")
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := writeConfig(t, "report: [not a map\n")

	_, err := Load(path, t.TempDir())
	require.Error(t, err)
}

func TestValidateRequiresDataDir(t *testing.T) {
	cfg := DefaultConfig()
	require.Error(t, cfg.Validate())
}

func TestDataFile(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = "/tmp/tempo-data"
	assert.Equal(t, filepath.Join("/tmp/tempo-data", "tempo.json"), cfg.DataFile())
}

func TestIsValidRange(t *testing.T) {
	for _, preset := range []string{RangeToday, RangeThisWeek, RangeThisMonth, RangeCustom, RangeAll} {
		assert.True(t, IsValidRange(preset), preset)
	}
	assert.False(t, IsValidRange("fortnight"))
	assert.False(t, IsValidRange(""))
}
