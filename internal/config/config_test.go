package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdoElHodaky/lobengine/internal/lob"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_ValidInlineSchedule(t *testing.T) {
	path := writeTemp(t, `
schema_version: "1.0.0"
decimal_places: 2
snapshot_gap: 1000000000
topk: 5
seed: 42
schedule:
  periods:
    - status: call_auction
      start: 0
      end: 100
    - status: continuous_trading
      start: 100
      end: 200
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.DecimalPlaces)
	assert.Equal(t, int64(42), cfg.Seed)

	sched, err := cfg.Resolve()
	require.NoError(t, err)
	require.Len(t, sched.Periods, 2)
	assert.Equal(t, lob.CallAuction, sched.Periods[0].Status)
	assert.Equal(t, lob.ContinuousTrading, sched.Periods[1].Status)
}

func TestLoad_PresetSchedule(t *testing.T) {
	path := writeTemp(t, `
schema_version: "1.2.3"
schedule:
  preset: AShare
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	sched, err := cfg.Resolve()
	require.NoError(t, err)
	require.Len(t, sched.Periods, 5)
	assert.Equal(t, lob.CallAuction, sched.Periods[0].Status)
	assert.Equal(t, lob.Closed, sched.Periods[4].Status)
}

func TestLoad_UnknownPreset(t *testing.T) {
	path := writeTemp(t, `
schema_version: "1.0.0"
schedule:
  preset: Nasdaq
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	_, err = cfg.Resolve()
	assert.Error(t, err)
}

func TestLoad_RejectsOutOfRangeSchemaVersion(t *testing.T) {
	path := writeTemp(t, `
schema_version: "2.0.0"
schedule:
  preset: AShare
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_RejectsMalformedSchemaVersion(t *testing.T) {
	path := writeTemp(t, `
schema_version: "not-a-version"
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_RejectsInvalidPeriodStatus(t *testing.T) {
	path := writeTemp(t, `
schema_version: "1.0.0"
schedule:
  periods:
    - status: pre_open
      start: 0
      end: 10
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_RejectsEndBeforeStart(t *testing.T) {
	path := writeTemp(t, `
schema_version: "1.0.0"
schedule:
  periods:
    - status: continuous_trading
      start: 100
      end: 50
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestBookConfig_MapsFields(t *testing.T) {
	cfg := &Config{DecimalPlaces: 4, SnapshotGap: 7, TopK: 10, Seed: 99}
	bc := cfg.BookConfig()
	assert.Equal(t, 4, bc.DecimalPlaces)
	assert.Equal(t, lob.Timestamp(7), lob.Timestamp(bc.SnapshotGap))
	assert.Equal(t, 10, bc.TopK)
	assert.Equal(t, int64(99), bc.Seed)
}
