package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"fractalTrader/internal/adapters/logger"
	"fractalTrader/internal/domain"
	"fractalTrader/internal/strategy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		t.Setenv("DATA_PATH", "/data")
		t.Setenv("LOG_LEVEL", "debug")

		cfg, err := LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, "/data", cfg.DataPath)
		assert.Equal(t, "./run.yaml", cfg.RunConfigPath)
		assert.Equal(t, "./data/output.csv", cfg.OutputPath)
		assert.Equal(t, "./data/backtests.db", cfg.DBPath)
		assert.True(t, cfg.PersistResults)
		assert.False(t, cfg.DropIncompleteRows)
		assert.Equal(t, 4, cfg.SweepWorkers)
		assert.Equal(t, logger.LevelDebug, cfg.LogLevel)
	})

	t.Run("collects errors", func(t *testing.T) {
		t.Setenv("DATA_PATH", "")
		t.Setenv("PERSIST_RESULTS", "maybe")
		t.Setenv("SWEEP_WORKERS", "0")

		_, err := LoadConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "DATA_PATH must be set")
		assert.Contains(t, err.Error(), "invalid PERSIST_RESULTS")
		assert.Contains(t, err.Error(), "SWEEP_WORKERS must be positive")
	})
}

const sampleRun = `
instrument: NIFTY
start_date: "01/01/2024 09:15:00"
end_date: "31/01/2024 15:30:00"
trade_type: Intraday
allowed_direction: all
trade_start_time: "09:20:00"
trade_end_time: "15:20"
check_fractal: true
check_bb_band: true
check_trail_bb_band: true
trailing_direction: lower
fractal_exit_count: 3
entry_fractal_file_number: 1
exit_fractal_file_number: 2
bb:
  file_number: 3
  column: mean
  sd: 2
trail_bb:
  file_number: 4
  column: upper
  sd: 2.25
strategies:
  - portfolio: F13
    id: "1"
    long_entry: [LONG_A, " LONG_B "]
    short_entry: [SHORT_A]
    long_exit: [LONG_A]
    short_exit: [SHORT_A]
  - portfolio: F14
    id: "2"
    long_entry: [L]
    short_entry: [S]
`

func TestParseRunConfig(t *testing.T) {
	rc, err := ParseRunConfig([]byte(sampleRun))
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, rc.StrategyIDs())

	cfg, err := rc.EngineConfig()
	require.NoError(t, err)
	assert.Equal(t, domain.Intraday, cfg.TradeType)
	assert.Equal(t, domain.AllowAll, cfg.AllowedDirection)
	assert.Equal(t, domain.TrailLower, cfg.TrailingDirection)
	assert.Equal(t, 9*time.Hour+20*time.Minute, cfg.SessionStart)
	assert.Equal(t, 15*time.Hour+20*time.Minute, cfg.SessionEnd)
	assert.Equal(t, 3, cfg.FractalExitCount)
	assert.Equal(t, "bb_P_1_MEAN_BAND_2.0", cfg.BandColumn)
	assert.Equal(t, "trail_P_1_UPPER_BAND_2.25", cfg.TrailBandColumn)

	tags, ok := cfg.Tags("1")
	require.True(t, ok)
	assert.Equal(t, domain.Long, tags.EntryDirection("LONG_B"))
	assert.Equal(t, domain.Short, tags.ExitDirection("SHORT_A"))

	opts, err := rc.LoaderOptions("/data", true)
	require.NoError(t, err)
	assert.Equal(t, "NIFTY", opts.Instrument)
	assert.Equal(t, time.Date(2024, 1, 31, 15, 30, 0, 0, time.UTC), opts.End)
	assert.Equal(t, 1, opts.EntryFractalFile)
	assert.Equal(t, 2, opts.ExitFractalFile)
	assert.Equal(t, 4, opts.TrailBand.Number)
	assert.Equal(t, "P_1_UPPER_BAND_2.25", opts.TrailBand.Column)
	assert.Equal(t, "F14", opts.Strategies[1].Portfolio)
	assert.True(t, opts.DropIncomplete)
}

func TestParseRunConfig_FractalExitCountAll(t *testing.T) {
	rc := &RunConfig{FractalExitCount: "ALL", TradeType: "positional"}
	rc.Strategies = []StrategySpec{{Portfolio: "F13", ID: "1", LongEntry: []string{"L"}}}

	cfg, err := rc.EngineConfig()
	require.NoError(t, err)
	assert.Equal(t, strategy.UnlimitedFractalExits, cfg.FractalExitCount)
	assert.Equal(t, domain.TrailHigher, cfg.TrailingDirection)
	assert.Empty(t, cfg.BandColumn)
}

func TestParseRunConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{name: "empty", yaml: "", want: "empty"},
		{name: "unknown key", yaml: "instrument: NIFTY\nfoo: 1\n", want: "foo"},
		{name: "bad date", yaml: "instrument: NIFTY\nstart_date: '2024-01-01'\nstrategies: [{portfolio: F13, id: '1'}]\n", want: "start_date"},
		{name: "no strategies", yaml: "instrument: NIFTY\n", want: "at least one strategy"},
		{name: "band without file", yaml: "instrument: NIFTY\ncheck_bb_band: true\nentry_fractal_file_number: 1\nstrategies: [{portfolio: F13, id: '1'}]\n", want: "bb.file_number"},
		{name: "duplicate strategy", yaml: "instrument: NIFTY\nstrategies: [{portfolio: F13, id: '1'}, {portfolio: F14, id: '1'}]\n", want: "listed twice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRunConfig([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRunConfig_EngineConfigErrors(t *testing.T) {
	rc, err := ParseRunConfig([]byte(sampleRun))
	require.NoError(t, err)

	rc.TradeType = "swing"
	_, err = rc.EngineConfig()
	assert.Error(t, err)

	rc.TradeType = "intraday"
	rc.TradeEndTime = "late"
	_, err = rc.EngineConfig()
	assert.Error(t, err)
}

func TestLoadRunConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleRun), 0644))

	rc, err := LoadRunConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "NIFTY", rc.Instrument)

	_, err = LoadRunConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestRunConfig_LoadsConfiguredFilesWithChecksOff(t *testing.T) {
	rc, err := ParseRunConfig([]byte(sampleRun))
	require.NoError(t, err)
	rc.CheckFractal, rc.CheckBandEntry, rc.CheckTrailingBand = false, false, false

	opts, err := rc.LoaderOptions("/data", false)
	require.NoError(t, err)
	assert.Equal(t, 1, opts.EntryFractalFile)
	assert.Equal(t, 2, opts.ExitFractalFile)
	assert.Equal(t, 3, opts.EntryBand.Number)
	assert.Equal(t, 4, opts.TrailBand.Number)

	cfg, err := rc.EngineConfig()
	require.NoError(t, err)
	assert.Equal(t, "bb_P_1_MEAN_BAND_2.0", cfg.BandColumn)
	assert.Equal(t, "trail_P_1_UPPER_BAND_2.25", cfg.TrailBandColumn)
}
