package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fractalTrader/config"
	"fractalTrader/internal/domain"
	"fractalTrader/internal/ports"
	"fractalTrader/internal/strategy"
	"fractalTrader/internal/strategy/optimization"
	"fractalTrader/internal/utils"
)

// Mock implementations
type mockLogger struct {
	debugMsgs []string
	infoMsgs  []string
	warnMsgs  []string
	errorMsgs []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.debugMsgs = append(m.debugMsgs, msg)
}

func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.infoMsgs = append(m.infoMsgs, msg)
}

func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.warnMsgs = append(m.warnMsgs, msg)
}

func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	m.errorMsgs = append(m.errorMsgs, msg)
}

type mockSource struct {
	streams []ports.StrategyStream
	err     error
	feeds   *domain.Feeds // nil reports every feed
}

func (m *mockSource) Load(ctx context.Context) ([]ports.StrategyStream, error) {
	return m.streams, m.err
}

func (m *mockSource) Feeds() domain.Feeds {
	if m.feeds != nil {
		return *m.feeds
	}
	return domain.Feeds{EntryFractal: true, ExitFractal: true, EntryBand: true, TrailBand: true}
}

type mockRepo struct {
	runs      []*ports.RunRecord
	legs      map[string][]*domain.TradeLeg
	createErr error
	saveErr   error
}

func (m *mockRepo) CreateRun(ctx context.Context, run *ports.RunRecord) (string, error) {
	if m.createErr != nil {
		return "", m.createErr
	}
	run.ID = "run-1"
	m.runs = append(m.runs, run)
	return run.ID, nil
}

func (m *mockRepo) SaveLegs(ctx context.Context, runID string, legs []*domain.TradeLeg) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	if m.legs == nil {
		m.legs = make(map[string][]*domain.TradeLeg)
	}
	m.legs[runID] = append(m.legs[runID], legs...)
	return nil
}

func (m *mockRepo) FindLegsByRun(ctx context.Context, runID string) ([]*domain.TradeLeg, error) {
	legs, ok := m.legs[runID]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return legs, nil
}

func (m *mockRepo) ListRuns(ctx context.Context) ([]*ports.RunRecord, error) {
	return m.runs, nil
}

var t0 = time.Date(2024, 1, 2, 9, 15, 0, 0, time.UTC)

// stream yields one long trade: entry 102, signal exit 108.
func stream(id string) ports.StrategyStream {
	closes := []float64{100, 102, 105, 108, 104}
	tags := []string{"BUY", "BUY", "BUY", "SELL", "SELL"}
	rows := make([]*domain.MarketRow, len(closes))
	for i := range closes {
		rows[i] = &domain.MarketRow{Time: t0.Add(time.Duration(i) * time.Minute), Close: closes[i], Tag: tags[i]}
	}
	rows[0].EntryFractal = domain.FractalFlags{Long: true}
	rows[1].EntryFractal = domain.FractalFlags{ConfirmedLong: true}
	return ports.StrategyStream{StrategyID: id, Rows: rows}
}

func engineConfig() *strategy.Config {
	tags := strategy.NewTagSets([]string{"BUY"}, []string{"SELL"}, []string{"BUY"}, []string{"SELL"})
	return &strategy.Config{
		TradeType:         domain.Positional,
		AllowedDirection:  domain.AllowAll,
		TrailingDirection: domain.TrailHigher,
		CheckFractal:      true,
		Signals:           map[string]strategy.TagSets{"1": tags, "2": tags},
	}
}

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		OutputPath:     filepath.Join(t.TempDir(), "out", "legs.csv"),
		PersistResults: true,
		SweepWorkers:   2,
	}
}

func TestNewBacktestService(t *testing.T) {
	cfg := testConfig(t)
	src := &mockSource{}

	_, err := NewBacktestService(cfg, &mockLogger{}, src, nil, engineConfig(), "NIFTY")
	assert.NoError(t, err, "repository is optional")

	_, err = NewBacktestService(nil, &mockLogger{}, src, nil, engineConfig(), "NIFTY")
	assert.Error(t, err)
	_, err = NewBacktestService(cfg, &mockLogger{}, nil, nil, engineConfig(), "NIFTY")
	assert.Error(t, err)
	_, err = NewBacktestService(cfg, &mockLogger{}, src, nil, engineConfig(), "")
	assert.ErrorIs(t, err, ports.ErrConfigurationError)
}

func TestBacktestService_Run(t *testing.T) {
	cfg := testConfig(t)
	log := &mockLogger{}
	repo := &mockRepo{}
	src := &mockSource{streams: []ports.StrategyStream{stream("1"), stream("2")}}

	svc, err := NewBacktestService(cfg, log, src, repo, engineConfig(), "NIFTY")
	require.NoError(t, err)
	svc.now = func() time.Time { return t0 }

	report, err := svc.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Legs, 2)
	assert.Equal(t, "run-1", report.RunID)
	assert.Equal(t, int64(1), report.Legs[0].EntryID)
	assert.Equal(t, int64(2), report.Legs[1].EntryID)
	assert.Equal(t, "NIFTY", report.Legs[0].Instrument)
	assert.InDelta(t, 12.0, report.Summary.Total.NetPoints, 1e-9)

	require.Len(t, repo.runs, 1)
	assert.Equal(t, []string{"1", "2"}, repo.runs[0].Strategies)
	assert.True(t, repo.runs[0].StartedAt.Equal(t0))
	assert.Len(t, repo.legs["run-1"], 2)

	written, err := utils.ReadTradeLegsFromCSV(cfg.OutputPath)
	require.NoError(t, err)
	assert.Len(t, written, 2)
	assert.Contains(t, log.infoMsgs, "Backtest completed")
}

func TestBacktestService_RunWithoutPersistence(t *testing.T) {
	cfg := testConfig(t)
	cfg.PersistResults = false
	repo := &mockRepo{}

	svc, err := NewBacktestService(cfg, &mockLogger{}, &mockSource{streams: []ports.StrategyStream{stream("1")}}, repo, engineConfig(), "NIFTY")
	require.NoError(t, err)

	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.RunID)
	assert.Empty(t, repo.runs)
	assert.FileExists(t, cfg.OutputPath)
}

func TestBacktestService_RunErrors(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name   string
		source *mockSource
		repo   *mockRepo
		want   error
	}{
		{name: "load", source: &mockSource{err: ports.ErrMalformedInput}, repo: &mockRepo{}, want: ports.ErrMalformedInput},
		{name: "invalid stream", source: &mockSource{streams: []ports.StrategyStream{{StrategyID: "1", Rows: []*domain.MarketRow{{Time: t0, Close: 1}}}}}, repo: &mockRepo{}, want: ports.ErrMissingField},
		{name: "create run", source: &mockSource{streams: []ports.StrategyStream{stream("1")}}, repo: &mockRepo{createErr: boom}, want: boom},
		{name: "save legs", source: &mockSource{streams: []ports.StrategyStream{stream("1")}}, repo: &mockRepo{saveErr: boom}, want: boom},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := &mockLogger{}
			cfg := testConfig(t)
			svc, err := NewBacktestService(cfg, log, tt.source, tt.repo, engineConfig(), "NIFTY")
			require.NoError(t, err)

			_, err = svc.Run(context.Background())
			assert.ErrorIs(t, err, tt.want)
			assert.NotEmpty(t, log.errorMsgs)
			assert.NoFileExists(t, cfg.OutputPath)
		})
	}
}

func TestBacktestService_Sweep(t *testing.T) {
	svc, err := NewBacktestService(testConfig(t), &mockLogger{}, &mockSource{streams: []ports.StrategyStream{stream("1")}}, nil, engineConfig(), "NIFTY")
	require.NoError(t, err)

	results, err := svc.Sweep(context.Background(), []optimization.ParameterRange{
		{Name: optimization.ParamAllowedDirection, Choices: []string{"short", "long"}},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "long", results[0].Parameters[optimization.ParamAllowedDirection])
	assert.InDelta(t, 6.0, results[0].Score, 1e-9)
}

func TestBacktestService_MissingFeeds(t *testing.T) {
	src := &mockSource{streams: []ports.StrategyStream{stream("1")}, feeds: &domain.Feeds{}}
	log := &mockLogger{}
	svc, err := NewBacktestService(testConfig(t), log, src, nil, engineConfig(), "NIFTY")
	require.NoError(t, err)

	_, err = svc.Run(context.Background())
	assert.ErrorIs(t, err, ports.ErrConfigurationError)
	assert.NotEmpty(t, log.errorMsgs)

	_, err = svc.Sweep(context.Background(), nil)
	assert.ErrorIs(t, err, ports.ErrConfigurationError)
}
