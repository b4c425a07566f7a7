package app

import (
	"context"
	"fmt"
	"time"

	"fractalTrader/config"
	"fractalTrader/internal/domain"
	"fractalTrader/internal/ports"
	"fractalTrader/internal/strategy"
	"fractalTrader/internal/strategy/analytics"
	"fractalTrader/internal/strategy/backtesting"
	"fractalTrader/internal/strategy/optimization"
	"fractalTrader/internal/utils"
)

// Report is the outcome of one backtest run.
type Report struct {
	RunID   string // empty when results are not persisted
	Result  *backtesting.Result
	Legs    []*domain.TradeLeg
	Summary *analytics.Summary
}

// BacktestService orchestrates loading, running, persisting and summarizing a backtest.
type BacktestService struct {
	cfg        *config.Config
	logger     ports.Logger
	source     ports.RowSource
	repo       ports.TradeLegRepository // optional
	engineCfg  *strategy.Config
	instrument string
	now        func() time.Time
}

// NewBacktestService creates a new application service instance.
// repo may be nil, in which case legs are only written to the output CSV.
func NewBacktestService(
	cfg *config.Config,
	logger ports.Logger,
	source ports.RowSource,
	repo ports.TradeLegRepository,
	engineCfg *strategy.Config,
	instrument string,
) (*BacktestService, error) {
	if cfg == nil || logger == nil || source == nil || engineCfg == nil {
		return nil, fmt.Errorf("missing required dependencies for BacktestService")
	}
	if instrument == "" {
		return nil, fmt.Errorf("%w: instrument must be set", ports.ErrConfigurationError)
	}
	return &BacktestService{
		cfg:        cfg,
		logger:     logger,
		source:     source,
		repo:       repo,
		engineCfg:  engineCfg,
		instrument: instrument,
		now:        time.Now,
	}, nil
}

// Run loads the strategy streams, runs them through one engine and emits the legs.
func (s *BacktestService) Run(ctx context.Context) (*Report, error) {
	s.logger.Info(ctx, "Starting backtest", map[string]interface{}{"instrument": s.instrument})

	if err := s.engineCfg.CheckFeeds(s.source.Feeds()); err != nil {
		s.logger.Error(ctx, err, "Run configuration does not match loaded feeds")
		return nil, err
	}
	streams, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	engine, err := backtesting.NewEngine(s.engineCfg, s.logger)
	if err != nil {
		s.logger.Error(ctx, err, "Failed to create backtest engine")
		return nil, fmt.Errorf("create engine: %w", err)
	}
	result, err := engine.RunAll(ctx, streams)
	if err != nil {
		s.logger.Error(ctx, err, "Backtest failed")
		return nil, fmt.Errorf("run backtest: %w", err)
	}

	report := &Report{Result: result, Legs: result.Legs(s.instrument)}
	report.Summary = analytics.Summarize(report.Legs)

	if s.repo != nil && s.cfg.PersistResults {
		if report.RunID, err = s.persist(ctx, streams, report.Legs); err != nil {
			return nil, err
		}
	}

	if s.cfg.OutputPath != "" {
		if err := utils.WriteTradeLegsToCSV(report.Legs, s.cfg.OutputPath); err != nil {
			s.logger.Error(ctx, err, "Failed to write trade legs", map[string]interface{}{"path": s.cfg.OutputPath})
			return nil, fmt.Errorf("write output: %w", err)
		}
	}

	s.logger.Info(ctx, "Backtest completed", map[string]interface{}{
		"run":       report.RunID,
		"rows":      result.RowsProcessed,
		"trades":    result.TotalTrades,
		"openAtEnd": result.OpenAtEnd,
		"legs":      len(report.Legs),
		"netPoints": report.Summary.Total.NetPoints,
	})
	return report, nil
}

// Sweep loads the streams once and runs every parameter combination on them.
func (s *BacktestService) Sweep(ctx context.Context, ranges []optimization.ParameterRange) ([]optimization.OptimizationResult, error) {
	streams, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	opt, err := optimization.NewOptimizer(optimization.OptimizerConfig{
		Base:            s.engineCfg,
		ParameterRanges: ranges,
		Instrument:      s.instrument,
		Feeds:           s.source.Feeds(),
		Workers:         s.cfg.SweepWorkers,
		Logger:          s.logger,
	})
	if err != nil {
		return nil, err
	}
	results, err := opt.Optimize(ctx, streams)
	if err != nil {
		s.logger.Error(ctx, err, "Sweep failed")
		return nil, fmt.Errorf("sweep: %w", err)
	}
	return results, nil
}

func (s *BacktestService) load(ctx context.Context) ([]ports.StrategyStream, error) {
	streams, err := s.source.Load(ctx)
	if err != nil {
		s.logger.Error(ctx, err, "Failed to load strategy streams")
		return nil, fmt.Errorf("load streams: %w", err)
	}
	return streams, nil
}

func (s *BacktestService) persist(ctx context.Context, streams []ports.StrategyStream, legs []*domain.TradeLeg) (string, error) {
	ids := make([]string, len(streams))
	for i, st := range streams {
		ids[i] = st.StrategyID
	}
	runID, err := s.repo.CreateRun(ctx, &ports.RunRecord{
		Instrument: s.instrument,
		StartedAt:  s.now().UTC(),
		Strategies: ids,
	})
	if err != nil {
		s.logger.Error(ctx, err, "Failed to record backtest run")
		return "", fmt.Errorf("create run: %w", err)
	}
	if err := s.repo.SaveLegs(ctx, runID, legs); err != nil {
		s.logger.Error(ctx, err, "Failed to save trade legs", map[string]interface{}{"run": runID})
		return "", fmt.Errorf("save legs: %w", err)
	}
	return runID, nil
}
