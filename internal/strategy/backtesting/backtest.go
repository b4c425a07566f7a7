package backtesting

import (
	"context"
	"fmt"
	"math"

	"fractalTrader/internal/domain"
	"fractalTrader/internal/ports"
	"fractalTrader/internal/strategy"
)

// StrategyFactory builds the per-stream signal logic.
type StrategyFactory func(cfg *strategy.Config, strategyID string, logger ports.Logger) (ports.Strategy, error)

func defaultFactory(cfg *strategy.Config, strategyID string, logger ports.Logger) (ports.Strategy, error) {
	return strategy.New(cfg, strategyID, logger)
}

// Result holds the trades of a run.
type Result struct {
	Trades        []*domain.Trade // completed trades, then trades still open at end, per strategy
	Warnings      []error         // configuration hazards
	RowsProcessed int
	TotalTrades   int
	ClosedTrades  int
	OpenAtEnd     int
}

// Legs flattens the trades into output records, one per recorded exit leg.
// Trades without recorded legs produce no records.
func (r *Result) Legs(instrument string) []*domain.TradeLeg {
	var legs []*domain.TradeLeg
	for _, t := range r.Trades {
		legs = append(legs, t.Legs(instrument)...)
	}
	return legs
}

func (r *Result) merge(other *Result) {
	r.Trades = append(r.Trades, other.Trades...)
	r.RowsProcessed += other.RowsProcessed
	r.TotalTrades += other.TotalTrades
	r.ClosedTrades += other.ClosedTrades
	r.OpenAtEnd += other.OpenAtEnd
}

// Engine runs the trade lifecycle over strategy streams. Entry IDs are unique
// across every stream run through the same Engine.
type Engine struct {
	cfg     *strategy.Config
	logger  ports.Logger
	factory StrategyFactory
	ids     IDSequence
	hazards []error
}

// NewEngine validates cfg and creates an engine. Configuration hazards are
// logged and reported on every Result.
func NewEngine(cfg *strategy.Config, logger ports.Logger) (*Engine, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for backtest engine")
	}
	if cfg == nil {
		return nil, fmt.Errorf("%w: engine config is nil", ports.ErrConfigurationError)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{cfg: cfg, logger: logger, factory: defaultFactory, hazards: cfg.Hazards()}
	for _, h := range e.hazards {
		logger.Warn(context.Background(), "Configuration hazard", map[string]interface{}{"hazard": h.Error()})
	}
	return e, nil
}

// Run processes one strategy stream. The stream is validated before any row
// is applied; an invalid stream yields an error and no trades.
func (e *Engine) Run(ctx context.Context, strategyID string, rows []*domain.MarketRow) (*Result, error) {
	if err := e.validateRows(strategyID, rows); err != nil {
		return nil, err
	}
	strat, err := e.factory(e.cfg, strategyID, e.logger)
	if err != nil {
		return nil, fmt.Errorf("create strategy %s: %w", strategyID, err)
	}
	res := e.run(ctx, strat, strategyID, rows)
	res.Warnings = e.hazards
	return res, nil
}

// RunAll processes the streams sequentially, in order. Every stream is
// validated before the first one runs.
func (e *Engine) RunAll(ctx context.Context, streams []ports.StrategyStream) (*Result, error) {
	for _, s := range streams {
		if err := e.validateRows(s.StrategyID, s.Rows); err != nil {
			return nil, err
		}
	}

	total := &Result{}
	for _, s := range streams {
		strat, err := e.factory(e.cfg, s.StrategyID, e.logger)
		if err != nil {
			return nil, fmt.Errorf("create strategy %s: %w", s.StrategyID, err)
		}
		total.merge(e.run(ctx, strat, s.StrategyID, s.Rows))
	}
	total.Warnings = e.hazards
	return total, nil
}

func (e *Engine) run(ctx context.Context, strat ports.Strategy, strategyID string, rows []*domain.MarketRow) *Result {
	ledger := NewLedger(strategyID, e.cfg.FractalExitCount, &e.ids)

	for _, row := range rows {
		enter, dir := strat.ShouldEnterTrade(ctx, row)
		exit, exitType := strat.ShouldExit(ctx, row)

		if opened := ledger.OnRow(row, EntryDecision{Enter: enter, Direction: dir}, ExitDecision{Exit: exit, Type: exitType}); opened != nil {
			e.logger.Debug(ctx, "Trade opened", map[string]interface{}{
				"strategy":  strategyID,
				"entryID":   opened.EntryID,
				"direction": opened.Direction,
				"price":     opened.EntryPrice,
				"time":      opened.EntryTime,
			})
		}
		strat.Advance(row)
	}

	closed := len(ledger.Completed())
	openAtEnd := len(ledger.Active())
	trades := ledger.Flush()

	e.logger.Info(ctx, "Strategy run completed", map[string]interface{}{
		"strategy":  strategyID,
		"rows":      len(rows),
		"trades":    len(trades),
		"closed":    closed,
		"openAtEnd": openAtEnd,
	})

	return &Result{
		Trades:        trades,
		RowsProcessed: len(rows),
		TotalTrades:   len(trades),
		ClosedTrades:  closed,
		OpenAtEnd:     openAtEnd,
	}
}

// validateRows rejects streams the engine cannot process faithfully.
func (e *Engine) validateRows(strategyID string, rows []*domain.MarketRow) error {
	for i, row := range rows {
		if row == nil {
			return fmt.Errorf("strategy %s row %d: %w: nil row", strategyID, i, ports.ErrMissingField)
		}
		if row.Time.IsZero() {
			return fmt.Errorf("strategy %s row %d: %w: timestamp", strategyID, i, ports.ErrMissingField)
		}
		if row.Tag == "" {
			return fmt.Errorf("strategy %s row %d (%s): %w: tag", strategyID, i, row.Time, ports.ErrMissingField)
		}
		if math.IsNaN(row.Close) {
			return fmt.Errorf("strategy %s row %d (%s): %w: close", strategyID, i, row.Time, ports.ErrMissingField)
		}
		if e.cfg.CheckBandEntry && !hasBand(row, e.cfg.BandColumn) {
			return fmt.Errorf("strategy %s row %d (%s): %w: band %s", strategyID, i, row.Time, ports.ErrMissingField, e.cfg.BandColumn)
		}
		if e.cfg.CheckTrailingBand && !hasBand(row, e.cfg.TrailBandColumn) {
			return fmt.Errorf("strategy %s row %d (%s): %w: band %s", strategyID, i, row.Time, ports.ErrMissingField, e.cfg.TrailBandColumn)
		}
		if i > 0 && !row.Time.After(rows[i-1].Time) {
			return fmt.Errorf("strategy %s row %d (%s after %s): %w", strategyID, i, row.Time, rows[i-1].Time, ports.ErrNonMonotonicTimestamps)
		}
	}
	return nil
}

func hasBand(row *domain.MarketRow, column string) bool {
	v, ok := row.Band(column)
	return ok && !math.IsNaN(v)
}
