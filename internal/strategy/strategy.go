package strategy

import (
	"context"
	"fmt"

	"fractalTrader/internal/domain"
	"fractalTrader/internal/ports"
)

// Strategy implements ports.Strategy for one strategy stream. It owns the entry
// and exit memories of that stream; create one per stream per run.
type Strategy struct {
	id       string
	cfg      *Config
	logger   ports.Logger
	entry    *EntryDetector
	exit     *ExitDetector
	entryMem FractalMemory
	exitMem  ExitMemory
}

// Compile-time interface check.
var _ ports.Strategy = (*Strategy)(nil)

// New creates a new Strategy instance for strategyID.
func New(cfg *Config, strategyID string, logger ports.Logger) (*Strategy, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for strategy")
	}
	if cfg == nil {
		return nil, fmt.Errorf("%w: strategy config is nil", ports.ErrConfigurationError)
	}
	if _, ok := cfg.Tags(strategyID); !ok {
		return nil, fmt.Errorf("%w: no tag sets for strategy %s", ports.ErrConfigurationError, strategyID)
	}
	return &Strategy{
		id:     strategyID,
		cfg:    cfg,
		logger: logger,
		entry:  NewEntryDetector(cfg),
		exit:   NewExitDetector(cfg),
	}, nil
}

// ID returns the strategy ID the instance was created for.
func (s *Strategy) ID() string {
	return s.id
}

// ShouldEnterTrade implements the logic to decide if a trade should be entered.
func (s *Strategy) ShouldEnterTrade(ctx context.Context, row *domain.MarketRow) (bool, domain.Direction) {
	ok, dir := s.entry.Decide(row, &s.entryMem, s.id)
	if ok {
		s.logger.Debug(ctx, "Entry conditions met", map[string]interface{}{
			"strategy":  s.id,
			"time":      row.Time,
			"tag":       row.Tag,
			"direction": dir,
			"close":     row.Close,
		})
	}
	return ok, dir
}

// ShouldExit implements the logic to decide if the active trades should exit.
func (s *Strategy) ShouldExit(ctx context.Context, row *domain.MarketRow) (bool, domain.ExitType) {
	ok, exitType := s.exit.Decide(row, &s.exitMem, s.id)
	if ok {
		s.logger.Debug(ctx, "Exit conditions met", map[string]interface{}{
			"strategy": s.id,
			"time":     row.Time,
			"tag":      row.Tag,
			"exitType": exitType,
			"close":    row.Close,
		})
	}
	return ok, exitType
}

// Advance remembers the row's tag for the next tag-change check.
func (s *Strategy) Advance(row *domain.MarketRow) {
	s.exitMem.RememberTag(row.Tag)
}
