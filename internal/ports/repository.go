package ports

import (
	"context"
	"time"

	"fractalTrader/internal/domain"
)

// RunRecord describes one persisted backtest run.
type RunRecord struct {
	ID         string    // UUID assigned when the run is created
	Instrument string    // Instrument the run was executed on
	StartedAt  time.Time // Wall-clock time the run was recorded
	Strategies []string  // Strategy IDs processed, in order
	LegCount   int       // Number of trade legs saved for the run
}

// TradeLegRepository stores and retrieves trade-leg output of backtest runs.
type TradeLegRepository interface {
	// CreateRun registers a new run and returns its assigned ID.
	CreateRun(ctx context.Context, run *RunRecord) (string, error)
	// SaveLegs stores the legs of a run atomically, preserving their order.
	SaveLegs(ctx context.Context, runID string, legs []*domain.TradeLeg) error
	// FindLegsByRun retrieves the legs of a run in the order they were saved.
	// Returns ErrNotFound if the run does not exist.
	FindLegsByRun(ctx context.Context, runID string) ([]*domain.TradeLeg, error)
	// ListRuns retrieves all runs, most recent first.
	ListRuns(ctx context.Context) ([]*RunRecord, error)
}
