package ports

import (
	"context"

	"fractalTrader/internal/domain"
)

// StrategyStream is the ordered row series of one strategy.
type StrategyStream struct {
	StrategyID string
	Rows       []*domain.MarketRow
}

// RowSource produces the merged, time-ordered row streams of a run.
type RowSource interface {
	// Load returns one stream per configured strategy, in configuration order.
	Load(ctx context.Context) ([]StrategyStream, error)
	// Feeds reports which indicator feeds the loaded rows carry.
	Feeds() domain.Feeds
}
