package ports

import (
	"context"

	"fractalTrader/internal/domain"
)

// Strategy defines the per-row signal logic of one strategy stream.
// Implementations carry state from one row to the next.
type Strategy interface {
	// ShouldEnterTrade decides whether the row opens a trade and in which direction.
	ShouldEnterTrade(ctx context.Context, row *domain.MarketRow) (bool, domain.Direction)

	// ShouldExit decides whether the row exits every active trade and how the exit is classified.
	ShouldExit(ctx context.Context, row *domain.MarketRow) (bool, domain.ExitType)

	// Advance updates trailing per-row state after the row has been applied.
	Advance(row *domain.MarketRow)
}
