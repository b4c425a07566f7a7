package backtesting

import (
	"time"

	"fractalTrader/internal/domain"
)

// IDSequence hands out entry IDs. One sequence spans a whole run, across strategies.
type IDSequence struct {
	last int64
}

// Next returns the next entry ID, starting at 1.
func (s *IDSequence) Next() int64 {
	s.last++
	return s.last
}

// Last returns the most recently issued ID, 0 if none.
func (s *IDSequence) Last() int64 {
	return s.last
}

// EntryDecision is the outcome of entry detection for one row.
type EntryDecision struct {
	Enter     bool
	Direction domain.Direction
}

// ExitDecision is the outcome of exit detection for one row.
type ExitDecision struct {
	Exit bool
	Type domain.ExitType
}

// Ledger owns the active and completed trades of one strategy stream.
type Ledger struct {
	strategyID       string
	fractalExitCount int
	ids              *IDSequence

	active    []*domain.Trade
	completed []*domain.Trade
}

// NewLedger creates a ledger drawing entry IDs from ids.
func NewLedger(strategyID string, fractalExitCount int, ids *IDSequence) *Ledger {
	return &Ledger{
		strategyID:       strategyID,
		fractalExitCount: fractalExitCount,
		ids:              ids,
	}
}

// OnRow applies the row's decisions: a positive entry opens a trade, then a
// positive exit is applied to every active trade, the new one included.
// It returns the trade opened on this row, if any.
func (l *Ledger) OnRow(row *domain.MarketRow, entry EntryDecision, exit ExitDecision) *domain.Trade {
	var opened *domain.Trade
	if entry.Enter {
		opened = domain.NewTrade(l.ids.Next(), l.strategyID, entry.Direction, row)
		l.active = append(l.active, opened)
	}
	if exit.Exit {
		l.applyExit(row.Time, row.Close, exit.Type)
	}
	return opened
}

// applyExit gives every active trade the same exit event and moves the ones
// it closes to the completed list, in active order.
func (l *Ledger) applyExit(at time.Time, price float64, exitType domain.ExitType) {
	remaining := l.active[:0]
	for _, t := range l.active {
		t.AddExit(at, price, exitType, l.fractalExitCount)
		if t.IsClosed() {
			l.completed = append(l.completed, t)
			continue
		}
		remaining = append(remaining, t)
	}
	// Clear the tail so dropped pointers can be collected.
	for i := len(remaining); i < len(l.active); i++ {
		l.active[i] = nil
	}
	l.active = remaining
}

// Active returns the trades still open.
func (l *Ledger) Active() []*domain.Trade {
	return l.active
}

// Completed returns the trades closed so far, in closing order.
func (l *Ledger) Completed() []*domain.Trade {
	return l.completed
}

// Flush appends the still-active trades to the completed list as they are and
// returns the completed list. The ledger has no active trades afterwards.
func (l *Ledger) Flush() []*domain.Trade {
	l.completed = append(l.completed, l.active...)
	l.active = nil
	return l.completed
}
