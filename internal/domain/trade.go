package domain

import "time"

// ExitLeg is one recorded exit event against a trade.
type ExitLeg struct {
	ExitID   int       // 1-based ordinal of the exit attempt within its trade
	ExitTime time.Time // Timestamp of the row that triggered the exit
	Price    float64   // Close price of that row
	Type     ExitType
	PNL      float64 // Realized points, sign adjusted for direction
}

// Trade is a single position: one entry and zero or more exit legs.
type Trade struct {
	EntryID    int64 // Globally unique within a run
	StrategyID string
	Direction  Direction
	EntryTime  time.Time
	EntryPrice float64
	Exits      []ExitLeg

	closed      bool
	exitCounter int
}

// NewTrade opens a trade.
func NewTrade(entryID int64, strategyID string, dir Direction, row *MarketRow) *Trade {
	return &Trade{
		EntryID:    entryID,
		StrategyID: strategyID,
		Direction:  dir,
		EntryTime:  row.Time,
		EntryPrice: row.Close,
	}
}

// IsClosed reports whether a terminal leg has been applied.
func (t *Trade) IsClosed() bool {
	return t.closed
}

// ExitAttempts returns how many exit events reached the trade while open.
func (t *Trade) ExitAttempts() int {
	return t.exitCounter
}

// CalculatePNL returns the realized points of an exit at exitPrice.
func (t *Trade) CalculatePNL(exitPrice float64) float64 {
	if t.Direction == Short {
		return t.EntryPrice - exitPrice
	}
	return exitPrice - t.EntryPrice
}

// AddExit applies an exit event to the trade.
//
// A closed trade ignores the event. Every event on an open trade advances the
// exit counter. With fractalExitCount > 0 a FRACTAL event is recorded only when
// the counter equals it; with 0 every FRACTAL event is recorded. Terminal
// types are always recorded and close the trade. It reports whether a leg was
// recorded.
func (t *Trade) AddExit(at time.Time, price float64, exitType ExitType, fractalExitCount int) bool {
	if t.closed {
		return false
	}
	t.exitCounter++

	if exitType.IsTerminal() {
		t.closed = true
	}
	if exitType == ExitFractal && fractalExitCount > 0 && t.exitCounter != fractalExitCount {
		return false
	}

	t.Exits = append(t.Exits, ExitLeg{
		ExitID:   t.exitCounter,
		ExitTime: at,
		Price:    price,
		Type:     exitType,
		PNL:      t.CalculatePNL(price),
	})
	return true
}

// Legs flattens the trade into one output record per recorded exit leg.
// A trade with no recorded legs yields no records.
func (t *Trade) Legs(instrument string) []*TradeLeg {
	legs := make([]*TradeLeg, 0, len(t.Exits))
	for _, e := range t.Exits {
		legs = append(legs, &TradeLeg{
			Instrument: instrument,
			StrategyID: t.StrategyID,
			Direction:  t.Direction,
			EntryTime:  t.EntryTime,
			EntryID:    t.EntryID,
			EntryPrice: t.EntryPrice,
			ExitID:     e.ExitID,
			ExitTime:   e.ExitTime,
			ExitType:   e.Type,
			ExitPrice:  e.Price,
			PNL:        e.PNL,
		})
	}
	return legs
}

// TradeLeg is the output record: entry metadata plus one exit leg.
type TradeLeg struct {
	ID         int64 // Storage identifier, 0 until persisted
	RunID      string
	Instrument string
	StrategyID string
	Direction  Direction
	EntryTime  time.Time
	EntryID    int64
	EntryPrice float64
	ExitID     int
	ExitTime   time.Time
	ExitType   ExitType
	ExitPrice  float64
	PNL        float64
}

// HoldingDuration is the time between entry and this exit.
func (l *TradeLeg) HoldingDuration() time.Duration {
	return l.ExitTime.Sub(l.EntryTime)
}
