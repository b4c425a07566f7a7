package backtesting

import (
	"testing"
	"time"

	"fractalTrader/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDSequence(t *testing.T) {
	var s IDSequence
	assert.Equal(t, int64(0), s.Last())
	assert.Equal(t, int64(1), s.Next())
	assert.Equal(t, int64(2), s.Next())
	assert.Equal(t, int64(2), s.Last())
}

func TestLedger_SameRowEntryAndExit(t *testing.T) {
	var ids IDSequence
	l := NewLedger("S1", 0, &ids)
	r := testRow(0, 100, "BUY")

	opened := l.OnRow(r, EntryDecision{Enter: true, Direction: domain.Long}, ExitDecision{Exit: true, Type: domain.ExitSignal})
	require.NotNil(t, opened)
	assert.True(t, opened.IsClosed())
	assert.Empty(t, l.Active())
	require.Len(t, l.Completed(), 1)
	require.Len(t, opened.Exits, 1)
	assert.Equal(t, 0.0, opened.Exits[0].PNL)
}

func TestLedger_ExitAppliesToAllActive(t *testing.T) {
	var ids IDSequence
	l := NewLedger("S1", 0, &ids)

	l.OnRow(testRow(0, 100, "BUY"), EntryDecision{Enter: true, Direction: domain.Long}, ExitDecision{})
	l.OnRow(testRow(1, 102, "SELL"), EntryDecision{Enter: true, Direction: domain.Short}, ExitDecision{})
	require.Len(t, l.Active(), 2)

	l.OnRow(testRow(2, 104, "SELL"), EntryDecision{}, ExitDecision{Exit: true, Type: domain.ExitFractal})
	assert.Len(t, l.Active(), 2, "fractal legs keep trades open")

	l.OnRow(testRow(3, 101, "BUY"), EntryDecision{}, ExitDecision{Exit: true, Type: domain.ExitTrailing})
	assert.Empty(t, l.Active())

	completed := l.Completed()
	require.Len(t, completed, 2)
	assert.Equal(t, int64(1), completed[0].EntryID)
	assert.Equal(t, int64(2), completed[1].EntryID)
	assert.InDelta(t, 4.0, completed[0].Exits[0].PNL, 1e-9)
	assert.InDelta(t, -2.0, completed[1].Exits[0].PNL, 1e-9)
	assert.InDelta(t, 1.0, completed[1].Exits[1].PNL, 1e-9)
}

func TestLedger_Flush(t *testing.T) {
	var ids IDSequence
	l := NewLedger("S1", 0, &ids)

	l.OnRow(testRow(0, 100, "BUY"), EntryDecision{Enter: true, Direction: domain.Long}, ExitDecision{Exit: true, Type: domain.ExitSignal})
	l.OnRow(testRow(1, 101, "BUY"), EntryDecision{Enter: true, Direction: domain.Long}, ExitDecision{})

	trades := l.Flush()
	require.Len(t, trades, 2)
	assert.True(t, trades[0].IsClosed())
	assert.False(t, trades[1].IsClosed())
	assert.Empty(t, l.Active())
}

func testRow(min int, close float64, tag string) *domain.MarketRow {
	return &domain.MarketRow{
		Time:  time.Date(2024, 1, 2, 9, 15, 0, 0, time.UTC).Add(time.Duration(min) * time.Minute),
		Close: close,
		Tag:   tag,
	}
}
