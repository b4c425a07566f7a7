package sqlite

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"fractalTrader/internal/domain"
	"fractalTrader/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

// setupTestDB creates a temporary database for testing
func setupTestDB(t *testing.T) *Repository {
	t.Helper()

	repo, err := NewRepository(Config{
		DBPath: filepath.Join(t.TempDir(), "nested", "test.db"),
		Logger: &mockLogger{},
	})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func sampleLegs() []*domain.TradeLeg {
	entry := time.Date(2024, 1, 2, 9, 20, 0, 0, time.UTC)
	return []*domain.TradeLeg{
		{
			Instrument: "NIFTY", StrategyID: "S1", Direction: domain.Long,
			EntryTime: entry, EntryID: 1, EntryPrice: 100,
			ExitID: 2, ExitTime: entry.Add(10 * time.Minute), ExitType: domain.ExitFractal, ExitPrice: 104, PNL: 4,
		},
		{
			Instrument: "NIFTY", StrategyID: "S1", Direction: domain.Long,
			EntryTime: entry, EntryID: 1, EntryPrice: 100,
			ExitID: 3, ExitTime: entry.Add(20 * time.Minute), ExitType: domain.ExitSignal, ExitPrice: 98, PNL: -2,
		},
		{
			Instrument: "NIFTY", StrategyID: "S2", Direction: domain.Short,
			EntryTime: entry.Add(time.Minute), EntryID: 2, EntryPrice: 101,
			ExitID: 1, ExitTime: entry.Add(30 * time.Minute), ExitType: domain.ExitSessionEnd, ExitPrice: 95, PNL: 6,
		},
	}
}

func TestNewRepository_RequiresLogger(t *testing.T) {
	_, err := NewRepository(Config{DBPath: filepath.Join(t.TempDir(), "x.db")})
	assert.Error(t, err)
}

func TestRepository_SaveAndFindLegs(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	runID, err := repo.CreateRun(ctx, &ports.RunRecord{Instrument: "NIFTY", Strategies: []string{"S1", "S2"}})
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	legs := sampleLegs()
	require.NoError(t, repo.SaveLegs(ctx, runID, legs))
	for _, l := range legs {
		assert.NotZero(t, l.ID)
		assert.Equal(t, runID, l.RunID)
	}

	got, err := repo.FindLegsByRun(ctx, runID)
	require.NoError(t, err)
	require.Len(t, got, len(legs))
	for i := range legs {
		assert.Equal(t, legs[i].ID, got[i].ID)
		assert.Equal(t, legs[i].StrategyID, got[i].StrategyID)
		assert.Equal(t, legs[i].Direction, got[i].Direction)
		assert.Equal(t, legs[i].ExitType, got[i].ExitType)
		assert.Equal(t, legs[i].EntryID, got[i].EntryID)
		assert.Equal(t, legs[i].ExitID, got[i].ExitID)
		assert.InDelta(t, legs[i].PNL, got[i].PNL, 1e-9)
		assert.True(t, legs[i].ExitTime.Equal(got[i].ExitTime), "exit time of leg %d", i)
	}

	total, err := repo.TotalPNL(ctx, runID)
	require.NoError(t, err)
	assert.InDelta(t, 8.0, total, 1e-9)
}

func TestRepository_SaveLegsAppends(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	runID, err := repo.CreateRun(ctx, &ports.RunRecord{Instrument: "NIFTY"})
	require.NoError(t, err)

	legs := sampleLegs()
	require.NoError(t, repo.SaveLegs(ctx, runID, legs[:1]))
	require.NoError(t, repo.SaveLegs(ctx, runID, legs[1:]))

	got, err := repo.FindLegsByRun(ctx, runID)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 2, got[0].ExitID)
	assert.Equal(t, "S2", got[2].StrategyID)

	runs, err := repo.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 3, runs[0].LegCount)
}

func TestRepository_SaveLegsRollback(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	runID, err := repo.CreateRun(ctx, &ports.RunRecord{Instrument: "NIFTY", Strategies: []string{"S1"}})
	require.NoError(t, err)

	legs := sampleLegs()
	legs[2].PNL = math.NaN() // stored as NULL, rejected by the NOT NULL constraint
	err = repo.SaveLegs(ctx, runID, legs)
	assert.ErrorIs(t, err, ports.ErrQueryFailed)
	for _, l := range legs {
		assert.Zero(t, l.ID, "no storage ID after rollback")
		assert.Empty(t, l.RunID)
	}

	got, err := repo.FindLegsByRun(ctx, runID)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRepository_UnknownRun(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	_, err := repo.FindLegsByRun(ctx, "missing")
	assert.ErrorIs(t, err, ports.ErrNotFound)

	err = repo.SaveLegs(ctx, "missing", sampleLegs())
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestRepository_CreateRun(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	_, err := repo.CreateRun(ctx, nil)
	assert.ErrorIs(t, err, ports.ErrInvalidRequest)

	older := &ports.RunRecord{
		ID: "run-a", Instrument: "NIFTY", Strategies: []string{"S1"},
		StartedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	newer := &ports.RunRecord{
		Instrument: "BANKNIFTY", Strategies: []string{"S1", "S2"},
		StartedAt: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
	}
	_, err = repo.CreateRun(ctx, older)
	require.NoError(t, err)
	newID, err := repo.CreateRun(ctx, newer)
	require.NoError(t, err)
	assert.Len(t, newID, 36, "generated run IDs are UUIDs")

	_, err = repo.CreateRun(ctx, &ports.RunRecord{ID: "run-a", Instrument: "NIFTY"})
	assert.ErrorIs(t, err, ports.ErrDuplicateEntry)

	runs, err := repo.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, newID, runs[0].ID)
	assert.Equal(t, []string{"S1", "S2"}, runs[0].Strategies)
	assert.Equal(t, "run-a", runs[1].ID)
}
