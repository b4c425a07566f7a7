package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fractalTrader/internal/domain"
	"fractalTrader/internal/ports"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements ports.TradeLegRepository using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

var _ ports.TradeLegRepository = (*Repository)(nil)

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/backtests.db"
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w: %v", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w: %v", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// One writer at a time; the driver serializes on this connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	repo := &Repository{db: db, logger: cfg.Logger}
	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "SQLite backtest store ready", map[string]interface{}{"path": dbPath})

	return repo, nil
}

func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS backtest_runs (
		id TEXT PRIMARY KEY,
		instrument TEXT NOT NULL,
		started_at TIMESTAMP NOT NULL,
		strategies TEXT NOT NULL,
		leg_count INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS trade_legs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES backtest_runs(id),
		seq INTEGER NOT NULL,
		instrument TEXT NOT NULL,
		strategy_id TEXT NOT NULL,
		direction TEXT NOT NULL,
		entry_time TIMESTAMP NOT NULL,
		entry_id INTEGER NOT NULL,
		entry_price REAL NOT NULL,
		exit_id INTEGER NOT NULL,
		exit_time TIMESTAMP NOT NULL,
		exit_type TEXT NOT NULL,
		exit_price REAL NOT NULL,
		pnl REAL NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_trade_legs_run_seq ON trade_legs (run_id, seq);
	CREATE INDEX IF NOT EXISTS idx_trade_legs_strategy ON trade_legs (run_id, strategy_id);
	`
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// CreateRun registers a run. A run without an ID gets a new UUID.
func (r *Repository) CreateRun(ctx context.Context, run *ports.RunRecord) (string, error) {
	if run == nil {
		return "", fmt.Errorf("%w: run record is nil", ports.ErrInvalidRequest)
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}

	const query = `
	INSERT INTO backtest_runs (id, instrument, started_at, strategies, leg_count)
	VALUES (?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		run.ID, run.Instrument, run.StartedAt, strings.Join(run.Strategies, ","), run.LegCount)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return "", fmt.Errorf("run %s: %w", run.ID, ports.ErrDuplicateEntry)
		}
		return "", fmt.Errorf("failed to insert run for instrument %s: %w: %v", run.Instrument, ports.ErrQueryFailed, err)
	}
	r.logger.Debug(ctx, "Backtest run created", map[string]interface{}{"runID": run.ID, "instrument": run.Instrument})
	return run.ID, nil
}

// SaveLegs stores legs in one transaction and updates the run's leg count.
// The legs receive their storage IDs and run ID once the transaction commits.
func (r *Repository) SaveLegs(ctx context.Context, runID string, legs []*domain.TradeLeg) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for run %s: %w: %v", runID, ports.ErrDBConnection, err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var start int
	err = tx.QueryRowContext(ctx, `SELECT leg_count FROM backtest_runs WHERE id = ?`, runID).Scan(&start)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("run %s: %w", runID, ports.ErrNotFound)
		}
		return fmt.Errorf("failed to read run %s: %w: %v", runID, ports.ErrQueryFailed, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO trade_legs (run_id, seq, instrument, strategy_id, direction, entry_time, entry_id,
	                        entry_price, exit_id, exit_time, exit_type, exit_price, pnl)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare leg insert: %w: %v", ports.ErrQueryFailed, err)
	}
	defer stmt.Close()

	ids := make([]int64, len(legs))
	for i, leg := range legs {
		res, execErr := stmt.ExecContext(ctx,
			runID, start+i, leg.Instrument, leg.StrategyID, string(leg.Direction), leg.EntryTime, leg.EntryID,
			leg.EntryPrice, leg.ExitID, leg.ExitTime, string(leg.ExitType), leg.ExitPrice, leg.PNL)
		if execErr != nil {
			err = fmt.Errorf("failed to insert leg %d/%d of run %s: %w: %v", leg.EntryID, leg.ExitID, runID, ports.ErrQueryFailed, execErr)
			return err
		}
		if ids[i], err = res.LastInsertId(); err != nil {
			return fmt.Errorf("failed to get last insert ID for leg of run %s: %w", runID, err)
		}
	}

	if _, err = tx.ExecContext(ctx, `UPDATE backtest_runs SET leg_count = ? WHERE id = ?`, start+len(legs), runID); err != nil {
		return fmt.Errorf("failed to update leg count of run %s: %w: %v", runID, ports.ErrQueryFailed, err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit legs of run %s: %w: %v", runID, ports.ErrQueryFailed, err)
	}
	for i, leg := range legs {
		leg.ID = ids[i]
		leg.RunID = runID
	}
	r.logger.Debug(ctx, "Trade legs saved", map[string]interface{}{"runID": runID, "count": len(legs)})
	return nil
}

// FindLegsByRun retrieves the legs of a run in saved order.
func (r *Repository) FindLegsByRun(ctx context.Context, runID string) ([]*domain.TradeLeg, error) {
	var exists int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM backtest_runs WHERE id = ?`, runID).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("run %s: %w", runID, ports.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to query run %s: %w: %v", runID, ports.ErrQueryFailed, err)
	}

	const query = `
	SELECT id, run_id, instrument, strategy_id, direction, entry_time, entry_id, entry_price,
	       exit_id, exit_time, exit_type, exit_price, pnl
	FROM trade_legs
	WHERE run_id = ?
	ORDER BY seq`

	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query legs of run %s: %w: %v", runID, ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	legs := make([]*domain.TradeLeg, 0)
	for rows.Next() {
		leg, err := scanLeg(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade leg of run %s: %w", runID, err)
		}
		legs = append(legs, leg)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trade leg rows: %w", err)
	}
	return legs, nil
}

// ListRuns retrieves all runs, most recent first.
func (r *Repository) ListRuns(ctx context.Context) ([]*ports.RunRecord, error) {
	const query = `
	SELECT id, instrument, started_at, strategies, leg_count
	FROM backtest_runs
	ORDER BY started_at DESC, id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w: %v", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	runs := make([]*ports.RunRecord, 0)
	for rows.Next() {
		run := &ports.RunRecord{}
		var strategies string
		if err := rows.Scan(&run.ID, &run.Instrument, &run.StartedAt, &strategies, &run.LegCount); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if strategies != "" {
			run.Strategies = strings.Split(strategies, ",")
		}
		runs = append(runs, run)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run rows: %w", err)
	}
	return runs, nil
}

// TotalPNL sums the points of every leg of a run.
func (r *Repository) TotalPNL(ctx context.Context, runID string) (float64, error) {
	var total float64
	err := r.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(pnl), 0) FROM trade_legs WHERE run_id = ?`, runID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum PNL of run %s: %w", runID, err)
	}
	return total, nil
}

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanLeg(s scanner) (*domain.TradeLeg, error) {
	l := &domain.TradeLeg{}
	var direction, exitType string
	err := s.Scan(
		&l.ID, &l.RunID, &l.Instrument, &l.StrategyID, &direction, &l.EntryTime, &l.EntryID, &l.EntryPrice,
		&l.ExitID, &l.ExitTime, &exitType, &l.ExitPrice, &l.PNL)
	if err != nil {
		return nil, err
	}
	l.Direction = domain.Direction(direction)
	l.ExitType = domain.ExitType(exitType)
	return l, nil
}
