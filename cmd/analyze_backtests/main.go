package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"fractalTrader/internal/adapters/logger"
	"fractalTrader/internal/adapters/sqlite"
	"fractalTrader/internal/domain"
	"fractalTrader/internal/strategy/analytics"
	"fractalTrader/internal/utils"
)

var (
	dir     = flag.String("dir", "data", "directory of trade-leg CSV files")
	prefix  = flag.String("prefix", "", "only analyze CSV files whose name starts with prefix")
	dbPath  = flag.String("db", "", "analyze a persisted run from this SQLite database instead of CSV files")
	runID   = flag.String("run", "", "run ID to analyze with -db (default: most recent run)")
	monthly = flag.Bool("monthly", false, "print net points per month")
)

func main() {
	flag.Parse()

	if *dbPath != "" {
		if err := analyzeRun(context.Background()); err != nil {
			log.Fatalf("Error analyzing run: %v", err)
		}
		return
	}

	// Find all trade-leg files
	files, err := findBacktestFiles(*dir, *prefix)
	if err != nil {
		log.Fatalf("Error finding backtest files: %v", err)
	}
	if len(files) == 0 {
		log.Println("No backtest files found. Run the backtest first.")
		return
	}

	for _, file := range files {
		legs, err := utils.ReadTradeLegsFromCSV(file)
		if err != nil {
			log.Printf("Error reading trade legs from %s: %v", file, err)
			continue
		}
		fmt.Printf("\n## %s\n", filepath.Base(file))
		report(legs)
	}
}

func analyzeRun(ctx context.Context) error {
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: *dbPath,
		Logger: logger.NewStdLogger(logger.LevelWarn),
	})
	if err != nil {
		return err
	}
	defer repo.Close()

	id := *runID
	if id == "" {
		runs, err := repo.ListRuns(ctx)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			return fmt.Errorf("no runs recorded in %s", *dbPath)
		}
		id = runs[0].ID
	}

	legs, err := repo.FindLegsByRun(ctx, id)
	if err != nil {
		return fmt.Errorf("run %s: %w", id, err)
	}
	total, err := repo.TotalPNL(ctx, id)
	if err != nil {
		return err
	}
	fmt.Printf("\n## Run %s (%d legs, stored net points %.2f)\n", id, len(legs), total)
	report(legs)
	return nil
}

func report(legs []*domain.TradeLeg) {
	if err := analytics.WriteSummaryTable(os.Stdout, analytics.Summarize(legs)); err != nil {
		log.Printf("Error writing summary: %v", err)
	}
	if *monthly {
		fmt.Println()
		if err := analytics.WriteMonthlyTable(os.Stdout, analytics.MonthlyPoints(legs)); err != nil {
			log.Printf("Error writing monthly table: %v", err)
		}
	}
}

// findBacktestFiles lists the CSV files in dir whose names start with prefix, sorted by name.
func findBacktestFiles(dir, prefix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".csv") {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	sort.Strings(files)
	return files, nil
}
