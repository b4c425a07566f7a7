package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"fractalTrader/config"
	"fractalTrader/internal/adapters/csvsource"
	"fractalTrader/internal/adapters/logger"
	"fractalTrader/internal/app"
	"fractalTrader/internal/strategy/optimization"
)

var (
	exitCounts = flag.String("exit-counts", "ALL,1,2,3", "comma-separated fractal exit counts to sweep")
	trailing   = flag.String("trailing", "higher,lower", "comma-separated trailing directions to sweep")
	directions = flag.String("directions", "", "comma-separated allowed directions to sweep (empty keeps the run config)")
	top        = flag.Int("top", 10, "number of results to print (0 prints all)")
)

func main() {
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	appLogger := logger.NewStdLogger(cfg.LogLevel)

	runCfg, err := config.LoadRunConfig(cfg.RunConfigPath)
	if err != nil {
		log.Fatalf("FATAL: Failed to load run configuration: %v", err)
	}
	engineCfg, err := runCfg.EngineConfig()
	if err != nil {
		log.Fatalf("FATAL: Invalid engine configuration: %v", err)
	}

	// 2. Build the row source; sweeps never persist
	opts, err := runCfg.LoaderOptions(cfg.DataPath, cfg.DropIncompleteRows)
	if err != nil {
		log.Fatalf("FATAL: Invalid loader options: %v", err)
	}
	source, err := csvsource.NewLoader(opts, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize CSV loader: %v", err)
	}
	svc, err := app.NewBacktestService(cfg, appLogger, source, nil, engineCfg, runCfg.Instrument)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize backtest service: %v", err)
	}

	// 3. Run the sweep
	ranges := parameterRanges()
	appLogger.Info(ctx, "Starting sweep", map[string]interface{}{
		"parameters": len(ranges),
		"workers":    cfg.SweepWorkers,
	})
	results, err := svc.Sweep(ctx, ranges)
	if err != nil {
		appLogger.Error(ctx, err, "Sweep exited with error")
		os.Exit(1)
	}

	printResults(results, ranges)
}

func parameterRanges() []optimization.ParameterRange {
	var ranges []optimization.ParameterRange
	add := func(name, list string) {
		if choices := splitList(list); len(choices) > 0 {
			ranges = append(ranges, optimization.ParameterRange{Name: name, Choices: choices})
		}
	}
	add(optimization.ParamFractalExitCount, *exitCounts)
	add(optimization.ParamTrailingDirection, *trailing)
	add(optimization.ParamAllowedDirection, *directions)
	return ranges
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func printResults(results []optimization.OptimizationResult, ranges []optimization.ParameterRange) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)

	header := []string{"#"}
	for _, r := range ranges {
		header = append(header, r.Name)
	}
	header = append(header, "Legs", "Win%", "Net", "MaxDD", "Score")
	fmt.Fprintln(w, strings.Join(header, "\t")+"\t")

	for i, res := range results {
		if *top > 0 && i >= *top {
			break
		}
		cols := []string{fmt.Sprint(i + 1)}
		for _, r := range ranges {
			cols = append(cols, res.Parameters[r.Name])
		}
		total := res.Summary.Total
		cols = append(cols,
			fmt.Sprint(res.Legs),
			fmt.Sprintf("%.2f", total.Probability),
			fmt.Sprintf("%.2f", total.NetPoints),
			fmt.Sprintf("%.2f", total.MaxDrawdown),
			fmt.Sprintf("%.2f", res.Score),
		)
		fmt.Fprintln(w, strings.Join(cols, "\t")+"\t")
	}
	w.Flush()
}
