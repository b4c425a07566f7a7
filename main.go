package main

import (
	"context"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"os"
	"os/signal"
	"syscall"

	"fractalTrader/config"
	"fractalTrader/internal/adapters/csvsource"
	"fractalTrader/internal/adapters/logger"
	"fractalTrader/internal/adapters/sqlite"
	"fractalTrader/internal/app"
	"fractalTrader/internal/ports"
	"fractalTrader/internal/strategy/analytics"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	appLogger.Info(ctx, "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Load Run Configuration
	runCfg, err := config.LoadRunConfig(cfg.RunConfigPath)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to load run configuration", map[string]interface{}{"path": cfg.RunConfigPath})
		log.Fatalf("FATAL: Failed to load run configuration: %v", err)
	}
	engineCfg, err := runCfg.EngineConfig()
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Invalid engine configuration")
		log.Fatalf("FATAL: Invalid engine configuration: %v", err)
	}

	// 4. Initialize Row Source (CSV Adapter)
	opts, err := runCfg.LoaderOptions(cfg.DataPath, cfg.DropIncompleteRows)
	if err != nil {
		log.Fatalf("FATAL: Invalid loader options: %v", err)
	}
	source, err := csvsource.NewLoader(opts, appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize CSV loader")
		log.Fatalf("FATAL: Failed to initialize CSV loader: %v", err)
	}

	// 5. Initialize Repository (Database Adapter), only when results are persisted
	var repo ports.TradeLegRepository
	if cfg.PersistResults {
		sqliteRepo, err := sqlite.NewRepository(sqlite.Config{
			DBPath: cfg.DBPath,
			Logger: appLogger,
		})
		if err != nil {
			log.Fatalf("FATAL: Failed to initialize database repository: %v", err)
		}
		defer func() {
			if err := sqliteRepo.Close(); err != nil {
				appLogger.Error(context.Background(), err, "Error closing database repository")
			}
		}()
		repo = sqliteRepo
		appLogger.Info(ctx, "Database repository initialized")
	}

	// 6. Initialize Application Service
	svc, err := app.NewBacktestService(cfg, appLogger, source, repo, engineCfg, runCfg.Instrument)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize backtest service: %v", err)
	}

	// 7. Run the Backtest
	report, err := svc.Run(ctx)
	if err != nil {
		appLogger.Error(ctx, err, "Backtest exited with error")
		os.Exit(1)
	}

	if err := analytics.WriteSummaryTable(os.Stdout, report.Summary); err != nil {
		appLogger.Error(ctx, err, "Failed to print summary")
	}
	appLogger.Info(ctx, "Application finished gracefully.", map[string]interface{}{"output": cfg.OutputPath})
}
