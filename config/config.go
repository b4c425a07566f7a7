package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"fractalTrader/internal/adapters/logger"
)

// Config holds the process configuration read from the environment.
type Config struct {
	// Input
	DataPath      string // root of the strategy, fractal and band result files
	RunConfigPath string // YAML run configuration

	// Output
	OutputPath     string // trade-leg CSV
	DBPath         string
	PersistResults bool

	// Loading
	DropIncompleteRows bool

	// Sweep
	SweepWorkers int

	// Logging
	LogLevel logger.LogLevel
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// A missing .env file is fine; plain environment variables still apply.
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string

	cfg.DataPath = getEnv("DATA_PATH", "")
	if cfg.DataPath == "" {
		errs = append(errs, "DATA_PATH must be set")
	}
	cfg.RunConfigPath = getEnv("RUN_CONFIG_PATH", "./run.yaml")

	cfg.OutputPath = getEnv("OUTPUT_PATH", "./data/output.csv")
	cfg.DBPath = getEnv("DB_PATH", "./data/backtests.db")
	cfg.PersistResults, err = getEnvAsBoolRequired("PERSIST_RESULTS", true)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid PERSIST_RESULTS: %v", err))
	}

	cfg.DropIncompleteRows, err = getEnvAsBoolRequired("DROP_INCOMPLETE_ROWS", false)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid DROP_INCOMPLETE_ROWS: %v", err))
	}

	cfg.SweepWorkers, err = getEnvAsIntRequired("SWEEP_WORKERS", 4)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid SWEEP_WORKERS: %v", err))
	} else if cfg.SweepWorkers <= 0 {
		errs = append(errs, "SWEEP_WORKERS must be positive")
	}

	cfg.LogLevel = logger.ParseLevel(getEnv("LOG_LEVEL", "INFO"))

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBoolRequired(key string, defaultValue bool) (bool, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return false, fmt.Errorf("invalid boolean value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}
