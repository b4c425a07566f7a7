package optimization

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"fractalTrader/internal/domain"
	"fractalTrader/internal/ports"
	"fractalTrader/internal/strategy"
	"fractalTrader/internal/strategy/analytics"
	"fractalTrader/internal/strategy/backtesting"
)

// Sweepable engine parameters.
const (
	ParamFractalExitCount  = "fractal_exit_count"
	ParamTrailingDirection = "trailing_direction"
	ParamAllowedDirection  = "allowed_direction"
	ParamCheckFractal      = "check_fractal"
	ParamCheckBandEntry    = "check_bb_band"
	ParamCheckTrailingBand = "check_trail_bb_band"
)

// ParameterRange defines the values a parameter takes in the sweep. Choices,
// when set, replace the numeric Min/Max/Step range.
type ParameterRange struct {
	Name    string
	Min     float64
	Max     float64
	Step    float64
	IsInt   bool
	Choices []string
}

// OptimizationResult holds the outcome of one parameter combination.
type OptimizationResult struct {
	Parameters map[string]string
	Summary    *analytics.Summary
	Legs       int
	Score      float64
}

// OptimizerConfig holds configuration for the optimizer
type OptimizerConfig struct {
	Base            *strategy.Config
	ParameterRanges []ParameterRange
	Instrument      string
	Feeds           domain.Feeds // indicator feeds the swept streams carry
	Workers         int          // concurrent engines; <= 0 means one per combination
	Logger          ports.Logger
	ScoreFunction   func(*analytics.Summary) float64
}

// Optimizer sweeps engine configurations over the same row streams.
type Optimizer struct {
	config OptimizerConfig
}

// NewOptimizer creates a new optimizer instance
func NewOptimizer(config OptimizerConfig) (*Optimizer, error) {
	if config.Logger == nil {
		return nil, fmt.Errorf("logger is required for optimizer")
	}
	if config.Base == nil {
		return nil, fmt.Errorf("%w: base engine config is nil", ports.ErrConfigurationError)
	}
	for _, r := range config.ParameterRanges {
		if !knownParameter(r.Name) {
			return nil, fmt.Errorf("%w: unknown sweep parameter %q", ports.ErrConfigurationError, r.Name)
		}
		if len(r.Choices) == 0 && (r.Step <= 0 || r.Max < r.Min) {
			return nil, fmt.Errorf("%w: invalid range for %s", ports.ErrConfigurationError, r.Name)
		}
	}
	if config.ScoreFunction == nil {
		config.ScoreFunction = DefaultScoreFunction
	}
	return &Optimizer{config: config}, nil
}

// Optimize runs every parameter combination concurrently, each on its own
// engine, and returns the results by descending score. Equal scores keep
// combination order. The first failing combination cancels the sweep.
func (o *Optimizer) Optimize(ctx context.Context, streams []ports.StrategyStream) ([]OptimizationResult, error) {
	combinations := o.generateParameterCombinations()
	results := make([]OptimizationResult, len(combinations))

	g, gctx := errgroup.WithContext(ctx)
	if o.config.Workers > 0 {
		g.SetLimit(o.config.Workers)
	}

	for i, params := range combinations {
		i, params := i, params
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			cfg, err := o.configWithParams(params)
			if err != nil {
				return err
			}
			if err := cfg.CheckFeeds(o.config.Feeds); err != nil {
				return fmt.Errorf("combination %s: %w", formatParams(params), err)
			}
			engine, err := backtesting.NewEngine(cfg, o.config.Logger)
			if err != nil {
				return fmt.Errorf("combination %s: %w", formatParams(params), err)
			}
			res, err := engine.RunAll(gctx, streams)
			if err != nil {
				return fmt.Errorf("combination %s: %w", formatParams(params), err)
			}

			legs := res.Legs(o.config.Instrument)
			summary := analytics.Summarize(legs)
			results[i] = OptimizationResult{
				Parameters: params,
				Summary:    summary,
				Legs:       len(legs),
				Score:      o.config.ScoreFunction(summary),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sortResultsByScore(results)
	o.config.Logger.Info(ctx, "Sweep completed", map[string]interface{}{
		"combinations": len(results),
		"instrument":   o.config.Instrument,
	})
	return results, nil
}

// generateParameterCombinations generates all possible parameter combinations
// in range order, the last range varying fastest.
func (o *Optimizer) generateParameterCombinations() []map[string]string {
	var combinations []map[string]string
	current := make(map[string]string)

	var generate func(int)
	generate = func(paramIndex int) {
		if paramIndex == len(o.config.ParameterRanges) {
			combination := make(map[string]string, len(current))
			for k, v := range current {
				combination[k] = v
			}
			combinations = append(combinations, combination)
			return
		}

		param := o.config.ParameterRanges[paramIndex]
		for _, v := range param.values() {
			current[param.Name] = v
			generate(paramIndex + 1)
		}
	}

	generate(0)
	return combinations
}

func (r ParameterRange) values() []string {
	if len(r.Choices) > 0 {
		return r.Choices
	}
	var out []string
	for value := r.Min; value <= r.Max+r.Step/2; value += r.Step {
		v := value
		if r.IsInt {
			v = math.Round(v)
		}
		out = append(out, strconv.FormatFloat(v, 'f', -1, 64))
	}
	return out
}

func knownParameter(name string) bool {
	switch name {
	case ParamFractalExitCount, ParamTrailingDirection, ParamAllowedDirection,
		ParamCheckFractal, ParamCheckBandEntry, ParamCheckTrailingBand:
		return true
	}
	return false
}

// configWithParams copies the base config and applies params. Tag sets are
// shared; they are never mutated.
func (o *Optimizer) configWithParams(params map[string]string) (*strategy.Config, error) {
	cfg := *o.config.Base
	for name, value := range params {
		var err error
		switch name {
		case ParamFractalExitCount:
			cfg.FractalExitCount = strategy.ParseFractalExitCount(value)
		case ParamTrailingDirection:
			cfg.TrailingDirection, err = domain.ParseTrailingDirection(value)
		case ParamAllowedDirection:
			cfg.AllowedDirection, err = domain.ParseAllowedDirection(value)
		case ParamCheckFractal:
			cfg.CheckFractal, err = strconv.ParseBool(value)
		case ParamCheckBandEntry:
			cfg.CheckBandEntry, err = strconv.ParseBool(value)
		case ParamCheckTrailingBand:
			cfg.CheckTrailingBand, err = strconv.ParseBool(value)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: parameter %s=%s: %v", ports.ErrConfigurationError, name, value, err)
		}
	}
	return &cfg, nil
}

func formatParams(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + params[k]
	}
	return strings.Join(parts, ",")
}

// sortResultsByScore sorts optimization results by score in descending order
func sortResultsByScore(results []OptimizationResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}

// DefaultScoreFunction scores a combination by its net points.
func DefaultScoreFunction(s *analytics.Summary) float64 {
	return s.Total.NetPoints
}
