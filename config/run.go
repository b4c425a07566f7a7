package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"fractalTrader/internal/adapters/csvsource"
	"fractalTrader/internal/domain"
	"fractalTrader/internal/strategy"
)

// DateLayout is the layout of the run date range.
const DateLayout = "02/01/2006 15:04:05"

// BandSpec selects a band file and column, e.g. {3, "upper", 2.0} reads
// P_1_UPPER_BAND_2.0 from BB Band/<instrument>/3_result.csv.
type BandSpec struct {
	FileNumber int     `yaml:"file_number"`
	Column     string  `yaml:"column"`
	SD         float64 `yaml:"sd"`
}

// ColumnName is the indicator column of the band.
func (b BandSpec) ColumnName() string {
	return domain.BandColumnName(b.Column, b.SD)
}

// StrategySpec maps one strategy file to its tag lists.
type StrategySpec struct {
	Portfolio  string   `yaml:"portfolio"`
	ID         string   `yaml:"id"`
	LongEntry  []string `yaml:"long_entry"`
	ShortEntry []string `yaml:"short_entry"`
	LongExit   []string `yaml:"long_exit"`
	ShortExit  []string `yaml:"short_exit"`
}

// RunConfig is the YAML description of one backtest run.
type RunConfig struct {
	Instrument string `yaml:"instrument"`
	StartDate  string `yaml:"start_date"`
	EndDate    string `yaml:"end_date"`

	TradeType        string `yaml:"trade_type"`
	AllowedDirection string `yaml:"allowed_direction"`
	TradeStartTime   string `yaml:"trade_start_time"`
	TradeEndTime     string `yaml:"trade_end_time"`

	CheckFractal      bool   `yaml:"check_fractal"`
	CheckBandEntry    bool   `yaml:"check_bb_band"`
	CheckTrailingBand bool   `yaml:"check_trail_bb_band"`
	TrailingDirection string `yaml:"trailing_direction"`
	FractalExitCount  string `yaml:"fractal_exit_count"`

	EntryFractalFile int      `yaml:"entry_fractal_file_number"`
	ExitFractalFile  int      `yaml:"exit_fractal_file_number"`
	Band             BandSpec `yaml:"bb"`
	TrailBand        BandSpec `yaml:"trail_bb"`

	Strategies []StrategySpec `yaml:"strategies"`
}

// LoadRunConfig reads and validates a YAML run configuration. Unknown keys are errors.
func LoadRunConfig(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read run config: %w", err)
	}
	return ParseRunConfig(data)
}

// ParseRunConfig decodes and validates a YAML run configuration.
func ParseRunConfig(data []byte) (*RunConfig, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var rc RunConfig
	if err := dec.Decode(&rc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("run config is empty")
		}
		return nil, fmt.Errorf("decode run config: %w", err)
	}
	if err := rc.Validate(); err != nil {
		return nil, err
	}
	return &rc, nil
}

// Validate checks fields that the engine config does not cover.
func (rc *RunConfig) Validate() error {
	var errs []string

	if strings.TrimSpace(rc.Instrument) == "" {
		errs = append(errs, "instrument must be set")
	}
	start, end, err := rc.DateRange()
	if err != nil {
		errs = append(errs, err.Error())
	} else if !start.IsZero() && !end.IsZero() && end.Before(start) {
		errs = append(errs, "end_date must not be before start_date")
	}
	if len(rc.Strategies) == 0 {
		errs = append(errs, "at least one strategy is required")
	}
	seen := make(map[string]bool, len(rc.Strategies))
	for i, s := range rc.Strategies {
		if s.Portfolio == "" || s.ID == "" {
			errs = append(errs, fmt.Sprintf("strategy %d: portfolio and id are required", i))
		}
		if seen[s.ID] {
			errs = append(errs, fmt.Sprintf("strategy %s listed twice", s.ID))
		}
		seen[s.ID] = true
	}
	if rc.CheckBandEntry && (rc.Band.FileNumber <= 0 || rc.Band.Column == "") {
		errs = append(errs, "bb.file_number and bb.column are required when check_bb_band is set")
	}
	if rc.CheckTrailingBand && (rc.TrailBand.FileNumber <= 0 || rc.TrailBand.Column == "") {
		errs = append(errs, "trail_bb.file_number and trail_bb.column are required when check_trail_bb_band is set")
	}
	if (rc.CheckFractal || rc.CheckBandEntry) && rc.EntryFractalFile <= 0 {
		errs = append(errs, "entry_fractal_file_number is required when fractal or band entry checks are set")
	}
	if (rc.CheckFractal || rc.CheckTrailingBand) && rc.ExitFractalFile <= 0 {
		errs = append(errs, "exit_fractal_file_number is required when fractal or trailing checks are set")
	}

	if len(errs) > 0 {
		return fmt.Errorf("run config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// DateRange parses the inclusive date range. Empty bounds are zero.
func (rc *RunConfig) DateRange() (start, end time.Time, err error) {
	if rc.StartDate != "" {
		if start, err = time.ParseInLocation(DateLayout, strings.TrimSpace(rc.StartDate), time.UTC); err != nil {
			return start, end, fmt.Errorf("invalid start_date %q", rc.StartDate)
		}
	}
	if rc.EndDate != "" {
		if end, err = time.ParseInLocation(DateLayout, strings.TrimSpace(rc.EndDate), time.UTC); err != nil {
			return start, end, fmt.Errorf("invalid end_date %q", rc.EndDate)
		}
	}
	return start, end, nil
}

// StrategyIDs returns the strategy IDs in configuration order.
func (rc *RunConfig) StrategyIDs() []string {
	ids := make([]string, len(rc.Strategies))
	for i, s := range rc.Strategies {
		ids[i] = s.ID
	}
	return ids
}

// EngineConfig builds the immutable engine configuration.
func (rc *RunConfig) EngineConfig() (*strategy.Config, error) {
	tradeType, err := domain.ParseTradeType(rc.TradeType)
	if err != nil {
		return nil, err
	}
	allowed, err := domain.ParseAllowedDirection(rc.AllowedDirection)
	if err != nil {
		return nil, err
	}
	trailing, err := domain.ParseTrailingDirection(rc.TrailingDirection)
	if err != nil {
		return nil, err
	}

	cfg := &strategy.Config{
		TradeType:         tradeType,
		AllowedDirection:  allowed,
		SessionEnd:        24*time.Hour - time.Second,
		CheckFractal:      rc.CheckFractal,
		CheckBandEntry:    rc.CheckBandEntry,
		CheckTrailingBand: rc.CheckTrailingBand,
		TrailingDirection: trailing,
		FractalExitCount:  strategy.ParseFractalExitCount(rc.FractalExitCount),
		Signals:           make(map[string]strategy.TagSets, len(rc.Strategies)),
	}
	if rc.TradeStartTime != "" {
		if cfg.SessionStart, err = strategy.ParseTimeOfDay(rc.TradeStartTime); err != nil {
			return nil, fmt.Errorf("trade_start_time: %w", err)
		}
	}
	if rc.TradeEndTime != "" {
		if cfg.SessionEnd, err = strategy.ParseTimeOfDay(rc.TradeEndTime); err != nil {
			return nil, fmt.Errorf("trade_end_time: %w", err)
		}
	}
	if rc.Band.FileNumber > 0 && rc.Band.Column != "" {
		cfg.BandColumn = domain.EntryBandKey(rc.Band.ColumnName())
	}
	if rc.TrailBand.FileNumber > 0 && rc.TrailBand.Column != "" {
		cfg.TrailBandColumn = domain.TrailBandKey(rc.TrailBand.ColumnName())
	}
	for _, s := range rc.Strategies {
		cfg.Signals[s.ID] = strategy.NewTagSets(s.LongEntry, s.ShortEntry, s.LongExit, s.ShortExit)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoaderOptions selects the files the run reads. Every configured indicator
// file is read, whether or not the base checks use it, so that a sweep can
// enable those checks.
func (rc *RunConfig) LoaderOptions(dataPath string, dropIncomplete bool) (csvsource.Options, error) {
	start, end, err := rc.DateRange()
	if err != nil {
		return csvsource.Options{}, err
	}
	opts := csvsource.Options{
		DataPath:       dataPath,
		Instrument:     rc.Instrument,
		Start:          start,
		End:            end,
		DropIncomplete: dropIncomplete,
	}
	for _, s := range rc.Strategies {
		opts.Strategies = append(opts.Strategies, csvsource.StrategyFile{Portfolio: s.Portfolio, StrategyID: s.ID})
	}
	if rc.EntryFractalFile > 0 {
		opts.EntryFractalFile = rc.EntryFractalFile
	}
	if rc.ExitFractalFile > 0 {
		opts.ExitFractalFile = rc.ExitFractalFile
	}
	if rc.Band.FileNumber > 0 && rc.Band.Column != "" {
		opts.EntryBand = csvsource.BandFile{Number: rc.Band.FileNumber, Column: rc.Band.ColumnName()}
	}
	if rc.TrailBand.FileNumber > 0 && rc.TrailBand.Column != "" {
		opts.TrailBand = csvsource.BandFile{Number: rc.TrailBand.FileNumber, Column: rc.TrailBand.ColumnName()}
	}
	return opts, nil
}
