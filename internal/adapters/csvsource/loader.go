// Package csvsource reads the strategy, fractal and band result files of an
// instrument and merges them into per-strategy row streams.
package csvsource

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"fractalTrader/internal/domain"
	"fractalTrader/internal/ports"
)

// Indicator columns of a fractal result file.
const (
	ColFractalLong           = "P_1_FRACTAL_LONG"
	ColFractalShort          = "P_1_FRACTAL_SHORT"
	ColFractalConfirmedLong  = "P_1_FRACTAL_CONFIRMED_LONG"
	ColFractalConfirmedShort = "P_1_FRACTAL_CONFIRMED_SHORT"
)

const (
	fractalDir = "Fractal"
	bandDir    = "BB Band"
	closeCol   = "Close"
)

// StrategyFile names one strategy result file.
type StrategyFile struct {
	Portfolio  string
	StrategyID string
}

// TagColumn is the tag column of the strategy file.
func (f StrategyFile) TagColumn() string {
	return "TAG_" + f.Portfolio
}

// BandFile names a band result file and the column to read from it.
type BandFile struct {
	Number int
	Column string
}

// Options selects the files of a run. A zero file number skips that file.
type Options struct {
	DataPath   string
	Instrument string
	Start, End time.Time // inclusive; zero means unbounded
	Strategies []StrategyFile

	EntryFractalFile int
	ExitFractalFile  int
	EntryBand        BandFile
	TrailBand        BandFile

	// DropIncomplete drops strategy rows without a matching indicator row
	// instead of failing the load.
	DropIncomplete bool
}

// Loader implements ports.RowSource over result CSV files.
type Loader struct {
	opts   Options
	logger ports.Logger
}

var _ ports.RowSource = (*Loader)(nil)

// NewLoader creates a loader for opts.
func NewLoader(opts Options, logger ports.Logger) (*Loader, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for CSV loader")
	}
	if opts.DataPath == "" || opts.Instrument == "" {
		return nil, fmt.Errorf("%w: data path and instrument are required", ports.ErrConfigurationError)
	}
	if len(opts.Strategies) == 0 {
		return nil, fmt.Errorf("%w: at least one strategy file is required", ports.ErrConfigurationError)
	}
	if !opts.Start.IsZero() && !opts.End.IsZero() && opts.End.Before(opts.Start) {
		return nil, fmt.Errorf("%w: end %s before start %s", ports.ErrConfigurationError, opts.End, opts.Start)
	}
	return &Loader{opts: opts, logger: logger}, nil
}

// StrategyPath is <DATA_PATH>/<portfolio>/<instrument>/<strategy>_result.csv.
func (l *Loader) StrategyPath(f StrategyFile) string {
	return filepath.Join(l.opts.DataPath, f.Portfolio, l.opts.Instrument, f.StrategyID+"_result.csv")
}

// Feeds reports the indicator files the loader reads.
func (l *Loader) Feeds() domain.Feeds {
	return domain.Feeds{
		EntryFractal: l.opts.EntryFractalFile > 0,
		ExitFractal:  l.opts.ExitFractalFile > 0,
		EntryBand:    l.opts.EntryBand.Number > 0,
		TrailBand:    l.opts.TrailBand.Number > 0,
	}
}

func (l *Loader) indicatorPath(dir string, number int) string {
	return filepath.Join(l.opts.DataPath, dir, l.opts.Instrument, strconv.Itoa(number)+"_result.csv")
}

type tagged struct {
	time time.Time
	tag  string
}

// Load reads every configured file and returns one stream per strategy, in
// configuration order, each sorted by timestamp.
func (l *Loader) Load(ctx context.Context) ([]ports.StrategyStream, error) {
	closes, err := l.readCloses()
	if err != nil {
		return nil, err
	}

	var entryFractals, exitFractals map[time.Time]domain.FractalFlags
	if n := l.opts.EntryFractalFile; n > 0 {
		if entryFractals, err = l.readFractals(l.indicatorPath(fractalDir, n)); err != nil {
			return nil, err
		}
	}
	if n := l.opts.ExitFractalFile; n > 0 {
		if exitFractals, err = l.readFractals(l.indicatorPath(fractalDir, n)); err != nil {
			return nil, err
		}
	}

	var entryBands, trailBands map[time.Time]float64
	if b := l.opts.EntryBand; b.Number > 0 {
		if entryBands, err = l.readBand(l.indicatorPath(bandDir, b.Number), b.Column); err != nil {
			return nil, err
		}
	}
	if b := l.opts.TrailBand; b.Number > 0 {
		if trailBands, err = l.readBand(l.indicatorPath(bandDir, b.Number), b.Column); err != nil {
			return nil, err
		}
	}

	streams := make([]ports.StrategyStream, 0, len(l.opts.Strategies))
	for _, sf := range l.opts.Strategies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		tags, err := l.readTags(sf)
		if err != nil {
			return nil, err
		}

		rows := make([]*domain.MarketRow, 0, len(tags))
		dropped := 0
		for _, tg := range tags {
			row := &domain.MarketRow{Time: tg.time, Tag: tg.tag}
			missing := ""

			price, ok := closes[tg.time]
			row.Close = price
			if !ok {
				missing = closeCol
			}
			if entryFractals != nil {
				if row.EntryFractal, ok = entryFractals[tg.time]; !ok && missing == "" {
					missing = "entry fractal"
				}
			}
			if exitFractals != nil {
				if row.ExitFractal, ok = exitFractals[tg.time]; !ok && missing == "" {
					missing = "exit fractal"
				}
			}
			if entryBands != nil || trailBands != nil {
				row.Bands = make(map[string]float64, 2)
			}
			if entryBands != nil {
				if v, ok := entryBands[tg.time]; ok {
					row.Bands[domain.EntryBandKey(l.opts.EntryBand.Column)] = v
				} else if missing == "" {
					missing = "entry band " + l.opts.EntryBand.Column
				}
			}
			if trailBands != nil {
				if v, ok := trailBands[tg.time]; ok {
					row.Bands[domain.TrailBandKey(l.opts.TrailBand.Column)] = v
				} else if missing == "" {
					missing = "trailing band " + l.opts.TrailBand.Column
				}
			}

			if missing != "" {
				if !l.opts.DropIncomplete {
					return nil, fmt.Errorf("strategy %s at %s: %w: %s", sf.StrategyID, tg.time.Format(TimestampLayout), ports.ErrMissingField, missing)
				}
				dropped++
				continue
			}
			rows = append(rows, row)
		}

		if dropped > 0 {
			l.logger.Warn(ctx, "Dropped incomplete rows", map[string]interface{}{
				"strategy": sf.StrategyID,
				"dropped":  dropped,
			})
		}
		l.logger.Info(ctx, "Strategy stream loaded", map[string]interface{}{
			"strategy":   sf.StrategyID,
			"portfolio":  sf.Portfolio,
			"instrument": l.opts.Instrument,
			"rows":       len(rows),
		})
		streams = append(streams, ports.StrategyStream{StrategyID: sf.StrategyID, Rows: rows})
	}
	return streams, nil
}

func (l *Loader) inRange(t time.Time) bool {
	if !l.opts.Start.IsZero() && t.Before(l.opts.Start) {
		return false
	}
	if !l.opts.End.IsZero() && t.After(l.opts.End) {
		return false
	}
	return true
}

// readCloses reads the Close column of the first strategy file.
func (l *Loader) readCloses() (map[time.Time]float64, error) {
	path := l.StrategyPath(l.opts.Strategies[0])
	t, err := readTable(path, timestampColumn, closeCol)
	if err != nil {
		return nil, err
	}
	closes := make(map[time.Time]float64, len(t.records))
	for i, rec := range t.records {
		ts, err := t.timestamp(rec, i+2)
		if err != nil {
			return nil, err
		}
		if !l.inRange(ts) {
			continue
		}
		v, ok, err := parseFloat(t.value(rec, closeCol))
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w: %v", path, i+2, ports.ErrMalformedInput, err)
		}
		if ok {
			closes[ts] = v
		}
	}
	return closes, nil
}

// readTags reads the tagged rows of a strategy file within the date range,
// sorted by timestamp. Rows with an empty tag are skipped.
func (l *Loader) readTags(sf StrategyFile) ([]tagged, error) {
	path := l.StrategyPath(sf)
	col := sf.TagColumn()
	t, err := readTable(path, timestampColumn, col)
	if err != nil {
		return nil, err
	}
	out := make([]tagged, 0, len(t.records))
	for i, rec := range t.records {
		ts, err := t.timestamp(rec, i+2)
		if err != nil {
			return nil, err
		}
		tag := t.value(rec, col)
		if tag == "" || tag == "nan" || !l.inRange(ts) {
			continue
		}
		out = append(out, tagged{time: ts, tag: tag})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].time.Before(out[j].time) })
	return out, nil
}

func (l *Loader) readFractals(path string) (map[time.Time]domain.FractalFlags, error) {
	t, err := readTable(path, timestampColumn, ColFractalLong, ColFractalShort, ColFractalConfirmedLong, ColFractalConfirmedShort)
	if err != nil {
		return nil, err
	}
	out := make(map[time.Time]domain.FractalFlags, len(t.records))
	for i, rec := range t.records {
		ts, err := t.timestamp(rec, i+2)
		if err != nil {
			return nil, err
		}
		if !l.inRange(ts) {
			continue
		}
		var flags domain.FractalFlags
		for _, f := range []struct {
			col string
			dst *bool
		}{
			{ColFractalLong, &flags.Long},
			{ColFractalShort, &flags.Short},
			{ColFractalConfirmedLong, &flags.ConfirmedLong},
			{ColFractalConfirmedShort, &flags.ConfirmedShort},
		} {
			v, err := parseBool(t.value(rec, f.col))
			if err != nil {
				return nil, fmt.Errorf("%s line %d column %s: %w: %v", path, i+2, f.col, ports.ErrMalformedInput, err)
			}
			*f.dst = v
		}
		out[ts] = flags
	}
	return out, nil
}

// readBand reads one band column. Rows with an empty value are left out so
// that the join reports them as missing.
func (l *Loader) readBand(path, column string) (map[time.Time]float64, error) {
	t, err := readTable(path, timestampColumn, column)
	if err != nil {
		return nil, err
	}
	out := make(map[time.Time]float64, len(t.records))
	for i, rec := range t.records {
		ts, err := t.timestamp(rec, i+2)
		if err != nil {
			return nil, err
		}
		if !l.inRange(ts) {
			continue
		}
		v, ok, err := parseFloat(t.value(rec, column))
		if err != nil {
			return nil, fmt.Errorf("%s line %d column %s: %w: %v", path, i+2, column, ports.ErrMalformedInput, err)
		}
		if ok {
			out[ts] = v
		}
	}
	return out, nil
}
