package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FractalFlags holds the four fractal markers of one indicator feed.
type FractalFlags struct {
	Long           bool // unconfirmed long fractal
	Short          bool // unconfirmed short fractal
	ConfirmedLong  bool
	ConfirmedShort bool
}

// Unconfirmed returns the raw fractal flag for direction d.
func (f FractalFlags) Unconfirmed(d Direction) bool {
	switch d {
	case Long:
		return f.Long
	case Short:
		return f.Short
	}
	return false
}

// Confirmed returns the confirmed fractal flag for direction d.
func (f FractalFlags) Confirmed(d Direction) bool {
	switch d {
	case Long:
		return f.ConfirmedLong
	case Short:
		return f.ConfirmedShort
	}
	return false
}

// Feeds records which indicator feeds a row source fills in. Rows from a
// source without a fractal feed carry all-false fractal flags.
type Feeds struct {
	EntryFractal bool
	ExitFractal  bool
	EntryBand    bool
	TrailBand    bool
}

// MarketRow is one timestamp of the merged strategy/indicator series.
type MarketRow struct {
	Time         time.Time
	Close        float64
	Tag          string             // strategy signal label
	EntryFractal FractalFlags       // fractal feed used by the entry path
	ExitFractal  FractalFlags       // fractal feed used by the exit path
	Bands        map[string]float64 // band values keyed by configured column name
}

// Band returns the named band value and whether it is present.
func (r *MarketRow) Band(column string) (float64, bool) {
	if r.Bands == nil {
		return 0, false
	}
	v, ok := r.Bands[column]
	return v, ok
}

// EntryBandKey is the MarketRow.Bands key of a band column read for the entry check.
func EntryBandKey(column string) string {
	return "bb_" + column
}

// TrailBandKey is the MarketRow.Bands key of a band column read for the trailing exit.
// Entry and trailing bands may share a column name while coming from different files.
func TrailBandKey(column string) string {
	return "trail_" + column
}

// BandColumnName builds the indicator column name of a band from its kind and
// standard deviation, e.g. ("upper", 2) gives P_1_UPPER_BAND_2.0.
func BandColumnName(column string, sd float64) string {
	sdText := strconv.FormatFloat(sd, 'f', -1, 64)
	if !strings.Contains(sdText, ".") {
		sdText += ".0"
	}
	return fmt.Sprintf("P_1_%s_BAND_%s", strings.ToUpper(strings.TrimSpace(column)), sdText)
}
