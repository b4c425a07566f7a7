package domain

import (
	"fmt"
	"strings"
)

// Direction is the market side of a trade.
type Direction string

const (
	Long  Direction = "long"
	Short Direction = "short"
)

// Opposite returns the other side. An unset direction stays unset.
func (d Direction) Opposite() Direction {
	switch d {
	case Long:
		return Short
	case Short:
		return Long
	default:
		return ""
	}
}

// IsValid reports whether d is Long or Short.
func (d Direction) IsValid() bool {
	return d == Long || d == Short
}

// ExitType classifies an exit leg.
type ExitType string

const (
	ExitFractal    ExitType = "Fractal Exit"
	ExitSignal     ExitType = "Signal Change"
	ExitTrailing   ExitType = "Trailling"
	ExitSessionEnd ExitType = "Trade End Exit"
)

// IsTerminal reports whether a leg of this type closes the trade.
func (t ExitType) IsTerminal() bool {
	return t == ExitSignal || t == ExitTrailing || t == ExitSessionEnd
}

// ParseExitType maps an output label back to its ExitType.
func ParseExitType(s string) (ExitType, error) {
	switch ExitType(s) {
	case ExitFractal, ExitSignal, ExitTrailing, ExitSessionEnd:
		return ExitType(s), nil
	}
	return "", fmt.Errorf("unknown exit type %q", s)
}

// TradeType governs whether the session end forces exits.
type TradeType string

const (
	Intraday   TradeType = "intraday"
	Positional TradeType = "positional"
)

// ParseTradeType parses a case-insensitive trade type.
func ParseTradeType(s string) (TradeType, error) {
	switch TradeType(strings.ToLower(strings.TrimSpace(s))) {
	case Intraday:
		return Intraday, nil
	case Positional:
		return Positional, nil
	}
	return "", fmt.Errorf("unknown trade type %q", s)
}

// AllowedDirection restricts which entry directions are honored.
type AllowedDirection string

const (
	AllowLong  AllowedDirection = "long"
	AllowShort AllowedDirection = "short"
	AllowAll   AllowedDirection = "all"
)

// Permits reports whether entries in direction d are honored.
func (a AllowedDirection) Permits(d Direction) bool {
	switch a {
	case AllowAll:
		return d.IsValid()
	case AllowLong:
		return d == Long
	case AllowShort:
		return d == Short
	}
	return false
}

// ParseAllowedDirection parses a case-insensitive allowed direction.
func ParseAllowedDirection(s string) (AllowedDirection, error) {
	switch AllowedDirection(strings.ToLower(strings.TrimSpace(s))) {
	case AllowLong:
		return AllowLong, nil
	case AllowShort:
		return AllowShort, nil
	case AllowAll, "":
		return AllowAll, nil
	}
	return "", fmt.Errorf("unknown allowed direction %q", s)
}

// TrailingDirection selects the comparator pair of the trailing-cross detector.
//
// With TrailHigher the detector arms when the fractal price is above the
// trailing band and fires when it falls below it. TrailLower is the mirror.
type TrailingDirection string

const (
	TrailHigher TrailingDirection = "higher"
	TrailLower  TrailingDirection = "lower"
)

// Primary is the arming comparison of fractal price against band value.
func (t TrailingDirection) Primary(fractal, band float64) bool {
	if t == TrailLower {
		return fractal < band
	}
	return fractal > band
}

// Opposite is the firing comparison once the detector is armed.
func (t TrailingDirection) Opposite(fractal, band float64) bool {
	if t == TrailLower {
		return fractal > band
	}
	return fractal < band
}

// ParseTrailingDirection parses a case-insensitive trailing direction.
func ParseTrailingDirection(s string) (TrailingDirection, error) {
	switch TrailingDirection(strings.ToLower(strings.TrimSpace(s))) {
	case TrailHigher, "":
		return TrailHigher, nil
	case TrailLower:
		return TrailLower, nil
	}
	return "", fmt.Errorf("unknown trailing direction %q", s)
}
