package strategy

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"fractalTrader/internal/domain"
	"fractalTrader/internal/ports"
)

// Configuration hazards. A config reporting them is valid but probably not what
// the caller meant.
var (
	// ErrNoEntryRules means neither fractal nor band-entry checks are enabled; entries never fire.
	ErrNoEntryRules = errors.New("no entry rules enabled: entries will never fire")
	// ErrAmbiguousTag means a tag appears in both the long and short set; long wins.
	ErrAmbiguousTag = errors.New("tag configured for both long and short")
)

// UnlimitedFractalExits records every FRACTAL exit leg.
const UnlimitedFractalExits = 0

// TagSets maps strategy tags to directions for entry and exit.
type TagSets struct {
	LongEntry  map[string]struct{}
	ShortEntry map[string]struct{}
	LongExit   map[string]struct{}
	ShortExit  map[string]struct{}
}

// NewTagSets builds tag sets from lists, trimming whitespace and skipping blanks.
func NewTagSets(longEntry, shortEntry, longExit, shortExit []string) TagSets {
	return TagSets{
		LongEntry:  toSet(longEntry),
		ShortEntry: toSet(shortEntry),
		LongExit:   toSet(longExit),
		ShortExit:  toSet(shortExit),
	}
}

func toSet(tags []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t != "" {
			set[t] = struct{}{}
		}
	}
	return set
}

// EntryDirection resolves a tag against the entry sets. Long is checked first.
func (s TagSets) EntryDirection(tag string) domain.Direction {
	return resolve(tag, s.LongEntry, s.ShortEntry)
}

// ExitDirection resolves a tag against the exit sets. Long is checked first.
func (s TagSets) ExitDirection(tag string) domain.Direction {
	return resolve(tag, s.LongExit, s.ShortExit)
}

func resolve(tag string, long, short map[string]struct{}) domain.Direction {
	if _, ok := long[tag]; ok {
		return domain.Long
	}
	if _, ok := short[tag]; ok {
		return domain.Short
	}
	return ""
}

// Config holds the immutable rule configuration of a run.
// It is built once and shared by reference by every detector and ledger.
type Config struct {
	TradeType         domain.TradeType
	AllowedDirection  domain.AllowedDirection
	SessionStart      time.Duration // offset from midnight
	SessionEnd        time.Duration // offset from midnight
	CheckFractal      bool
	CheckBandEntry    bool
	CheckTrailingBand bool
	BandColumn        string // band used by the band-entry check
	TrailBandColumn   string // band used by the trailing exit
	TrailingDirection domain.TrailingDirection
	FractalExitCount  int // UnlimitedFractalExits or the only recorded FRACTAL ordinal
	Signals           map[string]TagSets
}

// Validate checks that the config is usable.
func (c *Config) Validate() error {
	var errs []string

	if c.TradeType != domain.Intraday && c.TradeType != domain.Positional {
		errs = append(errs, fmt.Sprintf("invalid trade type %q", c.TradeType))
	}
	switch c.AllowedDirection {
	case domain.AllowAll, domain.AllowLong, domain.AllowShort:
	default:
		errs = append(errs, fmt.Sprintf("invalid allowed direction %q", c.AllowedDirection))
	}
	if c.TrailingDirection != domain.TrailHigher && c.TrailingDirection != domain.TrailLower {
		errs = append(errs, fmt.Sprintf("invalid trailing direction %q", c.TrailingDirection))
	}
	if c.SessionStart < 0 || c.SessionStart >= 24*time.Hour || c.SessionEnd < 0 || c.SessionEnd >= 24*time.Hour {
		errs = append(errs, "session times must be within the day")
	}
	if c.CheckBandEntry && c.BandColumn == "" {
		errs = append(errs, "band column required when band entry check is enabled")
	}
	if c.CheckTrailingBand && c.TrailBandColumn == "" {
		errs = append(errs, "trailing band column required when trailing band check is enabled")
	}
	if c.FractalExitCount < 0 {
		errs = append(errs, "fractal exit count cannot be negative")
	}
	if len(c.Signals) == 0 {
		errs = append(errs, "at least one strategy tag mapping is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ports.ErrConfigurationError, strings.Join(errs, "; "))
	}
	return nil
}

// Hazards reports likely misconfigurations that do not prevent a run.
func (c *Config) Hazards() []error {
	var hazards []error
	if !c.CheckFractal && !c.CheckBandEntry {
		hazards = append(hazards, ErrNoEntryRules)
	}
	for _, id := range sortedKeys(c.Signals) {
		sets := c.Signals[id]
		for _, tag := range sortedKeys(sets.LongEntry) {
			if _, ok := sets.ShortEntry[tag]; ok {
				hazards = append(hazards, fmt.Errorf("strategy %s entry tag %q: %w", id, tag, ErrAmbiguousTag))
			}
		}
		for _, tag := range sortedKeys(sets.LongExit) {
			if _, ok := sets.ShortExit[tag]; ok {
				hazards = append(hazards, fmt.Errorf("strategy %s exit tag %q: %w", id, tag, ErrAmbiguousTag))
			}
		}
	}
	return hazards
}

// CheckFeeds rejects enabled checks whose input feed is not loaded.
func (c *Config) CheckFeeds(f domain.Feeds) error {
	var missing []string
	if c.CheckFractal || c.CheckBandEntry {
		if !f.EntryFractal {
			missing = append(missing, "entry fractal")
		}
	}
	if c.CheckFractal || c.CheckTrailingBand {
		if !f.ExitFractal {
			missing = append(missing, "exit fractal")
		}
	}
	if c.CheckBandEntry && !f.EntryBand {
		missing = append(missing, "entry band")
	}
	if c.CheckTrailingBand && !f.TrailBand {
		missing = append(missing, "trailing band")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: enabled checks need feeds that were not loaded: %s",
			ports.ErrConfigurationError, strings.Join(missing, ", "))
	}
	return nil
}

// Tags returns the tag sets of a strategy.
func (c *Config) Tags(strategyID string) (TagSets, bool) {
	sets, ok := c.Signals[strategyID]
	return sets, ok
}

// InSession reports whether t is at or after the session start.
func (c *Config) InSession(t time.Time) bool {
	return TimeOfDay(t) >= c.SessionStart
}

// SessionEnded reports whether an intraday session has ended at t.
// Positional runs never end.
func (c *Config) SessionEnded(t time.Time) bool {
	return c.TradeType == domain.Intraday && TimeOfDay(t) >= c.SessionEnd
}

// TimeOfDay returns the offset of t from its midnight.
func TimeOfDay(t time.Time) time.Duration {
	h, m, s := t.Clock()
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second + time.Duration(t.Nanosecond())
}

// ParseTimeOfDay parses "HH:MM:SS" or "HH:MM" into an offset from midnight.
func ParseTimeOfDay(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04:05", "15:04"} {
		t, err := time.Parse(layout, s)
		if err == nil {
			return TimeOfDay(t), nil
		}
	}
	return 0, fmt.Errorf("invalid time of day %q", s)
}

// ParseFractalExitCount parses a positive ordinal. Anything else, including
// "ALL", selects UnlimitedFractalExits.
func ParseFractalExitCount(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return UnlimitedFractalExits
	}
	return n
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
