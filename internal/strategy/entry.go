package strategy

import (
	"fractalTrader/internal/domain"
)

// EntryDetector decides whether a row opens a trade.
type EntryDetector struct {
	cfg *Config
}

// NewEntryDetector creates an entry detector bound to cfg.
func NewEntryDetector(cfg *Config) *EntryDetector {
	return &EntryDetector{cfg: cfg}
}

// Decide evaluates one row against the entry rules of strategyID, updating mem.
// The resolved direction is returned even when the entry is rejected.
func (d *EntryDetector) Decide(row *domain.MarketRow, mem *FractalMemory, strategyID string) (bool, domain.Direction) {
	if !d.cfg.InSession(row.Time) || d.cfg.SessionEnded(row.Time) {
		return false, ""
	}

	tags, _ := d.cfg.Tags(strategyID)
	dir := tags.EntryDirection(row.Tag)
	if dir == "" {
		return false, ""
	}

	// Memory follows every resolved direction, allowed or not.
	mem.Reset(dir)
	mem.Update(dir, row, row.EntryFractal)

	if !d.cfg.AllowedDirection.Permits(dir) {
		return false, dir
	}

	var fractalOK, bandOK bool
	if d.cfg.CheckFractal {
		fractalOK = fractalConfirmed(mem, dir, row.EntryFractal)
	}
	if d.cfg.CheckBandEntry {
		bandOK = d.bandEntry(row, mem, dir)
	}

	switch {
	case d.cfg.CheckFractal && d.cfg.CheckBandEntry:
		return fractalOK && bandOK, dir
	case d.cfg.CheckFractal:
		return fractalOK, dir
	case d.cfg.CheckBandEntry:
		return bandOK, dir
	}
	return false, dir
}

// bandEntry compares the stored fractal with the entry band: a long needs the
// fractal below the band, a short above it.
func (d *EntryDetector) bandEntry(row *domain.MarketRow, mem *FractalMemory, dir domain.Direction) bool {
	fractal, ok := mem.Fractal(dir)
	if !ok {
		return false
	}
	band, ok := row.Band(d.cfg.BandColumn)
	if !ok {
		return false
	}
	if dir == domain.Long {
		return fractal.Price < band
	}
	return fractal.Price > band
}

// fractalConfirmed is shared by entry and exit: a stored fractal plus the
// row's confirmed flag for the same direction.
func fractalConfirmed(mem *FractalMemory, dir domain.Direction, flags domain.FractalFlags) bool {
	return mem.HasFractal(dir) && flags.Confirmed(dir)
}
