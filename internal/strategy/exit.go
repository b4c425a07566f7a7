package strategy

import (
	"fractalTrader/internal/domain"
)

// ExitDetector decides whether a row exits every active trade.
type ExitDetector struct {
	cfg *Config
}

// NewExitDetector creates an exit detector bound to cfg.
func NewExitDetector(cfg *Config) *ExitDetector {
	return &ExitDetector{cfg: cfg}
}

// Decide evaluates one row against the exit rules of strategyID, updating mem.
//
// Precedence: session end, then tag change, then fractal over trailing.
// The trailing and fractal checks always run before the tag-change test so
// that their state advances on every row.
func (d *ExitDetector) Decide(row *domain.MarketRow, mem *ExitMemory, strategyID string) (bool, domain.ExitType) {
	if d.cfg.SessionEnded(row.Time) {
		return true, domain.ExitSessionEnd
	}

	tags, _ := d.cfg.Tags(strategyID)
	dir := tags.ExitDirection(row.Tag)
	mem.Reset(dir)
	mem.Update(dir, row, row.ExitFractal)

	var trailing, fractal bool
	if d.cfg.CheckTrailingBand {
		trailing = d.trailingExit(row, mem, dir)
	}
	if d.cfg.CheckFractal {
		fractal = fractalConfirmed(&mem.FractalMemory, dir, row.ExitFractal)
	}

	if mem.TagChanged(row.Tag) {
		return true, domain.ExitSignal
	}

	switch {
	case fractal:
		return true, domain.ExitFractal
	case trailing:
		return true, domain.ExitTrailing
	}
	return false, ""
}

// trailingExit runs the two-phase crossing detector. The first primary cross
// arms it; the following opposite cross fires and disarms it.
func (d *ExitDetector) trailingExit(row *domain.MarketRow, mem *ExitMemory, dir domain.Direction) bool {
	fractal, ok := mem.Fractal(dir)
	if !ok {
		return false
	}
	band, ok := row.Band(d.cfg.TrailBandColumn)
	if !ok {
		return false
	}

	if !mem.TrailFirstFound {
		if d.cfg.TrailingDirection.Primary(fractal.Price, band) {
			mem.TrailFirstFound = true
			mem.FirstTrailTime = row.Time
		}
		return false
	}
	if d.cfg.TrailingDirection.Opposite(fractal.Price, band) {
		mem.TrailFirstFound = false
		return true
	}
	return false
}
