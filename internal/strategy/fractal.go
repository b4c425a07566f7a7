package strategy

import (
	"time"

	"fractalTrader/internal/domain"
)

// FractalPoint is a stored unconfirmed fractal.
type FractalPoint struct {
	Time  time.Time
	Price float64
}

// FractalMemory keeps the latest unconfirmed fractal per direction.
// The entry and exit paths each own an instance; they never share one.
type FractalMemory struct {
	long  *FractalPoint
	short *FractalPoint
}

func (m *FractalMemory) slot(d domain.Direction) **FractalPoint {
	switch d {
	case domain.Long:
		return &m.long
	case domain.Short:
		return &m.short
	}
	return nil
}

// Reset clears the fractal stored for the direction opposite to d.
// An unset direction is a no-op.
func (m *FractalMemory) Reset(d domain.Direction) {
	if s := m.slot(d.Opposite()); s != nil {
		*s = nil
	}
}

// Update stores the row as the latest fractal for d when the row carries an
// unconfirmed fractal for d. The flags come from the feed owned by the caller.
func (m *FractalMemory) Update(d domain.Direction, row *domain.MarketRow, flags domain.FractalFlags) {
	s := m.slot(d)
	if s == nil || !flags.Unconfirmed(d) {
		return
	}
	*s = &FractalPoint{Time: row.Time, Price: row.Close}
}

// HasFractal reports whether a fractal is stored for d.
func (m *FractalMemory) HasFractal(d domain.Direction) bool {
	_, ok := m.Fractal(d)
	return ok
}

// Fractal returns the fractal stored for d.
func (m *FractalMemory) Fractal(d domain.Direction) (FractalPoint, bool) {
	s := m.slot(d)
	if s == nil || *s == nil {
		return FractalPoint{}, false
	}
	return **s, true
}

// ExitMemory is the exit path's state: its own fractal memory, the tag of the
// previous row and the trailing-cross detector.
type ExitMemory struct {
	FractalMemory

	PreviousTag    string
	hasPreviousTag bool

	TrailFirstFound bool      // detector armed, waiting for the reversal cross
	FirstTrailTime  time.Time // row that armed the detector
}

// RememberTag records the tag of the row just processed.
func (m *ExitMemory) RememberTag(tag string) {
	m.PreviousTag = tag
	m.hasPreviousTag = true
}

// TagChanged reports whether a previous tag is known and differs from tag.
func (m *ExitMemory) TagChanged(tag string) bool {
	return m.hasPreviousTag && m.PreviousTag != tag
}
