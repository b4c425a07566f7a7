package analytics

import (
	"math"
	"sort"
	"time"

	"fractalTrader/internal/domain"
)

const day = 24 * time.Hour

// SideMetrics holds the leg statistics of one direction (or both, for totals).
type SideMetrics struct {
	Signals int
	Winners int
	Losers  int

	PlusPoints  float64 // sum of positive PNL
	MinusPoints float64 // sum of negative PNL, <= 0
	NetPoints   float64
	// NetPointsPercent sums each leg's PNL as a percentage of its entry price.
	NetPointsPercent float64

	Probability     float64 // winners / signals * 100
	PointsPerSignal float64
	RiskReward      float64 // average win / |average loss|; 0 without losers

	AverageHolding time.Duration
	// WeightedHoldingDays weighs each leg's holding time by |PNL|.
	WeightedHoldingDays float64

	MaxDrawdown float64 // deepest peak-to-trough of cumulative points, by exit time
}

// StrategyMetrics summarizes the legs of one strategy.
type StrategyMetrics struct {
	StrategyID string
	Long       SideMetrics
	Short      SideMetrics
	Total      SideMetrics
	Rank       int // 1 is the best net points
}

// Summary is the downstream view of a run's legs.
type Summary struct {
	Strategies []StrategyMetrics // in first-appearance order of the legs
	Total      SideMetrics
}

// Summarize aggregates legs per strategy and direction. Legs are not modified.
func Summarize(legs []*domain.TradeLeg) *Summary {
	byStrategy := make(map[string][]*domain.TradeLeg)
	var order []string
	for _, l := range legs {
		if _, ok := byStrategy[l.StrategyID]; !ok {
			order = append(order, l.StrategyID)
		}
		byStrategy[l.StrategyID] = append(byStrategy[l.StrategyID], l)
	}

	s := &Summary{Total: sideMetrics(legs)}
	for _, id := range order {
		group := byStrategy[id]
		var long, short []*domain.TradeLeg
		for _, l := range group {
			if l.Direction == domain.Short {
				short = append(short, l)
			} else {
				long = append(long, l)
			}
		}
		s.Strategies = append(s.Strategies, StrategyMetrics{
			StrategyID: id,
			Long:       sideMetrics(long),
			Short:      sideMetrics(short),
			Total:      sideMetrics(group),
		})
	}
	rank(s.Strategies)
	return s
}

// rank orders by net points, ties broken by probability then strategy ID.
func rank(metrics []StrategyMetrics) {
	idx := make([]int, len(metrics))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ma, mb := metrics[idx[a]].Total, metrics[idx[b]].Total
		if ma.NetPoints != mb.NetPoints {
			return ma.NetPoints > mb.NetPoints
		}
		if ma.Probability != mb.Probability {
			return ma.Probability > mb.Probability
		}
		return metrics[idx[a]].StrategyID < metrics[idx[b]].StrategyID
	})
	for r, i := range idx {
		metrics[i].Rank = r + 1
	}
}

func sideMetrics(legs []*domain.TradeLeg) SideMetrics {
	m := SideMetrics{}
	if len(legs) == 0 {
		return m
	}

	var totalHolding time.Duration
	var weightedDays, weights float64
	for _, l := range legs {
		m.Signals++
		m.NetPoints += l.PNL
		if l.EntryPrice != 0 {
			m.NetPointsPercent += l.PNL / l.EntryPrice * 100
		}
		if l.PNL > 0 {
			m.Winners++
			m.PlusPoints += l.PNL
		} else {
			m.Losers++
			m.MinusPoints += l.PNL
		}

		holding := l.HoldingDuration()
		totalHolding += holding
		w := math.Abs(l.PNL)
		weightedDays += holding.Hours() / day.Hours() * w
		weights += w
	}

	m.Probability = float64(m.Winners) / float64(m.Signals) * 100
	m.PointsPerSignal = m.NetPoints / float64(m.Signals)
	m.AverageHolding = totalHolding / time.Duration(m.Signals)
	if weights > 0 {
		m.WeightedHoldingDays = weightedDays / weights
	}
	if m.Winners > 0 && m.Losers > 0 && m.MinusPoints != 0 {
		avgWin := m.PlusPoints / float64(m.Winners)
		avgLoss := m.MinusPoints / float64(m.Losers)
		m.RiskReward = avgWin / -avgLoss
	}
	m.MaxDrawdown = maxDrawdown(legs)
	return m
}

// maxDrawdown walks cumulative points in exit order.
func maxDrawdown(legs []*domain.TradeLeg) float64 {
	ordered := make([]*domain.TradeLeg, len(legs))
	copy(ordered, legs)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].ExitTime.Before(ordered[j].ExitTime)
	})

	var equity, peak, worst float64
	for _, l := range ordered {
		equity += l.PNL
		if equity > peak {
			peak = equity
		}
		if dd := peak - equity; dd > worst {
			worst = dd
		}
	}
	return worst
}

// MonthlyPoints returns net points per exit month, sorted by month.
func MonthlyPoints(legs []*domain.TradeLeg) []MonthlyReturn {
	byMonth := make(map[string]float64)
	for _, l := range legs {
		byMonth[l.ExitTime.Format("2006-01")] += l.PNL
	}
	returns := make([]MonthlyReturn, 0, len(byMonth))
	for month, points := range byMonth {
		date, _ := time.Parse("2006-01", month)
		returns = append(returns, MonthlyReturn{Month: date, Return: points})
	}
	sort.Slice(returns, func(i, j int) bool {
		return returns[i].Month.Before(returns[j].Month)
	})
	return returns
}

// MonthlyReturn represents a monthly return value
type MonthlyReturn struct {
	Month  time.Time
	Return float64
}
