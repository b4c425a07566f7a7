package analytics

import (
	"fmt"
	"io"
	"text/tabwriter"
)

// WriteSummaryTable renders the per-strategy metrics as an aligned table,
// strategies in rank order, followed by the overall total.
func WriteSummaryTable(out io.Writer, s *Summary) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "Rank\tStrategy\tSide\tSignals\tWin%\tNet\tNet%\tPts/Signal\tRR\tAvgHold\tMaxDD\t")

	ranked := make([]StrategyMetrics, len(s.Strategies))
	for _, m := range s.Strategies {
		ranked[m.Rank-1] = m
	}
	for _, m := range ranked {
		writeSide(w, fmt.Sprint(m.Rank), m.StrategyID, "long", m.Long)
		writeSide(w, "", "", "short", m.Short)
		writeSide(w, "", "", "total", m.Total)
	}
	writeSide(w, "", "ALL", "total", s.Total)
	return w.Flush()
}

func writeSide(w io.Writer, rank, id, side string, m SideMetrics) {
	fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%s\t%.2f\t\n",
		rank, id, side,
		m.Signals,
		m.Probability,
		m.NetPoints,
		m.NetPointsPercent,
		m.PointsPerSignal,
		m.RiskReward,
		m.AverageHolding,
		m.MaxDrawdown,
	)
}

// WriteMonthlyTable renders net points per month.
func WriteMonthlyTable(out io.Writer, returns []MonthlyReturn) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "Month\tNet\t")
	for _, r := range returns {
		fmt.Fprintf(w, "%s\t%.2f\t\n", r.Month.Format("2006-01"), r.Return)
	}
	return w.Flush()
}
