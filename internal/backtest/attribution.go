package backtest

import (
	"sort"

	"github.com/fundsight/fundsight-go/internal/models"
)

// DefaultBenchmarkWindowReturn is the baseline (percent over the
// window) used for per-fund alpha when no real benchmark series is
// available. A warning accompanies any result that fell back to it.
const DefaultBenchmarkWindowReturn = 8.0

// AnalyzeAttribution decomposes the window return into per-holding
// contributions. benchmarkWindowReturn is the benchmark's absolute
// return over the same window in percent; pass
// DefaultBenchmarkWindowReturn when no series exists.
func AnalyzeAttribution(allocation models.PortfolioAllocation, navs map[int64][]models.NavObservation, benchmarkWindowReturn float64) []models.FundAttribution {
	attribution := make([]models.FundAttribution, 0, len(allocation.Entries))

	for _, e := range allocation.Entries {
		weight, _ := e.WeightPercent.Float64()
		absolute := fundWindowReturn(navs[e.Fund.ID])

		attribution = append(attribution, models.FundAttribution{
			FundID:         e.Fund.ID,
			FundName:       e.Fund.Name,
			WeightPercent:  weight,
			AbsoluteReturn: absolute,
			Contribution:   absolute * weight / 100,
			Alpha:          absolute - benchmarkWindowReturn,
		})
	}

	sort.SliceStable(attribution, func(i, j int) bool {
		return attribution[i].Contribution > attribution[j].Contribution
	})
	return attribution
}

// fundWindowReturn is (final NAV / initial NAV - 1) * 100 over the
// fund's observations inside the window, 0 when fewer than two exist.
func fundWindowReturn(series []models.NavObservation) float64 {
	if len(series) < 2 {
		return 0
	}
	first := series[0].Value
	last := series[len(series)-1].Value
	if !first.IsPositive() {
		return 0
	}
	ratio, _ := last.Div(first).Float64()
	return (ratio - 1) * 100
}
