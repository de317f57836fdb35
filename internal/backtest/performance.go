package backtest

import (
	"math"

	"github.com/fundsight/fundsight-go/internal/models"
)

// AnalyzePerformance derives return statistics from a frozen monthly
// series. The series must be non-empty.
func AnalyzePerformance(series []models.MonthlyReturn) (models.PerformanceMetrics, error) {
	if len(series) == 0 {
		return models.PerformanceMetrics{}, &EmptySeriesError{}
	}

	total := 1.0
	wins := 0
	best := series[0].Return
	worst := series[0].Return
	for _, r := range series {
		total *= 1 + r.Return
		if r.Return > 0 {
			wins++
		}
		if r.Return > best {
			best = r.Return
		}
		if r.Return < worst {
			worst = r.Return
		}
	}
	totalReturn := total - 1

	n := float64(len(series))
	annualized := math.Pow(1+totalReturn, 12/n) - 1

	return models.PerformanceMetrics{
		TotalReturn:      totalReturn,
		AnnualizedReturn: annualized,
		WinRate:          float64(wins) / n,
		BestMonth:        best,
		WorstMonth:       worst,
		Months:           len(series),
	}, nil
}

// annualizedReturn compounds a monthly series into a per-year rate.
// Zero for an empty series.
func annualizedReturn(series []models.MonthlyReturn) float64 {
	if len(series) == 0 {
		return 0
	}
	total := 1.0
	for _, r := range series {
		total *= 1 + r.Return
	}
	return math.Pow(total, 12/float64(len(series))) - 1
}
