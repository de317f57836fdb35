package backtest

import (
	"math"
	"sort"

	"github.com/fundsight/fundsight-go/internal/models"
)

// AnalyzeRisk derives risk measures from a frozen monthly series.
// Degenerate denominators (zero volatility, no drawdown, no negative
// months) yield 0, never an error. riskFreeRate is annual.
func AnalyzeRisk(series []models.MonthlyReturn, riskFreeRate float64) (models.RiskMetrics, error) {
	if len(series) == 0 {
		return models.RiskMetrics{}, &EmptySeriesError{}
	}

	returns := make([]float64, len(series))
	for i, r := range series {
		returns[i] = r.Return
	}

	annualized := annualizedReturn(series)
	volatility := stddev(returns) * math.Sqrt(12)
	maxDD := maxDrawdown(returns)

	sharpe := 0.0
	if volatility > 0 {
		sharpe = (annualized - riskFreeRate) / volatility
	}

	sortino := 0.0
	if downside := downsideDeviation(returns); downside > 0 {
		sortino = (annualized - riskFreeRate) / downside
	}

	calmar := 0.0
	if maxDD > 0 {
		calmar = annualized / maxDD
	}

	return models.RiskMetrics{
		Volatility:    volatility,
		MaxDrawdown:   maxDD,
		SharpeRatio:   sharpe,
		SortinoRatio:  sortino,
		CalmarRatio:   calmar,
		ValueAtRisk95: valueAtRisk95(returns),
	}, nil
}

// maxDrawdown is the largest peak-to-trough decline of the cumulative
// value path obtained by compounding the monthly returns.
func maxDrawdown(returns []float64) float64 {
	value := 1.0
	peak := 1.0
	maxDD := 0.0
	for _, r := range returns {
		value *= 1 + r
		if value > peak {
			peak = value
		}
		if dd := (peak - value) / peak; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// downsideDeviation is the annualized root-mean-square of the negative
// monthly returns, 0 when there are none.
func downsideDeviation(returns []float64) float64 {
	sumSq := 0.0
	count := 0
	for _, r := range returns {
		if r < 0 {
			sumSq += r * r
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return math.Sqrt(sumSq/float64(count)) * math.Sqrt(12)
}

// valueAtRisk95 is the monthly return at the 5th percentile of the
// sorted series (index floor(0.05 * n)).
func valueAtRisk95(returns []float64) float64 {
	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)
	idx := int(math.Floor(0.05 * float64(len(sorted))))
	return sorted[idx]
}
