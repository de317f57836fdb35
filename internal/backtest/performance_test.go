package backtest

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundsight/fundsight-go/internal/models"
)

func series(returns ...float64) []models.MonthlyReturn {
	s := make([]models.MonthlyReturn, len(returns))
	for i, r := range returns {
		s[i] = models.MonthlyReturn{Date: day(2023, 1, 1).AddDate(0, i+1, 0), Return: r}
	}
	return s
}

func TestAnalyzePerformanceEmptySeries(t *testing.T) {
	_, err := AnalyzePerformance(nil)
	var empty *EmptySeriesError
	require.ErrorAs(t, err, &empty)
}

func TestAnalyzePerformanceTwelveOnePercentMonths(t *testing.T) {
	returns := make([]float64, 12)
	for i := range returns {
		returns[i] = 0.01
	}

	perf, err := AnalyzePerformance(series(returns...))
	require.NoError(t, err)

	want := math.Pow(1.01, 12) - 1 // ~= 12.68%
	assert.InDelta(t, want, perf.TotalReturn, 1e-12)
	// Twelve months: annualized equals total (exponent 1).
	assert.InDelta(t, want, perf.AnnualizedReturn, 1e-12)
	assert.InDelta(t, 1.0, perf.WinRate, 1e-12)
	assert.Equal(t, 12, perf.Months)
}

func TestAnalyzePerformanceMixedSeries(t *testing.T) {
	perf, err := AnalyzePerformance(series(0.05, -0.02, 0.03, -0.01))
	require.NoError(t, err)

	assert.InDelta(t, 0.5, perf.WinRate, 1e-12)
	assert.InDelta(t, 0.05, perf.BestMonth, 1e-12)
	assert.InDelta(t, -0.02, perf.WorstMonth, 1e-12)

	want := 1.05*0.98*1.03*0.99 - 1
	assert.InDelta(t, want, perf.TotalReturn, 1e-12)
	assert.InDelta(t, math.Pow(1+want, 3)-1, perf.AnnualizedReturn, 1e-12)
}

func TestAnalyzePerformanceAllFlat(t *testing.T) {
	perf, err := AnalyzePerformance(series(0, 0, 0, 0, 0, 0))
	require.NoError(t, err)
	assert.Zero(t, perf.TotalReturn)
	assert.Zero(t, perf.AnnualizedReturn)
	assert.Zero(t, perf.WinRate)
}
