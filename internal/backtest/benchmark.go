package backtest

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fundsight/fundsight-go/internal/models"
)

// CompareBenchmark relates the portfolio series to a benchmark index
// series over the same window. Returns nil when the benchmark cannot be
// aligned to the portfolio's dates (the explicit no-benchmark state).
func CompareBenchmark(index string, series []models.MonthlyReturn, observations []models.BenchmarkObservation, windowStart time.Time) *models.BenchmarkComparison {
	if len(series) == 0 || len(observations) < 2 {
		return nil
	}

	benchmark, ok := alignBenchmarkReturns(series, observations, windowStart)
	if !ok {
		return nil
	}

	portfolio := make([]float64, len(series))
	for i, r := range series {
		portfolio[i] = r.Return
	}

	portfolioAnn := annualizedReturn(series)
	benchmarkAnn := annualizedFromReturns(benchmark)
	alpha := portfolioAnn - benchmarkAnn

	beta := 0.0
	if v := variance(benchmark); v > 0 {
		beta = covariance(portfolio, benchmark) / v
	}

	active := make([]float64, len(portfolio))
	for i := range portfolio {
		active[i] = portfolio[i] - benchmark[i]
	}
	trackingError := stddev(active)

	informationRatio := 0.0
	if trackingError > 0 {
		informationRatio = alpha / trackingError
	}

	upCapture, downCapture := captureRatios(portfolio, benchmark)

	return &models.BenchmarkComparison{
		Index:            index,
		BenchmarkReturn:  benchmarkAnn,
		Alpha:            alpha,
		Beta:             beta,
		TrackingError:    trackingError,
		InformationRatio: informationRatio,
		UpCapture:        upCapture,
		DownCapture:      downCapture,
	}
}

// BenchmarkWindowReturn is the benchmark's absolute return over the
// window in percent, used as the attribution baseline. ok is false when
// fewer than two observations exist.
func BenchmarkWindowReturn(observations []models.BenchmarkObservation) (float64, bool) {
	if len(observations) < 2 {
		return 0, false
	}
	first := observations[0].Value
	last := observations[len(observations)-1].Value
	if !first.IsPositive() {
		return 0, false
	}
	ratio, _ := last.Div(first).Float64()
	return (ratio - 1) * 100, true
}

// alignBenchmarkReturns derives benchmark monthly returns on the exact
// step dates of the portfolio series, using the latest observation at
// or before each date.
func alignBenchmarkReturns(series []models.MonthlyReturn, observations []models.BenchmarkObservation, windowStart time.Time) ([]float64, bool) {
	returns := make([]float64, 0, len(series))
	prevDate := windowStart

	for _, step := range series {
		prev, okPrev := benchmarkAt(observations, prevDate)
		curr, okCurr := benchmarkAt(observations, step.Date)
		if !okPrev || !okCurr || !prev.IsPositive() {
			return nil, false
		}
		ratio, _ := curr.Div(prev).Float64()
		returns = append(returns, ratio-1)
		prevDate = step.Date
	}
	return returns, true
}

func benchmarkAt(observations []models.BenchmarkObservation, date time.Time) (decimal.Decimal, bool) {
	idx := sort.Search(len(observations), func(i int) bool {
		return observations[i].Date.After(date)
	})
	if idx == 0 {
		return decimal.Zero, false
	}
	return observations[idx-1].Value, true
}

func annualizedFromReturns(returns []float64) float64 {
	series := make([]models.MonthlyReturn, len(returns))
	for i, r := range returns {
		series[i] = models.MonthlyReturn{Return: r}
	}
	return annualizedReturn(series)
}

// captureRatios compares average portfolio return to average benchmark
// return in up and down benchmark months, scaled to percent.
func captureRatios(portfolio, benchmark []float64) (up, down float64) {
	var upP, upB, downP, downB []float64
	for i := range benchmark {
		switch {
		case benchmark[i] > 0:
			upP = append(upP, portfolio[i])
			upB = append(upB, benchmark[i])
		case benchmark[i] < 0:
			downP = append(downP, portfolio[i])
			downB = append(downB, benchmark[i])
		}
	}
	if b := mean(upB); b != 0 {
		up = mean(upP) / b * 100
	}
	if b := mean(downB); b != 0 {
		down = mean(downP) / b * 100
	}
	return up, down
}
