package backtest

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundsight/fundsight-go/internal/models"
)

func TestAnalyzeAttribution(t *testing.T) {
	a := fund(1, "Winner", "Equity", 90)
	b := fund(2, "Loser", "Equity", 40)
	allocation := models.PortfolioAllocation{Entries: []models.AllocationEntry{
		{Fund: a, WeightPercent: decimal.NewFromInt(60)},
		{Fund: b, WeightPercent: decimal.NewFromInt(40)},
	}}
	navs := map[int64][]models.NavObservation{
		1: {
			{FundID: 1, Date: day(2023, 1, 1), Value: decimal.NewFromInt(100)},
			{FundID: 1, Date: day(2023, 12, 1), Value: decimal.NewFromInt(120)},
		},
		2: {
			{FundID: 2, Date: day(2023, 1, 1), Value: decimal.NewFromInt(100)},
			{FundID: 2, Date: day(2023, 12, 1), Value: decimal.NewFromInt(95)},
		},
	}

	attribution := AnalyzeAttribution(allocation, navs, 8.0)
	require.Len(t, attribution, 2)

	// Sorted descending by contribution.
	assert.Equal(t, int64(1), attribution[0].FundID)
	assert.InDelta(t, 20.0, attribution[0].AbsoluteReturn, 1e-9)
	assert.InDelta(t, 12.0, attribution[0].Contribution, 1e-9) // 20% * 60/100
	assert.InDelta(t, 12.0, attribution[0].Alpha, 1e-9)        // 20 - 8

	assert.Equal(t, int64(2), attribution[1].FundID)
	assert.InDelta(t, -5.0, attribution[1].AbsoluteReturn, 1e-9)
	assert.InDelta(t, -2.0, attribution[1].Contribution, 1e-9)
	assert.InDelta(t, -13.0, attribution[1].Alpha, 1e-9)
}

func TestAnalyzeAttributionMissingNavSeries(t *testing.T) {
	a := fund(1, "NoData", "Equity", 50)
	allocation := models.PortfolioAllocation{Entries: []models.AllocationEntry{
		{Fund: a, WeightPercent: decimal.NewFromInt(100)},
	}}

	attribution := AnalyzeAttribution(allocation, map[int64][]models.NavObservation{}, 8.0)
	require.Len(t, attribution, 1)
	assert.Zero(t, attribution[0].AbsoluteReturn)
	assert.Zero(t, attribution[0].Contribution)
}
