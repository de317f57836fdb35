package backtest

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundsight/fundsight-go/internal/models"
)

func TestValidateScoresNilOnEmptyAllocation(t *testing.T) {
	assert.Nil(t, ValidateScores(models.PortfolioAllocation{}, nil, 0.10))
}

func TestValidateScoresPerfectlyLinearCorrelation(t *testing.T) {
	allocation := models.PortfolioAllocation{Entries: []models.AllocationEntry{
		{Fund: fund(1, "A", "Equity", 90), WeightPercent: decimal.NewFromInt(40)},
		{Fund: fund(2, "B", "Equity", 60), WeightPercent: decimal.NewFromInt(30)},
		{Fund: fund(3, "C", "Equity", 30), WeightPercent: decimal.NewFromInt(30)},
	}}
	attribution := []models.FundAttribution{
		{FundID: 1, AbsoluteReturn: 15},
		{FundID: 2, AbsoluteReturn: 10},
		{FundID: 3, AbsoluteReturn: 5},
	}

	validation := ValidateScores(allocation, attribution, 0.12)
	require.NotNil(t, validation)
	assert.InDelta(t, 1.0, validation.Correlation, 1e-9)

	// 90*0.4 + 60*0.3 + 30*0.3 = 63: the 60-80 band expects 12%.
	assert.InDelta(t, 63.0, validation.WeightedAvgScore, 1e-9)
	assert.InDelta(t, 0.12, validation.ExpectedReturn, 1e-12)
	assert.InDelta(t, 100.0, validation.Accuracy, 1e-9)
}

func TestValidateScoresAccuracyPenalizesMiss(t *testing.T) {
	allocation := models.PortfolioAllocation{Entries: []models.AllocationEntry{
		{Fund: fund(1, "A", "Equity", 85), WeightPercent: decimal.NewFromInt(100)},
	}}
	attribution := []models.FundAttribution{{FundID: 1, AbsoluteReturn: 2}}

	// Score 85 expects 15% annualized; realizing 5% misses by 10 points.
	validation := ValidateScores(allocation, attribution, 0.05)
	require.NotNil(t, validation)
	assert.InDelta(t, 0.15, validation.ExpectedReturn, 1e-12)
	assert.InDelta(t, 90.0, validation.Accuracy, 1e-9)
}

func TestValidateScoresAccuracyClampsAtZero(t *testing.T) {
	allocation := models.PortfolioAllocation{Entries: []models.AllocationEntry{
		{Fund: fund(1, "A", "Equity", 85), WeightPercent: decimal.NewFromInt(100)},
	}}

	validation := ValidateScores(allocation, nil, 2.50)
	require.NotNil(t, validation)
	assert.Zero(t, validation.Accuracy)
}

func TestExpectedReturnBands(t *testing.T) {
	tests := []struct {
		score float64
		want  float64
	}{
		{score: 95, want: 0.15},
		{score: 80, want: 0.15},
		{score: 79.9, want: 0.12},
		{score: 60, want: 0.12},
		{score: 45, want: 0.09},
		{score: 25, want: 0.06},
		{score: 5, want: 0.03},
		{score: 0, want: 0.03},
	}

	for _, tt := range tests {
		assert.InDelta(t, tt.want, expectedReturnFor(tt.score), 1e-12, "score %.1f", tt.score)
	}
}
