package backtest

import (
	"github.com/fundsight/fundsight-go/internal/models"
)

// scoreBand maps a quality score band to the annualized return it is
// expected to produce. Bands mirror the scoring model's calibration.
type scoreBand struct {
	MinScore       float64
	ExpectedReturn float64 // annualized, fraction
}

// expectationTable is ordered descending by MinScore; the first band
// whose floor the score clears applies.
var expectationTable = []scoreBand{
	{MinScore: 80, ExpectedReturn: 0.15},
	{MinScore: 60, ExpectedReturn: 0.12},
	{MinScore: 40, ExpectedReturn: 0.09},
	{MinScore: 20, ExpectedReturn: 0.06},
	{MinScore: 0, ExpectedReturn: 0.03},
}

// ValidateScores measures how well point-in-time scores predicted
// realized performance: the Pearson correlation of per-fund score vs
// realized window return, and the accuracy of the expectation-table
// return for the allocation-weighted average score.
func ValidateScores(allocation models.PortfolioAllocation, attribution []models.FundAttribution, actualAnnualized float64) *models.ScoreValidation {
	if len(allocation.Entries) == 0 {
		return nil
	}

	returnsByFund := make(map[int64]float64, len(attribution))
	for _, a := range attribution {
		returnsByFund[a.FundID] = a.AbsoluteReturn
	}

	scores := make([]float64, 0, len(allocation.Entries))
	realized := make([]float64, 0, len(allocation.Entries))
	weightedScore := 0.0
	for _, e := range allocation.Entries {
		scores = append(scores, e.Fund.Score)
		realized = append(realized, returnsByFund[e.Fund.ID])
		weight, _ := e.WeightPercent.Float64()
		weightedScore += e.Fund.Score * weight / 100
	}

	expected := expectedReturnFor(weightedScore)
	accuracy := 100 - abs(actualAnnualized-expected)*100
	if accuracy < 0 {
		accuracy = 0
	} else if accuracy > 100 {
		accuracy = 100
	}

	return &models.ScoreValidation{
		Correlation:      pearson(scores, realized),
		WeightedAvgScore: weightedScore,
		ExpectedReturn:   expected,
		ActualReturn:     actualAnnualized,
		Accuracy:         accuracy,
	}
}

func expectedReturnFor(score float64) float64 {
	for _, band := range expectationTable {
		if score >= band.MinScore {
			return band.ExpectedReturn
		}
	}
	return expectationTable[len(expectationTable)-1].ExpectedReturn
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
