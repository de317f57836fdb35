package backtest

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/fundsight/fundsight-go/internal/models"
)

var (
	hundred = decimal.NewFromInt(100)
	// bandShare is the target slice size used to derive how many funds
	// a risk-profile band is split across: ceil(band/20) shares.
	bandShare = decimal.NewFromInt(20)
)

// profileBand is the target allocation band of a risk profile, in
// percent of the portfolio.
type profileBand struct {
	EquityMax float64
	DebtMin   float64
	HybridMax float64
}

var profileBands = map[models.RiskProfile]profileBand{
	models.ProfileConservative: {EquityMax: 20, DebtMin: 60, HybridMax: 20},
	models.ProfileModerate:     {EquityMax: 50, DebtMin: 30, HybridMax: 20},
	models.ProfileAggressive:   {EquityMax: 70, DebtMin: 10, HybridMax: 20},
}

// Allocator assigns percentage weights to a selected basket. Weights
// always sum to exactly 100, with the rounding residual assigned to the
// last fund in selection order.
type Allocator struct {
	classifier AssetClassifier
}

// NewAllocator creates an allocator using the given asset classifier
// for risk-profile banded weighting.
func NewAllocator(classifier AssetClassifier) *Allocator {
	if classifier == nil {
		classifier = NewCategoryTextClassifier()
	}
	return &Allocator{classifier: classifier}
}

// Allocate computes weights for the basket under the given mode.
func (a *Allocator) Allocate(funds []models.FundRecord, mode models.WeightingMode, profile models.RiskProfile) (models.PortfolioAllocation, error) {
	if len(funds) == 0 {
		return models.PortfolioAllocation{}, &NoEligibleFundsError{Criteria: "allocation over empty basket"}
	}

	switch mode {
	case models.WeightByScore:
		return a.allocateByScore(funds), nil
	case models.WeightRiskProfile:
		return a.allocateRiskProfile(funds, profile)
	case models.WeightEqual, "":
		return a.allocateEqual(funds), nil
	default:
		return models.PortfolioAllocation{}, &ConfigurationError{Reason: fmt.Sprintf("unknown weighting mode %q", mode)}
	}
}

func (a *Allocator) allocateEqual(funds []models.FundRecord) models.PortfolioAllocation {
	weight := hundred.Div(decimal.NewFromInt(int64(len(funds)))).Round(2)

	entries := make([]models.AllocationEntry, 0, len(funds))
	for _, fund := range funds {
		entries = append(entries, models.AllocationEntry{Fund: fund, WeightPercent: weight})
	}
	return normalize(entries)
}

func (a *Allocator) allocateByScore(funds []models.FundRecord) models.PortfolioAllocation {
	total := decimal.Zero
	for _, fund := range funds {
		total = total.Add(decimal.NewFromFloat(fund.Score))
	}
	// Zero total score carries no signal to weight on.
	if total.IsZero() {
		return a.allocateEqual(funds)
	}

	entries := make([]models.AllocationEntry, 0, len(funds))
	for _, fund := range funds {
		weight := decimal.NewFromFloat(fund.Score).Div(total).Mul(hundred).Round(2)
		entries = append(entries, models.AllocationEntry{Fund: fund, WeightPercent: weight})
	}
	return normalize(entries)
}

// allocateRiskProfile buckets the basket by asset class and fills each
// band: equity receives EquityMax split across ceil(EquityMax/20) equal
// shares, debt receives DebtMin likewise, and whatever remains goes to
// hybrid funds or, absent any, to the next unallocated equity fund.
func (a *Allocator) allocateRiskProfile(funds []models.FundRecord, profile models.RiskProfile) (models.PortfolioAllocation, error) {
	band, ok := profileBands[profile]
	if !ok {
		return models.PortfolioAllocation{}, &ConfigurationError{Reason: fmt.Sprintf("unknown risk profile %q", profile)}
	}

	var equity, debt, hybrid []models.FundRecord
	for _, fund := range funds {
		switch a.classifier.Classify(fund.Category, fund.SubCategory) {
		case AssetEquity:
			equity = append(equity, fund)
		case AssetDebt:
			debt = append(debt, fund)
		default:
			hybrid = append(hybrid, fund)
		}
	}

	weights := make(map[int64]decimal.Decimal, len(funds))
	allocated := decimal.Zero

	allocated = allocated.Add(fillBand(weights, equity, decimal.NewFromFloat(band.EquityMax)))
	allocated = allocated.Add(fillBand(weights, debt, decimal.NewFromFloat(band.DebtMin)))

	remainder := hundred.Sub(allocated)
	if remainder.IsPositive() {
		if len(hybrid) > 0 {
			fillBand(weights, hybrid, remainder)
		} else if next := nextUnallocated(equity, weights); next != nil {
			weights[next.ID] = weights[next.ID].Add(remainder)
		} else if next := nextUnallocated(debt, weights); next != nil {
			weights[next.ID] = weights[next.ID].Add(remainder)
		} else if len(funds) > 0 {
			last := funds[len(funds)-1]
			weights[last.ID] = weights[last.ID].Add(remainder)
		}
	}

	entries := make([]models.AllocationEntry, 0, len(funds))
	for _, fund := range funds {
		w, ok := weights[fund.ID]
		if !ok || !w.IsPositive() {
			continue
		}
		entries = append(entries, models.AllocationEntry{Fund: fund, WeightPercent: w.Round(2)})
	}
	if len(entries) == 0 {
		return models.PortfolioAllocation{}, &NoEligibleFundsError{Criteria: fmt.Sprintf("risk profile %q over unclassifiable basket", profile)}
	}
	return normalize(entries), nil
}

// fillBand splits bandWeight across ceil(band/20) funds from the bucket
// (fewer when the bucket is smaller) and reports how much it placed.
func fillBand(weights map[int64]decimal.Decimal, bucket []models.FundRecord, bandWeight decimal.Decimal) decimal.Decimal {
	if len(bucket) == 0 || !bandWeight.IsPositive() {
		return decimal.Zero
	}

	shares := int(bandWeight.Div(bandShare).Ceil().IntPart())
	if shares < 1 {
		shares = 1
	}
	if shares > len(bucket) {
		shares = len(bucket)
	}

	each := bandWeight.Div(decimal.NewFromInt(int64(shares)))
	for i := 0; i < shares; i++ {
		weights[bucket[i].ID] = weights[bucket[i].ID].Add(each)
	}
	return bandWeight
}

func nextUnallocated(bucket []models.FundRecord, weights map[int64]decimal.Decimal) *models.FundRecord {
	for i := range bucket {
		if w, ok := weights[bucket[i].ID]; !ok || w.IsZero() {
			return &bucket[i]
		}
	}
	return nil
}

// normalize pins the weight sum to exactly 100 by assigning the
// rounding residual to the last entry.
func normalize(entries []models.AllocationEntry) models.PortfolioAllocation {
	if len(entries) == 0 {
		return models.PortfolioAllocation{}
	}

	sumButLast := decimal.Zero
	for i := 0; i < len(entries)-1; i++ {
		sumButLast = sumButLast.Add(entries[i].WeightPercent)
	}
	entries[len(entries)-1].WeightPercent = hundred.Sub(sumButLast)

	return models.PortfolioAllocation{Entries: entries}
}
