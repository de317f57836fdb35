package backtest

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/fundsight/fundsight-go/internal/models"
)

// simulatorState is the lifecycle of one simulation run.
type simulatorState int

const (
	stateInitialized simulatorState = iota
	stateRunning
	stateCompleted
)

// maxGapSteps is how many consecutive monthly steps more than half the
// basket may lack NAV data before the run aborts.
const maxGapSteps = 3

// RebalanceFunc recomputes target weights at a cadence boundary. Stored
// portfolios pass a func that reapplies their fixed weights.
type RebalanceFunc func(funds []models.FundRecord) (models.PortfolioAllocation, error)

// SimulationOutput is the frozen result of a completed simulation. All
// downstream metrics are pure functions of it.
type SimulationOutput struct {
	Series     []models.MonthlyReturn
	FinalValue decimal.Decimal
	Warnings   []string
}

// Simulator walks the backtest window one calendar month at a time,
// compounding the portfolio value from clamped per-fund NAV ratios.
type Simulator struct {
	cfg       models.BacktestConfig
	navs      map[int64][]models.NavObservation
	rebalance RebalanceFunc
	clampMin  float64
	clampMax  float64

	state simulatorState
}

// NewSimulator builds a simulator over prefetched NAV histories. Each
// history must be in chronological order. The clamp band suppresses
// corrupt feed jumps (defaults [0.7, 1.3] when the band is invalid).
func NewSimulator(cfg models.BacktestConfig, navs map[int64][]models.NavObservation, rebalance RebalanceFunc, clampMin, clampMax float64) *Simulator {
	if clampMin <= 0 || clampMin >= clampMax {
		clampMin, clampMax = 0.7, 1.3
	}
	return &Simulator{
		cfg:       cfg,
		navs:      navs,
		rebalance: rebalance,
		clampMin:  clampMin,
		clampMax:  clampMax,
		state:     stateInitialized,
	}
}

// Run executes the simulation once. A simulator is single-use: the
// series is frozen when the window end is reached.
func (s *Simulator) Run(allocation models.PortfolioAllocation) (*SimulationOutput, error) {
	if s.state != stateInitialized {
		return nil, fmt.Errorf("simulator already ran")
	}
	s.state = stateRunning

	out := &SimulationOutput{}
	weights := weightFractions(allocation)
	funds := make([]models.FundRecord, 0, len(allocation.Entries))
	for _, e := range allocation.Entries {
		funds = append(funds, e.Fund)
	}

	value := s.cfg.InitialCapital
	prevDate := s.cfg.StartDate
	cadence := s.cfg.RebalanceCadence.Months()
	gapRun := 0

	for step := 1; prevDate.Before(s.cfg.EndDate); step++ {
		stepDate := prevDate.AddDate(0, 1, 0)
		if stepDate.After(s.cfg.EndDate) {
			stepDate = s.cfg.EndDate
		}

		newValue := decimal.Zero
		missing := 0
		for _, e := range allocation.Entries {
			ratio, ok := s.navRatio(e.Fund.ID, prevDate, stepDate)
			if !ok {
				missing++
				out.Warnings = append(out.Warnings, fmt.Sprintf(
					"fund %d has no NAV data for %s, holding value flat", e.Fund.ID, stepDate.Format("2006-01")))
				logrus.WithFields(logrus.Fields{
					"fund_id": e.Fund.ID,
					"step":    stepDate.Format("2006-01-02"),
				}).Warn("NAV gap, using flat ratio")
				ratio = 1.0
			}
			contribution := weights[e.Fund.ID].Mul(value).Mul(decimal.NewFromFloat(ratio))
			newValue = newValue.Add(contribution)
		}

		// More than half the basket dark for maxGapSteps in a row means
		// the window cannot be simulated honestly.
		if missing*2 > len(allocation.Entries) {
			gapRun++
			if gapRun >= maxGapSteps {
				s.state = stateCompleted
				return nil, &InsufficientDataError{
					Step:       stepDate,
					Missing:    missing,
					BasketSize: len(allocation.Entries),
				}
			}
		} else {
			gapRun = 0
		}

		monthly := 0.0
		if value.IsPositive() {
			monthly, _ = newValue.Sub(value).Div(value).Float64()
		}
		out.Series = append(out.Series, models.MonthlyReturn{Date: stepDate, Return: monthly})
		value = newValue

		// Rebalance resets target weights only; the portfolio value is
		// untouched (no transaction cost modeling).
		if s.rebalance != nil && step%cadence == 0 && stepDate.Before(s.cfg.EndDate) {
			rebalanced, err := s.rebalance(funds)
			if err != nil {
				return nil, fmt.Errorf("rebalance at %s failed: %w", stepDate.Format("2006-01-02"), err)
			}
			weights = weightFractions(rebalanced)
		}

		prevDate = stepDate
	}

	s.state = stateCompleted
	out.FinalValue = value
	return out, nil
}

// navRatio returns NAV(latest ≤ to) / NAV(latest ≤ from), clamped to
// the configured band. ok is false when either side has no observation.
func (s *Simulator) navRatio(fundID int64, from, to time.Time) (float64, bool) {
	series := s.navs[fundID]
	prev, okPrev := navAt(series, from)
	curr, okCurr := navAt(series, to)
	if !okPrev || !okCurr || !prev.IsPositive() {
		return 0, false
	}

	ratio, _ := curr.Div(prev).Float64()
	if ratio < s.clampMin {
		ratio = s.clampMin
	} else if ratio > s.clampMax {
		ratio = s.clampMax
	}
	return ratio, true
}

// navAt finds the latest observation at or before date.
func navAt(series []models.NavObservation, date time.Time) (decimal.Decimal, bool) {
	idx := sort.Search(len(series), func(i int) bool {
		return series[i].Date.After(date)
	})
	if idx == 0 {
		return decimal.Zero, false
	}
	return series[idx-1].Value, true
}

// weightFractions converts percent weights into fractions keyed by fund.
func weightFractions(allocation models.PortfolioAllocation) map[int64]decimal.Decimal {
	fractions := make(map[int64]decimal.Decimal, len(allocation.Entries))
	for _, e := range allocation.Entries {
		fractions[e.Fund.ID] = e.WeightPercent.Div(hundred)
	}
	return fractions
}
