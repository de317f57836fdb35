package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// RebalanceCadence controls how often portfolio weights are reset.
type RebalanceCadence string

const (
	RebalanceMonthly   RebalanceCadence = "monthly"
	RebalanceQuarterly RebalanceCadence = "quarterly"
	RebalanceAnnually  RebalanceCadence = "annually"
)

// Months returns the cadence length in calendar months.
func (c RebalanceCadence) Months() int {
	switch c {
	case RebalanceQuarterly:
		return 3
	case RebalanceAnnually:
		return 12
	default:
		return 1
	}
}

// WeightingMode selects the allocation strategy.
type WeightingMode string

const (
	WeightEqual       WeightingMode = "equal"
	WeightByScore     WeightingMode = "score"
	WeightRiskProfile WeightingMode = "risk_profile"
)

// RiskProfile names a target allocation band.
type RiskProfile string

const (
	ProfileConservative RiskProfile = "conservative"
	ProfileModerate     RiskProfile = "moderate"
	ProfileAggressive   RiskProfile = "aggressive"
)

// SelectionCriteria is the tagged union of portfolio selection variants.
// Exactly one variant drives a backtest; precedence across variants is
// applied when an API request sets more than one (see handlers).
type SelectionCriteria interface {
	// Describe names the criteria for error messages and logs.
	Describe() string
	selectionVariant()
}

// SingleFundSelection backtests one fund.
type SingleFundSelection struct {
	FundID int64 `json:"fund_id"`
}

// FundListSelection backtests an explicit basket. Unknown ids are
// dropped with a warning.
type FundListSelection struct {
	FundIDs []int64 `json:"fund_ids"`
}

// ScoreRangeSelection picks funds whose score falls in [Min, Max].
type ScoreRangeSelection struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// QuartileSelection picks one score quartile (1 = best), optionally
// within a category.
type QuartileSelection struct {
	Quartile int    `json:"quartile"`
	Category string `json:"category,omitempty"`
}

// RecommendationSelection filters by recommendation tag.
type RecommendationSelection struct {
	Tag string `json:"tag"`
}

// StoredPortfolioSelection replays a saved portfolio, weights included.
type StoredPortfolioSelection struct {
	PortfolioID int64 `json:"portfolio_id"`
}

// RiskProfileSelection picks top-scoring funds above the quality floor,
// to be weighted by the risk-profile allocation bands.
type RiskProfileSelection struct {
	Profile RiskProfile `json:"profile"`
}

func (s SingleFundSelection) Describe() string { return fmt.Sprintf("fund id %d", s.FundID) }
func (s FundListSelection) Describe() string   { return fmt.Sprintf("fund list (%d ids)", len(s.FundIDs)) }
func (s ScoreRangeSelection) Describe() string {
	return fmt.Sprintf("score range [%.1f, %.1f]", s.Min, s.Max)
}
func (s QuartileSelection) Describe() string {
	if s.Category != "" {
		return fmt.Sprintf("quartile %d in category %q", s.Quartile, s.Category)
	}
	return fmt.Sprintf("quartile %d", s.Quartile)
}
func (s RecommendationSelection) Describe() string  { return fmt.Sprintf("recommendation %q", s.Tag) }
func (s StoredPortfolioSelection) Describe() string { return fmt.Sprintf("portfolio id %d", s.PortfolioID) }
func (s RiskProfileSelection) Describe() string     { return fmt.Sprintf("risk profile %q", s.Profile) }

func (SingleFundSelection) selectionVariant()      {}
func (FundListSelection) selectionVariant()        {}
func (ScoreRangeSelection) selectionVariant()      {}
func (QuartileSelection) selectionVariant()        {}
func (RecommendationSelection) selectionVariant()  {}
func (StoredPortfolioSelection) selectionVariant() {}
func (RiskProfileSelection) selectionVariant()     {}

// BacktestConfig is the immutable configuration of one backtest run.
type BacktestConfig struct {
	Selection        SelectionCriteria `json:"selection"`
	StartDate        time.Time         `json:"start_date"`
	EndDate          time.Time         `json:"end_date"`
	InitialCapital   decimal.Decimal   `json:"initial_capital"`
	RebalanceCadence RebalanceCadence  `json:"rebalance_cadence"`
	BenchmarkIndex   string            `json:"benchmark_index,omitempty"`
	WeightingMode    WeightingMode     `json:"weighting_mode"`
	RiskProfile      RiskProfile       `json:"risk_profile,omitempty"`
	MaxFunds         int               `json:"max_funds,omitempty"`
}

// AllocationEntry is one weighted holding of a computed allocation.
type AllocationEntry struct {
	Fund          FundRecord      `json:"fund"`
	WeightPercent decimal.Decimal `json:"weight_percent"`
}

// PortfolioAllocation is the weighted basket the simulator runs on.
// Weights sum to 100 with the rounding residual on the last entry.
type PortfolioAllocation struct {
	Entries []AllocationEntry `json:"entries"`
}

// TotalWeight sums the entry weights.
func (p PortfolioAllocation) TotalWeight() decimal.Decimal {
	total := decimal.Zero
	for _, e := range p.Entries {
		total = total.Add(e.WeightPercent)
	}
	return total
}

// MonthlyReturn is one simulated month of the portfolio series.
type MonthlyReturn struct {
	Date   time.Time `json:"date"`
	Return float64   `json:"return"` // fraction, e.g. 0.01 = +1%
}

// PerformanceMetrics summarizes the simulated return series.
type PerformanceMetrics struct {
	TotalReturn      float64 `json:"total_return"`      // fraction over the window
	AnnualizedReturn float64 `json:"annualized_return"` // fraction per year
	WinRate          float64 `json:"win_rate"`          // fraction of positive months
	BestMonth        float64 `json:"best_month"`
	WorstMonth       float64 `json:"worst_month"`
	Months           int     `json:"months"`
}

// RiskMetrics summarizes downside and risk-adjusted measures.
type RiskMetrics struct {
	Volatility    float64 `json:"volatility"`      // annualized stddev of monthly returns
	MaxDrawdown   float64 `json:"max_drawdown"`    // largest peak-to-trough decline, fraction
	SharpeRatio   float64 `json:"sharpe_ratio"`
	SortinoRatio  float64 `json:"sortino_ratio"`
	CalmarRatio   float64 `json:"calmar_ratio"`
	ValueAtRisk95 float64 `json:"value_at_risk_95"` // 5th percentile monthly return
}

// FundAttribution decomposes portfolio return into one holding's share.
type FundAttribution struct {
	FundID         int64   `json:"fund_id"`
	FundName       string  `json:"fund_name"`
	WeightPercent  float64 `json:"weight_percent"`
	AbsoluteReturn float64 `json:"absolute_return"` // percent over the window
	Contribution   float64 `json:"contribution"`    // percent, weight-scaled
	Alpha          float64 `json:"alpha"`           // percent vs benchmark return
}

// BenchmarkComparison relates the portfolio series to a benchmark index.
type BenchmarkComparison struct {
	Index            string  `json:"index"`
	BenchmarkReturn  float64 `json:"benchmark_return"` // annualized, fraction
	Alpha            float64 `json:"alpha"`            // annualized, fraction
	Beta             float64 `json:"beta"`
	TrackingError    float64 `json:"tracking_error"`
	InformationRatio float64 `json:"information_ratio"`
	UpCapture        float64 `json:"up_capture"`   // percent
	DownCapture      float64 `json:"down_capture"` // percent
}

// ScoreValidation measures how well the point-in-time quality score
// predicted realized performance.
type ScoreValidation struct {
	Correlation      float64 `json:"correlation"`        // Pearson, score vs realized return
	WeightedAvgScore float64 `json:"weighted_avg_score"`
	ExpectedReturn   float64 `json:"expected_return"` // annualized, fraction
	ActualReturn     float64 `json:"actual_return"`   // annualized, fraction
	Accuracy         float64 `json:"accuracy"`        // 0-100
}

// BacktestResult bundles everything a run produced. Benchmark and
// ScoreValidation are nil when not applicable; Warnings are never
// silently dropped.
type BacktestResult struct {
	RunID           string               `json:"run_id"`
	Config          BacktestConfig       `json:"config"`
	Allocation      PortfolioAllocation  `json:"allocation"`
	InitialCapital  decimal.Decimal      `json:"initial_capital"`
	FinalValue      decimal.Decimal      `json:"final_value"`
	Performance     PerformanceMetrics   `json:"performance"`
	Risk            RiskMetrics          `json:"risk"`
	Attribution     []FundAttribution    `json:"attribution"`
	Benchmark       *BenchmarkComparison `json:"benchmark,omitempty"`
	ScoreValidation *ScoreValidation     `json:"score_validation,omitempty"`
	MonthlySeries   []MonthlyReturn      `json:"monthly_series"`
	Warnings        []string             `json:"warnings"`
	StartedAt       time.Time            `json:"started_at"`
	CompletedAt     time.Time            `json:"completed_at"`
	Duration        time.Duration        `json:"duration"`
}
