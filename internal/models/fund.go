package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// FundRecord is an immutable snapshot of a fund as of ScoreDate.
type FundRecord struct {
	ID             int64     `json:"id" db:"id"`
	Name           string    `json:"name" db:"name"`
	Category       string    `json:"category" db:"category"`
	SubCategory    string    `json:"sub_category" db:"sub_category"`
	Score          float64   `json:"score" db:"score"`
	ScoreDate      time.Time `json:"score_date" db:"score_date"`
	ExpenseRatio   float64   `json:"expense_ratio" db:"expense_ratio"`
	Recommendation string    `json:"recommendation,omitempty" db:"recommendation"`
}

// NavObservation is one per-unit price point for a fund. Values are
// strictly positive and at most one observation exists per date.
type NavObservation struct {
	FundID int64           `json:"fund_id" db:"fund_id"`
	Date   time.Time       `json:"date" db:"nav_date"`
	Value  decimal.Decimal `json:"value" db:"nav_value"`
}

// BenchmarkObservation is one index level for a benchmark series.
type BenchmarkObservation struct {
	Index string          `json:"index" db:"index_name"`
	Date  time.Time       `json:"date" db:"obs_date"`
	Value decimal.Decimal `json:"value" db:"obs_value"`
}

// PortfolioHolding is a stored (fund, weight) pair of a saved portfolio.
type PortfolioHolding struct {
	FundID        int64           `json:"fund_id" db:"fund_id"`
	WeightPercent decimal.Decimal `json:"weight_percent" db:"weight_percent"`
}
