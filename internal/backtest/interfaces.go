package backtest

import (
	"context"
	"time"

	"github.com/fundsight/fundsight-go/internal/models"
)

// FundDirectory resolves fund metadata and point-in-time scores.
type FundDirectory interface {
	// GetFund returns the fund snapshot, wrapping ErrNotFound when the
	// id is unknown.
	GetFund(ctx context.Context, id int64) (*models.FundRecord, error)
	// ListFunds returns all scored funds in the directory.
	ListFunds(ctx context.Context) ([]models.FundRecord, error)
}

// NAVProvider returns per-fund NAV history, chronologically ordered
// with at most one observation per date.
type NAVProvider interface {
	GetNAVHistory(ctx context.Context, fundID int64, from, to time.Time) ([]models.NavObservation, error)
}

// BenchmarkProvider returns an index level series for a named benchmark.
type BenchmarkProvider interface {
	GetBenchmarkHistory(ctx context.Context, index string, from, to time.Time) ([]models.BenchmarkObservation, error)
}

// PortfolioStore resolves saved portfolios into (fund, weight) pairs.
type PortfolioStore interface {
	// GetPortfolio wraps ErrNotFound when the portfolio id is unknown.
	GetPortfolio(ctx context.Context, id int64) ([]models.PortfolioHolding, error)
}

// Providers bundles the read-only collaborators a backtest run needs.
// All reads are bounded by the run's context; no ambient connection
// state is shared across runs.
type Providers struct {
	Funds      FundDirectory
	NAVs       NAVProvider
	Benchmarks BenchmarkProvider
	Portfolios PortfolioStore
}
