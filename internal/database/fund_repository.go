package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fundsight/fundsight-go/internal/backtest"
	"github.com/fundsight/fundsight-go/internal/models"
)

// DatabasePool defines the interface for database pool operations.
// This interface allows for both real pool and mock pool implementations.
type DatabasePool interface {
	// QueryRow executes a query that is expected to return at most one row.
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	// Exec executes a query without returning any rows.
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	// Query executes a query that returns rows.
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

// FundRepository implements the backtest collaborator interfaces
// (fund directory, NAV history, benchmark series, portfolio store)
// over Postgres.
type FundRepository struct {
	pool DatabasePool
}

// NewFundRepository creates a repository over the given pool.
func NewFundRepository(pool DatabasePool) *FundRepository {
	return &FundRepository{pool: pool}
}

// GetFund returns the scored fund snapshot for an id, wrapping
// backtest.ErrNotFound for unknown ids.
func (r *FundRepository) GetFund(ctx context.Context, id int64) (*models.FundRecord, error) {
	query := `
		SELECT id, name, category, sub_category, score, score_date, expense_ratio, recommendation
		FROM funds
		WHERE id = $1
	`

	var fund models.FundRecord
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&fund.ID,
		&fund.Name,
		&fund.Category,
		&fund.SubCategory,
		&fund.Score,
		&fund.ScoreDate,
		&fund.ExpenseRatio,
		&fund.Recommendation,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("fund %d: %w", id, backtest.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch fund %d: %w", id, err)
	}
	return &fund, nil
}

// ListFunds returns all scored funds ordered by id.
func (r *FundRepository) ListFunds(ctx context.Context) ([]models.FundRecord, error) {
	query := `
		SELECT id, name, category, sub_category, score, score_date, expense_ratio, recommendation
		FROM funds
		ORDER BY id
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list funds: %w", err)
	}
	defer rows.Close()

	var funds []models.FundRecord
	for rows.Next() {
		var fund models.FundRecord
		if err := rows.Scan(
			&fund.ID,
			&fund.Name,
			&fund.Category,
			&fund.SubCategory,
			&fund.Score,
			&fund.ScoreDate,
			&fund.ExpenseRatio,
			&fund.Recommendation,
		); err != nil {
			return nil, fmt.Errorf("failed to scan fund row: %w", err)
		}
		funds = append(funds, fund)
	}
	return funds, rows.Err()
}

// GetNAVHistory returns the fund's NAV observations inside [from, to],
// chronologically ordered.
func (r *FundRepository) GetNAVHistory(ctx context.Context, fundID int64, from, to time.Time) ([]models.NavObservation, error) {
	query := `
		SELECT fund_id, nav_date, nav_value
		FROM nav_history
		WHERE fund_id = $1 AND nav_date >= $2 AND nav_date <= $3
		ORDER BY nav_date ASC
	`

	rows, err := r.pool.Query(ctx, query, fundID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch NAV history for fund %d: %w", fundID, err)
	}
	defer rows.Close()

	var series []models.NavObservation
	for rows.Next() {
		var obs models.NavObservation
		if err := rows.Scan(&obs.FundID, &obs.Date, &obs.Value); err != nil {
			return nil, fmt.Errorf("failed to scan NAV row: %w", err)
		}
		series = append(series, obs)
	}
	return series, rows.Err()
}

// GetBenchmarkHistory returns the index levels inside [from, to],
// chronologically ordered.
func (r *FundRepository) GetBenchmarkHistory(ctx context.Context, index string, from, to time.Time) ([]models.BenchmarkObservation, error) {
	query := `
		SELECT index_name, obs_date, obs_value
		FROM benchmark_history
		WHERE index_name = $1 AND obs_date >= $2 AND obs_date <= $3
		ORDER BY obs_date ASC
	`

	rows, err := r.pool.Query(ctx, query, index, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch benchmark history for %q: %w", index, err)
	}
	defer rows.Close()

	var series []models.BenchmarkObservation
	for rows.Next() {
		var obs models.BenchmarkObservation
		if err := rows.Scan(&obs.Index, &obs.Date, &obs.Value); err != nil {
			return nil, fmt.Errorf("failed to scan benchmark row: %w", err)
		}
		series = append(series, obs)
	}
	return series, rows.Err()
}

// GetPortfolio resolves a saved portfolio into (fund, weight) pairs,
// wrapping backtest.ErrNotFound for unknown ids.
func (r *FundRepository) GetPortfolio(ctx context.Context, id int64) ([]models.PortfolioHolding, error) {
	query := `
		SELECT fund_id, weight_percent
		FROM portfolio_holdings
		WHERE portfolio_id = $1
		ORDER BY position
	`

	rows, err := r.pool.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch portfolio %d: %w", id, err)
	}
	defer rows.Close()

	var holdings []models.PortfolioHolding
	for rows.Next() {
		var h models.PortfolioHolding
		if err := rows.Scan(&h.FundID, &h.WeightPercent); err != nil {
			return nil, fmt.Errorf("failed to scan holding row: %w", err)
		}
		holdings = append(holdings, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(holdings) == 0 {
		return nil, fmt.Errorf("portfolio %d: %w", id, backtest.ErrNotFound)
	}
	return holdings, nil
}
