package database

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundsight/fundsight-go/internal/backtest"
)

// MockPoolAdapter wraps pgxmock.PgxPoolIface to implement DatabasePool interface
type MockPoolAdapter struct {
	mock pgxmock.PgxPoolIface
}

func NewMockPoolAdapter(mock pgxmock.PgxPoolIface) DatabasePool {
	return &MockPoolAdapter{mock: mock}
}

func (m *MockPoolAdapter) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	return m.mock.QueryRow(ctx, sql, args...)
}

func (m *MockPoolAdapter) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	result, err := m.mock.Exec(ctx, sql, args...)
	if err == nil {
		rows := result.RowsAffected()
		return pgconn.NewCommandTag(fmt.Sprintf("UPDATE %d", rows)), nil
	}
	return pgconn.CommandTag{}, err
}

func (m *MockPoolAdapter) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	return m.mock.Query(ctx, sql, args...)
}

func setupRepository(t *testing.T) (*FundRepository, pgxmock.PgxPoolIface) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewFundRepository(NewMockPoolAdapter(mock)), mock
}

var fundColumns = []string{"id", "name", "category", "sub_category", "score", "score_date", "expense_ratio", "recommendation"}

func TestFundRepository_GetFund(t *testing.T) {
	repo, mock := setupRepository(t)
	scoreDate := time.Date(2023, 6, 30, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT (.+) FROM funds").
		WithArgs(int64(42)).
		WillReturnRows(pgxmock.NewRows(fundColumns).
			AddRow(int64(42), "Alpha Growth Fund", "Equity: Large Cap", "Large Cap", 82.5, scoreDate, 1.25, "Buy"))

	fund, err := repo.GetFund(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), fund.ID)
	assert.Equal(t, "Alpha Growth Fund", fund.Name)
	assert.Equal(t, 82.5, fund.Score)
	assert.True(t, scoreDate.Equal(fund.ScoreDate))
	assert.Equal(t, "Buy", fund.Recommendation)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFundRepository_GetFund_NotFound(t *testing.T) {
	repo, mock := setupRepository(t)

	mock.ExpectQuery("SELECT (.+) FROM funds").
		WithArgs(int64(404)).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetFund(context.Background(), 404)
	require.ErrorIs(t, err, backtest.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFundRepository_ListFunds(t *testing.T) {
	repo, mock := setupRepository(t)
	scoreDate := time.Date(2023, 6, 30, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT (.+) FROM funds").
		WillReturnRows(pgxmock.NewRows(fundColumns).
			AddRow(int64(1), "Alpha", "Equity: Large Cap", "Large Cap", 82.5, scoreDate, 1.25, "Buy").
			AddRow(int64(2), "Beta", "Debt: Liquid", "Liquid", 64.0, scoreDate, 0.40, "Hold"))

	funds, err := repo.ListFunds(context.Background())
	require.NoError(t, err)
	require.Len(t, funds, 2)
	assert.Equal(t, int64(1), funds[0].ID)
	assert.Equal(t, "Beta", funds[1].Name)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFundRepository_GetNAVHistory(t *testing.T) {
	repo, mock := setupRepository(t)
	from := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT (.+) FROM nav_history").
		WithArgs(int64(1), from, to).
		WillReturnRows(pgxmock.NewRows([]string{"fund_id", "nav_date", "nav_value"}).
			AddRow(int64(1), from, decimal.NewFromFloat(101.50)).
			AddRow(int64(1), from.AddDate(0, 1, 0), decimal.NewFromFloat(102.75)))

	series, err := repo.GetNAVHistory(context.Background(), 1, from, to)
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Equal(t, int64(1), series[0].FundID)
	assert.True(t, series[1].Value.Equal(decimal.NewFromFloat(102.75)))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFundRepository_GetNAVHistory_Empty(t *testing.T) {
	repo, mock := setupRepository(t)
	from := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT (.+) FROM nav_history").
		WithArgs(int64(9), from, to).
		WillReturnRows(pgxmock.NewRows([]string{"fund_id", "nav_date", "nav_value"}))

	series, err := repo.GetNAVHistory(context.Background(), 9, from, to)
	require.NoError(t, err)
	assert.Empty(t, series)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFundRepository_GetBenchmarkHistory(t *testing.T) {
	repo, mock := setupRepository(t)
	from := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT (.+) FROM benchmark_history").
		WithArgs("NIFTY 50", from, to).
		WillReturnRows(pgxmock.NewRows([]string{"index_name", "obs_date", "obs_value"}).
			AddRow("NIFTY 50", from, decimal.NewFromInt(18000)).
			AddRow("NIFTY 50", to, decimal.NewFromInt(18250)))

	series, err := repo.GetBenchmarkHistory(context.Background(), "NIFTY 50", from, to)
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Equal(t, "NIFTY 50", series[0].Index)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFundRepository_GetPortfolio(t *testing.T) {
	repo, mock := setupRepository(t)

	mock.ExpectQuery("SELECT (.+) FROM portfolio_holdings").
		WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{"fund_id", "weight_percent"}).
			AddRow(int64(1), decimal.NewFromInt(70)).
			AddRow(int64(2), decimal.NewFromInt(30)))

	holdings, err := repo.GetPortfolio(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, holdings, 2)
	assert.Equal(t, int64(1), holdings[0].FundID)
	assert.True(t, holdings[0].WeightPercent.Equal(decimal.NewFromInt(70)))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFundRepository_GetPortfolio_NotFound(t *testing.T) {
	repo, mock := setupRepository(t)

	mock.ExpectQuery("SELECT (.+) FROM portfolio_holdings").
		WithArgs(int64(404)).
		WillReturnRows(pgxmock.NewRows([]string{"fund_id", "weight_percent"}))

	_, err := repo.GetPortfolio(context.Background(), 404)
	require.ErrorIs(t, err, backtest.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}
