package backtest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/fundsight/fundsight-go/internal/models"
)

// MemoryProviders is an in-memory implementation of all collaborator
// interfaces, used by tests and local tooling.
type MemoryProviders struct {
	Funds      map[int64]models.FundRecord
	NavSeries  map[int64][]models.NavObservation
	Benchmark  map[string][]models.BenchmarkObservation
	Portfolios map[int64][]models.PortfolioHolding

	// NavErr simulates per-fund fetch failures (e.g. timeouts).
	NavErr map[int64]error
}

// NewMemoryProviders returns empty in-memory providers.
func NewMemoryProviders() *MemoryProviders {
	return &MemoryProviders{
		Funds:      make(map[int64]models.FundRecord),
		NavSeries:  make(map[int64][]models.NavObservation),
		Benchmark:  make(map[string][]models.BenchmarkObservation),
		Portfolios: make(map[int64][]models.PortfolioHolding),
		NavErr:     make(map[int64]error),
	}
}

// Providers bundles the fake into the engine's provider set.
func (m *MemoryProviders) Providers() Providers {
	return Providers{Funds: m, NAVs: m, Benchmarks: m, Portfolios: m}
}

func (m *MemoryProviders) GetFund(_ context.Context, id int64) (*models.FundRecord, error) {
	fund, ok := m.Funds[id]
	if !ok {
		return nil, fmt.Errorf("fund %d: %w", id, ErrNotFound)
	}
	return &fund, nil
}

func (m *MemoryProviders) ListFunds(_ context.Context) ([]models.FundRecord, error) {
	funds := make([]models.FundRecord, 0, len(m.Funds))
	for _, fund := range m.Funds {
		funds = append(funds, fund)
	}
	sort.Slice(funds, func(i, j int) bool { return funds[i].ID < funds[j].ID })
	return funds, nil
}

func (m *MemoryProviders) GetNAVHistory(_ context.Context, fundID int64, from, to time.Time) ([]models.NavObservation, error) {
	if err := m.NavErr[fundID]; err != nil {
		return nil, err
	}
	var series []models.NavObservation
	for _, obs := range m.NavSeries[fundID] {
		if obs.Date.Before(from) || obs.Date.After(to) {
			continue
		}
		series = append(series, obs)
	}
	return series, nil
}

func (m *MemoryProviders) GetBenchmarkHistory(_ context.Context, index string, from, to time.Time) ([]models.BenchmarkObservation, error) {
	var series []models.BenchmarkObservation
	for _, obs := range m.Benchmark[index] {
		if obs.Date.Before(from) || obs.Date.After(to) {
			continue
		}
		series = append(series, obs)
	}
	return series, nil
}

func (m *MemoryProviders) GetPortfolio(_ context.Context, id int64) ([]models.PortfolioHolding, error) {
	holdings, ok := m.Portfolios[id]
	if !ok {
		return nil, fmt.Errorf("portfolio %d: %w", id, ErrNotFound)
	}
	return holdings, nil
}
