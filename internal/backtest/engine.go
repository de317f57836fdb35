package backtest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/fundsight/fundsight-go/internal/config"
	"github.com/fundsight/fundsight-go/internal/models"
)

// Engine runs complete backtests: selection, allocation, simulation and
// the derived analytics. Each run is stateless; an Engine is safe for
// concurrent use.
type Engine struct {
	providers Providers
	selector  *Selector
	allocator *Allocator
	cfg       config.BacktestConfig
}

// NewEngine wires an engine over read-only data providers.
func NewEngine(providers Providers, cfg config.BacktestConfig) *Engine {
	return &Engine{
		providers: providers,
		selector: NewSelector(providers.Funds, providers.NAVs, providers.Portfolios,
			cfg.MinNavObservations, cfg.QualityFloorScore, cfg.DefaultMaxFunds),
		allocator: NewAllocator(NewCategoryTextClassifier()),
		cfg:       cfg,
	}
}

// RunBacktest executes one backtest over an immutable configuration.
// Configuration and eligibility errors abort before simulation;
// per-fund data problems degrade to warnings on the result.
func (e *Engine) RunBacktest(ctx context.Context, cfg models.BacktestConfig) (*models.BacktestResult, error) {
	startedAt := time.Now()
	runID := uuid.NewString()
	log := logrus.WithFields(logrus.Fields{
		"run_id":     runID,
		"start_date": cfg.StartDate.Format("2006-01-02"),
		"end_date":   cfg.EndDate.Format("2006-01-02"),
	})

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	selection, err := e.selector.Select(ctx, cfg)
	if err != nil {
		return nil, err
	}
	log.WithField("funds", len(selection.Funds)).Info("portfolio selected")

	allocation := models.PortfolioAllocation{}
	var rebalance RebalanceFunc
	if selection.Preset != nil {
		// Stored portfolios carry their own weights and bypass the
		// allocation strategy; rebalancing reapplies the stored weights.
		allocation = *selection.Preset
		preset := *selection.Preset
		rebalance = func([]models.FundRecord) (models.PortfolioAllocation, error) {
			return preset, nil
		}
	} else {
		allocation, err = e.allocator.Allocate(selection.Funds, cfg.WeightingMode, cfg.RiskProfile)
		if err != nil {
			return nil, err
		}
		rebalance = func(funds []models.FundRecord) (models.PortfolioAllocation, error) {
			return e.allocator.Allocate(funds, cfg.WeightingMode, cfg.RiskProfile)
		}
	}

	warnings := append([]string{}, selection.Warnings...)

	navs, fetchWarnings := e.fetchNavHistories(ctx, allocation, cfg)
	warnings = append(warnings, fetchWarnings...)

	simulator := NewSimulator(cfg, navs, rebalance, e.cfg.NavRatioClampMin, e.cfg.NavRatioClampMax)
	output, err := simulator.Run(allocation)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, output.Warnings...)

	var benchmarkObs []models.BenchmarkObservation
	if cfg.BenchmarkIndex != "" {
		benchmarkObs, err = e.providers.Benchmarks.GetBenchmarkHistory(ctx, cfg.BenchmarkIndex, cfg.StartDate, cfg.EndDate)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("benchmark %q unavailable: %v", cfg.BenchmarkIndex, err))
			benchmarkObs = nil
		}
	}

	baseline, haveBenchmark := BenchmarkWindowReturn(benchmarkObs)
	if !haveBenchmark {
		baseline = DefaultBenchmarkWindowReturn
		warnings = append(warnings, fmt.Sprintf(
			"no benchmark series, attribution alpha uses the %.1f%% window baseline", DefaultBenchmarkWindowReturn))
	}

	// The four analyzers are pure functions of the frozen series and
	// run concurrently.
	var (
		wg          sync.WaitGroup
		performance models.PerformanceMetrics
		risk        models.RiskMetrics
		attribution []models.FundAttribution
		comparison  *models.BenchmarkComparison
		perfErr     error
		riskErr     error
	)
	wg.Add(4)
	go func() {
		defer wg.Done()
		performance, perfErr = AnalyzePerformance(output.Series)
	}()
	go func() {
		defer wg.Done()
		risk, riskErr = AnalyzeRisk(output.Series, e.cfg.RiskFreeRate)
	}()
	go func() {
		defer wg.Done()
		attribution = AnalyzeAttribution(allocation, navs, baseline)
	}()
	go func() {
		defer wg.Done()
		if cfg.BenchmarkIndex != "" {
			comparison = CompareBenchmark(cfg.BenchmarkIndex, output.Series, benchmarkObs, cfg.StartDate)
		}
	}()
	wg.Wait()

	if perfErr != nil {
		return nil, perfErr
	}
	if riskErr != nil {
		return nil, riskErr
	}
	if cfg.BenchmarkIndex != "" && comparison == nil {
		warnings = append(warnings, fmt.Sprintf(
			"benchmark %q could not be aligned to the simulation window, comparison omitted", cfg.BenchmarkIndex))
	}

	validation := ValidateScores(allocation, attribution, performance.AnnualizedReturn)

	result := &models.BacktestResult{
		RunID:           runID,
		Config:          cfg,
		Allocation:      allocation,
		InitialCapital:  cfg.InitialCapital,
		FinalValue:      output.FinalValue,
		Performance:     performance,
		Risk:            risk,
		Attribution:     attribution,
		Benchmark:       comparison,
		ScoreValidation: validation,
		MonthlySeries:   output.Series,
		Warnings:        warnings,
		StartedAt:       startedAt,
		CompletedAt:     time.Now(),
	}
	result.Duration = result.CompletedAt.Sub(result.StartedAt)

	log.WithFields(logrus.Fields{
		"months":       performance.Months,
		"total_return": performance.TotalReturn,
		"warnings":     len(warnings),
		"duration_ms":  result.Duration.Milliseconds(),
	}).Info("backtest completed")

	return result, nil
}

// fetchNavHistories fans out one NAV fetch per fund with bounded
// parallelism and a per-fetch timeout. A failed or timed-out fetch
// leaves that fund's series empty, which the simulator treats as a data
// gap rather than a fatal error.
func (e *Engine) fetchNavHistories(ctx context.Context, allocation models.PortfolioAllocation, cfg models.BacktestConfig) (map[int64][]models.NavObservation, []string) {
	type fetchResult struct {
		fundID int64
		series []models.NavObservation
		err    error
	}

	limit := e.cfg.MaxParallelFetches
	if limit <= 0 {
		limit = 8
	}
	timeout := e.cfg.FetchTimeoutDuration()

	sem := make(chan struct{}, limit)
	results := make(chan fetchResult, len(allocation.Entries))
	var wg sync.WaitGroup

	for _, entry := range allocation.Entries {
		wg.Add(1)
		go func(fundID int64) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			fetchCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			series, err := e.providers.NAVs.GetNAVHistory(fetchCtx, fundID, cfg.StartDate, cfg.EndDate)
			results <- fetchResult{fundID: fundID, series: series, err: err}
		}(entry.Fund.ID)
	}
	wg.Wait()
	close(results)

	navs := make(map[int64][]models.NavObservation, len(allocation.Entries))
	var warnings []string
	for r := range results {
		if r.err != nil {
			warnings = append(warnings, fmt.Sprintf("NAV history for fund %d unavailable: %v", r.fundID, r.err))
			logrus.WithFields(logrus.Fields{"fund_id": r.fundID}).WithError(r.err).Warn("NAV fetch failed, treating as data gap")
			continue
		}
		navs[r.fundID] = r.series
	}
	return navs, warnings
}

func validateConfig(cfg *models.BacktestConfig) error {
	if cfg.Selection == nil {
		return &ConfigurationError{Reason: "no selection criteria provided"}
	}
	if cfg.StartDate.IsZero() || cfg.EndDate.IsZero() {
		return &ConfigurationError{Reason: "start_date and end_date are required"}
	}
	if !cfg.StartDate.Before(cfg.EndDate) {
		return &ConfigurationError{Reason: "start_date must be before end_date"}
	}
	if !cfg.InitialCapital.IsPositive() {
		return &ConfigurationError{Reason: "initial_capital must be positive"}
	}
	if cfg.MaxFunds < 0 {
		return &ConfigurationError{Reason: "max_funds cannot be negative"}
	}
	switch cfg.RebalanceCadence {
	case models.RebalanceMonthly, models.RebalanceQuarterly, models.RebalanceAnnually:
	case "":
		cfg.RebalanceCadence = models.RebalanceMonthly
	default:
		return &ConfigurationError{Reason: fmt.Sprintf("unknown rebalance cadence %q", cfg.RebalanceCadence)}
	}
	// Risk-profile selection implies risk-profile banded weighting.
	if rp, ok := cfg.Selection.(models.RiskProfileSelection); ok {
		cfg.WeightingMode = models.WeightRiskProfile
		if cfg.RiskProfile == "" {
			cfg.RiskProfile = rp.Profile
		}
	}
	switch cfg.WeightingMode {
	case models.WeightEqual, models.WeightByScore:
	case models.WeightRiskProfile:
		if cfg.RiskProfile == "" {
			return &ConfigurationError{Reason: "risk_profile weighting requires a risk profile"}
		}
	case "":
		cfg.WeightingMode = models.WeightEqual
	default:
		return &ConfigurationError{Reason: fmt.Sprintf("unknown weighting mode %q", cfg.WeightingMode)}
	}
	return nil
}
