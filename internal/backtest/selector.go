package backtest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/fundsight/fundsight-go/internal/models"
)

// Selection is the resolved candidate basket. Preset is non-nil only
// for stored portfolios, whose weights bypass the allocation strategy.
type Selection struct {
	Funds    []models.FundRecord
	Preset   *models.PortfolioAllocation
	Warnings []string
}

// Selector resolves a backtest configuration into concrete funds.
type Selector struct {
	funds      FundDirectory
	navs       NAVProvider
	portfolios PortfolioStore

	minNavObservations int
	qualityFloor       float64
	defaultMaxFunds    int
}

// NewSelector creates a selector over the given collaborators.
// minNavObservations gates score-range eligibility (default 50),
// qualityFloor gates risk-profile selection (default 60).
func NewSelector(funds FundDirectory, navs NAVProvider, portfolios PortfolioStore,
	minNavObservations int, qualityFloor float64, defaultMaxFunds int) *Selector {
	if minNavObservations <= 0 {
		minNavObservations = 50
	}
	if qualityFloor <= 0 {
		qualityFloor = 60
	}
	if defaultMaxFunds <= 0 {
		defaultMaxFunds = 20
	}
	return &Selector{
		funds:              funds,
		navs:               navs,
		portfolios:         portfolios,
		minNavObservations: minNavObservations,
		qualityFloor:       qualityFloor,
		defaultMaxFunds:    defaultMaxFunds,
	}
}

// Select resolves the configured selection variant.
func (s *Selector) Select(ctx context.Context, cfg models.BacktestConfig) (*Selection, error) {
	switch c := cfg.Selection.(type) {
	case models.SingleFundSelection:
		return s.selectSingle(ctx, cfg, c)
	case models.FundListSelection:
		return s.selectList(ctx, c)
	case models.ScoreRangeSelection:
		return s.selectScoreRange(ctx, cfg, c)
	case models.QuartileSelection:
		return s.selectQuartile(ctx, c)
	case models.RecommendationSelection:
		return s.selectRecommendation(ctx, c)
	case models.StoredPortfolioSelection:
		return s.selectStoredPortfolio(ctx, c)
	case models.RiskProfileSelection:
		return s.selectRiskProfile(ctx, cfg, c)
	case nil:
		return nil, &ConfigurationError{Reason: "no selection criteria provided"}
	default:
		return nil, &ConfigurationError{Reason: fmt.Sprintf("unsupported selection criteria %T", cfg.Selection)}
	}
}

func (s *Selector) selectSingle(ctx context.Context, cfg models.BacktestConfig, c models.SingleFundSelection) (*Selection, error) {
	fund, err := s.funds.GetFund(ctx, c.FundID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &NotFoundError{Kind: "fund", ID: c.FundID}
		}
		return nil, fmt.Errorf("failed to resolve fund %d: %w", c.FundID, err)
	}

	// A single-fund backtest is meaningless without NAV coverage in the
	// window, so the absence of observations is treated as not found.
	navs, err := s.navs.GetNAVHistory(ctx, c.FundID, cfg.StartDate, cfg.EndDate)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch NAV history for fund %d: %w", c.FundID, err)
	}
	if len(navs) == 0 {
		return nil, &NotFoundError{Kind: "fund", ID: c.FundID}
	}

	return &Selection{Funds: []models.FundRecord{*fund}}, nil
}

func (s *Selector) selectList(ctx context.Context, c models.FundListSelection) (*Selection, error) {
	if len(c.FundIDs) == 0 {
		return nil, &NoEligibleFundsError{Criteria: c.Describe()}
	}

	sel := &Selection{}
	for _, id := range c.FundIDs {
		fund, err := s.funds.GetFund(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				warning := fmt.Sprintf("fund %d not found, dropped from basket", id)
				sel.Warnings = append(sel.Warnings, warning)
				logrus.WithField("fund_id", id).Warn("dropping unknown fund from basket")
				continue
			}
			return nil, fmt.Errorf("failed to resolve fund %d: %w", id, err)
		}
		sel.Funds = append(sel.Funds, *fund)
	}

	if len(sel.Funds) == 0 {
		return nil, &NoEligibleFundsError{Criteria: c.Describe()}
	}
	return sel, nil
}

func (s *Selector) selectScoreRange(ctx context.Context, cfg models.BacktestConfig, c models.ScoreRangeSelection) (*Selection, error) {
	if c.Min > c.Max {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("score range min %.1f exceeds max %.1f", c.Min, c.Max)}
	}

	all, err := s.funds.ListFunds(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list funds: %w", err)
	}

	var matched []models.FundRecord
	for _, fund := range all {
		if fund.Score < c.Min || fund.Score > c.Max {
			continue
		}
		navs, err := s.navs.GetNAVHistory(ctx, fund.ID, cfg.StartDate, cfg.EndDate)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch NAV history for fund %d: %w", fund.ID, err)
		}
		if len(navs) < s.minNavObservations {
			continue
		}
		matched = append(matched, fund)
	}
	if len(matched) == 0 {
		return nil, &NoEligibleFundsError{Criteria: c.Describe()}
	}

	sortByScoreDesc(matched)
	return &Selection{Funds: capFunds(matched, s.maxFunds(cfg))}, nil
}

func (s *Selector) selectQuartile(ctx context.Context, c models.QuartileSelection) (*Selection, error) {
	if c.Quartile < 1 || c.Quartile > 4 {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("quartile must be 1-4, got %d", c.Quartile)}
	}

	all, err := s.funds.ListFunds(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list funds: %w", err)
	}

	var pool []models.FundRecord
	for _, fund := range all {
		if c.Category != "" && !strings.EqualFold(fund.Category, c.Category) {
			continue
		}
		pool = append(pool, fund)
	}
	if len(pool) == 0 {
		return nil, &NoEligibleFundsError{Criteria: c.Describe()}
	}

	sortByScoreDesc(pool)

	// Four equal-sized groups of ceil(N/4); the last group absorbs the
	// shortfall when N is not divisible by four.
	size := (len(pool) + 3) / 4
	start := (c.Quartile - 1) * size
	if start >= len(pool) {
		return nil, &NoEligibleFundsError{Criteria: c.Describe()}
	}
	end := start + size
	if end > len(pool) {
		end = len(pool)
	}

	return &Selection{Funds: pool[start:end]}, nil
}

func (s *Selector) selectRecommendation(ctx context.Context, c models.RecommendationSelection) (*Selection, error) {
	all, err := s.funds.ListFunds(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list funds: %w", err)
	}

	var matched []models.FundRecord
	for _, fund := range all {
		if strings.EqualFold(fund.Recommendation, c.Tag) {
			matched = append(matched, fund)
		}
	}
	if len(matched) == 0 {
		return nil, &NoEligibleFundsError{Criteria: c.Describe()}
	}

	sortByScoreDesc(matched)
	return &Selection{Funds: matched}, nil
}

func (s *Selector) selectStoredPortfolio(ctx context.Context, c models.StoredPortfolioSelection) (*Selection, error) {
	holdings, err := s.portfolios.GetPortfolio(ctx, c.PortfolioID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &NotFoundError{Kind: "portfolio", ID: c.PortfolioID}
		}
		return nil, fmt.Errorf("failed to load portfolio %d: %w", c.PortfolioID, err)
	}
	if len(holdings) == 0 {
		return nil, &NotFoundError{Kind: "portfolio", ID: c.PortfolioID}
	}

	sel := &Selection{Preset: &models.PortfolioAllocation{}}
	for _, h := range holdings {
		fund, err := s.funds.GetFund(ctx, h.FundID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				warning := fmt.Sprintf("fund %d from portfolio %d not found, dropped from basket", h.FundID, c.PortfolioID)
				sel.Warnings = append(sel.Warnings, warning)
				continue
			}
			return nil, fmt.Errorf("failed to resolve fund %d: %w", h.FundID, err)
		}
		sel.Funds = append(sel.Funds, *fund)
		sel.Preset.Entries = append(sel.Preset.Entries, models.AllocationEntry{
			Fund:          *fund,
			WeightPercent: h.WeightPercent,
		})
	}

	if len(sel.Funds) == 0 {
		return nil, &NoEligibleFundsError{Criteria: c.Describe()}
	}

	// Dropped holdings leave the stored weights summing below 100, which
	// would bleed the missing share out of the portfolio every step.
	// Rescale the survivors so the basket stays fully invested.
	total := sel.Preset.TotalWeight()
	if !total.IsPositive() {
		return nil, &NoEligibleFundsError{Criteria: c.Describe()}
	}
	if !total.Equal(hundred) {
		for i := range sel.Preset.Entries {
			sel.Preset.Entries[i].WeightPercent = sel.Preset.Entries[i].WeightPercent.Mul(hundred).Div(total).Round(2)
		}
		*sel.Preset = normalize(sel.Preset.Entries)
		sel.Warnings = append(sel.Warnings, fmt.Sprintf(
			"portfolio %d weights rescaled to 100 after dropping unknown funds", c.PortfolioID))
	}
	return sel, nil
}

func (s *Selector) selectRiskProfile(ctx context.Context, cfg models.BacktestConfig, c models.RiskProfileSelection) (*Selection, error) {
	all, err := s.funds.ListFunds(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list funds: %w", err)
	}

	var matched []models.FundRecord
	for _, fund := range all {
		if fund.Score > s.qualityFloor {
			matched = append(matched, fund)
		}
	}
	if len(matched) == 0 {
		return nil, &NoEligibleFundsError{Criteria: c.Describe()}
	}

	sortByScoreDesc(matched)
	return &Selection{Funds: capFunds(matched, s.maxFunds(cfg))}, nil
}

func (s *Selector) maxFunds(cfg models.BacktestConfig) int {
	if cfg.MaxFunds > 0 {
		return cfg.MaxFunds
	}
	return s.defaultMaxFunds
}

// sortByScoreDesc orders by score descending, breaking ties by lower
// fund id so quartile boundaries are deterministic.
func sortByScoreDesc(funds []models.FundRecord) {
	sort.SliceStable(funds, func(i, j int) bool {
		if funds[i].Score != funds[j].Score {
			return funds[i].Score > funds[j].Score
		}
		return funds[i].ID < funds[j].ID
	})
}

func capFunds(funds []models.FundRecord, max int) []models.FundRecord {
	if max > 0 && len(funds) > max {
		return funds[:max]
	}
	return funds
}
