package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/fundsight/fundsight-go/internal/backtest"
	"github.com/fundsight/fundsight-go/internal/models"
)

// BacktestHandler exposes the backtest engine over HTTP.
type BacktestHandler struct {
	engine *backtest.Engine
}

// NewBacktestHandler creates a new backtest handler.
func NewBacktestHandler(engine *backtest.Engine) *BacktestHandler {
	return &BacktestHandler{engine: engine}
}

// BacktestRequest is the options-bag request body. Selection fields are
// mutually exclusive in intent; when more than one is set the fixed
// precedence of toCriteria applies.
type BacktestRequest struct {
	FundID         *int64   `json:"fund_id,omitempty"`
	FundIDs        []int64  `json:"fund_ids,omitempty"`
	ScoreMin       *float64 `json:"score_min,omitempty"`
	ScoreMax       *float64 `json:"score_max,omitempty"`
	Quartile       *int     `json:"quartile,omitempty"`
	Category       string   `json:"category,omitempty"`
	Recommendation string   `json:"recommendation,omitempty"`
	PortfolioID    *int64   `json:"portfolio_id,omitempty"`
	RiskProfile    string   `json:"risk_profile,omitempty"`

	StartDate        string          `json:"start_date" binding:"required"`
	EndDate          string          `json:"end_date" binding:"required"`
	InitialCapital   decimal.Decimal `json:"initial_capital"`
	RebalanceCadence string          `json:"rebalance_cadence,omitempty"`
	WeightingMode    string          `json:"weighting_mode,omitempty"`
	BenchmarkIndex   string          `json:"benchmark_index,omitempty"`
	MaxFunds         int             `json:"max_funds,omitempty"`
}

const dateLayout = "2006-01-02"

// toCriteria maps the options bag onto the selection tagged union with
// the documented precedence: single fund, fund list, score range,
// quartile, recommendation tag, stored portfolio, risk profile.
func (r BacktestRequest) toCriteria() models.SelectionCriteria {
	switch {
	case r.FundID != nil:
		return models.SingleFundSelection{FundID: *r.FundID}
	case len(r.FundIDs) > 0:
		return models.FundListSelection{FundIDs: r.FundIDs}
	case r.ScoreMin != nil && r.ScoreMax != nil:
		return models.ScoreRangeSelection{Min: *r.ScoreMin, Max: *r.ScoreMax}
	case r.Quartile != nil:
		return models.QuartileSelection{Quartile: *r.Quartile, Category: r.Category}
	case r.Recommendation != "":
		return models.RecommendationSelection{Tag: r.Recommendation}
	case r.PortfolioID != nil:
		return models.StoredPortfolioSelection{PortfolioID: *r.PortfolioID}
	case r.RiskProfile != "":
		return models.RiskProfileSelection{Profile: models.RiskProfile(r.RiskProfile)}
	default:
		return nil
	}
}

// RunBacktest handles POST /api/v1/backtest.
func (h *BacktestHandler) RunBacktest(c *gin.Context) {
	var req BacktestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	start, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid start_date", "details": err.Error()})
		return
	}
	end, err := time.Parse(dateLayout, req.EndDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid end_date", "details": err.Error()})
		return
	}

	cfg := models.BacktestConfig{
		Selection:        req.toCriteria(),
		StartDate:        start,
		EndDate:          end,
		InitialCapital:   req.InitialCapital,
		RebalanceCadence: models.RebalanceCadence(req.RebalanceCadence),
		WeightingMode:    models.WeightingMode(req.WeightingMode),
		BenchmarkIndex:   req.BenchmarkIndex,
		RiskProfile:      models.RiskProfile(req.RiskProfile),
		MaxFunds:         req.MaxFunds,
	}

	result, err := h.engine.RunBacktest(c.Request.Context(), cfg)
	if err != nil {
		status, message := errorStatus(err)
		c.JSON(status, gin.H{"error": message, "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// errorStatus maps the engine's error taxonomy onto HTTP statuses.
func errorStatus(err error) (int, string) {
	var (
		configErr       *backtest.ConfigurationError
		notFoundErr     *backtest.NotFoundError
		noFundsErr      *backtest.NoEligibleFundsError
		insufficientErr *backtest.InsufficientDataError
		emptyErr        *backtest.EmptySeriesError
	)
	switch {
	case errors.As(err, &configErr):
		return http.StatusBadRequest, "Invalid backtest configuration"
	case errors.As(err, &notFoundErr):
		return http.StatusNotFound, "Unknown fund or portfolio"
	case errors.As(err, &noFundsErr):
		return http.StatusUnprocessableEntity, "No eligible funds"
	case errors.As(err, &insufficientErr):
		return http.StatusUnprocessableEntity, "Insufficient NAV data for the window"
	case errors.As(err, &emptyErr):
		return http.StatusUnprocessableEntity, "Simulation produced no returns"
	default:
		return http.StatusInternalServerError, "Backtest failed"
	}
}
