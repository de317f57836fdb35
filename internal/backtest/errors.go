package backtest

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is wrapped by providers when a fund or portfolio id does
// not exist in the backing store.
var ErrNotFound = errors.New("not found")

// ConfigurationError reports an invalid or conflicting backtest
// configuration. These abort before any simulation starts.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "invalid backtest configuration: " + e.Reason
}

// NotFoundError reports an unknown fund or portfolio id, or a fund with
// no NAV coverage inside the simulation window.
type NotFoundError struct {
	Kind string // "fund" or "portfolio"
	ID   int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Kind, e.ID)
}

// NoEligibleFundsError reports that a selection variant matched nothing.
// Criteria names what was attempted.
type NoEligibleFundsError struct {
	Criteria string
}

func (e *NoEligibleFundsError) Error() string {
	return "no eligible funds matched " + e.Criteria
}

// InsufficientDataError aborts a simulation in which more than half the
// basket had no NAV data for three consecutive monthly steps.
type InsufficientDataError struct {
	Step       time.Time
	Missing    int
	BasketSize int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient NAV coverage at %s: %d of %d funds without data for 3 consecutive months",
		e.Step.Format("2006-01-02"), e.Missing, e.BasketSize)
}

// EmptySeriesError reports a metrics request over an empty return series.
type EmptySeriesError struct{}

func (e *EmptySeriesError) Error() string {
	return "return series is empty"
}
