package contracts

import (
	"errors"
	"fmt"
	"time"
)

// Error taxonomy for the analytics core. Every failure is attributable to a
// (symbol, date, component) tuple via ComponentError.
var (
	// ErrInsufficientData signals missing or too-short price history.
	ErrInsufficientData = errors.New("insufficient price history")

	// ErrContextUnavailable signals a missing market context for a date.
	// Consumers degrade to a neutral context instead of failing.
	ErrContextUnavailable = errors.New("market context unavailable")

	// ErrNotConverged signals that the optimizer failed to converge.
	ErrNotConverged = errors.New("optimizer did not converge")

	// ErrInfeasibleConstraints signals a constraint set that cannot be
	// satisfied for the given universe (e.g. too few candidates).
	ErrInfeasibleConstraints = errors.New("constraint set infeasible")

	// ErrTimeout signals that a computation exceeded its time budget.
	ErrTimeout = errors.New("computation exceeded time budget")
)

// ComponentError attributes an error to a specific component, symbol and date.
type ComponentError struct {
	Component string
	Symbol    string
	Date      time.Time
	Err       error
}

func (e *ComponentError) Error() string {
	if e.Symbol != "" {
		return fmt.Sprintf("%s: %s @ %s: %v",
			e.Component, e.Symbol, e.Date.Format("2006-01-02"), e.Err)
	}
	return fmt.Sprintf("%s @ %s: %v", e.Component, e.Date.Format("2006-01-02"), e.Err)
}

func (e *ComponentError) Unwrap() error {
	return e.Err
}

// NewComponentError wraps err with component attribution.
func NewComponentError(component, symbol string, date time.Time, err error) *ComponentError {
	return &ComponentError{
		Component: component,
		Symbol:    symbol,
		Date:      date,
		Err:       err,
	}
}
