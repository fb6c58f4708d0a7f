package contracts

import (
	"math"
	"time"
)

// Constraints is the regulatory-style constraint set for allocation.
// All values are tunable; defaults come from the strategy config.
type Constraints struct {
	MaxPositionWeight  float64 `json:"max_position_weight" yaml:"max_position_weight"`   // e.g. 0.15
	MaxSectorWeight    float64 `json:"max_sector_weight" yaml:"max_sector_weight"`       // e.g. 0.40
	MinDiversification int     `json:"min_diversification" yaml:"min_diversification"`   // e.g. 8
	MinCashReserve     float64 `json:"min_cash_reserve" yaml:"min_cash_reserve"`         // e.g. 0.05
	CorrelationLimit   float64 `json:"correlation_limit" yaml:"correlation_limit"`       // e.g. 0.70
	TargetAnnualVol    float64 `json:"target_annual_vol" yaml:"target_annual_vol"`       // e.g. 0.20
}

// DefaultConstraints returns the default constraint set.
func DefaultConstraints() Constraints {
	return Constraints{
		MaxPositionWeight:  0.15,
		MaxSectorWeight:    0.40,
		MinDiversification: 8,
		MinCashReserve:     0.05,
		CorrelationLimit:   0.70,
		TargetAnnualVol:    0.20,
	}
}

// PortfolioWeights is the target allocation produced by the optimizer.
type PortfolioWeights struct {
	AsOf           time.Time          `json:"as_of"`
	Weights        map[string]float64 `json:"weights"`
	CashReserve    float64            `json:"cash_reserve"`
	ExpectedReturn float64            `json:"expected_return"`
	ExpectedRisk   float64            `json:"expected_risk"`
	SharpeRatio    float64            `json:"sharpe_ratio"`

	ConstraintsSatisfied bool `json:"constraints_satisfied"`

	// Degraded marks a fallback (score-proportional) allocation produced
	// after solver failure or timeout.
	Degraded bool `json:"degraded,omitempty"`
}

// TotalWeight returns the sum of all position weights.
func (p *PortfolioWeights) TotalWeight() float64 {
	var total float64
	for _, w := range p.Weights {
		total += w
	}
	return total
}

// HoldingCount returns the number of non-zero positions.
func (p *PortfolioWeights) HoldingCount() int {
	n := 0
	for _, w := range p.Weights {
		if w > 1e-9 {
			n++
		}
	}
	return n
}

// Validate checks the weight-sum invariant and the per-position cap.
func (p *PortfolioWeights) Validate(c Constraints, eps float64) bool {
	if math.Abs(p.TotalWeight()+p.CashReserve-1.0) > eps {
		return false
	}
	for _, w := range p.Weights {
		if w > c.MaxPositionWeight+eps || w < -eps {
			return false
		}
	}
	return true
}

// Position is one open holding in the portfolio state.
type Position struct {
	Symbol     string    `json:"symbol"`
	Sector     string    `json:"sector,omitempty"`
	Weight     float64   `json:"weight"`
	EntryPrice float64   `json:"entry_price"`
	EntryDate  time.Time `json:"entry_date"`
	Shares     int64     `json:"shares"`
}

// PortfolioState is the caller-owned snapshot the risk manager sizes against.
type PortfolioState struct {
	AsOf      time.Time           `json:"as_of"`
	Equity    float64             `json:"equity"`
	Cash      float64             `json:"cash"`
	Positions map[string]Position `json:"positions"`

	// Returns holds trailing daily return series per held symbol, used for
	// correlation checks. Keyed by symbol, ordered ascending by date.
	Returns map[string][]float64 `json:"-"`

	// PortfolioReturns is the trailing daily return series of the whole
	// portfolio, used for realized volatility monitoring.
	PortfolioReturns []float64 `json:"-"`
}

// SectorWeight returns the summed weight currently held in a sector.
func (s *PortfolioState) SectorWeight(sector string) float64 {
	var total float64
	for _, p := range s.Positions {
		if p.Sector == sector {
			total += p.Weight
		}
	}
	return total
}

// PositionSizing is the sized, risk-limited order proposal for one symbol.
type PositionSizing struct {
	Symbol          string  `json:"symbol"`
	SizeFraction    float64 `json:"size_fraction"` // fraction of equity, 0..max position weight
	EntryPrice      float64 `json:"entry_price"`
	StopLossPrice   float64 `json:"stop_loss_price"`
	TakeProfitPrice float64 `json:"take_profit_price"`

	// Rejected is set when the correlation gate refused the position
	// outright; ConflictSymbol names the holding that triggered it.
	Rejected       bool   `json:"rejected,omitempty"`
	ConflictSymbol string `json:"conflict_symbol,omitempty"`
	Reason         string `json:"reason,omitempty"`
}

// RiskWarning is one portfolio-level risk breach. Breaches are reported,
// never silently corrected.
type RiskWarning struct {
	Code    string  `json:"code"`
	Message string  `json:"message"`
	Value   float64 `json:"value"`
	Limit   float64 `json:"limit"`
}

// RiskReport summarizes realized portfolio risk against targets.
type RiskReport struct {
	AsOf          time.Time     `json:"as_of"`
	RealizedVol   float64       `json:"realized_vol"` // annualized
	TargetVol     float64       `json:"target_vol"`
	MaxPosition   float64       `json:"max_position"`
	HoldingCount  int           `json:"holding_count"`
	Warnings      []RiskWarning `json:"warnings"`
}

// Breached reports whether any risk limit was violated.
func (r *RiskReport) Breached() bool {
	return len(r.Warnings) > 0
}
