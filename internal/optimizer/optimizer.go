package optimizer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/thanhpn/alphavn/internal/contracts"
	"github.com/thanhpn/alphavn/internal/strategyconfig"
	"github.com/thanhpn/alphavn/pkg/logger"
)

// Estimates carries the return and risk inputs for one rebalance event.
// Symbols defines the ordering of Returns and Covariance.
type Estimates struct {
	Symbols    []string
	Returns    []float64   // annualized historical expected returns
	Covariance [][]float64 // annualized return covariance, Symbols order

	Sectors        map[string]string  // symbol -> sector, "" allowed
	CurrentWeights map[string]float64 // held weights, for transaction costs
}

// Optimizer solves the constrained mean-variance allocation. A single
// Optimize call is one blocking numerical computation; it sees a consistent
// snapshot of all inputs and honors the context deadline.
type Optimizer struct {
	cfg    strategyconfig.Optimizer
	logger *logger.Logger
}

// New creates an optimizer with the given tuning.
func New(cfg strategyconfig.Optimizer, log *logger.Logger) *Optimizer {
	return &Optimizer{
		cfg:    cfg,
		logger: log.WithField("component", "optimizer"),
	}
}

// Optimize maximizes a Sharpe-style objective over the universe under the
// constraint set. Failure modes are distinct: ErrInfeasibleConstraints when
// the universe cannot satisfy the constraints at all, ErrNotConverged when
// the solver ran out of iterations, ErrTimeout when the context expired.
// Callers choosing to degrade use ScoreProportional.
func (o *Optimizer) Optimize(ctx context.Context, universe []contracts.EnhancedSignal, est Estimates, constraints contracts.Constraints) (*contracts.PortfolioWeights, error) {
	n := len(est.Symbols)
	if n == 0 || len(universe) == 0 {
		return nil, fmt.Errorf("%w: empty universe", contracts.ErrInfeasibleConstraints)
	}
	if n != len(est.Returns) || n != len(est.Covariance) {
		return nil, fmt.Errorf("estimates dimension mismatch: %d symbols, %d returns, %d covariance rows",
			n, len(est.Returns), len(est.Covariance))
	}

	invested := 1.0 - constraints.MinCashReserve

	// Feasibility before any numerics, so callers can distinguish a broken
	// constraint set from a solver failure.
	if n < constraints.MinDiversification {
		return nil, fmt.Errorf("%w: universe of %d cannot satisfy min_diversification %d",
			contracts.ErrInfeasibleConstraints, n, constraints.MinDiversification)
	}
	if float64(n)*constraints.MaxPositionWeight < invested-1e-9 {
		return nil, fmt.Errorf("%w: %d positions capped at %.2f cannot reach invested fraction %.2f",
			contracts.ErrInfeasibleConstraints, n, constraints.MaxPositionWeight, invested)
	}

	mu := o.blendedReturns(universe, est)

	start := time.Now()
	weights, iterations, err := o.solve(ctx, mu, est, constraints)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%w: solver interrupted after %s", contracts.ErrTimeout, time.Since(start))
		}
		return nil, err
	}

	result := o.buildResult(weights, mu, est, constraints)
	result.ConstraintsSatisfied = result.Validate(constraints, 1e-6)

	o.logger.WithFields(map[string]interface{}{
		"symbols":    n,
		"iterations": iterations,
		"holdings":   result.HoldingCount(),
		"exp_return": result.ExpectedReturn,
		"exp_risk":   result.ExpectedRisk,
		"sharpe":     result.SharpeRatio,
	}).Info("Optimization converged")

	return result, nil
}

// blendedReturns blends historical expected returns with the signal tilt:
// stronger, higher-confidence signals bias allocation upward.
func (o *Optimizer) blendedReturns(universe []contracts.EnhancedSignal, est Estimates) []float64 {
	bySymbol := make(map[string]contracts.EnhancedSignal, len(universe))
	for _, sig := range universe {
		bySymbol[sig.Base.Symbol] = sig
	}

	mu := make([]float64, len(est.Symbols))
	for i, sym := range est.Symbols {
		hist := est.Returns[i]
		tilt := 0.0
		if sig, ok := bySymbol[sym]; ok {
			strength := (sig.EnhancedScore - 50) / 50 // -1..1
			tilt = strength * sig.Confidence * o.cfg.TiltScale
		}
		mu[i] = (1-o.cfg.SignalBlend)*hist + o.cfg.SignalBlend*tilt
	}
	return mu
}

// netExcessReturn is the cost-adjusted excess return of an allocation:
// expected return minus the risk-free rate minus transaction costs. Costs
// use a fixed commission on turnover plus a market-impact term growing with
// the square of trade size, which keeps the optimizer from churning the
// portfolio for marginal gains.
func (o *Optimizer) netExcessReturn(w, mu []float64, est Estimates) float64 {
	var gross float64
	for i := range w {
		gross += w[i] * mu[i]
	}

	var cost float64
	for i, sym := range est.Symbols {
		delta := math.Abs(w[i] - est.CurrentWeights[sym])
		cost += o.cfg.CommissionRate*delta + o.cfg.ImpactCoeff*delta*delta
	}

	return gross - o.cfg.RiskFreeRate - cost
}

// portfolioVol returns sqrt(w' C w).
func portfolioVol(w []float64, cov [][]float64) float64 {
	var variance float64
	for i := range w {
		for j := range w {
			variance += w[i] * cov[i][j] * w[j]
		}
	}
	if variance <= 0 {
		return 0
	}
	return math.Sqrt(variance)
}

// objective is the Sharpe-style ratio being maximized.
func (o *Optimizer) objective(w, mu []float64, est Estimates) float64 {
	vol := portfolioVol(w, est.Covariance)
	if vol < 1e-9 {
		vol = 1e-9
	}
	return o.netExcessReturn(w, mu, est) / vol
}

// buildResult assembles the PortfolioWeights from the solved vector.
func (o *Optimizer) buildResult(w, mu []float64, est Estimates, constraints contracts.Constraints) *contracts.PortfolioWeights {
	weights := make(map[string]float64, len(w))
	var invested float64
	for i, sym := range est.Symbols {
		if w[i] > 1e-9 {
			weights[sym] = w[i]
			invested += w[i]
		}
	}

	var expReturn float64
	for i := range w {
		expReturn += w[i] * mu[i]
	}
	vol := portfolioVol(w, est.Covariance)

	sharpe := 0.0
	if vol > 1e-9 {
		sharpe = (expReturn - o.cfg.RiskFreeRate) / vol
	}

	return &contracts.PortfolioWeights{
		AsOf:           time.Now(),
		Weights:        weights,
		CashReserve:    1.0 - invested,
		ExpectedReturn: expReturn,
		ExpectedRisk:   vol,
		SharpeRatio:    sharpe,
	}
}

// sortedSymbols returns symbols ordered by descending blended return, ties
// broken by symbol for determinism.
func sortedSymbols(symbols []string, mu []float64) []int {
	idx := make([]int, len(symbols))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool {
		if mu[idx[a]] != mu[idx[b]] {
			return mu[idx[a]] > mu[idx[b]]
		}
		return symbols[idx[a]] < symbols[idx[b]]
	})
	return idx
}
