package optimizer

import (
	"time"

	"github.com/thanhpn/alphavn/internal/contracts"
)

// ScoreProportional builds the degraded fallback allocation: weights
// proportional to enhanced score times confidence, capped per position and
// per sector, remainder to cash. Callers use it after ErrNotConverged or
// ErrTimeout when they choose degradation over rejecting the rebalance.
func (o *Optimizer) ScoreProportional(universe []contracts.EnhancedSignal, est Estimates, constraints contracts.Constraints) *contracts.PortfolioWeights {
	invested := 1.0 - constraints.MinCashReserve

	bySymbol := make(map[string]contracts.EnhancedSignal, len(universe))
	for _, sig := range universe {
		bySymbol[sig.Base.Symbol] = sig
	}

	n := len(est.Symbols)
	w := make([]float64, n)
	var totalScore float64
	scores := make([]float64, n)
	for i, sym := range est.Symbols {
		if sig, ok := bySymbol[sym]; ok && sig.EnhancedScore > 50 {
			scores[i] = (sig.EnhancedScore - 50) * sig.Confidence
			totalScore += scores[i]
		}
	}

	if totalScore > 0 {
		for i := range w {
			w[i] = scores[i] / totalScore * invested
		}
	} else {
		// Nothing above neutral: equal weight.
		for i := range w {
			w[i] = invested / float64(n)
		}
	}

	mu := o.blendedReturns(universe, est)
	o.project(w, mu, est, constraints)

	result := o.buildResult(w, mu, est, constraints)
	result.AsOf = time.Now()
	result.Degraded = true
	result.ConstraintsSatisfied = result.Validate(constraints, 1e-6)

	o.logger.WithFields(map[string]interface{}{
		"holdings": result.HoldingCount(),
		"cash":     result.CashReserve,
	}).Warn("Using score-proportional fallback allocation")

	return result
}
