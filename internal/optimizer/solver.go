package optimizer

import (
	"context"
	"fmt"
	"math"

	"github.com/thanhpn/alphavn/internal/contracts"
)

// solve runs projected gradient ascent on the Sharpe objective. The equality
// constraint (weights sum to the invested fraction) and the inequality
// constraints (non-negativity, per-position cap, per-sector cap) are enforced
// inside every iteration by projection, not post-hoc.
func (o *Optimizer) solve(ctx context.Context, mu []float64, est Estimates, constraints contracts.Constraints) ([]float64, int, error) {
	n := len(mu)
	invested := 1.0 - constraints.MinCashReserve

	// Equal-weight start inside the feasible region.
	w := make([]float64, n)
	for i := range w {
		w[i] = invested / float64(n)
	}
	o.project(w, mu, est, constraints)

	prevObj := o.objective(w, mu, est)
	step := o.cfg.StepSize
	grad := make([]float64, n)
	candidate := make([]float64, n)

	for iter := 1; iter <= o.cfg.MaxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, iter, err
		}

		o.gradient(w, mu, est, grad)

		// Backtracking line search keeps ascent monotone.
		improved := false
		for trial := 0; trial < 8; trial++ {
			for i := range w {
				candidate[i] = w[i] + step*grad[i]
			}
			o.project(candidate, mu, est, constraints)

			obj := o.objective(candidate, mu, est)
			if obj > prevObj {
				copy(w, candidate)
				if math.Abs(obj-prevObj) < o.cfg.Tolerance {
					prevObj = obj
					return w, iter, nil
				}
				prevObj = obj
				improved = true
				break
			}
			step *= 0.5
		}

		if !improved {
			// No ascent direction at any step size: stationary point.
			return w, iter, nil
		}

		// Gentle step recovery after successful iterations.
		step = math.Min(step*1.2, o.cfg.StepSize)
	}

	return nil, o.cfg.MaxIterations, fmt.Errorf("%w: %d iterations without meeting tolerance %g",
		contracts.ErrNotConverged, o.cfg.MaxIterations, o.cfg.Tolerance)
}

// gradient fills grad with a central finite-difference approximation of the
// objective gradient.
func (o *Optimizer) gradient(w, mu []float64, est Estimates, grad []float64) {
	const h = 1e-6
	for i := range w {
		orig := w[i]
		w[i] = orig + h
		up := o.objective(w, mu, est)
		w[i] = orig - h
		down := o.objective(w, mu, est)
		w[i] = orig
		grad[i] = (up - down) / (2 * h)
	}
}

// project maps w onto the feasible region: non-negativity, per-position cap,
// per-sector cap, weight sum equal to the invested fraction, and minimum
// diversification. Deterministic for identical inputs.
func (o *Optimizer) project(w, mu []float64, est Estimates, constraints contracts.Constraints) {
	invested := 1.0 - constraints.MinCashReserve

	// Non-negativity and per-position cap.
	for i := range w {
		if w[i] < 0 {
			w[i] = 0
		}
		if w[i] > constraints.MaxPositionWeight {
			w[i] = constraints.MaxPositionWeight
		}
	}

	// Alternate between the sum constraint and the caps. The region is the
	// intersection of convex sets, so a few rounds settle it.
	for round := 0; round < 25; round++ {
		o.rescaleToSum(w, constraints, invested)

		changed := false
		for i := range w {
			if w[i] > constraints.MaxPositionWeight {
				w[i] = constraints.MaxPositionWeight
				changed = true
			}
		}
		if o.capSectors(w, est, constraints) {
			changed = true
		}
		if !changed {
			break
		}
	}

	o.ensureDiversification(w, mu, est, constraints, invested)
	o.rescaleToSum(w, constraints, invested)
}

// rescaleToSum scales free (uncapped) weights so the total reaches the
// invested fraction without pushing any position past its cap.
func (o *Optimizer) rescaleToSum(w []float64, constraints contracts.Constraints, invested float64) {
	var total float64
	for _, v := range w {
		total += v
	}
	if total <= 1e-12 {
		// Degenerate vector: restart from equal weight.
		for i := range w {
			w[i] = math.Min(invested/float64(len(w)), constraints.MaxPositionWeight)
		}
		return
	}

	for round := 0; round < 10 && math.Abs(total-invested) > 1e-10; round++ {
		var freeTotal, cappedTotal float64
		for _, v := range w {
			if v >= constraints.MaxPositionWeight-1e-12 {
				cappedTotal += v
			} else {
				freeTotal += v
			}
		}
		if freeTotal <= 1e-12 {
			break
		}
		factor := (invested - cappedTotal) / freeTotal
		for i := range w {
			if w[i] < constraints.MaxPositionWeight-1e-12 {
				w[i] = math.Min(w[i]*factor, constraints.MaxPositionWeight)
			}
		}
		total = 0
		for _, v := range w {
			total += v
		}
	}
}

// capSectors scales down any sector exceeding the sector cap. Returns true
// when a sector was capped.
func (o *Optimizer) capSectors(w []float64, est Estimates, constraints contracts.Constraints) bool {
	if len(est.Sectors) == 0 {
		return false
	}

	sectorTotals := make(map[string]float64)
	for i, sym := range est.Symbols {
		if sector := est.Sectors[sym]; sector != "" {
			sectorTotals[sector] += w[i]
		}
	}

	capped := false
	for sector, total := range sectorTotals {
		if total <= constraints.MaxSectorWeight+1e-12 {
			continue
		}
		factor := constraints.MaxSectorWeight / total
		for i, sym := range est.Symbols {
			if est.Sectors[sym] == sector {
				w[i] *= factor
			}
		}
		capped = true
	}
	return capped
}

// ensureDiversification keeps at least the minimum number of non-zero
// holdings by seeding a floor weight into the best remaining candidates,
// ranked by blended return.
func (o *Optimizer) ensureDiversification(w, mu []float64, est Estimates, constraints contracts.Constraints, invested float64) {
	nonZero := 0
	for _, v := range w {
		if v > 1e-9 {
			nonZero++
		}
	}
	if nonZero >= constraints.MinDiversification {
		return
	}

	floor := invested / float64(4*constraints.MinDiversification)
	for _, i := range sortedSymbols(est.Symbols, mu) {
		if nonZero >= constraints.MinDiversification {
			break
		}
		if w[i] <= 1e-9 {
			w[i] = floor
			nonZero++
		}
	}
}
