package risk

import (
	"math"

	"github.com/thanhpn/alphavn/internal/contracts"
)

// Pure statistical measures used by the manager. No state, no I/O.

// ATR computes the average true range over the last period bars of an
// ascending daily series. Needs period+1 bars for the previous-close term.
func ATR(series []contracts.PricePoint, period int) float64 {
	n := len(series)
	if period <= 0 || n < period+1 {
		return 0
	}

	var sum float64
	for i := n - period; i < n; i++ {
		prevClose := series[i-1].Close
		tr := math.Max(series[i].High-series[i].Low,
			math.Max(math.Abs(series[i].High-prevClose), math.Abs(series[i].Low-prevClose)))
		sum += tr
	}
	return sum / float64(period)
}

// DailyReturns converts an ascending close series into simple daily returns.
func DailyReturns(series []contracts.PricePoint) []float64 {
	if len(series) < 2 {
		return nil
	}
	out := make([]float64, 0, len(series)-1)
	for i := 1; i < len(series); i++ {
		prev := series[i-1].Close
		if prev <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, (series[i].Close-prev)/prev)
	}
	return out
}

// Correlation computes the Pearson correlation of two return series over
// their overlapping tail. Returns 0 when overlap is too short to matter.
func Correlation(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n < 10 {
		return 0
	}
	a = a[len(a)-n:]
	b = b[len(b)-n:]

	meanA, meanB := Mean(a), Mean(b)
	var cov, varA, varB float64
	for i := 0; i < n; i++ {
		da := a[i] - meanA
		db := b[i] - meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}
	if varA <= 0 || varB <= 0 {
		return 0
	}
	return cov / math.Sqrt(varA*varB)
}

// Mean returns the arithmetic mean.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StdDev returns the sample standard deviation.
func StdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := Mean(values)
	var sumSq float64
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(len(values)-1))
}

// AnnualizedVol scales a daily return standard deviation to annual terms
// using 252 trading days.
func AnnualizedVol(dailyReturns []float64) float64 {
	return StdDev(dailyReturns) * math.Sqrt(252)
}
