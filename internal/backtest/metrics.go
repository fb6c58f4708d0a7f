package backtest

import (
	"math"

	"github.com/thanhpn/alphavn/internal/contracts"
)

const tradingDaysPerYear = 252

// computeMetrics fills the performance block of a result from its equity
// curve and trade log.
func computeMetrics(result *contracts.BacktestResult, riskFreeRate float64) {
	curve := result.EquityCurve
	if len(curve) == 0 || result.InitialCapital <= 0 {
		return
	}

	result.FinalCapital = curve[len(curve)-1].Equity
	result.TotalReturn = result.FinalCapital/result.InitialCapital - 1

	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev > 0 {
			returns = append(returns, curve[i].Equity/prev-1)
		}
	}

	years := float64(result.TradingDays) / tradingDaysPerYear
	if years > 0 && result.FinalCapital > 0 {
		result.AnnualizedReturn = math.Pow(result.FinalCapital/result.InitialCapital, 1/years) - 1
	}

	result.Volatility = annualizedVol(returns)
	result.SharpeRatio = sharpeRatio(returns, riskFreeRate)
	result.SortinoRatio = sortinoRatio(returns, riskFreeRate)
	result.MaxDrawdown = maxDrawdown(curve)

	wins, losses := result.WinningTrades, result.LosingTrades
	if wins+losses > 0 {
		result.WinRate = float64(wins) / float64(wins+losses)
	}
	result.AverageReturn = averageTradeReturn(result.Trades)
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var sum float64
	for _, x := range xs {
		d := x - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(xs)-1))
}

func annualizedVol(returns []float64) float64 {
	return stdDev(returns) * math.Sqrt(tradingDaysPerYear)
}

func sharpeRatio(returns []float64, riskFreeRate float64) float64 {
	sd := stdDev(returns)
	if sd == 0 {
		return 0
	}
	excess := mean(returns) - riskFreeRate/tradingDaysPerYear
	return excess / sd * math.Sqrt(tradingDaysPerYear)
}

// sortinoRatio penalizes only downside deviation.
func sortinoRatio(returns []float64, riskFreeRate float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	dailyRf := riskFreeRate / tradingDaysPerYear

	var downSum float64
	for _, r := range returns {
		if d := r - dailyRf; d < 0 {
			downSum += d * d
		}
	}
	downDev := math.Sqrt(downSum / float64(len(returns)))
	if downDev == 0 {
		return 0
	}
	return (mean(returns) - dailyRf) / downDev * math.Sqrt(tradingDaysPerYear)
}

// maxDrawdown is the largest peak-to-trough decline, as a positive fraction.
func maxDrawdown(curve []contracts.EquityPoint) float64 {
	var peak, maxDD float64
	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak > 0 {
			if dd := (peak - p.Equity) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// averageTradeReturn is the mean realized return across sells.
func averageTradeReturn(trades []contracts.Trade) float64 {
	var sum float64
	var n int
	for _, t := range trades {
		if t.Side == contracts.TradeSell {
			sum += t.ReturnPct
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
