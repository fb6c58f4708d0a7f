package signal

import "github.com/thanhpn/alphavn/internal/contracts"

// scoreMomentum computes a Wilder-smoothed RSI and adjusts it for
// price/oscillator divergence over the divergence window.
func (e *Engine) scoreMomentum(window []contracts.PricePoint) float64 {
	cfg := e.cfg.Momentum
	n := len(window)
	if n < cfg.RSIPeriod+2 {
		return 50
	}

	rsiSeries := rsiSeries(window, cfg.RSIPeriod)
	if len(rsiSeries) == 0 {
		return 50
	}

	score := rsiSeries[len(rsiSeries)-1]

	// Divergence between price extremes and oscillator extremes over the
	// trailing window. A lower price low with a higher oscillator low is
	// bullish; the mirror case is bearish.
	div := detectDivergence(window, rsiSeries, cfg.DivergenceWindow)
	score += div * 15

	return clamp(score, 0, 100)
}

// rsiSeries computes the Wilder-smoothed RSI for every bar after the warmup
// period. Output is aligned to window[period:].
func rsiSeries(window []contracts.PricePoint, period int) []float64 {
	n := len(window)
	if n < period+1 {
		return nil
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := window[i].Close - window[i-1].Close
		if change > 0 {
			avgGain += change
		} else {
			avgLoss += -change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	out := make([]float64, 0, n-period)
	out = append(out, rsiValue(avgGain, avgLoss))

	for i := period + 1; i < n; i++ {
		change := window[i].Close - window[i-1].Close
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out = append(out, rsiValue(avgGain, avgLoss))
	}

	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// detectDivergence compares price and oscillator extremes over the trailing
// lookback split into two halves. Returns +1 for bullish divergence, -1 for
// bearish, 0 for none.
func detectDivergence(window []contracts.PricePoint, rsi []float64, lookback int) float64 {
	n := len(rsi)
	if n < lookback {
		lookback = n
	}
	if lookback < 6 {
		return 0
	}

	offset := len(window) - n // rsi[i] corresponds to window[i+offset]
	start := n - lookback
	mid := start + lookback/2

	firstLowIdx, secondLowIdx := start, mid
	firstHighIdx, secondHighIdx := start, mid
	for i := start; i < mid; i++ {
		if window[i+offset].Low < window[firstLowIdx+offset].Low {
			firstLowIdx = i
		}
		if window[i+offset].High > window[firstHighIdx+offset].High {
			firstHighIdx = i
		}
	}
	for i := mid; i < n; i++ {
		if window[i+offset].Low < window[secondLowIdx+offset].Low {
			secondLowIdx = i
		}
		if window[i+offset].High > window[secondHighIdx+offset].High {
			secondHighIdx = i
		}
	}

	// Bullish: price made a lower low while the oscillator made a higher low.
	if window[secondLowIdx+offset].Low < window[firstLowIdx+offset].Low &&
		rsi[secondLowIdx] > rsi[firstLowIdx] {
		return 1
	}
	// Bearish: price made a higher high while the oscillator made a lower high.
	if window[secondHighIdx+offset].High > window[firstHighIdx+offset].High &&
		rsi[secondHighIdx] < rsi[firstHighIdx] {
		return -1
	}

	return 0
}
