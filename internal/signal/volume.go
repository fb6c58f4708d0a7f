package signal

import "github.com/thanhpn/alphavn/internal/contracts"

// scoreVolume scores VSA-style volume pattern conditions over the window.
// Each recent bar is compared against its trailing volume and range averages;
// effort/result mismatches shift the score away from neutral 50.
func (e *Engine) scoreVolume(window []contracts.PricePoint) float64 {
	cfg := e.cfg.Volume
	n := len(window)
	if n < cfg.AvgWindow+2 {
		return 50
	}

	score := 50.0

	// Score the last five bars, most recent weighted heaviest.
	const scored = 5
	for k := 0; k < scored && n-1-k > cfg.AvgWindow; k++ {
		i := n - 1 - k
		bar := window[i]
		avgVol := trailingAvgVolume(window, i, cfg.AvgWindow)
		avgRange := trailingAvgRange(window, i, cfg.AvgWindow)
		if avgVol <= 0 || avgRange <= 0 {
			continue
		}

		weight := 1.0 - float64(k)*0.15 // recency decay
		volRatio := float64(bar.Volume) / avgVol
		downBar := bar.Close < window[i-1].Close
		upBar := bar.Close > window[i-1].Close
		closePos := bar.ClosePosition()
		wideSpread := bar.Range() > avgRange*1.3
		narrowSpread := bar.Range() < avgRange*cfg.SpreadCompression

		switch {
		case volRatio >= cfg.ClimaxMultiple && downBar && closePos >= cfg.CloseHighThreshold:
			// Stopping volume: heavy selling absorbed, close recovers high.
			score += 12 * weight
		case volRatio >= cfg.ClimaxMultiple && upBar && closePos <= cfg.CloseLowThreshold && wideSpread:
			// Buying climax: effort up, result down into the close.
			score -= 12 * weight
		case volRatio <= cfg.QuietMultiple && downBar && narrowSpread:
			// No supply: sellers absent on the decline.
			score += 7 * weight
		case volRatio <= cfg.QuietMultiple && upBar && narrowSpread:
			// No demand: rally without participation.
			score -= 7 * weight
		case volRatio >= 1.5 && narrowSpread && closePos >= cfg.CloseHighThreshold:
			// Stealth accumulation: rising volume, compressed range,
			// close held near the high.
			score += 10 * weight
		case volRatio >= 1.5 && narrowSpread && closePos <= cfg.CloseLowThreshold:
			score -= 10 * weight
		}
	}

	// Sustained relative volume carries its own information: quiet tape
	// drifts the score toward neutral, active tape amplifies it.
	lastAvg := trailingAvgVolume(window, n-1, cfg.AvgWindow)
	if lastAvg > 0 {
		recent := float64(window[n-1].Volume) / lastAvg
		if recent > 1.2 && window[n-1].Close > window[n-2].Close {
			score += 5
		}
	}

	return clamp(score, 0, 100)
}

// trailingAvgVolume averages volume over the n bars before index i.
func trailingAvgVolume(window []contracts.PricePoint, i, n int) float64 {
	if i < n {
		return 0
	}
	var sum int64
	for j := i - n; j < i; j++ {
		sum += window[j].Volume
	}
	return float64(sum) / float64(n)
}

// trailingAvgRange averages the high-low spread over the n bars before i.
func trailingAvgRange(window []contracts.PricePoint, i, n int) float64 {
	if i < n {
		return 0
	}
	var sum float64
	for j := i - n; j < i; j++ {
		sum += window[j].Range()
	}
	return sum / float64(n)
}
