package signal

import "github.com/thanhpn/alphavn/internal/contracts"

// scorePriceAction scores breakouts against rolling support/resistance and
// the alignment between a short and a long moving average.
func (e *Engine) scorePriceAction(window []contracts.PricePoint) float64 {
	cfg := e.cfg.Price
	n := len(window)
	if n < cfg.MALong+1 || n < cfg.ResistanceWindow+1 {
		return 50
	}

	score := 50.0
	last := window[n-1]

	// Rolling resistance/support excludes the current bar so a new high is
	// a genuine break of prior structure.
	resistance, support := rollingExtremes(window, n-2, cfg.ResistanceWindow)

	if resistance > 0 && last.Close > resistance*(1+cfg.BreakoutMargin) {
		score += 15
		// Breakout closing strong within its own bar is more reliable.
		if last.ClosePosition() >= 0.7 {
			score += 5
		}
	}
	if support > 0 && last.Close < support*(1-cfg.BreakoutMargin) {
		score -= 15
		if last.ClosePosition() <= 0.3 {
			score -= 5
		}
	}

	// Trend alignment between short and long moving averages.
	maShort := sma(window, n-1, cfg.MAShort)
	maLong := sma(window, n-1, cfg.MALong)
	maShortPrev := sma(window, n-2, cfg.MAShort)

	switch {
	case last.Close > maShort && maShort > maLong:
		score += 12
	case last.Close < maShort && maShort < maLong:
		score -= 12
	}

	// Rising short average adds a small continuation bias.
	if maShortPrev > 0 {
		if maShort > maShortPrev {
			score += 6
		} else if maShort < maShortPrev {
			score -= 6
		}
	}

	// Proximity to resistance without a break caps enthusiasm: a close
	// within the margin of resistance scores neutral-to-weak.
	if resistance > 0 && last.Close <= resistance && last.Close >= resistance*(1-cfg.BreakoutMargin) {
		score -= 3
	}

	return clamp(score, 0, 100)
}

// rollingExtremes returns the max high and min low over the lookback bars
// ending at index end (inclusive).
func rollingExtremes(window []contracts.PricePoint, end, lookback int) (high, low float64) {
	start := end - lookback + 1
	if start < 0 {
		start = 0
	}
	if end < start {
		return 0, 0
	}
	high = window[start].High
	low = window[start].Low
	for i := start + 1; i <= end; i++ {
		if window[i].High > high {
			high = window[i].High
		}
		if window[i].Low < low {
			low = window[i].Low
		}
	}
	return high, low
}
