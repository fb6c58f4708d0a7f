package signal

import "github.com/thanhpn/alphavn/internal/contracts"

// scoreAccumulation accumulates a money-flow-weighted running total over the
// lookback window and normalizes it to 0..100. Net foreign flow, a strong
// smart-money footprint on HOSE, tilts the result.
func (e *Engine) scoreAccumulation(window []contracts.PricePoint) float64 {
	n := len(window)
	if n < 2 {
		return 50
	}

	var (
		moneyFlow   float64
		totalVolume float64
		foreignNet  float64
		totalValue  float64
	)

	for _, bar := range window {
		r := bar.Range()
		if r > 0 {
			// Money flow multiplier: +1 close at the high, -1 at the low.
			mfm := ((bar.Close - bar.Low) - (bar.High - bar.Close)) / r
			moneyFlow += mfm * float64(bar.Volume)
		}
		totalVolume += float64(bar.Volume)
		foreignNet += bar.ForeignNet()
		totalValue += bar.TradedValue
	}

	if totalVolume <= 0 {
		return 50
	}

	// Normalized A/D ratio in [-1, 1] -> 0..100.
	ratio := moneyFlow / totalVolume
	score := 50 + ratio*50

	// Foreign flow tilt: net buying over the window adds up to +/-10 points
	// proportional to its share of traded value.
	if totalValue > 0 {
		flowShare := clamp(foreignNet/totalValue, -0.2, 0.2)
		score += flowShare * 50
	}

	return clamp(score, 0, 100)
}
