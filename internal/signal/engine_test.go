package signal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thanhpn/alphavn/internal/contracts"
	"github.com/thanhpn/alphavn/internal/strategyconfig"
	"github.com/thanhpn/alphavn/pkg/logger"
)

func newTestEngine() *Engine {
	return NewEngine(strategyconfig.Default().Signals, logger.NewNop())
}

// makeSeries builds n daily bars with a constant daily close change. A
// positive drift closes each bar at its high, a negative drift at its low.
func makeSeries(symbol string, n int, start float64, drift float64, volume int64) []contracts.PricePoint {
	series := make([]contracts.PricePoint, n)
	date := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	prev := start
	for i := 0; i < n; i++ {
		close := prev * (1 + drift)
		p := contracts.PricePoint{
			Symbol: symbol,
			Date:   date,
			Open:   prev,
			Close:  close,
			Volume: volume,
		}
		if drift >= 0 {
			p.High = close
			p.Low = prev * 0.995
		} else {
			p.High = prev * 1.005
			p.Low = close
		}
		p.TradedValue = close * float64(volume)
		series[i] = p
		prev = close
		date = date.AddDate(0, 0, 1)
		if date.Weekday() == time.Saturday {
			date = date.AddDate(0, 0, 2)
		}
	}
	return series
}

func TestAnalyze_RisingSeriesScoresBullish(t *testing.T) {
	e := newTestEngine()
	series := makeSeries("VNM", 80, 60000, 0.01, 1_200_000)

	set := e.Analyze(context.Background(), "VNM", "consumer", series, series[len(series)-1].Date)

	require.False(t, set.InsufficientData)
	assert.GreaterOrEqual(t, set.CompositeScore, 65.0, "sustained uptrend should score at least a buy")
	assert.Contains(t, []contracts.Classification{contracts.ClassBuy, contracts.ClassStrongBuy}, set.Classification)
	assert.Equal(t, 80, set.BarsUsed)
}

func TestAnalyze_FallingSeriesScoresBearish(t *testing.T) {
	e := newTestEngine()
	rising := makeSeries("VNM", 80, 60000, 0.01, 1_200_000)
	falling := makeSeries("HAG", 80, 20000, -0.01, 900_000)

	up := e.Analyze(context.Background(), "VNM", "", rising, rising[len(rising)-1].Date)
	down := e.Analyze(context.Background(), "HAG", "", falling, falling[len(falling)-1].Date)

	assert.Less(t, down.CompositeScore, up.CompositeScore)
	assert.LessOrEqual(t, down.CompositeScore, 45.0, "sustained downtrend should not score a buy")
}

func TestAnalyze_ShortSeriesDegradesToNeutral(t *testing.T) {
	e := newTestEngine()
	series := makeSeries("NEW", 12, 15000, 0.02, 500_000)

	set := e.Analyze(context.Background(), "NEW", "", series, series[len(series)-1].Date)

	assert.True(t, set.InsufficientData)
	assert.Equal(t, 50.0, set.CompositeScore)
	assert.Equal(t, 50.0, set.VolumeScore)
	assert.Equal(t, 50.0, set.MomentumScore)
	assert.Equal(t, contracts.ClassHold, set.Classification)
	assert.Equal(t, 12, set.BarsUsed)
}

func TestAnalyze_ScoresStayInRange(t *testing.T) {
	e := newTestEngine()

	cases := []struct {
		name  string
		drift float64
	}{
		{"strong up", 0.05},
		{"up", 0.008},
		{"flat", 0},
		{"down", -0.008},
		{"strong down", -0.05},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			series := makeSeries("T", 90, 30000, tc.drift, 2_000_000)
			set := e.Analyze(context.Background(), "T", "", series, series[len(series)-1].Date)

			for name, score := range map[string]float64{
				"volume":       set.VolumeScore,
				"price_action": set.PriceActionScore,
				"momentum":     set.MomentumScore,
				"accumulation": set.AccumulationScore,
				"composite":    set.CompositeScore,
			} {
				assert.GreaterOrEqual(t, score, 0.0, name)
				assert.LessOrEqual(t, score, 100.0, name)
			}
		})
	}
}

func TestAnalyze_DeterministicForSameInput(t *testing.T) {
	e := newTestEngine()
	series := makeSeries("FPT", 75, 80000, 0.004, 3_000_000)
	asOf := series[len(series)-1].Date

	first := e.Analyze(context.Background(), "FPT", "tech", series, asOf)
	second := e.Analyze(context.Background(), "FPT", "tech", series, asOf)

	assert.Equal(t, first, second)
}
