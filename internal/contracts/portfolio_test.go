package contracts

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPortfolioWeights_Validate(t *testing.T) {
	c := DefaultConstraints()

	valid := PortfolioWeights{
		Weights: map[string]float64{
			"VNM": 0.12, "VCB": 0.12, "FPT": 0.12, "HPG": 0.12,
			"MWG": 0.12, "SSI": 0.12, "GAS": 0.12, "CTG": 0.11,
		},
		CashReserve: 0.05,
	}
	assert.True(t, valid.Validate(c, 1e-6))

	overweight := PortfolioWeights{
		Weights:     map[string]float64{"VNM": 0.20, "VCB": 0.75},
		CashReserve: 0.05,
	}
	assert.False(t, overweight.Validate(c, 1e-6), "position above cap")

	short := PortfolioWeights{
		Weights:     map[string]float64{"VNM": 0.10, "VCB": -0.02},
		CashReserve: 0.92,
	}
	assert.False(t, short.Validate(c, 1e-6), "negative weight")

	leaky := PortfolioWeights{
		Weights:     map[string]float64{"VNM": 0.10},
		CashReserve: 0.80,
	}
	assert.False(t, leaky.Validate(c, 1e-6), "weights plus cash must sum to 1")
}

func TestPortfolioWeights_Counters(t *testing.T) {
	p := PortfolioWeights{
		Weights: map[string]float64{"VNM": 0.10, "VCB": 0.05, "FPT": 0},
	}
	assert.InDelta(t, 0.15, p.TotalWeight(), 1e-12)
	assert.Equal(t, 2, p.HoldingCount(), "zero weights are not holdings")
}

func TestPricePoint_ClosePosition(t *testing.T) {
	bar := PricePoint{Open: 100, High: 110, Low: 100, Close: 108}
	assert.InDelta(t, 0.8, bar.ClosePosition(), 1e-12)
	assert.InDelta(t, 10.0, bar.Range(), 1e-12)

	flat := PricePoint{Open: 100, High: 100, Low: 100, Close: 100}
	assert.Equal(t, 0.5, flat.ClosePosition(), "zero-range bar sits mid")
}

func TestNeutralContext(t *testing.T) {
	date := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	mctx := NeutralContext(date)

	assert.True(t, mctx.Neutral)
	assert.Equal(t, -1, mctx.DaysToNextHoliday)
	assert.Equal(t, -1, mctx.DaysAfterHoliday)
	assert.Equal(t, 0.0, mctx.SectorModifier("banks"))
}

func TestPortfolioWeights_JSONRoundTrip(t *testing.T) {
	in := PortfolioWeights{
		AsOf:                 time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC),
		Weights:              map[string]float64{"VNM": 0.12, "VCB": 0.10},
		CashReserve:          0.05,
		ExpectedReturn:       0.14,
		ExpectedRisk:         0.18,
		SharpeRatio:          0.53,
		ConstraintsSatisfied: true,
		Degraded:             true,
	}

	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out PortfolioWeights
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestSectorWeight(t *testing.T) {
	state := PortfolioState{
		Positions: map[string]Position{
			"VCB": {Symbol: "VCB", Sector: "banks", Weight: 0.12},
			"CTG": {Symbol: "CTG", Sector: "banks", Weight: 0.08},
			"VNM": {Symbol: "VNM", Sector: "consumer", Weight: 0.10},
		},
	}
	assert.InDelta(t, 0.20, state.SectorWeight("banks"), 1e-12)
	assert.Equal(t, 0.0, state.SectorWeight("tech"))
}
