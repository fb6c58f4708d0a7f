package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thanhpn/alphavn/internal/contracts"
	"github.com/thanhpn/alphavn/pkg/logger"
)

func newTestSimulator() *Simulator {
	sim := NewSimulator(0.0015, 0.001, logger.NewNop())
	sim.Reset(1_000_000_000)
	return sim
}

var simDate = time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

func TestRebalanceTo_BuysWholeLots(t *testing.T) {
	sim := newTestSimulator()

	sim.RebalanceTo(simDate,
		map[string]float64{"VNM": 0.10},
		map[string]float64{"VNM": 65000},
		map[string]string{"VNM": "consumer"})

	trades := sim.Trades()
	require.Len(t, trades, 1)
	assert.Equal(t, contracts.TradeBuy, trades[0].Side)
	assert.Zero(t, trades[0].Shares%lotSize)
	assert.Greater(t, trades[0].Commission, 0.0)

	// 10% of 1B at 65k/share is ~1538 shares, floored to 1500.
	assert.Equal(t, int64(1500), trades[0].Shares)
}

func TestRebalanceTo_SellRealizesPnL(t *testing.T) {
	sim := newTestSimulator()
	sectors := map[string]string{"FPT": "tech"}

	sim.RebalanceTo(simDate, map[string]float64{"FPT": 0.10},
		map[string]float64{"FPT": 100000}, sectors)

	// Price doubles, then the position is closed.
	sim.RebalanceTo(simDate.AddDate(0, 0, 7), map[string]float64{"FPT": 0},
		map[string]float64{"FPT": 200000}, sectors)

	trades := sim.Trades()
	require.Len(t, trades, 2)
	sell := trades[1]
	assert.Equal(t, contracts.TradeSell, sell.Side)
	assert.Greater(t, sell.PnL, 0.0)
	assert.Greater(t, sell.ReturnPct, 0.9, "doubling minus friction stays near +100%")

	wins, losses, commission, slippage := sim.Stats()
	assert.Equal(t, 1, wins)
	assert.Equal(t, 0, losses)
	assert.Greater(t, commission, 0.0)
	assert.Greater(t, slippage, 0.0)
}

func TestRebalanceTo_SellsBeforeBuys(t *testing.T) {
	sim := newTestSimulator()
	closes := map[string]float64{"AAA": 50000, "BBB": 50000}
	sectors := map[string]string{"AAA": "x", "BBB": "x"}

	// Nearly fully invested in AAA, then rotate everything into BBB. The
	// buy is only affordable if the sell settles first.
	sim.RebalanceTo(simDate, map[string]float64{"AAA": 0.90}, closes, sectors)
	sim.RebalanceTo(simDate.AddDate(0, 0, 7), map[string]float64{"BBB": 0.90}, closes, sectors)

	trades := sim.Trades()
	require.Len(t, trades, 3)
	assert.Equal(t, contracts.TradeBuy, trades[0].Side)
	assert.Equal(t, "AAA", trades[0].Symbol)
	assert.Equal(t, contracts.TradeSell, trades[1].Side)
	assert.Equal(t, "AAA", trades[1].Symbol)
	assert.Equal(t, contracts.TradeBuy, trades[2].Side)
	assert.Equal(t, "BBB", trades[2].Symbol)
	assert.Greater(t, trades[2].Shares, int64(0))
}

func TestRebalanceTo_MissingQuoteCarriesPosition(t *testing.T) {
	sim := newTestSimulator()
	sectors := map[string]string{"HPG": "steel"}

	sim.RebalanceTo(simDate, map[string]float64{"HPG": 0.10},
		map[string]float64{"HPG": 28000}, sectors)
	held := sim.Equity(map[string]float64{"HPG": 28000})

	// No quote for HPG today: it is carried at entry, not dumped.
	sim.RebalanceTo(simDate.AddDate(0, 0, 7), map[string]float64{}, map[string]float64{}, sectors)

	require.Len(t, sim.Trades(), 1, "no fill without a price")
	assert.InDelta(t, held, sim.Equity(map[string]float64{}), held*0.01)
}

func TestEquity_MarksToMarket(t *testing.T) {
	sim := newTestSimulator()

	sim.RebalanceTo(simDate, map[string]float64{"VNM": 0.50},
		map[string]float64{"VNM": 65000}, map[string]string{"VNM": "consumer"})

	low := sim.Equity(map[string]float64{"VNM": 60000})
	high := sim.Equity(map[string]float64{"VNM": 70000})
	assert.Less(t, low, high)
}

func TestState_WeightsSumWithCash(t *testing.T) {
	sim := newTestSimulator()
	closes := map[string]float64{"VNM": 65000, "FPT": 120000}

	sim.RebalanceTo(simDate, map[string]float64{"VNM": 0.30, "FPT": 0.30},
		closes, map[string]string{"VNM": "consumer", "FPT": "tech"})

	state := sim.State(simDate, closes)
	require.Len(t, state.Positions, 2)

	var total float64
	for _, pos := range state.Positions {
		total += pos.Weight
	}
	total += state.Cash / state.Equity
	assert.InDelta(t, 1.0, total, 1e-9)
}
