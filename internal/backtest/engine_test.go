package backtest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thanhpn/alphavn/internal/contracts"
	"github.com/thanhpn/alphavn/internal/marketdata"
	"github.com/thanhpn/alphavn/internal/pipeline"
	"github.com/thanhpn/alphavn/internal/strategyconfig"
	"github.com/thanhpn/alphavn/pkg/logger"
)

// seedStore fills a memory store with n symbols of drifting daily bars
// starting well before the backtest window so the lookback is covered.
func seedStore(n, bars int) (*marketdata.MemoryStore, []string) {
	store := marketdata.NewMemoryStore()
	symbols := make([]string, n)
	sectors := []string{"banks", "tech", "consumer", "energy"}

	for s := 0; s < n; s++ {
		symbol := fmt.Sprintf("S%02d", s)
		symbols[s] = symbol
		store.SetSector(symbol, sectors[s%len(sectors)])

		drift := 0.004 - float64(s)*0.0008
		price := 20000.0 + float64(s)*1000
		date := time.Date(2023, 10, 2, 0, 0, 0, 0, time.UTC)

		points := make([]contracts.PricePoint, 0, bars)
		for i := 0; i < bars; i++ {
			// Small deterministic wave on top of the drift.
			r := drift
			if i%7 == 3 {
				r -= 0.01
			}
			if i%11 == 5 {
				r += 0.008
			}
			next := price * (1 + r)
			points = append(points, contracts.PricePoint{
				Symbol:      symbol,
				Date:        date,
				Open:        price,
				High:        maxF(price, next) * 1.004,
				Low:         minF(price, next) * 0.996,
				Close:       next,
				Volume:      1_000_000 + int64(s)*50_000,
				TradedValue: next * 1_000_000,
			})
			price = next
			date = date.AddDate(0, 0, 1)
			if date.Weekday() == time.Saturday {
				date = date.AddDate(0, 0, 2)
			}
		}
		store.LoadSeries(symbol, points)
	}
	return store, symbols
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func newTestEngine(store *marketdata.MemoryStore) *Engine {
	return NewEngine(store, strategyconfig.Default(), pipeline.Options{Workers: 2, OptimizerTimeout: 30 * time.Second}, logger.NewNop())
}

func TestRun_ProducesConsistentResult(t *testing.T) {
	store, symbols := seedStore(10, 160)
	engine := newTestEngine(store)

	start := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC)

	result, err := engine.Run(context.Background(), symbols, start, end)
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	assert.Greater(t, result.TradingDays, 0)
	assert.Len(t, result.EquityCurve, result.TradingDays)
	assert.Greater(t, result.RebalanceCount, 0)
	assert.Equal(t, result.InitialCapital, strategyconfig.Default().Backtest.InitialCapital)
	assert.Equal(t, result.EquityCurve[len(result.EquityCurve)-1].Equity, result.FinalCapital)

	// The window is honored.
	assert.False(t, result.StartDate.Before(start))
	assert.False(t, result.EndDate.After(end))
	for _, trade := range result.Trades {
		assert.False(t, trade.Date.Before(start))
		assert.False(t, trade.Date.After(end))
	}
}

func TestRun_DeterministicAcrossRuns(t *testing.T) {
	store, symbols := seedStore(10, 160)
	start := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC)

	first, err := newTestEngine(store).Run(context.Background(), symbols, start, end)
	require.NoError(t, err)
	second, err := newTestEngine(store).Run(context.Background(), symbols, start, end)
	require.NoError(t, err)

	assert.Equal(t, first.Trades, second.Trades, "identical inputs must produce an identical trade log")
	assert.Equal(t, first.EquityCurve, second.EquityCurve)
	assert.Equal(t, first.FinalCapital, second.FinalCapital)
	assert.Equal(t, first.Failures, second.Failures)
}

func TestRun_EquityStartsAtInitialCapitalBeforeAnyFill(t *testing.T) {
	store, symbols := seedStore(10, 160)
	engine := newTestEngine(store)

	result, err := engine.Run(context.Background(),
		symbols,
		time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	// Day one marks after the first rebalance: equity equals the initial
	// capital minus the friction paid, never more.
	first := result.EquityCurve[0]
	assert.LessOrEqual(t, first.Equity, result.InitialCapital)
	assert.Greater(t, first.Equity, result.InitialCapital*0.99)
}

func TestRun_EmptyWindowFails(t *testing.T) {
	store, symbols := seedStore(10, 160)
	engine := newTestEngine(store)

	_, err := engine.Run(context.Background(),
		symbols,
		time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2030, 2, 1, 0, 0, 0, 0, time.UTC))

	require.Error(t, err)
	assert.ErrorIs(t, err, contracts.ErrInsufficientData)
}

func TestRun_ReversedRangeFails(t *testing.T) {
	store, symbols := seedStore(10, 160)
	engine := newTestEngine(store)

	_, err := engine.Run(context.Background(),
		symbols,
		time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))

	assert.Error(t, err)
}

func lastBarDate(t *testing.T, store *marketdata.MemoryStore, symbol string) time.Time {
	t.Helper()
	series, err := store.GetPriceSeries(context.Background(),
		symbol, time.Time{}, time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NotEmpty(t, series)
	return series[len(series)-1].Date
}

func TestApplyRiskSizing_NewEntriesCappedAndTracked(t *testing.T) {
	store, symbols := seedStore(10, 160)
	engine := newTestEngine(store)
	engine.exits = make(map[string]exitLevels)
	date := lastBarDate(t, store, symbols[0])

	signals, failures := engine.pipe.AnalyzeUniverse(context.Background(), symbols, date)
	require.Empty(t, failures)

	weights := make(map[string]float64, len(symbols))
	for _, symbol := range symbols {
		weights[symbol] = 0.15
	}
	state := &contracts.PortfolioState{AsOf: date, Positions: map[string]contracts.Position{}}
	result := &contracts.BacktestResult{}

	targets := engine.applyRiskSizing(context.Background(), result, signals, weights, state, date)

	require.NotEmpty(t, targets)
	base := engine.cfg.Risk.BaseSizeFraction
	for symbol, target := range targets {
		assert.Greater(t, target, 0.0)
		assert.LessOrEqual(t, target, base+1e-9, "entry %s must not exceed the sized fraction", symbol)

		levels, tracked := engine.exits[symbol]
		require.True(t, tracked, "entry %s must carry exit levels", symbol)
		assert.Greater(t, levels.stop, 0.0)
		assert.Greater(t, levels.target, levels.stop)
	}
}

func TestApplyRiskSizing_CorrelationGateBlocksNewEntries(t *testing.T) {
	// Every seeded symbol shares the same wave, so any candidate correlates
	// fully with an existing holding and must be rejected.
	store, symbols := seedStore(10, 160)
	engine := newTestEngine(store)
	engine.exits = make(map[string]exitLevels)
	date := lastBarDate(t, store, symbols[0])

	signals, failures := engine.pipe.AnalyzeUniverse(context.Background(), symbols, date)
	require.Empty(t, failures)

	weights := make(map[string]float64, len(symbols))
	for _, symbol := range symbols {
		weights[symbol] = 0.15
	}
	state := &contracts.PortfolioState{
		AsOf: date,
		Positions: map[string]contracts.Position{
			"S00": {Symbol: "S00", Weight: 0.12},
		},
	}

	targets := engine.applyRiskSizing(context.Background(), &contracts.BacktestResult{}, signals, weights, state, date)

	assert.Equal(t, map[string]float64{"S00": 0.15}, targets,
		"held position keeps its target, correlated candidates are rejected")
	assert.Empty(t, engine.exits, "rejected candidates must not register exit levels")
}

func TestApplyExits_ClosesBreachedPositions(t *testing.T) {
	sim := NewSimulator(0.0015, 0.001, logger.NewNop())
	sim.Reset(1_000_000_000)

	date := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	closes := map[string]float64{"AAA": 50000, "BBB": 50000}
	sim.RebalanceTo(date, map[string]float64{"AAA": 0.10, "BBB": 0.10}, closes, map[string]string{})
	require.Equal(t, []string{"AAA", "BBB"}, sim.Holdings())

	engine := &Engine{
		sim: sim,
		exits: map[string]exitLevels{
			"AAA": {stop: 48000, target: 60000},
			"BBB": {stop: 40000, target: 56000},
		},
	}

	// AAA breaches its stop, BBB stays inside its band.
	engine.applyExits(date.AddDate(0, 0, 1), map[string]float64{"AAA": 47500, "BBB": 49000})
	assert.Equal(t, []string{"BBB"}, sim.Holdings())
	_, tracked := engine.exits["AAA"]
	assert.False(t, tracked, "exit levels cleared on stop-out")

	// BBB reaches its take-profit.
	engine.applyExits(date.AddDate(0, 0, 2), map[string]float64{"BBB": 56500})
	assert.Empty(t, sim.Holdings())
	assert.Empty(t, engine.exits)

	trades := sim.Trades()
	require.Len(t, trades, 4)
	assert.Equal(t, contracts.TradeSell, trades[2].Side)
	assert.Less(t, trades[2].PnL, 0.0, "stop-out realizes the loss")
	assert.Equal(t, contracts.TradeSell, trades[3].Side)
	assert.Greater(t, trades[3].PnL, 0.0, "take-profit realizes the gain")
}

func TestRun_FirstRebalanceBuysAreRiskSized(t *testing.T) {
	store, symbols := seedStore(10, 160)
	engine := newTestEngine(store)

	result, err := engine.Run(context.Background(),
		symbols,
		time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NotEmpty(t, result.Trades)

	// On the first rebalance the whole book is new entries, so every fill
	// respects the risk manager's sized fraction of the starting equity.
	sizeCap := engine.cfg.Risk.BaseSizeFraction * result.InitialCapital
	firstDate := result.Trades[0].Date
	for _, trade := range result.Trades {
		if !trade.Date.Equal(firstDate) {
			break
		}
		require.Equal(t, contracts.TradeBuy, trade.Side)
		assert.LessOrEqual(t, trade.Value, sizeCap)
	}
}

func TestRun_CostsAreAccounted(t *testing.T) {
	store, symbols := seedStore(10, 160)
	engine := newTestEngine(store)

	result, err := engine.Run(context.Background(),
		symbols,
		time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	if result.TotalTrades > 0 {
		assert.Greater(t, result.TotalCommission, 0.0)
		assert.Greater(t, result.TotalSlippage, 0.0)
	}
	assert.Equal(t, result.TotalTrades, len(result.Trades))
}
