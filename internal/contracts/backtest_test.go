package contracts

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBacktestResult_JSONRoundTrip(t *testing.T) {
	in := BacktestResult{
		RunID:          "7f3c9a2e",
		StartDate:      time.Date(2023, 1, 3, 0, 0, 0, 0, time.UTC),
		EndDate:        time.Date(2023, 12, 29, 0, 0, 0, 0, time.UTC),
		InitialCapital: 1_000_000_000,
		FinalCapital:   1_120_000_000,
		TradingDays:    249,
		TotalReturn:    0.12,
		SharpeRatio:    1.1,
		MaxDrawdown:    0.08,
		TotalTrades:    2,
		Trades: []Trade{
			{Symbol: "VNM", Date: time.Date(2023, 1, 9, 0, 0, 0, 0, time.UTC), Side: TradeBuy, Shares: 1500, Price: 65065, Value: 97597500, Commission: 146396.25},
			{Symbol: "VNM", Date: time.Date(2023, 6, 5, 0, 0, 0, 0, time.UTC), Side: TradeSell, Shares: 1500, Price: 71928, Value: 107892000, PnL: 10294500, ReturnPct: 0.1055},
		},
		EquityCurve: []EquityPoint{
			{Date: time.Date(2023, 1, 3, 0, 0, 0, 0, time.UTC), Equity: 1_000_000_000},
			{Date: time.Date(2023, 12, 29, 0, 0, 0, 0, time.UTC), Equity: 1_120_000_000, Return: 0.12},
		},
		Failures: []BarFailure{
			{Symbol: "HPG", Date: time.Date(2023, 3, 6, 0, 0, 0, 0, time.UTC), Component: "signal", Error: "insufficient price history"},
		},
	}

	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out BacktestResult
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}
