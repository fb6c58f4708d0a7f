package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thanhpn/alphavn/internal/contracts"
	"github.com/thanhpn/alphavn/internal/strategyconfig"
	"github.com/thanhpn/alphavn/pkg/logger"
)

func newTestManager() *Manager {
	cfg := strategyconfig.Default()
	return NewManager(cfg.Risk, cfg.Constraints, logger.NewNop())
}

// seriesFromReturns builds a calm daily price series realizing the given
// return sequence.
func seriesFromReturns(symbol string, start float64, returns []float64) []contracts.PricePoint {
	series := make([]contracts.PricePoint, 0, len(returns)+1)
	date := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	price := start

	appendBar := func(p float64) {
		series = append(series, contracts.PricePoint{
			Symbol: symbol,
			Date:   date,
			Open:   p,
			High:   p * 1.005,
			Low:    p * 0.995,
			Close:  p,
			Volume: 1_000_000,
		})
		date = date.AddDate(0, 0, 1)
	}

	appendBar(price)
	for _, r := range returns {
		price *= 1 + r
		appendBar(price)
	}
	return series
}

// alternating returns a zero-mean ±magnitude return pattern, optionally
// flipping the sign at the given indices.
func alternating(n int, magnitude float64, flips ...int) []float64 {
	out := make([]float64, n)
	for i := range out {
		if i%2 == 0 {
			out[i] = magnitude
		} else {
			out[i] = -magnitude
		}
	}
	for _, f := range flips {
		out[f] = -out[f]
	}
	return out
}

func signalFor(symbol string, confidence, sizeFactor float64) contracts.EnhancedSignal {
	return contracts.EnhancedSignal{
		Base:       contracts.TechnicalScoreSet{Symbol: symbol, Sector: "banks"},
		Confidence: confidence,
		SizeFactor: sizeFactor,
	}
}

func emptyState() *contracts.PortfolioState {
	return &contracts.PortfolioState{
		Positions: map[string]contracts.Position{},
		Returns:   map[string][]float64{},
	}
}

func TestSizePosition_BaseSizeFromConfidence(t *testing.T) {
	m := newTestManager()
	series := seriesFromReturns("VCB", 90000, alternating(40, 0.002))

	sizing := m.SizePosition(signalFor("VCB", 1.0, 1.0), emptyState(), series)

	require.False(t, sizing.Rejected)
	assert.InDelta(t, 0.10, sizing.SizeFraction, 1e-9, "full confidence takes the base fraction")
	assert.Equal(t, series[len(series)-1].Close, sizing.EntryPrice)
}

func TestSizePosition_ConfidenceAndSizeFactorScale(t *testing.T) {
	m := newTestManager()
	series := seriesFromReturns("VCB", 90000, alternating(40, 0.002))

	sizing := m.SizePosition(signalFor("VCB", 0.5, 0.8), emptyState(), series)

	assert.InDelta(t, 0.10*0.5*0.8, sizing.SizeFraction, 1e-9)
}

func TestSizePosition_NilStateSizesAgainstEmptyBook(t *testing.T) {
	m := newTestManager()
	series := seriesFromReturns("VCB", 90000, alternating(40, 0.002))

	sizing := m.SizePosition(signalFor("VCB", 1.0, 1.0), nil, series)

	require.False(t, sizing.Rejected)
	assert.InDelta(t, 0.10, sizing.SizeFraction, 1e-9, "nil state behaves like an empty portfolio")
	assert.Greater(t, sizing.StopLossPrice, 0.0)
}

func TestSizePosition_VolatileNamesGetSmaller(t *testing.T) {
	m := newTestManager()
	calm := seriesFromReturns("VCB", 90000, alternating(40, 0.002))
	wild := seriesFromReturns("DIG", 20000, alternating(40, 0.05))

	calmSize := m.SizePosition(signalFor("VCB", 1, 1), emptyState(), calm)
	wildSize := m.SizePosition(signalFor("DIG", 1, 1), emptyState(), wild)

	assert.Less(t, wildSize.SizeFraction, calmSize.SizeFraction)
}

func TestSizePosition_CorrelationShrink(t *testing.T) {
	m := newTestManager()
	pattern := alternating(30, 0.01)
	series := seriesFromReturns("BID", 45000, pattern)

	state := emptyState()
	// Same pattern with two flipped days: correlated above the 0.70 limit
	// but below the 0.90 reject threshold.
	state.Returns["CTG"] = alternating(30, 0.01, 3, 4)

	sizing := m.SizePosition(signalFor("BID", 1, 1), state, series)

	require.False(t, sizing.Rejected)
	assert.Equal(t, "CTG", sizing.ConflictSymbol)
	assert.InDelta(t, 0.10*0.50, sizing.SizeFraction, 1e-9, "size halves above the correlation limit")
}

func TestSizePosition_CorrelationReject(t *testing.T) {
	m := newTestManager()
	pattern := alternating(30, 0.01)
	series := seriesFromReturns("BID", 45000, pattern)

	state := emptyState()
	state.Returns["VCB"] = pattern // identical: correlation 1.0

	sizing := m.SizePosition(signalFor("BID", 1, 1), state, series)

	assert.True(t, sizing.Rejected)
	assert.Equal(t, "VCB", sizing.ConflictSymbol)
	assert.Zero(t, sizing.SizeFraction)
}

func TestSizePosition_EmptyPortfolioSkipsCorrelationGate(t *testing.T) {
	m := newTestManager()
	series := seriesFromReturns("BID", 45000, alternating(30, 0.01))

	sizing := m.SizePosition(signalFor("BID", 1, 1), emptyState(), series)

	assert.False(t, sizing.Rejected)
	assert.Empty(t, sizing.ConflictSymbol)
}

func TestSizePosition_StopAndTargetBracketEntry(t *testing.T) {
	m := newTestManager()
	series := seriesFromReturns("FPT", 120000, alternating(40, 0.004))

	sizing := m.SizePosition(signalFor("FPT", 1, 1), emptyState(), series)

	assert.Less(t, sizing.StopLossPrice, sizing.EntryPrice)
	assert.Greater(t, sizing.TakeProfitPrice, sizing.EntryPrice)

	// Reward at least matches risk under the default 2:1 target unless
	// resistance tightened it.
	risk := sizing.EntryPrice - sizing.StopLossPrice
	reward := sizing.TakeProfitPrice - sizing.EntryPrice
	assert.Greater(t, reward, 0.0)
	assert.LessOrEqual(t, reward, risk*2+1e-9)
}

func TestSizePosition_NoSeriesRejects(t *testing.T) {
	m := newTestManager()

	sizing := m.SizePosition(signalFor("XXX", 1, 1), emptyState(), nil)

	assert.True(t, sizing.Rejected)
}

func TestCheckPortfolioRisk_ReportsWithoutCorrecting(t *testing.T) {
	m := newTestManager()

	state := &contracts.PortfolioState{
		AsOf:   time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC),
		Equity: 1_000_000_000,
		Positions: map[string]contracts.Position{
			"VCB": {Symbol: "VCB", Sector: "banks", Weight: 0.22},
			"BID": {Symbol: "BID", Sector: "banks", Weight: 0.20},
		},
		PortfolioReturns: alternating(80, 0.03), // ~47% annualized vol
	}

	report := m.CheckPortfolioRisk(state)

	assert.Greater(t, report.RealizedVol, m.constraints.TargetAnnualVol)
	assert.True(t, report.Breached())

	codes := make(map[string]int)
	for _, w := range report.Warnings {
		codes[w.Code]++
	}
	assert.Equal(t, 1, codes["vol_target_breach"])
	assert.Equal(t, 2, codes["position_limit_breach"], "both oversized positions flagged")
	assert.Equal(t, 1, codes["sector_limit_breach"])

	// The report never mutates the state it was given.
	assert.Equal(t, 0.22, state.Positions["VCB"].Weight)
}

func TestCheckPortfolioRisk_CalmPortfolioIsClean(t *testing.T) {
	m := newTestManager()

	state := &contracts.PortfolioState{
		Positions: map[string]contracts.Position{
			"VNM": {Symbol: "VNM", Sector: "consumer", Weight: 0.10},
		},
		PortfolioReturns: alternating(80, 0.004),
	}

	report := m.CheckPortfolioRisk(state)

	assert.False(t, report.Breached())
	assert.Empty(t, report.Warnings)
}
