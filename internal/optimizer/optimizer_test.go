package optimizer

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thanhpn/alphavn/internal/contracts"
	"github.com/thanhpn/alphavn/internal/strategyconfig"
	"github.com/thanhpn/alphavn/pkg/logger"
)

func newTestOptimizer() *Optimizer {
	return New(strategyconfig.Default().Optimizer, logger.NewNop())
}

// testUniverse builds n symbols with descending scores and mildly
// correlated risk.
func testUniverse(n int) ([]contracts.EnhancedSignal, Estimates) {
	universe := make([]contracts.EnhancedSignal, n)
	est := Estimates{
		Symbols:        make([]string, n),
		Returns:        make([]float64, n),
		Covariance:     make([][]float64, n),
		Sectors:        make(map[string]string, n),
		CurrentWeights: map[string]float64{},
	}
	sectors := []string{"banks", "tech", "consumer", "energy"}

	for i := 0; i < n; i++ {
		sym := fmt.Sprintf("S%02d", i)
		score := 80.0 - float64(i)*3
		universe[i] = contracts.EnhancedSignal{
			Base:          contracts.TechnicalScoreSet{Symbol: sym},
			EnhancedScore: score,
			Confidence:    1.0,
			SizeFactor:    1.0,
		}
		est.Symbols[i] = sym
		est.Returns[i] = 0.18 - float64(i)*0.01
		est.Sectors[sym] = sectors[i%len(sectors)]

		est.Covariance[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				est.Covariance[i][j] = 0.06
			} else {
				est.Covariance[i][j] = 0.012
			}
		}
	}
	return universe, est
}

func TestOptimize_SatisfiesConstraints(t *testing.T) {
	o := newTestOptimizer()
	universe, est := testUniverse(10)
	constraints := contracts.DefaultConstraints()

	result, err := o.Optimize(context.Background(), universe, est, constraints)
	require.NoError(t, err)

	assert.True(t, result.Validate(constraints, 1e-6), "weights + cash must sum to 1 within caps")
	assert.True(t, result.ConstraintsSatisfied)
	assert.False(t, result.Degraded)
	assert.GreaterOrEqual(t, result.HoldingCount(), constraints.MinDiversification)
	assert.GreaterOrEqual(t, result.CashReserve, constraints.MinCashReserve-1e-6)
	for sym, w := range result.Weights {
		assert.LessOrEqual(t, w, constraints.MaxPositionWeight+1e-6, sym)
		assert.Greater(t, w, 0.0, sym)
	}
}

func TestOptimize_SectorCapHolds(t *testing.T) {
	o := newTestOptimizer()
	universe, est := testUniverse(12)
	constraints := contracts.DefaultConstraints()

	result, err := o.Optimize(context.Background(), universe, est, constraints)
	require.NoError(t, err)

	sectorTotals := make(map[string]float64)
	for sym, w := range result.Weights {
		sectorTotals[est.Sectors[sym]] += w
	}
	for sector, total := range sectorTotals {
		assert.LessOrEqual(t, total, constraints.MaxSectorWeight+1e-6, sector)
	}
}

func TestOptimize_TooFewSymbolsIsInfeasible(t *testing.T) {
	o := newTestOptimizer()
	universe, est := testUniverse(1)

	_, err := o.Optimize(context.Background(), universe, est, contracts.DefaultConstraints())

	require.Error(t, err)
	assert.ErrorIs(t, err, contracts.ErrInfeasibleConstraints)
}

func TestOptimize_CapTimesCountBelowInvestedIsInfeasible(t *testing.T) {
	o := newTestOptimizer()
	universe, est := testUniverse(8)
	constraints := contracts.DefaultConstraints()
	constraints.MaxPositionWeight = 0.10 // 8 * 0.10 < 0.95 invested

	_, err := o.Optimize(context.Background(), universe, est, constraints)

	assert.ErrorIs(t, err, contracts.ErrInfeasibleConstraints)
}

func TestOptimize_CancelledContextIsTimeout(t *testing.T) {
	o := newTestOptimizer()
	universe, est := testUniverse(10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.Optimize(ctx, universe, est, contracts.DefaultConstraints())

	assert.ErrorIs(t, err, contracts.ErrTimeout)
}

func TestOptimize_DeadlineIsTimeout(t *testing.T) {
	o := newTestOptimizer()
	universe, est := testUniverse(10)

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, err := o.Optimize(ctx, universe, est, contracts.DefaultConstraints())

	assert.ErrorIs(t, err, contracts.ErrTimeout)
}

func TestOptimize_DeterministicForSameInput(t *testing.T) {
	o := newTestOptimizer()
	universe, est := testUniverse(10)
	constraints := contracts.DefaultConstraints()

	first, err := o.Optimize(context.Background(), universe, est, constraints)
	require.NoError(t, err)
	second, err := o.Optimize(context.Background(), universe, est, constraints)
	require.NoError(t, err)

	assert.Equal(t, first.Weights, second.Weights)
	assert.Equal(t, first.SharpeRatio, second.SharpeRatio)
}

func TestScoreProportional_DegradedButFeasible(t *testing.T) {
	o := newTestOptimizer()
	universe, est := testUniverse(10)
	constraints := contracts.DefaultConstraints()

	result := o.ScoreProportional(universe, est, constraints)

	assert.True(t, result.Degraded)
	assert.True(t, result.Validate(constraints, 1e-6))
	assert.GreaterOrEqual(t, result.HoldingCount(), constraints.MinDiversification)

	// Stronger signals get at least as much weight, caps permitting.
	assert.GreaterOrEqual(t, result.Weights["S00"]+1e-9, result.Weights["S07"])
}

func TestScoreProportional_AllNeutralFallsBackToEqualWeight(t *testing.T) {
	o := newTestOptimizer()
	universe, est := testUniverse(10)
	for i := range universe {
		universe[i].EnhancedScore = 45 // nothing above neutral
	}
	constraints := contracts.DefaultConstraints()

	result := o.ScoreProportional(universe, est, constraints)

	assert.True(t, result.Degraded)
	require.Equal(t, 10, result.HoldingCount())
	for _, w := range result.Weights {
		assert.InDelta(t, (1-constraints.MinCashReserve)/10, w, 1e-6)
	}
}
