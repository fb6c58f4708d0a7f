package signal

import (
	"context"
	"time"

	"github.com/thanhpn/alphavn/internal/contracts"
	"github.com/thanhpn/alphavn/internal/strategyconfig"
	"github.com/thanhpn/alphavn/pkg/logger"
)

// Engine computes the per-symbol technical score set from a lookback window
// of daily bars. Pure function of its inputs; safe for concurrent use.
type Engine struct {
	cfg    strategyconfig.Signals
	logger *logger.Logger
}

// NewEngine creates a signal engine with the given tuning.
func NewEngine(cfg strategyconfig.Signals, log *logger.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		logger: log.WithField("component", "signal"),
	}
}

// Analyze scores a symbol from its ordered price series as of the last bar.
// A series shorter than the configured lookback produces a neutral result
// with InsufficientData set instead of an error, so the pipeline keeps
// functioning with partial information.
func (e *Engine) Analyze(ctx context.Context, symbol, sector string, series []contracts.PricePoint, asOf time.Time) contracts.TechnicalScoreSet {
	set := contracts.TechnicalScoreSet{
		Symbol:   symbol,
		Sector:   sector,
		AsOf:     asOf,
		BarsUsed: len(series),
	}

	if len(series) < e.cfg.LookbackDays {
		set.VolumeScore = 50
		set.PriceActionScore = 50
		set.MomentumScore = 50
		set.AccumulationScore = 50
		set.CompositeScore = 50
		set.Classification = contracts.ClassHold
		set.InsufficientData = true

		e.logger.WithFields(map[string]interface{}{
			"symbol":   symbol,
			"bars":     len(series),
			"lookback": e.cfg.LookbackDays,
		}).Debug("Series shorter than lookback, returning neutral score set")
		return set
	}

	// Trim to the lookback window; all sub-scores see the same bars.
	window := series[len(series)-e.cfg.LookbackDays:]

	set.VolumeScore = e.scoreVolume(window)
	set.PriceActionScore = e.scorePriceAction(window)
	set.MomentumScore = e.scoreMomentum(window)
	set.AccumulationScore = e.scoreAccumulation(window)

	w := e.cfg.Weights
	composite := set.VolumeScore*w.Volume +
		set.PriceActionScore*w.PriceAction +
		set.MomentumScore*w.Momentum +
		set.AccumulationScore*w.Accumulation

	set.CompositeScore = clamp(composite, 0, 100)
	set.Classification = e.classify(set.CompositeScore)

	e.logger.WithFields(map[string]interface{}{
		"symbol":       symbol,
		"volume":       set.VolumeScore,
		"price_action": set.PriceActionScore,
		"momentum":     set.MomentumScore,
		"accumulation": set.AccumulationScore,
		"composite":    set.CompositeScore,
		"class":        set.Classification,
	}).Debug("Calculated technical score set")

	return set
}

// classify maps the composite score into an action band.
func (e *Engine) classify(score float64) contracts.Classification {
	b := e.cfg.Bands
	switch {
	case score >= b.StrongBuy:
		return contracts.ClassStrongBuy
	case score >= b.Buy:
		return contracts.ClassBuy
	case score >= b.Hold:
		return contracts.ClassHold
	case score >= b.Sell:
		return contracts.ClassSell
	default:
		return contracts.ClassStrongSell
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// sma returns the simple moving average of closes over the last n bars of
// series ending at index end (inclusive).
func sma(series []contracts.PricePoint, end, n int) float64 {
	if n <= 0 || end+1 < n {
		return 0
	}
	var sum float64
	for i := end - n + 1; i <= end; i++ {
		sum += series[i].Close
	}
	return sum / float64(n)
}
