package backtest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/thanhpn/alphavn/internal/contracts"
	"github.com/thanhpn/alphavn/internal/marketdata"
	"github.com/thanhpn/alphavn/internal/pipeline"
	"github.com/thanhpn/alphavn/internal/risk"
	"github.com/thanhpn/alphavn/internal/strategyconfig"
	"github.com/thanhpn/alphavn/pkg/logger"
)

// ProgressEvent is one progress sample emitted during a run.
type ProgressEvent struct {
	RunID   string    `json:"run_id"`
	Date    time.Time `json:"date"`
	Day     int       `json:"day"`
	Total   int       `json:"total"`
	Equity  float64   `json:"equity"`
	Trades  int       `json:"trades"`
	Percent float64   `json:"percent"`
}

// ProgressSink receives progress events. Implementations must be fast; the
// engine calls them synchronously on the replay path.
type ProgressSink interface {
	OnProgress(ProgressEvent)
}

// ProgressFunc adapts a function to the ProgressSink interface.
type ProgressFunc func(ProgressEvent)

func (f ProgressFunc) OnProgress(e ProgressEvent) { f(e) }

// Engine replays the strategy pipeline over history, bar by bar. Each bar
// sees only data dated at or before it. Two runs over the same inputs and
// config produce identical trade logs and equity curves.
type Engine struct {
	store    marketdata.Store
	pipe     *pipeline.Pipeline
	cfg      *strategyconfig.Config
	sim      *Simulator
	riskMgr  *risk.Manager
	logger   *logger.Logger
	progress ProgressSink

	// exits tracks the stop-loss and take-profit level of each open
	// position, set when the entry is sized.
	exits map[string]exitLevels
}

// exitLevels are the per-position exit prices set at entry.
type exitLevels struct {
	stop   float64
	target float64
}

// NewEngine creates a backtest engine over the given store and config.
func NewEngine(store marketdata.Store, cfg *strategyconfig.Config, opts pipeline.Options, log *logger.Logger) *Engine {
	pipe := pipeline.New(store, cfg, opts, log)
	return &Engine{
		store:   store,
		pipe:    pipe,
		cfg:     cfg,
		sim:     NewSimulator(cfg.Backtest.CommissionRate, cfg.Backtest.SlippageRate, log),
		riskMgr: pipe.RiskManager(),
		logger:  log.WithField("component", "backtest"),
	}
}

// SetProgressSink registers a sink for per-bar progress events.
func (e *Engine) SetProgressSink(sink ProgressSink) { e.progress = sink }

// Run replays [start, end] for the universe and returns the completed
// result. Per-symbol component failures are isolated into the failure log;
// only portfolio-level errors abort the run.
func (e *Engine) Run(ctx context.Context, symbols []string, start, end time.Time) (*contracts.BacktestResult, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("backtest: end %s before start %s", end.Format("2006-01-02"), start.Format("2006-01-02"))
	}

	universe := make([]string, len(symbols))
	copy(universe, symbols)
	sort.Strings(universe)

	calendar, closesByDate, err := e.loadCalendar(ctx, universe, start, end)
	if err != nil {
		return nil, err
	}
	if len(calendar) == 0 {
		return nil, fmt.Errorf("backtest: %w: no bars in [%s, %s]",
			contracts.ErrInsufficientData, start.Format("2006-01-02"), end.Format("2006-01-02"))
	}

	sectors := make(map[string]string, len(universe))
	for _, symbol := range universe {
		sector, _ := e.store.GetSector(ctx, symbol)
		sectors[symbol] = sector
	}

	runID := pipeline.GenerateRunID()
	result := &contracts.BacktestResult{
		RunID:          runID,
		StartDate:      calendar[0],
		EndDate:        calendar[len(calendar)-1],
		InitialCapital: e.cfg.Backtest.InitialCapital,
	}

	e.sim.Reset(e.cfg.Backtest.InitialCapital)
	e.exits = make(map[string]exitLevels)

	log := e.logger.WithFields(map[string]interface{}{
		"run_id":   runID,
		"symbols":  len(universe),
		"start":    result.StartDate.Format("2006-01-02"),
		"end":      result.EndDate.Format("2006-01-02"),
		"capital":  e.cfg.Backtest.InitialCapital,
		"interval": e.cfg.Backtest.RebalanceDays,
	})
	log.Info("Backtest started")

	for day, date := range calendar {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("backtest: %w: cancelled at %s", contracts.ErrTimeout, date.Format("2006-01-02"))
		}

		closes := closesByDate[dateKey(date)]

		e.applyExits(date, closes)

		if day%e.cfg.Backtest.RebalanceDays == 0 {
			e.rebalance(ctx, result, universe, date, closes, sectors)
		}

		equity := e.sim.Equity(closes)
		result.EquityCurve = append(result.EquityCurve, contracts.EquityPoint{
			Date:   date,
			Equity: equity,
			Return: equity/result.InitialCapital - 1,
		})
		result.TradingDays++

		if e.progress != nil {
			e.progress.OnProgress(ProgressEvent{
				RunID:   runID,
				Date:    date,
				Day:     day + 1,
				Total:   len(calendar),
				Equity:  equity,
				Trades:  len(e.sim.Trades()),
				Percent: float64(day+1) / float64(len(calendar)) * 100,
			})
		}
	}

	result.Trades = e.sim.Trades()
	result.TotalTrades = len(result.Trades)
	result.WinningTrades, result.LosingTrades, result.TotalCommission, result.TotalSlippage = e.sim.Stats()
	computeMetrics(result, e.cfg.Optimizer.RiskFreeRate)

	log.WithFields(map[string]interface{}{
		"final_capital": result.FinalCapital,
		"total_return":  result.TotalReturn,
		"sharpe":        result.SharpeRatio,
		"max_drawdown":  result.MaxDrawdown,
		"trades":        result.TotalTrades,
		"failures":      len(result.Failures),
	}).Info("Backtest completed")

	return result, nil
}

// rebalance runs one decision cycle and trades toward its targets.
// Pipeline failures for individual symbols go to the failure log; a
// portfolio-level failure skips the rebalance and holds current positions.
func (e *Engine) rebalance(ctx context.Context, result *contracts.BacktestResult, universe []string, date time.Time, closes map[string]float64, sectors map[string]string) {
	signals, failures := e.pipe.AnalyzeUniverse(ctx, universe, date)
	for _, symbol := range sortedKeys(failures) {
		result.Failures = append(result.Failures, contracts.BarFailure{
			Symbol:    symbol,
			Date:      date,
			Component: "signal",
			Error:     failures[symbol].Error(),
		})
	}
	if len(signals) == 0 {
		return
	}

	state := e.sim.State(date, closes)
	currentWeights := make(map[string]float64, len(state.Positions))
	for symbol, pos := range state.Positions {
		currentWeights[symbol] = pos.Weight
	}

	actionable := make([]contracts.EnhancedSignal, 0, len(signals))
	for _, sig := range signals {
		if sig.Actionable() || currentWeights[sig.Base.Symbol] > 0 {
			actionable = append(actionable, sig)
		}
	}
	if len(actionable) == 0 {
		return
	}

	est, err := e.pipe.BuildEstimates(ctx, symbolsOf(actionable), date, currentWeights)
	if err != nil {
		result.Failures = append(result.Failures, contracts.BarFailure{
			Date:      date,
			Component: "optimizer",
			Error:     err.Error(),
		})
		return
	}

	weights, err := e.pipe.Rebalance(ctx, actionable, est, date)
	if err != nil {
		result.Failures = append(result.Failures, contracts.BarFailure{
			Date:      date,
			Component: "optimizer",
			Error:     err.Error(),
		})
		return
	}

	targets := e.applyRiskSizing(ctx, result, actionable, weights.Weights, state, date)
	e.sim.RebalanceTo(date, targets, closes, sectors)
	result.RebalanceCount++

	// Drop exit levels for positions the rebalance closed.
	held := make(map[string]bool)
	for _, symbol := range e.sim.Holdings() {
		held[symbol] = true
	}
	for symbol := range e.exits {
		if !held[symbol] {
			delete(e.exits, symbol)
		}
	}
}

// applyRiskSizing gates optimizer targets through the risk manager. New
// entries are sized against the current book: the correlation gate can
// reject them and the sized fraction caps the optimizer's target. Positions
// already held keep their target and the exit levels set at entry.
func (e *Engine) applyRiskSizing(ctx context.Context, result *contracts.BacktestResult, signals []contracts.EnhancedSignal, weights map[string]float64, state *contracts.PortfolioState, date time.Time) map[string]float64 {
	from := date.AddDate(0, 0, -e.cfg.Signals.LookbackDays*2)

	series := make(map[string][]contracts.PricePoint, len(signals))
	for _, sig := range signals {
		symbol := sig.Base.Symbol
		bars, err := e.store.GetPriceSeries(ctx, symbol, from, date)
		if err != nil {
			result.Failures = append(result.Failures, contracts.BarFailure{
				Symbol:    symbol,
				Date:      date,
				Component: "risk",
				Error:     err.Error(),
			})
			continue
		}
		series[symbol] = bars
	}

	state.Returns = make(map[string][]float64, len(state.Positions))
	for symbol := range state.Positions {
		if bars, ok := series[symbol]; ok {
			state.Returns[symbol] = risk.DailyReturns(bars)
		}
	}

	targets := make(map[string]float64, len(weights))
	for _, sig := range signals {
		symbol := sig.Base.Symbol
		target := weights[symbol]
		if target <= 0 {
			continue
		}
		if _, alreadyHeld := state.Positions[symbol]; alreadyHeld {
			targets[symbol] = target
			continue
		}

		sizing := e.riskMgr.SizePosition(sig, state, series[symbol])
		if sizing.Rejected || sizing.SizeFraction <= 0 {
			continue
		}
		if target > sizing.SizeFraction {
			target = sizing.SizeFraction
		}
		targets[symbol] = target
		e.exits[symbol] = exitLevels{stop: sizing.StopLossPrice, target: sizing.TakeProfitPrice}
	}
	return targets
}

// applyExits closes positions whose close crossed their stop-loss or
// take-profit level.
func (e *Engine) applyExits(date time.Time, closes map[string]float64) {
	for _, symbol := range e.sim.Holdings() {
		levels, tracked := e.exits[symbol]
		if !tracked {
			continue
		}
		price, ok := closes[symbol]
		if !ok || price <= 0 {
			continue
		}
		if price <= levels.stop || (levels.target > 0 && price >= levels.target) {
			e.sim.ExitPosition(date, symbol, price)
			delete(e.exits, symbol)
		}
	}
}

// loadCalendar builds the sorted union of bar dates across the universe and
// a per-date close map. Symbols without a bar on a date simply have no
// entry for it.
func (e *Engine) loadCalendar(ctx context.Context, universe []string, start, end time.Time) ([]time.Time, map[string]map[string]float64, error) {
	dates := make(map[string]time.Time)
	closes := make(map[string]map[string]float64)

	for _, symbol := range universe {
		series, err := e.store.GetPriceSeries(ctx, symbol, start, end)
		if err != nil {
			return nil, nil, fmt.Errorf("load %s: %w", symbol, err)
		}
		for _, bar := range series {
			key := dateKey(bar.Date)
			dates[key] = bar.Date
			if closes[key] == nil {
				closes[key] = make(map[string]float64)
			}
			closes[key][symbol] = bar.Close
		}
	}

	calendar := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		calendar = append(calendar, d)
	}
	sort.Slice(calendar, func(i, j int) bool { return calendar[i].Before(calendar[j]) })

	return calendar, closes, nil
}

func dateKey(t time.Time) string { return t.Format("2006-01-02") }

func symbolsOf(signals []contracts.EnhancedSignal) []string {
	out := make([]string, len(signals))
	for i, sig := range signals {
		out[i] = sig.Base.Symbol
	}
	return out
}

func sortedKeys(m map[string]error) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
