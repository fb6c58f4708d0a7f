package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/thanhpn/alphavn/internal/contracts"
	"github.com/thanhpn/alphavn/internal/marketctx"
	"github.com/thanhpn/alphavn/internal/marketdata"
	"github.com/thanhpn/alphavn/internal/optimizer"
	"github.com/thanhpn/alphavn/internal/risk"
	"github.com/thanhpn/alphavn/internal/signal"
	"github.com/thanhpn/alphavn/internal/strategyconfig"
	"github.com/thanhpn/alphavn/pkg/logger"
)

// Pipeline wires the store and the four analytics components for a single
// as-of date: signal -> context adjustment -> optimization -> risk sizing.
// Per-symbol work fans out across a bounded worker pool; the optimizer runs
// as one blocking computation over a consistent snapshot.
type Pipeline struct {
	store     marketdata.Store
	signals   *signal.Engine
	adjuster  *marketctx.Engine
	optimizer *optimizer.Optimizer
	riskMgr   *risk.Manager

	cfg     *strategyconfig.Config
	workers int
	timeout time.Duration
	logger  *logger.Logger
}

// Options tunes pipeline execution.
type Options struct {
	Workers          int
	OptimizerTimeout time.Duration
}

// New creates a pipeline over the given store and strategy config.
func New(store marketdata.Store, cfg *strategyconfig.Config, opts Options, log *logger.Logger) *Pipeline {
	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}
	timeout := opts.OptimizerTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Pipeline{
		store:     store,
		signals:   signal.NewEngine(cfg.Signals, log),
		adjuster:  marketctx.NewEngine(cfg.Context, cfg.Signals.Bands, log),
		optimizer: optimizer.New(cfg.Optimizer, log),
		riskMgr:   risk.NewManager(cfg.Risk, cfg.Constraints, log),
		cfg:       cfg,
		workers:   workers,
		timeout:   timeout,
		logger:    log.WithField("component", "pipeline"),
	}
}

// GenerateRunID returns a fresh run identifier.
func GenerateRunID() string {
	return uuid.NewString()
}

// RiskManager exposes the risk manager for callers that size positions or
// check portfolio risk directly.
func (p *Pipeline) RiskManager() *risk.Manager {
	return p.riskMgr
}

// lookbackStart returns the calendar start date that safely covers the
// configured trading-day lookback.
func (p *Pipeline) lookbackStart(asOf time.Time) time.Time {
	return asOf.AddDate(0, 0, -p.cfg.Signals.LookbackDays*2)
}

// AnalyzeSymbol produces the context-adjusted signal for one symbol as of a
// date. Only data dated at or before asOf is read. A missing context feed
// degrades to neutral; a short series degrades to a flagged neutral score.
func (p *Pipeline) AnalyzeSymbol(ctx context.Context, symbol string, asOf time.Time) (contracts.EnhancedSignal, error) {
	series, err := p.store.GetPriceSeries(ctx, symbol, p.lookbackStart(asOf), asOf)
	if err != nil {
		return contracts.EnhancedSignal{}, contracts.NewComponentError("signal", symbol, asOf, err)
	}

	sector, err := p.store.GetSector(ctx, symbol)
	if err != nil {
		// Sector is an enrichment, not a dependency.
		sector = ""
	}

	mctx, err := p.store.GetContext(ctx, asOf)
	if err != nil {
		if !errors.Is(err, contracts.ErrContextUnavailable) {
			return contracts.EnhancedSignal{}, contracts.NewComponentError("context", symbol, asOf, err)
		}
		mctx = contracts.NeutralContext(asOf)
	}

	scoreSet := p.signals.Analyze(ctx, symbol, sector, series, asOf)
	return p.adjuster.Adjust(scoreSet, mctx, series), nil
}

// symbolResult carries one worker's output back to the collector.
type symbolResult struct {
	symbol string
	signal contracts.EnhancedSignal
	err    error
}

// AnalyzeUniverse runs AnalyzeSymbol for every symbol across the worker
// pool. Workers share no mutable state; output ordering is deterministic
// (sorted by symbol). Per-symbol failures are returned alongside successes
// so callers can attribute them without losing the rest of the universe.
func (p *Pipeline) AnalyzeUniverse(ctx context.Context, symbols []string, asOf time.Time) ([]contracts.EnhancedSignal, map[string]error) {
	symbolCh := make(chan string, len(symbols))
	resultCh := make(chan symbolResult, len(symbols))

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for symbol := range symbolCh {
				sig, err := p.AnalyzeSymbol(ctx, symbol, asOf)
				resultCh <- symbolResult{symbol: symbol, signal: sig, err: err}
			}
		}()
	}

	for _, symbol := range symbols {
		symbolCh <- symbol
	}
	close(symbolCh)

	wg.Wait()
	close(resultCh)

	failures := make(map[string]error)
	signals := make([]contracts.EnhancedSignal, 0, len(symbols))
	for res := range resultCh {
		if res.err != nil {
			failures[res.symbol] = res.err
			continue
		}
		signals = append(signals, res.signal)
	}

	sort.Slice(signals, func(i, j int) bool {
		return signals[i].Base.Symbol < signals[j].Base.Symbol
	})

	p.logger.WithFields(map[string]interface{}{
		"date":    asOf.Format("2006-01-02"),
		"total":   len(symbols),
		"success": len(signals),
		"failed":  len(failures),
	}).Debug("Universe analysis completed")

	return signals, failures
}

// BuildEstimates assembles historical return and covariance estimates for
// the universe as of a date, using only bars dated at or before asOf.
func (p *Pipeline) BuildEstimates(ctx context.Context, symbols []string, asOf time.Time, currentWeights map[string]float64) (optimizer.Estimates, error) {
	sorted := make([]string, len(symbols))
	copy(sorted, symbols)
	sort.Strings(sorted)

	est := optimizer.Estimates{
		Symbols:        make([]string, 0, len(sorted)),
		Sectors:        make(map[string]string, len(sorted)),
		CurrentWeights: currentWeights,
	}
	if est.CurrentWeights == nil {
		est.CurrentWeights = map[string]float64{}
	}

	returnSeries := make([][]float64, 0, len(sorted))
	for _, symbol := range sorted {
		series, err := p.store.GetPriceSeries(ctx, symbol, p.lookbackStart(asOf), asOf)
		if err != nil {
			return optimizer.Estimates{}, contracts.NewComponentError("optimizer", symbol, asOf, err)
		}
		returns := risk.DailyReturns(series)
		if len(returns) < 10 {
			// Not enough history for a usable estimate; skip the symbol.
			continue
		}

		sector, _ := p.store.GetSector(ctx, symbol)

		est.Symbols = append(est.Symbols, symbol)
		est.Returns = append(est.Returns, risk.Mean(returns)*252)
		est.Sectors[symbol] = sector
		returnSeries = append(returnSeries, returns)
	}

	est.Covariance = covarianceMatrix(returnSeries)
	return est, nil
}

// covarianceMatrix computes the annualized covariance over the overlapping
// tail of the return series.
func covarianceMatrix(series [][]float64) [][]float64 {
	n := len(series)
	cov := make([][]float64, n)
	if n == 0 {
		return cov
	}

	minLen := len(series[0])
	for _, s := range series {
		if len(s) < minLen {
			minLen = len(s)
		}
	}

	trimmed := make([][]float64, n)
	means := make([]float64, n)
	for i, s := range series {
		trimmed[i] = s[len(s)-minLen:]
		means[i] = risk.Mean(trimmed[i])
		cov[i] = make([]float64, n)
	}

	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			var sum float64
			for k := 0; k < minLen; k++ {
				sum += (trimmed[i][k] - means[i]) * (trimmed[j][k] - means[j])
			}
			value := sum / float64(minLen-1) * 252
			cov[i][j] = value
			cov[j][i] = value
		}
	}
	return cov
}

// Rebalance runs the optimizer over the analyzed universe with the
// configured time budget. Solver failure and timeout degrade to the
// score-proportional fallback; an infeasible constraint set propagates so
// the caller can decide to relax constraints instead.
func (p *Pipeline) Rebalance(ctx context.Context, universe []contracts.EnhancedSignal, est optimizer.Estimates, asOf time.Time) (*contracts.PortfolioWeights, error) {
	optCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	weights, err := p.optimizer.Optimize(optCtx, universe, est, p.cfg.Constraints)
	if err != nil {
		if errors.Is(err, contracts.ErrInfeasibleConstraints) {
			return nil, contracts.NewComponentError("optimizer", "", asOf, err)
		}
		if errors.Is(err, contracts.ErrNotConverged) || errors.Is(err, contracts.ErrTimeout) {
			p.logger.WithError(err).Warn("Optimizer failed, degrading to score-proportional weights")
			return p.optimizer.ScoreProportional(universe, est, p.cfg.Constraints), nil
		}
		return nil, contracts.NewComponentError("optimizer", "", asOf, err)
	}

	return weights, nil
}

// SizePosition analyzes one symbol and sizes an entry against the given
// portfolio state.
func (p *Pipeline) SizePosition(ctx context.Context, symbol string, asOf time.Time, state *contracts.PortfolioState) (contracts.PositionSizing, error) {
	sig, err := p.AnalyzeSymbol(ctx, symbol, asOf)
	if err != nil {
		return contracts.PositionSizing{}, err
	}

	series, err := p.store.GetPriceSeries(ctx, symbol, p.lookbackStart(asOf), asOf)
	if err != nil {
		return contracts.PositionSizing{}, contracts.NewComponentError("risk", symbol, asOf, err)
	}

	return p.riskMgr.SizePosition(sig, state, series), nil
}

// Run executes one full decision cycle for the universe: analyze, estimate,
// rebalance, and size the resulting targets through the risk manager.
func (p *Pipeline) Run(ctx context.Context, symbols []string, asOf time.Time, state *contracts.PortfolioState) (*RunResult, error) {
	runID := GenerateRunID()
	start := time.Now()

	signals, failures := p.AnalyzeUniverse(ctx, symbols, asOf)
	if len(signals) == 0 {
		return nil, contracts.NewComponentError("pipeline", "", asOf,
			fmt.Errorf("%w: no symbol produced a signal", contracts.ErrInsufficientData))
	}

	currentWeights := map[string]float64{}
	if state != nil {
		for symbol, pos := range state.Positions {
			currentWeights[symbol] = pos.Weight
		}
	}

	est, err := p.BuildEstimates(ctx, symbolsOf(signals), asOf, currentWeights)
	if err != nil {
		return nil, err
	}

	weights, err := p.Rebalance(ctx, signals, est, asOf)
	if err != nil {
		return nil, err
	}

	result := &RunResult{
		RunID:    runID,
		Date:     asOf,
		Signals:  signals,
		Failures: failures,
		Weights:  weights,
		Duration: time.Since(start),
	}

	if state != nil {
		result.RiskReport = p.riskMgr.CheckPortfolioRisk(state)
	}

	p.logger.WithFields(map[string]interface{}{
		"run_id":   runID,
		"date":     asOf.Format("2006-01-02"),
		"signals":  len(signals),
		"holdings": weights.HoldingCount(),
		"degraded": weights.Degraded,
		"duration": result.Duration.Seconds(),
	}).Info("Pipeline run completed")

	return result, nil
}

// RunResult is the outcome of one full decision cycle.
type RunResult struct {
	RunID      string
	Date       time.Time
	Signals    []contracts.EnhancedSignal
	Failures   map[string]error
	Weights    *contracts.PortfolioWeights
	RiskReport contracts.RiskReport
	Duration   time.Duration
}

func symbolsOf(signals []contracts.EnhancedSignal) []string {
	out := make([]string, len(signals))
	for i, sig := range signals {
		out[i] = sig.Base.Symbol
	}
	return out
}
