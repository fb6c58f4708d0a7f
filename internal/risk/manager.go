package risk

import (
	"fmt"
	"time"

	"github.com/thanhpn/alphavn/internal/contracts"
	"github.com/thanhpn/alphavn/internal/strategyconfig"
	"github.com/thanhpn/alphavn/pkg/logger"
)

// Manager sizes new positions and monitors realized portfolio risk. Sizing
// and limit checks are pure calculations over the caller-supplied state;
// breaches are reported, never silently corrected.
type Manager struct {
	cfg         strategyconfig.Risk
	constraints contracts.Constraints
	logger      *logger.Logger
}

// NewManager creates a risk manager with the given tuning and constraints.
func NewManager(cfg strategyconfig.Risk, constraints contracts.Constraints, log *logger.Logger) *Manager {
	return &Manager{
		cfg:         cfg,
		constraints: constraints,
		logger:      log.WithField("component", "risk"),
	}
}

// SizePosition sizes a proposed long position from signal confidence and
// volatility, then applies position, sector and correlation limits. The
// series supplies the entry price, ATR and the return history for
// correlation checks.
func (m *Manager) SizePosition(sig contracts.EnhancedSignal, state *contracts.PortfolioState, series []contracts.PricePoint) contracts.PositionSizing {
	symbol := sig.Base.Symbol
	sizing := contracts.PositionSizing{Symbol: symbol}

	// A nil state sizes against an empty portfolio.
	if state == nil {
		state = &contracts.PortfolioState{}
	}

	if len(series) == 0 {
		sizing.Rejected = true
		sizing.Reason = "no price series"
		return sizing
	}
	entry := series[len(series)-1].Close
	sizing.EntryPrice = entry

	// Base size: proportional to confidence, damped by the context layer's
	// size factor.
	size := m.cfg.BaseSizeFraction * sig.Confidence * sig.SizeFactor

	// Volatility scaling: positions in choppier names get smaller. ATR as a
	// fraction of price is compared against the reference level.
	atr := ATR(series, m.cfg.ATRPeriod)
	if atr > 0 && entry > 0 {
		atrPct := atr / entry
		if atrPct > m.cfg.VolScaleTarget {
			size *= m.cfg.VolScaleTarget / atrPct
		}
	}

	// Correlation control against current holdings. The worst conflicting
	// symbol is logged; extreme overlap rejects the position outright.
	proposed := DailyReturns(series)
	worstCorr := 0.0
	worstSymbol := ""
	for held, returns := range state.Returns {
		if held == symbol {
			continue
		}
		corr := Correlation(proposed, returns)
		if corr > worstCorr {
			worstCorr = corr
			worstSymbol = held
		}
	}

	if worstCorr >= m.cfg.RejectCorrelation {
		sizing.Rejected = true
		sizing.ConflictSymbol = worstSymbol
		sizing.Reason = fmt.Sprintf("correlation %.2f with %s above reject threshold %.2f",
			worstCorr, worstSymbol, m.cfg.RejectCorrelation)
		m.logger.WithFields(map[string]interface{}{
			"symbol":      symbol,
			"conflict":    worstSymbol,
			"correlation": worstCorr,
		}).Warn("Position rejected by correlation gate")
		return sizing
	}
	if worstCorr > m.constraints.CorrelationLimit {
		size *= m.cfg.CorrelationShrink
		sizing.ConflictSymbol = worstSymbol
		sizing.Reason = fmt.Sprintf("correlation %.2f with %s above limit %.2f, size shrunk",
			worstCorr, worstSymbol, m.constraints.CorrelationLimit)
		m.logger.WithFields(map[string]interface{}{
			"symbol":      symbol,
			"conflict":    worstSymbol,
			"correlation": worstCorr,
		}).Debug("Position size shrunk by correlation gate")
	}

	// Hard caps from the shared constraint set.
	if size > m.constraints.MaxPositionWeight {
		size = m.constraints.MaxPositionWeight
	}
	if sector, ok := sectorOf(sig); ok {
		room := m.constraints.MaxSectorWeight - state.SectorWeight(sector)
		if room < 0 {
			room = 0
		}
		if size > room {
			size = room
		}
	}
	if size < 0 {
		size = 0
	}
	sizing.SizeFraction = size

	// Stop-loss at a configurable ATR multiple under entry; take-profit at
	// the more conservative of the reward:risk target and the rolling
	// resistance level.
	stopDistance := atr * m.cfg.ATRStopMultiple
	if stopDistance <= 0 {
		stopDistance = entry * 0.05
	}
	sizing.StopLossPrice = entry - stopDistance

	rrTarget := entry + stopDistance*m.cfg.RewardRiskRatio
	resistance := rollingHigh(series, 20)
	if resistance > entry && resistance < rrTarget {
		sizing.TakeProfitPrice = resistance
	} else {
		sizing.TakeProfitPrice = rrTarget
	}

	return sizing
}

// CheckPortfolioRisk compares realized portfolio risk against targets and
// limits. Correction is a decision for the caller.
func (m *Manager) CheckPortfolioRisk(state *contracts.PortfolioState) contracts.RiskReport {
	report := contracts.RiskReport{
		AsOf:         state.AsOf,
		TargetVol:    m.constraints.TargetAnnualVol,
		HoldingCount: len(state.Positions),
		Warnings:     []contracts.RiskWarning{},
	}
	if report.AsOf.IsZero() {
		report.AsOf = time.Now()
	}

	returns := state.PortfolioReturns
	if len(returns) > m.cfg.VolWindow {
		returns = returns[len(returns)-m.cfg.VolWindow:]
	}
	report.RealizedVol = AnnualizedVol(returns)

	if report.RealizedVol > m.constraints.TargetAnnualVol {
		report.Warnings = append(report.Warnings, contracts.RiskWarning{
			Code:    "vol_target_breach",
			Message: "realized volatility above annual target",
			Value:   report.RealizedVol,
			Limit:   m.constraints.TargetAnnualVol,
		})
	}

	for symbol, pos := range state.Positions {
		if pos.Weight > report.MaxPosition {
			report.MaxPosition = pos.Weight
		}
		if pos.Weight > m.constraints.MaxPositionWeight {
			report.Warnings = append(report.Warnings, contracts.RiskWarning{
				Code:    "position_limit_breach",
				Message: fmt.Sprintf("%s above per-position limit", symbol),
				Value:   pos.Weight,
				Limit:   m.constraints.MaxPositionWeight,
			})
		}
	}

	sectorTotals := make(map[string]float64)
	for _, pos := range state.Positions {
		if pos.Sector != "" {
			sectorTotals[pos.Sector] += pos.Weight
		}
	}
	for sector, total := range sectorTotals {
		if total > m.constraints.MaxSectorWeight {
			report.Warnings = append(report.Warnings, contracts.RiskWarning{
				Code:    "sector_limit_breach",
				Message: fmt.Sprintf("sector %s above limit", sector),
				Value:   total,
				Limit:   m.constraints.MaxSectorWeight,
			})
		}
	}

	if report.Breached() {
		m.logger.WithFields(map[string]interface{}{
			"warnings":     len(report.Warnings),
			"realized_vol": report.RealizedVol,
		}).Warn("Portfolio risk limits breached")
	}

	return report
}

func sectorOf(sig contracts.EnhancedSignal) (string, bool) {
	if sig.Base.Sector == "" {
		return "", false
	}
	return sig.Base.Sector, true
}

// rollingHigh returns the max high over the last n bars excluding the
// current bar.
func rollingHigh(series []contracts.PricePoint, n int) float64 {
	end := len(series) - 1
	start := end - n
	if start < 0 {
		start = 0
	}
	var high float64
	for i := start; i < end; i++ {
		if series[i].High > high {
			high = series[i].High
		}
	}
	return high
}
