package strategyconfig

import (
	"fmt"
	"math"
)

// ValidationError reports a config field that fails a hard constraint.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks all required constraints. Failure aborts startup.
func Validate(cfg *Config) error {
	if cfg.Meta.StrategyID == "" {
		return ValidationError{"meta.strategy_id", "required"}
	}

	// === Signals ===
	if cfg.Signals.LookbackDays < 20 {
		return ValidationError{"signals.lookback_days", "must be >= 20"}
	}
	if math.Abs(cfg.Signals.Weights.Sum()-1.0) > 1e-6 {
		return ValidationError{"signals.weights", "must sum to 1.0"}
	}
	b := cfg.Signals.Bands
	if !(b.StrongBuy > b.Buy && b.Buy > b.Hold && b.Hold > b.Sell && b.Sell > 0) {
		return ValidationError{"signals.bands", "cut-points must be strictly descending and positive"}
	}
	if b.StrongBuy > 100 {
		return ValidationError{"signals.bands.strong_buy", "must be <= 100"}
	}
	if cfg.Signals.Volume.ClimaxMultiple <= 1.0 {
		return ValidationError{"signals.volume.climax_multiple", "must be > 1.0"}
	}
	if cfg.Signals.Volume.QuietMultiple <= 0 || cfg.Signals.Volume.QuietMultiple >= 1.0 {
		return ValidationError{"signals.volume.quiet_multiple", "must be in (0, 1)"}
	}
	if cfg.Signals.Price.MAShort >= cfg.Signals.Price.MALong {
		return ValidationError{"signals.price_action", "ma_short must be < ma_long"}
	}
	if cfg.Signals.Momentum.RSIPeriod < 2 {
		return ValidationError{"signals.momentum.rsi_period", "must be >= 2"}
	}

	// === Context ===
	if cfg.Context.NewsImpactThreshold < 0 || cfg.Context.NewsImpactThreshold > 10 {
		return ValidationError{"context.news_impact_threshold", "must be in [0, 10]"}
	}
	for field, f := range map[string]float64{
		"context.pre_holiday_factor":         cfg.Context.PreHolidayFactor,
		"context.post_holiday_factor":        cfg.Context.PostHolidayFactor,
		"context.news_confidence_penalty":    cfg.Context.NewsConfidencePenalty,
		"context.holiday_confidence_penalty": cfg.Context.HolidayConfidencePenalty,
		"context.anomaly_confidence_penalty": cfg.Context.AnomalyConfidencePenalty,
		"context.neutral_confidence_penalty": cfg.Context.NeutralConfidencePenalty,
	} {
		if f <= 0 || f > 1.0 {
			return ValidationError{field, "must be in (0, 1]"}
		}
	}

	// === Optimizer ===
	if cfg.Optimizer.MaxIterations <= 0 {
		return ValidationError{"optimizer.max_iterations", "must be > 0"}
	}
	if cfg.Optimizer.Tolerance <= 0 {
		return ValidationError{"optimizer.tolerance", "must be > 0"}
	}
	if cfg.Optimizer.SignalBlend < 0 || cfg.Optimizer.SignalBlend > 1 {
		return ValidationError{"optimizer.signal_blend", "must be in [0, 1]"}
	}

	// === Risk ===
	if cfg.Risk.ATRPeriod < 2 {
		return ValidationError{"risk.atr_period", "must be >= 2"}
	}
	if cfg.Risk.ATRStopMultiple <= 0 {
		return ValidationError{"risk.atr_stop_multiple", "must be > 0"}
	}
	if cfg.Risk.RewardRiskRatio <= 0 {
		return ValidationError{"risk.reward_risk_ratio", "must be > 0"}
	}

	// === Constraints ===
	c := cfg.Constraints
	if c.MaxPositionWeight <= 0 || c.MaxPositionWeight > 1 {
		return ValidationError{"constraints.max_position_weight", "must be in (0, 1]"}
	}
	if c.MaxSectorWeight < c.MaxPositionWeight {
		return ValidationError{"constraints.max_sector_weight", "must be >= max_position_weight"}
	}
	if c.MinDiversification < 1 {
		return ValidationError{"constraints.min_diversification", "must be >= 1"}
	}
	if c.MinCashReserve < 0 || c.MinCashReserve >= 1 {
		return ValidationError{"constraints.min_cash_reserve", "must be in [0, 1)"}
	}
	// Feasibility at the config level: the caps must leave room for the
	// invested fraction across the minimum holding count.
	if float64(c.MinDiversification)*c.MaxPositionWeight < 1.0-c.MinCashReserve {
		return ValidationError{"constraints", "min_diversification * max_position_weight cannot cover invested fraction"}
	}

	// === Backtest ===
	if cfg.Backtest.RebalanceDays <= 0 {
		return ValidationError{"backtest.rebalance_days", "must be > 0"}
	}
	if cfg.Backtest.InitialCapital <= 0 {
		return ValidationError{"backtest.initial_capital", "must be > 0"}
	}

	return nil
}
