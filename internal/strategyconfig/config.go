package strategyconfig

import "github.com/thanhpn/alphavn/internal/contracts"

// Config is the full tunable parameter set of the analytics core. Every
// numeric constant the pipeline uses lives here so recalibration never
// requires a code change. Loaded once at startup and passed explicitly into
// each component.
type Config struct {
	Meta      Meta      `yaml:"meta" json:"meta"`
	Signals   Signals   `yaml:"signals" json:"signals"`
	Context   Context   `yaml:"context" json:"context"`
	Optimizer Optimizer `yaml:"optimizer" json:"optimizer"`
	Risk      Risk      `yaml:"risk" json:"risk"`
	Backtest  Backtest  `yaml:"backtest" json:"backtest"`

	Constraints contracts.Constraints `yaml:"constraints" json:"constraints"`
}

// Meta identifies the strategy revision for audit trails.
type Meta struct {
	StrategyID string `yaml:"strategy_id" json:"strategy_id"`
	Version    string `yaml:"version" json:"version"`
	Market     string `yaml:"market" json:"market"` // e.g. "HOSE"
	Timezone   string `yaml:"timezone" json:"timezone"`
}

// Signals configures the technical signal engine.
type Signals struct {
	LookbackDays int `yaml:"lookback_days" json:"lookback_days"` // default 60

	Weights   FactorWeights `yaml:"weights" json:"weights"`
	Bands     ScoreBands    `yaml:"bands" json:"bands"`
	Volume    Volume        `yaml:"volume" json:"volume"`
	Price     PriceAction   `yaml:"price_action" json:"price_action"`
	Momentum  Momentum      `yaml:"momentum" json:"momentum"`
}

// FactorWeights blends the four sub-scores into the composite. Must sum to
// 1.0; price action is weighted slightly higher by default.
type FactorWeights struct {
	Volume       float64 `yaml:"volume" json:"volume"`
	PriceAction  float64 `yaml:"price_action" json:"price_action"`
	Momentum     float64 `yaml:"momentum" json:"momentum"`
	Accumulation float64 `yaml:"accumulation" json:"accumulation"`
}

// Sum returns the total of the factor weights.
func (w FactorWeights) Sum() float64 {
	return w.Volume + w.PriceAction + w.Momentum + w.Accumulation
}

// ScoreBands are the classification cut-points over the 0..100 composite.
type ScoreBands struct {
	StrongBuy float64 `yaml:"strong_buy" json:"strong_buy"` // >= 80
	Buy       float64 `yaml:"buy" json:"buy"`               // >= 65
	Hold      float64 `yaml:"hold" json:"hold"`             // >= 45
	Sell      float64 `yaml:"sell" json:"sell"`             // >= 25; below = strong sell
}

// Volume configures the VSA-style volume pattern scoring.
type Volume struct {
	AvgWindow          int     `yaml:"avg_window" json:"avg_window"`                     // trailing volume average, default 20
	ClimaxMultiple     float64 `yaml:"climax_multiple" json:"climax_multiple"`           // stopping-volume threshold, default 2.5
	QuietMultiple      float64 `yaml:"quiet_multiple" json:"quiet_multiple"`             // no-supply/no-demand threshold, default 0.5
	SpreadCompression  float64 `yaml:"spread_compression" json:"spread_compression"`     // stealth range vs avg range, default 0.7
	CloseHighThreshold float64 `yaml:"close_high_threshold" json:"close_high_threshold"` // close-in-range for strength, default 0.7
	CloseLowThreshold  float64 `yaml:"close_low_threshold" json:"close_low_threshold"`   // close-in-range for weakness, default 0.3
}

// PriceAction configures breakout detection and trend alignment.
type PriceAction struct {
	ResistanceWindow int     `yaml:"resistance_window" json:"resistance_window"` // default 20
	MAShort          int     `yaml:"ma_short" json:"ma_short"`                   // default 10
	MALong           int     `yaml:"ma_long" json:"ma_long"`                     // default 30
	BreakoutMargin   float64 `yaml:"breakout_margin" json:"breakout_margin"`     // default 0.005
}

// Momentum configures the bounded oscillator and divergence detection.
type Momentum struct {
	RSIPeriod        int `yaml:"rsi_period" json:"rsi_period"`               // default 14
	DivergenceWindow int `yaml:"divergence_window" json:"divergence_window"` // default 20
}

// Context configures the adjustment rule layer.
type Context struct {
	NewsImpactThreshold float64 `yaml:"news_impact_threshold" json:"news_impact_threshold"` // default 7.0
	NewsScoreCeiling    float64 `yaml:"news_score_ceiling" json:"news_score_ceiling"`       // default 40.0

	PreHolidayWindow  int     `yaml:"pre_holiday_window" json:"pre_holiday_window"`   // trading days, default 3
	PreHolidayFactor  float64 `yaml:"pre_holiday_factor" json:"pre_holiday_factor"`   // default 0.80
	PostHolidayWindow int     `yaml:"post_holiday_window" json:"post_holiday_window"` // trading days, default 2
	PostHolidayFactor float64 `yaml:"post_holiday_factor" json:"post_holiday_factor"` // default 0.92

	VolumeAnomalyRate float64 `yaml:"volume_anomaly_rate" json:"volume_anomaly_rate"` // day-over-day, default 3.0

	// Confidence penalties per degrading condition, each 0..1 multiplier.
	NewsConfidencePenalty    float64 `yaml:"news_confidence_penalty" json:"news_confidence_penalty"`       // default 0.60
	HolidayConfidencePenalty float64 `yaml:"holiday_confidence_penalty" json:"holiday_confidence_penalty"` // default 0.85
	AnomalyConfidencePenalty float64 `yaml:"anomaly_confidence_penalty" json:"anomaly_confidence_penalty"` // default 0.80
	NeutralConfidencePenalty float64 `yaml:"neutral_confidence_penalty" json:"neutral_confidence_penalty"` // default 0.70
}

// Optimizer configures the constrained mean-variance solver.
type Optimizer struct {
	RiskFreeRate   float64 `yaml:"risk_free_rate" json:"risk_free_rate"`     // annual, default 0.045
	SignalBlend    float64 `yaml:"signal_blend" json:"signal_blend"`         // weight of signal tilt in expected return, default 0.35
	TiltScale      float64 `yaml:"tilt_scale" json:"tilt_scale"`             // annualized return at max signal strength, default 0.25
	CommissionRate float64 `yaml:"commission_rate" json:"commission_rate"`   // default 0.0015
	ImpactCoeff    float64 `yaml:"impact_coeff" json:"impact_coeff"`         // market impact per unit trade size, default 0.10
	MaxIterations  int     `yaml:"max_iterations" json:"max_iterations"`     // default 500
	Tolerance      float64 `yaml:"tolerance" json:"tolerance"`               // convergence, default 1e-7
	StepSize       float64 `yaml:"step_size" json:"step_size"`               // initial gradient step, default 0.05
}

// Risk configures position sizing and portfolio monitoring.
type Risk struct {
	ATRPeriod         int     `yaml:"atr_period" json:"atr_period"`                 // default 14
	ATRStopMultiple   float64 `yaml:"atr_stop_multiple" json:"atr_stop_multiple"`   // default 2.0
	RewardRiskRatio   float64 `yaml:"reward_risk_ratio" json:"reward_risk_ratio"`   // default 2.0
	BaseSizeFraction  float64 `yaml:"base_size_fraction" json:"base_size_fraction"` // size at confidence 1.0, default 0.10
	VolScaleTarget    float64 `yaml:"vol_scale_target" json:"vol_scale_target"`     // ATR/price reference, default 0.02
	CorrelationShrink float64 `yaml:"correlation_shrink" json:"correlation_shrink"` // size multiplier on breach, default 0.50
	RejectCorrelation float64 `yaml:"reject_correlation" json:"reject_correlation"` // outright reject above, default 0.90
	VolWindow         int     `yaml:"vol_window" json:"vol_window"`                 // realized vol window, default 60
}

// Backtest configures the replay harness cost model and cadence.
type Backtest struct {
	RebalanceDays  int     `yaml:"rebalance_days" json:"rebalance_days"`   // default 5
	CommissionRate float64 `yaml:"commission_rate" json:"commission_rate"` // default 0.0015
	SlippageRate   float64 `yaml:"slippage_rate" json:"slippage_rate"`     // default 0.001
	InitialCapital float64 `yaml:"initial_capital" json:"initial_capital"` // default 1e9 VND
}

// Default returns the built-in parameter set. The YAML file overrides it.
func Default() *Config {
	return &Config{
		Meta: Meta{
			StrategyID: "vn_equity_v1",
			Version:    "1.0.0",
			Market:     "HOSE",
			Timezone:   "Asia/Ho_Chi_Minh",
		},
		Signals: Signals{
			LookbackDays: 60,
			Weights: FactorWeights{
				Volume:       0.24,
				PriceAction:  0.28,
				Momentum:     0.24,
				Accumulation: 0.24,
			},
			Bands: ScoreBands{StrongBuy: 80, Buy: 65, Hold: 45, Sell: 25},
			Volume: Volume{
				AvgWindow:          20,
				ClimaxMultiple:     2.5,
				QuietMultiple:      0.5,
				SpreadCompression:  0.7,
				CloseHighThreshold: 0.7,
				CloseLowThreshold:  0.3,
			},
			Price: PriceAction{
				ResistanceWindow: 20,
				MAShort:          10,
				MALong:           30,
				BreakoutMargin:   0.005,
			},
			Momentum: Momentum{
				RSIPeriod:        14,
				DivergenceWindow: 20,
			},
		},
		Context: Context{
			NewsImpactThreshold:      7.0,
			NewsScoreCeiling:         40.0,
			PreHolidayWindow:         3,
			PreHolidayFactor:         0.80,
			PostHolidayWindow:        2,
			PostHolidayFactor:        0.92,
			VolumeAnomalyRate:        3.0,
			NewsConfidencePenalty:    0.60,
			HolidayConfidencePenalty: 0.85,
			AnomalyConfidencePenalty: 0.80,
			NeutralConfidencePenalty: 0.70,
		},
		Optimizer: Optimizer{
			RiskFreeRate:   0.045,
			SignalBlend:    0.35,
			TiltScale:      0.25,
			CommissionRate: 0.0015,
			ImpactCoeff:    0.10,
			MaxIterations:  500,
			Tolerance:      1e-7,
			StepSize:       0.05,
		},
		Risk: Risk{
			ATRPeriod:         14,
			ATRStopMultiple:   2.0,
			RewardRiskRatio:   2.0,
			BaseSizeFraction:  0.10,
			VolScaleTarget:    0.02,
			CorrelationShrink: 0.50,
			RejectCorrelation: 0.90,
			VolWindow:         60,
		},
		Backtest: Backtest{
			RebalanceDays:  5,
			CommissionRate: 0.0015,
			SlippageRate:   0.001,
			InitialCapital: 1_000_000_000,
		},
		Constraints: contracts.DefaultConstraints(),
	}
}
