package contracts

import "time"

// TradeSide is the direction of a simulated fill.
type TradeSide string

const (
	TradeBuy  TradeSide = "buy"
	TradeSell TradeSide = "sell"
)

// Trade is one simulated fill in the backtest trade log.
type Trade struct {
	Symbol     string    `json:"symbol"`
	Date       time.Time `json:"date"`
	Side       TradeSide `json:"side"`
	Shares     int64     `json:"shares"`
	Price      float64   `json:"price"` // fill price after slippage
	Value      float64   `json:"value"`
	Commission float64   `json:"commission"`
	Slippage   float64   `json:"slippage"`
	PnL        float64   `json:"pnl"`        // realized, sell side only
	ReturnPct  float64   `json:"return_pct"` // realized, sell side only
}

// EquityPoint is one mark-to-market sample of the equity curve.
type EquityPoint struct {
	Date   time.Time `json:"date"`
	Equity float64   `json:"equity"`
	Return float64   `json:"return"` // cumulative vs initial capital
}

// BarFailure records a per-(symbol, bar) component failure that was isolated
// as flat/no-action instead of aborting the run.
type BarFailure struct {
	Symbol    string    `json:"symbol"`
	Date      time.Time `json:"date"`
	Component string    `json:"component"`
	Error     string    `json:"error"`
}

// BacktestResult is the outcome of a historical replay. Built incrementally
// during the run; immutable once the run completes.
type BacktestResult struct {
	RunID     string    `json:"run_id"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`

	InitialCapital float64 `json:"initial_capital"`
	FinalCapital   float64 `json:"final_capital"`

	TradingDays    int `json:"trading_days"`
	RebalanceCount int `json:"rebalance_count"`

	// Performance metrics
	TotalReturn      float64 `json:"total_return"`
	AnnualizedReturn float64 `json:"annualized_return"`
	Volatility       float64 `json:"volatility"`
	SharpeRatio      float64 `json:"sharpe_ratio"`
	SortinoRatio     float64 `json:"sortino_ratio"`
	MaxDrawdown      float64 `json:"max_drawdown"`
	WinRate          float64 `json:"win_rate"`
	AverageReturn    float64 `json:"average_return"` // mean realized trade return

	TotalTrades     int     `json:"total_trades"`
	WinningTrades   int     `json:"winning_trades"`
	LosingTrades    int     `json:"losing_trades"`
	TotalCommission float64 `json:"total_commission"`
	TotalSlippage   float64 `json:"total_slippage"`

	Trades      []Trade       `json:"trades"`
	EquityCurve []EquityPoint `json:"equity_curve"`
	Failures    []BarFailure  `json:"failures,omitempty"`
}
