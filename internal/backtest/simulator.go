package backtest

import (
	"sort"
	"time"

	"github.com/thanhpn/alphavn/internal/contracts"
	"github.com/thanhpn/alphavn/pkg/logger"
)

// lotSize is the HOSE board lot. Orders are rounded down to whole lots.
const lotSize = 100

// Simulator executes target-weight rebalances against historical closes,
// charging commission on notional and slippage against the fill price.
// Accounting is float64 VND; share counts are whole lots.
type Simulator struct {
	logger *logger.Logger

	commissionRate float64
	slippageRate   float64

	cash      float64
	positions map[string]*holding
	trades    []contracts.Trade

	totalCommission float64
	totalSlippage   float64
	winningTrades   int
	losingTrades    int
}

// holding is one open position in the simulated book.
type holding struct {
	shares   int64
	avgPrice float64 // average entry price including slippage
	sector   string
}

// NewSimulator creates a simulator with the given friction rates.
func NewSimulator(commissionRate, slippageRate float64, log *logger.Logger) *Simulator {
	return &Simulator{
		logger:         log.WithField("component", "simulator"),
		commissionRate: commissionRate,
		slippageRate:   slippageRate,
		positions:      make(map[string]*holding),
	}
}

// Reset clears the book and sets the starting cash.
func (s *Simulator) Reset(capital float64) {
	s.cash = capital
	s.positions = make(map[string]*holding)
	s.trades = nil
	s.totalCommission = 0
	s.totalSlippage = 0
	s.winningTrades = 0
	s.losingTrades = 0
}

// Equity marks the book to market at the given closes. Positions with no
// quote that day are carried at their average entry price.
func (s *Simulator) Equity(closes map[string]float64) float64 {
	equity := s.cash
	for symbol, pos := range s.positions {
		price, ok := closes[symbol]
		if !ok {
			price = pos.avgPrice
		}
		equity += float64(pos.shares) * price
	}
	return equity
}

// Cash returns the uninvested balance.
func (s *Simulator) Cash() float64 { return s.cash }

// State snapshots the book as a PortfolioState for risk checks.
func (s *Simulator) State(asOf time.Time, closes map[string]float64) *contracts.PortfolioState {
	equity := s.Equity(closes)
	state := &contracts.PortfolioState{
		AsOf:      asOf,
		Equity:    equity,
		Cash:      s.cash,
		Positions: make(map[string]contracts.Position, len(s.positions)),
	}
	for symbol, pos := range s.positions {
		price, ok := closes[symbol]
		if !ok {
			price = pos.avgPrice
		}
		weight := 0.0
		if equity > 0 {
			weight = float64(pos.shares) * price / equity
		}
		state.Positions[symbol] = contracts.Position{
			Symbol:     symbol,
			Sector:     pos.sector,
			Weight:     weight,
			EntryPrice: pos.avgPrice,
			Shares:     pos.shares,
		}
	}
	return state
}

// RebalanceTo trades the book toward the target weights at the given
// closes. Sells execute before buys so freed cash is available in the same
// rebalance. Symbols are processed in sorted order so the trade log is
// deterministic.
func (s *Simulator) RebalanceTo(date time.Time, targets map[string]float64, closes map[string]float64, sectors map[string]string) {
	equity := s.Equity(closes)
	if equity <= 0 {
		return
	}

	symbols := make([]string, 0, len(targets)+len(s.positions))
	seen := make(map[string]bool)
	for symbol := range targets {
		symbols = append(symbols, symbol)
		seen[symbol] = true
	}
	for symbol := range s.positions {
		if !seen[symbol] {
			symbols = append(symbols, symbol)
		}
	}
	sort.Strings(symbols)

	type order struct {
		symbol string
		shares int64
		price  float64
	}

	var sells, buys []order
	for _, symbol := range symbols {
		price, ok := closes[symbol]
		if !ok || price <= 0 {
			continue
		}

		var current int64
		if pos, held := s.positions[symbol]; held {
			current = pos.shares
		}
		target := int64(targets[symbol]*equity/price) / lotSize * lotSize

		delta := target - current
		if delta == 0 {
			continue
		}
		if delta < 0 {
			sells = append(sells, order{symbol: symbol, shares: -delta, price: price})
		} else {
			buys = append(buys, order{symbol: symbol, shares: delta, price: price})
		}
	}

	for _, o := range sells {
		s.sell(date, o.symbol, o.shares, o.price)
	}
	for _, o := range buys {
		s.buy(date, o.symbol, o.shares, o.price, sectors[o.symbol])
	}
}

// buy fills a purchase, shrinking the order if cash cannot cover it.
func (s *Simulator) buy(date time.Time, symbol string, shares int64, price float64, sector string) {
	fillPrice := price * (1 + s.slippageRate)

	maxShares := int64(s.cash/(fillPrice*(1+s.commissionRate))) / lotSize * lotSize
	if shares > maxShares {
		shares = maxShares
	}
	if shares <= 0 {
		return
	}

	value := float64(shares) * fillPrice
	commission := value * s.commissionRate
	slippage := float64(shares) * (fillPrice - price)

	s.cash -= value + commission
	s.totalCommission += commission
	s.totalSlippage += slippage

	pos, held := s.positions[symbol]
	if !held {
		pos = &holding{sector: sector}
		s.positions[symbol] = pos
	}
	totalCost := pos.avgPrice*float64(pos.shares) + value
	pos.shares += shares
	pos.avgPrice = totalCost / float64(pos.shares)

	s.trades = append(s.trades, contracts.Trade{
		Symbol:     symbol,
		Date:       date,
		Side:       contracts.TradeBuy,
		Shares:     shares,
		Price:      fillPrice,
		Value:      value,
		Commission: commission,
		Slippage:   slippage,
	})
}

// sell fills a disposal and realizes PnL against the average entry price.
func (s *Simulator) sell(date time.Time, symbol string, shares int64, price float64) {
	pos, held := s.positions[symbol]
	if !held || shares <= 0 {
		return
	}
	if shares > pos.shares {
		shares = pos.shares
	}

	fillPrice := price * (1 - s.slippageRate)
	value := float64(shares) * fillPrice
	commission := value * s.commissionRate
	slippage := float64(shares) * (price - fillPrice)

	pnl := value - commission - float64(shares)*pos.avgPrice
	returnPct := 0.0
	if pos.avgPrice > 0 {
		returnPct = pnl / (float64(shares) * pos.avgPrice)
	}
	if pnl > 0 {
		s.winningTrades++
	} else {
		s.losingTrades++
	}

	s.cash += value - commission
	s.totalCommission += commission
	s.totalSlippage += slippage

	pos.shares -= shares
	if pos.shares == 0 {
		delete(s.positions, symbol)
	}

	s.trades = append(s.trades, contracts.Trade{
		Symbol:     symbol,
		Date:       date,
		Side:       contracts.TradeSell,
		Shares:     shares,
		Price:      fillPrice,
		Value:      value,
		Commission: commission,
		Slippage:   slippage,
		PnL:        pnl,
		ReturnPct:  returnPct,
	})
}

// ExitPosition closes the entire holding of a symbol at the given price.
func (s *Simulator) ExitPosition(date time.Time, symbol string, price float64) {
	pos, held := s.positions[symbol]
	if !held || price <= 0 {
		return
	}
	s.sell(date, symbol, pos.shares, price)
}

// Holdings returns the currently held symbols in sorted order.
func (s *Simulator) Holdings() []string {
	symbols := make([]string, 0, len(s.positions))
	for symbol := range s.positions {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}

// Trades returns the fill log in execution order.
func (s *Simulator) Trades() []contracts.Trade { return s.trades }

// Stats returns cumulative trade statistics.
func (s *Simulator) Stats() (wins, losses int, commission, slippage float64) {
	return s.winningTrades, s.losingTrades, s.totalCommission, s.totalSlippage
}
