package contracts

import "time"

// PricePoint is one daily bar of a symbol, as supplied by the market data
// store. Immutable once stored; ordered ascending by date per symbol.
type PricePoint struct {
	Symbol      string    `json:"symbol"`
	Date        time.Time `json:"date"`
	Open        float64   `json:"open"`
	High        float64   `json:"high"`
	Low         float64   `json:"low"`
	Close       float64   `json:"close"`
	Volume      int64     `json:"volume"`
	TradedValue float64   `json:"traded_value"`
	ForeignBuy  float64   `json:"foreign_buy"`
	ForeignSell float64   `json:"foreign_sell"`
}

// Range returns the high-low spread of the bar.
func (p PricePoint) Range() float64 {
	return p.High - p.Low
}

// ClosePosition returns where the close sits within the bar's range,
// 0.0 (at the low) to 1.0 (at the high). A zero-range bar returns 0.5.
func (p PricePoint) ClosePosition() float64 {
	r := p.Range()
	if r <= 0 {
		return 0.5
	}
	return (p.Close - p.Low) / r
}

// ForeignNet returns net foreign flow for the bar (buy minus sell).
func (p PricePoint) ForeignNet() float64 {
	return p.ForeignBuy - p.ForeignSell
}

// HolidayType categorizes calendar events that move Vietnamese market
// behavior. Tet dominates; lunar and national holidays carry smaller effects.
type HolidayType string

const (
	HolidayNone     HolidayType = ""
	HolidayTet      HolidayType = "tet"
	HolidayLunar    HolidayType = "lunar"
	HolidayNational HolidayType = "national"
)

// NewsSentiment is the direction of aggregated news for a date.
type NewsSentiment string

const (
	SentimentPositive NewsSentiment = "positive"
	SentimentNeutral  NewsSentiment = "neutral"
	SentimentNegative NewsSentiment = "negative"
)

// MarketContext is the per-date context snapshot consumed by the adjustment
// engine. Read-only to the core.
type MarketContext struct {
	Date              time.Time          `json:"date"`
	IsHoliday         bool               `json:"is_holiday"`
	HolidayType       HolidayType        `json:"holiday_type"`
	DaysToNextHoliday int                `json:"days_to_next_holiday"` // trading days; -1 = none known
	DaysAfterHoliday  int                `json:"days_after_holiday"`   // trading days; -1 = none known
	NewsImpactLevel   float64            `json:"news_impact_level"`    // 0..10
	NewsSentiment     NewsSentiment      `json:"news_sentiment"`
	SectorModifiers   map[string]float64 `json:"sector_modifiers"` // sector -> additive score modifier

	// Neutral is set when the context feed had no data for the date and the
	// engine degraded to a no-adjustment context.
	Neutral bool `json:"neutral,omitempty"`
}

// NeutralContext returns the degraded no-adjustment context for a date.
func NeutralContext(date time.Time) MarketContext {
	return MarketContext{
		Date:              date,
		DaysToNextHoliday: -1,
		DaysAfterHoliday:  -1,
		NewsSentiment:     SentimentNeutral,
		Neutral:           true,
	}
}

// SectorModifier looks up the additive modifier for a sector, 0 if absent.
func (m MarketContext) SectorModifier(sector string) float64 {
	if m.SectorModifiers == nil {
		return 0
	}
	return m.SectorModifiers[sector]
}
