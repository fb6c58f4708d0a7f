package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/thanhpn/alphavn/internal/contracts"
)

// PostgresStore reads market data maintained by the external collection
// component. Schema ownership and writes live there; this side only queries.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Store backed by the shared Postgres pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// GetPriceSeries retrieves bars for a symbol within [from, to], ascending.
func (s *PostgresStore) GetPriceSeries(ctx context.Context, symbol string, from, to time.Time) ([]contracts.PricePoint, error) {
	query := `
		SELECT symbol, trade_date, open_price, high_price, low_price, close_price,
		       volume, traded_value, foreign_buy_value, foreign_sell_value
		FROM data.daily_prices
		WHERE symbol = $1 AND trade_date BETWEEN $2 AND $3
		ORDER BY trade_date ASC
	`

	rows, err := s.pool.Query(ctx, query, symbol, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var series []contracts.PricePoint
	for rows.Next() {
		var p contracts.PricePoint
		if err := rows.Scan(&p.Symbol, &p.Date, &p.Open, &p.High, &p.Low, &p.Close,
			&p.Volume, &p.TradedValue, &p.ForeignBuy, &p.ForeignSell); err != nil {
			return nil, err
		}
		series = append(series, p)
	}
	return series, rows.Err()
}

// GetContext retrieves the market context snapshot for a date.
func (s *PostgresStore) GetContext(ctx context.Context, date time.Time) (contracts.MarketContext, error) {
	query := `
		SELECT context_date, is_holiday, holiday_type, days_to_next_holiday,
		       days_after_holiday, news_impact_level, news_sentiment, sector_modifiers
		FROM data.market_contexts
		WHERE context_date = $1
	`

	var (
		mctx         contracts.MarketContext
		modifiersRaw []byte
	)
	err := s.pool.QueryRow(ctx, query, date).Scan(
		&mctx.Date, &mctx.IsHoliday, &mctx.HolidayType, &mctx.DaysToNextHoliday,
		&mctx.DaysAfterHoliday, &mctx.NewsImpactLevel, &mctx.NewsSentiment, &modifiersRaw,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return contracts.MarketContext{}, contracts.ErrContextUnavailable
		}
		return contracts.MarketContext{}, err
	}

	if len(modifiersRaw) > 0 {
		if err := json.Unmarshal(modifiersRaw, &mctx.SectorModifiers); err != nil {
			return contracts.MarketContext{}, err
		}
	}
	return mctx, nil
}

// GetSector returns the sector of a listed symbol, "" when unknown.
func (s *PostgresStore) GetSector(ctx context.Context, symbol string) (string, error) {
	query := `SELECT sector FROM data.symbols WHERE symbol = $1`

	var sector string
	err := s.pool.QueryRow(ctx, query, symbol).Scan(&sector)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return sector, nil
}
