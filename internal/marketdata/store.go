package marketdata

import (
	"context"
	"time"

	"github.com/thanhpn/alphavn/internal/contracts"
)

// Store is the read-only market data port of the analytics core. Retry,
// backoff and freshness policy belong to the data-collection side, not here.
type Store interface {
	// GetPriceSeries returns bars for symbol in [from, to], ordered
	// ascending by date. An empty series is not an error.
	GetPriceSeries(ctx context.Context, symbol string, from, to time.Time) ([]contracts.PricePoint, error)

	// GetContext returns the market context snapshot for a date.
	// contracts.ErrContextUnavailable signals a missing feed entry;
	// callers degrade to a neutral context.
	GetContext(ctx context.Context, date time.Time) (contracts.MarketContext, error)

	// GetSector returns the sector of a symbol, "" when unknown.
	GetSector(ctx context.Context, symbol string) (string, error)
}
