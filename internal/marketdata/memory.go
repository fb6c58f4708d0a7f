package marketdata

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/thanhpn/alphavn/internal/contracts"
)

// MemoryStore is a deterministic in-memory Store. Backtests and tests load
// it once; reads never mutate it.
type MemoryStore struct {
	mu       sync.RWMutex
	series   map[string][]contracts.PricePoint // ascending by date
	contexts map[string]contracts.MarketContext // key: yyyy-mm-dd
	sectors  map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		series:   make(map[string][]contracts.PricePoint),
		contexts: make(map[string]contracts.MarketContext),
		sectors:  make(map[string]string),
	}
}

// LoadSeries replaces the series for a symbol, sorting by date.
func (s *MemoryStore) LoadSeries(symbol string, points []contracts.PricePoint) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sorted := make([]contracts.PricePoint, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})
	s.series[symbol] = sorted
}

// LoadContext stores the market context for its date.
func (s *MemoryStore) LoadContext(mctx contracts.MarketContext) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contexts[dateKey(mctx.Date)] = mctx
}

// SetSector records a symbol's sector.
func (s *MemoryStore) SetSector(symbol, sector string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sectors[symbol] = sector
}

// Symbols returns all loaded symbols in sorted order.
func (s *MemoryStore) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	symbols := make([]string, 0, len(s.series))
	for sym := range s.series {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	return symbols
}

// GetPriceSeries returns bars in [from, to] ascending.
func (s *MemoryStore) GetPriceSeries(ctx context.Context, symbol string, from, to time.Time) ([]contracts.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.series[symbol]
	out := make([]contracts.PricePoint, 0, len(all))
	for _, p := range all {
		if p.Date.Before(from) || p.Date.After(to) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// GetContext returns the context for a date.
func (s *MemoryStore) GetContext(ctx context.Context, date time.Time) (contracts.MarketContext, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mctx, ok := s.contexts[dateKey(date)]
	if !ok {
		return contracts.MarketContext{}, contracts.ErrContextUnavailable
	}
	return mctx, nil
}

// GetSector returns the sector of a symbol, "" when unknown.
func (s *MemoryStore) GetSector(ctx context.Context, symbol string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sectors[symbol], nil
}

func dateKey(t time.Time) string {
	return t.Format("2006-01-02")
}
