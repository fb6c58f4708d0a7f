package marketdata

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/thanhpn/alphavn/internal/contracts"
)

// LoadDir builds a MemoryStore from a data directory:
//
//	<SYMBOL>.csv    daily bars, header: date,open,high,low,close,volume
//	                plus optional traded_value,foreign_buy,foreign_sell
//	sectors.csv     symbol,sector (optional)
//	contexts.yaml   list of market context records (optional)
//
// Dates are YYYY-MM-DD. Bars are sorted by the store on load.
func LoadDir(dir string) (*MemoryStore, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read data dir: %w", err)
	}

	store := NewMemoryStore()
	loaded := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".csv") || name == "sectors.csv" {
			continue
		}

		symbol := strings.TrimSuffix(name, ".csv")
		points, err := loadPriceCSV(filepath.Join(dir, name), symbol)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", name, err)
		}
		store.LoadSeries(symbol, points)
		loaded++
	}
	if loaded == 0 {
		return nil, fmt.Errorf("no price files in %s", dir)
	}

	if err := loadSectors(filepath.Join(dir, "sectors.csv"), store); err != nil {
		return nil, err
	}
	if err := loadContexts(filepath.Join(dir, "contexts.yaml"), store); err != nil {
		return nil, err
	}

	return store, nil
}

func loadPriceCSV(path, symbol string) ([]contracts.PricePoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("no data rows")
	}

	points := make([]contracts.PricePoint, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if len(row) < 6 {
			return nil, fmt.Errorf("row %d: expected at least 6 columns, got %d", i+2, len(row))
		}

		date, err := time.Parse("2006-01-02", row[0])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}

		p := contracts.PricePoint{Symbol: symbol, Date: date}
		if p.Open, err = strconv.ParseFloat(row[1], 64); err != nil {
			return nil, fmt.Errorf("row %d open: %w", i+2, err)
		}
		if p.High, err = strconv.ParseFloat(row[2], 64); err != nil {
			return nil, fmt.Errorf("row %d high: %w", i+2, err)
		}
		if p.Low, err = strconv.ParseFloat(row[3], 64); err != nil {
			return nil, fmt.Errorf("row %d low: %w", i+2, err)
		}
		if p.Close, err = strconv.ParseFloat(row[4], 64); err != nil {
			return nil, fmt.Errorf("row %d close: %w", i+2, err)
		}
		if p.Volume, err = strconv.ParseInt(row[5], 10, 64); err != nil {
			return nil, fmt.Errorf("row %d volume: %w", i+2, err)
		}

		if len(row) > 6 {
			p.TradedValue, _ = strconv.ParseFloat(row[6], 64)
		}
		if len(row) > 8 {
			p.ForeignBuy, _ = strconv.ParseFloat(row[7], 64)
			p.ForeignSell, _ = strconv.ParseFloat(row[8], 64)
		}

		points = append(points, p)
	}

	return points, nil
}

func loadSectors(path string, store *MemoryStore) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("load sectors: %w", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return fmt.Errorf("load sectors: %w", err)
	}
	for _, row := range rows {
		if len(row) < 2 || row[0] == "symbol" {
			continue
		}
		store.SetSector(strings.TrimSpace(row[0]), strings.TrimSpace(row[1]))
	}
	return nil
}

// contextRecord is the YAML shape of one market context entry. The day
// counters are pointers so an omitted value maps to the -1 "none known"
// sentinel instead of zero.
type contextRecord struct {
	Date              string             `yaml:"date"`
	IsHoliday         bool               `yaml:"is_holiday"`
	HolidayType       string             `yaml:"holiday_type"`
	DaysToNextHoliday *int               `yaml:"days_to_next_holiday"`
	DaysAfterHoliday  *int               `yaml:"days_after_holiday"`
	NewsImpactLevel   float64            `yaml:"news_impact_level"`
	NewsSentiment     string             `yaml:"news_sentiment"`
	SectorModifiers   map[string]float64 `yaml:"sector_modifiers"`
}

func orNone(v *int) int {
	if v == nil {
		return -1
	}
	return *v
}

func loadContexts(path string, store *MemoryStore) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("load contexts: %w", err)
	}

	var records []contextRecord
	if err := yaml.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("load contexts: %w", err)
	}

	for i, rec := range records {
		date, err := time.Parse("2006-01-02", rec.Date)
		if err != nil {
			return fmt.Errorf("context %d: %w", i, err)
		}
		mctx := contracts.MarketContext{
			Date:              date,
			IsHoliday:         rec.IsHoliday,
			HolidayType:       contracts.HolidayType(rec.HolidayType),
			DaysToNextHoliday: orNone(rec.DaysToNextHoliday),
			DaysAfterHoliday:  orNone(rec.DaysAfterHoliday),
			NewsImpactLevel:   rec.NewsImpactLevel,
			NewsSentiment:     contracts.NewsSentiment(rec.NewsSentiment),
			SectorModifiers:   rec.SectorModifiers,
		}
		store.LoadContext(mctx)
	}
	return nil
}
