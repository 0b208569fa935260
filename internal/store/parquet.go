package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"macross/internal/domain"
)

// Compile-time interface check.
var _ BarStore = (*ParquetStore)(nil)

// ParquetStore implements BarStore with one Parquet file per symbol and
// calendar year.
type ParquetStore struct {
	DataDir string
}

// NewParquetStore creates a ParquetStore rooted at dataDir.
func NewParquetStore(dataDir string) *ParquetStore {
	return &ParquetStore{DataDir: dataDir}
}

// BarRecord is the on-disk schema for a daily bar.
type BarRecord struct {
	Symbol     string  `parquet:"symbol"`
	Timestamp  int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Open       float64 `parquet:"open"`
	High       float64 `parquet:"high"`
	Low        float64 `parquet:"low"`
	Close      float64 `parquet:"close"`
	Volume     int64   `parquet:"volume"`
	TradeCount int64   `parquet:"trade_count"`
	VWAP       float64 `parquet:"vwap"`
}

func recordFromBar(b domain.Bar) BarRecord {
	return BarRecord{
		Symbol:     strings.ToUpper(b.Symbol),
		Timestamp:  b.Timestamp.UnixMilli(),
		Open:       b.Open,
		High:       b.High,
		Low:        b.Low,
		Close:      b.Close,
		Volume:     b.Volume,
		TradeCount: b.TradeCount,
		VWAP:       b.VWAP,
	}
}

func (r BarRecord) bar() domain.Bar {
	return domain.Bar{
		Symbol:     r.Symbol,
		Timestamp:  time.UnixMilli(r.Timestamp).UTC(),
		Open:       r.Open,
		High:       r.High,
		Low:        r.Low,
		Close:      r.Close,
		Volume:     r.Volume,
		TradeCount: r.TradeCount,
		VWAP:       r.VWAP,
	}
}

// WriteBars groups bars by symbol and year and merges each group into its
// file at <DataDir>/daily/<SYMBOL>/<YYYY>.parquet.
func (s *ParquetStore) WriteBars(ctx context.Context, bars []domain.Bar) error {
	type key struct {
		symbol string
		year   int
	}
	groups := make(map[key][]BarRecord)
	for _, b := range bars {
		rec := recordFromBar(b)
		k := key{symbol: rec.Symbol, year: b.Timestamp.UTC().Year()}
		groups[k] = append(groups[k], rec)
	}

	for k, incoming := range groups {
		if err := ctx.Err(); err != nil {
			return err
		}
		path := s.barPath(k.symbol, k.year)
		existing, err := readBarFile(path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		if err := writeBarFile(path, mergeBarRecords(existing, incoming)); err != nil {
			return fmt.Errorf("writing bars for %s/%d: %w", k.symbol, k.year, err)
		}
	}
	return nil
}

// ReadBars returns bars in [start, end] sorted by timestamp. Missing year
// files are treated as gaps, not errors.
func (s *ParquetStore) ReadBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	symbol = strings.ToUpper(symbol)
	lo, hi := start.UnixMilli(), end.UnixMilli()

	var bars []domain.Bar
	for year := start.UTC().Year(); year <= end.UTC().Year(); year++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		records, err := readBarFile(s.barPath(symbol, year))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s/%d: %w", symbol, year, err)
		}
		for _, r := range records {
			if r.Timestamp >= lo && r.Timestamp <= hi {
				bars = append(bars, r.bar())
			}
		}
	}
	return bars, nil
}

// ListSymbols lists the symbol directories under <DataDir>/daily.
func (s *ParquetStore) ListSymbols(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.DataDir, "daily"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var symbols []string
	for _, e := range entries {
		if e.IsDir() {
			symbols = append(symbols, e.Name())
		}
	}
	sort.Strings(symbols)
	return symbols, nil
}

// barPath returns <DataDir>/daily/<SYMBOL>/<YYYY>.parquet.
func (s *ParquetStore) barPath(symbol string, year int) string {
	return filepath.Join(s.DataDir, "daily", strings.ToUpper(symbol), strconv.Itoa(year)+".parquet")
}

func writeBarFile(path string, records []BarRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	// Write to a sibling and rename so readers never see a partial file.
	tmp := path + ".tmp"
	if err := parquet.WriteFile(tmp, records); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func readBarFile(path string) ([]BarRecord, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return parquet.ReadFile[BarRecord](path)
}

// mergeBarRecords deduplicates by timestamp, preferring incoming records,
// and returns them oldest first.
func mergeBarRecords(existing, incoming []BarRecord) []BarRecord {
	byTS := make(map[int64]BarRecord, len(existing)+len(incoming))
	for _, r := range existing {
		byTS[r.Timestamp] = r
	}
	for _, r := range incoming {
		byTS[r.Timestamp] = r
	}

	merged := make([]BarRecord, 0, len(byTS))
	for _, r := range byTS {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})
	return merged
}
