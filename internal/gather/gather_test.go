package gather

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"macross/internal/domain"
	"macross/internal/store"
)

type fakeSource struct {
	bars  map[string][]marketdata.Bar
	fails map[string]int // remaining failures per symbol
	calls map[string]int
	reqs  []marketdata.GetBarsRequest
}

func (f *fakeSource) GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error) {
	f.calls[symbol]++
	f.reqs = append(f.reqs, req)
	if f.fails[symbol] > 0 {
		f.fails[symbol]--
		return nil, errors.New("503 service unavailable")
	}
	return f.bars[symbol], nil
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		bars:  make(map[string][]marketdata.Bar),
		fails: make(map[string]int),
		calls: make(map[string]int),
	}
}

func TestDailyBarFetcherName(t *testing.T) {
	f := NewDailyBarFetcher(newFakeSource(), nil, FetcherOptions{}, nil)
	if got := f.Name(); got != "daily-bars" {
		t.Errorf("DailyBarFetcher.Name() = %q, want %q", got, "daily-bars")
	}
}

func TestToDomainBars(t *testing.T) {
	ny := time.FixedZone("EST", -5*3600)
	raw := []marketdata.Bar{
		{Timestamp: time.Date(2024, 1, 2, 0, 0, 0, 0, ny), Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 100, TradeCount: 7, VWAP: 1.4},
		{Timestamp: time.Date(2024, 1, 3, 5, 0, 0, 0, time.UTC), Close: 0},
	}
	bars := toDomainBars("AAPL", raw)
	if len(bars) != 1 {
		t.Fatalf("toDomainBars returned %d bars, want 1", len(bars))
	}
	b := bars[0]
	if !b.Timestamp.Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Timestamp = %v, want 2024-01-02 UTC", b.Timestamp)
	}
	if b.Symbol != "AAPL" || b.Close != 1.5 || b.Volume != 100 || b.TradeCount != 7 {
		t.Errorf("bar = %+v", b)
	}
}

func TestDailyBarFetcherRun(t *testing.T) {
	src := newFakeSource()
	src.bars["AAPL"] = []marketdata.Bar{
		{Timestamp: time.Date(2024, 1, 2, 5, 0, 0, 0, time.UTC), Close: 185.5},
		{Timestamp: time.Date(2024, 1, 3, 5, 0, 0, 0, time.UTC), Close: 186.0},
	}
	src.fails["AAPL"] = 1
	src.fails["BAD"] = 10

	ps := store.NewParquetStore(t.TempDir())
	rng := DateRange{Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), End: time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)}
	f := NewDailyBarFetcher(src, ps, FetcherOptions{
		Symbols:     []string{"aapl", "BAD"},
		Range:       rng,
		Feed:        "iex",
		MaxAttempts: 3,
		RetryDelay:  time.Millisecond,
	}, nil)

	err := f.Run(context.Background())
	if err == nil {
		t.Fatal("Run should report the failing symbol")
	}
	if src.calls["AAPL"] != 2 {
		t.Errorf("AAPL fetched %d times, want 2 (one retry)", src.calls["AAPL"])
	}
	if src.calls["BAD"] != 3 {
		t.Errorf("BAD fetched %d times, want 3", src.calls["BAD"])
	}
	if src.reqs[0].Adjustment != marketdata.All || src.reqs[0].TimeFrame != marketdata.OneDay {
		t.Errorf("request = %+v, want adjusted daily bars", src.reqs[0])
	}

	bars, err := ps.ReadBars(context.Background(), "AAPL", rng.Start, rng.End)
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(bars) != 2 || bars[1].Close != 186.0 {
		t.Errorf("stored bars = %+v", bars)
	}
	if _, err := domain.SeriesFromBars(bars); err != nil {
		t.Errorf("stored bars do not form a valid series: %v", err)
	}
}

func TestParseDateRange(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r, err := ParseDateRange("2016-01-01", "", now)
	if err != nil {
		t.Fatalf("ParseDateRange: %v", err)
	}
	if !r.End.Equal(now) || r.Start.Year() != 2016 {
		t.Errorf("ParseDateRange = %+v", r)
	}
	if _, err := ParseDateRange("2024-02-01", "2024-01-01", now); err == nil {
		t.Error("ParseDateRange accepted end before start")
	}
	if _, err := ParseDateRange("yesterday", "", now); err == nil {
		t.Error("ParseDateRange accepted a malformed date")
	}
}
