package engine

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"macross/internal/domain"
	"macross/internal/store"
	"macross/internal/strategy"
)

func newTestEngine(t *testing.T, closes []float64, limits Limits) (*Engine, *store.SQLiteStore) {
	t.Helper()
	dir := t.TempDir()
	bars := store.NewParquetStore(dir)
	runs, err := store.NewSQLiteStore(filepath.Join(dir, "runs.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { runs.Close() })

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	data := make([]domain.Bar, len(closes))
	for i, c := range closes {
		data[i] = domain.Bar{Symbol: "SPY", Timestamp: start.AddDate(0, 0, i), Close: c}
	}
	if len(data) > 0 {
		if err := bars.WriteBars(context.Background(), data); err != nil {
			t.Fatalf("WriteBars: %v", err)
		}
	}

	e := NewEngine(bars, runs, 2, limits, nil)
	e.newID = func() string { return "run-test" }
	e.now = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }
	return e, runs
}

func wave(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100 + 10*math.Sin(float64(i)/4) + float64(i)/10
	}
	return out
}

func TestEngineOptimize(t *testing.T) {
	e, runs := newTestEngine(t, wave(120), Limits{})
	ctx := context.Background()

	run, err := e.Optimize(ctx, OptimizeRequest{
		Symbol: " spy ",
		Start:  time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		End:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Short:  []int{2, 3, 5},
		Long:   []int{10, 20},
	})
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if run.ID != "run-test" || run.Symbol != "SPY" {
		t.Errorf("run id/symbol = %q/%q", run.ID, run.Symbol)
	}
	if run.Bars != 120 {
		t.Errorf("Bars = %d, want 120", run.Bars)
	}
	if run.Evaluated != 6 || len(run.Trials) != 6 {
		t.Errorf("Evaluated = %d, trials = %d, want 6", run.Evaluated, len(run.Trials))
	}

	stored, err := runs.GetRun(ctx, "run-test")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if stored.Best != run.Best {
		t.Errorf("stored Best = %+v, want %+v", stored.Best, run.Best)
	}

	got, err := e.Run(ctx, "run-test")
	if err != nil || got.ID != "run-test" {
		t.Errorf("Run() = %+v, %v", got, err)
	}
	list, err := e.Runs(ctx, "spy", 0)
	if err != nil || len(list) != 1 {
		t.Errorf("Runs() = %d runs, %v", len(list), err)
	}
}

func TestEngineOptimizeMatchesSearch(t *testing.T) {
	closes := wave(90)
	e, _ := newTestEngine(t, closes, Limits{})
	run, err := e.Optimize(context.Background(), OptimizeRequest{
		Symbol: "SPY", Start: time.Time{}, End: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		Short: []int{1, 2, 4}, Long: []int{8, 16, 32},
	})
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	pbs := make([]domain.PriceBar, len(closes))
	for i, c := range closes {
		pbs[i] = domain.PriceBar{Timestamp: start.AddDate(0, 0, i), Close: c}
	}
	series, err := domain.NewPriceSeries(pbs)
	if err != nil {
		t.Fatalf("NewPriceSeries: %v", err)
	}
	want, err := strategy.NewOptimizer(1).Search(context.Background(), series, []int{1, 2, 4}, []int{8, 16, 32})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if run.Best != want.Params || run.Result != want.Result {
		t.Errorf("Optimize best = %+v %+v, want %+v %+v", run.Best, run.Result, want.Params, want.Result)
	}
}

func TestEngineOptimizeNoData(t *testing.T) {
	e, _ := newTestEngine(t, nil, Limits{})
	_, err := e.Optimize(context.Background(), OptimizeRequest{
		Symbol: "SPY", End: time.Now(), Short: []int{1}, Long: []int{2},
	})
	if !errors.Is(err, strategy.ErrNoValidParameters) {
		t.Errorf("Optimize on empty history err = %v, want ErrNoValidParameters", err)
	}
}

func TestEngineOptimizeBadRequest(t *testing.T) {
	e, _ := newTestEngine(t, wave(30), Limits{MaxWindow: 50})
	ctx := context.Background()

	tests := []struct {
		name string
		req  OptimizeRequest
	}{
		{"missing symbol", OptimizeRequest{Short: []int{1}, Long: []int{5}}},
		{"empty short", OptimizeRequest{Symbol: "SPY", Long: []int{5}}},
		{"window over limit", OptimizeRequest{Symbol: "SPY", Short: []int{1}, Long: []int{60}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := e.Optimize(ctx, tt.req); !errors.Is(err, ErrBadRequest) {
				t.Errorf("Optimize err = %v, want ErrBadRequest", err)
			}
		})
	}
}

func TestEngineBacktest(t *testing.T) {
	e, _ := newTestEngine(t, []float64{100, 102, 101, 103, 105}, Limits{})
	rep, err := e.Backtest(context.Background(), BacktestRequest{
		Symbol: "spy",
		End:    time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		Params: domain.Params{Short: 1, Long: 2},
	})
	if err != nil {
		t.Fatalf("Backtest: %v", err)
	}
	if len(rep.Rows) != 5 {
		t.Fatalf("Rows = %d, want 5", len(rep.Rows))
	}
	if rep.Rows[4].Position != domain.SignalLong {
		t.Errorf("last Position = %v, want long", rep.Rows[4].Position)
	}
	if rep.Result.MaxDrawdown > 0 {
		t.Errorf("MaxDrawdown = %v, want <= 0", rep.Result.MaxDrawdown)
	}

	_, err = e.Backtest(context.Background(), BacktestRequest{Symbol: "SPY", Params: domain.Params{Short: 3, Long: 2}})
	if !errors.Is(err, strategy.ErrInvalidParameter) {
		t.Errorf("Backtest with short >= long err = %v, want ErrInvalidParameter", err)
	}
}

func TestEngineWithoutRunStore(t *testing.T) {
	e := NewEngine(store.NewParquetStore(t.TempDir()), nil, 1, Limits{}, nil)
	if _, err := e.Run(context.Background(), "x"); !errors.Is(err, store.ErrRunNotFound) {
		t.Errorf("Run() err = %v, want ErrRunNotFound", err)
	}
	runs, err := e.Runs(context.Background(), "", 10)
	if err != nil || len(runs) != 0 {
		t.Errorf("Runs() = %v, %v", runs, err)
	}
}
