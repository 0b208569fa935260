package strategy

import (
	"math"
	"testing"
	"time"

	"macross/internal/domain"
)

// mustSeries builds a daily series from closes starting 2024-01-02.
func mustSeries(t *testing.T, closes ...float64) domain.PriceSeries {
	t.Helper()
	bars := make([]domain.PriceBar, len(closes))
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		bars[i] = domain.PriceBar{Timestamp: start.AddDate(0, 0, i), Close: c}
	}
	s, err := domain.NewPriceSeries(bars)
	if err != nil {
		t.Fatalf("NewPriceSeries: %v", err)
	}
	return s
}

// wave returns n closes oscillating around 100 with a slow drift.
func wave(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		x := float64(i)
		out[i] = 100 + 8*math.Sin(x/7) + 3*math.Sin(x/2.3) + x*0.05
	}
	return out
}

func approx(a, b float64) bool {
	return math.Abs(a-b) <= 1e-12*math.Max(1, math.Abs(b))
}
