package domain

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidSeries is returned when bars violate the series invariants.
var ErrInvalidSeries = errors.New("invalid price series")

// PriceSeries is an immutable, strictly time-ordered sequence of positive
// daily closes for one instrument.
type PriceSeries struct {
	bars []PriceBar
}

// NewPriceSeries validates bars and returns a series holding a private copy.
func NewPriceSeries(bars []PriceBar) (PriceSeries, error) {
	for i, b := range bars {
		if !(b.Close > 0) || math.IsInf(b.Close, 0) {
			return PriceSeries{}, fmt.Errorf("%w: bar %d close %v not positive", ErrInvalidSeries, i, b.Close)
		}
		if i > 0 && !b.Timestamp.After(bars[i-1].Timestamp) {
			return PriceSeries{}, fmt.Errorf("%w: bar %d timestamp %s not after %s",
				ErrInvalidSeries, i, b.Timestamp.Format(time.DateOnly), bars[i-1].Timestamp.Format(time.DateOnly))
		}
	}
	cp := make([]PriceBar, len(bars))
	copy(cp, bars)
	return PriceSeries{bars: cp}, nil
}

// SeriesFromBars builds a series from stored OHLCV bars using their closes.
func SeriesFromBars(bars []Bar) (PriceSeries, error) {
	pb := make([]PriceBar, len(bars))
	for i, b := range bars {
		pb[i] = PriceBar{Timestamp: b.Timestamp, Close: b.Close}
	}
	return NewPriceSeries(pb)
}

// Len returns the number of bars.
func (s PriceSeries) Len() int { return len(s.bars) }

// At returns bar i.
func (s PriceSeries) At(i int) PriceBar { return s.bars[i] }

// Closes returns a copy of the closing prices.
func (s PriceSeries) Closes() []float64 {
	out := make([]float64, len(s.bars))
	for i, b := range s.bars {
		out[i] = b.Close
	}
	return out
}

// Start returns the first timestamp, or the zero time for an empty series.
func (s PriceSeries) Start() time.Time {
	if len(s.bars) == 0 {
		return time.Time{}
	}
	return s.bars[0].Timestamp
}

// End returns the last timestamp, or the zero time for an empty series.
func (s PriceSeries) End() time.Time {
	if len(s.bars) == 0 {
		return time.Time{}
	}
	return s.bars[len(s.bars)-1].Timestamp
}
